/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	m       *Manager
	project string
	clock   time.Time
}

func newFixture(t *testing.T, max int) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		m:       New(filepath.Join(root, "backups"), max),
		project: filepath.Join(root, "work", "Il lago.tnp"),
		clock:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local),
	}
	f.m.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.project), 0o755))
	f.write(t, "v0")
	return f
}

func (f *fixture) write(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.project, []byte(body), 0o644))
}

func TestFileName_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 2, 29, 23, 59, 58, 123456000, time.Local)
	name := FileName("my_novel", ts, "Before Restore!")
	assert.Equal(t, "my_novel_20240229_235958.123456_before_restore.tnp.bak", name)

	project, parsed, reason, ok := ParseFileName(name)
	require.True(t, ok)
	assert.Equal(t, "my_novel", project)
	assert.True(t, parsed.Equal(ts))
	assert.Equal(t, "before_restore", reason)

	_, _, _, ok = ParseFileName("random.tnp.bak")
	assert.False(t, ok)
}

func TestSanitizeReason(t *testing.T) {
	assert.Equal(t, "manual", SanitizeReason(""))
	assert.Equal(t, "manual", SanitizeReason("  !!! "))
	assert.Equal(t, "auto-save", SanitizeReason("Auto-Save"))
	assert.Equal(t, "a_b", SanitizeReason("a/b"))
	assert.Len(t, SanitizeReason(string(make([]byte, 100))+"x"), 1)
}

func TestCreate_CopiesAndNames(t *testing.T) {
	f := newFixture(t, 5)
	info, err := f.m.Create(f.project, ReasonSave)
	require.NoError(t, err)
	assert.Equal(t, "Il lago", info.Project)
	assert.Equal(t, ReasonSave, info.Reason)
	assert.EqualValues(t, 2, info.Size)
	data, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, "v0", string(data))
}

func TestCreate_RejectsMissingAndDirectories(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.m.Create(filepath.Join(t.TempDir(), "none.tnp"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = f.m.Create(t.TempDir(), "")
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestRotation_KeepsNewest(t *testing.T) {
	const max, extra = 5, 3
	f := newFixture(t, max)
	var made []Info
	for i := 0; i < max+extra; i++ {
		info, err := f.m.Create(f.project, ReasonManual)
		require.NoError(t, err)
		made = append(made, info)
	}
	list, err := f.m.List("Il lago")
	require.NoError(t, err)
	require.Len(t, list, max)
	for i, b := range list {
		// newest first
		assert.Equal(t, made[len(made)-1-i].FileName, b.FileName)
	}
	for _, old := range made[:extra] {
		_, err := os.Stat(old.Path)
		assert.True(t, os.IsNotExist(err), "old backup %s should be swept", old.FileName)
	}
}

func TestList_SeparatesProjects(t *testing.T) {
	f := newFixture(t, 5)
	other := filepath.Join(filepath.Dir(f.project), "Il lago_2.tnp")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	_, err := f.m.Create(f.project, "")
	require.NoError(t, err)
	_, err = f.m.Create(other, "")
	require.NoError(t, err)

	list, err := f.m.List("Il lago")
	require.NoError(t, err)
	require.Len(t, list, 1)
	all, err := f.m.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestList_EmptyDirectory(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "nothing-here"), 0)
	list, err := m.List("x")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, DefaultMaxBackups, m.MaxBackups)
}

func TestRestore_BacksUpCurrentFirst(t *testing.T) {
	f := newFixture(t, 5)
	first, err := f.m.Create(f.project, ReasonSave)
	require.NoError(t, err)
	f.write(t, "v1-broken")

	before, err := f.m.Restore(first.Path, f.project)
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.Equal(t, ReasonBeforeRestore, before.Reason)

	data, err := os.ReadFile(f.project)
	require.NoError(t, err)
	assert.Equal(t, "v0", string(data))
	saved, err := os.ReadFile(before.Path)
	require.NoError(t, err)
	assert.Equal(t, "v1-broken", string(saved))

	ents, err := os.ReadDir(filepath.Dir(f.project))
	require.NoError(t, err)
	assert.Len(t, ents, 1, "staging file left behind")
}

func TestRestore_OldestBackupSurvivesRotation(t *testing.T) {
	f := newFixture(t, 2)
	oldest, err := f.m.Create(f.project, "")
	require.NoError(t, err)
	f.write(t, "v1")
	_, err = f.m.Create(f.project, "")
	require.NoError(t, err)
	f.write(t, "v2")

	// the before_restore backup sweeps the one being restored
	_, err = f.m.Restore(oldest.Path, f.project)
	require.NoError(t, err)
	data, err := os.ReadFile(f.project)
	require.NoError(t, err)
	assert.Equal(t, "v0", string(data))
	_, err = os.Stat(oldest.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestRestore_NewDestination(t *testing.T) {
	f := newFixture(t, 5)
	b, err := f.m.Create(f.project, "")
	require.NoError(t, err)
	dest := filepath.Join(t.TempDir(), "copy.tnp")
	before, err := f.m.Restore(b.Path, dest)
	require.NoError(t, err)
	assert.Nil(t, before)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "v0", string(data))
}

func TestDelete_TotalSize_Purge(t *testing.T) {
	f := newFixture(t, 5)
	a, err := f.m.Create(f.project, "")
	require.NoError(t, err)
	_, err = f.m.Create(f.project, "")
	require.NoError(t, err)

	total, err := f.m.TotalSize()
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)

	assert.ErrorIs(t, f.m.Delete(f.project), ErrOutsideStore)
	require.NoError(t, f.m.Delete(a.Path))
	_, err = f.m.Get(a.Path)
	assert.Error(t, err)

	n, err := f.m.PurgeAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	all, err := f.m.ListAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCapture_WritesInPlaceAndSweeps(t *testing.T) {
	f := newFixture(t, 2)
	for i := 0; i < 3; i++ {
		info, err := f.m.Capture("Il lago", ReasonCrash, func(dest string) error {
			return os.WriteFile(dest, []byte("snapshot"), 0o644)
		})
		require.NoError(t, err)
		assert.Equal(t, ReasonCrash, info.Reason)
		assert.Equal(t, f.m.Dir, filepath.Dir(info.Path))
	}
	infos, err := f.m.List("Il lago")
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	_, err = f.m.Capture("Il lago", ReasonCrash, func(string) error { return os.ErrPermission })
	require.ErrorIs(t, err, os.ErrPermission)
}
