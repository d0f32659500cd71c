/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelist/internal/collections"
	"novelist/internal/engine"
	"novelist/internal/manuscript"
)

type cli struct {
	dir     string
	config  string
	backups string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{dir: dir, config: filepath.Join(dir, "config.yaml"), backups: filepath.Join(dir, "backups")}
	t.Setenv("NOV_BACKUP_DIR", c.backups)
	t.Setenv("NOV_SEARCH_INDEX", "true")
	t.Setenv("NOV_BACKUP_ON_SAVE", "true")
	return c
}

// run executes one command line. The app stays open until the test ends so
// the engine can be inspected.
func (c *cli) run(t *testing.T, stdin string, args ...string) (*app, string, error) {
	t.Helper()
	a := &app{logOut: io.Discard}
	t.Cleanup(a.close)
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", c.config}, args...))
	err := root.Execute()
	return a, out.String(), err
}

func (c *cli) path(name string) string { return filepath.Join(c.dir, name) }

func firstSceneID(t *testing.T, a *app) (chapterID, sceneID string) {
	t.Helper()
	require.NoError(t, a.engine.View(func(s *manuscript.Structure, _ *collections.Set) error {
		sc, ok := s.FirstScene()
		require.True(t, ok)
		ch, ok := s.ChapterOf(sc.ID)
		require.True(t, ok)
		chapterID, sceneID = ch.ID, sc.ID
		return nil
	}))
	return chapterID, sceneID
}

func TestNewRootCommand(t *testing.T) {
	root := newRootCommand(&app{})
	assert.Equal(t, "novelist", root.Use)
	for _, name := range []string{"new", "open", "info", "text", "search", "save", "save-as", "scene", "backup", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	c := newCLI(t)
	_, out, err := c.run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "novelist "))
}

func TestNewInfoAndText(t *testing.T) {
	c := newCLI(t)
	_, out, err := c.run(t, "", "new", c.path("Il lago"), "--title", "Il lago", "--author", "A. Writer", "--kind", "short_story", "--target", "5000")
	require.NoError(t, err)
	assert.Contains(t, out, "Il lago.tnp")

	_, out, err = c.run(t, "", "info", c.path("Il lago.tnp"))
	require.NoError(t, err)
	assert.Contains(t, out, "Title:     Il lago")
	assert.Contains(t, out, "Short Story")
	assert.Contains(t, out, "1 chapters, 1 scenes")
	assert.Contains(t, out, "of 5,000")
	assert.Contains(t, out, "characters")

	a, out, err := c.run(t, "", "info", c.path("Il lago"), "--manifest")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Il lago"`)
	assert.Contains(t, out, `"project_type": "short_story"`)
	assert.Equal(t, engine.Closed, a.engine.State())

	_, _, err = c.run(t, "", "info", c.path("Missing"), "--manifest")
	require.Error(t, err)

	_, _, err = c.run(t, "", "new", c.path("Il lago"), "--title", "Again")
	require.Error(t, err)

	_, _, err = c.run(t, "", "new", c.path("Nameless"))
	require.Error(t, err, "title is required")
}

func TestSceneCommands(t *testing.T) {
	c := newCLI(t)
	path := c.path("Il lago.tnp")
	_, _, err := c.run(t, "", "new", path, "--title", "Il lago")
	require.NoError(t, err)

	a, _, err := c.run(t, "", "scene", "list", path)
	require.NoError(t, err)
	chapterID, sceneID := firstSceneID(t, a)

	_, _, err = c.run(t, "", "scene", "delete", path, sceneID)
	require.ErrorIs(t, err, manuscript.ErrLastScene)

	_, out, err := c.run(t, "", "scene", "add", path, chapterID, "--title", "Arrival", "--order", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Added scene ")

	_, _, err = c.run(t, "", "scene", "write", path, sceneID, "<p>The boat was <i>late</i>.</p>")
	require.Error(t, err, "content comes from stdin, not an argument")
	_, _, err = c.run(t, "<p>The boat was <i>late</i>.</p>", "scene", "write", path, sceneID)
	require.NoError(t, err)
	_, _, err = c.run(t, "", "scene", "rename", path, sceneID, "Departure")
	require.NoError(t, err)

	a, out, err = c.run(t, "", "scene", "list", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Arrival")
	assert.Contains(t, out, "Departure (4 words)")
	require.NoError(t, a.engine.View(func(s *manuscript.Structure, _ *collections.Set) error {
		require.Len(t, s.Chapters[0].Scenes, 2)
		assert.Equal(t, "Arrival", s.Chapters[0].Scenes[0].Title)
		assert.Equal(t, 1, s.Chapters[0].Scenes[1].Order)
		return nil
	}))

	_, out, err = c.run(t, "", "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "The boat was late.")

	_, out, err = c.run(t, "", "search", path, "boat")
	require.NoError(t, err)
	assert.Contains(t, out, "Departure")
	assert.Contains(t, out, "[boat]")
}

func TestOpenRecoversDamagedArchive(t *testing.T) {
	c := newCLI(t)
	path := c.path("Il lago.tnp")
	_, _, err := c.run(t, "", "new", path, "--title", "Il lago")
	require.NoError(t, err)
	_, _, err = c.run(t, "", "save", path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, out, err := c.run(t, "", "open", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ArchiveCorrupt")
	assert.Contains(t, out, "Backups available")
	assert.Contains(t, out, "open --recover")

	_, out, err = c.run(t, "", "open", "--recover", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored from Il lago_")
	assert.Contains(t, out, "Title:     Il lago")

	_, out, err = c.run(t, "", "backup", "list", path)
	require.NoError(t, err)
	assert.Contains(t, out, "before_restore")
	assert.Contains(t, out, "save")
}

func TestBackupCommands(t *testing.T) {
	c := newCLI(t)
	path := c.path("Il lago.tnp")
	_, _, err := c.run(t, "", "new", path, "--title", "Il lago")
	require.NoError(t, err)

	_, out, err := c.run(t, "", "backup", "list", "Il lago")
	require.NoError(t, err)
	assert.Contains(t, out, "No backups")

	a, out, err := c.run(t, "", "backup", "create", path, "--reason", "Milestone")
	require.NoError(t, err)
	assert.Contains(t, out, "_milestone.tnp.bak")
	infos, err := a.engine.ListBackups()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	name := infos[0].FileName

	copyPath := c.path("Copia.tnp")
	_, out, err = c.run(t, "", "backup", "restore", name, copyPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")
	_, err = os.Stat(copyPath)
	require.NoError(t, err)

	_, _, err = c.run(t, "", "backup", "delete", name)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(c.backups, name))
	assert.True(t, os.IsNotExist(err))

	_, _, err = c.run(t, "", "backup", "delete", copyPath)
	require.Error(t, err, "only files in the backup directory can be deleted")
}

func TestBackupListTotalsAndPurge(t *testing.T) {
	c := newCLI(t)
	path := c.path("Il lago.tnp")
	_, _, err := c.run(t, "", "new", path, "--title", "Il lago")
	require.NoError(t, err)
	for _, reason := range []string{"one", "two"} {
		_, _, err = c.run(t, "", "backup", "create", path, "--reason", reason)
		require.NoError(t, err)
	}

	_, out, err := c.run(t, "", "backup", "list", "Il lago")
	require.NoError(t, err)
	assert.Contains(t, out, "2 backups")
	assert.Contains(t, out, c.backups)

	a, _, err := c.run(t, "", "backup", "purge")
	require.Error(t, err, "purge needs --yes")
	kept, err := a.engine.Backups("Il lago")
	require.NoError(t, err)
	assert.Len(t, kept, 2)

	_, out, err = c.run(t, "", "backup", "purge", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 2 backups")

	_, out, err = c.run(t, "", "backup", "list", "Il lago")
	require.NoError(t, err)
	assert.Contains(t, out, "No backups")
}

func TestSaveAs(t *testing.T) {
	c := newCLI(t)
	path := c.path("Il lago.tnp")
	_, _, err := c.run(t, "", "new", path, "--title", "Il lago")
	require.NoError(t, err)
	_, out, err := c.run(t, "", "save-as", path, c.path("Il lago 2"))
	require.NoError(t, err)
	assert.Contains(t, out, "Il lago 2.tnp")
}
