/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backup keeps rotating copies of project archives in a per-user
// directory, separate from where the projects live.
package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	applog "novelist/internal/log"
	"novelist/internal/storage"
)

const (
	Suffix            = ".tnp.bak"
	DefaultMaxBackups = 5

	ReasonManual        = "manual"
	ReasonSave          = "save"
	ReasonBeforeRestore = "before_restore"
	ReasonCrash         = "crash"

	stampLayout = "20060102_150405.000000"
)

var (
	ErrNotAFile     = errors.New("backup source is not a regular file")
	ErrNotABackup   = errors.New("not a backup file")
	ErrOutsideStore = errors.New("path is outside the backup directory")
)

// name: <project>_<YYYYMMDD>_<HHMMSS>.<micro>_<reason>.tnp.bak
var nameRE = regexp.MustCompile(`^(.+)_(\d{8}_\d{6}\.\d{6})_([a-z0-9_-]+)\.tnp\.bak$`)

// Info describes one backup file.
type Info struct {
	Path     string
	FileName string
	Project  string
	Reason   string
	Time     time.Time
	Size     int64
}

// Manager owns the backup directory. It is not safe for concurrent use by
// several goroutines; the engine serializes access.
type Manager struct {
	Dir        string
	MaxBackups int

	now func() time.Time
}

// New returns a manager for dir. maxBackups <= 0 selects DefaultMaxBackups.
func New(dir string, maxBackups int) *Manager {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &Manager{Dir: dir, MaxBackups: maxBackups, now: time.Now}
}

// ProjectName is the archive file name without its extension.
func ProjectName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var reasonRE = regexp.MustCompile(`[^a-z0-9_-]+`)

// SanitizeReason maps a free-form reason to the tag used in file names.
func SanitizeReason(reason string) string {
	r := reasonRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(reason)), "_")
	r = strings.Trim(r, "_-")
	if len(r) > 32 {
		r = r[:32]
	}
	if r == "" {
		return ReasonManual
	}
	return r
}

// FileName builds the backup file name for a project, time and reason.
func FileName(project string, t time.Time, reason string) string {
	return fmt.Sprintf("%s_%s_%s%s", project, t.Format(stampLayout), SanitizeReason(reason), Suffix)
}

// ParseFileName splits a backup file name into project, time and reason.
func ParseFileName(name string) (project string, t time.Time, reason string, ok bool) {
	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, "", false
	}
	t, err := time.ParseInLocation(stampLayout, m[2], time.Local)
	if err != nil {
		return "", time.Time{}, "", false
	}
	return m[1], t, m[3], true
}

func (m *Manager) ensureDir() error {
	if strings.TrimSpace(m.Dir) == "" {
		return errors.New("backup directory is not configured")
	}
	return os.MkdirAll(m.Dir, 0o755)
}

// Create copies the archive at projectPath into the backup directory and
// then sweeps old backups of the same project.
func (m *Manager) Create(projectPath, reason string) (Info, error) {
	st, err := os.Stat(projectPath)
	if err != nil {
		return Info{}, fmt.Errorf("backup %s: %w", projectPath, err)
	}
	if !st.Mode().IsRegular() {
		return Info{}, fmt.Errorf("backup %s: %w", projectPath, ErrNotAFile)
	}
	return m.Capture(ProjectName(projectPath), reason, func(dest string) error {
		return storage.AtomicWrite(dest, func(w io.Writer) error {
			src, err := os.Open(projectPath)
			if err != nil {
				return err
			}
			defer src.Close()
			_, err = io.Copy(w, src)
			return err
		})
	})
}

// Capture reserves a backup name for project and lets write produce the
// file there. write must create dest atomically. Old backups of the project
// are swept afterwards.
func (m *Manager) Capture(project, reason string, write func(dest string) error) (Info, error) {
	l := applog.WithOperation(applog.WithComponent("backup"), "create").With(slog.String("project", project))
	if err := m.ensureDir(); err != nil {
		return Info{}, fmt.Errorf("ensure backup dir: %w", err)
	}
	t := m.now()
	dest := filepath.Join(m.Dir, FileName(project, t, reason))
	// Two backups within the same microsecond would collide.
	for {
		if _, err := os.Stat(dest); errors.Is(err, fs.ErrNotExist) {
			break
		}
		t = t.Add(time.Microsecond)
		dest = filepath.Join(m.Dir, FileName(project, t, reason))
	}
	if err := write(dest); err != nil {
		l.Error("backup failed", slog.Any("err", err))
		return Info{}, fmt.Errorf("write backup: %w", err)
	}
	info, err := m.Get(dest)
	if err != nil {
		return Info{}, err
	}
	l.Info("backup created", slog.String("file", info.FileName), slog.String("reason", info.Reason), slog.String("size", humanize.Bytes(uint64(info.Size))))
	if _, err := m.Sweep(project); err != nil {
		l.Warn("sweep failed", slog.Any("err", err))
	}
	return info, nil
}

// Get returns the info of one backup file.
func (m *Manager) Get(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	name := filepath.Base(path)
	project, t, reason, ok := ParseFileName(name)
	if !ok {
		return Info{}, fmt.Errorf("%s: %w", name, ErrNotABackup)
	}
	return Info{Path: path, FileName: name, Project: project, Reason: reason, Time: t, Size: st.Size()}, nil
}

// ListAll returns every backup in the directory, newest first.
func (m *Manager) ListAll() ([]Info, error) {
	ents, err := os.ReadDir(m.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []Info
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Suffix) {
			continue
		}
		info, err := m.Get(filepath.Join(m.Dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.After(out[j].Time)
		}
		return out[i].FileName > out[j].FileName
	})
	return out, nil
}

// List returns the backups of one project, newest first.
func (m *Manager) List(project string) ([]Info, error) {
	all, err := m.ListAll()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if b.Project == project {
			out = append(out, b)
		}
	}
	return out, nil
}

// Sweep deletes the oldest backups of project beyond MaxBackups and returns
// the removed paths.
func (m *Manager) Sweep(project string) ([]string, error) {
	list, err := m.List(project)
	if err != nil {
		return nil, err
	}
	limit := m.MaxBackups
	if limit <= 0 {
		limit = DefaultMaxBackups
	}
	if len(list) <= limit {
		return nil, nil
	}
	l := applog.WithOperation(applog.WithComponent("backup"), "sweep")
	var removed []string
	var errs []error
	for _, b := range list[limit:] {
		if err := os.Remove(b.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, b.Path)
		l.Debug("deleted old backup", slog.String("file", b.FileName))
	}
	return removed, errors.Join(errs...)
}

// Restore replaces dest with the backup at backupPath. The backup is first
// staged next to dest; then the current dest, if any, is backed up with
// reason before_restore; finally the staged copy is renamed over dest.
func (m *Manager) Restore(backupPath, dest string) (*Info, error) {
	l := applog.WithOperation(applog.WithComponent("backup"), "restore").With(
		slog.String("backup", backupPath), slog.String("dest", dest))
	src, err := os.Open(backupPath)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer src.Close()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	staged := filepath.Join(dir, fmt.Sprintf(".%s.restore-%d-%d", filepath.Base(dest), os.Getpid(), rand.Int()))
	if err := stage(src, staged); err != nil {
		_ = os.Remove(staged)
		return nil, fmt.Errorf("stage backup: %w", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(staged)
		}
	}()

	var before *Info
	if _, err := os.Stat(dest); err == nil {
		info, err := m.Create(dest, ReasonBeforeRestore)
		if err != nil {
			return nil, fmt.Errorf("backup current file: %w", err)
		}
		before = &info
	}
	if err := os.Rename(staged, dest); err != nil {
		return before, fmt.Errorf("replace %s: %w", dest, err)
	}
	renamed = true
	l.Info("restored")
	return before, nil
}

func stage(src io.Reader, path string) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(f, src); err != nil {
		return err
	}
	return f.Sync()
}

// Delete removes one backup. Only backup files inside Dir are accepted.
func (m *Manager) Delete(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(m.Dir)
	if err != nil {
		return err
	}
	if filepath.Dir(abs) != dir {
		return fmt.Errorf("%s: %w", path, ErrOutsideStore)
	}
	if _, _, _, ok := ParseFileName(filepath.Base(abs)); !ok {
		return fmt.Errorf("%s: %w", path, ErrNotABackup)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	applog.WithComponent("backup").Info("backup deleted", slog.String("file", filepath.Base(abs)))
	return nil
}

// TotalSize sums the size of every backup file.
func (m *Manager) TotalSize() (int64, error) {
	all, err := m.ListAll()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range all {
		total += b.Size
	}
	return total, nil
}

// PurgeAll deletes every backup and reports how many were removed.
func (m *Manager) PurgeAll() (int, error) {
	all, err := m.ListAll()
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, b := range all {
		if err := os.Remove(b.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	applog.WithComponent("backup").Info("backups purged", slog.Int("count", n))
	return n, errors.Join(errs...)
}
