/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine owns the single open writing project of a session and
// turns damaged archives into recovery offers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"novelist/internal/backup"
	"novelist/internal/config"
	"novelist/internal/domain"
	applog "novelist/internal/log"
	"novelist/internal/manuscript"
	"novelist/internal/storage"
	"novelist/internal/telemetry"
	"novelist/internal/undo"
)

// State is the engine lifecycle state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

var (
	ErrNoProject     = errors.New("no project is open")
	ErrProjectExists = errors.New("project file already exists")
	ErrNotOffered    = errors.New("backup is not part of the recovery offer")
	ErrNoIndex       = errors.New("search index is disabled")
)

// Options configures an Engine. The zero value works with backups under
// the temp directory and no search index.
type Options struct {
	BackupDir    string
	MaxBackups   int
	BackupOnSave bool
	SearchIndex  bool
	// Defaults for NewProject fields left empty.
	DefaultLanguage string
	DefaultKind     domain.ProjectKind
	Unpack          storage.UnpackOptions
	Undo            undo.Config
	Telemetry       *telemetry.Client
}

// OptionsFromConfig maps the user configuration onto engine options.
func OptionsFromConfig(cfg config.AppConfig) (Options, error) {
	dir, err := cfg.BackupDir()
	if err != nil {
		return Options{}, fmt.Errorf("backup dir: %w", err)
	}
	kind, _ := domain.ParseProjectKind(cfg.General.DefaultProjectKind)
	return Options{
		BackupDir:       dir,
		MaxBackups:      cfg.Storage.MaxBackups,
		BackupOnSave:    cfg.Storage.BackupOnSave,
		SearchIndex:     cfg.Storage.SearchIndex,
		DefaultLanguage: cfg.General.DefaultLanguage,
		DefaultKind:     kind,
		Unpack:          storage.UnpackOptions{MaxArchiveBytes: cfg.Storage.MaxArchiveBytes()},
	}, nil
}

// Engine is the persistence engine for one user session. Methods are safe
// to call from several goroutines but operations are serialized.
type Engine struct {
	mu   sync.Mutex
	opts Options
	log  *slog.Logger
	now  func() time.Time

	backups *backup.Manager
	history *undo.Manager

	state      State
	path       string
	project    *storage.Project
	wd         *storage.WorkDir
	index      *storage.Index
	indexStale bool
	dirty      bool
}

// New returns a closed engine.
func New(opts Options) *Engine {
	if strings.TrimSpace(opts.BackupDir) == "" {
		opts.BackupDir = filepath.Join(os.TempDir(), "novelist-backups")
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = storage.DefaultLanguage
	}
	if !opts.DefaultKind.Valid() {
		opts.DefaultKind = domain.KindNovel
	}
	return &Engine{
		opts:    opts,
		log:     applog.WithComponent("engine"),
		now:     time.Now,
		backups: backup.New(opts.BackupDir, opts.MaxBackups),
		history: undo.NewManager(opts.Undo),
	}
}

// State reports whether a project is open.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ProjectPath is the archive path of the open project, empty when closed.
func (e *Engine) ProjectPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// Dirty reports unsaved changes.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// BackupDir is where backups and crash reports are written.
func (e *Engine) BackupDir() string { return e.backups.Dir }

func (e *Engine) events() *telemetry.Client {
	if e.opts.Telemetry != nil {
		return e.opts.Telemetry
	}
	return telemetry.Default()
}

// guard converts a panic inside an operation into an UnexpectedFailure.
// It must be deferred directly.
func (e *Engine) guard(op string, errp *error) {
	if r := recover(); r != nil {
		e.log.Error("panic in operation",
			slog.String("op", op),
			slog.String("project", e.path),
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())))
		*errp = &storage.Error{Kind: storage.KindUnexpected, Op: op, Path: e.path, Err: fmt.Errorf("panic: %v", r)}
	}
}

func (e *Engine) requireOpen() error {
	if e.state != Open || e.project == nil {
		return ErrNoProject
	}
	return nil
}

// WithExtension appends .tnp when path has no extension.
func WithExtension(path string) string {
	if filepath.Ext(path) == "" {
		return path + storage.Extension
	}
	return path
}

// NewProject describes a project to create.
type NewProject struct {
	Title           string             `validate:"required,max=256"`
	Author          string             `validate:"max=256"`
	Language        string             `validate:"omitempty,bcp47_language_tag"`
	Kind            domain.ProjectKind `validate:"omitempty,oneof=novel short_story article_magazine article_social poetry screenplay essay research_paper"`
	Genre           string
	TargetWordCount int `validate:"min=0"`
	Tags            []string
	// Mode selects the tree shape; empty means two-level.
	Mode manuscript.Mode `validate:"omitempty,oneof=two-level three-level"`
}

// CreateProject writes a new project at path and opens it. An existing file
// is never overwritten.
func (e *Engine) CreateProject(ctx context.Context, path string, np NewProject) (err error) {
	const op = "create"
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard(op, &err)

	if err := config.Validator().Struct(np); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	path = WithExtension(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrProjectExists)
	}
	e.closeLocked()

	now := e.now()
	m := domain.Manifest{
		Version:         storage.CurrentManifestVersion,
		Title:           strings.TrimSpace(np.Title),
		Author:          strings.TrimSpace(np.Author),
		Language:        np.Language,
		ProjectType:     np.Kind,
		Genre:           np.Genre,
		TargetWordCount: np.TargetWordCount,
		Tags:            append([]string{}, np.Tags...),
		Created:         domain.At(now),
		Modified:        domain.At(now),
	}
	if m.Language == "" {
		m.Language = e.opts.DefaultLanguage
	}
	if m.ProjectType == "" {
		m.ProjectType = e.opts.DefaultKind
	}
	mode := np.Mode
	if mode == "" {
		mode = manuscript.TwoLevel
	}
	p := storage.NewProject(m, mode)

	wd, err := storage.NewWorkDir()
	if err != nil {
		return err
	}
	if err := storage.Pack(path, p, wd); err != nil {
		_ = wd.Release()
		return err
	}
	e.attachLocked(ctx, path, p, wd)
	e.log.Info("project created", slog.String("path", path), slog.String("kind", string(m.ProjectType)))
	e.events().Event(telemetry.EventProjectCreated, map[string]any{"kind": string(m.ProjectType), "mode": string(mode)})
	return nil
}

// attachLocked makes p the open project.
func (e *Engine) attachLocked(ctx context.Context, path string, p *storage.Project, wd *storage.WorkDir) {
	e.state = Open
	e.path = path
	e.project = p
	e.wd = wd
	e.dirty = false
	e.history.Reset()
	e.openIndexLocked(ctx)
}

func (e *Engine) openIndexLocked(ctx context.Context) {
	e.index, e.indexStale = nil, false
	if !e.opts.SearchIndex {
		return
	}
	ix, err := storage.OpenSessionIndex(ctx, e.wd, e.project)
	if err != nil {
		// search degrades; the project itself is fine
		e.log.Warn("search index unavailable", slog.Any("err", err))
		return
	}
	e.index = ix
}

// SaveProject packs the open project over its archive. With backup on save
// the previous archive is copied to the backup directory first.
func (e *Engine) SaveProject(ctx context.Context) (err error) {
	const op = "save"
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard(op, &err)
	if err := e.requireOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.saveLocked(e.path)
}

// SaveProjectAs packs the open project to path, which becomes the project path.
func (e *Engine) SaveProjectAs(ctx context.Context, path string) (err error) {
	const op = "save_as"
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard(op, &err)
	if err := e.requireOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path = WithExtension(path)
	if err := e.saveLocked(path); err != nil {
		return err
	}
	e.path = path
	return nil
}

func (e *Engine) saveLocked(path string) error {
	l := applog.WithOperation(e.log, "save").With(slog.String("path", path))
	if e.opts.BackupOnSave {
		if _, err := os.Stat(path); err == nil {
			if _, err := e.backups.Create(path, backup.ReasonSave); err != nil {
				// a failed backup must not cost the user the save
				l.Warn("backup before save failed", slog.Any("err", err))
			}
		}
	}
	prev := e.project.Manifest.Modified
	e.project.Manifest.Touch(e.now())
	if err := storage.Pack(path, e.project, e.wd); err != nil {
		e.project.Manifest.Modified = prev
		return err
	}
	e.dirty = false
	l.Info("project saved", slog.Int("words", e.project.Structure.WordCount()))
	return nil
}

// CloseProject drops the open project and releases its work directory.
// Unsaved changes are discarded.
func (e *Engine) CloseProject() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked()
}

func (e *Engine) closeLocked() error {
	if e.state == Closed {
		return nil
	}
	var errs []error
	if e.index != nil {
		errs = append(errs, e.index.Close())
	}
	if e.wd != nil {
		errs = append(errs, e.wd.Release())
	}
	if e.dirty {
		e.log.Warn("closing project with unsaved changes", slog.String("path", e.path))
	}
	e.log.Debug("project closed", slog.String("path", e.path))
	e.state = Closed
	e.path = ""
	e.project = nil
	e.wd = nil
	e.index = nil
	e.indexStale = false
	e.dirty = false
	e.history.Reset()
	return errors.Join(errs...)
}

// CreateBackup copies the saved archive of the open project into the
// backup directory.
func (e *Engine) CreateBackup(reason string) (info backup.Info, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("backup", &err)
	if err := e.requireOpen(); err != nil {
		return backup.Info{}, err
	}
	return e.backups.Create(e.path, reason)
}

// ListBackups returns the backups of the open project, newest first.
func (e *Engine) ListBackups() ([]backup.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	return e.backups.List(backup.ProjectName(e.path))
}

// Backups lists the backups of any project name, open or not.
func (e *Engine) Backups(project string) ([]backup.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backups.List(project)
}

// DeleteBackup removes one backup file from the backup directory.
func (e *Engine) DeleteBackup(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backups.Delete(path)
}

// BackupsSize is the combined size of every file in the backup directory.
func (e *Engine) BackupsSize() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backups.TotalSize()
}

// PurgeBackups deletes every backup of every project and reports how many
// files went.
func (e *Engine) PurgeBackups() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backups.PurgeAll()
}

// RestoreBackup replaces dest with a backup. When dest is the open project
// it is reopened from the restored archive. The returned info describes the
// before_restore backup of the replaced file, if there was one.
func (e *Engine) RestoreBackup(ctx context.Context, backupPath, dest string) (prev *backup.Info, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("restore", &err)

	reopen := e.state == Open && sameFile(e.path, dest)
	if reopen {
		e.closeLocked()
	}
	prev, err = e.backups.Restore(backupPath, dest)
	if err != nil {
		return nil, err
	}
	if reopen {
		if _, err := e.openLocked(ctx, dest); err != nil {
			return prev, err
		}
	}
	return prev, nil
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// CrashSnapshot packs the in-memory project, unsaved edits included, into
// the backup directory with reason crash. It returns "" when nothing is open.
func (e *Engine) CrashSnapshot() (path string, err error) {
	// TryLock: a crash can happen while an operation holds the lock.
	if !e.mu.TryLock() {
		return "", errors.New("engine busy, crash snapshot skipped")
	}
	defer e.mu.Unlock()
	defer e.guard("crash_snapshot", &err)
	if e.state != Open || e.project == nil {
		return "", nil
	}
	info, err := e.backups.Capture(backup.ProjectName(e.path), backup.ReasonCrash, func(dest string) error {
		return storage.Pack(dest, e.project, e.wd)
	})
	if err != nil {
		return "", err
	}
	return info.Path, nil
}
