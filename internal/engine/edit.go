/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"novelist/internal/collections"
	"novelist/internal/domain"
	"novelist/internal/manuscript"
	"novelist/internal/storage"
)

// Edit runs fn with the tree and collections of the open project and marks
// the project modified when fn succeeds. The edit is all or nothing: when fn
// fails, panics or leaves a tree that does not validate, the tree and the
// collections are restored to their state before the call. The pointers must
// not be retained after fn returns.
func (e *Engine) Edit(fn func(s *manuscript.Structure, c *collections.Set) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("edit", &err)
	if err := e.requireOpen(); err != nil {
		return err
	}
	tree := e.project.Structure.Clone()
	sets, err := e.project.Collections.Clone()
	if err != nil {
		return &storage.Error{Kind: storage.KindUnexpected, Op: "edit", Path: e.path, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			e.project.Structure = tree
			e.project.Collections = sets
		}
	}()
	if err := fn(e.project.Structure, e.project.Collections); err != nil {
		return err
	}
	if err := e.project.Structure.Validate(); err != nil {
		return &storage.Error{Kind: storage.KindInvariantViolation, Op: "edit", Path: e.path, Err: err}
	}
	committed = true
	e.changedLocked()
	return nil
}

// View runs fn read-only.
func (e *Engine) View(fn func(s *manuscript.Structure, c *collections.Set) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("view", &err)
	if err := e.requireOpen(); err != nil {
		return err
	}
	return fn(e.project.Structure, e.project.Collections)
}

func (e *Engine) changedLocked() {
	e.dirty = true
	e.indexStale = true
	e.project.Manifest.Touch(e.now())
}

// UpdateSceneContent replaces the content of a scene and records the
// previous content in the scene's undo history.
func (e *Engine) UpdateSceneContent(sceneID, content string) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("update_scene", &err)
	if err := e.requireOpen(); err != nil {
		return err
	}
	sc, ok := e.project.Structure.Scene(sceneID)
	if !ok {
		return fmt.Errorf("scene %q: %w", sceneID, manuscript.ErrNotFound)
	}
	if sc.Content == content {
		return nil
	}
	before := sc.Content
	if err := e.project.Structure.UpdateSceneContent(sceneID, content); err != nil {
		return err
	}
	e.history.Record(sceneID, before, e.now())
	e.changedLocked()
	return nil
}

// UndoScene restores the previous content of a scene. It reports false when
// there is nothing to undo.
func (e *Engine) UndoScene(sceneID string) (bool, error) {
	return e.step(sceneID, "undo", e.historyUndo)
}

// RedoScene re-applies content undone by UndoScene.
func (e *Engine) RedoScene(sceneID string) (bool, error) {
	return e.step(sceneID, "redo", e.historyRedo)
}

func (e *Engine) historyUndo(id, cur string) (string, bool) { return e.history.Undo(id, cur) }
func (e *Engine) historyRedo(id, cur string) (string, bool) { return e.history.Redo(id, cur) }

func (e *Engine) step(sceneID, op string, move func(id, cur string) (string, bool)) (ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard(op, &err)
	if err := e.requireOpen(); err != nil {
		return false, err
	}
	sc, found := e.project.Structure.Scene(sceneID)
	if !found {
		e.history.ClearScene(sceneID)
		return false, fmt.Errorf("scene %q: %w", sceneID, manuscript.ErrNotFound)
	}
	content, ok := move(sceneID, sc.Content)
	if !ok {
		return false, nil
	}
	if err := e.project.Structure.UpdateSceneContent(sceneID, content); err != nil {
		return false, err
	}
	e.changedLocked()
	return true, nil
}

// UpdateMetadata edits a copy of the manifest and commits it when fn
// succeeds and the result is a valid manifest. Version and creation date
// cannot be changed. Switching the project kind enables the collections of
// the new kind.
func (e *Engine) UpdateMetadata(fn func(m *domain.Manifest) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("update_metadata", &err)
	if err := e.requireOpen(); err != nil {
		return err
	}
	m := e.project.Manifest
	m.Tags = append([]string(nil), m.Tags...)
	if err := fn(&m); err != nil {
		return err
	}
	m.Version = storage.CurrentManifestVersion
	m.Created = e.project.Manifest.Created
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return errors.New("title must not be empty")
	}
	if !m.ProjectType.Valid() {
		return fmt.Errorf("unknown project type %q", m.ProjectType)
	}
	data, err := storage.EncodeManifest(m)
	if err != nil {
		return err
	}
	if err := storage.ValidateManifestJSON(data); err != nil {
		return err
	}
	if m.ProjectType != e.project.Manifest.ProjectType {
		if created := e.project.Collections.EnsureFor(m.ProjectType); len(created) > 0 {
			e.log.Info("collections enabled for project type",
				slog.String("type", string(m.ProjectType)), slog.Any("created", created))
		}
	}
	e.project.Manifest = m
	e.changedLocked()
	return nil
}

// AddAttachment copies a file into the project's images and returns its
// member name.
func (e *Engine) AddAttachment(src string) (name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("attach", &err)
	if err := e.requireOpen(); err != nil {
		return "", err
	}
	name, err = e.wd.AddAttachment(src)
	if err != nil {
		return "", err
	}
	e.dirty = true
	return name, nil
}

// Manifest returns a copy of the project metadata.
func (e *Engine) Manifest() (domain.Manifest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOpen(); err != nil {
		return domain.Manifest{}, err
	}
	m := e.project.Manifest
	m.Tags = append([]string(nil), m.Tags...)
	return m, nil
}

// FullText is the whole manuscript as plain text with heading markers.
func (e *Engine) FullText() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOpen(); err != nil {
		return "", err
	}
	return e.project.Structure.FullText(), nil
}

// WordCount of the whole manuscript.
func (e *Engine) WordCount() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOpen(); err != nil {
		return 0, err
	}
	return e.project.Structure.WordCount(), nil
}

// Summary is a read-only overview of the open project.
type Summary struct {
	Path        string
	Title       string
	Author      string
	Kind        domain.ProjectKind
	KindName    string
	Language    string
	Mode        manuscript.Mode
	Target      domain.WordRange
	TargetWords int
	Stats       manuscript.Stats
	Collections map[collections.Kind]int
	Modified    time.Time
	Dirty       bool
}

func (e *Engine) Summary() (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOpen(); err != nil {
		return Summary{}, err
	}
	m := e.project.Manifest
	s := Summary{
		Path:        e.path,
		Title:       m.Title,
		Author:      m.Author,
		Kind:        m.ProjectType,
		KindName:    m.ProjectType.DisplayName(),
		Language:    m.Language,
		Mode:        e.project.Structure.Mode(),
		Target:      m.ProjectType.TargetWords(),
		TargetWords: m.TargetWordCount,
		Stats:       e.project.Structure.Stats(),
		Collections: map[collections.Kind]int{},
		Modified:    m.Modified.Time,
		Dirty:       e.dirty,
	}
	for _, k := range e.project.Collections.EnabledKinds() {
		s.Collections[k] = e.project.Collections.Count(k)
	}
	return s, nil
}

// Search looks up free text in the open project. Text is matched word by
// word; q.Types narrows the document types.
func (e *Engine) Search(ctx context.Context, q storage.SearchQuery) (res []storage.SearchResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("search", &err)
	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	if e.index == nil {
		return nil, ErrNoIndex
	}
	if e.indexStale {
		if err := e.index.Rebuild(ctx, e.project); err != nil {
			return nil, fmt.Errorf("refresh index: %w", err)
		}
		e.indexStale = false
	}
	q.Text = storage.MatchTerms(q.Text)
	return e.index.Search(ctx, q)
}
