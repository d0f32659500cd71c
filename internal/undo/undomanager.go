/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps per-scene content history for the editor.
package undo

import (
	"sync"
	"time"
)

// Snapshot is one earlier content state of a scene.
type Snapshot struct {
	SceneID string
	Content string
	TS      time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerScene limits number of snapshots per scene kept in memory (0 means unlimited).
	MaxPerScene int
	// MinInterval coalesces edits of the same scene within the interval into
	// one undo step, so a typing burst is undone at once.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per scene with performance safeguards.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-scene stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting over both stacks
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	// Set conservative defaults if not provided
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Record stores the content a scene had before an edit made at ts. An edit
// within MinInterval of the previous one extends that step instead of
// pushing a new one. Any new edit invalidates the scene's redo stack.
func (m *Manager) Record(sceneID, before string, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(sceneID)
	stack := m.undo[sceneID]
	if n := len(stack); n > 0 && ts.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		// Coalesce: keep the older state, extend the burst.
		stack[n-1].TS = ts
		return
	}
	m.undo[sceneID] = append(stack, Snapshot{SceneID: sceneID, Content: before, TS: ts})
	m.totalBytes += len(before)
	m.enforceCapsLocked(sceneID)
}

// Undo pops the last earlier state of the scene. current is kept for Redo.
func (m *Manager) Undo(sceneID, current string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[sceneID]
	if len(stack) == 0 {
		return "", false
	}
	s := stack[len(stack)-1]
	m.setUndoLocked(sceneID, stack[:len(stack)-1])
	m.totalBytes -= len(s.Content)
	m.redo[sceneID] = append(m.redo[sceneID], Snapshot{SceneID: sceneID, Content: current, TS: s.TS})
	m.totalBytes += len(current)
	return s.Content, true
}

// Redo reapplies the last undone state. current goes back on the undo stack.
func (m *Manager) Redo(sceneID, current string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[sceneID]
	if len(r) == 0 {
		return "", false
	}
	s := r[len(r)-1]
	if len(r) == 1 {
		delete(m.redo, sceneID)
	} else {
		m.redo[sceneID] = r[:len(r)-1]
	}
	m.totalBytes -= len(s.Content)
	m.undo[sceneID] = append(m.undo[sceneID], Snapshot{SceneID: sceneID, Content: current, TS: s.TS})
	m.totalBytes += len(current)
	m.enforceCapsLocked(sceneID)
	return s.Content, true
}

func (m *Manager) CanUndo(sceneID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[sceneID]) > 0
}

func (m *Manager) CanRedo(sceneID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[sceneID]) > 0
}

// ClearScene clears undo/redo stacks for a scene to free memory.
func (m *Manager) ClearScene(sceneID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[sceneID] {
		m.totalBytes -= len(s.Content)
	}
	m.dropRedoLocked(sceneID)
	delete(m.undo, sceneID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Reset drops all history.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = make(map[string][]Snapshot)
	m.redo = make(map[string][]Snapshot)
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, scenes int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scenes = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, scenes, totalSnapshots
}

func (m *Manager) dropRedoLocked(sceneID string) {
	for _, s := range m.redo[sceneID] {
		m.totalBytes -= len(s.Content)
	}
	delete(m.redo, sceneID)
}

func (m *Manager) setUndoLocked(sceneID string, stack []Snapshot) {
	if len(stack) == 0 {
		delete(m.undo, sceneID)
		return
	}
	m.undo[sceneID] = stack
}

func (m *Manager) enforceCapsLocked(sceneID string) {
	// Per-scene depth cap
	if m.cfg.MaxPerScene > 0 {
		stack := m.undo[sceneID]
		if len(stack) > m.cfg.MaxPerScene {
			// drop the oldest extras
			toDrop := len(stack) - m.cfg.MaxPerScene
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Content)
			}
			m.undo[sceneID] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest undo entries across all scenes
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestScene := ""
		found := false
		var oldestTS time.Time
		for id, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestScene = id
				oldestTS = stack[0].TS
				found = true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestScene]
		m.totalBytes -= len(stack[0].Content)
		m.setUndoLocked(oldestScene, stack[1:])
	}
}
