/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package manuscript is the in-memory Part/Chapter/Scene tree of a project.
//
// The tree owns its nodes. Sibling order values are kept as a contiguous
// 0-based sequence that mirrors slice position; every structural change
// renumbers the affected siblings. Operations that would break an invariant
// leave the tree untouched and return an error wrapping ErrInvariant.
// The package does no I/O.
package manuscript

import (
	"strings"
	"time"

	"novelist/internal/domain"
)

// Mode selects between the legacy Chapter/Scene tree and the Part/Chapter/Scene tree.
type Mode string

const (
	TwoLevel   Mode = "two-level"
	ThreeLevel Mode = "three-level"
)

// Append as an order value adds the node after its last sibling.
const Append = -1

var now = time.Now

type Scene struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Order     int              `json:"order"`
	WordCount int              `json:"word_count"`
	Created   domain.Timestamp `json:"created_date"`
	Modified  domain.Timestamp `json:"modified_date"`
	Synopsis  string           `json:"synopsis,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// NewScene builds a scene with a fresh identifier. The word count is derived
// from content.
func NewScene(title string, order int, content string) *Scene {
	t := domain.At(now())
	return &Scene{
		ID:        domain.NewID(),
		Title:     title,
		Content:   content,
		Order:     order,
		WordCount: domain.CountWords(content),
		Created:   t,
		Modified:  t,
	}
}

// SetContent replaces the body. Word count and modification time always move together.
func (s *Scene) SetContent(content string) {
	s.Content = content
	s.WordCount = domain.CountWords(content)
	s.Modified = domain.At(now())
}

// PlainText is the content with markup stripped.
func (s *Scene) PlainText() string { return domain.PlainText(s.Content) }

type Chapter struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Order    int      `json:"order"`
	Synopsis string   `json:"synopsis,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	Scenes   []*Scene `json:"scenes"`
}

// NewChapter returns a chapter holding a single empty "Scene 1".
func NewChapter(title string, order int) *Chapter {
	return &Chapter{
		ID:     domain.NewID(),
		Title:  title,
		Order:  order,
		Scenes: []*Scene{NewScene("Scene 1", 0, "")},
	}
}

// WordCount sums the scene counts.
func (c *Chapter) WordCount() int {
	n := 0
	for _, s := range c.Scenes {
		n += s.WordCount
	}
	return n
}

type Part struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Order    int        `json:"order"`
	Synopsis string     `json:"synopsis,omitempty"`
	Notes    string     `json:"notes,omitempty"`
	Chapters []*Chapter `json:"chapters"`
}

// NewPart returns a part holding "Chapter 1" with its "Scene 1".
func NewPart(title string, order int) *Part {
	return &Part{
		ID:       domain.NewID(),
		Title:    title,
		Order:    order,
		Chapters: []*Chapter{NewChapter("Chapter 1", 0)},
	}
}

// WordCount sums the chapter counts.
func (p *Part) WordCount() int {
	n := 0
	for _, c := range p.Chapters {
		n += c.WordCount()
	}
	return n
}

// Structure is the manuscript root. Exactly one of Parts and Chapters is used,
// selected by UseParts. CurrentSceneID is a weak reference and is checked
// against the tree on every read.
type Structure struct {
	UseParts       bool       `json:"use_parts"`
	Parts          []*Part    `json:"parts,omitempty"`
	Chapters       []*Chapter `json:"chapters,omitempty"`
	CurrentSceneID string     `json:"current_scene_id,omitempty"`
}

// New returns an empty root in the given mode.
func New(mode Mode) *Structure {
	return &Structure{UseParts: mode == ThreeLevel}
}

// NewDefault returns a root with one Chapter 1/Scene 1 (wrapped in Part 1 in
// three-level mode) and the current scene pointing at it.
func NewDefault(mode Mode) *Structure {
	s := New(mode)
	if s.UseParts {
		p := NewPart("Part 1", 0)
		s.Parts = []*Part{p}
		s.CurrentSceneID = p.Chapters[0].Scenes[0].ID
		return s
	}
	c := NewChapter("Chapter 1", 0)
	s.Chapters = []*Chapter{c}
	s.CurrentSceneID = c.Scenes[0].ID
	return s
}

// FromText rebuilds a legacy single-text manuscript: one Chapter 1 holding one
// Scene 1 with the text as content. The text is plain, so its word count is
// the number of whitespace separated tokens whatever characters it holds.
func FromText(text string) *Structure {
	s := New(TwoLevel)
	c := &Chapter{ID: domain.NewID(), Title: "Chapter 1"}
	sc := NewScene("Scene 1", 0, text)
	sc.WordCount = len(strings.Fields(text))
	c.Scenes = []*Scene{sc}
	s.Chapters = []*Chapter{c}
	s.CurrentSceneID = sc.ID
	return s
}

// Mode reports the current structure mode.
func (s *Structure) Mode() Mode {
	if s.UseParts {
		return ThreeLevel
	}
	return TwoLevel
}

// AllChapters lists chapters in document order regardless of mode.
func (s *Structure) AllChapters() []*Chapter {
	if !s.UseParts {
		return append([]*Chapter(nil), s.Chapters...)
	}
	var out []*Chapter
	for _, p := range s.Parts {
		out = append(out, p.Chapters...)
	}
	return out
}

// Scenes lists every scene in document order.
func (s *Structure) Scenes() []*Scene {
	var out []*Scene
	for _, c := range s.AllChapters() {
		out = append(out, c.Scenes...)
	}
	return out
}

// Part looks up a part by id.
func (s *Structure) Part(id string) (*Part, bool) {
	for _, p := range s.Parts {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Chapter looks up a chapter by id.
func (s *Structure) Chapter(id string) (*Chapter, bool) {
	for _, c := range s.AllChapters() {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Scene looks up a scene by id.
func (s *Structure) Scene(id string) (*Scene, bool) {
	if id == "" {
		return nil, false
	}
	for _, c := range s.AllChapters() {
		for _, sc := range c.Scenes {
			if sc.ID == id {
				return sc, true
			}
		}
	}
	return nil, false
}

// ChapterOf returns the chapter that holds the scene.
func (s *Structure) ChapterOf(sceneID string) (*Chapter, bool) {
	for _, c := range s.AllChapters() {
		for _, sc := range c.Scenes {
			if sc.ID == sceneID {
				return c, true
			}
		}
	}
	return nil, false
}

// PartOf returns the part that holds the chapter (three-level mode only).
func (s *Structure) PartOf(chapterID string) (*Part, bool) {
	for _, p := range s.Parts {
		for _, c := range p.Chapters {
			if c.ID == chapterID {
				return p, true
			}
		}
	}
	return nil, false
}

// chapterList returns the slice chapters of partID live in, so callers can splice it.
func (s *Structure) chapterList(partID string) (*[]*Chapter, error) {
	if !s.UseParts {
		if partID != "" {
			return nil, errWrongMode("chapters attach to the root in two-level mode")
		}
		return &s.Chapters, nil
	}
	p, ok := s.Part(partID)
	if !ok {
		return nil, notFound("part", partID)
	}
	return &p.Chapters, nil
}

func nowStamp() domain.Timestamp { return domain.At(now()) }

func newID() string { return domain.NewID() }

// Clone returns a deep copy sharing no nodes with s.
func (s *Structure) Clone() *Structure {
	out := &Structure{UseParts: s.UseParts, CurrentSceneID: s.CurrentSceneID}
	if s.Parts != nil {
		out.Parts = make([]*Part, len(s.Parts))
		for i, p := range s.Parts {
			if p == nil {
				continue
			}
			cp := *p
			cp.Chapters = cloneChapters(p.Chapters)
			out.Parts[i] = &cp
		}
	}
	out.Chapters = cloneChapters(s.Chapters)
	return out
}

func cloneChapters(chs []*Chapter) []*Chapter {
	if chs == nil {
		return nil
	}
	out := make([]*Chapter, len(chs))
	for i, c := range chs {
		if c == nil {
			continue
		}
		cc := *c
		if c.Scenes != nil {
			cc.Scenes = make([]*Scene, len(c.Scenes))
			for j, sc := range c.Scenes {
				if sc == nil {
					continue
				}
				cs := *sc
				cc.Scenes[j] = &cs
			}
		}
		out[i] = &cc
	}
	return out
}
