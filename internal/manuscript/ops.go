/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package manuscript

import (
	"fmt"
	"slices"
)

type node interface {
	nodeID() string
	setOrder(int)
}

func (s *Scene) nodeID() string   { return s.ID }
func (s *Scene) setOrder(i int)   { s.Order = i }
func (c *Chapter) nodeID() string { return c.ID }
func (c *Chapter) setOrder(i int) { c.Order = i }
func (p *Part) nodeID() string    { return p.ID }
func (p *Part) setOrder(i int)    { p.Order = i }

func renumber[T node](xs []T) {
	for i, x := range xs {
		x.setOrder(i)
	}
}

// insertAt places x at position order, or appends when order is Append or out of range.
func insertAt[T node](xs []T, x T, order int) []T {
	if order < 0 || order >= len(xs) {
		xs = append(xs, x)
	} else {
		xs = slices.Insert(xs, order, x)
	}
	renumber(xs)
	return xs
}

func indexOf[T node](xs []T, id string) int {
	return slices.IndexFunc(xs, func(x T) bool { return x.nodeID() == id })
}

func removeAt[T node](xs []T, i int) []T {
	xs = slices.Delete(xs, i, i+1)
	renumber(xs)
	return xs
}

// permute returns xs arranged as ids. ids must name every sibling exactly once.
func permute[T node](xs []T, ids []string) ([]T, error) {
	if len(ids) != len(xs) {
		return nil, fmt.Errorf("got %d identifiers for %d siblings: %w", len(ids), len(xs), ErrReorderMismatch)
	}
	byID := make(map[string]T, len(xs))
	for _, x := range xs {
		byID[x.nodeID()] = x
	}
	out := make([]T, 0, len(xs))
	for _, id := range ids {
		x, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown or repeated identifier %q: %w", id, ErrReorderMismatch)
		}
		delete(byID, id)
		out = append(out, x)
	}
	renumber(out)
	return out, nil
}

// AddPart appends or inserts a new part with its Chapter 1/Scene 1.
func (s *Structure) AddPart(title string, order int) (*Part, error) {
	if !s.UseParts {
		return nil, errWrongMode("parts need a three-level structure")
	}
	p := NewPart(title, order)
	s.Parts = insertAt(s.Parts, p, order)
	return p, nil
}

// AddChapter adds a chapter with its Scene 1. partID must be empty in two-level mode.
func (s *Structure) AddChapter(partID, title string, order int) (*Chapter, error) {
	list, err := s.chapterList(partID)
	if err != nil {
		return nil, err
	}
	c := NewChapter(title, order)
	*list = insertAt(*list, c, order)
	return c, nil
}

// AddScene adds an empty scene to a chapter.
func (s *Structure) AddScene(chapterID, title string, order int) (*Scene, error) {
	c, ok := s.Chapter(chapterID)
	if !ok {
		return nil, notFound("chapter", chapterID)
	}
	sc := NewScene(title, order, "")
	c.Scenes = insertAt(c.Scenes, sc, order)
	return sc, nil
}

func (s *Structure) RenamePart(id, title string) error {
	p, ok := s.Part(id)
	if !ok {
		return notFound("part", id)
	}
	p.Title = title
	return nil
}

func (s *Structure) RenameChapter(id, title string) error {
	c, ok := s.Chapter(id)
	if !ok {
		return notFound("chapter", id)
	}
	c.Title = title
	return nil
}

func (s *Structure) RenameScene(id, title string) error {
	sc, ok := s.Scene(id)
	if !ok {
		return notFound("scene", id)
	}
	sc.Title = title
	sc.Modified = nowStamp()
	return nil
}

// SetPartNotes replaces the synopsis and notes of a part.
func (s *Structure) SetPartNotes(id, synopsis, notes string) error {
	p, ok := s.Part(id)
	if !ok {
		return notFound("part", id)
	}
	p.Synopsis, p.Notes = synopsis, notes
	return nil
}

// SetChapterNotes replaces the synopsis and notes of a chapter.
func (s *Structure) SetChapterNotes(id, synopsis, notes string) error {
	c, ok := s.Chapter(id)
	if !ok {
		return notFound("chapter", id)
	}
	c.Synopsis, c.Notes = synopsis, notes
	return nil
}

// SetSceneNotes replaces the synopsis and notes of a scene.
func (s *Structure) SetSceneNotes(id, synopsis, notes string) error {
	sc, ok := s.Scene(id)
	if !ok {
		return notFound("scene", id)
	}
	sc.Synopsis, sc.Notes = synopsis, notes
	sc.Modified = nowStamp()
	return nil
}

// UpdateSceneContent replaces a scene body, recomputing its word count.
func (s *Structure) UpdateSceneContent(id, content string) error {
	sc, ok := s.Scene(id)
	if !ok {
		return notFound("scene", id)
	}
	sc.SetContent(content)
	return nil
}

// DeletePart removes a part with all its chapters. The only part cannot go.
func (s *Structure) DeletePart(id string) error {
	if !s.UseParts {
		return errWrongMode("no parts in a two-level structure")
	}
	i := indexOf(s.Parts, id)
	if i < 0 {
		return notFound("part", id)
	}
	if len(s.Parts) <= 1 {
		return ErrLastPart
	}
	p := s.Parts[i]
	for _, c := range p.Chapters {
		s.clearCurrentIn(c)
	}
	s.Parts = removeAt(s.Parts, i)
	return nil
}

// DeleteChapter removes a chapter with all its scenes.
func (s *Structure) DeleteChapter(id string) error {
	var list *[]*Chapter
	if s.UseParts {
		p, ok := s.PartOf(id)
		if !ok {
			return notFound("chapter", id)
		}
		list = &p.Chapters
	} else {
		list = &s.Chapters
	}
	i := indexOf(*list, id)
	if i < 0 {
		return notFound("chapter", id)
	}
	s.clearCurrentIn((*list)[i])
	*list = removeAt(*list, i)
	return nil
}

// DeleteScene removes a scene. The last scene of a chapter cannot go.
func (s *Structure) DeleteScene(id string) error {
	c, ok := s.ChapterOf(id)
	if !ok {
		return notFound("scene", id)
	}
	if len(c.Scenes) <= 1 {
		return ErrLastScene
	}
	c.Scenes = removeAt(c.Scenes, indexOf(c.Scenes, id))
	if s.CurrentSceneID == id {
		s.CurrentSceneID = ""
	}
	return nil
}

func (s *Structure) clearCurrentIn(c *Chapter) {
	if s.CurrentSceneID == "" {
		return
	}
	if indexOf(c.Scenes, s.CurrentSceneID) >= 0 {
		s.CurrentSceneID = ""
	}
}

// ReorderParts arranges the parts as ids. Nothing changes on error.
func (s *Structure) ReorderParts(ids []string) error {
	if !s.UseParts {
		return errWrongMode("no parts in a two-level structure")
	}
	out, err := permute(s.Parts, ids)
	if err != nil {
		return err
	}
	s.Parts = out
	return nil
}

// ReorderChapters arranges the chapters of a part (or of the root in two-level
// mode, with partID empty) as ids. Nothing changes on error.
func (s *Structure) ReorderChapters(partID string, ids []string) error {
	list, err := s.chapterList(partID)
	if err != nil {
		return err
	}
	out, err := permute(*list, ids)
	if err != nil {
		return err
	}
	*list = out
	return nil
}

// ReorderScenes arranges the scenes of a chapter as ids. Nothing changes on error.
func (s *Structure) ReorderScenes(chapterID string, ids []string) error {
	c, ok := s.Chapter(chapterID)
	if !ok {
		return notFound("chapter", chapterID)
	}
	out, err := permute(c.Scenes, ids)
	if err != nil {
		return err
	}
	c.Scenes = out
	return nil
}

// MoveScene moves a scene to position order of another (or the same) chapter.
// A move that would empty the source chapter is rejected.
func (s *Structure) MoveScene(sceneID, toChapterID string, order int) error {
	from, ok := s.ChapterOf(sceneID)
	if !ok {
		return notFound("scene", sceneID)
	}
	to, ok := s.Chapter(toChapterID)
	if !ok {
		return notFound("chapter", toChapterID)
	}
	i := indexOf(from.Scenes, sceneID)
	sc := from.Scenes[i]
	if from == to {
		rest := slices.Delete(slices.Clone(from.Scenes), i, i+1)
		from.Scenes = insertAt(rest, sc, order)
		return nil
	}
	if len(from.Scenes) <= 1 {
		return ErrLastScene
	}
	from.Scenes = removeAt(from.Scenes, i)
	to.Scenes = insertAt(to.Scenes, sc, order)
	return nil
}

// ConvertToParts switches a two-level structure to three-level by wrapping all
// chapters into one new part.
func (s *Structure) ConvertToParts(title string) (*Part, error) {
	if s.UseParts {
		return nil, errWrongMode("structure already uses parts")
	}
	p := &Part{ID: newID(), Title: title, Order: 0, Chapters: s.Chapters}
	if len(p.Chapters) == 0 {
		c := NewChapter("Chapter 1", 0)
		p.Chapters = []*Chapter{c}
		s.CurrentSceneID = c.Scenes[0].ID
	}
	renumber(p.Chapters)
	s.Chapters = nil
	s.Parts = []*Part{p}
	s.UseParts = true
	return p, nil
}
