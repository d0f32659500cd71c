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
	"sort"
	"strings"

	"novelist/internal/domain"
)

// Validate checks every structural invariant of a tree.
func (s *Structure) Validate() error {
	if s.UseParts && len(s.Chapters) > 0 {
		return fmt.Errorf("%w: root chapters present in three-level mode", ErrInvariant)
	}
	if !s.UseParts && len(s.Parts) > 0 {
		return fmt.Errorf("%w: parts present in two-level mode", ErrInvariant)
	}
	seen := map[string]string{}
	claim := func(kind, id string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: %s without identifier", ErrInvariant, kind)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("%w: identifier %q used by a %s and a %s", ErrInvariant, id, prev, kind)
		}
		seen[id] = kind
		return nil
	}
	checkChapters := func(chs []*Chapter) error {
		for i, c := range chs {
			if c == nil {
				return fmt.Errorf("%w: nil chapter", ErrInvariant)
			}
			if err := claim("chapter", c.ID); err != nil {
				return err
			}
			if c.Order != i {
				return fmt.Errorf("%w: chapter %q has order %d at position %d", ErrInvariant, c.ID, c.Order, i)
			}
			if len(c.Scenes) == 0 {
				return fmt.Errorf("%w: chapter %q has no scenes", ErrInvariant, c.ID)
			}
			for j, sc := range c.Scenes {
				if sc == nil {
					return fmt.Errorf("%w: nil scene", ErrInvariant)
				}
				if err := claim("scene", sc.ID); err != nil {
					return err
				}
				if sc.Order != j {
					return fmt.Errorf("%w: scene %q has order %d at position %d", ErrInvariant, sc.ID, sc.Order, j)
				}
			}
		}
		return nil
	}
	if !s.UseParts {
		return checkChapters(s.Chapters)
	}
	for i, p := range s.Parts {
		if p == nil {
			return fmt.Errorf("%w: nil part", ErrInvariant)
		}
		if err := claim("part", p.ID); err != nil {
			return err
		}
		if p.Order != i {
			return fmt.Errorf("%w: part %q has order %d at position %d", ErrInvariant, p.ID, p.Order, i)
		}
		if err := checkChapters(p.Chapters); err != nil {
			return err
		}
	}
	return nil
}

// Normalize repairs a freshly decoded tree: siblings are sorted by their stored
// order (ties keep file order) and renumbered, chapters without scenes get a
// Scene 1, missing identifiers are generated, word counts are recomputed and a stale current scene is
// dropped. It does not fix duplicate identifiers; Validate reports those.
func (s *Structure) Normalize() {
	fixChapters := func(chs []*Chapter) []*Chapter {
		chs = compact(chs)
		sort.SliceStable(chs, func(i, j int) bool { return chs[i].Order < chs[j].Order })
		renumber(chs)
		for _, c := range chs {
			if c.ID == "" {
				c.ID = newID()
			}
			c.Scenes = compact(c.Scenes)
			if len(c.Scenes) == 0 {
				c.Scenes = []*Scene{NewScene("Scene 1", 0, "")}
			}
			sort.SliceStable(c.Scenes, func(i, j int) bool { return c.Scenes[i].Order < c.Scenes[j].Order })
			renumber(c.Scenes)
			for _, sc := range c.Scenes {
				if sc.ID == "" {
					sc.ID = newID()
				}
				sc.WordCount = domain.CountWords(sc.Content)
			}
		}
		return chs
	}
	if s.UseParts {
		s.Parts = compact(s.Parts)
		sort.SliceStable(s.Parts, func(i, j int) bool { return s.Parts[i].Order < s.Parts[j].Order })
		renumber(s.Parts)
		for _, p := range s.Parts {
			if p.ID == "" {
				p.ID = newID()
			}
			p.Chapters = fixChapters(p.Chapters)
		}
	} else {
		s.Chapters = fixChapters(s.Chapters)
	}
	if _, ok := s.CurrentScene(); !ok {
		s.CurrentSceneID = ""
	}
}

func compact[T comparable](xs []T) []T {
	var zero T
	out := xs[:0]
	for _, x := range xs {
		if x != zero {
			out = append(out, x)
		}
	}
	return out
}
