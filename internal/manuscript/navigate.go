/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package manuscript

import (
	"strings"
)

// FirstScene is the first scene in document order.
func (s *Structure) FirstScene() (*Scene, bool) {
	all := s.Scenes()
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// NextScene returns the scene following id in document order, crossing
// chapter and part boundaries.
func (s *Structure) NextScene(id string) (*Scene, bool) {
	all := s.Scenes()
	for i, sc := range all {
		if sc.ID == id {
			if i+1 < len(all) {
				return all[i+1], true
			}
			break
		}
	}
	return nil, false
}

// PreviousScene returns the scene preceding id in document order.
func (s *Structure) PreviousScene(id string) (*Scene, bool) {
	all := s.Scenes()
	for i, sc := range all {
		if sc.ID == id {
			if i > 0 {
				return all[i-1], true
			}
			break
		}
	}
	return nil, false
}

// SetCurrentScene records the editing position.
func (s *Structure) SetCurrentScene(id string) error {
	if _, ok := s.Scene(id); !ok {
		return notFound("scene", id)
	}
	s.CurrentSceneID = id
	return nil
}

// CurrentScene resolves the editing position. A stale reference reports false.
func (s *Structure) CurrentScene() (*Scene, bool) {
	return s.Scene(s.CurrentSceneID)
}

// WordCount is the total over all scenes.
func (s *Structure) WordCount() int {
	n := 0
	for _, c := range s.AllChapters() {
		n += c.WordCount()
	}
	return n
}

func (s *Structure) SceneWordCount(id string) (int, error) {
	sc, ok := s.Scene(id)
	if !ok {
		return 0, notFound("scene", id)
	}
	return sc.WordCount, nil
}

func (s *Structure) ChapterWordCount(id string) (int, error) {
	c, ok := s.Chapter(id)
	if !ok {
		return 0, notFound("chapter", id)
	}
	return c.WordCount(), nil
}

func (s *Structure) PartWordCount(id string) (int, error) {
	p, ok := s.Part(id)
	if !ok {
		return 0, notFound("part", id)
	}
	return p.WordCount(), nil
}

// FullText renders the manuscript as plain text with a heading line at every
// part ("# ") and chapter boundary ("## " under parts, "# " otherwise).
// Scene bodies are separated by blank lines; empty scenes are skipped.
func (s *Structure) FullText() string {
	var b strings.Builder
	writeChapter := func(c *Chapter, marker string) {
		b.WriteString("\n\n")
		b.WriteString(marker)
		b.WriteString(c.Title)
		b.WriteString("\n\n")
		for _, sc := range c.Scenes {
			if t := sc.PlainText(); strings.TrimSpace(t) != "" {
				b.WriteString(t)
				b.WriteString("\n\n")
			}
		}
	}
	if s.UseParts {
		for _, p := range s.Parts {
			b.WriteString("\n\n# ")
			b.WriteString(p.Title)
			b.WriteString("\n")
			for _, c := range p.Chapters {
				writeChapter(c, "## ")
			}
		}
	} else {
		for _, c := range s.Chapters {
			writeChapter(c, "# ")
		}
	}
	return strings.TrimSpace(b.String())
}

// Stats summarizes the tree for read-only consumers.
type Stats struct {
	Parts    int
	Chapters int
	Scenes   int
	Words    int
}

func (s *Structure) Stats() Stats {
	chapters := s.AllChapters()
	st := Stats{Parts: len(s.Parts), Chapters: len(chapters)}
	for _, c := range chapters {
		st.Scenes += len(c.Scenes)
		st.Words += c.WordCount()
	}
	return st
}
