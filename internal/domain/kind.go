/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"strings"
)

// ProjectKind selects the auxiliary collections a project carries and the
// length heuristics offered to the writer.
type ProjectKind string

const (
	KindNovel           ProjectKind = "novel"
	KindShortStory      ProjectKind = "short_story"
	KindArticleMagazine ProjectKind = "article_magazine"
	KindArticleSocial   ProjectKind = "article_social"
	KindPoetry          ProjectKind = "poetry"
	KindScreenplay      ProjectKind = "screenplay"
	KindEssay           ProjectKind = "essay"
	KindResearchPaper   ProjectKind = "research_paper"
)

// WordRange is a typical target length for a kind.
type WordRange struct {
	Min int
	Max int
}

type kindInfo struct {
	name  string
	words WordRange
}

var kinds = map[ProjectKind]kindInfo{
	KindNovel:           {"Novel", WordRange{50000, 120000}},
	KindShortStory:      {"Short Story", WordRange{1000, 20000}},
	KindArticleMagazine: {"Magazine Article", WordRange{500, 5000}},
	KindArticleSocial:   {"Social Media Post", WordRange{50, 300}},
	KindPoetry:          {"Poetry", WordRange{0, 10000}},
	KindScreenplay:      {"Screenplay", WordRange{15000, 30000}},
	KindEssay:           {"Essay", WordRange{2000, 10000}},
	KindResearchPaper:   {"Research Paper", WordRange{5000, 15000}},
}

// AllKinds lists every kind in a stable order.
func AllKinds() []ProjectKind {
	return []ProjectKind{
		KindNovel, KindShortStory, KindArticleMagazine, KindArticleSocial,
		KindPoetry, KindScreenplay, KindEssay, KindResearchPaper,
	}
}

// ParseProjectKind maps s to a kind. Unknown values yield KindNovel and ok=false;
// callers decide whether to warn.
func ParseProjectKind(s string) (ProjectKind, bool) {
	k := ProjectKind(strings.ToLower(strings.TrimSpace(s)))
	if _, found := kinds[k]; found {
		return k, true
	}
	return KindNovel, false
}

// Valid reports whether k is a known kind.
func (k ProjectKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// DisplayName is the English label of the kind.
func (k ProjectKind) DisplayName() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return string(k)
}

// TargetWords is the typical length range for the kind.
func (k ProjectKind) TargetWords() WordRange {
	return kinds[k].words
}

// UnmarshalJSON applies the default-on-unknown policy so a manifest with a
// kind written by a newer app still opens.
func (k *ProjectKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k, _ = ParseProjectKind(s)
	return nil
}
