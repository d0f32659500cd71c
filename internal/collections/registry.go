/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package collections is the fixed catalog of auxiliary record collections a
// project may carry, which of them apply to each project kind, and the typed
// in-memory sets the engine edits.
package collections

import (
	"strings"

	"novelist/internal/domain"
)

// Kind names an auxiliary collection. It doubles as the archive member stem.
type Kind string

const (
	Characters    Kind = "characters"
	Locations     Kind = "locations"
	Research      Kind = "research"
	Timeline      Kind = "timeline"
	Sources       Kind = "sources"
	Notes         Kind = "notes"
	Worldbuilding Kind = "worldbuilding"
	Keywords      Kind = "keywords"
)

var catalog = []Kind{Characters, Locations, Research, Timeline, Sources, Notes, Worldbuilding, Keywords}

// All lists the catalog in archive order.
func All() []Kind { return append([]Kind(nil), catalog...) }

// FileName is the archive member holding the collection.
func (k Kind) FileName() string { return string(k) + ".json" }

// Mandatory collections are written for every project, whatever its kind.
func (k Kind) Mandatory() bool { return k == Characters }

// Valid reports whether k is in the catalog.
func (k Kind) Valid() bool {
	for _, c := range catalog {
		if c == k {
			return true
		}
	}
	return false
}

// Lookup maps an archive member name back to its collection.
func Lookup(fileName string) (Kind, bool) {
	stem, ok := strings.CutSuffix(fileName, ".json")
	if !ok {
		return "", false
	}
	k := Kind(stem)
	return k, k.Valid()
}

var byProjectKind = map[domain.ProjectKind][]Kind{
	domain.KindNovel:           {Characters, Locations, Research, Timeline, Worldbuilding, Notes},
	domain.KindShortStory:      {Characters, Locations, Notes},
	domain.KindArticleMagazine: {Sources, Keywords, Notes},
	domain.KindArticleSocial:   {Keywords, Notes},
	domain.KindPoetry:          {Notes},
	domain.KindScreenplay:      {Characters, Locations, Notes},
	domain.KindEssay:           {Sources, Notes},
	domain.KindResearchPaper:   {Sources, Notes},
}

// ForProjectKind lists the collections that apply to a project kind.
// Unknown kinds get the novel set.
func ForProjectKind(pk domain.ProjectKind) []Kind {
	ks, ok := byProjectKind[pk]
	if !ok {
		ks = byProjectKind[domain.KindNovel]
	}
	return append([]Kind(nil), ks...)
}

// Applies reports whether k belongs to the set of pk.
func Applies(pk domain.ProjectKind, k Kind) bool {
	for _, c := range ForProjectKind(pk) {
		if c == k {
			return true
		}
	}
	return false
}
