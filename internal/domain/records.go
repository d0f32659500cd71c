/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Record is implemented by every auxiliary collection entry.
type Record interface {
	RecordID() string
	SetRecordID(id string)
	Stamp(now time.Time)
	Label() string
}

// Base carries the identity and timestamps shared by all records.
type Base struct {
	ID       string    `json:"id"`
	Created  Timestamp `json:"created_date"`
	Modified Timestamp `json:"modified_date"`
}

// NewID returns a fresh record or node identifier.
func NewID() string { return uuid.NewString() }

func (b *Base) RecordID() string      { return b.ID }
func (b *Base) SetRecordID(id string) { b.ID = id }

// Stamp sets Modified to now and fills Created on first use.
func (b *Base) Stamp(now time.Time) {
	if b.Created.IsZero() {
		b.Created = At(now)
	}
	b.Modified = At(now)
}

// Character images are identifiers of files under images/ in the archive.
type Character struct {
	Base
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

func (c *Character) Label() string { return c.Name }

type Location struct {
	Base
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Images            []string `json:"images"`
	CharactersPresent []string `json:"characters_present"`
	Notes             string   `json:"notes"`
	LocationType      string   `json:"location_type"`
	ParentLocationID  string   `json:"parent_location_id,omitempty"`
}

func (l *Location) Label() string { return l.Name }

type ResearchNote struct {
	Base
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Sources  []string `json:"sources"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

func (r *ResearchNote) Label() string { return r.Title }

// TimelineEvent.Date is the in-story date, free form.
type TimelineEvent struct {
	Base
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Characters  []string `json:"characters"`
	Locations   []string `json:"locations"`
	SortOrder   int      `json:"sort_order"`
}

func (e *TimelineEvent) Label() string { return e.Title }

type Source struct {
	Base
	Title           string `json:"title"`
	Author          string `json:"author"`
	URL             string `json:"url"`
	Citation        string `json:"citation"`
	Notes           string `json:"notes"`
	SourceType      string `json:"source_type"`
	AccessDate      string `json:"access_date"`
	PublicationDate string `json:"publication_date"`
	Publisher       string `json:"publisher"`
	DOI             string `json:"doi"`
}

func (s *Source) Label() string { return s.Title }

type Note struct {
	Base
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	Tags              []string `json:"tags"`
	LinkedToScene     string   `json:"linked_to_scene,omitempty"`
	LinkedToCharacter string   `json:"linked_to_character,omitempty"`
	LinkedToLocation  string   `json:"linked_to_location,omitempty"`
	Color             string   `json:"color"`
	Pinned            bool     `json:"pinned"`
}

func (n *Note) Label() string { return n.Title }

type WorldbuildingEntry struct {
	Base
	Title             string   `json:"title"`
	Category          string   `json:"category"`
	Description       string   `json:"description"`
	Rules             string   `json:"rules"`
	Notes             string   `json:"notes"`
	RelatedCharacters []string `json:"related_characters"`
	RelatedLocations  []string `json:"related_locations"`
	RelatedEvents     []string `json:"related_events"`
	Tags              []string `json:"tags"`
	Importance        string   `json:"importance"`
}

func (w *WorldbuildingEntry) Label() string { return w.Title }

// Keyword is a search/SEO term kept for articles and posts.
type Keyword struct {
	Base
	Term        string   `json:"term"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (k *Keyword) Label() string { return k.Term }
