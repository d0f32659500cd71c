/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package collections

import (
	"fmt"

	"novelist/internal/domain"
)

type store interface {
	Kind() Kind
	Len() int
	marshal() ([]byte, error)
	unmarshal([]byte) error
	records() []domain.Record
}

// Set holds every auxiliary collection of one open project. Only enabled
// collections are persisted; characters are always enabled.
type Set struct {
	Characters    *Collection[*domain.Character]
	Locations     *Collection[*domain.Location]
	Research      *Collection[*domain.ResearchNote]
	Timeline      *Collection[*domain.TimelineEvent]
	Sources       *Collection[*domain.Source]
	Notes         *Collection[*domain.Note]
	Worldbuilding *Collection[*domain.WorldbuildingEntry]
	Keywords      *Collection[*domain.Keyword]

	stores  map[Kind]store
	enabled map[Kind]bool
}

// NewSet returns empty collections with only the mandatory ones enabled.
func NewSet() *Set {
	s := &Set{
		Characters:    newCollection[*domain.Character](Characters),
		Locations:     newCollection[*domain.Location](Locations),
		Research:      newCollection[*domain.ResearchNote](Research),
		Timeline:      newCollection[*domain.TimelineEvent](Timeline),
		Sources:       newCollection[*domain.Source](Sources),
		Notes:         newCollection[*domain.Note](Notes),
		Worldbuilding: newCollection[*domain.WorldbuildingEntry](Worldbuilding),
		Keywords:      newCollection[*domain.Keyword](Keywords),
		enabled:       map[Kind]bool{},
	}
	s.stores = map[Kind]store{
		Characters:    s.Characters,
		Locations:     s.Locations,
		Research:      s.Research,
		Timeline:      s.Timeline,
		Sources:       s.Sources,
		Notes:         s.Notes,
		Worldbuilding: s.Worldbuilding,
		Keywords:      s.Keywords,
	}
	for _, k := range catalog {
		if k.Mandatory() {
			s.enabled[k] = true
		}
	}
	return s
}

// Clone returns an independent copy of s, taken through the persisted form
// of each collection.
func (s *Set) Clone() (*Set, error) {
	out := NewSet()
	for k, on := range s.enabled {
		out.enabled[k] = on
	}
	for k, st := range s.stores {
		data, err := st.marshal()
		if err != nil {
			return nil, fmt.Errorf("clone %s: %w", k, err)
		}
		if err := out.stores[k].unmarshal(data); err != nil {
			return nil, fmt.Errorf("clone %s: %w", k, err)
		}
	}
	return out, nil
}

// ForProject returns a set with the collections of pk enabled.
func ForProject(pk domain.ProjectKind) *Set {
	s := NewSet()
	s.EnsureFor(pk)
	return s
}

func (s *Set) Enabled(k Kind) bool { return s.enabled[k] }

func (s *Set) Enable(k Kind) error {
	if !k.Valid() {
		return fmt.Errorf("unknown collection %q", k)
	}
	s.enabled[k] = true
	return nil
}

// EnabledKinds lists enabled collections in catalog order.
func (s *Set) EnabledKinds() []Kind {
	var out []Kind
	for _, k := range catalog {
		if s.enabled[k] {
			out = append(out, k)
		}
	}
	return out
}

// EnsureFor enables every collection that applies to pk and reports the ones
// that were not enabled before. Existing collections are never dropped.
func (s *Set) EnsureFor(pk domain.ProjectKind) []Kind {
	var created []Kind
	for _, k := range ForProjectKind(pk) {
		if !s.enabled[k] {
			s.enabled[k] = true
			created = append(created, k)
		}
	}
	return created
}

// Require returns ErrNotEnabled when k is not part of the project.
func (s *Set) Require(k Kind) error {
	if !s.enabled[k] {
		return fmt.Errorf("%s: %w", k, ErrNotEnabled)
	}
	return nil
}

func (s *Set) Count(k Kind) int {
	if st, ok := s.stores[k]; ok {
		return st.Len()
	}
	return 0
}

// Records exposes the records of k through the common interface.
func (s *Set) Records(k Kind) []domain.Record {
	if st, ok := s.stores[k]; ok {
		return st.records()
	}
	return nil
}

// Marshal encodes collection k as its archive member body.
func (s *Set) Marshal(k Kind) ([]byte, error) {
	st, ok := s.stores[k]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", k)
	}
	return st.marshal()
}

// Unmarshal decodes an archive member into collection k and enables it.
func (s *Set) Unmarshal(k Kind, data []byte) error {
	st, ok := s.stores[k]
	if !ok {
		return fmt.Errorf("unknown collection %q", k)
	}
	if err := st.unmarshal(data); err != nil {
		return err
	}
	s.enabled[k] = true
	return nil
}
