/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package collections

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"novelist/internal/domain"
)

var (
	ErrRecordNotFound  = errors.New("collections: record not found")
	ErrDuplicateRecord = errors.New("collections: duplicate record id")
	ErrNotEnabled      = errors.New("collections: collection not enabled for this project")
)

var now = time.Now

// Collection is an ordered list of records of one kind.
type Collection[T domain.Record] struct {
	kind  Kind
	items []T
}

func newCollection[T domain.Record](k Kind) *Collection[T] {
	return &Collection[T]{kind: k}
}

func (c *Collection[T]) Kind() Kind { return c.kind }
func (c *Collection[T]) Len() int   { return len(c.items) }

// Items returns the records in stored order. The slice is a copy; the records are not.
func (c *Collection[T]) Items() []T { return slices.Clone(c.items) }

func (c *Collection[T]) index(id string) int {
	return slices.IndexFunc(c.items, func(r T) bool { return r.RecordID() == id })
}

func (c *Collection[T]) Get(id string) (T, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Add stores rec, generating an identifier when it has none.
func (c *Collection[T]) Add(rec T) (T, error) {
	if rec.RecordID() == "" {
		rec.SetRecordID(domain.NewID())
	} else if c.index(rec.RecordID()) >= 0 {
		return rec, fmt.Errorf("%s %q: %w", c.kind, rec.RecordID(), ErrDuplicateRecord)
	}
	rec.Stamp(now())
	c.items = append(c.items, rec)
	return rec, nil
}

// Update replaces the record with the same identifier.
func (c *Collection[T]) Update(rec T) error {
	i := c.index(rec.RecordID())
	if i < 0 {
		return fmt.Errorf("%s %q: %w", c.kind, rec.RecordID(), ErrRecordNotFound)
	}
	rec.Stamp(now())
	c.items[i] = rec
	return nil
}

func (c *Collection[T]) Delete(id string) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%s %q: %w", c.kind, id, ErrRecordNotFound)
	}
	c.items = slices.Delete(c.items, i, i+1)
	return nil
}

func (c *Collection[T]) records() []domain.Record {
	out := make([]domain.Record, len(c.items))
	for i, r := range c.items {
		out[i] = r
	}
	return out
}

// marshal writes {"<kind>": [...]}.
func (c *Collection[T]) marshal() ([]byte, error) {
	items := c.items
	if items == nil {
		items = []T{}
	}
	return json.MarshalIndent(map[string][]T{string(c.kind): items}, "", "  ")
}

// unmarshal accepts {"<kind>": [...]} and the bare array written by older versions.
func (c *Collection[T]) unmarshal(data []byte) error {
	var items []T
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("decode %s: %w", c.kind.FileName(), err)
		}
	default:
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return fmt.Errorf("decode %s: %w", c.kind.FileName(), err)
		}
		if raw, ok := wrapped[string(c.kind)]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			if err := json.Unmarshal(raw, &items); err != nil {
				return fmt.Errorf("decode %s: %w", c.kind.FileName(), err)
			}
		}
	}
	seen := make(map[string]bool, len(items))
	kept := items[:0]
	for _, r := range items {
		if isNilRecord(r) {
			continue
		}
		if r.RecordID() == "" {
			r.SetRecordID(domain.NewID())
		}
		if seen[r.RecordID()] {
			return fmt.Errorf("decode %s: %q: %w", c.kind.FileName(), r.RecordID(), ErrDuplicateRecord)
		}
		seen[r.RecordID()] = true
		kept = append(kept, r)
	}
	c.items = kept
	return nil
}

// isNilRecord catches null array entries, which decode to nil pointers.
func isNilRecord(r domain.Record) bool {
	v := reflect.ValueOf(r)
	return !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil())
}
