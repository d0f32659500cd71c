/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the persisted data model of a writing project: the
// manifest metadata, the project kinds and the records kept in auxiliary
// collections. The manuscript tree itself lives in package manuscript.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Manifest is the project metadata written as manifest.json.
// It always describes the current schema; older shapes are upgraded by the
// storage migrator before a Manifest is built.
type Manifest struct {
	Version         int         `json:"version"`
	Title           string      `json:"title"`
	Author          string      `json:"author"`
	Language        string      `json:"language"`
	ProjectType     ProjectKind `json:"project_type"`
	Genre           string      `json:"genre"`
	TargetWordCount int         `json:"target_word_count"`
	Tags            []string    `json:"tags"`
	Created         Timestamp   `json:"created_date"`
	Modified        Timestamp   `json:"modified_date"`
}

// Touch bumps the modification timestamp.
func (m *Manifest) Touch(now time.Time) { m.Modified = At(now) }

// Timestamp is a time that reads both RFC 3339 and the naive ISO form
// (no zone, optional fraction) written by older versions of the app.
type Timestamp struct{ time.Time }

// At wraps t.
func At(t time.Time) Timestamp { return Timestamp{Time: t} }

// Now returns the current time as a Timestamp.
func Now() Timestamp { return Timestamp{Time: time.Now()} }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses s with every accepted layout.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
