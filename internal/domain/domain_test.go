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
	"testing"
	"time"
)

func TestManifestJSONAcceptsNaiveTimestamps(t *testing.T) {
	raw := `{"version":3,"title":"Il Nome","author":"A","language":"it","project_type":"short_story",
		"genre":"","target_word_count":0,"tags":[],
		"created_date":"2024-01-02T10:11:12.123456","modified_date":"2024-01-03T09:00:00+02:00"}`
	var m Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.ProjectType != KindShortStory {
		t.Fatalf("kind = %q", m.ProjectType)
	}
	if m.Created.Year() != 2024 || m.Created.Nanosecond() != 123456000 {
		t.Fatalf("created not parsed: %v", m.Created)
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Manifest
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if !back.Modified.Equal(m.Modified.Time) {
		t.Fatalf("modified drifted: %v vs %v", back.Modified, m.Modified)
	}
}

func TestUnknownKindDefaultsToNovel(t *testing.T) {
	var m Manifest
	if err := json.Unmarshal([]byte(`{"project_type":"graphic_novel"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.ProjectType != KindNovel {
		t.Fatalf("expected novel, got %q", m.ProjectType)
	}
	if k, ok := ParseProjectKind(" Essay "); !ok || k != KindEssay {
		t.Fatalf("ParseProjectKind mismatch: %q %v", k, ok)
	}
}

func TestKindHeuristics(t *testing.T) {
	if r := KindNovel.TargetWords(); r.Min != 50000 || r.Max != 120000 {
		t.Fatalf("novel range = %+v", r)
	}
	if KindArticleSocial.DisplayName() != "Social Media Post" {
		t.Fatalf("display name = %q", KindArticleSocial.DisplayName())
	}
	if len(AllKinds()) != 8 {
		t.Fatalf("expected 8 kinds")
	}
	for _, k := range AllKinds() {
		if !k.Valid() {
			t.Fatalf("%q should be valid", k)
		}
	}
}

func TestBadTimestampRejected(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatalf("expected error")
	}
	if err := json.Unmarshal([]byte(`null`), &ts); err != nil || !ts.IsZero() {
		t.Fatalf("null should yield zero: %v", err)
	}
}

func TestCountWords(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"  one two\tthree\nfour ", 4},
		{"<p>Hello <b>brave</b> world</p><p>again</p>", 4},
		{"<p>end</p><p>start</p>", 2},
		{"<html><head><style>p{color:red}</style></head><body>just two</body></html>", 2},
		{"a &lt; b", 3},
		{"Use the <div> tag and <b>bold</b> here", 7},
		{"if a<b then <stop>", 4},
		{"  <P class=x>Two words</P>", 2},
	}
	for _, c := range cases {
		if got := CountWords(c.in); got != c.want {
			t.Fatalf("CountWords(%q) = %d, want %d", c.in, got, c.want)
		}
	}
	if got := PlainText("<p>Ciao &amp; addio</p>"); got != "Ciao & addio" {
		t.Fatalf("PlainText = %q", got)
	}
}

func TestIsMarkup(t *testing.T) {
	cases := map[string]bool{
		"":                            false,
		"plain text":                  false,
		"Use the <div> tag":           false,
		"<not a tag":                  false,
		"< p>":                        false,
		"<p>hi</p>":                   true,
		"\n <!DOCTYPE html><html>":    true,
		"<Html><body>x</body></Html>": true,
		"<h2>Title</h2>":              true,
	}
	for in, want := range cases {
		if got := IsMarkup(in); got != want {
			t.Fatalf("IsMarkup(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBaseStamp(t *testing.T) {
	c := &Character{Name: "Ada"}
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Stamp(t0)
	c.Stamp(t0.Add(time.Hour))
	if !c.Created.Equal(t0) || !c.Modified.Equal(t0.Add(time.Hour)) {
		t.Fatalf("stamp mismatch: %v %v", c.Created, c.Modified)
	}
	var r Record = c
	if r.Label() != "Ada" {
		t.Fatalf("label = %q", r.Label())
	}
}
