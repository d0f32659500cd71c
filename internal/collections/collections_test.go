/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package collections

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelist/internal/domain"
)

func TestForProjectKind(t *testing.T) {
	assert.Equal(t, []Kind{Characters, Locations, Research, Timeline, Worldbuilding, Notes}, ForProjectKind(domain.KindNovel))
	assert.Equal(t, []Kind{Sources, Keywords, Notes}, ForProjectKind(domain.KindArticleMagazine))
	assert.Equal(t, []Kind{Notes}, ForProjectKind(domain.KindPoetry))
	assert.Equal(t, ForProjectKind(domain.KindNovel), ForProjectKind("mystery"))
	assert.True(t, Applies(domain.KindEssay, Sources))
	assert.False(t, Applies(domain.KindEssay, Characters))
}

func TestLookupAndFileName(t *testing.T) {
	for _, k := range All() {
		got, ok := Lookup(k.FileName())
		require.True(t, ok, k)
		assert.Equal(t, k, got)
	}
	_, ok := Lookup("manifest.json")
	assert.False(t, ok)
	_, ok = Lookup("characters.txt")
	assert.False(t, ok)
}

func TestEnsureForReportsCreated(t *testing.T) {
	s := NewSet()
	assert.Equal(t, []Kind{Characters}, s.EnabledKinds())

	created := s.EnsureFor(domain.KindShortStory)
	assert.Equal(t, []Kind{Locations, Notes}, created)
	assert.Empty(t, s.EnsureFor(domain.KindShortStory))

	created = s.EnsureFor(domain.KindEssay)
	assert.Equal(t, []Kind{Sources}, created)
	assert.Equal(t, []Kind{Characters, Locations, Sources, Notes}, s.EnabledKinds())
	require.ErrorIs(t, s.Require(Keywords), ErrNotEnabled)
	require.NoError(t, s.Require(Sources))
}

func TestCRUD(t *testing.T) {
	s := ForProject(domain.KindNovel)
	loc, err := s.Locations.Add(&domain.Location{Name: "Harbor"})
	require.NoError(t, err)
	require.NotEmpty(t, loc.ID)
	assert.False(t, loc.Created.IsZero())

	_, err = s.Locations.Add(&domain.Location{Base: domain.Base{ID: loc.ID}})
	require.ErrorIs(t, err, ErrDuplicateRecord)

	got, ok := s.Locations.Get(loc.ID)
	require.True(t, ok)
	assert.Equal(t, "Harbor", got.Name)

	require.NoError(t, s.Locations.Update(&domain.Location{Base: domain.Base{ID: loc.ID}, Name: "Old Harbor"}))
	got, _ = s.Locations.Get(loc.ID)
	assert.Equal(t, "Old Harbor", got.Name)
	assert.Equal(t, 1, s.Count(Locations))

	require.NoError(t, s.Locations.Delete(loc.ID))
	require.ErrorIs(t, s.Locations.Delete(loc.ID), ErrRecordNotFound)
	require.ErrorIs(t, s.Locations.Update(loc), ErrRecordNotFound)
}

func TestCloneIsIndependent(t *testing.T) {
	s := ForProject(domain.KindEssay)
	ada, err := s.Characters.Add(&domain.Character{Name: "Ada"})
	require.NoError(t, err)

	c, err := s.Clone()
	require.NoError(t, err)
	assert.Equal(t, s.EnabledKinds(), c.EnabledKinds())
	got, ok := c.Characters.Get(ada.ID)
	require.True(t, ok)
	assert.Equal(t, "Ada", got.Name)

	got.Name = "Changed"
	_, err = c.Characters.Add(&domain.Character{Name: "Bea"})
	require.NoError(t, err)
	require.NoError(t, c.Enable(Timeline))

	orig, _ := s.Characters.Get(ada.ID)
	assert.Equal(t, "Ada", orig.Name)
	assert.Equal(t, 1, s.Count(Characters))
	assert.False(t, s.Enabled(Timeline))
}

func TestMarshalWrapsInKindKey(t *testing.T) {
	s := NewSet()
	_, err := s.Characters.Add(&domain.Character{Name: "Ada", Images: []string{"img1.png"}})
	require.NoError(t, err)
	b, err := s.Marshal(Characters)
	require.NoError(t, err)

	var wire map[string][]map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	require.Len(t, wire["characters"], 1)
	assert.Equal(t, "Ada", wire["characters"][0]["name"])

	empty, err := NewSet().Marshal(Notes)
	require.NoError(t, err)
	assert.JSONEq(t, `{"notes":[]}`, string(empty))
}

func TestUnmarshalAcceptsLegacyShapes(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Unmarshal(Notes, []byte(`[{"id":"n1","title":"a"},null,{"title":"no id"}]`)))
	assert.True(t, s.Enabled(Notes))
	items := s.Notes.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "n1", items[0].ID)
	assert.NotEmpty(t, items[1].ID)

	require.NoError(t, s.Unmarshal(Characters, []byte(`{"characters":[]}`)))
	assert.Equal(t, 0, s.Count(Characters))

	require.NoError(t, s.Unmarshal(Timeline, []byte(`{"timeline":[{"id":"e1","title":"Battle","created_date":"2023-05-01T12:00:00"}]}`)))
	ev, ok := s.Timeline.Get("e1")
	require.True(t, ok)
	assert.Equal(t, 2023, ev.Created.Year())
}

func TestUnmarshalRejectsBadData(t *testing.T) {
	s := NewSet()
	require.Error(t, s.Unmarshal(Sources, []byte(`{"sources": 5}`)))
	require.Error(t, s.Unmarshal(Sources, []byte(`not json`)))
	require.ErrorIs(t, s.Unmarshal(Sources, []byte(`[{"id":"x"},{"id":"x"}]`)), ErrDuplicateRecord)
	assert.False(t, s.Enabled(Sources))
}

func TestRecordsExposeLabels(t *testing.T) {
	s := ForProject(domain.KindArticleMagazine)
	_, err := s.Keywords.Add(&domain.Keyword{Term: "persistence"})
	require.NoError(t, err)
	recs := s.Records(Keywords)
	require.Len(t, recs, 1)
	assert.Equal(t, "persistence", recs[0].Label())
}
