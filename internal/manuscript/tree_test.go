/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package manuscript

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sceneIDs(c *Chapter) []string {
	out := make([]string, len(c.Scenes))
	for i, s := range c.Scenes {
		out[i] = s.ID
	}
	return out
}

func requireContiguous(t *testing.T, s *Structure) {
	t.Helper()
	require.NoError(t, s.Validate())
}

func TestExampleScenario(t *testing.T) {
	s := New(ThreeLevel)

	p, err := s.AddPart("Part 1", Append)
	require.NoError(t, err)
	require.Len(t, p.Chapters, 1)
	ch := p.Chapters[0]
	assert.Equal(t, "Chapter 1", ch.Title)
	require.Len(t, ch.Scenes, 1)
	scene1 := ch.Scenes[0]
	assert.Equal(t, "Scene 1", scene1.Title)

	scene2, err := s.AddScene(ch.ID, "Scene 2", Append)
	require.NoError(t, err)
	assert.Equal(t, 1, scene2.Order)

	require.NoError(t, s.DeleteScene(scene1.ID))
	require.Len(t, ch.Scenes, 1)
	assert.Equal(t, scene2.ID, ch.Scenes[0].ID)
	assert.Equal(t, 0, scene2.Order)

	err = s.DeleteScene(scene2.ID)
	require.ErrorIs(t, err, ErrLastScene)
	require.ErrorIs(t, err, ErrInvariant)
	assert.Len(t, ch.Scenes, 1)
	requireContiguous(t, s)
}

func TestNewDefault(t *testing.T) {
	two := NewDefault(TwoLevel)
	require.Len(t, two.Chapters, 1)
	assert.Equal(t, TwoLevel, two.Mode())
	cur, ok := two.CurrentScene()
	require.True(t, ok)
	assert.Equal(t, "Scene 1", cur.Title)

	three := NewDefault(ThreeLevel)
	require.Len(t, three.Parts, 1)
	assert.Empty(t, three.Chapters)
	assert.Equal(t, "Part 1", three.Parts[0].Title)
	requireContiguous(t, two)
	requireContiguous(t, three)
}

func TestInsertInMiddleRenumbers(t *testing.T) {
	s := NewDefault(TwoLevel)
	c2, err := s.AddChapter("", "Chapter 2", Append)
	require.NoError(t, err)
	mid, err := s.AddChapter("", "Interlude", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, mid.Order)
	assert.Equal(t, 2, c2.Order)
	assert.Equal(t, []string{"Chapter 1", "Interlude", "Chapter 2"}, []string{s.Chapters[0].Title, s.Chapters[1].Title, s.Chapters[2].Title})
	requireContiguous(t, s)

	_, err = s.AddChapter("some-part", "X", Append)
	require.ErrorIs(t, err, ErrWrongMode)
}

func TestDeletePartGuards(t *testing.T) {
	s := NewDefault(ThreeLevel)
	only := s.Parts[0]
	require.ErrorIs(t, s.DeletePart(only.ID), ErrLastPart)

	p2, err := s.AddPart("Part 2", Append)
	require.NoError(t, err)
	require.NoError(t, s.SetCurrentScene(p2.Chapters[0].Scenes[0].ID))
	require.NoError(t, s.DeletePart(p2.ID))
	assert.Empty(t, s.CurrentSceneID)
	assert.Len(t, s.Parts, 1)
	require.ErrorIs(t, s.DeletePart("missing"), ErrNotFound)
	require.ErrorIs(t, NewDefault(TwoLevel).DeletePart("x"), ErrWrongMode)
}

func TestDeleteChapterClearsCurrentScene(t *testing.T) {
	s := NewDefault(TwoLevel)
	c2, err := s.AddChapter("", "Chapter 2", Append)
	require.NoError(t, err)
	sc, err := s.AddScene(c2.ID, "Later", Append)
	require.NoError(t, err)
	require.NoError(t, s.SetCurrentScene(sc.ID))

	require.NoError(t, s.DeleteChapter(c2.ID))
	assert.Empty(t, s.CurrentSceneID)
	_, ok := s.Scene(sc.ID)
	assert.False(t, ok)
	requireContiguous(t, s)
}

func TestDeleteCurrentSceneClearsReference(t *testing.T) {
	s := NewDefault(TwoLevel)
	ch := s.Chapters[0]
	extra, err := s.AddScene(ch.ID, "Scene 2", Append)
	require.NoError(t, err)
	require.NoError(t, s.SetCurrentScene(extra.ID))
	require.NoError(t, s.DeleteScene(extra.ID))
	_, ok := s.CurrentScene()
	assert.False(t, ok)
	assert.Empty(t, s.CurrentSceneID)
}

func TestReorderIsAtomic(t *testing.T) {
	s := NewDefault(TwoLevel)
	ch := s.Chapters[0]
	for _, title := range []string{"B", "C"} {
		_, err := s.AddScene(ch.ID, title, Append)
		require.NoError(t, err)
	}
	before := sceneIDs(ch)

	cases := map[string][]string{
		"short":     before[:2],
		"duplicate": {before[0], before[0], before[1]},
		"unknown":   {before[0], before[1], "nope"},
		"long":      append(append([]string{}, before...), "x"),
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			err := s.ReorderScenes(ch.ID, ids)
			require.ErrorIs(t, err, ErrReorderMismatch)
			assert.Equal(t, before, sceneIDs(ch))
			requireContiguous(t, s)
		})
	}

	want := []string{before[2], before[0], before[1]}
	require.NoError(t, s.ReorderScenes(ch.ID, want))
	assert.Equal(t, want, sceneIDs(ch))
	for i, sc := range ch.Scenes {
		assert.Equal(t, i, sc.Order)
	}
}

func TestReorderPartsAndChapters(t *testing.T) {
	s := NewDefault(ThreeLevel)
	p1 := s.Parts[0]
	p2, err := s.AddPart("Part 2", Append)
	require.NoError(t, err)
	require.NoError(t, s.ReorderParts([]string{p2.ID, p1.ID}))
	assert.Equal(t, 0, p2.Order)
	assert.Equal(t, 1, p1.Order)

	c2, err := s.AddChapter(p1.ID, "Chapter 2", Append)
	require.NoError(t, err)
	c1 := p1.Chapters[0]
	require.NoError(t, s.ReorderChapters(p1.ID, []string{c2.ID, c1.ID}))
	assert.Equal(t, c2.ID, p1.Chapters[0].ID)
	require.ErrorIs(t, s.ReorderChapters(p1.ID, []string{c2.ID}), ErrReorderMismatch)
	requireContiguous(t, s)
}

func TestNavigationCrossesBoundaries(t *testing.T) {
	s := NewDefault(ThreeLevel)
	p1 := s.Parts[0]
	first := p1.Chapters[0].Scenes[0]
	p2, err := s.AddPart("Part 2", Append)
	require.NoError(t, err)
	second := p2.Chapters[0].Scenes[0]

	next, ok := s.NextScene(first.ID)
	require.True(t, ok)
	assert.Equal(t, second.ID, next.ID)
	_, ok = s.NextScene(second.ID)
	assert.False(t, ok)

	prev, ok := s.PreviousScene(second.ID)
	require.True(t, ok)
	assert.Equal(t, first.ID, prev.ID)
	_, ok = s.PreviousScene(first.ID)
	assert.False(t, ok)
	_, ok = s.NextScene("missing")
	assert.False(t, ok)

	f, ok := s.FirstScene()
	require.True(t, ok)
	assert.Equal(t, first.ID, f.ID)
}

func TestWordCountsAggregate(t *testing.T) {
	s := NewDefault(ThreeLevel)
	p := s.Parts[0]
	ch := p.Chapters[0]
	require.NoError(t, s.UpdateSceneContent(ch.Scenes[0].ID, "one two three"))
	sc2, err := s.AddScene(ch.ID, "Scene 2", Append)
	require.NoError(t, err)
	require.NoError(t, s.UpdateSceneContent(sc2.ID, "<p>four <em>five</em></p>"))

	n, err := s.SceneWordCount(sc2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.ChapterWordCount(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = s.PartWordCount(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, s.WordCount())
	assert.Equal(t, Stats{Parts: 1, Chapters: 1, Scenes: 2, Words: 5}, s.Stats())

	_, err = s.SceneWordCount("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContentUpdateMovesCountAndTimestampTogether(t *testing.T) {
	s := NewDefault(TwoLevel)
	sc := s.Chapters[0].Scenes[0]
	before := sc.Modified
	sc.SetContent("alpha beta")
	assert.Equal(t, 2, sc.WordCount)
	assert.False(t, sc.Modified.Before(before.Time))
}

func TestFullText(t *testing.T) {
	two := NewDefault(TwoLevel)
	require.NoError(t, two.UpdateSceneContent(two.Chapters[0].Scenes[0].ID, "<p>It was dark.</p>"))
	c2, err := two.AddChapter("", "Chapter 2", Append)
	require.NoError(t, err)
	require.NoError(t, two.UpdateSceneContent(c2.Scenes[0].ID, "Morning came."))
	assert.Equal(t, "# Chapter 1\n\nIt was dark.\n\n\n\n# Chapter 2\n\nMorning came.", two.FullText())

	three := NewDefault(ThreeLevel)
	require.NoError(t, three.UpdateSceneContent(three.Parts[0].Chapters[0].Scenes[0].ID, "Hello"))
	assert.Equal(t, "# Part 1\n\n\n## Chapter 1\n\nHello", three.FullText())
}

func TestMoveScene(t *testing.T) {
	s := NewDefault(TwoLevel)
	c1 := s.Chapters[0]
	c2, err := s.AddChapter("", "Chapter 2", Append)
	require.NoError(t, err)

	only := c1.Scenes[0]
	require.ErrorIs(t, s.MoveScene(only.ID, c2.ID, 0), ErrLastScene)

	extra, err := s.AddScene(c1.ID, "Scene 2", Append)
	require.NoError(t, err)
	require.NoError(t, s.MoveScene(extra.ID, c2.ID, 0))
	assert.Equal(t, extra.ID, c2.Scenes[0].ID)
	assert.Len(t, c1.Scenes, 1)
	requireContiguous(t, s)

	require.NoError(t, s.MoveScene(extra.ID, c2.ID, Append))
	assert.Equal(t, extra.ID, c2.Scenes[len(c2.Scenes)-1].ID)
	requireContiguous(t, s)
}

func TestConvertToParts(t *testing.T) {
	s := NewDefault(TwoLevel)
	_, err := s.AddChapter("", "Chapter 2", Append)
	require.NoError(t, err)
	cur := s.CurrentSceneID

	p, err := s.ConvertToParts("Book One")
	require.NoError(t, err)
	assert.Equal(t, ThreeLevel, s.Mode())
	assert.Len(t, p.Chapters, 2)
	assert.Empty(t, s.Chapters)
	assert.Equal(t, cur, s.CurrentSceneID)
	requireContiguous(t, s)

	_, err = s.ConvertToParts("again")
	require.ErrorIs(t, err, ErrWrongMode)
}

func TestCloneSharesNoNodes(t *testing.T) {
	s := NewDefault(ThreeLevel)
	c := s.Clone()
	require.NoError(t, c.Validate())
	assert.Equal(t, s.CurrentSceneID, c.CurrentSceneID)

	c.Parts[0].Title = "changed"
	c.Parts[0].Chapters[0].Scenes[0].SetContent("new words")
	c.Parts[0].Chapters = append(c.Parts[0].Chapters, NewChapter("Extra", 1))

	assert.Equal(t, "Part 1", s.Parts[0].Title)
	assert.Len(t, s.Parts[0].Chapters, 1)
	assert.Empty(t, s.Parts[0].Chapters[0].Scenes[0].Content)
}

func TestConvertToParts_EmptyRootGetsCurrentScene(t *testing.T) {
	s := New(TwoLevel)
	p, err := s.ConvertToParts("Book One")
	require.NoError(t, err)
	require.Len(t, p.Chapters, 1)
	require.Len(t, p.Chapters[0].Scenes, 1)
	assert.Equal(t, p.Chapters[0].Scenes[0].ID, s.CurrentSceneID)
	require.NoError(t, s.Validate())
}

func TestFromText(t *testing.T) {
	s := FromText("the quick  brown\nfox")
	require.Len(t, s.Chapters, 1)
	assert.Equal(t, "Chapter 1", s.Chapters[0].Title)
	require.Len(t, s.Chapters[0].Scenes, 1)
	sc := s.Chapters[0].Scenes[0]
	assert.Equal(t, "Scene 1", sc.Title)
	assert.Equal(t, "the quick  brown\nfox", sc.Content)
	assert.Equal(t, 4, sc.WordCount)
}

func TestFromText_CountsMarkupLikeProseAsTokens(t *testing.T) {
	text := "<p>Dear reader</p><p>hello</p> again"
	sc := FromText(text).Chapters[0].Scenes[0]
	assert.Equal(t, len(strings.Fields(text)), sc.WordCount)
	assert.Equal(t, 3, sc.WordCount)
}

func TestNormalizeRepairsDecodedTree(t *testing.T) {
	raw := `{"chapters":[
		{"id":"c2","title":"Two","order":5,"scenes":[{"id":"s3","title":"x","order":2}]},
		{"id":"c1","title":"One","order":1,"scenes":[{"id":"s2","order":9},{"id":"s1","order":3}]},
		{"id":"c3","title":"Empty","order":7,"scenes":[]}
	],"current_scene_id":"gone"}`
	var s Structure
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	require.Error(t, s.Validate())

	s.Normalize()
	require.NoError(t, s.Validate())
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{s.Chapters[0].ID, s.Chapters[1].ID, s.Chapters[2].ID})
	assert.Equal(t, []string{"s1", "s2"}, sceneIDs(s.Chapters[0]))
	assert.Len(t, s.Chapters[2].Scenes, 1)
	assert.Empty(t, s.CurrentSceneID)
}

func TestValidateRejectsDuplicatesAndMixedModes(t *testing.T) {
	s := NewDefault(TwoLevel)
	c2, err := s.AddChapter("", "Two", Append)
	require.NoError(t, err)
	c2.Scenes[0].ID = s.Chapters[0].Scenes[0].ID
	require.ErrorIs(t, s.Validate(), ErrInvariant)

	mixed := NewDefault(ThreeLevel)
	mixed.Chapters = []*Chapter{NewChapter("stray", 0)}
	require.ErrorIs(t, mixed.Validate(), ErrInvariant)
}

// TestOrderContiguityUnderRandomOps drives random add/delete/reorder/move
// sequences and checks that every level stays a 0-based permutation.
func TestOrderContiguityUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewDefault(ThreeLevel)
	for step := 0; step < 400; step++ {
		chapters := s.AllChapters()
		switch rng.Intn(8) {
		case 0:
			_, _ = s.AddPart("P", rng.Intn(len(s.Parts)+2)-1)
		case 1:
			p := s.Parts[rng.Intn(len(s.Parts))]
			_, _ = s.AddChapter(p.ID, "C", rng.Intn(len(p.Chapters)+2)-1)
		case 2:
			if len(chapters) > 0 {
				c := chapters[rng.Intn(len(chapters))]
				_, _ = s.AddScene(c.ID, "S", rng.Intn(len(c.Scenes)+2)-1)
			}
		case 3:
			all := s.Scenes()
			if len(all) > 0 {
				_ = s.DeleteScene(all[rng.Intn(len(all))].ID)
			}
		case 4:
			if len(chapters) > 1 {
				_ = s.DeleteChapter(chapters[rng.Intn(len(chapters))].ID)
			}
		case 5:
			_ = s.DeletePart(s.Parts[rng.Intn(len(s.Parts))].ID)
		case 6:
			if len(chapters) > 0 {
				c := chapters[rng.Intn(len(chapters))]
				ids := sceneIDs(c)
				rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
				if rng.Intn(4) == 0 && len(ids) > 1 {
					ids = ids[1:]
				}
				_ = s.ReorderScenes(c.ID, ids)
			}
		case 7:
			all := s.Scenes()
			if len(all) > 0 && len(chapters) > 0 {
				_ = s.MoveScene(all[rng.Intn(len(all))].ID, chapters[rng.Intn(len(chapters))].ID, rng.Intn(4)-1)
			}
		}
		require.NoError(t, s.Validate(), "step %d", step)
	}
}
