// SPDX-License-Identifier: MIT

package practice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_CognitiveLoad(t *testing.T) {
	e := NewEngine(DefaultConfig())

	items := []Item{
		{ID: "a", ConceptID: "c1", Difficulty: 0.6, Weight: 1},
		{ID: "b", ConceptID: "c2", Difficulty: 0.4, Weight: 1},
	}
	mastery := map[string]float64{"c1": 50} // c2 defaults to 30

	load := e.CognitiveLoad(items, mastery)
	assert.InDelta(t, 0.29, load, 1e-9)

	assert.Zero(t, e.CognitiveLoad(nil, mastery))
}

func TestEngine_FilterByMastery(t *testing.T) {
	e := NewEngine(DefaultConfig())

	var items []Item
	add := func(concept string, n int) {
		for i := 0; i < n; i++ {
			items = append(items, Item{ID: concept, ConceptID: concept, Difficulty: 0.5, Weight: 1})
		}
	}
	add("mastered", 3)
	add("review", 3)
	add("weak", 12)

	mastery := map[string]float64{"mastered": 90, "review": 70, "weak": 40}
	filtered := e.filterByMastery(items, mastery)

	counts := make(map[string]int)
	for _, item := range filtered {
		counts[item.ConceptID]++
	}
	assert.Zero(t, counts["mastered"])
	assert.Equal(t, 2, counts["review"])
	assert.Equal(t, 10, counts["weak"])
}

func TestEngine_PrioritizeByZPD(t *testing.T) {
	e := NewEngine(DefaultConfig())

	mastery := map[string]float64{"x": 50}
	items := []Item{
		{ID: "too-easy", ConceptID: "x", Difficulty: 0.3, Weight: 1},
		{ID: "sweet-spot", ConceptID: "x", Difficulty: 0.7, Weight: 1},
		{ID: "barely-above", ConceptID: "x", Difficulty: 0.55, Weight: 1},
		{ID: "hard-scaffolded", ConceptID: "x", Difficulty: 0.9, Weight: 1, ScaffoldingAvailable: true},
	}

	ordered := e.prioritizeByZPD(items, mastery, nil)
	require.Len(t, ordered, 4)
	assert.Equal(t, "sweet-spot", ordered[0].ID)
	assert.Equal(t, "hard-scaffolded", ordered[1].ID)
	assert.Equal(t, "barely-above", ordered[2].ID)
	assert.Equal(t, "too-easy", ordered[3].ID)
}

func TestEngine_PrerequisiteDeprioritizes(t *testing.T) {
	e := NewEngine(DefaultConfig())

	mastery := map[string]float64{"x": 50}
	items := []Item{
		{ID: "gated", ConceptID: "x", Difficulty: 0.7, Weight: 1, Prerequisites: []string{"missing"}},
		{ID: "open", ConceptID: "x", Difficulty: 0.55, Weight: 1},
	}

	// The sweet-spot item would normally win, but its unmet prerequisite
	// halves its score (1.0*0.5 < 0.6).
	ordered := e.prioritizeByZPD(items, mastery, nil)
	assert.Equal(t, "open", ordered[0].ID)
}

func TestEngine_SelectContentScaffoldsOverload(t *testing.T) {
	e := NewEngine(DefaultConfig())

	available := []Item{{
		ID: "h", ConceptID: "hard", Difficulty: 0.9, Weight: 1,
		EstimatedMinutes: 5, ScaffoldingAvailable: true,
	}}
	mastery := map[string]float64{"hard": 0}

	selected := e.SelectContent(available, mastery, nil, 30)
	require.Len(t, selected, 1)
	assert.Equal(t, "h_scaffolded", selected[0].ID)
	assert.InDelta(t, 0.63, selected[0].Difficulty, 1e-9)
	assert.InDelta(t, 7, selected[0].EstimatedMinutes, 1e-9)
	assert.True(t, selected[0].Scaffolded)
}

func TestEngine_SelectContentRespectsTimeBudget(t *testing.T) {
	e := NewEngine(DefaultConfig())

	var available []Item
	for _, id := range []string{"a", "b", "c"} {
		available = append(available, Item{
			ID: id, ConceptID: "x", Difficulty: 0.6, Weight: 1, EstimatedMinutes: 10,
		})
	}
	mastery := map[string]float64{"x": 50}

	selected := e.SelectContent(available, mastery, nil, 25)
	assert.Len(t, selected, 2)
}

func TestEngine_AdjustDifficulty(t *testing.T) {
	e := NewEngine(DefaultConfig())

	got := e.AdjustDifficulty(0.5, 80, 10, 15)
	assert.InDelta(t, 0.5466667, got, 1e-6)

	// Clamps at both ends.
	assert.InDelta(t, 0.1, e.AdjustDifficulty(0.1, 0, 100, 15), 1e-9)
	assert.InDelta(t, 1.0, e.AdjustDifficulty(1.0, 100, 0, 15), 1e-9)
}

func TestEngine_GenerateSession(t *testing.T) {
	e := NewEngine(DefaultConfig())

	mastery := map[string]float64{
		"linear":    45,
		"quadratic": 72,
		"systems":   88,
		"triangles": 35,
	}
	velocity := map[string]float64{"linear": 5, "triangles": -2}

	available := []Item{
		{ID: "q1", ConceptID: "linear", Difficulty: 0.4, Weight: 1, EstimatedMinutes: 5, ScaffoldingAvailable: true},
		{ID: "q2", ConceptID: "linear", Difficulty: 0.6, Weight: 1, EstimatedMinutes: 5, ScaffoldingAvailable: true},
		{ID: "q3", ConceptID: "quadratic", Difficulty: 0.7, Weight: 1, EstimatedMinutes: 6, ScaffoldingAvailable: true},
		{ID: "q4", ConceptID: "systems", Difficulty: 0.8, Weight: 1, EstimatedMinutes: 6, ScaffoldingAvailable: true},
		{ID: "q5", ConceptID: "triangles", Difficulty: 0.3, Weight: 1.5, EstimatedMinutes: 5, ScaffoldingAvailable: true},
		{ID: "q6", ConceptID: "triangles", Difficulty: 0.5, Weight: 1.5, EstimatedMinutes: 6, ScaffoldingAvailable: true},
	}

	session := e.GenerateSession("student-1", mastery, velocity, available, 30)

	require.Equal(t, 5, session.TotalItems)
	assert.Equal(t, "q2", session.Items[0].ID) // sweet spot plus velocity boost
	assert.InDelta(t, 26, session.EstimatedMinutes, 1e-9)
	assert.InDelta(t, 0.3052, session.CognitiveLoad, 1e-4)
	assert.Equal(t, LoadTooEasy, session.LoadStatus)
	assert.False(t, session.ZPDAligned)
	assert.NotEmpty(t, session.SessionID)

	// Mastered concept never appears.
	for _, item := range session.Items {
		assert.NotEqual(t, "systems", item.ConceptID)
	}

	linear := session.Concepts["linear"]
	assert.Equal(t, 2, linear.Count)
	assert.InDelta(t, 0.5, linear.AvgDifficulty, 1e-9)
	assert.InDelta(t, 45, linear.Mastery, 1e-9)
}
