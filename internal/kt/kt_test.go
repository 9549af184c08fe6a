// SPDX-License-Identifier: MIT

package kt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBKT_Update(t *testing.T) {
	b := NewBKT(DefaultBKTParams())

	tests := []struct {
		name    string
		mastery float64
		correct bool
		want    float64
	}{
		{"correct raises mastery", 72, true, 92.2005571},
		{"incorrect lowers mastery", 72, false, 40.4255319},
		{"correct from zero hits learn rate", 0, true, 20},
		{"incorrect from zero hits learn rate", 0, false, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Update(tt.mastery, tt.correct)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestBKT_UpdateStaysInRange(t *testing.T) {
	b := NewBKT(DefaultBKTParams())

	mastery := 50.0
	for i := 0; i < 50; i++ {
		mastery = b.Update(mastery, true)
	}
	assert.LessOrEqual(t, mastery, 100.0)
	assert.Greater(t, mastery, 99.0)

	for i := 0; i < 50; i++ {
		mastery = b.Update(mastery, false)
	}
	assert.GreaterOrEqual(t, mastery, 0.0)
}

func TestDKT_EmptyHistoryFallsBack(t *testing.T) {
	d := NewDKT(10, 0.7, 0.3)

	got := d.Analyze(nil)
	assert.InDelta(t, 30.0, got.PredictedMastery, 1e-9)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)
	assert.Zero(t, got.LearningVelocity)
}

func TestDKT_AnalyzeWithTimings(t *testing.T) {
	d := NewDKT(10, 0.7, 0.3)

	history := []Observation{
		{Correct: false, TimeTakenSec: 25},
		{Correct: true, TimeTakenSec: 18},
		{Correct: true, TimeTakenSec: 15},
		{Correct: true, TimeTakenSec: 12},
	}
	got := d.Analyze(history)

	// 75*0.7 + (50+50*2)*0.3 + 11.25 caps at 100.
	assert.InDelta(t, 100.0, got.PredictedMastery, 1e-9)
	assert.InDelta(t, 50.0, got.LearningVelocity, 1e-9)
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)
}

func TestDKT_AnalyzeWithoutTimings(t *testing.T) {
	d := NewDKT(10, 0.7, 0.3)

	history := []Observation{
		{Correct: true}, {Correct: true}, {Correct: false},
		{Correct: true}, {Correct: true},
	}
	got := d.Analyze(history)

	assert.InDelta(t, 51.0, got.PredictedMastery, 1e-6)
	assert.InDelta(t, -33.3333, got.LearningVelocity, 1e-3)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestDKT_WindowsHistory(t *testing.T) {
	d := NewDKT(10, 0.7, 0.3)

	// Twenty old failures followed by ten recent successes: only the
	// window counts.
	var history []Observation
	for i := 0; i < 20; i++ {
		history = append(history, Observation{Correct: false})
	}
	for i := 0; i < 10; i++ {
		history = append(history, Observation{Correct: true})
	}

	got := d.Analyze(history)
	assert.InDelta(t, 85.0, got.PredictedMastery, 1e-9) // 100*0.7 + 50*0.3
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
}

func TestDKVMN_ReadUnknownConcept(t *testing.T) {
	m := NewDKVMN()
	assert.InDelta(t, 30.0, m.Read("algebra", nil), 1e-9)
}

func TestDKVMN_ReadBlendsRelatedConcepts(t *testing.T) {
	m := NewDKVMN()
	m.Seed("fractions", 60)
	m.Seed("division", 80)

	// Unknown correlation defaults low.
	got := m.Read("fractions", []string{"division"})
	assert.InDelta(t, 49.2, got, 1e-9)

	// Writing seeds the correlation.
	m.Write("fractions", 60, []string{"division"})
	got = m.Read("fractions", []string{"division"})
	assert.InDelta(t, 54.0, got, 1e-9)
}

func TestDKVMN_Thresholds(t *testing.T) {
	m := NewDKVMN()
	m.Seed("a", 90)
	m.Seed("b", 70)
	m.Seed("c", 40)

	assert.ElementsMatch(t, []string{"a"}, m.MasteredConcepts(85))
	assert.ElementsMatch(t, []string{"c"}, m.WeakConcepts(60))
}

func TestHybrid_Update(t *testing.T) {
	h := NewHybrid(DefaultParams())
	m := NewDKVMN()

	history := []Observation{
		{Correct: false, TimeTakenSec: 25},
		{Correct: true, TimeTakenSec: 18},
		{Correct: true, TimeTakenSec: 15},
		{Correct: true, TimeTakenSec: 12},
	}
	got := h.Update(72, true, history, "linear_equations", []string{"variables"}, m)

	assert.InDelta(t, 92.20, got.BKTComponent, 0.01)
	assert.InDelta(t, 100.0, got.DKTComponent, 0.01)
	assert.InDelta(t, 30.0, got.DKVMNComponent, 0.01)
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)
	assert.InDelta(t, 62.48, got.MasteryScore, 0.01)
	assert.True(t, got.NeedsPractice)
	assert.Equal(t, RecommendLightReview, got.Recommendation)

	// The blended score lands in the memory for the next read.
	assert.InDelta(t, 62.48, m.Read("linear_equations", nil), 0.01)
}

func TestRecommend(t *testing.T) {
	assert.Equal(t, RecommendSkip, Recommend(85))
	assert.Equal(t, RecommendLightReview, Recommend(60))
	assert.Equal(t, RecommendFocusedPractice, Recommend(59.9))
}
