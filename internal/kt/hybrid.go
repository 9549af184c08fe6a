// SPDX-License-Identifier: MIT

package kt

import "math"

// Practice recommendations derived from the blended mastery score.
const (
	RecommendSkip            = "SKIP"
	RecommendLightReview     = "LIGHT_REVIEW"
	RecommendFocusedPractice = "FOCUSED_PRACTICE"
)

// Mastery thresholds shared across the platform.
const (
	MasteredThreshold = 85.0
	WeakThreshold     = 60.0
)

// Result is the full outcome of a hybrid mastery update.
type Result struct {
	MasteryScore     float64 `json:"masteryScore"`
	BKTComponent     float64 `json:"bktComponent"`
	DKTComponent     float64 `json:"dktComponent"`
	DKVMNComponent   float64 `json:"dkvmnComponent"`
	Confidence       float64 `json:"confidence"`
	LearningVelocity float64 `json:"learningVelocity"`
	NeedsPractice    bool    `json:"needsPractice"`
	Recommendation   string  `json:"recommendation"`
}

// Hybrid blends the three estimators. The sequence analyzer's confidence
// shifts weight between it and the concept memory: with little history the
// memory dominates, with a full window the sequence estimate does.
type Hybrid struct {
	bkt *BKT
	dkt *DKT
}

// Params bundles the tunables for a hybrid engine.
type Params struct {
	BKT            BKTParams
	SequenceLength int
	HistoryWeight  float64
	TrendWeight    float64
}

// DefaultParams returns the standard engine tuning.
func DefaultParams() Params {
	return Params{
		BKT:            DefaultBKTParams(),
		SequenceLength: 10,
		HistoryWeight:  0.7,
		TrendWeight:    0.3,
	}
}

// NewHybrid creates the blended engine.
func NewHybrid(p Params) *Hybrid {
	return &Hybrid{
		bkt: NewBKT(p.BKT),
		dkt: NewDKT(p.SequenceLength, p.HistoryWeight, p.TrendWeight),
	}
}

// Update computes the blended mastery for one graded response. The
// history must include the response being graded, in chronological order.
// The memory is updated in place with the blended outcome.
func (h *Hybrid) Update(
	currentMastery float64,
	correct bool,
	history []Observation,
	conceptID string,
	relatedConcepts []string,
	memory *DKVMN,
) Result {
	bktScore := h.bkt.Update(currentMastery, correct)
	analysis := h.dkt.Analyze(history)
	dkvmnScore := memory.Read(conceptID, relatedConcepts)

	conf := analysis.Confidence
	blended := bktScore*0.4 +
		analysis.PredictedMastery*(0.4*conf) +
		dkvmnScore*(0.2+0.2*(1-conf))

	memory.Write(conceptID, blended, relatedConcepts)

	return Result{
		MasteryScore:     round2(blended),
		BKTComponent:     round2(bktScore),
		DKTComponent:     round2(analysis.PredictedMastery),
		DKVMNComponent:   round2(dkvmnScore),
		Confidence:       round2(conf),
		LearningVelocity: round2(analysis.LearningVelocity),
		NeedsPractice:    blended < MasteredThreshold,
		Recommendation:   Recommend(blended),
	}
}

// Recommend maps a mastery score to a practice recommendation.
func Recommend(mastery float64) string {
	switch {
	case mastery >= MasteredThreshold:
		return RecommendSkip
	case mastery >= WeakThreshold:
		return RecommendLightReview
	default:
		return RecommendFocusedPractice
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
