// SPDX-License-Identifier: MIT

// Package kt implements hybrid knowledge tracing. Three estimators run on
// every graded response: a Bayesian update for interpretability, a
// sequence analyzer for temporal patterns, and a key-value concept memory
// for cross-concept effects. Their blend yields a 0..100 mastery score
// with a practice recommendation.
package kt

// BKTParams are the four classic Bayesian knowledge tracing parameters.
type BKTParams struct {
	PriorMastery float64 // P(L0), initial mastery probability
	LearnRate    float64 // P(T), probability of learning on each attempt
	GuessRate    float64 // P(G), correct answer without mastery
	SlipRate     float64 // P(S), wrong answer despite mastery
}

// DefaultBKTParams returns standard parameters; the guess rate assumes
// four-option multiple choice.
func DefaultBKTParams() BKTParams {
	return BKTParams{
		PriorMastery: 0.3,
		LearnRate:    0.2,
		GuessRate:    0.25,
		SlipRate:     0.1,
	}
}

// BKT performs Bayesian mastery updates.
type BKT struct {
	params BKTParams
}

// NewBKT creates a BKT estimator.
func NewBKT(params BKTParams) *BKT {
	return &BKT{params: params}
}

// Update applies one observation to a mastery score on the 0..100 scale.
// The posterior P(L|answer) is computed via Bayes' rule, then the learning
// transition P(T) is applied.
func (b *BKT) Update(currentMastery float64, correct bool) float64 {
	pL := currentMastery / 100.0

	var posterior float64
	if correct {
		num := pL * (1 - b.params.SlipRate)
		den := pL*(1-b.params.SlipRate) + (1-pL)*b.params.GuessRate
		if den > 0 {
			posterior = num / den
		} else {
			posterior = pL
		}
	} else {
		num := pL * b.params.SlipRate
		den := pL*b.params.SlipRate + (1-pL)*(1-b.params.GuessRate)
		if den > 0 {
			posterior = num / den
		} else {
			posterior = pL
		}
	}

	updated := posterior + (1-posterior)*b.params.LearnRate
	return clampScore(updated * 100)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
