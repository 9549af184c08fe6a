// SPDX-License-Identifier: MIT

package kt

// Observation is one graded response in a student's history.
type Observation struct {
	Correct      bool
	TimeTakenSec float64
}

// PatternAnalysis is the outcome of sequence analysis on recent responses.
type PatternAnalysis struct {
	PredictedMastery float64 // 0..100
	Confidence       float64 // 0..1, grows with sequence length
	LearningVelocity float64 // accuracy delta between sequence halves, in points
}

// DKT estimates mastery from the shape of a response sequence. It weighs
// overall accuracy against the recent trend and gives a small bonus for
// fast responses.
type DKT struct {
	sequenceLength int
	historyWeight  float64
	trendWeight    float64
}

// NewDKT creates a sequence analyzer over a window of sequenceLength
// responses.
func NewDKT(sequenceLength int, historyWeight, trendWeight float64) *DKT {
	if sequenceLength <= 0 {
		sequenceLength = 10
	}
	return &DKT{
		sequenceLength: sequenceLength,
		historyWeight:  historyWeight,
		trendWeight:    trendWeight,
	}
}

// Analyze examines the most recent window of history. Without history the
// estimate falls back to a low-confidence prior.
func (d *DKT) Analyze(history []Observation) PatternAnalysis {
	if len(history) == 0 {
		return PatternAnalysis{
			PredictedMastery: 30.0,
			Confidence:       0.3,
		}
	}

	recent := history
	if len(recent) > d.sequenceLength {
		recent = recent[len(recent)-d.sequenceLength:]
	}

	var correct int
	for _, r := range recent {
		if r.Correct {
			correct++
		}
	}
	overallAccuracy := float64(correct) / float64(len(recent)) * 100

	// Learning velocity: second-half accuracy minus first-half accuracy.
	var velocity float64
	if len(recent) >= 3 {
		mid := len(recent) / 2
		velocity = (accuracy(recent[mid:]) - accuracy(recent[:mid])) * 100
	}

	// Fast answers earn up to 20 bonus points. The bonus only applies
	// when every response in the window carries a timing.
	var timeFactor float64
	timed := true
	var totalTime float64
	for _, r := range recent {
		if r.TimeTakenSec <= 0 {
			timed = false
			break
		}
		totalTime += r.TimeTakenSec
	}
	if timed {
		avgTime := totalTime / float64(len(recent))
		timeFactor = 20 - avgTime/2
		if timeFactor < 0 {
			timeFactor = 0
		}
		if timeFactor > 20 {
			timeFactor = 20
		}
	}

	predicted := overallAccuracy*d.historyWeight +
		(50+velocity*2)*d.trendWeight +
		timeFactor
	if predicted > 100 {
		predicted = 100
	}

	confidence := float64(len(recent)) / float64(d.sequenceLength)
	if confidence > 1 {
		confidence = 1
	}

	return PatternAnalysis{
		PredictedMastery: predicted,
		Confidence:       confidence,
		LearningVelocity: velocity,
	}
}

func accuracy(obs []Observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	var correct int
	for _, r := range obs {
		if r.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(obs))
}
