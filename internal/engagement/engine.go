// SPDX-License-Identifier: MIT

// Package engagement implements sensorless disengagement detection. It
// scores students from implicit signals (logins, session length, timing)
// and explicit signals (polls, self-reports), flags gaming behaviors, and
// classifies each student into an attention level for teachers.
package engagement

import "time"

// Engagement levels, ordered from healthy to urgent.
const (
	LevelEngaged  = "ENGAGED"
	LevelPassive  = "PASSIVE"
	LevelMonitor  = "MONITOR"
	LevelAtRisk   = "AT_RISK"
	LevelCritical = "CRITICAL"
)

// Behavior types flagged by the detector.
const (
	BehaviorQuickGuess        = "quick_guess"
	BehaviorBottomOutHint     = "bottom_out_hint"
	BehaviorManyAttempts      = "many_attempts"
	BehaviorLowLoginFrequency = "low_login_frequency"
	BehaviorDecliningAccuracy = "declining_performance"
	BehaviorShortSessions     = "long_inactivity"
)

// ResponseSample is the slice of a graded response the detector needs.
type ResponseSample struct {
	Correct         bool
	ResponseTimeSec float64 // <= 0 means unknown
	HintsUsed       int
	Attempts        int
}

// ImplicitSignals are captured automatically, without student input.
type ImplicitSignals struct {
	LoginFrequency          int       // logins in the past 7 days
	AvgSessionMinutes       float64   // minutes per session
	TimeOnTaskMinutes       float64   // weekly learning time
	InteractionCount        int       // clicks, responses, resource access
	ResponseTimes           []float64 // seconds per question
	TaskCompletionRate      float64   // 0..1
	ReattemptRate           float64   // 0..1
	OptionalResourceUsage   int
	DiscussionParticipation int
}

// ExplicitSignals come from polls and self-reports.
type ExplicitSignals struct {
	PollResponses      int     // polls answered this week
	UnderstandingLevel float64 // self-reported, 1..5
	ParticipationRate  float64 // 0..1
	QuizAccuracy       float64 // 0..1
}

// Behavior is one detected disengagement pattern.
type Behavior struct {
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Count       int       `json:"count,omitempty"`
	DeclinePct  float64   `json:"declinePct,omitempty"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// Config tunes detection thresholds and score weights.
type Config struct {
	QuickGuessSeconds float64
	MaxHints          int
	ManyAttempts      int
	MinLogins         int // per week
	MinSessionMinutes float64
	ImplicitWeight    float64
	ExplicitWeight    float64
	AtRiskThreshold   float64
	CriticalThreshold float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		QuickGuessSeconds: 3.0,
		MaxHints:          3,
		ManyAttempts:      3,
		MinLogins:         3,
		MinSessionMinutes: 5.0,
		ImplicitWeight:    0.6,
		ExplicitWeight:    0.4,
		AtRiskThreshold:   50.0,
		CriticalThreshold: 30.0,
	}
}

// Engine runs disengagement detection and scoring.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine creates an engagement engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// DetectBehaviors flags gaming and withdrawal patterns in a student's
// recent responses and activity signals.
func (e *Engine) DetectBehaviors(responses []ResponseSample, implicit ImplicitSignals) []Behavior {
	var behaviors []Behavior
	now := e.now().UTC()

	// Answers faster than a human can read the question.
	quickGuesses := 0
	for _, r := range responses {
		if r.ResponseTimeSec > 0 && r.ResponseTimeSec < e.cfg.QuickGuessSeconds {
			quickGuesses++
		}
	}
	if quickGuesses >= 3 {
		severity := LevelMonitor
		if quickGuesses >= 5 {
			severity = LevelAtRisk
		}
		behaviors = append(behaviors, Behavior{
			Type:        BehaviorQuickGuess,
			Severity:    severity,
			Count:       quickGuesses,
			Description: "answering without thinking (under 3 seconds)",
			DetectedAt:  now,
		})
	}

	// Exhausting every hint before attempting means giving up.
	bottomOut := 0
	for _, r := range responses {
		if r.HintsUsed >= e.cfg.MaxHints {
			bottomOut++
		}
	}
	if bottomOut >= 2 {
		behaviors = append(behaviors, Behavior{
			Type:        BehaviorBottomOutHint,
			Severity:    LevelAtRisk,
			Count:       bottomOut,
			Description: "using all hints without attempting",
			DetectedAt:  now,
		})
	}

	manyAttempts := 0
	for _, r := range responses {
		if r.Attempts > e.cfg.ManyAttempts {
			manyAttempts++
		}
	}
	if manyAttempts >= 3 {
		behaviors = append(behaviors, Behavior{
			Type:        BehaviorManyAttempts,
			Severity:    LevelMonitor,
			Count:       manyAttempts,
			Description: "random clicking or guessing on multiple questions",
			DetectedAt:  now,
		})
	}

	if implicit.LoginFrequency < e.cfg.MinLogins {
		severity := LevelMonitor
		if implicit.LoginFrequency < 2 {
			severity = LevelAtRisk
		}
		behaviors = append(behaviors, Behavior{
			Type:        BehaviorLowLoginFrequency,
			Severity:    severity,
			Count:       implicit.LoginFrequency,
			Description: "too few logins in the past week",
			DetectedAt:  now,
		})
	}

	// Accuracy dropping more than 20 points between the first and second
	// half of the window.
	if mid := len(responses) / 2; mid > 0 {
		decline := sampleAccuracy(responses[:mid]) - sampleAccuracy(responses[mid:])
		if decline > 0.2 {
			behaviors = append(behaviors, Behavior{
				Type:        BehaviorDecliningAccuracy,
				Severity:    LevelAtRisk,
				DeclinePct:  decline * 100,
				Description: "accuracy declining across recent work",
				DetectedAt:  now,
			})
		}
	}

	if implicit.AvgSessionMinutes < e.cfg.MinSessionMinutes {
		behaviors = append(behaviors, Behavior{
			Type:        BehaviorShortSessions,
			Severity:    LevelMonitor,
			Description: "very short sessions",
			DetectedAt:  now,
		})
	}

	return behaviors
}

// ScoreResult is a full engagement evaluation.
type ScoreResult struct {
	Score             float64    `json:"score"`
	ImplicitComponent float64    `json:"implicitComponent"`
	ExplicitComponent float64    `json:"explicitComponent"`
	Level             string     `json:"level"`
	Penalty           float64    `json:"penalty"`
	Behaviors         []Behavior `json:"behaviors"`
	Recommendations   []string   `json:"recommendations"`
}

// Score combines implicit and explicit components, subtracts behavior
// penalties, and classifies the result.
func (e *Engine) Score(implicit ImplicitSignals, explicit ExplicitSignals, behaviors []Behavior) ScoreResult {
	implicitScore := e.implicitScore(implicit)
	explicitScore := e.explicitScore(explicit)

	base := implicitScore*e.cfg.ImplicitWeight + explicitScore*e.cfg.ExplicitWeight

	var penalty float64
	for _, b := range behaviors {
		switch b.Severity {
		case LevelMonitor:
			penalty += 5
		case LevelAtRisk:
			penalty += 10
		case LevelCritical:
			penalty += 20
		}
	}

	score := base - penalty
	if score < 0 {
		score = 0
	}

	level := e.classify(score, behaviors)

	return ScoreResult{
		Score:             score,
		ImplicitComponent: implicitScore,
		ExplicitComponent: explicitScore,
		Level:             level,
		Penalty:           penalty,
		Behaviors:         behaviors,
		Recommendations:   recommendations(level, behaviors),
	}
}

func (e *Engine) implicitScore(s ImplicitSignals) float64 {
	loginScore := capAt100(float64(s.LoginFrequency) / 7 * 100)
	durationScore := capAt100(s.AvgSessionMinutes / 30 * 100)
	timeOnTaskScore := capAt100(s.TimeOnTaskMinutes / 120 * 100)
	interactionScore := capAt100(float64(s.InteractionCount) / 50 * 100)

	// Moderate response times are healthiest: instant answers look like
	// guessing, very slow ones like disengagement.
	responseTimeScore := 50.0
	if len(s.ResponseTimes) > 0 {
		var sum float64
		for _, t := range s.ResponseTimes {
			sum += t
		}
		avg := sum / float64(len(s.ResponseTimes))
		switch {
		case avg < 3:
			responseTimeScore = 50
		case avg < 30:
			responseTimeScore = 100
		default:
			responseTimeScore = 100 - (avg-30)*2
			if responseTimeScore < 0 {
				responseTimeScore = 0
			}
		}
	}

	completionScore := s.TaskCompletionRate * 100
	reattemptScore := capAt100(s.ReattemptRate * 150)
	resourceScore := capAt100(float64(s.OptionalResourceUsage) / 5 * 100)
	discussionScore := capAt100(float64(s.DiscussionParticipation) / 3 * 100)

	return loginScore*0.15 +
		durationScore*0.15 +
		timeOnTaskScore*0.15 +
		interactionScore*0.1 +
		responseTimeScore*0.1 +
		completionScore*0.2 +
		reattemptScore*0.05 +
		resourceScore*0.05 +
		discussionScore*0.05
}

func (e *Engine) explicitScore(s ExplicitSignals) float64 {
	pollScore := capAt100(float64(s.PollResponses) / 5 * 100)
	understandingScore := s.UnderstandingLevel / 5 * 100
	participationScore := s.ParticipationRate * 100
	accuracyScore := s.QuizAccuracy * 100

	return pollScore*0.2 +
		understandingScore*0.3 +
		participationScore*0.3 +
		accuracyScore*0.2
}

func (e *Engine) classify(score float64, behaviors []Behavior) string {
	var critical, atRisk int
	for _, b := range behaviors {
		switch b.Severity {
		case LevelCritical:
			critical++
		case LevelAtRisk:
			atRisk++
		}
	}

	switch {
	case critical > 0 || score < e.cfg.CriticalThreshold:
		return LevelCritical
	case atRisk >= 2 || score < e.cfg.AtRiskThreshold:
		return LevelAtRisk
	case atRisk == 1 || score < 65:
		return LevelMonitor
	case score < 75:
		return LevelPassive
	default:
		return LevelEngaged
	}
}

func recommendations(level string, behaviors []Behavior) []string {
	var recs []string

	switch level {
	case LevelCritical:
		recs = append(recs,
			"URGENT: schedule immediate 1-on-1 meeting",
			"contact parents or guardians",
			"consider support services referral")
	case LevelAtRisk:
		recs = append(recs,
			"schedule a 1-on-1 check-in within 48 hours",
			"review recent assignments for difficulty issues",
			"consider peer mentoring or a study group")
	case LevelMonitor:
		recs = append(recs,
			"monitor progress for the next 3-5 days",
			"provide encouragement and check understanding")
	}

	seen := make(map[string]bool)
	for _, b := range behaviors {
		seen[b.Type] = true
	}
	if seen[BehaviorQuickGuess] {
		recs = append(recs, "add time locks or reflection prompts to questions")
	}
	if seen[BehaviorBottomOutHint] {
		recs = append(recs, "simplify content or provide more scaffolding")
	}
	if seen[BehaviorLowLoginFrequency] {
		recs = append(recs, "send reminder notifications or check technology access")
	}
	if seen[BehaviorDecliningAccuracy] {
		recs = append(recs, "review the recent topic for a knowledge gap")
	}

	return recs
}

func sampleAccuracy(samples []ResponseSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var correct int
	for _, s := range samples {
		if s.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}

func capAt100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
