// SPDX-License-Identifier: MIT

// Package practice builds adaptive practice sessions. Item selection
// keeps the student inside the zone of proximal development while keeping
// the session's cognitive load below an overwhelm threshold, and skips
// material the student has already mastered.
package practice

import (
	"sort"

	"github.com/google/uuid"
)

// Load status codes for a planned session.
const (
	LoadTooEasy      = "TOO_EASY"
	LoadOptimal      = "OPTIMAL"
	LoadOverwhelming = "OVERWHELMING"
)

// Item is a candidate practice question or activity.
type Item struct {
	ID                   string   `json:"id"`
	ConceptID            string   `json:"conceptId"`
	Difficulty           float64  `json:"difficulty"` // 0..1
	Weight               float64  `json:"weight"`
	EstimatedMinutes     float64  `json:"estimatedMinutes"`
	ScaffoldingAvailable bool     `json:"scaffoldingAvailable"`
	Prerequisites        []string `json:"prerequisites,omitempty"`
	Scaffolded           bool     `json:"scaffolded,omitempty"`
}

// Config tunes session generation.
type Config struct {
	LoadMin        float64 // below this the session is too easy
	LoadOptimal    float64
	LoadMax        float64 // above this the session overwhelms
	Gamma          float64 // difficulty adjustment scale
	SkipThreshold  float64 // mastery at which a concept is skipped
	LightThreshold float64 // mastery at which review is capped
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		LoadMin:        0.4,
		LoadOptimal:    0.65,
		LoadMax:        0.85,
		Gamma:          0.1,
		SkipThreshold:  85.0,
		LightThreshold: 60.0,
	}
}

// Engine generates adaptive practice sessions.
type Engine struct {
	cfg Config
}

// NewEngine creates a practice engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

const defaultMastery = 30.0

// CognitiveLoad computes the mean load of a set of items for a student:
// each item contributes weight * difficulty * (1 - proficiency).
func (e *Engine) CognitiveLoad(items []Item, mastery map[string]float64) float64 {
	if len(items) == 0 {
		return 0
	}
	var total float64
	for _, item := range items {
		k := masteryFor(mastery, item.ConceptID) / 100.0
		total += item.Weight * item.Difficulty * (1 - k)
	}
	return total / float64(len(items))
}

// SelectContent picks items for a session of minutesAvailable. Candidates
// are filtered by mastery, ordered by ZPD fit, and admitted while the
// projected load stays under the ceiling. An item that would push the
// load over is retried as a scaffolded variant when one is available.
func (e *Engine) SelectContent(
	available []Item,
	mastery map[string]float64,
	velocity map[string]float64,
	minutesAvailable float64,
) []Item {
	filtered := e.filterByMastery(available, mastery)
	prioritized := e.prioritizeByZPD(filtered, mastery, velocity)

	var selected []Item
	var usedMinutes float64
	for _, item := range prioritized {
		if usedMinutes+item.EstimatedMinutes > minutesAvailable {
			break
		}

		projected := append(append([]Item(nil), selected...), item)
		if e.CognitiveLoad(projected, mastery) <= e.cfg.LoadMax {
			selected = append(selected, item)
			usedMinutes += item.EstimatedMinutes
			continue
		}

		if !item.ScaffoldingAvailable {
			continue
		}
		scaffolded := scaffold(item)
		projected = append(append([]Item(nil), selected...), scaffolded)
		if e.CognitiveLoad(projected, mastery) <= e.cfg.LoadMax {
			selected = append(selected, scaffolded)
			usedMinutes += scaffolded.EstimatedMinutes
		}
	}
	return selected
}

// scaffold derives an easier variant: difficulty drops 30%, and working
// through the scaffolding costs two extra minutes.
func scaffold(item Item) Item {
	out := item
	out.ID = item.ID + "_scaffolded"
	out.Difficulty = item.Difficulty * 0.7
	out.EstimatedMinutes = item.EstimatedMinutes + 2
	out.ScaffoldingAvailable = false
	out.Scaffolded = true
	return out
}

// filterByMastery drops mastered concepts and caps item counts: two per
// concept under light review, ten per concept under focused practice.
func (e *Engine) filterByMastery(items []Item, mastery map[string]float64) []Item {
	var filtered []Item
	counts := make(map[string]int)

	for _, item := range items {
		m := masteryFor(mastery, item.ConceptID)
		switch {
		case m >= e.cfg.SkipThreshold:
			continue
		case m >= e.cfg.LightThreshold:
			if counts[item.ConceptID] < 2 {
				filtered = append(filtered, item)
				counts[item.ConceptID]++
			}
		default:
			if counts[item.ConceptID] < 10 {
				filtered = append(filtered, item)
				counts[item.ConceptID]++
			}
		}
	}
	return filtered
}

// prioritizeByZPD orders items by how well their difficulty sits relative
// to the student's mastery. The sweet spot is 0.1 to 0.3 above mastery.
func (e *Engine) prioritizeByZPD(items []Item, mastery, velocity map[string]float64) []Item {
	type scored struct {
		score float64
		item  Item
	}
	scoredItems := make([]scored, 0, len(items))

	for _, item := range items {
		m := masteryFor(mastery, item.ConceptID) / 100.0
		distance := item.Difficulty - m

		var score float64
		switch {
		case distance >= 0.1 && distance <= 0.3:
			score = 1.0
		case distance >= 0.0 && distance < 0.1:
			score = 0.6
		case distance > 0.3 && distance <= 0.5:
			if item.ScaffoldingAvailable {
				score = 0.7
			} else {
				score = 0.3
			}
		default:
			score = 0.2
		}

		if velocity[item.ConceptID] > 0 {
			score *= 1.2
		}

		// Unfinished prerequisites push an item down the list.
		for _, prereq := range item.Prerequisites {
			if mastery[prereq] < e.cfg.LightThreshold {
				score *= 0.5
				break
			}
		}

		scoredItems = append(scoredItems, scored{score: score, item: item})
	}

	sort.SliceStable(scoredItems, func(i, j int) bool {
		return scoredItems[i].score > scoredItems[j].score
	})

	out := make([]Item, len(scoredItems))
	for i, s := range scoredItems {
		out[i] = s.item
	}
	return out
}

// AdjustDifficulty moves an item's difficulty after a response: above
// half mastery pushes difficulty up, and beating the target response
// time adds a further nudge. The result stays within 0.1 to 1.0.
func (e *Engine) AdjustDifficulty(current, masteryScore, responseTimeSec, targetTimeSec float64) float64 {
	if targetTimeSec <= 0 {
		targetTimeSec = 15.0
	}
	masteryAdj := e.cfg.Gamma * (masteryScore/100.0 - 0.5)
	timeAdj := e.cfg.Gamma * 0.5 * (1 - responseTimeSec/targetTimeSec)

	next := current + masteryAdj + timeAdj
	if next < 0.1 {
		return 0.1
	}
	if next > 1.0 {
		return 1.0
	}
	return next
}

// ConceptCoverage summarizes one concept's share of a session.
type ConceptCoverage struct {
	Count         int     `json:"count"`
	AvgDifficulty float64 `json:"avgDifficulty"`
	Mastery       float64 `json:"mastery"`
}

// Session is a planned adaptive practice session.
type Session struct {
	SessionID        string                     `json:"sessionId"`
	StudentID        string                     `json:"studentId"`
	Items            []Item                     `json:"items"`
	TotalItems       int                        `json:"totalItems"`
	EstimatedMinutes float64                    `json:"estimatedMinutes"`
	CognitiveLoad    float64                    `json:"cognitiveLoad"`
	LoadStatus       string                     `json:"loadStatus"`
	Concepts         map[string]ConceptCoverage `json:"concepts"`
	ZPDAligned       bool                       `json:"zpdAligned"`
}

// GenerateSession plans a full session for a student.
func (e *Engine) GenerateSession(
	studentID string,
	mastery map[string]float64,
	velocity map[string]float64,
	available []Item,
	minutesAvailable float64,
) Session {
	selected := e.SelectContent(available, mastery, velocity, minutesAvailable)
	load := e.CognitiveLoad(selected, mastery)

	concepts := make(map[string]ConceptCoverage)
	var totalMinutes float64
	for _, item := range selected {
		cov := concepts[item.ConceptID]
		cov.Count++
		cov.AvgDifficulty += item.Difficulty
		cov.Mastery = masteryFor(mastery, item.ConceptID)
		concepts[item.ConceptID] = cov
		totalMinutes += item.EstimatedMinutes
	}
	for id, cov := range concepts {
		cov.AvgDifficulty /= float64(cov.Count)
		concepts[id] = cov
	}

	return Session{
		SessionID:        uuid.NewString(),
		StudentID:        studentID,
		Items:            selected,
		TotalItems:       len(selected),
		EstimatedMinutes: totalMinutes,
		CognitiveLoad:    load,
		LoadStatus:       e.loadStatus(load),
		Concepts:         concepts,
		ZPDAligned:       load >= e.cfg.LoadMin && load <= e.cfg.LoadMax,
	}
}

func (e *Engine) loadStatus(load float64) string {
	switch {
	case load < e.cfg.LoadMin:
		return LoadTooEasy
	case load > e.cfg.LoadMax:
		return LoadOverwhelming
	default:
		return LoadOptimal
	}
}

func masteryFor(mastery map[string]float64, conceptID string) float64 {
	if m, ok := mastery[conceptID]; ok {
		return m
	}
	return defaultMastery
}
