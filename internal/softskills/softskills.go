// SPDX-License-Identifier: MIT

// Package softskills scores the project-work questionnaire. Sixteen
// Likert items (1..5) map onto four dimensions: team dynamics, task
// structure, team motivation and team effectiveness. Scoring yields a
// mean per dimension and an overall mean.
package softskills

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Questionnaire items per dimension.
var (
	TeamDynamicsItems = []string{
		"td_communication", "td_mutual_support", "td_trust", "td_active_listening",
	}
	TaskStructureItems = []string{
		"ts_clear_roles", "ts_task_scheduling", "ts_decision_making", "ts_conflict_resolution",
	}
	TeamMotivationItems = []string{
		"tm_clear_purpose", "tm_smart_goals", "tm_passion", "tm_synergy",
	}
	TeamEffectivenessItems = []string{
		"te_growth_mindset", "te_quality_work", "te_self_monitoring", "te_reflective_practice",
	}
)

// AllItems returns every questionnaire item key.
func AllItems() []string {
	var all []string
	all = append(all, TeamDynamicsItems...)
	all = append(all, TaskStructureItems...)
	all = append(all, TeamMotivationItems...)
	all = append(all, TeamEffectivenessItems...)
	return all
}

// Scores are the computed dimension means for one assessment.
type Scores struct {
	TeamDynamics      float64 `json:"teamDynamics"`
	TaskStructure     float64 `json:"taskStructure"`
	TeamMotivation    float64 `json:"teamMotivation"`
	TeamEffectiveness float64 `json:"teamEffectiveness"`
	Overall           float64 `json:"overall"`
}

// Validate checks that every item is present and within the Likert range.
func Validate(ratings map[string]int) error {
	for _, item := range AllItems() {
		v, ok := ratings[item]
		if !ok {
			return fmt.Errorf("missing rating %q", item)
		}
		if v < 1 || v > 5 {
			return fmt.Errorf("rating %q out of range: %d", item, v)
		}
	}
	return nil
}

// Score computes dimension means and the overall mean. Ratings must have
// passed Validate.
func Score(ratings map[string]int) Scores {
	td := itemMean(ratings, TeamDynamicsItems)
	ts := itemMean(ratings, TaskStructureItems)
	tm := itemMean(ratings, TeamMotivationItems)
	te := itemMean(ratings, TeamEffectivenessItems)

	return Scores{
		TeamDynamics:      round2(td),
		TaskStructure:     round2(ts),
		TeamMotivation:    round2(tm),
		TeamEffectiveness: round2(te),
		Overall:           round2((td + ts + tm + te) / 4),
	}
}

// WeekPoint is one week of a team's trend.
type WeekPoint struct {
	Week              string  `json:"week"` // ISO year-week, e.g. "2026-W23"
	TeamDynamics      float64 `json:"teamDynamics"`
	TaskStructure     float64 `json:"taskStructure"`
	TeamMotivation    float64 `json:"teamMotivation"`
	TeamEffectiveness float64 `json:"teamEffectiveness"`
	Count             int     `json:"count"`
}

// AssessmentPoint is the slice of a stored assessment the aggregator
// needs.
type AssessmentPoint struct {
	TeamDynamics      float64
	TaskStructure     float64
	TeamMotivation    float64
	TeamEffectiveness float64
	CreatedAt         time.Time
}

// TeamSummary aggregates a team's assessments.
type TeamSummary struct {
	Current Scores      `json:"current"`
	Trend   []WeekPoint `json:"trend"`
	Count   int         `json:"count"`
}

// Aggregate computes a team's current scores (mean over all assessments)
// and a weekly trend, oldest week first.
func Aggregate(points []AssessmentPoint) TeamSummary {
	if len(points) == 0 {
		return TeamSummary{}
	}

	var sum Scores
	weekly := make(map[string]*WeekPoint)
	for _, p := range points {
		sum.TeamDynamics += p.TeamDynamics
		sum.TaskStructure += p.TaskStructure
		sum.TeamMotivation += p.TeamMotivation
		sum.TeamEffectiveness += p.TeamEffectiveness

		week := isoWeek(p.CreatedAt)
		w, ok := weekly[week]
		if !ok {
			w = &WeekPoint{Week: week}
			weekly[week] = w
		}
		w.TeamDynamics += p.TeamDynamics
		w.TaskStructure += p.TaskStructure
		w.TeamMotivation += p.TeamMotivation
		w.TeamEffectiveness += p.TeamEffectiveness
		w.Count++
	}

	n := float64(len(points))
	overall := (sum.TeamDynamics + sum.TaskStructure + sum.TeamMotivation + sum.TeamEffectiveness) / (4 * n)
	current := Scores{
		TeamDynamics:      round2(sum.TeamDynamics / n),
		TaskStructure:     round2(sum.TaskStructure / n),
		TeamMotivation:    round2(sum.TeamMotivation / n),
		TeamEffectiveness: round2(sum.TeamEffectiveness / n),
		Overall:           round2(overall),
	}

	trend := make([]WeekPoint, 0, len(weekly))
	for _, w := range weekly {
		c := float64(w.Count)
		w.TeamDynamics = round2(w.TeamDynamics / c)
		w.TaskStructure = round2(w.TaskStructure / c)
		w.TeamMotivation = round2(w.TeamMotivation / c)
		w.TeamEffectiveness = round2(w.TeamEffectiveness / c)
		trend = append(trend, *w)
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Week < trend[j].Week })

	return TeamSummary{
		Current: current,
		Trend:   trend,
		Count:   len(points),
	}
}

func itemMean(ratings map[string]int, items []string) float64 {
	var sum int
	for _, item := range items {
		sum += ratings[item]
	}
	return float64(sum) / float64(len(items))
}

func isoWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
