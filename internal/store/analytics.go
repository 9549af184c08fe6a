// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"time"
)

// InsertIntervention records a teacher action for a student.
func (s *Store) InsertIntervention(ctx context.Context, iv Intervention) error {
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO interventions (id, student_id, teacher_id, kind, notes, baseline_score, followup_score, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		iv.ID, iv.StudentID, iv.TeacherID, iv.Kind, iv.Notes,
		iv.BaselineScore, iv.FollowupScore, iv.CreatedAt.Format(time.RFC3339))
	return err
}

// SetInterventionFollowup records the engagement score measured after an
// intervention, enabling impact reporting.
func (s *Store) SetInterventionFollowup(ctx context.Context, id string, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interventions SET followup_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListInterventionsByStudent returns a student's interventions, newest
// first.
func (s *Store) ListInterventionsByStudent(ctx context.Context, studentID string) ([]Intervention, error) {
	query := `
	SELECT id, student_id, teacher_id, kind, notes, baseline_score, followup_score, created_at
	FROM interventions WHERE student_id = ?
	ORDER BY created_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var interventions []Intervention
	for rows.Next() {
		var iv Intervention
		var followup sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&iv.ID, &iv.StudentID, &iv.TeacherID, &iv.Kind, &iv.Notes,
			&iv.BaselineScore, &followup, &createdAt); err != nil {
			return nil, err
		}
		if followup.Valid {
			v := followup.Float64
			iv.FollowupScore = &v
		}
		iv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		interventions = append(interventions, iv)
	}
	return interventions, rows.Err()
}

// InterventionImpact summarizes how engagement moved after interventions
// of one kind.
type InterventionImpact struct {
	Kind          string  `json:"kind"`
	Total         int     `json:"total"`
	WithFollowup  int     `json:"withFollowup"`
	MeanBaseline  float64 `json:"meanBaseline"`
	MeanFollowup  float64 `json:"meanFollowup"`
	MeanDelta     float64 `json:"meanDelta"`
	ImprovedCount int     `json:"improvedCount"`
}

// GetInterventionImpact aggregates baseline/follow-up deltas per
// intervention kind. Interventions without a follow-up count toward the
// total only.
func (s *Store) GetInterventionImpact(ctx context.Context) ([]InterventionImpact, error) {
	query := `
	SELECT kind, baseline_score, followup_score
	FROM interventions
	ORDER BY kind
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byKind := make(map[string]*InterventionImpact)
	var order []string
	for rows.Next() {
		var kind string
		var baseline float64
		var followup sql.NullFloat64
		if err := rows.Scan(&kind, &baseline, &followup); err != nil {
			return nil, err
		}
		impact, ok := byKind[kind]
		if !ok {
			impact = &InterventionImpact{Kind: kind}
			byKind[kind] = impact
			order = append(order, kind)
		}
		impact.Total++
		if followup.Valid {
			impact.WithFollowup++
			impact.MeanBaseline += baseline
			impact.MeanFollowup += followup.Float64
			if followup.Float64 > baseline {
				impact.ImprovedCount++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	impacts := make([]InterventionImpact, 0, len(order))
	for _, kind := range order {
		impact := byKind[kind]
		if impact.WithFollowup > 0 {
			n := float64(impact.WithFollowup)
			impact.MeanBaseline /= n
			impact.MeanFollowup /= n
			impact.MeanDelta = impact.MeanFollowup - impact.MeanBaseline
		}
		impacts = append(impacts, *impact)
	}
	return impacts, nil
}

// InstitutionOverview is the cross-class analytics rollup.
type InstitutionOverview struct {
	Students         int     `json:"students"`
	Classes          int     `json:"classes"`
	Concepts         int     `json:"concepts"`
	MeanMastery      float64 `json:"meanMastery"`
	MeanEngagement   float64 `json:"meanEngagement"`
	OpenAlerts       int     `json:"openAlerts"`
	ActivePolls      int     `json:"activePolls"`
	ActiveProjects   int     `json:"activeProjects"`
	ResponsesLast7d  int     `json:"responsesLast7d"`
	AtRiskOrCritical int     `json:"atRiskOrCritical"`
}

// GetInstitutionOverview computes the institution-wide dashboard rollup.
func (s *Store) GetInstitutionOverview(ctx context.Context, now time.Time) (*InstitutionOverview, error) {
	o := &InstitutionOverview{}

	scalars := []struct {
		query string
		args  []any
		dest  any
	}{
		{`SELECT COUNT(*) FROM students`, nil, &o.Students},
		{`SELECT COUNT(DISTINCT class_id) FROM students`, nil, &o.Classes},
		{`SELECT COUNT(*) FROM concepts`, nil, &o.Concepts},
		{`SELECT COALESCE(AVG(blended_score), 0) FROM mastery`, nil, &o.MeanMastery},
		{`SELECT COUNT(*) FROM alerts WHERE acknowledged = 0`, nil, &o.OpenAlerts},
		{`SELECT COUNT(*) FROM polls WHERE status = 'open'`, nil, &o.ActivePolls},
		{`SELECT COUNT(*) FROM projects WHERE status = 'active'`, nil, &o.ActiveProjects},
		{
			`SELECT COUNT(*) FROM responses WHERE created_at >= ?`,
			[]any{now.Add(-7 * 24 * time.Hour).UTC().Format(time.RFC3339)},
			&o.ResponsesLast7d,
		},
	}
	for _, q := range scalars {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	// Latest snapshot per student feeds the engagement mean and the
	// at-risk count.
	query := `
	SELECT e.score, e.level
	FROM engagement_snapshots e
	JOIN (
		SELECT student_id, MAX(created_at) AS latest
		FROM engagement_snapshots
		GROUP BY student_id
	) latest ON latest.student_id = e.student_id AND latest.latest = e.created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sum float64
	var count int
	for rows.Next() {
		var score float64
		var level string
		if err := rows.Scan(&score, &level); err != nil {
			return nil, err
		}
		count++
		sum += score
		if level == "AT_RISK" || level == "CRITICAL" {
			o.AtRiskOrCritical++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if count > 0 {
		o.MeanEngagement = sum / float64(count)
	}
	return o, nil
}
