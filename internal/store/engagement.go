// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// InsertSnapshot persists an engagement evaluation.
func (s *Store) InsertSnapshot(ctx context.Context, snap EngagementSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	behaviors, err := json.Marshal(snap.Behaviors)
	if err != nil {
		return fmt.Errorf("marshal behaviors: %w", err)
	}
	query := `
	INSERT INTO engagement_snapshots (id, student_id, class_id, score, level,
		implicit_score, explicit_score, behaviors, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		snap.ID, snap.StudentID, snap.ClassID, snap.Score, snap.Level,
		snap.ImplicitScore, snap.ExplicitScore, string(behaviors),
		snap.CreatedAt.Format(time.RFC3339))
	return err
}

// LatestSnapshot returns a student's most recent engagement snapshot.
func (s *Store) LatestSnapshot(ctx context.Context, studentID string) (*EngagementSnapshot, error) {
	var snap EngagementSnapshot
	var behaviors, createdAt string
	err := s.db.QueryRowContext(ctx, `
	SELECT id, student_id, class_id, score, level, implicit_score, explicit_score, behaviors, created_at
	FROM engagement_snapshots
	WHERE student_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT 1`, studentID,
	).Scan(&snap.ID, &snap.StudentID, &snap.ClassID, &snap.Score, &snap.Level,
		&snap.ImplicitScore, &snap.ExplicitScore, &behaviors, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(behaviors), &snap.Behaviors); err != nil {
		return nil, fmt.Errorf("unmarshal behaviors: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &snap, nil
}

// ListSnapshots returns a student's snapshots since the given time,
// oldest first.
func (s *Store) ListSnapshots(ctx context.Context, studentID string, since time.Time) ([]EngagementSnapshot, error) {
	query := `
	SELECT id, student_id, class_id, score, level, implicit_score, explicit_score, behaviors, created_at
	FROM engagement_snapshots
	WHERE student_id = ? AND created_at >= ?
	ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, studentID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var snaps []EngagementSnapshot
	for rows.Next() {
		var snap EngagementSnapshot
		var behaviors, createdAt string
		if err := rows.Scan(&snap.ID, &snap.StudentID, &snap.ClassID, &snap.Score, &snap.Level,
			&snap.ImplicitScore, &snap.ExplicitScore, &behaviors, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(behaviors), &snap.Behaviors); err != nil {
			return nil, fmt.Errorf("unmarshal behaviors: %w", err)
		}
		snap.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// InsertAlert persists a disengagement alert.
func (s *Store) InsertAlert(ctx context.Context, a Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO alerts (id, student_id, class_id, severity, reason, message, acknowledged, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.StudentID, a.ClassID, a.Severity, a.Reason, a.Message,
		boolToInt(a.Acknowledged), a.CreatedAt.Format(time.RFC3339))
	return err
}

// ListAlertsByClass returns a class's alerts, newest first. When
// unackedOnly is set, acknowledged alerts are filtered out.
func (s *Store) ListAlertsByClass(ctx context.Context, classID string, unackedOnly bool) ([]Alert, error) {
	query := `
	SELECT id, student_id, class_id, severity, reason, message, acknowledged, created_at
	FROM alerts
	WHERE class_id = ?
	`
	if unackedOnly {
		query += ` AND acknowledged = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var acked int
		var createdAt string
		if err := rows.Scan(&a.ID, &a.StudentID, &a.ClassID, &a.Severity, &a.Reason,
			&a.Message, &acked, &createdAt); err != nil {
			return nil, err
		}
		a.Acknowledged = acked != 0
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an alert as handled.
func (s *Store) AcknowledgeAlert(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET acknowledged = 1 WHERE id = ?`, id)
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

// AttentionStudent is a class member whose latest snapshot sits at an
// at-risk or critical level.
type AttentionStudent struct {
	StudentID string  `json:"studentId"`
	Score     float64 `json:"score"`
	Level     string  `json:"level"`
}

// ClassEngagementRollup summarizes a class from each student's latest
// snapshot.
type ClassEngagementRollup struct {
	ClassID        string             `json:"classId"`
	Students       int                `json:"students"`
	MeanScore      float64            `json:"meanScore"`
	ByLevel        map[string]int     `json:"byLevel"`
	OpenAlerts     int                `json:"openAlerts"`
	Attention      []AttentionStudent `json:"attention"`
	EngagementRate float64            `json:"engagementRate"`
}

// GetClassEngagementRollup aggregates the latest snapshot per student in
// a class plus the open alert count, the students needing attention and
// the share of engaged or passive students.
func (s *Store) GetClassEngagementRollup(ctx context.Context, classID string) (*ClassEngagementRollup, error) {
	query := `
	SELECT e.student_id, e.score, e.level
	FROM engagement_snapshots e
	JOIN (
		SELECT student_id, MAX(created_at) AS latest
		FROM engagement_snapshots
		WHERE class_id = ?
		GROUP BY student_id
	) latest ON latest.student_id = e.student_id AND latest.latest = e.created_at
	WHERE e.class_id = ?
	ORDER BY e.score, e.student_id
	`
	rows, err := s.db.QueryContext(ctx, query, classID, classID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	rollup := &ClassEngagementRollup{
		ClassID:   classID,
		ByLevel:   make(map[string]int),
		Attention: []AttentionStudent{},
	}
	var sum float64
	for rows.Next() {
		var studentID, level string
		var score float64
		if err := rows.Scan(&studentID, &score, &level); err != nil {
			return nil, err
		}
		rollup.Students++
		sum += score
		rollup.ByLevel[level]++
		if level == "AT_RISK" || level == "CRITICAL" {
			rollup.Attention = append(rollup.Attention, AttentionStudent{
				StudentID: studentID,
				Score:     score,
				Level:     level,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if rollup.Students > 0 {
		rollup.MeanScore = sum / float64(rollup.Students)
		healthy := rollup.ByLevel["ENGAGED"] + rollup.ByLevel["PASSIVE"]
		rollup.EngagementRate = float64(healthy) / float64(rollup.Students) * 100
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE class_id = ? AND acknowledged = 0`, classID,
	).Scan(&rollup.OpenAlerts)
	if err != nil {
		return nil, err
	}
	return rollup, nil
}
