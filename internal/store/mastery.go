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

// UpsertStudent inserts or updates a roster entry.
func (s *Store) UpsertStudent(ctx context.Context, st Student) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO students (id, class_id, name, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET class_id = excluded.class_id, name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, st.ID, st.ClassID, st.Name, st.CreatedAt.Format(time.RFC3339))
	return err
}

// ListStudentsByClass returns the roster of a class ordered by name.
func (s *Store) ListStudentsByClass(ctx context.Context, classID string) ([]Student, error) {
	query := `
	SELECT id, class_id, name, created_at
	FROM students
	WHERE class_id = ?
	ORDER BY name, id
	`
	rows, err := s.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var students []Student
	for rows.Next() {
		var st Student
		var createdAt string
		if err := rows.Scan(&st.ID, &st.ClassID, &st.Name, &createdAt); err != nil {
			return nil, err
		}
		st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		students = append(students, st)
	}
	return students, rows.Err()
}

// GetStudent fetches a single roster entry.
func (s *Store) GetStudent(ctx context.Context, id string) (*Student, error) {
	var st Student
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, class_id, name, created_at FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.ClassID, &st.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &st, nil
}

// UpsertConcept inserts or updates a concept.
func (s *Store) UpsertConcept(ctx context.Context, c Concept) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	prereqs, err := json.Marshal(c.Prerequisites)
	if err != nil {
		return fmt.Errorf("marshal prerequisites: %w", err)
	}
	query := `
	INSERT INTO concepts (id, name, description, difficulty, prerequisites, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		difficulty = excluded.difficulty,
		prerequisites = excluded.prerequisites
	`
	_, err = s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Description, c.Difficulty, string(prereqs), c.CreatedAt.Format(time.RFC3339))
	return err
}

// GetConcept fetches a concept by ID.
func (s *Store) GetConcept(ctx context.Context, id string) (*Concept, error) {
	var c Concept
	var prereqs, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, difficulty, prerequisites, created_at FROM concepts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Difficulty, &prereqs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(prereqs), &c.Prerequisites); err != nil {
		return nil, fmt.Errorf("unmarshal prerequisites: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// ListConcepts returns all concepts ordered by name.
func (s *Store) ListConcepts(ctx context.Context) ([]Concept, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, difficulty, prerequisites, created_at FROM concepts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var concepts []Concept
	for rows.Next() {
		var c Concept
		var prereqs, createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Difficulty, &prereqs, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(prereqs), &c.Prerequisites); err != nil {
			return nil, fmt.Errorf("unmarshal prerequisites: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// UpsertMastery stores the latest tracing outcome for a student/concept.
func (s *Store) UpsertMastery(ctx context.Context, m MasteryRecord) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO mastery (student_id, concept_id, bkt_score, dkt_score, dkvmn_score,
		blended_score, confidence, learning_velocity, recommendation, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(student_id, concept_id) DO UPDATE SET
		bkt_score = excluded.bkt_score,
		dkt_score = excluded.dkt_score,
		dkvmn_score = excluded.dkvmn_score,
		blended_score = excluded.blended_score,
		confidence = excluded.confidence,
		learning_velocity = excluded.learning_velocity,
		recommendation = excluded.recommendation,
		updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		m.StudentID, m.ConceptID, m.BKTScore, m.DKTScore, m.DKVMNScore,
		m.BlendedScore, m.Confidence, m.LearningVelocity, m.Recommendation,
		m.UpdatedAt.Format(time.RFC3339))
	return err
}

// GetMastery fetches the mastery record for a student/concept pair.
func (s *Store) GetMastery(ctx context.Context, studentID, conceptID string) (*MasteryRecord, error) {
	var m MasteryRecord
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
	SELECT student_id, concept_id, bkt_score, dkt_score, dkvmn_score,
		blended_score, confidence, learning_velocity, recommendation, updated_at
	FROM mastery WHERE student_id = ? AND concept_id = ?`, studentID, conceptID,
	).Scan(&m.StudentID, &m.ConceptID, &m.BKTScore, &m.DKTScore, &m.DKVMNScore,
		&m.BlendedScore, &m.Confidence, &m.LearningVelocity, &m.Recommendation, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &m, nil
}

// ListMasteryByStudent returns all mastery records of a student.
func (s *Store) ListMasteryByStudent(ctx context.Context, studentID string) ([]MasteryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT student_id, concept_id, bkt_score, dkt_score, dkvmn_score,
		blended_score, confidence, learning_velocity, recommendation, updated_at
	FROM mastery WHERE student_id = ? ORDER BY concept_id`, studentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []MasteryRecord
	for rows.Next() {
		var m MasteryRecord
		var updatedAt string
		if err := rows.Scan(&m.StudentID, &m.ConceptID, &m.BKTScore, &m.DKTScore, &m.DKVMNScore,
			&m.BlendedScore, &m.Confidence, &m.LearningVelocity, &m.Recommendation, &updatedAt); err != nil {
			return nil, err
		}
		m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		records = append(records, m)
	}
	return records, rows.Err()
}

// InsertResponse records a graded item interaction.
func (s *Store) InsertResponse(ctx context.Context, r Response) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO responses (id, student_id, concept_id, item_id, correct,
		time_taken_sec, hints_used, attempt_number, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.StudentID, r.ConceptID, r.ItemID, boolToInt(r.Correct),
		r.TimeTakenSec, r.HintsUsed, r.AttemptNumber, r.CreatedAt.Format(time.RFC3339))
	return err
}

// RecentResponses returns the most recent responses of a student on a
// concept in chronological order, capped at limit.
func (s *Store) RecentResponses(ctx context.Context, studentID, conceptID string, limit int) ([]Response, error) {
	query := `
	SELECT id, student_id, concept_id, item_id, correct,
		time_taken_sec, hints_used, attempt_number, created_at
	FROM responses
	WHERE student_id = ? AND concept_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, studentID, conceptID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var responses []Response
	for rows.Next() {
		var r Response
		var correct int
		var createdAt string
		if err := rows.Scan(&r.ID, &r.StudentID, &r.ConceptID, &r.ItemID, &correct,
			&r.TimeTakenSec, &r.HintsUsed, &r.AttemptNumber, &createdAt); err != nil {
			return nil, err
		}
		r.Correct = correct != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returned newest first; callers want chronological order.
	for i, j := 0, len(responses)-1; i < j; i, j = i+1, j-1 {
		responses[i], responses[j] = responses[j], responses[i]
	}
	return responses, nil
}

// ConceptClassSummary aggregates class mastery on one concept: mean,
// spread and a five-bucket score histogram (0-19, 20-39, ...).
type ConceptClassSummary struct {
	ConceptID       string  `json:"conceptId"`
	ClassID         string  `json:"classId"`
	Students        int     `json:"students"`
	MeanScore       float64 `json:"meanScore"`
	MinScore        float64 `json:"minScore"`
	MaxScore        float64 `json:"maxScore"`
	Histogram       [5]int  `json:"histogram"`
	BelowSixty      int     `json:"belowSixty"`
	AboveEightyFive int     `json:"aboveEightyFive"`
}

// GetConceptClassSummary aggregates mastery for a class on one concept.
func (s *Store) GetConceptClassSummary(ctx context.Context, classID, conceptID string) (*ConceptClassSummary, error) {
	query := `
	SELECT m.blended_score
	FROM mastery m
	JOIN students st ON st.id = m.student_id
	WHERE st.class_id = ? AND m.concept_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, classID, conceptID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summary := &ConceptClassSummary{ConceptID: conceptID, ClassID: classID}
	var sum float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, err
		}
		if summary.Students == 0 {
			summary.MinScore = score
			summary.MaxScore = score
		} else {
			if score < summary.MinScore {
				summary.MinScore = score
			}
			if score > summary.MaxScore {
				summary.MaxScore = score
			}
		}
		summary.Students++
		sum += score

		bucket := int(score / 20)
		if bucket > 4 {
			bucket = 4
		}
		if bucket < 0 {
			bucket = 0
		}
		summary.Histogram[bucket]++
		if score < 60 {
			summary.BelowSixty++
		}
		if score >= 85 {
			summary.AboveEightyFive++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if summary.Students > 0 {
		summary.MeanScore = sum / float64(summary.Students)
	}
	return summary, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
