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

// ErrPollClosed is returned when a vote arrives for a closed poll.
var ErrPollClosed = errors.New("poll closed")

// ErrDuplicateVote is returned when a student votes twice on the same poll.
var ErrDuplicateVote = errors.New("duplicate vote")

// CreatePoll persists a new poll in the open state.
func (s *Store) CreatePoll(ctx context.Context, p Poll) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = PollOpen
	}
	options, err := json.Marshal(p.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	query := `
	INSERT INTO polls (id, class_id, question, options, status, created_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.ClassID, p.Question, string(options), p.Status, p.CreatedBy,
		p.CreatedAt.Format(time.RFC3339))
	return err
}

// GetPoll fetches a poll by ID.
func (s *Store) GetPoll(ctx context.Context, id string) (*Poll, error) {
	var p Poll
	var options, createdAt string
	var closedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
	SELECT id, class_id, question, options, status, created_by, created_at, closed_at
	FROM polls WHERE id = ?`, id,
	).Scan(&p.ID, &p.ClassID, &p.Question, &options, &p.Status, &p.CreatedBy, &createdAt, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &p.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if closedAt.Valid {
		t, err := time.Parse(time.RFC3339, closedAt.String)
		if err == nil {
			p.ClosedAt = &t
		}
	}
	return &p, nil
}

// ListPollsByClass returns a class's polls, newest first.
func (s *Store) ListPollsByClass(ctx context.Context, classID string) ([]Poll, error) {
	query := `
	SELECT id, class_id, question, options, status, created_by, created_at, closed_at
	FROM polls WHERE class_id = ?
	ORDER BY created_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var polls []Poll
	for rows.Next() {
		var p Poll
		var options, createdAt string
		var closedAt sql.NullString
		if err := rows.Scan(&p.ID, &p.ClassID, &p.Question, &options, &p.Status,
			&p.CreatedBy, &createdAt, &closedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &p.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if closedAt.Valid {
			t, err := time.Parse(time.RFC3339, closedAt.String)
			if err == nil {
				p.ClosedAt = &t
			}
		}
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

// ClosePoll marks a poll closed. Closing an already closed poll is a no-op.
func (s *Store) ClosePoll(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE polls SET status = ?, closed_at = ?
	WHERE id = ? AND status = ?`,
		PollClosed, at.UTC().Format(time.RFC3339), id, PollOpen)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or already closed; distinguish for callers.
		if _, err := s.GetPoll(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RecordVote stores a student's vote. Each student gets exactly one vote
// per poll; a second vote fails with ErrDuplicateVote. Votes on closed
// polls fail with ErrPollClosed.
func (s *Store) RecordVote(ctx context.Context, pollID, studentID string, optionIndex int) error {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.Status != PollOpen {
		return ErrPollClosed
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return fmt.Errorf("option index %d out of range", optionIndex)
	}

	query := `
	INSERT INTO poll_responses (poll_id, student_id, option_index, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(poll_id, student_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		pollID, studentID, optionIndex, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateVote
	}
	return nil
}

// GetPollResults aggregates vote counts per option.
func (s *Store) GetPollResults(ctx context.Context, pollID string) (*PollResults, error) {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	results := &PollResults{
		PollID:   poll.ID,
		Question: poll.Question,
		Status:   poll.Status,
		Counts:   make([]int, len(poll.Options)),
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT option_index, COUNT(*) FROM poll_responses
	WHERE poll_id = ? GROUP BY option_index`, pollID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var idx, count int
		if err := rows.Scan(&idx, &count); err != nil {
			return nil, err
		}
		if idx >= 0 && idx < len(results.Counts) {
			results.Counts[idx] = count
			results.TotalVotes += count
		}
	}
	return results, rows.Err()
}

// ListOpenPollsOlderThan returns open polls created before the cutoff.
// The poll sweeper uses this to auto-close stale polls.
func (s *Store) ListOpenPollsOlderThan(ctx context.Context, cutoff time.Time) ([]Poll, error) {
	query := `
	SELECT id, class_id, question, options, status, created_by, created_at, closed_at
	FROM polls
	WHERE status = ? AND created_at < ?
	`
	rows, err := s.db.QueryContext(ctx, query, PollOpen, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var polls []Poll
	for rows.Next() {
		var p Poll
		var options, createdAt string
		var closedAt sql.NullString
		if err := rows.Scan(&p.ID, &p.ClassID, &p.Question, &options, &p.Status,
			&p.CreatedBy, &createdAt, &closedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &p.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		polls = append(polls, p)
	}
	return polls, rows.Err()
}
