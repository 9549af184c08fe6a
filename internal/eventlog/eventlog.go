// SPDX-License-Identifier: MIT

// Package eventlog persists raw learning events (attempts, hints, logins,
// session boundaries, poll votes) in an embedded Badger store. The
// engagement detector replays these events; entries expire after the
// configured retention window.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insight-platform/insightd/internal/metrics"
)

// Event types recorded by the platform.
const (
	TypeAttempt    = "attempt"
	TypeHint       = "hint"
	TypeLogin      = "login"
	TypeSessionEnd = "session_end"
	TypePollVote   = "poll_vote"
)

// Event is a single learning event. Fields beyond ID, StudentID, Type and
// Timestamp are populated per type: attempts carry concept and timing data,
// session ends carry the duration, hints carry the hint level.
type Event struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"studentId"`
	Type          string    `json:"type"`
	ConceptID     string    `json:"conceptId,omitempty"`
	ItemID        string    `json:"itemId,omitempty"`
	Correct       *bool     `json:"correct,omitempty"`
	TimeTakenSec  float64   `json:"timeTakenSec,omitempty"`
	AttemptNumber int       `json:"attemptNumber,omitempty"`
	HintLevel     int       `json:"hintLevel,omitempty"`
	HintExhausted bool      `json:"hintExhausted,omitempty"`
	DurationMin   float64   `json:"durationMin,omitempty"`
	PollID        string    `json:"pollId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Log is an append-only event store keyed by student and time.
type Log struct {
	db        *badger.DB
	retention time.Duration
	logger    zerolog.Logger
}

// Open opens (or creates) the event log at dir. Events older than
// retention are dropped by Badger's TTL machinery.
func Open(dir string, retention time.Duration, logger zerolog.Logger) (*Log, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Log{db: db, retention: retention, logger: logger}, nil
}

// Close closes the underlying store.
func (l *Log) Close() error { return l.db.Close() }

// Keys are "ev:<student>:<unix-nano, zero padded>:<suffix>". The padding
// makes lexicographic iteration chronological; the suffix disambiguates
// events landing in the same nanosecond.
func eventKey(studentID string, ts time.Time, suffix string) []byte {
	return []byte(fmt.Sprintf("ev:%s:%020d:%s", studentID, ts.UnixNano(), suffix))
}

func studentPrefix(studentID string) []byte {
	return []byte("ev:" + studentID + ":")
}

// Append records an event. A missing ID or Timestamp is filled in.
func (l *Log) Append(ctx context.Context, ev Event) error {
	if ev.StudentID == "" {
		return errors.New("eventlog: student id required")
	}
	if ev.Type == "" {
		return errors.New("eventlog: event type required")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	buf, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	suffix := ev.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	key := eventKey(ev.StudentID, ev.Timestamp, suffix)
	err = l.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf)
		if l.retention > 0 {
			entry = entry.WithTTL(l.retention)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	metrics.IncEventAppended(ev.Type)

	l.logger.Debug().
		Str("studentId", ev.StudentID).
		Str("type", ev.Type).
		Msg("event recorded")
	return nil
}

// ListByStudent returns a student's events with timestamp >= since, oldest
// first. A limit of 0 means no limit.
func (l *Log) ListByStudent(ctx context.Context, studentID string, since time.Time, limit int) ([]Event, error) {
	prefix := studentPrefix(studentID)
	var events []Event

	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		start := prefix
		if !since.IsZero() {
			start = eventKey(studentID, since, "")
		}
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var ev Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				l.logger.Warn().Err(err).Msg("skipping undecodable event")
				continue
			}
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CountByType counts a student's events per type since the given time.
func (l *Log) CountByType(ctx context.Context, studentID string, since time.Time) (map[string]int, error) {
	events, err := l.ListByStudent(ctx, studentID, since, 0)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	return counts, nil
}

// RunGC triggers a value log garbage collection pass. Called periodically
// by the maintenance sweeper; badger.ErrNoRewrite just means there was
// nothing to collect.
func (l *Log) RunGC() error {
	err := l.db.RunValueLogGC(0.5)
	switch {
	case errors.Is(err, badger.ErrNoRewrite):
		metrics.IncEventLogGC("noop")
		return nil
	case err != nil:
		metrics.IncEventLogGC("error")
		return err
	default:
		metrics.IncEventLogGC("reclaimed")
		return nil
	}
}

// HealthCheck reports whether the store is open and usable.
func (l *Log) HealthCheck(ctx context.Context) error {
	if l.db.IsClosed() {
		return errors.New("event log closed")
	}
	return nil
}
