// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPoll(t *testing.T, s *Store, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.CreatePoll(context.Background(), Poll{
		ID:        id,
		ClassID:   "class-a",
		Question:  "Did that make sense?",
		Options:   []string{"yes", "mostly", "no"},
		CreatedAt: createdAt,
	}))
}

func TestStore_PollVoteAndResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	createTestPoll(t, s, "p1", time.Now().UTC())

	require.NoError(t, s.RecordVote(ctx, "p1", "s1", 0))
	require.NoError(t, s.RecordVote(ctx, "p1", "s2", 0))
	require.NoError(t, s.RecordVote(ctx, "p1", "s3", 2))

	results, err := s.GetPollResults(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, results.Counts)
	assert.Equal(t, 3, results.TotalVotes)
}

func TestStore_PollDuplicateVote(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	createTestPoll(t, s, "p1", time.Now().UTC())

	require.NoError(t, s.RecordVote(ctx, "p1", "s1", 1))
	err := s.RecordVote(ctx, "p1", "s1", 2)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	// First vote stands.
	results, err := s.GetPollResults(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, results.Counts)
}

func TestStore_PollVoteValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	createTestPoll(t, s, "p1", time.Now().UTC())

	assert.Error(t, s.RecordVote(ctx, "p1", "s1", 5))
	assert.ErrorIs(t, s.RecordVote(ctx, "missing", "s1", 0), ErrNotFound)
}

func TestStore_PollCloseRejectsVotes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	createTestPoll(t, s, "p1", time.Now().UTC())
	require.NoError(t, s.ClosePoll(ctx, "p1", time.Now()))

	err := s.RecordVote(ctx, "p1", "s1", 0)
	assert.ErrorIs(t, err, ErrPollClosed)

	poll, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, PollClosed, poll.Status)
	assert.NotNil(t, poll.ClosedAt)

	// Closing again is a no-op.
	assert.NoError(t, s.ClosePoll(ctx, "p1", time.Now()))
}

func TestStore_ListOpenPollsOlderThan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	createTestPoll(t, s, "stale", now.Add(-2*time.Hour))
	createTestPoll(t, s, "fresh", now)

	stale, err := s.ListOpenPollsOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale", stale[0].ID)
}
