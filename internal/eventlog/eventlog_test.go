// SPDX-License-Identifier: MIT

package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()

	l, err := Open(t.TempDir(), 24*time.Hour, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func boolPtr(b bool) *bool { return &b }

func TestLog_AppendAndList(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := l.Append(ctx, Event{
			StudentID:    "s1",
			Type:         TypeAttempt,
			ConceptID:    "fractions",
			Correct:      boolPtr(i%2 == 0),
			TimeTakenSec: 12.5,
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := l.ListByStudent(ctx, "s1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Oldest first.
	assert.True(t, events[0].Timestamp.Before(events[1].Timestamp))
	assert.Equal(t, "fractions", events[0].ConceptID)
	assert.NotEmpty(t, events[0].ID)
}

func TestLog_ListSince(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, Event{
			StudentID: "s1",
			Type:      TypeLogin,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	events, err := l.ListByStudent(ctx, "s1", base.Add(3*time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLog_ListLimit(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append(ctx, Event{StudentID: "s1", Type: TypeHint}))
	}

	events, err := l.ListByStudent(ctx, "s1", time.Time{}, 4)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestLog_StudentIsolation(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, Event{StudentID: "s1", Type: TypeAttempt}))
	require.NoError(t, l.Append(ctx, Event{StudentID: "s2", Type: TypeAttempt}))

	events, err := l.ListByStudent(ctx, "s1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s1", events[0].StudentID)
}

func TestLog_CountByType(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, Event{StudentID: "s1", Type: TypeAttempt}))
	require.NoError(t, l.Append(ctx, Event{StudentID: "s1", Type: TypeAttempt}))
	require.NoError(t, l.Append(ctx, Event{StudentID: "s1", Type: TypeHint}))

	counts, err := l.CountByType(ctx, "s1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[TypeAttempt])
	assert.Equal(t, 1, counts[TypeHint])
}

func TestLog_AppendValidation(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	assert.Error(t, l.Append(ctx, Event{Type: TypeAttempt}))
	assert.Error(t, l.Append(ctx, Event{StudentID: "s1"}))
}

func TestLog_HealthCheck(t *testing.T) {
	l := openTestLog(t)

	assert.NoError(t, l.HealthCheck(context.Background()))

	require.NoError(t, l.Close())
	assert.Error(t, l.HealthCheck(context.Background()))
}
