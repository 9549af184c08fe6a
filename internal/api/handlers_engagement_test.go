// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-platform/insightd/internal/engagement"
	"github.com/insight-platform/insightd/internal/eventlog"
	"github.com/insight-platform/insightd/internal/store"
)

// healthySignals describe a student who logs in daily and works steadily.
func healthySignals() (engagement.ImplicitSignals, engagement.ExplicitSignals) {
	implicit := engagement.ImplicitSignals{
		LoginFrequency:          6,
		AvgSessionMinutes:       35,
		TimeOnTaskMinutes:       180,
		InteractionCount:        120,
		TaskCompletionRate:      0.9,
		ReattemptRate:           0.5,
		OptionalResourceUsage:   3,
		DiscussionParticipation: 4,
	}
	explicit := engagement.ExplicitSignals{
		PollResponses:      5,
		UnderstandingLevel: 4,
		ParticipationRate:  0.8,
		QuizAccuracy:       0.85,
	}
	return implicit, explicit
}

func TestEvaluateEngagement_HealthyStudent(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")

	implicit, explicit := healthySignals()
	var reply evaluateEngagementReply
	status := env.doJSON(t, http.MethodPost, "/api/v1/engagement/evaluate", evaluateEngagementRequest{
		StudentID: "s1",
		Implicit:  implicit,
		Explicit:  explicit,
	}, &reply)
	require.Equal(t, http.StatusOK, status)

	assert.NotEmpty(t, reply.SnapshotID)
	assert.Greater(t, reply.Result.Score, 50.0)
	assert.NotEqual(t, engagement.LevelCritical, reply.Result.Level)

	// No alert for a healthy student.
	var alerts []store.Alert
	status = env.doJSON(t, http.MethodGet, "/api/v1/classes/c1/alerts", nil, &alerts)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, alerts)
}

func TestEvaluateEngagement_CriticalStudentRaisesAlert(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")

	var reply evaluateEngagementReply
	status := env.doJSON(t, http.MethodPost, "/api/v1/engagement/evaluate", evaluateEngagementRequest{
		StudentID: "s1",
		Implicit:  engagement.ImplicitSignals{},
		Explicit:  engagement.ExplicitSignals{},
	}, &reply)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, []string{engagement.LevelAtRisk, engagement.LevelCritical}, reply.Result.Level)

	var alerts []store.Alert
	status = env.doJSON(t, http.MethodGet, "/api/v1/classes/c1/alerts", nil, &alerts)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, alerts, 1)
	assert.Equal(t, "s1", alerts[0].StudentID)
	assert.Equal(t, "engagement_score", alerts[0].Reason)
	assert.False(t, alerts[0].Acknowledged)

	// Acknowledge and confirm the unacked filter drops it.
	status, _ = env.do(t, http.MethodPost, "/api/v1/alerts/"+alerts[0].ID+"/ack", nil)
	require.Equal(t, http.StatusOK, status)

	var unacked []store.Alert
	status = env.doJSON(t, http.MethodGet, "/api/v1/classes/c1/alerts?unacked=true", nil, &unacked)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, unacked)
}

func TestStudentEngagement_LatestAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")

	implicit, explicit := healthySignals()
	for i := 0; i < 2; i++ {
		status := env.doJSON(t, http.MethodPost, "/api/v1/engagement/evaluate", evaluateEngagementRequest{
			StudentID: "s1",
			Implicit:  implicit,
			Explicit:  explicit,
		}, nil)
		require.Equal(t, http.StatusOK, status)
	}

	var latest store.EngagementSnapshot
	status := env.doJSON(t, http.MethodGet, "/api/v1/students/s1/engagement", nil, &latest)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "s1", latest.StudentID)

	var history []store.EngagementSnapshot
	status = env.doJSON(t, http.MethodGet, "/api/v1/students/s1/engagement?since=2020-01-01T00:00:00Z", nil, &history)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, history, 2)
}

func TestClassEngagement_Rollup(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")
	env.seedStudent(t, "s2", "c1")

	implicit, explicit := healthySignals()
	for _, id := range []string{"s1", "s2"} {
		status := env.doJSON(t, http.MethodPost, "/api/v1/engagement/evaluate", evaluateEngagementRequest{
			StudentID: id,
			Implicit:  implicit,
			Explicit:  explicit,
		}, nil)
		require.Equal(t, http.StatusOK, status)
	}

	// A third student with no activity at all drags the class down.
	env.seedStudent(t, "s3", "c1")
	status := env.doJSON(t, http.MethodPost, "/api/v1/engagement/evaluate", evaluateEngagementRequest{
		StudentID: "s3",
	}, nil)
	require.Equal(t, http.StatusOK, status)

	var rollup store.ClassEngagementRollup
	status = env.doJSON(t, http.MethodGet, "/api/v1/classes/c1/engagement", nil, &rollup)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, rollup.Students)

	require.Len(t, rollup.Attention, 1)
	assert.Equal(t, "s3", rollup.Attention[0].StudentID)
	assert.Contains(t, []string{engagement.LevelAtRisk, engagement.LevelCritical}, rollup.Attention[0].Level)
	assert.Greater(t, rollup.EngagementRate, 0.0)
	assert.Less(t, rollup.EngagementRate, 100.0)
}

func TestIngestEvent_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")

	status, body := env.do(t, http.MethodPost, "/api/v1/engagement/events", eventlog.Event{
		Type: eventlog.TypeLogin,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "studentId")

	status, body = env.do(t, http.MethodPost, "/api/v1/engagement/events", eventlog.Event{
		StudentID: "s1",
		Type:      "telemetry",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "unknown event type")

	status, _ = env.do(t, http.MethodPost, "/api/v1/engagement/events", eventlog.Event{
		StudentID: "ghost",
		Type:      eventlog.TypeLogin,
	})
	assert.Equal(t, http.StatusNotFound, status)

	var stored eventlog.Event
	status = env.doJSON(t, http.MethodPost, "/api/v1/engagement/events", eventlog.Event{
		StudentID: "s1",
		Type:      eventlog.TypeLogin,
	}, &stored)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.Timestamp.IsZero())
}

func TestEvaluateEngagement_FallsBackToEventLog(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")
	env.seedStudent(t, "s2", "c1")

	// Stream a week of logins and attempts for s1 only.
	for i := 0; i < 6; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/v1/engagement/events", eventlog.Event{
			StudentID: "s1",
			Type:      eventlog.TypeLogin,
		})
		require.Equal(t, http.StatusCreated, status)
	}
	for i := 0; i < 10; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/v1/engagement/events", eventlog.Event{
			StudentID: "s1",
			Type:      eventlog.TypeAttempt,
			ConceptID: "fractions",
		})
		require.Equal(t, http.StatusCreated, status)
	}

	var active evaluateEngagementReply
	status := env.doJSON(t, http.MethodPost, "/api/v1/engagement/evaluate", evaluateEngagementRequest{
		StudentID: "s1",
	}, &active)
	require.Equal(t, http.StatusOK, status)

	var idle evaluateEngagementReply
	status = env.doJSON(t, http.MethodPost, "/api/v1/engagement/evaluate", evaluateEngagementRequest{
		StudentID: "s2",
	}, &idle)
	require.Equal(t, http.StatusOK, status)

	// Logged events lift the score of a student who sent no signals.
	assert.Greater(t, active.Result.Score, idle.Result.Score)
}

func TestStudentEngagement_NoSnapshots(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/v1/students/ghost/engagement", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
