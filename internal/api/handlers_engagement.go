// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insight-platform/insightd/internal/bus"
	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/engagement"
	"github.com/insight-platform/insightd/internal/eventlog"
	"github.com/insight-platform/insightd/internal/metrics"
	"github.com/insight-platform/insightd/internal/store"
)

// ingestEventTypes are the raw learning events clients may submit.
var ingestEventTypes = map[string]bool{
	eventlog.TypeAttempt:    true,
	eventlog.TypeHint:       true,
	eventlog.TypeLogin:      true,
	eventlog.TypeSessionEnd: true,
	eventlog.TypePollVote:   true,
}

// handleIngestEvent appends a raw learning event to the event log. Logins
// and session ends feed the implicit-signal fallback during evaluation.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev eventlog.Event
	if !decodeJSON(w, r, &ev) {
		return
	}
	if ev.StudentID == "" {
		writeBadRequest(w, "studentId is required")
		return
	}
	if !ingestEventTypes[ev.Type] {
		writeBadRequest(w, "unknown event type")
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetStudent(ctx, ev.StudentID); err != nil {
		writeStoreError(w, err)
		return
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := s.events.Append(ctx, ev); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

type evaluateEngagementRequest struct {
	StudentID string                      `json:"studentId"`
	Responses []engagement.ResponseSample `json:"responses"`
	Implicit  engagement.ImplicitSignals  `json:"implicit"`
	Explicit  engagement.ExplicitSignals  `json:"explicit"`
}

type evaluateEngagementReply struct {
	SnapshotID string                 `json:"snapshotId"`
	Result     engagement.ScoreResult `json:"result"`
}

// handleEvaluateEngagement runs behavior detection and scoring over the
// submitted signals, persists a snapshot, and raises an alert for at-risk
// and critical students.
func (s *Server) handleEvaluateEngagement(w http.ResponseWriter, r *http.Request) {
	var req evaluateEngagementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StudentID == "" {
		writeBadRequest(w, "studentId is required")
		return
	}

	ctx := r.Context()
	student, err := s.store.GetStudent(ctx, req.StudentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Callers that only stream raw events send no signals at all. In that
	// case derive implicit activity from the last week of the event log.
	if len(req.Responses) == 0 && implicitEmpty(req.Implicit) {
		since := time.Now().UTC().AddDate(0, 0, -7)
		counts, err := s.events.CountByType(ctx, req.StudentID, since)
		if err != nil {
			writeInternal(w)
			return
		}
		req.Implicit.LoginFrequency = counts[eventlog.TypeLogin]
		total := 0
		for _, n := range counts {
			total += n
		}
		req.Implicit.InteractionCount = total
	}

	engine := s.engagementEngine()
	behaviors := engine.DetectBehaviors(req.Responses, req.Implicit)
	result := engine.Score(req.Implicit, req.Explicit, behaviors)

	behaviorTypes := make([]string, 0, len(result.Behaviors))
	for _, b := range result.Behaviors {
		behaviorTypes = append(behaviorTypes, b.Type)
	}

	snap := store.EngagementSnapshot{
		ID:            uuid.NewString(),
		StudentID:     req.StudentID,
		ClassID:       student.ClassID,
		Score:         result.Score,
		Level:         result.Level,
		ImplicitScore: result.ImplicitComponent,
		ExplicitScore: result.ExplicitComponent,
		Behaviors:     behaviorTypes,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertSnapshot(ctx, snap); err != nil {
		writeInternal(w)
		return
	}
	metrics.RecordEngagementSnapshot(result.Level)

	if result.Level == engagement.LevelAtRisk || result.Level == engagement.LevelCritical {
		alert := store.Alert{
			ID:        uuid.NewString(),
			StudentID: req.StudentID,
			ClassID:   student.ClassID,
			Severity:  result.Level,
			Reason:    "engagement_score",
			Message:   firstRecommendation(result.Recommendations),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.InsertAlert(ctx, alert); err != nil {
			writeInternal(w)
			return
		}
		metrics.IncAlertRaised(result.Level)
		_ = s.bus.Publish(ctx, bus.TopicEngagementAlert, alert)
	}

	s.cache.Delete(cache.ClassEngagementKey(student.ClassID))
	s.cache.Delete(cache.InstitutionOverviewKey())

	writeJSON(w, http.StatusOK, evaluateEngagementReply{
		SnapshotID: snap.ID,
		Result:     result,
	})
}

func implicitEmpty(sig engagement.ImplicitSignals) bool {
	return sig.LoginFrequency == 0 &&
		sig.AvgSessionMinutes == 0 &&
		sig.TimeOnTaskMinutes == 0 &&
		sig.InteractionCount == 0 &&
		len(sig.ResponseTimes) == 0 &&
		sig.TaskCompletionRate == 0 &&
		sig.ReattemptRate == 0 &&
		sig.OptionalResourceUsage == 0 &&
		sig.DiscussionParticipation == 0
}

func firstRecommendation(recs []string) string {
	if len(recs) == 0 {
		return ""
	}
	return recs[0]
}

func (s *Server) handleStudentEngagement(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "since must be RFC 3339")
			return
		}
		snaps, err := s.store.ListSnapshots(r.Context(), studentID, since)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snaps)
		return
	}

	snap, err := s.store.LatestSnapshot(r.Context(), studentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClassEngagement(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	key := cache.ClassEngagementKey(classID)
	if cached, ok := s.cache.Get(key); ok {
		metrics.IncCacheRequest(true)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}
	metrics.IncCacheRequest(false)

	rollup, err := s.store.GetClassEngagementRollup(r.Context(), classID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if body, err := json.Marshal(rollup); err == nil {
		s.cache.Set(key, body, s.config().CacheTTL)
	}
	writeJSON(w, http.StatusOK, rollup)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	unackedOnly := r.URL.Query().Get("unacked") == "true"
	alerts, err := s.store.ListAlertsByClass(r.Context(), chi.URLParam(r, "classID"), unackedOnly)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.store.AcknowledgeAlert(r.Context(), chi.URLParam(r, "alertID")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}
