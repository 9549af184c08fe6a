// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insight-platform/insightd/internal/bus"
	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/eventlog"
	"github.com/insight-platform/insightd/internal/kt"
	"github.com/insight-platform/insightd/internal/log"
	"github.com/insight-platform/insightd/internal/metrics"
	"github.com/insight-platform/insightd/internal/store"
)

type createStudentRequest struct {
	ID      string `json:"id"`
	ClassID string `json:"classId"`
	Name    string `json:"name"`
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClassID == "" || req.Name == "" {
		writeBadRequest(w, "classId and name are required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	st := store.Student{
		ID:        req.ID,
		ClassID:   req.ClassID,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertStudent(r.Context(), st); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.store.ListStudentsByClass(r.Context(), chi.URLParam(r, "classID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleUpsertConcept(w http.ResponseWriter, r *http.Request) {
	var c store.Concept
	if !decodeJSON(w, r, &c) {
		return
	}
	if c.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if c.Difficulty < 0 || c.Difficulty > 1 {
		writeBadRequest(w, "difficulty must be in [0,1]")
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	if err := s.store.UpsertConcept(r.Context(), c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetConcept(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetConcept(r.Context(), chi.URLParam(r, "conceptID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := s.store.ListConcepts(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, concepts)
}

type submitResponseRequest struct {
	StudentID     string  `json:"studentId"`
	ConceptID     string  `json:"conceptId"`
	ItemID        string  `json:"itemId"`
	Correct       bool    `json:"correct"`
	TimeTakenSec  float64 `json:"timeTakenSec"`
	HintsUsed     int     `json:"hintsUsed"`
	AttemptNumber int     `json:"attemptNumber"`
}

type submitResponseReply struct {
	ResponseID string              `json:"responseId"`
	Result     kt.Result           `json:"result"`
	Mastery    store.MasteryRecord `json:"mastery"`
}

// handleSubmitResponse is the knowledge tracing pipeline: persist the
// graded response, rebuild the student's concept memory, run the hybrid
// update and fan the new mastery out.
func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req submitResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StudentID == "" || req.ConceptID == "" {
		writeBadRequest(w, "studentId and conceptId are required")
		return
	}
	if req.AttemptNumber <= 0 {
		req.AttemptNumber = 1
	}

	ctx := r.Context()

	student, err := s.store.GetStudent(ctx, req.StudentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	concept, err := s.store.GetConcept(ctx, req.ConceptID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := store.Response{
		ID:            uuid.NewString(),
		StudentID:     req.StudentID,
		ConceptID:     req.ConceptID,
		ItemID:        req.ItemID,
		Correct:       req.Correct,
		TimeTakenSec:  req.TimeTakenSec,
		HintsUsed:     req.HintsUsed,
		AttemptNumber: req.AttemptNumber,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertResponse(ctx, resp); err != nil {
		writeInternal(w)
		return
	}

	ktCfg := s.config().KT
	window := ktCfg.SequenceLength
	recent, err := s.store.RecentResponses(ctx, req.StudentID, req.ConceptID, window)
	if err != nil {
		writeInternal(w)
		return
	}
	history := make([]kt.Observation, 0, len(recent))
	for _, rr := range recent {
		history = append(history, kt.Observation{Correct: rr.Correct, TimeTakenSec: rr.TimeTakenSec})
	}

	// Concept memory is rebuilt from the student's persisted mastery so
	// cross-concept reads see the latest state.
	memory := kt.NewDKVMN()
	records, err := s.store.ListMasteryByStudent(ctx, req.StudentID)
	if err != nil {
		writeInternal(w)
		return
	}
	current := ktCfg.PriorMastery * 100
	for _, m := range records {
		memory.Seed(m.ConceptID, m.BlendedScore)
		if m.ConceptID == req.ConceptID {
			current = m.BlendedScore
		}
	}

	result := s.ktEngine().Update(current, req.Correct, history, req.ConceptID, concept.Prerequisites, memory)

	record := store.MasteryRecord{
		StudentID:        req.StudentID,
		ConceptID:        req.ConceptID,
		BKTScore:         result.BKTComponent,
		DKTScore:         result.DKTComponent,
		DKVMNScore:       result.DKVMNComponent,
		BlendedScore:     result.MasteryScore,
		Confidence:       result.Confidence,
		LearningVelocity: result.LearningVelocity,
		Recommendation:   result.Recommendation,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.store.UpsertMastery(ctx, record); err != nil {
		writeInternal(w)
		return
	}

	if err := s.events.Append(ctx, eventlog.Event{
		StudentID:     req.StudentID,
		Type:          eventlog.TypeAttempt,
		ConceptID:     req.ConceptID,
		ItemID:        req.ItemID,
		Correct:       &req.Correct,
		TimeTakenSec:  req.TimeTakenSec,
		AttemptNumber: req.AttemptNumber,
	}); err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Warn().Err(err).Str("studentId", req.StudentID).Msg("event append failed")
	}

	_ = s.bus.Publish(ctx, bus.TopicMasteryUpdated, record)

	metrics.IncResponse(req.Correct)
	metrics.RecordMasteryUpdate(result.Recommendation, result.MasteryScore)

	// Class aggregates are stale now.
	s.cache.Delete(cache.ClassMasteryKey(student.ClassID, req.ConceptID))
	s.cache.Delete(cache.InstitutionOverviewKey())

	writeJSON(w, http.StatusOK, submitResponseReply{
		ResponseID: resp.ID,
		Result:     result,
		Mastery:    record,
	})
}

type listMasteryReply struct {
	Records        []store.MasteryRecord `json:"records"`
	OverallMastery float64               `json:"overallMastery"`
}

func (s *Server) handleListMastery(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListMasteryByStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if records == nil {
		records = []store.MasteryRecord{}
	}
	var overall float64
	for _, m := range records {
		overall += m.BlendedScore
	}
	if len(records) > 0 {
		overall /= float64(len(records))
	}

	writeJSON(w, http.StatusOK, listMasteryReply{
		Records:        records,
		OverallMastery: overall,
	})
}

func (s *Server) handleGetMastery(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetMastery(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "conceptID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleClassSummary(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	conceptID := chi.URLParam(r, "conceptID")

	key := cache.ClassMasteryKey(classID, conceptID)
	if cached, ok := s.cache.Get(key); ok {
		metrics.IncCacheRequest(true)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}
	metrics.IncCacheRequest(false)

	summary, err := s.store.GetConceptClassSummary(r.Context(), classID, conceptID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if body, err := json.Marshal(summary); err == nil {
		s.cache.Set(key, body, s.config().CacheTTL)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "since must be RFC 3339")
			return
		}
		since = parsed
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := s.events.ListByStudent(r.Context(), studentID, since, limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w)
			return
		}
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
