// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/insight-platform/insightd/internal/metrics"
	"github.com/insight-platform/insightd/internal/practice"
)

type generateSessionRequest struct {
	StudentID        string          `json:"studentId"`
	Items            []practice.Item `json:"items"`
	MinutesAvailable float64         `json:"minutesAvailable"`
}

// handleGenerateSession plans an adaptive practice session. Mastery and
// velocity come from the student's persisted records; the caller supplies
// the candidate item pool.
func (s *Server) handleGenerateSession(w http.ResponseWriter, r *http.Request) {
	var req generateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StudentID == "" {
		writeBadRequest(w, "studentId is required")
		return
	}
	if len(req.Items) == 0 {
		writeBadRequest(w, "items must not be empty")
		return
	}
	for _, item := range req.Items {
		if item.Difficulty < 0 || item.Difficulty > 1 {
			writeBadRequest(w, "item difficulty must be in [0,1]")
			return
		}
	}
	practiceCfg := s.config().Practice
	if req.MinutesAvailable <= 0 {
		req.MinutesAvailable = float64(practiceCfg.DefaultMinutes)
	}
	if limit := float64(practiceCfg.MaxMinutes); req.MinutesAvailable > limit {
		req.MinutesAvailable = limit
	}

	if _, err := s.store.GetStudent(r.Context(), req.StudentID); err != nil {
		writeStoreError(w, err)
		return
	}

	records, err := s.store.ListMasteryByStudent(r.Context(), req.StudentID)
	if err != nil {
		writeInternal(w)
		return
	}
	mastery := make(map[string]float64, len(records))
	velocity := make(map[string]float64, len(records))
	for _, m := range records {
		mastery[m.ConceptID] = m.BlendedScore
		velocity[m.ConceptID] = m.LearningVelocity
	}

	session := s.practiceEngine().GenerateSession(req.StudentID, mastery, velocity, req.Items, req.MinutesAvailable)
	metrics.RecordPracticeSession(session.TotalItems, session.CognitiveLoad)

	writeJSON(w, http.StatusOK, session)
}

type adjustDifficultyRequest struct {
	StudentID       string  `json:"studentId"`
	ConceptID       string  `json:"conceptId"`
	Difficulty      float64 `json:"difficulty"`
	ResponseTimeSec float64 `json:"responseTimeSec"`
	TargetTimeSec   float64 `json:"targetTimeSec"`
}

type adjustDifficultyReply struct {
	Difficulty float64 `json:"difficulty"`
	Mastery    float64 `json:"mastery"`
}

// handleAdjustDifficulty nudges an item difficulty toward the student's
// current mastery and response speed.
func (s *Server) handleAdjustDifficulty(w http.ResponseWriter, r *http.Request) {
	var req adjustDifficultyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StudentID == "" || req.ConceptID == "" {
		writeBadRequest(w, "studentId and conceptId are required")
		return
	}
	if req.Difficulty < 0 || req.Difficulty > 1 {
		writeBadRequest(w, "difficulty must be in [0,1]")
		return
	}
	if req.TargetTimeSec <= 0 {
		req.TargetTimeSec = 15
	}

	record, err := s.store.GetMastery(r.Context(), req.StudentID, req.ConceptID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	adjusted := s.practiceEngine().AdjustDifficulty(req.Difficulty, record.BlendedScore, req.ResponseTimeSec, req.TargetTimeSec)
	writeJSON(w, http.StatusOK, adjustDifficultyReply{
		Difficulty: adjusted,
		Mastery:    record.BlendedScore,
	})
}
