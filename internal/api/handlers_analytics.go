// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/log"
	"github.com/insight-platform/insightd/internal/metrics"
	"github.com/insight-platform/insightd/internal/store"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	key := cache.InstitutionOverviewKey()
	if cached, ok := s.cache.Get(key); ok {
		metrics.IncCacheRequest(true)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}
	metrics.IncCacheRequest(false)

	overview, err := s.store.GetInstitutionOverview(r.Context(), time.Now().UTC())
	if err != nil {
		writeInternal(w)
		return
	}

	if body, err := json.Marshal(overview); err == nil {
		s.cache.Set(key, body, s.config().CacheTTL)
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleInterventionImpact(w http.ResponseWriter, r *http.Request) {
	impact, err := s.store.GetInterventionImpact(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

type createInterventionRequest struct {
	StudentID string `json:"studentId"`
	TeacherID string `json:"teacherId"`
	Kind      string `json:"kind"`
	Notes     string `json:"notes"`
}

// handleCreateIntervention records a teacher action, capturing the
// student's current engagement score as the baseline.
func (s *Server) handleCreateIntervention(w http.ResponseWriter, r *http.Request) {
	var req createInterventionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StudentID == "" || req.Kind == "" {
		writeBadRequest(w, "studentId and kind are required")
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetStudent(ctx, req.StudentID); err != nil {
		writeStoreError(w, err)
		return
	}

	var baseline float64
	if snap, err := s.store.LatestSnapshot(ctx, req.StudentID); err == nil {
		baseline = snap.Score
	}

	iv := store.Intervention{
		ID:            uuid.NewString(),
		StudentID:     req.StudentID,
		TeacherID:     req.TeacherID,
		Kind:          req.Kind,
		Notes:         req.Notes,
		BaselineScore: baseline,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertIntervention(ctx, iv); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

type followupRequest struct {
	Score float64 `json:"score"`
}

func (s *Server) handleInterventionFollowup(w http.ResponseWriter, r *http.Request) {
	var req followupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Score < 0 || req.Score > 100 {
		writeBadRequest(w, "score must be in [0,100]")
		return
	}

	id := chi.URLParam(r, "interventionID")
	if err := s.store.SetInterventionFollowup(r.Context(), id, req.Score); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "followupScore": req.Score})
}

func (s *Server) handleListInterventions(w http.ResponseWriter, r *http.Request) {
	ivs, err := s.store.ListInterventionsByStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ivs)
}

// handleExportReport writes the institution report atomically under the
// data directory and returns it.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := log.WithComponentFromContext(r.Context(), "export")

	path := filepath.Join(s.config().DataDir, "reports",
		"institution-"+time.Now().UTC().Format("20060102T150405Z")+".json")

	report, err := s.store.ExportInstitutionReport(r.Context(), path, logger)
	metrics.RecordReportExport(err, time.Since(start).Seconds())
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("report export failed")
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":   path,
		"report": report,
	})
}

func (s *Server) handleUpsertTemplate(w http.ResponseWriter, r *http.Request) {
	var t store.Template
	if !decodeJSON(w, r, &t) {
		return
	}
	if t.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}
	if t.Difficulty < 0 || t.Difficulty > 1 {
		writeBadRequest(w, "difficulty must be in [0,1]")
		return
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()

	if err := s.store.UpsertTemplate(r.Context(), t); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleSearchTemplates searches by free text (?q=, accent and case
// insensitive) or lists by concept (?conceptId=).
func (s *Server) handleSearchTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	conceptID := r.URL.Query().Get("conceptId")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			writeBadRequest(w, "limit must be in [1,100]")
			return
		}
		limit = parsed
	}

	switch {
	case q != "":
		templates, err := s.store.SearchTemplates(r.Context(), q, limit)
		if err != nil {
			writeInternal(w)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	case conceptID != "":
		templates, err := s.store.ListTemplatesByConcept(r.Context(), conceptID)
		if err != nil {
			writeInternal(w)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	default:
		writeBadRequest(w, "q or conceptId is required")
	}
}
