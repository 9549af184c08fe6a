// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/metrics"
	"github.com/insight-platform/insightd/internal/softskills"
	"github.com/insight-platform/insightd/internal/store"
)

// Project and milestone statuses accepted by the API. The store enforces
// the same set via CHECK constraints.
var projectStatuses = map[string]bool{
	"planning": true, "active": true, "review": true, "done": true,
}

var milestoneStatuses = map[string]bool{
	"open": true, "in_progress": true, "done": true,
}

type createProjectRequest struct {
	ClassID     string `json:"classId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClassID == "" || req.Title == "" {
		writeBadRequest(w, "classId and title are required")
		return
	}

	p := store.Project{
		ID:          uuid.NewString(),
		ClassID:     req.ClassID,
		Title:       req.Title,
		Description: req.Description,
		Status:      "planning",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjectsByClass(r.Context(), chi.URLParam(r, "classID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleProjectStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !projectStatuses[req.Status] {
		writeBadRequest(w, "status must be one of planning, active, review, done")
		return
	}

	id := chi.URLParam(r, "projectID")
	if err := s.store.UpdateProjectStatus(r.Context(), id, req.Status); err != nil {
		writeStoreError(w, err)
		return
	}
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createMilestoneRequest struct {
	Title   string     `json:"title"`
	DueDate *time.Time `json:"dueDate"`
}

func (s *Server) handleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	var req createMilestoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, err)
		return
	}

	m := store.Milestone{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     req.Title,
		DueDate:   req.DueDate,
		Status:    "open",
	}
	if err := s.store.CreateMilestone(r.Context(), m); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMilestones(w http.ResponseWriter, r *http.Request) {
	milestones, err := s.store.ListMilestones(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, milestones)
}

func (s *Server) handleMilestoneStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !milestoneStatuses[req.Status] {
		writeBadRequest(w, "status must be one of open, in_progress, done")
		return
	}

	id := chi.URLParam(r, "milestoneID")
	if err := s.store.UpdateMilestoneStatus(r.Context(), id, req.Status, time.Now().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

type createTeamRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if len(req.Members) == 0 {
		writeBadRequest(w, "teams need at least one member")
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, err)
		return
	}

	team := store.Team{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      req.Name,
	}
	for _, studentID := range req.Members {
		if studentID == "" {
			writeBadRequest(w, "member ids must not be empty")
			return
		}
		team.Members = append(team.Members, store.TeamMember{
			TeamID:    team.ID,
			StudentID: studentID,
		})
	}

	if err := s.store.CreateTeam(r.Context(), team); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.GetTeam(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeamsByProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

type submitAssessmentRequest struct {
	StudentID string         `json:"studentId"`
	TeamID    string         `json:"teamId"`
	RaterID   string         `json:"raterId"`
	Ratings   map[string]int `json:"ratings"`
}

// handleSubmitAssessment validates a 16-item questionnaire, computes the
// dimension scores and persists the assessment.
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var req submitAssessmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StudentID == "" {
		writeBadRequest(w, "studentId is required")
		return
	}
	// Peer reviews must come from someone else; self assessments leave
	// raterId empty.
	if req.RaterID == req.StudentID && req.RaterID != "" {
		writeBadRequest(w, "raterId must differ from studentId for peer assessments")
		return
	}
	if err := softskills.Validate(req.Ratings); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	scores := softskills.Score(req.Ratings)
	a := store.Assessment{
		ID:                uuid.NewString(),
		StudentID:         req.StudentID,
		TeamID:            req.TeamID,
		RaterID:           req.RaterID,
		Ratings:           req.Ratings,
		TeamDynamics:      scores.TeamDynamics,
		TaskStructure:     scores.TaskStructure,
		TeamMotivation:    scores.TeamMotivation,
		TeamEffectiveness: scores.TeamEffectiveness,
		Overall:           scores.Overall,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.InsertAssessment(r.Context(), a); err != nil {
		writeInternal(w)
		return
	}

	if req.TeamID != "" {
		s.cache.Delete(cache.TeamSoftSkillsKey(req.TeamID))
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleTeamSoftSkills(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	key := cache.TeamSoftSkillsKey(teamID)
	if cached, ok := s.cache.Get(key); ok {
		metrics.IncCacheRequest(true)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}
	metrics.IncCacheRequest(false)

	assessments, err := s.store.ListAssessmentsByTeam(r.Context(), teamID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	points := make([]softskills.AssessmentPoint, 0, len(assessments))
	for _, a := range assessments {
		points = append(points, softskills.AssessmentPoint{
			TeamDynamics:      a.TeamDynamics,
			TaskStructure:     a.TaskStructure,
			TeamMotivation:    a.TeamMotivation,
			TeamEffectiveness: a.TeamEffectiveness,
			CreatedAt:         a.CreatedAt,
		})
	}
	summary := softskills.Aggregate(points)

	if body, err := json.Marshal(summary); err == nil {
		s.cache.Set(key, body, s.config().CacheTTL)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	assessments, err := s.store.ListAssessmentsByStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessments)
}
