// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insight-platform/insightd/internal/bus"
	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/eventlog"
	"github.com/insight-platform/insightd/internal/metrics"
	"github.com/insight-platform/insightd/internal/store"
)

// pollResultsTTL keeps live results fresh while a poll is running.
const pollResultsTTL = 2 * time.Second

type createPollRequest struct {
	ClassID   string   `json:"classId"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	CreatedBy string   `json:"createdBy"`
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClassID == "" || req.Question == "" {
		writeBadRequest(w, "classId and question are required")
		return
	}
	pollCfg := s.config().Polls
	if len(req.Options) < pollCfg.MinOptions || len(req.Options) > pollCfg.MaxOptions {
		writeBadRequest(w, fmt.Sprintf("polls need between %d and %d options",
			pollCfg.MinOptions, pollCfg.MaxOptions))
		return
	}
	for _, opt := range req.Options {
		if opt == "" {
			writeBadRequest(w, "options must not be empty")
			return
		}
	}

	poll := store.Poll{
		ID:        uuid.NewString(),
		ClassID:   req.ClassID,
		Question:  req.Question,
		Options:   req.Options,
		Status:    store.PollOpen,
		CreatedBy: req.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePoll(r.Context(), poll); err != nil {
		writeInternal(w)
		return
	}
	metrics.IncPollCreated()
	_ = s.bus.Publish(r.Context(), bus.TopicPollUpdated, poll)

	writeJSON(w, http.StatusCreated, poll)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := s.store.GetPoll(r.Context(), chi.URLParam(r, "pollID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

func (s *Server) handleListPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := s.store.ListPollsByClass(r.Context(), chi.URLParam(r, "classID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

type voteRequest struct {
	StudentID   string `json:"studentId"`
	OptionIndex int    `json:"optionIndex"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollID")

	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StudentID == "" {
		writeBadRequest(w, "studentId is required")
		return
	}

	if !s.votes.Allow(req.StudentID) {
		metrics.IncPollVote("rate_limited")
		w.Header().Set("Retry-After", "3")
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:  "rate_limit_exceeded",
			Detail: "too many votes, slow down",
		})
		return
	}

	poll, err := s.store.GetPoll(r.Context(), pollID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if req.OptionIndex < 0 || req.OptionIndex >= len(poll.Options) {
		writeBadRequest(w, fmt.Sprintf("optionIndex must be in [0,%d]", len(poll.Options)-1))
		return
	}

	if err := s.store.RecordVote(r.Context(), pollID, req.StudentID, req.OptionIndex); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateVote):
			metrics.IncPollVote("duplicate")
		case errors.Is(err, store.ErrPollClosed):
			metrics.IncPollVote("closed")
		}
		writeStoreError(w, err)
		return
	}
	metrics.IncPollVote("accepted")

	if err := s.events.Append(r.Context(), eventlog.Event{
		StudentID: req.StudentID,
		Type:      eventlog.TypePollVote,
		PollID:    pollID,
	}); err != nil {
		s.logger.Warn().Err(err).Str("pollId", pollID).Msg("event append failed")
	}

	s.cache.Delete(cache.PollResultsKey(pollID))

	results, err := s.store.GetPollResults(r.Context(), pollID)
	if err != nil {
		writeInternal(w)
		return
	}
	_ = s.bus.Publish(r.Context(), bus.TopicPollUpdated, results)

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollID")

	if err := s.store.ClosePoll(r.Context(), pollID, time.Now().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}
	metrics.IncPollClosed("manual")
	s.cache.Delete(cache.PollResultsKey(pollID))

	poll, err := s.store.GetPoll(r.Context(), pollID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	_ = s.bus.Publish(r.Context(), bus.TopicPollUpdated, poll)

	writeJSON(w, http.StatusOK, poll)
}

func (s *Server) handlePollResults(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollID")

	key := cache.PollResultsKey(pollID)
	if cached, ok := s.cache.Get(key); ok {
		metrics.IncCacheRequest(true)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}
	metrics.IncCacheRequest(false)

	results, err := s.store.GetPollResults(r.Context(), pollID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if body, err := json.Marshal(results); err == nil {
		s.cache.Set(key, body, pollResultsTTL)
	}
	writeJSON(w, http.StatusOK, results)
}
