// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-platform/insightd/internal/config"
	"github.com/insight-platform/insightd/internal/store"
)

func (e *testEnv) seedPoll(t *testing.T, classID string, options ...string) store.Poll {
	t.Helper()

	var poll store.Poll
	status := e.doJSON(t, http.MethodPost, "/api/v1/polls", createPollRequest{
		ClassID:   classID,
		Question:  "Which fraction is larger?",
		Options:   options,
		CreatedBy: "teacher-1",
	}, &poll)
	require.Equal(t, http.StatusCreated, status)
	return poll
}

func TestCreatePoll_OptionBounds(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/polls", createPollRequest{
		ClassID:  "c1",
		Question: "One option only?",
		Options:  []string{"yes"},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/polls", createPollRequest{
		ClassID:  "c1",
		Question: "Empty option?",
		Options:  []string{"a", ""},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	poll := env.seedPoll(t, "c1", "a", "b", "c")
	assert.Equal(t, store.PollOpen, poll.Status)
	assert.Len(t, poll.Options, 3)
}

func TestVote_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	poll := env.seedPoll(t, "c1", "1/2", "2/3")

	var results store.PollResults
	status := env.doJSON(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/votes", voteRequest{
		StudentID:   "s1",
		OptionIndex: 1,
	}, &results)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, results.TotalVotes)
	require.Len(t, results.Counts, 2)
	assert.Equal(t, 1, results.Counts[1])

	// A second student shifts the distribution.
	status = env.doJSON(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/votes", voteRequest{
		StudentID:   "s2",
		OptionIndex: 0,
	}, &results)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, results.TotalVotes)
}

func TestVote_DuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	poll := env.seedPoll(t, "c1", "a", "b")

	status, _ := env.do(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/votes", voteRequest{StudentID: "s1"})
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/votes", voteRequest{StudentID: "s1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "duplicate_vote")
}

func TestVote_ClosedPollRejected(t *testing.T) {
	env := newTestEnv(t)
	poll := env.seedPoll(t, "c1", "a", "b")

	var closed store.Poll
	status := env.doJSON(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/close", nil, &closed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, store.PollClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	status, body := env.do(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/votes", voteRequest{StudentID: "s1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "poll_closed")
}

func TestVote_OptionIndexOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	poll := env.seedPoll(t, "c1", "a", "b")

	status, _ := env.do(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/votes", voteRequest{
		StudentID:   "s1",
		OptionIndex: 5,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestVote_PerStudentRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig) {
		cfg.Polls.ResponsesPerMin = 2
	})

	a := env.seedPoll(t, "c1", "a", "b")
	b := env.seedPoll(t, "c1", "a", "b")
	c := env.seedPoll(t, "c1", "a", "b")

	status, _ := env.do(t, http.MethodPost, "/api/v1/polls/"+a.ID+"/votes", voteRequest{StudentID: "s1"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/api/v1/polls/"+b.ID+"/votes", voteRequest{StudentID: "s1"})
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodPost, "/api/v1/polls/"+c.ID+"/votes", voteRequest{StudentID: "s1"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(body), "rate_limit_exceeded")

	// Another student has their own budget.
	status, _ = env.do(t, http.MethodPost, "/api/v1/polls/"+c.ID+"/votes", voteRequest{StudentID: "s2"})
	assert.Equal(t, http.StatusOK, status)
}

func TestPollResults_ListAndCache(t *testing.T) {
	env := newTestEnv(t)
	poll := env.seedPoll(t, "c1", "a", "b")

	status, _ := env.do(t, http.MethodPost, "/api/v1/polls/"+poll.ID+"/votes", voteRequest{StudentID: "s1", OptionIndex: 1})
	require.Equal(t, http.StatusOK, status)

	var first, second store.PollResults
	status = env.doJSON(t, http.MethodGet, "/api/v1/polls/"+poll.ID+"/results", nil, &first)
	require.Equal(t, http.StatusOK, status)
	status = env.doJSON(t, http.MethodGet, "/api/v1/polls/"+poll.ID+"/results", nil, &second)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first, second)

	var polls []store.Poll
	status = env.doJSON(t, http.MethodGet, "/api/v1/classes/c1/polls", nil, &polls)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, polls, 1)
}
