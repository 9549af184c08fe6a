// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-platform/insightd/internal/bus"
	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/config"
	"github.com/insight-platform/insightd/internal/eventlog"
	"github.com/insight-platform/insightd/internal/health"
	"github.com/insight-platform/insightd/internal/store"
)

type testEnv struct {
	srv *Server
	ts  *httptest.Server
	db  *store.Store
}

// newTestEnv spins up a full server over a real SQLite store, a temp
// event log, an in-memory cache and an in-memory bus.
func newTestEnv(t *testing.T, mutate ...func(*config.AppConfig)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.SQLitePath = filepath.Join(dir, "insight.db")
	cfg.EventLogDir = filepath.Join(dir, "events")
	cfg.RateLimitEnabled = false
	for _, fn := range mutate {
		fn(&cfg)
	}

	db, err := store.Open(cfg.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	events, err := eventlog.Open(cfg.EventLogDir, cfg.EventRetention, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	b := bus.NewMemoryBus()
	t.Cleanup(b.Close)

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewPingChecker("sqlite", db.HealthCheck))

	mem := cache.NewMemoryCache(cfg.CacheCleanupInterval)
	t.Cleanup(mem.Stop)

	srv := New(Deps{
		Config: cfg,
		Store:  db,
		Events: events,
		Bus:    b,
		Cache:  mem,
		Health: hm,
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, db: db}
}

// do issues a request and returns the status code and raw body.
func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// doJSON issues a request and decodes the response into out.
func (e *testEnv) doJSON(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	status, raw := e.do(t, method, path, body)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return status
}

// seedStudent creates a student through the API and returns its ID.
func (e *testEnv) seedStudent(t *testing.T, id, classID string) string {
	t.Helper()

	var st store.Student
	status := e.doJSON(t, http.MethodPost, "/api/v1/students", createStudentRequest{
		ID:      id,
		ClassID: classID,
		Name:    "Student " + id,
	}, &st)
	require.Equal(t, http.StatusCreated, status)
	return st.ID
}

// seedConcept creates a concept through the API.
func (e *testEnv) seedConcept(t *testing.T, id string, difficulty float64, prereqs ...string) {
	t.Helper()

	status := e.doJSON(t, http.MethodPost, "/api/v1/concepts", store.Concept{
		ID:            id,
		Name:          "Concept " + id,
		Difficulty:    difficulty,
		Prerequisites: prereqs,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
}

func TestServer_Version(t *testing.T) {
	env := newTestEnv(t)

	var got map[string]string
	status := env.doJSON(t, http.MethodGet, "/api/v1/version", nil, &got)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, got["version"])
}

func TestServer_HealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_UnknownJSONFieldRejected(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/students", map[string]any{
		"classId": "c1",
		"name":    "Ada",
		"bogus":   true,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "error")
}

func TestServer_ApplyConfigUpdatesTunables(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")

	poll := map[string]any{
		"classId":   "c1",
		"question":  "Warm-up?",
		"options":   []string{"yes", "no"},
		"createdBy": "teacher-1",
	}
	status, _ := env.do(t, http.MethodPost, "/api/v1/polls", poll)
	require.Equal(t, http.StatusCreated, status)

	next := config.Defaults()
	next.Polls.MinOptions = 3
	next.Polls.ResponsesPerMin = 1
	env.srv.ApplyConfig(next)

	// Two options no longer clear the raised minimum.
	status, body := env.do(t, http.MethodPost, "/api/v1/polls", poll)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "between 3 and")

	// The per-student vote rate follows the reload too.
	assert.True(t, env.srv.votes.Allow("s1"))
	assert.False(t, env.srv.votes.Allow("s1"))
}

func TestServer_NotFoundMapping(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/v1/students/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/polls/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
