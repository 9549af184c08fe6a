// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name   string
	result CheckResult
}

func (s stubChecker) Name() string                        { return s.name }
func (s stubChecker) Check(_ context.Context) CheckResult { return s.result }

func TestHealthAlwaysHealthyWithoutVerbose(t *testing.T) {
	m := NewManager("1.2.3")
	m.RegisterChecker(stubChecker{name: "store", result: CheckResult{Status: StatusUnhealthy, Error: "down"}})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Nil(t, resp.Checks)
}

func TestHealthVerboseReflectsComponents(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(stubChecker{name: "store", result: CheckResult{Status: StatusHealthy}})
	m.RegisterChecker(stubChecker{name: "cache", result: CheckResult{Status: StatusDegraded, Message: "slow"}})

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusDegraded, resp.Checks["cache"].Status)
}

func TestReadyFlipsOnUnhealthyComponent(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(stubChecker{name: "store", result: CheckResult{Status: StatusHealthy}})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)

	m.RegisterChecker(stubChecker{name: "events", result: CheckResult{Status: StatusUnhealthy, Error: "closed"}})

	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestDegradedStillReady(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(stubChecker{name: "cache", result: CheckResult{Status: StatusDegraded}})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestServeHealth(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(stubChecker{name: "store", result: CheckResult{Status: StatusUnhealthy}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	m.ServeHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)
}

func TestServeHealthVerbose(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(stubChecker{name: "store", result: CheckResult{Status: StatusUnhealthy, Error: "down"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil)
	rec := httptest.NewRecorder()
	m.ServeHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "down", resp.Checks["store"].Error)
}

func TestServeReady(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(stubChecker{name: "store", result: CheckResult{Status: StatusHealthy}})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	m.ServeReady(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	m.RegisterChecker(stubChecker{name: "events", result: CheckResult{Status: StatusUnhealthy}})

	rec = httptest.NewRecorder()
	m.ServeReady(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("store", func(_ context.Context) error { return nil })
	assert.Equal(t, "store", ok.Name())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	failing := NewPingChecker("events", func(_ context.Context) error { return errors.New("db closed") })
	result := failing.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "db closed", result.Error)

	optional := NewPingChecker("cache", nil)
	result = optional.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Contains(t, result.Message, "optional")
}
