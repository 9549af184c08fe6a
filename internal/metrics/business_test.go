// SPDX-License-Identifier: MIT

package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-platform/insightd/internal/metrics"
)

// counterValue reads a labeled counter from the default registry.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == key && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func scrape(t *testing.T) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	promhttp.Handler().ServeHTTP(recorder, req)
	return recorder.Body.String()
}

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordMasteryUpdate(t *testing.T) {
	metrics.RecordMasteryUpdate("LIGHT_REVIEW", 62.5)
	metrics.RecordMasteryUpdate("SKIP", 91.0)

	body := scrape(t)
	assert.Contains(t, body, "insight_mastery_updates_total")
	assert.Contains(t, body, `recommendation="LIGHT_REVIEW"`)
	assert.Contains(t, body, `recommendation="SKIP"`)
	assert.Contains(t, body, "insight_mastery_score")
}

func TestPollOutcomes(t *testing.T) {
	metrics.IncPollCreated()
	metrics.IncPollVote("accepted")
	metrics.IncPollVote("duplicate")
	metrics.IncPollClosed("auto")

	body := scrape(t)
	assert.Contains(t, body, "insight_polls_created_total")
	assert.Contains(t, body, `outcome="duplicate"`)
	assert.Contains(t, body, `trigger="auto"`)

	before := counterValue(t, "insight_poll_votes_total", map[string]string{"outcome": "accepted"})
	metrics.IncPollVote("accepted")
	after := counterValue(t, "insight_poll_votes_total", map[string]string{"outcome": "accepted"})
	assert.Equal(t, before+1, after)
}

func TestEngagementAndEvents(t *testing.T) {
	metrics.RecordEngagementSnapshot("AT_RISK")
	metrics.IncAlertRaised("CRITICAL")
	metrics.IncEventAppended("attempt")
	metrics.IncEventLogGC("noop")

	body := scrape(t)
	assert.Contains(t, body, `level="AT_RISK"`)
	assert.Contains(t, body, `severity="CRITICAL"`)
	assert.Contains(t, body, "insight_events_appended_total")
	assert.Contains(t, body, "insight_eventlog_gc_total")
}

func TestRecordReportExport(t *testing.T) {
	metrics.RecordReportExport(nil, 0.12)
	metrics.RecordReportExport(errors.New("disk full"), 0)

	body := scrape(t)
	require.True(t, strings.Contains(body, `insight_report_exports_total{outcome="success"}`))
	require.True(t, strings.Contains(body, `insight_report_exports_total{outcome="failure"}`))
}

func TestPracticeAndCache(t *testing.T) {
	metrics.RecordPracticeSession(5, 0.31)
	metrics.IncCacheRequest(true)
	metrics.IncCacheRequest(false)
	metrics.IncResponse(true)

	body := scrape(t)
	assert.Contains(t, body, "insight_practice_session_items")
	assert.Contains(t, body, `insight_cache_requests_total{outcome="hit"}`)
	assert.Contains(t, body, `insight_responses_total{outcome="correct"}`)
}
