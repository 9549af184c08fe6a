// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mastery model metrics
	masteryUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_mastery_updates_total",
		Help: "Total mastery updates by recommendation",
	}, []string{"recommendation"}) // recommendation=SKIP|LIGHT_REVIEW|FOCUSED_PRACTICE

	masteryScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_mastery_score",
		Help:    "Distribution of blended mastery scores after each update",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_responses_total",
		Help: "Item responses recorded by outcome",
	}, []string{"outcome"}) // outcome=correct|incorrect

	// Practice metrics
	practiceSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_practice_sessions_total",
		Help: "Total practice sessions generated",
	})

	practiceSessionItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_practice_session_items",
		Help:    "Items per generated practice session",
		Buckets: []float64{1, 2, 3, 5, 8, 12, 20},
	})

	practiceCognitiveLoad = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_practice_cognitive_load",
		Help:    "Cognitive load of generated practice sessions",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// Poll metrics
	pollsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_polls_created_total",
		Help: "Total polls created",
	})

	pollVotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_poll_votes_total",
		Help: "Poll vote attempts by outcome",
	}, []string{"outcome"}) // outcome=accepted|duplicate|closed|rate_limited

	pollsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_polls_closed_total",
		Help: "Polls closed by trigger",
	}, []string{"trigger"}) // trigger=manual|auto

	// Engagement metrics
	engagementSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_engagement_snapshots_total",
		Help: "Total engagement snapshots computed",
	})

	engagementLevels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engagement_levels_total",
		Help: "Engagement classifications by level",
	}, []string{"level"}) // level=ENGAGED|PASSIVE|MONITOR|AT_RISK|CRITICAL

	alertsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_alerts_raised_total",
		Help: "Engagement alerts raised by severity",
	}, []string{"severity"})

	// Event log metrics
	eventsAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_events_appended_total",
		Help: "Learning events appended to the event log by type",
	}, []string{"type"})

	eventLogGCTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_eventlog_gc_total",
		Help: "Event log value-log GC runs by outcome",
	}, []string{"outcome"}) // outcome=reclaimed|noop|error

	// Cache metrics
	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_cache_requests_total",
		Help: "Cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	// Export metrics
	reportExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_report_exports_total",
		Help: "Institution report exports by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	reportExportDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_report_export_duration_seconds",
		Help:    "Time spent exporting the institution report",
		Buckets: prometheus.DefBuckets,
	})
)

func RecordMasteryUpdate(recommendation string, score float64) {
	masteryUpdatesTotal.WithLabelValues(recommendation).Inc()
	masteryScore.Observe(score)
}

func IncResponse(correct bool) {
	if correct {
		responsesTotal.WithLabelValues("correct").Inc()
	} else {
		responsesTotal.WithLabelValues("incorrect").Inc()
	}
}

func RecordPracticeSession(items int, load float64) {
	practiceSessionsTotal.Inc()
	practiceSessionItems.Observe(float64(items))
	practiceCognitiveLoad.Observe(load)
}

func IncPollCreated()              { pollsCreatedTotal.Inc() }
func IncPollVote(outcome string)   { pollVotesTotal.WithLabelValues(outcome).Inc() }
func IncPollClosed(trigger string) { pollsClosedTotal.WithLabelValues(trigger).Inc() }

func RecordEngagementSnapshot(level string) {
	engagementSnapshotsTotal.Inc()
	engagementLevels.WithLabelValues(level).Inc()
}

func IncAlertRaised(severity string) { alertsRaisedTotal.WithLabelValues(severity).Inc() }

func IncEventAppended(eventType string) { eventsAppendedTotal.WithLabelValues(eventType).Inc() }
func IncEventLogGC(outcome string)      { eventLogGCTotal.WithLabelValues(outcome).Inc() }

func IncCacheRequest(hit bool) {
	if hit {
		cacheRequestsTotal.WithLabelValues("hit").Inc()
	} else {
		cacheRequestsTotal.WithLabelValues("miss").Inc()
	}
}

func RecordReportExport(err error, duration float64) {
	if err != nil {
		reportExportsTotal.WithLabelValues("failure").Inc()
		return
	}
	reportExportsTotal.WithLabelValues("success").Inc()
	reportExportDurationSeconds.Observe(duration)
}
