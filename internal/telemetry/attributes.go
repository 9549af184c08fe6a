// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Learner attributes
	StudentIDKey = "learner.student_id"
	ClassIDKey   = "learner.class_id"
	ConceptIDKey = "learner.concept_id"

	// Model attributes
	ModelMasteryKey        = "model.mastery"
	ModelRecommendationKey = "model.recommendation"
	ModelConfidenceKey     = "model.confidence"

	// Poll attributes
	PollIDKey     = "poll.id"
	PollStatusKey = "poll.status"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// LearnerAttributes creates learner-scoped span attributes, omitting
// empty identifiers.
func LearnerAttributes(studentID, classID, conceptID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if studentID != "" {
		attrs = append(attrs, attribute.String(StudentIDKey, studentID))
	}
	if classID != "" {
		attrs = append(attrs, attribute.String(ClassIDKey, classID))
	}
	if conceptID != "" {
		attrs = append(attrs, attribute.String(ConceptIDKey, conceptID))
	}
	return attrs
}

// ModelAttributes creates mastery-model span attributes.
func ModelAttributes(mastery, confidence float64, recommendation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(ModelMasteryKey, mastery),
		attribute.Float64(ModelConfidenceKey, confidence),
		attribute.String(ModelRecommendationKey, recommendation),
	}
}

// JobAttributes creates background job span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
