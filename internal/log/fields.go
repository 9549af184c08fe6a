// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldStudentID     = "student_id"
	FieldTeacherID     = "teacher_id"
	FieldConceptID     = "concept_id"
	FieldClassID       = "class_id"
	FieldPollID        = "poll_id"
	FieldTeamID        = "team_id"
	FieldProjectID     = "project_id"
	FieldSessionID     = "session_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Domain fields
	FieldMasteryScore    = "mastery_score"
	FieldEngagementScore = "engagement_score"
	FieldEngagementLevel = "engagement_level"
	FieldRecommendation  = "recommendation"
	FieldSeverity        = "severity"
)
