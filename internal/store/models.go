// SPDX-License-Identifier: MIT

package store

import "time"

// Student is a roster entry. Classes are identifiers only; roster
// management happens upstream.
type Student struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"classId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Concept is a unit of the knowledge graph students are assessed on.
type Concept struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Difficulty    float64   `json:"difficulty"`
	Prerequisites []string  `json:"prerequisites"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MasteryRecord is the persisted outcome of a knowledge tracing update
// for one student and concept. Scores are 0..100.
type MasteryRecord struct {
	StudentID        string    `json:"studentId"`
	ConceptID        string    `json:"conceptId"`
	BKTScore         float64   `json:"bktScore"`
	DKTScore         float64   `json:"dktScore"`
	DKVMNScore       float64   `json:"dkvmnScore"`
	BlendedScore     float64   `json:"blendedScore"`
	Confidence       float64   `json:"confidence"`
	LearningVelocity float64   `json:"learningVelocity"`
	Recommendation   string    `json:"recommendation"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Response is a single graded interaction with a practice item.
type Response struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"studentId"`
	ConceptID     string    `json:"conceptId"`
	ItemID        string    `json:"itemId,omitempty"`
	Correct       bool      `json:"correct"`
	TimeTakenSec  float64   `json:"timeTakenSec"`
	HintsUsed     int       `json:"hintsUsed"`
	AttemptNumber int       `json:"attemptNumber"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Poll statuses.
const (
	PollOpen   = "open"
	PollClosed = "closed"
)

// Poll is a live classroom poll.
type Poll struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"classId"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"`
	Status    string     `json:"status"`
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// PollResults aggregates vote counts per option.
type PollResults struct {
	PollID     string `json:"pollId"`
	Question   string `json:"question"`
	Status     string `json:"status"`
	Counts     []int  `json:"counts"`
	TotalVotes int    `json:"totalVotes"`
}

// EngagementSnapshot is a persisted engagement evaluation.
type EngagementSnapshot struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"studentId"`
	ClassID       string    `json:"classId,omitempty"`
	Score         float64   `json:"score"`
	Level         string    `json:"level"`
	ImplicitScore float64   `json:"implicitScore"`
	ExplicitScore float64   `json:"explicitScore"`
	Behaviors     []string  `json:"behaviors"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Alert is a teacher-facing disengagement alert.
type Alert struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"studentId"`
	ClassID      string    `json:"classId,omitempty"`
	Severity     string    `json:"severity"`
	Reason       string    `json:"reason"`
	Message      string    `json:"message,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Project is a project-based-learning unit for a class.
type Project struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"classId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Milestone is a dated step within a project.
type Milestone struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Team groups students working on a project.
type Team struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	Name      string       `json:"name"`
	Members   []TeamMember `json:"members,omitempty"`
}

// TeamMember is a student's membership in a team.
type TeamMember struct {
	TeamID    string `json:"teamId"`
	StudentID string `json:"studentId"`
	Role      string `json:"role"`
}

// Assessment is a persisted soft skills questionnaire result with its
// computed dimension means.
type Assessment struct {
	ID                string         `json:"id"`
	StudentID         string         `json:"studentId"`
	TeamID            string         `json:"teamId,omitempty"`
	RaterID           string         `json:"raterId,omitempty"`
	Ratings           map[string]int `json:"ratings"`
	TeamDynamics      float64        `json:"teamDynamics"`
	TaskStructure     float64        `json:"taskStructure"`
	TeamMotivation    float64        `json:"teamMotivation"`
	TeamEffectiveness float64        `json:"teamEffectiveness"`
	Overall           float64        `json:"overall"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// Template is a reusable practice item blueprint.
type Template struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject,omitempty"`
	ConceptID  string    `json:"conceptId,omitempty"`
	Difficulty float64   `json:"difficulty"`
	EstMinutes float64   `json:"estMinutes"`
	Content    string    `json:"content,omitempty"`
	Tags       string    `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Intervention records a teacher action taken for a student, with the
// engagement score at the time and an optional follow-up score.
type Intervention struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"studentId"`
	TeacherID     string    `json:"teacherId,omitempty"`
	Kind          string    `json:"kind"`
	Notes         string    `json:"notes,omitempty"`
	BaselineScore float64   `json:"baselineScore"`
	FollowupScore *float64  `json:"followupScore,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
