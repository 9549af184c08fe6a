// SPDX-License-Identifier: MIT

// Package store provides SQLite persistence for the platform's relational
// data: concept catalog, mastery state, item responses, polls, engagement
// snapshots, project work and practice templates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure Go driver, no CGO
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at dbPath and runs migrations.
// WAL mode and busy_timeout keep concurrent readers from
// hitting "database locked" errors.
func Open(dbPath string) (*Store, error) {
	// modernc.org/sqlite takes pragmas as _pragma=name(value) DSN params.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck reports whether the database answers a ping.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id);

	CREATE TABLE IF NOT EXISTS concepts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		difficulty REAL NOT NULL DEFAULT 0.5,
		prerequisites TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mastery (
		student_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		bkt_score REAL NOT NULL,
		dkt_score REAL NOT NULL,
		dkvmn_score REAL NOT NULL,
		blended_score REAL NOT NULL,
		confidence REAL NOT NULL,
		learning_velocity REAL NOT NULL DEFAULT 0,
		recommendation TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (student_id, concept_id)
	);
	CREATE INDEX IF NOT EXISTS idx_mastery_concept ON mastery(concept_id);

	CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		item_id TEXT NOT NULL DEFAULT '',
		correct INTEGER NOT NULL,
		time_taken_sec REAL NOT NULL DEFAULT 0,
		hints_used INTEGER NOT NULL DEFAULT 0,
		attempt_number INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_responses_student_concept
		ON responses(student_id, concept_id, created_at);

	CREATE TABLE IF NOT EXISTS polls (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL,
		question TEXT NOT NULL,
		options TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open', 'closed')),
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		closed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_polls_class ON polls(class_id, created_at);

	CREATE TABLE IF NOT EXISTS poll_responses (
		poll_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		option_index INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (poll_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS engagement_snapshots (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		class_id TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL,
		level TEXT NOT NULL,
		implicit_score REAL NOT NULL,
		explicit_score REAL NOT NULL,
		behaviors TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_engagement_student
		ON engagement_snapshots(student_id, created_at);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		class_id TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		reason TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		acknowledged INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_class ON alerts(class_id, acknowledged);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'planning' CHECK(status IN ('planning', 'active', 'review', 'done')),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		due_date TEXT,
		status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open', 'in_progress', 'done')),
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones(project_id);

	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS team_members (
		team_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		PRIMARY KEY (team_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS softskill_assessments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		team_id TEXT NOT NULL DEFAULT '',
		rater_id TEXT NOT NULL DEFAULT '',
		ratings TEXT NOT NULL,
		team_dynamics REAL NOT NULL,
		task_structure REAL NOT NULL,
		team_motivation REAL NOT NULL,
		team_effectiveness REAL NOT NULL,
		overall REAL NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_softskills_team
		ON softskill_assessments(team_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_softskills_student
		ON softskill_assessments(student_id, created_at);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		concept_id TEXT NOT NULL DEFAULT '',
		difficulty REAL NOT NULL DEFAULT 0.5,
		est_minutes REAL NOT NULL DEFAULT 5,
		content TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interventions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		teacher_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		baseline_score REAL NOT NULL DEFAULT 0,
		followup_score REAL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interventions_student ON interventions(student_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
