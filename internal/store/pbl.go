// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateProject persists a project-based-learning unit.
func (s *Store) CreateProject(ctx context.Context, p Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = "planning"
	}
	query := `
	INSERT INTO projects (id, class_id, title, description, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.ClassID, p.Title, p.Description, p.Status, p.CreatedAt.Format(time.RFC3339))
	return err
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
	SELECT id, class_id, title, description, status, created_at
	FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.ClassID, &p.Title, &p.Description, &p.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// ListProjectsByClass returns a class's projects, newest first.
func (s *Store) ListProjectsByClass(ctx context.Context, classID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, class_id, title, description, status, created_at
	FROM projects WHERE class_id = ?
	ORDER BY created_at DESC, id`, classID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.ClassID, &p.Title, &p.Description, &p.Status, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProjectStatus moves a project between the planning, active,
// review and done stages.
func (s *Store) UpdateProjectStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMilestone adds a milestone to a project.
func (s *Store) CreateMilestone(ctx context.Context, m Milestone) error {
	if m.Status == "" {
		m.Status = "open"
	}
	var due any
	if m.DueDate != nil {
		due = m.DueDate.UTC().Format(time.RFC3339)
	}
	query := `
	INSERT INTO milestones (id, project_id, title, due_date, status)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.ProjectID, m.Title, due, m.Status)
	return err
}

// ListMilestones returns a project's milestones ordered by due date.
func (s *Store) ListMilestones(ctx context.Context, projectID string) ([]Milestone, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, project_id, title, due_date, status, completed_at
	FROM milestones WHERE project_id = ?
	ORDER BY due_date IS NULL, due_date, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var milestones []Milestone
	for rows.Next() {
		var m Milestone
		var due, completed sql.NullString
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &due, &m.Status, &completed); err != nil {
			return nil, err
		}
		if due.Valid {
			t, err := time.Parse(time.RFC3339, due.String)
			if err == nil {
				m.DueDate = &t
			}
		}
		if completed.Valid {
			t, err := time.Parse(time.RFC3339, completed.String)
			if err == nil {
				m.CompletedAt = &t
			}
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// UpdateMilestoneStatus transitions a milestone; reaching "done" stamps
// the completion time.
func (s *Store) UpdateMilestoneStatus(ctx context.Context, id, status string, at time.Time) error {
	var completed any
	if status == "done" {
		completed = at.UTC().Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET status = ?, completed_at = ? WHERE id = ?`, status, completed, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTeam persists a team and its initial members atomically.
func (s *Store) CreateTeam(ctx context.Context, t Team) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO teams (id, project_id, name) VALUES (?, ?, ?)`,
		t.ID, t.ProjectID, t.Name); err != nil {
		return err
	}
	for _, m := range t.Members {
		role := m.Role
		if role == "" {
			role = "member"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, student_id, role) VALUES (?, ?, ?)`,
			t.ID, m.StudentID, role); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTeam fetches a team including its members.
func (s *Store) GetTeam(ctx context.Context, id string) (*Team, error) {
	var t Team
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name FROM teams WHERE id = ?`, id,
	).Scan(&t.ID, &t.ProjectID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, student_id, role FROM team_members WHERE team_id = ? ORDER BY student_id`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.StudentID, &m.Role); err != nil {
			return nil, err
		}
		t.Members = append(t.Members, m)
	}
	return &t, rows.Err()
}

// ListTeamsByProject returns a project's teams with members.
func (s *Store) ListTeamsByProject(ctx context.Context, projectID string) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM teams WHERE project_id = ? ORDER BY name, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var teams []Team
	for _, id := range ids {
		t, err := s.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, nil
}

// InsertAssessment persists a soft skills questionnaire result.
func (s *Store) InsertAssessment(ctx context.Context, a Assessment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	ratings, err := json.Marshal(a.Ratings)
	if err != nil {
		return fmt.Errorf("marshal ratings: %w", err)
	}
	query := `
	INSERT INTO softskill_assessments (id, student_id, team_id, rater_id, ratings,
		team_dynamics, task_structure, team_motivation, team_effectiveness, overall, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.StudentID, a.TeamID, a.RaterID, string(ratings),
		a.TeamDynamics, a.TaskStructure, a.TeamMotivation, a.TeamEffectiveness, a.Overall,
		a.CreatedAt.Format(time.RFC3339))
	return err
}

// ListAssessmentsByStudent returns a student's assessments, oldest first.
func (s *Store) ListAssessmentsByStudent(ctx context.Context, studentID string) ([]Assessment, error) {
	return s.listAssessments(ctx,
		`WHERE student_id = ?`, studentID)
}

// ListAssessmentsByTeam returns a team's assessments, oldest first.
func (s *Store) ListAssessmentsByTeam(ctx context.Context, teamID string) ([]Assessment, error) {
	return s.listAssessments(ctx,
		`WHERE team_id = ?`, teamID)
}

func (s *Store) listAssessments(ctx context.Context, where string, arg any) ([]Assessment, error) {
	query := `
	SELECT id, student_id, team_id, rater_id, ratings,
		team_dynamics, task_structure, team_motivation, team_effectiveness, overall, created_at
	FROM softskill_assessments ` + where + `
	ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var assessments []Assessment
	for rows.Next() {
		var a Assessment
		var ratings, createdAt string
		if err := rows.Scan(&a.ID, &a.StudentID, &a.TeamID, &a.RaterID, &ratings,
			&a.TeamDynamics, &a.TaskStructure, &a.TeamMotivation, &a.TeamEffectiveness,
			&a.Overall, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ratings), &a.Ratings); err != nil {
			return nil, fmt.Errorf("unmarshal ratings: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}
