// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// UpsertTemplate inserts or updates a practice template.
func (s *Store) UpsertTemplate(ctx context.Context, t Template) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO templates (id, title, subject, concept_id, difficulty, est_minutes, content, tags, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		subject = excluded.subject,
		concept_id = excluded.concept_id,
		difficulty = excluded.difficulty,
		est_minutes = excluded.est_minutes,
		content = excluded.content,
		tags = excluded.tags
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Subject, t.ConceptID, t.Difficulty, t.EstMinutes,
		t.Content, t.Tags, t.CreatedAt.Format(time.RFC3339))
	return err
}

// GetTemplate fetches a template by ID.
func (s *Store) GetTemplate(ctx context.Context, id string) (*Template, error) {
	var t Template
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
	SELECT id, title, subject, concept_id, difficulty, est_minutes, content, tags, created_at
	FROM templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Subject, &t.ConceptID, &t.Difficulty,
		&t.EstMinutes, &t.Content, &t.Tags, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

// ListTemplatesByConcept returns every template attached to a concept.
func (s *Store) ListTemplatesByConcept(ctx context.Context, conceptID string) ([]Template, error) {
	return s.listTemplates(ctx,
		`SELECT id, title, subject, concept_id, difficulty, est_minutes, content, tags, created_at
		FROM templates WHERE concept_id = ? ORDER BY difficulty, id`, conceptID)
}

// SearchTemplates matches templates whose title, subject or tags contain
// the query. Matching is case- and accent-insensitive, so "algebre"
// finds "Algèbre".
func (s *Store) SearchTemplates(ctx context.Context, query string, limit int) ([]Template, error) {
	all, err := s.listTemplates(ctx,
		`SELECT id, title, subject, concept_id, difficulty, est_minutes, content, tags, created_at
		FROM templates ORDER BY title, id`)
	if err != nil {
		return nil, err
	}

	needle := foldForSearch(query)
	if needle == "" {
		return nil, nil
	}

	var matched []Template
	for _, t := range all {
		haystack := foldForSearch(t.Title + " " + t.Subject + " " + t.Tags)
		if strings.Contains(haystack, needle) {
			matched = append(matched, t)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}

func (s *Store) listTemplates(ctx context.Context, query string, args ...any) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var templates []Template
	for rows.Next() {
		var t Template
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Title, &t.Subject, &t.ConceptID, &t.Difficulty,
			&t.EstMinutes, &t.Content, &t.Tags, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// foldForSearch lowercases and strips combining marks so queries match
// regardless of accents.
func foldForSearch(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.TrimSpace(b.String())
}
