package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cognolabs/studyrag/internal/domain"
)

// GetTemplate fetches the active template for (type, name). An empty name
// returns the first active template of the type.
func (s *Store) GetTemplate(ctx context.Context, templateType, name string) (*domain.PromptTemplate, error) {
	var row *sql.Row
	if name != "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, template_type, content, version, is_active
			FROM prompt_templates
			WHERE template_type = ? AND name = ? AND is_active = 1
		`, templateType, name)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, template_type, content, version, is_active
			FROM prompt_templates
			WHERE template_type = ? AND is_active = 1
			ORDER BY name LIMIT 1
		`, templateType)
	}

	var t domain.PromptTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Type, &t.Content, &t.Version, &t.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s/%s: %w", templateType, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting template: %w", err)
	}
	return &t, nil
}

// SaveTemplate inserts or updates a template keyed by (type, name).
func (s *Store) SaveTemplate(ctx context.Context, t *domain.PromptTemplate) error {
	if t == nil || t.Type == "" || t.Name == "" {
		return fmt.Errorf("%w: template type and name required", ErrInvalidInput)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Version == "" {
		t.Version = "1.0"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_templates (id, name, template_type, content, version, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(template_type, name) DO UPDATE SET
			content = excluded.content,
			version = excluded.version,
			is_active = excluded.is_active
	`, t.ID, t.Name, t.Type, t.Content, t.Version, t.IsActive)
	if err != nil {
		return fmt.Errorf("saving template: %w", err)
	}
	return nil
}

// SeedTemplates inserts the given templates where (type, name) does not
// already exist. Existing rows are left alone so operator edits survive
// restarts.
func (s *Store) SeedTemplates(ctx context.Context, templates []domain.PromptTemplate) error {
	for i := range templates {
		t := templates[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Version == "" {
			t.Version = "1.0"
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO prompt_templates (id, name, template_type, content, version, is_active)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(template_type, name) DO NOTHING
		`, t.ID, t.Name, t.Type, t.Content, t.Version, t.IsActive)
		if err != nil {
			return fmt.Errorf("seeding template %s/%s: %w", t.Type, t.Name, err)
		}
	}
	return nil
}
