package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cognolabs/studyrag/internal/domain"
)

func scanModelConfig(row *sql.Row) (*domain.ModelConfig, error) {
	var m domain.ModelConfig
	err := row.Scan(&m.ID, &m.Provider, &m.ModelID, &m.APIKey, &m.APIBase,
		&m.MaxTokens, &m.Temperature, &m.IsActive, &m.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning model config: %w", err)
	}
	return &m, nil
}

const modelConfigColumns = `id, provider, model_id, api_key, api_base, max_tokens, temperature, is_active, is_default`

// GetModelConfig fetches an active model config by id.
func (s *Store) GetModelConfig(ctx context.Context, id string) (*domain.ModelConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+modelConfigColumns+` FROM model_configs WHERE id = ? AND is_active = 1
	`, id)
	m, err := scanModelConfig(row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("model config %s: %w", id, ErrNotFound)
	}
	return m, err
}

// GetDefaultModelForProvider fetches a provider's active default model.
func (s *Store) GetDefaultModelForProvider(ctx context.Context, provider string) (*domain.ModelConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+modelConfigColumns+` FROM model_configs
		WHERE provider = ? AND is_active = 1 AND is_default = 1
		LIMIT 1
	`, provider)
	m, err := scanModelConfig(row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("default model for provider %s: %w", provider, ErrNotFound)
	}
	return m, err
}

// GetDefaultModel fetches the globally marked active default model.
func (s *Store) GetDefaultModel(ctx context.Context) (*domain.ModelConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+modelConfigColumns+` FROM model_configs
		WHERE is_active = 1 AND is_default = 1
		LIMIT 1
	`)
	m, err := scanModelConfig(row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("default model: %w", ErrNotFound)
	}
	return m, err
}

// ListModelConfigs returns all model configs, active or not, ordered by
// provider then model id.
func (s *Store) ListModelConfigs(ctx context.Context) ([]domain.ModelConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modelConfigColumns+` FROM model_configs ORDER BY provider, model_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing model configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.ModelConfig
	for rows.Next() {
		var m domain.ModelConfig
		if err := rows.Scan(&m.ID, &m.Provider, &m.ModelID, &m.APIKey, &m.APIBase,
			&m.MaxTokens, &m.Temperature, &m.IsActive, &m.IsDefault); err != nil {
			return nil, fmt.Errorf("scanning model config: %w", err)
		}
		configs = append(configs, m)
	}
	return configs, rows.Err()
}

// SetDefaultModel marks one config as the default and clears the flag on
// every other config, so resolution is unambiguous.
func (s *Store) SetDefaultModel(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE model_configs SET is_default = 0`); err != nil {
		return fmt.Errorf("clearing default models: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE model_configs SET is_default = 1, is_active = 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("setting default model: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting default model: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("model config %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing default model: %w", err)
	}
	return nil
}

// SaveModelConfig inserts or updates a model config.
func (s *Store) SaveModelConfig(ctx context.Context, m *domain.ModelConfig) error {
	if m == nil || m.Provider == "" || m.ModelID == "" {
		return fmt.Errorf("%w: provider and model_id required", ErrInvalidInput)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_configs (id, provider, model_id, api_key, api_base, max_tokens, temperature, is_active, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			model_id = excluded.model_id,
			api_key = excluded.api_key,
			api_base = excluded.api_base,
			max_tokens = excluded.max_tokens,
			temperature = excluded.temperature,
			is_active = excluded.is_active,
			is_default = excluded.is_default
	`, m.ID, m.Provider, m.ModelID, m.APIKey, m.APIBase, m.MaxTokens, m.Temperature, m.IsActive, m.IsDefault)
	if err != nil {
		return fmt.Errorf("saving model config: %w", err)
	}
	return nil
}
