package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cognolabs/studyrag/internal/domain"
)

// BeginTask records a generation task before dispatch. The gateway calls this
// for every LLM invocation; a task left in processing state indicates a
// crashed call, never graceful failure.
func (s *Store) BeginTask(ctx context.Context, task *domain.GenerationTask) error {
	if task == nil {
		return fmt.Errorf("%w: task is nil", ErrInvalidInput)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.Status == "" {
		task.Status = domain.TaskProcessing
	}

	input, err := marshalJSON(task.Input)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO generation_tasks (id, task_type, model, input, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, task.ID, string(task.Type), task.Model, input, string(task.Status), task.CreatedAt)
	if err != nil {
		return fmt.Errorf("beginning task: %w", err)
	}
	return nil
}

// FinishTask finalizes a generation task with its outcome.
func (s *Store) FinishTask(ctx context.Context, task *domain.GenerationTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task id required", ErrInvalidInput)
	}

	output, err := marshalJSON(task.Output)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	task.CompletedAt = &now

	res, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET output = ?, status = ?, tokens_used = ?, latency_ms = ?, error = ?, model = ?, completed_at = ?
		WHERE id = ?
	`, output, string(task.Status), task.TokensUsed, task.LatencyMS, task.Error, task.Model, now, task.ID)
	if err != nil {
		return fmt.Errorf("finishing task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

// GetTask fetches one generation task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.GenerationTask, error) {
	var task domain.GenerationTask
	var taskType, status string
	var input, output sql.NullString
	var completedAt sql.NullTime

	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_type, model, input, output, status, tokens_used, latency_ms, error, created_at, completed_at
		FROM generation_tasks WHERE id = ?
	`, id)
	err := row.Scan(&task.ID, &taskType, &task.Model, &input, &output, &status,
		&task.TokensUsed, &task.LatencyMS, &task.Error, &task.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}

	task.Type = domain.TaskType(taskType)
	task.Status = domain.TaskStatus(status)
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	if err := unmarshalJSON(input, &task.Input); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(output, &task.Output); err != nil {
		return nil, err
	}
	return &task, nil
}
