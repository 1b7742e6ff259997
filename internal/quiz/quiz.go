// Package quiz turns raw model output into validated, persisted quizzes.
//
// The processing pipeline runs fence extraction, JSON repair, per-item
// normalization, and batch persistence. A bad item is skipped and counted,
// never aborting the batch; a single invocation yields at most one quiz.
package quiz

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/domain"
)

// Sink persists quizzes and their questions. *store.Store satisfies it.
type Sink interface {
	CreateQuiz(ctx context.Context, quiz *domain.Quiz) error
	CreateQuestion(ctx context.Context, q *domain.Question) error
}

// Meta describes the quiz a batch belongs to.
type Meta struct {
	DocumentID string
	Title      string
	Topic      string
	Difficulty domain.Difficulty
}

// Result reports the outcome of one processed batch.
type Result struct {
	Quiz      *domain.Quiz      `json:"quiz,omitempty"`
	Questions []domain.Question `json:"questions,omitempty"`
	Skipped   int               `json:"skipped"`
	ParseErr  *ParseError       `json:"parse_error,omitempty"`
}

// Processor parses, normalizes, and persists quiz batches.
type Processor struct {
	sink   Sink
	logger *zap.Logger
}

// NewProcessor wires a processor. A nil logger is replaced by a no-op.
func NewProcessor(sink Sink, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{sink: sink, logger: logger}
}

// Process runs the full pipeline over one raw model response. A parse
// failure returns a Result carrying the structured error (not a Go error);
// the error return is reserved for persistence faults.
func (p *Processor) Process(ctx context.Context, raw string, meta Meta) (*Result, error) {
	items, parseErr := ParseItems(raw)
	if parseErr != nil {
		p.logger.Warn("quiz payload unparsable after repair",
			zap.String("reason", parseErr.Reason),
			zap.Int("raw_len", len(raw)),
		)
		return &Result{ParseErr: parseErr}, nil
	}

	questions, skipped := p.normalizeBatch(items, meta)
	if len(questions) == 0 {
		return &Result{
			Skipped: skipped,
			ParseErr: &ParseError{
				Reason:  "no valid items in batch",
				RawText: raw,
			},
		}, nil
	}

	quiz := &domain.Quiz{
		DocumentID:     meta.DocumentID,
		Title:          meta.Title,
		Topic:          meta.Topic,
		Difficulty:     meta.Difficulty,
		TotalQuestions: len(questions),
	}
	if err := p.sink.CreateQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to persist quiz: %w", err)
	}
	for i := range questions {
		questions[i].QuizID = quiz.ID
		if err := p.sink.CreateQuestion(ctx, &questions[i]); err != nil {
			return nil, fmt.Errorf("failed to persist question %d: %w", i, err)
		}
	}

	p.logger.Info("quiz persisted",
		zap.String("quiz_id", quiz.ID),
		zap.Int("questions", len(questions)),
		zap.Int("skipped", skipped),
	)

	return &Result{Quiz: quiz, Questions: questions, Skipped: skipped}, nil
}

// normalizeBatch validates every item, preserving original order for the
// survivors. Ordinals reflect position within the surviving set.
func (p *Processor) normalizeBatch(items []map[string]any, meta Meta) ([]domain.Question, int) {
	difficulty := meta.Difficulty
	if difficulty == "" {
		difficulty = domain.Medium
	}

	questions := make([]domain.Question, 0, len(items))
	skipped := 0
	for i, item := range items {
		q, typeDefaulted, err := NormalizeItem(item, difficulty)
		if err != nil {
			skipped++
			p.logger.Warn("skipping invalid quiz item",
				zap.Int("item", i),
				zap.Error(err),
			)
			continue
		}
		if typeDefaulted {
			p.logger.Warn("unknown question type defaulted to single choice",
				zap.Int("item", i),
			)
		}
		q.Ordinal = len(questions)
		questions = append(questions, *q)
	}
	return questions, skipped
}
