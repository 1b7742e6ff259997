package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cognolabs/studyrag/internal/domain"
)

// CreateQuiz inserts a quiz. DocumentID may be empty for topic-only quizzes.
func (s *Store) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if quiz == nil {
		return fmt.Errorf("%w: quiz is nil", ErrInvalidInput)
	}
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}

	docID := sql.NullString{String: quiz.DocumentID, Valid: quiz.DocumentID != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quizzes (id, document_id, title, topic, difficulty, total_questions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, quiz.ID, docID, quiz.Title, quiz.Topic, string(quiz.Difficulty), quiz.TotalQuestions, quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating quiz: %w", err)
	}
	return nil
}

// CreateQuestion inserts one question. Options, answer and knowledge points
// are stored as JSON.
func (s *Store) CreateQuestion(ctx context.Context, q *domain.Question) error {
	if q == nil {
		return fmt.Errorf("%w: question is nil", ErrInvalidInput)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	options, err := marshalJSON(q.Options)
	if err != nil {
		return err
	}
	answer, err := marshalJSON(q.CorrectAnswer)
	if err != nil {
		return err
	}
	points, err := marshalJSON(q.KnowledgePoints)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO questions (id, quiz_id, content, qtype, options, correct_answer,
			explanation, source_passage, knowledge_points, difficulty, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, q.QuizID, q.Content, string(q.Type), options, answer.String,
		q.Explanation, q.SourcePassage, points, string(q.Difficulty), q.Ordinal)
	if err != nil {
		return fmt.Errorf("creating question: %w", err)
	}
	return nil
}

// ListQuestions returns a quiz's questions in original order.
func (s *Store) ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quiz_id, content, qtype, options, correct_answer,
			explanation, source_passage, knowledge_points, difficulty, ord
		FROM questions WHERE quiz_id = ? ORDER BY ord
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var qtype, difficulty string
		var options, answer, points sql.NullString
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Content, &qtype, &options, &answer,
			&q.Explanation, &q.SourcePassage, &points, &difficulty, &q.Ordinal); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		q.Type = domain.QuestionType(qtype)
		q.Difficulty = domain.Difficulty(difficulty)
		if err := unmarshalJSON(options, &q.Options); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(answer, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(points, &q.KnowledgePoints); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
