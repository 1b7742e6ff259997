package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/llm"
	"github.com/cognolabs/studyrag/internal/prompt"
	"github.com/cognolabs/studyrag/internal/quiz"
)

// defaultQuestionCount is used when a quiz request does not specify one.
const defaultQuestionCount = 5

// genericQuizTopic labels quizzes whose topic could not be extracted.
const genericQuizTopic = "general knowledge"

// QuizRequest describes one quiz generation call. Exactly one of DocumentID
// and Topic should be set; when both are present the document wins.
type QuizRequest struct {
	DocumentID  string
	Topic       string
	Constraints string
	Count       int
	Types       []domain.QuestionType
	Difficulty  domain.Difficulty
}

// QuizResult is the outcome of one quiz generation call. ParseErr and Err
// are expected-failure fields; the quiz is nil when either is set. Text is
// always a non-empty human-readable outcome line.
type QuizResult struct {
	Quiz      *domain.Quiz      `json:"quiz,omitempty"`
	Questions []domain.Question `json:"questions,omitempty"`
	Skipped   int               `json:"skipped"`
	Text      string            `json:"text"`
	Model     string            `json:"model"`
	Err       string            `json:"error,omitempty"`
	ParseErr  *quiz.ParseError  `json:"parse_error,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
}

// Constraints is the structured outcome of constraint extraction from a
// conversational quiz request.
type Constraints struct {
	Topic               string   `json:"topic"`
	Constraints         string   `json:"constraints"`
	SuggestedTypes      []string `json:"suggested_question_types"`
	SuggestedDifficulty string   `json:"suggested_difficulty"`
}

// GenerateQuiz produces, parses, and persists one quiz, sourced from a
// document's content or from a bare topic.
func (e *Engine) GenerateQuiz(ctx context.Context, req QuizRequest) (*QuizResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.GenerateQuiz")
	defer span.End()

	if req.Count <= 0 {
		req.Count = defaultQuestionCount
	}
	if req.Difficulty == "" {
		req.Difficulty = domain.Medium
	}
	if len(req.Types) == 0 {
		req.Types = []domain.QuestionType{domain.SingleChoice, domain.TrueFalse}
	}
	span.SetAttributes(
		attribute.String("document_id", req.DocumentID),
		attribute.Int("count", req.Count),
	)

	vars := map[string]string{
		"question_count": fmt.Sprintf("%d", req.Count),
		"question_types": wireCodes(req.Types),
		"difficulty":     string(req.Difficulty),
	}

	meta := quiz.Meta{Difficulty: req.Difficulty}
	var promptText string
	if req.DocumentID != "" {
		doc, err := e.store.GetDocument(ctx, req.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load document: %w", err)
		}
		vars["content"] = truncate(doc.Content, e.maxChars)
		promptText = e.prompts.RenderByType(ctx, prompt.TypeDocumentQuiz, "", vars)
		meta.DocumentID = doc.ID
		meta.Title = fmt.Sprintf("Quiz: %s", doc.Title)
	} else {
		topic := strings.TrimSpace(req.Topic)
		if topic == "" {
			topic = genericQuizTopic
		}
		vars["topic"] = topic
		vars["constraints"] = req.Constraints
		promptText = e.prompts.RenderByType(ctx, prompt.TypeTopicQuiz, "", vars)
		meta.Topic = topic
		meta.Title = fmt.Sprintf("Quiz: %s", topic)
	}

	resp := e.gateway.Generate(ctx, llm.Request{
		Prompt:    promptText,
		MaxTokens: 2000,
		TaskType:  domain.TaskQuizGeneration,
	})
	if resp.Degraded() {
		return &QuizResult{Text: resp.Text, Model: resp.Model, Err: resp.Err, TaskID: resp.TaskID}, nil
	}

	processed, err := e.quizzes.Process(ctx, resp.Text, meta)
	if err != nil {
		return nil, err
	}

	result := &QuizResult{
		Quiz:      processed.Quiz,
		Questions: processed.Questions,
		Skipped:   processed.Skipped,
		Model:     resp.Model,
		ParseErr:  processed.ParseErr,
		TaskID:    resp.TaskID,
	}
	if processed.ParseErr != nil {
		result.Text = "Sorry, the model did not return a usable quiz. Please try again."
	} else {
		result.Text = fmt.Sprintf("Generated %d questions (%d skipped).",
			len(processed.Questions), processed.Skipped)
	}
	return result, nil
}

// GenerateQuizFromConversation extracts a topic and constraints from the
// latest user message, then delegates to topic-mode generation. Extraction
// failure degrades to a generic topic with defaults, never an error.
func (e *Engine) GenerateQuizFromConversation(ctx context.Context, latestMessage string, req QuizRequest) (*QuizResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.GenerateQuizFromConversation")
	defer span.End()

	extracted := e.ExtractConstraints(ctx, latestMessage)

	req.DocumentID = ""
	if req.Topic == "" {
		req.Topic = extracted.Topic
	}
	if req.Constraints == "" {
		req.Constraints = extracted.Constraints
	}
	if req.Difficulty == "" && extracted.SuggestedDifficulty != "" {
		req.Difficulty = domain.ParseDifficulty(extracted.SuggestedDifficulty)
	}
	if len(req.Types) == 0 {
		for _, raw := range extracted.SuggestedTypes {
			if t, ok := domain.ParseQuestionType(raw); ok {
				req.Types = append(req.Types, t)
			}
		}
	}

	return e.GenerateQuiz(ctx, req)
}

// ExtractConstraints asks the model to pull a quiz topic and constraints out
// of a free-form request. Any failure, from the provider to the JSON shape,
// degrades to a generic topic.
func (e *Engine) ExtractConstraints(ctx context.Context, message string) *Constraints {
	fallback := &Constraints{Topic: genericQuizTopic}
	if strings.TrimSpace(message) == "" {
		return fallback
	}

	promptText := e.prompts.RenderByType(ctx, prompt.TypeQuizConstraints, "", map[string]string{
		"query": message,
	})
	resp := e.gateway.Generate(ctx, llm.Request{
		Prompt:      promptText,
		MaxTokens:   500,
		Temperature: llm.Temp(0.1),
		TaskType:    domain.TaskQuizConstraints,
	})
	if resp.Degraded() {
		return fallback
	}

	var extracted Constraints
	if err := json.Unmarshal([]byte(quiz.ExtractFenced(resp.Text)), &extracted); err != nil {
		e.logger.Warn("constraint extraction returned unusable JSON, using defaults",
			zap.Error(err),
		)
		return fallback
	}
	if strings.TrimSpace(extracted.Topic) == "" {
		extracted.Topic = genericQuizTopic
	}
	return &extracted
}

// wireCodes renders question types in the compact codes the generation
// templates describe.
func wireCodes(types []domain.QuestionType) string {
	codes := make([]string, 0, len(types))
	for _, t := range types {
		switch t {
		case domain.SingleChoice:
			codes = append(codes, "MC")
		case domain.MultiChoice:
			codes = append(codes, "MCM")
		case domain.TrueFalse:
			codes = append(codes, "TF")
		case domain.FillBlank:
			codes = append(codes, "FB")
		case domain.ShortAnswer:
			codes = append(codes, "SA")
		}
	}
	return strings.Join(codes, ", ")
}
