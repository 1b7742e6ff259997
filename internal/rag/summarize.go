package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/llm"
	"github.com/cognolabs/studyrag/internal/prompt"
)

// SummaryConfig echoes the parameters a summary was generated with.
type SummaryConfig struct {
	DocumentID  string `json:"document_id"`
	LengthClass string `json:"length_class"`
	Outline     bool   `json:"outline"`
}

// SummaryResult is the outcome of one summary call.
type SummaryResult struct {
	Text   string        `json:"text"`
	Model  string        `json:"model"`
	Config SummaryConfig `json:"config"`
	Err    string        `json:"error,omitempty"`
	TaskID string        `json:"task_id,omitempty"`
}

// ExplainRequest describes one wrong-answer explanation call.
type ExplainRequest struct {
	Question      string
	WrongAnswer   string
	CorrectAnswer string
	Source        string // optional study material
}

// ExplanationResult is the outcome of one explanation call.
type ExplanationResult struct {
	Text   string `json:"text"`
	Model  string `json:"model"`
	Err    string `json:"error,omitempty"`
	TaskID string `json:"task_id,omitempty"`
}

// Summarize generates a document summary at the requested length class,
// optionally structured as an outline.
func (e *Engine) Summarize(ctx context.Context, documentID, lengthClass string, includeOutline bool) (*SummaryResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Summarize")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", documentID),
		attribute.String("length_class", lengthClass),
	)

	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if lengthClass == "" {
		lengthClass = "medium"
	}

	promptText := e.prompts.RenderByType(ctx, prompt.TypeDocumentSummary, "", map[string]string{
		"content":             truncate(doc.Content, e.maxChars),
		"length_requirement":  prompt.SummaryLengthGuide(lengthClass),
		"outline_requirement": prompt.OutlineRequirement(includeOutline),
	})

	resp := e.gateway.Generate(ctx, llm.Request{
		Prompt:    promptText,
		MaxTokens: 1500,
		TaskType:  domain.TaskSummary,
	})

	return &SummaryResult{
		Text:  resp.Text,
		Model: resp.Model,
		Config: SummaryConfig{
			DocumentID:  documentID,
			LengthClass: lengthClass,
			Outline:     includeOutline,
		},
		Err:    resp.Err,
		TaskID: resp.TaskID,
	}, nil
}

// Explain generates a pedagogical explanation of why a student's answer to
// a question is wrong and the correct answer is right.
func (e *Engine) Explain(ctx context.Context, req ExplainRequest) (*ExplanationResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Explain")
	defer span.End()

	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	source := req.Source
	if source == "" {
		source = "(no study material provided)"
	}

	promptText := e.prompts.RenderByType(ctx, prompt.TypeExplanation, "", map[string]string{
		"content":        truncate(source, e.maxChars),
		"question":       req.Question,
		"wrong_answer":   req.WrongAnswer,
		"correct_answer": req.CorrectAnswer,
	})

	resp := e.gateway.Generate(ctx, llm.Request{
		Prompt:    promptText,
		MaxTokens: 1200,
		TaskType:  domain.TaskExplanation,
	})

	return &ExplanationResult{
		Text:   resp.Text,
		Model:  resp.Model,
		Err:    resp.Err,
		TaskID: resp.TaskID,
	}, nil
}
