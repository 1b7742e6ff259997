package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/cognolabs/studyrag/internal/domain"
)

// GoogleAIAdapter speaks to Gemini models via the Google AI API.
type GoogleAIAdapter struct {
	client *googleai.GoogleAI
	model  string
}

// NewGoogleAIAdapter builds a Gemini chat client from one model config.
func NewGoogleAIAdapter(ctx context.Context, mc *domain.ModelConfig) (*GoogleAIAdapter, error) {
	if mc.ModelID == "" {
		return nil, fmt.Errorf("%w: model id is required", ErrInvalidConfig)
	}
	if mc.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required for gemini", ErrInvalidConfig)
	}

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(mc.APIKey),
		googleai.WithDefaultModel(mc.ModelID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create googleai client: %w", err)
	}

	return &GoogleAIAdapter{client: client, model: mc.ModelID}, nil
}

// Model implements Adapter.
func (a *GoogleAIAdapter) Model() string { return a.model }

// Complete implements Adapter.
func (a *GoogleAIAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	// Gemini folds the system instruction into the human turn; the dedicated
	// system role is not supported across all model versions.
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{llms.WithMaxTokens(req.MaxTokens)}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}

	resp, err := a.client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:         choice.Content,
		TokensUsed:   usageFromGenerationInfo(choice.GenerationInfo),
		FinishReason: choice.StopReason,
	}, nil
}
