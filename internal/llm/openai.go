package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/cognolabs/studyrag/internal/domain"
)

// OpenAIAdapter speaks the OpenAI chat completion protocol. DeepSeek and
// Qwen endpoints are wire compatible and are reached by setting APIBase.
type OpenAIAdapter struct {
	client *openai.LLM
	model  string
}

// NewOpenAIAdapter builds a chat client from one model config.
func NewOpenAIAdapter(mc *domain.ModelConfig) (*OpenAIAdapter, error) {
	if mc.ModelID == "" {
		return nil, fmt.Errorf("%w: model id is required", ErrInvalidConfig)
	}
	if mc.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required for %s", ErrInvalidConfig, mc.Provider)
	}

	opts := []openai.Option{
		openai.WithModel(mc.ModelID),
		openai.WithToken(mc.APIKey),
	}
	if mc.APIBase != "" {
		opts = append(opts, openai.WithBaseURL(mc.APIBase))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	return &OpenAIAdapter{client: client, model: mc.ModelID}, nil
}

// Model implements Adapter.
func (a *OpenAIAdapter) Model() string { return a.model }

// Complete implements Adapter.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
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

// usageFromGenerationInfo extracts total token usage when the provider
// reports it. Returns zero when absent so the caller can estimate.
func usageFromGenerationInfo(info map[string]any) int {
	if info == nil {
		return 0
	}
	if v, ok := info["TotalTokens"]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	prompt, _ := info["PromptTokens"].(int)
	completion, _ := info["CompletionTokens"].(int)
	return prompt + completion
}
