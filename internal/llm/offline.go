package llm

import (
	"context"
	"fmt"
)

// OfflineModel is the model identifier reported by the offline adapter.
const OfflineModel = "offline-mock"

const offlinePreviewLimit = 120

// OfflineAdapter produces clearly marked placeholder responses so the whole
// pipeline stays exercisable without live provider credentials.
type OfflineAdapter struct{}

// NewOfflineAdapter returns the offline placeholder adapter.
func NewOfflineAdapter() *OfflineAdapter { return &OfflineAdapter{} }

// Model implements Adapter.
func (a *OfflineAdapter) Model() string { return OfflineModel }

// Complete implements Adapter. It never fails.
func (a *OfflineAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preview := req.Prompt
	if runes := []rune(preview); len(runes) > offlinePreviewLimit {
		preview = string(runes[:offlinePreviewLimit]) + "..."
	}

	text := fmt.Sprintf(
		"[offline mock response] No language model provider is configured. Received prompt: %q",
		preview,
	)

	return &Completion{
		Text:         text,
		TokensUsed:   EstimateTokens(req.SystemPrompt + req.Prompt + text),
		FinishReason: "stop",
	}, nil
}
