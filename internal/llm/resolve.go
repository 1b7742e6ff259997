package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/domain"
)

// ModelSource looks up model configurations. *store.Store satisfies it.
type ModelSource interface {
	GetModelConfig(ctx context.Context, id string) (*domain.ModelConfig, error)
	GetDefaultModelForProvider(ctx context.Context, provider string) (*domain.ModelConfig, error)
	GetDefaultModel(ctx context.Context) (*domain.ModelConfig, error)
}

// resolveAdapter walks the resolution order: explicit model id, then the
// requested provider's default, then the globally marked default. Any miss or
// error, including a missing model table, falls through to the offline
// adapter so the pipeline keeps working without live credentials.
func resolveAdapter(ctx context.Context, cfg Config, models ModelSource, logger *zap.Logger) Adapter {
	if models == nil {
		logger.Info("no model source configured, using offline provider")
		return NewOfflineAdapter()
	}

	if cfg.ModelID != "" {
		mc, err := models.GetModelConfig(ctx, cfg.ModelID)
		if err == nil {
			return adapterFor(ctx, mc, logger)
		}
		logger.Warn("requested model not found, falling back",
			zap.String("model_id", cfg.ModelID),
			zap.Error(err),
		)
	}

	if cfg.Provider != "" {
		mc, err := models.GetDefaultModelForProvider(ctx, cfg.Provider)
		if err == nil {
			return adapterFor(ctx, mc, logger)
		}
		logger.Warn("no default model for provider, falling back",
			zap.String("provider", cfg.Provider),
			zap.Error(err),
		)
	}

	mc, err := models.GetDefaultModel(ctx)
	if err == nil {
		return adapterFor(ctx, mc, logger)
	}
	logger.Info("no usable model configuration, using offline provider", zap.Error(err))
	return NewOfflineAdapter()
}

// adapterFor builds the adapter for one model config. Construction failures
// degrade to the offline adapter rather than aborting.
func adapterFor(ctx context.Context, mc *domain.ModelConfig, logger *zap.Logger) Adapter {
	switch mc.Provider {
	case domain.ProviderGemini:
		adapter, err := NewGoogleAIAdapter(ctx, mc)
		if err != nil {
			logger.Warn("gemini adapter construction failed, using offline provider",
				zap.String("model_id", mc.ModelID),
				zap.Error(err),
			)
			return NewOfflineAdapter()
		}
		return adapter
	case domain.ProviderOpenAI, domain.ProviderDeepSeek, domain.ProviderQwen:
		adapter, err := NewOpenAIAdapter(mc)
		if err != nil {
			logger.Warn("openai-compatible adapter construction failed, using offline provider",
				zap.String("model_id", mc.ModelID),
				zap.String("provider", mc.Provider),
				zap.Error(err),
			)
			return NewOfflineAdapter()
		}
		return adapter
	default:
		logger.Warn("unknown provider, using offline provider",
			zap.String("provider", mc.Provider),
		)
		return NewOfflineAdapter()
	}
}
