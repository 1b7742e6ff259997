package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/chunker"
	"github.com/cognolabs/studyrag/internal/config"
	"github.com/cognolabs/studyrag/internal/embeddings"
	"github.com/cognolabs/studyrag/internal/llm"
	"github.com/cognolabs/studyrag/internal/logging"
	"github.com/cognolabs/studyrag/internal/prompt"
	"github.com/cognolabs/studyrag/internal/quiz"
	"github.com/cognolabs/studyrag/internal/rag"
	"github.com/cognolabs/studyrag/internal/store"
	"github.com/cognolabs/studyrag/internal/vectorindex"
)

// app holds the wired pipeline for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	engine *rag.Engine
}

// newApp loads configuration and wires every pipeline component.
func newApp(ctx context.Context) (*app, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := st.SeedTemplates(ctx, prompt.Builtins()); err != nil {
		// Built-in defaults still apply at render time.
		logger.Warn("failed to seed prompt templates", zap.Error(err))
	}

	embedder, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	index, err := vectorindex.New(cfg.VectorIndex, embedder, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	ck, err := chunker.New(cfg.Chunker)
	if err != nil {
		st.Close()
		return nil, err
	}

	gateway := llm.NewGateway(ctx, cfg.LLM, st, st, logger)
	logger.Info("pipeline ready", zap.String("model", gateway.Model()))

	engine := rag.NewEngine(
		st,
		ck,
		index,
		gateway,
		prompt.NewEngine(st, logger),
		quiz.NewProcessor(st, logger),
		logger,
		rag.Options{},
	)

	return &app{cfg: cfg, logger: logger, store: st, engine: engine}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// printJSON renders a result record to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
