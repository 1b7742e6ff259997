// Package llm provides a uniform multi-provider text-generation gateway.
//
// Every call opens a generation task before dispatch and finalizes it after,
// success or failure, so no task is ever left dangling. Provider failures are
// converted into degraded responses carrying an error field and an apologetic
// text; raw provider errors never escape the gateway.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/domain"
)

var tracer = otel.Tracer("studyrag.llm")

// ErrInvalidConfig indicates invalid gateway configuration.
var ErrInvalidConfig = errors.New("invalid llm configuration")

// defaultSystemPrompt is used when a call supplies none.
const defaultSystemPrompt = "You are an experienced teaching assistant. Answer the user's question accurately and helpfully."

// Request is one generation call. Temperature is a pointer so a requested
// temperature of zero is distinguishable from unset.
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
	TaskType     domain.TaskType
}

// Temp returns a pointer to t for Request.Temperature.
func Temp(t float64) *float64 { return &t }

// Response is the uniform result of a generation call. Err is set for
// degraded responses; Text is always non-empty.
type Response struct {
	Text         string `json:"text"`
	TokensUsed   int    `json:"tokens_used"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Err          string `json:"error,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
}

// Degraded reports whether this response came from a failed provider call.
func (r *Response) Degraded() bool { return r.Err != "" }

// Completion is a raw provider result before task accounting.
type Completion struct {
	Text         string
	TokensUsed   int // zero when the provider reports no usage
	FinishReason string
}

// Adapter is one provider's completion client.
type Adapter interface {
	// Complete performs a single completion call.
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Model identifies the model for task logging and responses.
	Model() string
}

// TaskLog records generation tasks. *store.Store satisfies it.
type TaskLog interface {
	BeginTask(ctx context.Context, task *domain.GenerationTask) error
	FinishTask(ctx context.Context, task *domain.GenerationTask) error
}

// Config holds gateway call defaults and provider selection.
type Config struct {
	// ModelID selects an explicit model config row. Takes precedence.
	ModelID string `koanf:"model_id"`

	// Provider selects a provider's default model when ModelID is empty.
	Provider string `koanf:"provider"`

	// MaxTokens is the default token budget per call. Default: 1000.
	MaxTokens int `koanf:"max_tokens"`

	// Temperature is the default sampling temperature. Default: 0.7.
	Temperature float64 `koanf:"temperature"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
}

// Gateway dispatches generation calls to one resolved provider adapter.
type Gateway struct {
	adapter Adapter
	tasks   TaskLog
	logger  *zap.Logger
	config  Config
}

// NewGateway resolves a provider per the configured order (explicit model id,
// then provider default, then global default, then offline) and returns a
// ready gateway. Resolution never fails: every error path lands on the
// offline adapter.
func NewGateway(ctx context.Context, cfg Config, models ModelSource, tasks TaskLog, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	adapter := resolveAdapter(ctx, cfg, models, logger)

	return &Gateway{
		adapter: adapter,
		tasks:   tasks,
		logger:  logger,
		config:  cfg,
	}
}

// NewGatewayWithAdapter wires an explicit adapter, bypassing resolution.
func NewGatewayWithAdapter(adapter Adapter, cfg Config, tasks TaskLog, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Gateway{adapter: adapter, tasks: tasks, logger: logger, config: cfg}
}

// Model returns the resolved model identifier.
func (g *Gateway) Model() string { return g.adapter.Model() }

// Generate performs one completion call with full task accounting.
//
// The returned error is always nil for provider-side failures; those produce
// a degraded Response instead. A cancelled context likewise finalizes the
// task as failed and returns a degraded response.
func (g *Gateway) Generate(ctx context.Context, req Request) *Response {
	ctx, span := tracer.Start(ctx, "Gateway.Generate")
	defer span.End()

	if req.TaskType == "" {
		req.TaskType = domain.TaskChat
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = defaultSystemPrompt
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = g.config.MaxTokens
	}
	if req.Temperature == nil {
		req.Temperature = Temp(g.config.Temperature)
	}

	span.SetAttributes(
		attribute.String("task_type", string(req.TaskType)),
		attribute.String("model", g.adapter.Model()),
		attribute.Int("max_tokens", req.MaxTokens),
	)

	task := &domain.GenerationTask{
		Type:   req.TaskType,
		Model:  g.adapter.Model(),
		Status: domain.TaskProcessing,
		Input: map[string]any{
			"prompt":        req.Prompt,
			"system_prompt": req.SystemPrompt,
			"max_tokens":    req.MaxTokens,
			"temperature":   *req.Temperature,
		},
	}
	logged := g.beginTask(ctx, task)

	start := time.Now()
	completion, err := g.adapter.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("provider call failed",
			zap.String("model", g.adapter.Model()),
			zap.String("task_type", string(req.TaskType)),
			zap.Error(err),
		)

		task.Status = domain.TaskFailed
		task.Error = err.Error()
		task.LatencyMS = elapsed.Milliseconds()
		g.finishTask(task, logged)

		return &Response{
			Text:   fmt.Sprintf("Sorry, the %s model is temporarily unavailable. Please try again later.", g.adapter.Model()),
			Model:  g.adapter.Model(),
			Err:    err.Error(),
			TaskID: task.ID,
		}
	}

	tokens := completion.TokensUsed
	if tokens == 0 {
		// Provider reported no usage; fall back to the deterministic heuristic.
		tokens = EstimateTokens(req.SystemPrompt + req.Prompt + completion.Text)
	}

	task.Status = domain.TaskCompleted
	task.TokensUsed = tokens
	task.LatencyMS = elapsed.Milliseconds()
	task.Output = map[string]any{
		"text":          completion.Text,
		"finish_reason": completion.FinishReason,
	}
	g.finishTask(task, logged)

	span.SetAttributes(attribute.Int("tokens_used", tokens))
	span.SetStatus(codes.Ok, "success")

	return &Response{
		Text:         completion.Text,
		TokensUsed:   tokens,
		Model:        g.adapter.Model(),
		FinishReason: completion.FinishReason,
		TaskID:       task.ID,
	}
}

// beginTask records the task before dispatch. Task logging is best effort:
// a broken log must not block generation.
func (g *Gateway) beginTask(ctx context.Context, task *domain.GenerationTask) bool {
	if g.tasks == nil {
		return false
	}
	if err := g.tasks.BeginTask(ctx, task); err != nil {
		g.logger.Warn("failed to open generation task", zap.Error(err))
		return false
	}
	return true
}

// finishTask finalizes the task even when the call context was cancelled; a
// background context keeps the record from dangling.
func (g *Gateway) finishTask(task *domain.GenerationTask, logged bool) {
	if g.tasks == nil || !logged {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.tasks.FinishTask(ctx, task); err != nil {
		g.logger.Warn("failed to finalize generation task",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}
}
