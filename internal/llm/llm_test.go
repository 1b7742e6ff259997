package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/llm"
)

type stubAdapter struct {
	model      string
	completion *llm.Completion
	err        error
	gotReq     llm.Request
}

func (s *stubAdapter) Model() string { return s.model }

func (s *stubAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	s.gotReq = req
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.completion, nil
}

type recordingTaskLog struct {
	beginErr error
	begun    []*domain.GenerationTask
	finished []*domain.GenerationTask
}

func (r *recordingTaskLog) BeginTask(_ context.Context, task *domain.GenerationTask) error {
	if r.beginErr != nil {
		return r.beginErr
	}
	task.ID = uuid.NewString()
	r.begun = append(r.begun, task)
	return nil
}

func (r *recordingTaskLog) FinishTask(_ context.Context, task *domain.GenerationTask) error {
	r.finished = append(r.finished, task)
	return nil
}

type stubModelSource struct {
	byID       map[string]*domain.ModelConfig
	byProvider map[string]*domain.ModelConfig
	def        *domain.ModelConfig
}

func (s *stubModelSource) GetModelConfig(_ context.Context, id string) (*domain.ModelConfig, error) {
	if mc, ok := s.byID[id]; ok {
		return mc, nil
	}
	return nil, errors.New("model config not found")
}

func (s *stubModelSource) GetDefaultModelForProvider(_ context.Context, provider string) (*domain.ModelConfig, error) {
	if mc, ok := s.byProvider[provider]; ok {
		return mc, nil
	}
	return nil, errors.New("no default for provider")
}

func (s *stubModelSource) GetDefaultModel(_ context.Context) (*domain.ModelConfig, error) {
	if s.def != nil {
		return s.def, nil
	}
	return nil, errors.New("no default model")
}

func TestGenerateSuccess(t *testing.T) {
	adapter := &stubAdapter{
		model: "test-model",
		completion: &llm.Completion{
			Text:         "Paris is the capital of France.",
			TokensUsed:   42,
			FinishReason: "stop",
		},
	}
	tasks := &recordingTaskLog{}
	gw := llm.NewGatewayWithAdapter(adapter, llm.Config{}, tasks, nil)

	resp := gw.Generate(context.Background(), llm.Request{
		Prompt:   "What is the capital of France?",
		TaskType: domain.TaskChat,
	})

	require.NotNil(t, resp)
	assert.False(t, resp.Degraded())
	assert.Equal(t, "Paris is the capital of France.", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "test-model", resp.Model)
	assert.NotEmpty(t, resp.TaskID)

	require.Len(t, tasks.begun, 1)
	require.Len(t, tasks.finished, 1)
	task := tasks.finished[0]
	assert.Equal(t, domain.TaskCompleted, task.Status)
	assert.Equal(t, 42, task.TokensUsed)
	assert.Equal(t, "Paris is the capital of France.", task.Output["text"])
	assert.Equal(t, resp.TaskID, task.ID)
}

func TestGenerateProviderFailureDegrades(t *testing.T) {
	adapter := &stubAdapter{
		model: "flaky-model",
		err:   errors.New("upstream timeout"),
	}
	tasks := &recordingTaskLog{}
	gw := llm.NewGatewayWithAdapter(adapter, llm.Config{}, tasks, nil)

	resp := gw.Generate(context.Background(), llm.Request{Prompt: "hello"})

	require.NotNil(t, resp)
	assert.True(t, resp.Degraded())
	assert.Equal(t, "upstream timeout", resp.Err)
	assert.Contains(t, resp.Text, "flaky-model")
	assert.Contains(t, resp.Text, "temporarily unavailable")

	require.Len(t, tasks.finished, 1)
	task := tasks.finished[0]
	assert.Equal(t, domain.TaskFailed, task.Status)
	assert.Equal(t, "upstream timeout", task.Error)
}

func TestGenerateCancelledContextFinalizesTask(t *testing.T) {
	adapter := &stubAdapter{model: "test-model", completion: &llm.Completion{Text: "unused"}}
	tasks := &recordingTaskLog{}
	gw := llm.NewGatewayWithAdapter(adapter, llm.Config{}, tasks, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := gw.Generate(ctx, llm.Request{Prompt: "hello"})

	require.NotNil(t, resp)
	assert.True(t, resp.Degraded())

	require.Len(t, tasks.finished, 1)
	assert.Equal(t, domain.TaskFailed, tasks.finished[0].Status)
	assert.NotEmpty(t, tasks.finished[0].Error)
}

func TestGenerateSurvivesBrokenTaskLog(t *testing.T) {
	adapter := &stubAdapter{
		model:      "test-model",
		completion: &llm.Completion{Text: "still works", TokensUsed: 3},
	}
	tasks := &recordingTaskLog{beginErr: errors.New("table missing")}
	gw := llm.NewGatewayWithAdapter(adapter, llm.Config{}, tasks, nil)

	resp := gw.Generate(context.Background(), llm.Request{Prompt: "hello"})

	assert.False(t, resp.Degraded())
	assert.Equal(t, "still works", resp.Text)
	assert.Empty(t, resp.TaskID)
	assert.Empty(t, tasks.finished)
}

func TestGenerateTemperatureDefaulting(t *testing.T) {
	tests := []struct {
		name string
		req  *float64
		want float64
	}{
		{name: "unset uses config default", req: nil, want: 0.7},
		{name: "explicit zero stays zero", req: llm.Temp(0), want: 0},
		{name: "explicit value passes through", req: llm.Temp(0.2), want: 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &stubAdapter{model: "test-model", completion: &llm.Completion{Text: "ok"}}
			gw := llm.NewGatewayWithAdapter(adapter, llm.Config{}, nil, nil)

			resp := gw.Generate(context.Background(), llm.Request{
				Prompt:      "hello",
				Temperature: tt.req,
			})

			assert.False(t, resp.Degraded())
			require.NotNil(t, adapter.gotReq.Temperature)
			assert.Equal(t, tt.want, *adapter.gotReq.Temperature)
		})
	}
}

func TestGenerateEstimatesTokensWhenProviderReportsNone(t *testing.T) {
	adapter := &stubAdapter{
		model:      "test-model",
		completion: &llm.Completion{Text: "four words of output"},
	}
	gw := llm.NewGatewayWithAdapter(adapter, llm.Config{}, nil, nil)

	resp := gw.Generate(context.Background(), llm.Request{Prompt: "two words"})

	assert.False(t, resp.Degraded())
	assert.Greater(t, resp.TokensUsed, 0)
}

func TestResolutionFallsBackToOffline(t *testing.T) {
	tests := []struct {
		name   string
		cfg    llm.Config
		models llm.ModelSource
	}{
		{name: "nil model source", cfg: llm.Config{}, models: nil},
		{name: "empty model source", cfg: llm.Config{}, models: &stubModelSource{}},
		{
			name:   "unknown explicit model",
			cfg:    llm.Config{ModelID: "nope"},
			models: &stubModelSource{},
		},
		{
			name:   "unknown provider name",
			cfg:    llm.Config{Provider: "acme"},
			models: &stubModelSource{},
		},
		{
			name: "provider default with unknown provider kind",
			cfg:  llm.Config{Provider: "acme"},
			models: &stubModelSource{byProvider: map[string]*domain.ModelConfig{
				"acme": {Provider: "acme", ModelID: "acme-1"},
			}},
		},
		{
			name: "gemini config missing api key",
			cfg:  llm.Config{ModelID: "gem"},
			models: &stubModelSource{byID: map[string]*domain.ModelConfig{
				"gem": {Provider: domain.ProviderGemini, ModelID: "gemini-pro"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llm.NewGateway(context.Background(), tt.cfg, tt.models, nil, nil)
			assert.Equal(t, llm.OfflineModel, gw.Model())

			resp := gw.Generate(context.Background(), llm.Request{Prompt: "anything"})
			assert.False(t, resp.Degraded())
			assert.Contains(t, resp.Text, "[offline mock response]")
		})
	}
}

func TestOfflineAdapterEchoesPromptPreview(t *testing.T) {
	adapter := llm.NewOfflineAdapter()

	completion, err := adapter.Complete(context.Background(), llm.Request{Prompt: "explain recursion"})
	require.NoError(t, err)
	assert.Contains(t, completion.Text, "explain recursion")
	assert.Greater(t, completion.TokensUsed, 0)
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "three english words", text: "hello brave world", want: 4},
		{name: "pure cjk", text: "法国的首都", want: 5},
		{name: "mixed", text: "首都 is Paris", want: 2 + 3},
		{name: "punctuation only", text: "?!", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llm.EstimateTokens(tt.text))
		})
	}
}

func TestEstimateTokensDeterministic(t *testing.T) {
	text := "Photosynthesis converts light energy into chemical energy. 光合作用"
	first := llm.EstimateTokens(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, llm.EstimateTokens(text))
	}
}
