package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{Title: "Geography", Content: "Paris is the capital of France."}
	require.NoError(t, s.SaveDocument(ctx, doc))
	require.NotEmpty(t, doc.ID)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Geography", got.Title)
	assert.False(t, got.IsProcessed)
	assert.Equal(t, 1, got.ContentVersion)

	require.NoError(t, s.SetDocumentProcessed(ctx, doc.ID, true))
	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed)
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplaceChunksIsDeleteThenInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{Title: "doc"}
	require.NoError(t, s.SaveDocument(ctx, doc))

	first := []domain.Chunk{
		{Ordinal: 0, Content: "one", StartChar: 0, EndChar: 3},
		{Ordinal: 1, Content: "two", StartChar: 3, EndChar: 6},
		{Ordinal: 2, Content: "three", StartChar: 6, EndChar: 11},
	}
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, first))

	second := []domain.Chunk{
		{Ordinal: 0, Content: "replaced", StartChar: 0, EndChar: 8},
	}
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, second))

	chunks, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "old chunks must be gone, never merged")
	assert.Equal(t, "replaced", chunks[0].Content)
	assert.Equal(t, doc.ID, chunks[0].DocumentID)

	got, err := s.GetChunk(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, chunks[0], *got)
}

func TestDeleteDocumentCascadesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{Title: "doc"}
	require.NoError(t, s.SaveDocument(ctx, doc))
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, []domain.Chunk{{Ordinal: 0, Content: "c"}}))
	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	chunks, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestQuizAndQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	quiz := &domain.Quiz{Title: "Topic quiz", Topic: "rivers", Difficulty: domain.Medium, TotalQuestions: 2}
	require.NoError(t, s.CreateQuiz(ctx, quiz))

	q1 := &domain.Question{
		QuizID:          quiz.ID,
		Content:         "Which river is longest?",
		Type:            domain.SingleChoice,
		Options:         []string{"Nile", "Amazon", "Danube", "Rhine"},
		CorrectAnswer:   domain.Answer{Token: "A"},
		KnowledgePoints: []string{"rivers"},
		Difficulty:      domain.Medium,
		Ordinal:         1,
	}
	q2 := &domain.Question{
		QuizID:        quiz.ID,
		Content:       "Select the rivers in Africa.",
		Type:          domain.MultiChoice,
		Options:       []string{"Nile", "Amazon", "Congo", "Volga"},
		CorrectAnswer: domain.Answer{Tokens: []string{"A", "C"}},
		Difficulty:    domain.Hard,
		Ordinal:       2,
	}
	require.NoError(t, s.CreateQuestion(ctx, q1))
	require.NoError(t, s.CreateQuestion(ctx, q2))

	questions, err := s.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, domain.SingleChoice, questions[0].Type)
	assert.Equal(t, "A", questions[0].CorrectAnswer.Token)
	assert.Equal(t, []string{"A", "C"}, questions[1].CorrectAnswer.Tokens)
	assert.Equal(t, []string{"rivers"}, questions[0].KnowledgePoints)
	assert.Nil(t, questions[1].KnowledgePoints)
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &domain.GenerationTask{
		Type:  domain.TaskChat,
		Model: "offline-mock",
		Input: map[string]any{"prompt": "hello"},
	}
	require.NoError(t, s.BeginTask(ctx, task))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskProcessing, got.Status)
	assert.Nil(t, got.CompletedAt)

	task.Status = domain.TaskCompleted
	task.TokensUsed = 42
	task.LatencyMS = 120
	task.Output = map[string]any{"text": "hi"}
	require.NoError(t, s.FinishTask(ctx, task))

	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, got.Status)
	assert.Equal(t, 42, got.TokensUsed)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "hi", got.Output["text"])
}

func TestTemplateSeedingKeepsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	custom := &domain.PromptTemplate{
		Name: "standard", Type: "document_quiz", Content: "operator-edited", IsActive: true,
	}
	require.NoError(t, s.SaveTemplate(ctx, custom))

	require.NoError(t, s.SeedTemplates(ctx, []domain.PromptTemplate{
		{Name: "standard", Type: "document_quiz", Content: "built-in", IsActive: true},
		{Name: "standard", Type: "document_summary", Content: "summary tpl", IsActive: true},
	}))

	got, err := s.GetTemplate(ctx, "document_quiz", "standard")
	require.NoError(t, err)
	assert.Equal(t, "operator-edited", got.Content, "seeding must not clobber operator edits")

	got, err = s.GetTemplate(ctx, "document_summary", "")
	require.NoError(t, err)
	assert.Equal(t, "summary tpl", got.Content)

	_, err = s.GetTemplate(ctx, "missing_type", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestModelConfigResolution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	global := &domain.ModelConfig{Provider: "gemini", ModelID: "gemini-2.5-pro", IsActive: true, IsDefault: true}
	byProvider := &domain.ModelConfig{Provider: "deepseek", ModelID: "deepseek-v3", IsActive: true, IsDefault: true}
	inactive := &domain.ModelConfig{Provider: "qwen", ModelID: "qwen-max", IsActive: false, IsDefault: true}
	require.NoError(t, s.SaveModelConfig(ctx, global))
	require.NoError(t, s.SaveModelConfig(ctx, byProvider))
	require.NoError(t, s.SaveModelConfig(ctx, inactive))

	got, err := s.GetModelConfig(ctx, byProvider.ID)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-v3", got.ModelID)

	got, err = s.GetDefaultModelForProvider(ctx, "deepseek")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-v3", got.ModelID)

	_, err = s.GetDefaultModelForProvider(ctx, "qwen")
	assert.ErrorIs(t, err, store.ErrNotFound, "inactive models never resolve")

	_, err = s.GetModelConfig(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetDefaultModelIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &domain.ModelConfig{Provider: "deepseek", ModelID: "deepseek-chat", IsActive: true, IsDefault: true}
	second := &domain.ModelConfig{Provider: "gemini", ModelID: "gemini-2.5-pro", IsActive: true}
	require.NoError(t, s.SaveModelConfig(ctx, first))
	require.NoError(t, s.SaveModelConfig(ctx, second))

	require.NoError(t, s.SetDefaultModel(ctx, second.ID))

	got, err := s.GetDefaultModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = s.GetDefaultModelForProvider(ctx, "deepseek")
	assert.ErrorIs(t, err, store.ErrNotFound, "previous default must lose the flag")

	err = s.SetDefaultModel(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	configs, err := s.ListModelConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "deepseek-chat", configs[0].ModelID)
	assert.Equal(t, "gemini-2.5-pro", configs[1].ModelID)
}
