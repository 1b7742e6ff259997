package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognolabs/studyrag/internal/chunker"
	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/embeddings"
	"github.com/cognolabs/studyrag/internal/llm"
	"github.com/cognolabs/studyrag/internal/prompt"
	"github.com/cognolabs/studyrag/internal/quiz"
	"github.com/cognolabs/studyrag/internal/rag"
	"github.com/cognolabs/studyrag/internal/store"
	"github.com/cognolabs/studyrag/internal/vectorindex"
)

// scriptedAdapter returns queued completions in order, recording every
// request it sees.
type scriptedAdapter struct {
	responses []string
	requests  []llm.Request
}

func (s *scriptedAdapter) Model() string { return "scripted" }

func (s *scriptedAdapter) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	s.requests = append(s.requests, req)
	if len(s.requests) > len(s.responses) {
		return &llm.Completion{Text: "no scripted response left", FinishReason: "stop"}, nil
	}
	text := s.responses[len(s.requests)-1]
	return &llm.Completion{Text: text, TokensUsed: 10, FinishReason: "stop"}, nil
}

// flakyEmbedder embeds normally until failQueries is set, from which point
// every query embedding fails.
type flakyEmbedder struct {
	embeddings.Provider
	failQueries bool
}

func (f *flakyEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.failQueries {
		return nil, errors.New("embedding endpoint unreachable")
	}
	return f.Provider.EmbedQuery(ctx, text)
}

type fixture struct {
	store  *store.Store
	engine *rag.Engine
}

func newFixture(t *testing.T, adapter llm.Adapter) *fixture {
	t.Helper()
	provider, err := embeddings.NewProvider(embeddings.Config{Provider: "local"})
	require.NoError(t, err)
	return newFixtureWithEmbedder(t, adapter, provider)
}

func newFixtureWithEmbedder(t *testing.T, adapter llm.Adapter, provider embeddings.Provider) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	index, err := vectorindex.New(vectorindex.Config{Path: dir + "/index"}, provider, nil)
	require.NoError(t, err)

	ck, err := chunker.New(chunker.Config{Size: 200, Overlap: 20})
	require.NoError(t, err)

	var gateway *llm.Gateway
	if adapter != nil {
		gateway = llm.NewGatewayWithAdapter(adapter, llm.Config{}, st, nil)
	} else {
		gateway = llm.NewGateway(context.Background(), llm.Config{}, st, st, nil)
	}

	engine := rag.NewEngine(
		st,
		ck,
		index,
		gateway,
		prompt.NewEngine(st, nil),
		quiz.NewProcessor(st, nil),
		nil,
		rag.Options{},
	)
	return &fixture{store: st, engine: engine}
}

func saveDocument(t *testing.T, f *fixture, title, content string) *domain.Document {
	t.Helper()
	doc := &domain.Document{Title: title, Content: content}
	require.NoError(t, f.store.SaveDocument(context.Background(), doc))
	return doc
}

func TestIngestAndQueryEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := saveDocument(t, f, "Capitals", "Paris is the capital of France.")

	ingested, err := f.engine.Ingest(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.True(t, ingested)

	result, err := f.engine.Query(ctx, doc.ID, "What is the capital of France?", 1)
	require.NoError(t, err)
	assert.True(t, result.Grounded)
	assert.NotEmpty(t, result.Text)
	require.Len(t, result.Sources, 1)
	assert.Contains(t, result.Sources[0].Preview, "Paris")
	assert.Equal(t, doc.ID, result.Sources[0].DocumentID)
	assert.NotEmpty(t, result.Sources[0].ChunkID)
}

func TestQueryOfflineModeNeverRaises(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := saveDocument(t, f, "Capitals", "Paris is the capital of France.")
	_, err := f.engine.Ingest(ctx, doc.ID, false)
	require.NoError(t, err)

	result, err := f.engine.Query(ctx, doc.ID, "What is the capital of France?", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Text)
	assert.Equal(t, llm.OfflineModel, result.Model)
	assert.Empty(t, result.Err)
}

func TestQueryIngestsUnprocessedDocumentOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := saveDocument(t, f, "Capitals", "Paris is the capital of France.")

	result, err := f.engine.Query(ctx, doc.ID, "capital of France", 1)
	require.NoError(t, err)
	assert.True(t, result.Grounded)
	require.NotEmpty(t, result.Sources)

	stored, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
}

func TestQueryWithoutDocumentIsUngrounded(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.engine.Query(context.Background(), "", "What is recursion?", 3)
	require.NoError(t, err)
	assert.False(t, result.Grounded)
	assert.Empty(t, result.Sources)
	assert.NotEmpty(t, result.Text)
}

func TestQueryUngroundedStillRendersChatTemplate(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{"Recursion is a function calling itself."}}
	f := newFixture(t, adapter)

	result, err := f.engine.Query(context.Background(), "", "What is recursion?", 3)
	require.NoError(t, err)
	assert.False(t, result.Grounded)

	require.Len(t, adapter.requests, 1)
	sent := adapter.requests[0].Prompt
	assert.Contains(t, sent, "Reference material:")
	assert.Contains(t, sent, prompt.NoContextReference)
	assert.Contains(t, sent, "What is recursion?")
}

func TestQueryEmbedderFailureFallsBackToUngrounded(t *testing.T) {
	base, err := embeddings.NewProvider(embeddings.Config{Provider: "local"})
	require.NoError(t, err)
	emb := &flakyEmbedder{Provider: base}
	f := newFixtureWithEmbedder(t, nil, emb)
	ctx := context.Background()

	doc := saveDocument(t, f, "Capitals", "Paris is the capital of France.")
	_, err = f.engine.Ingest(ctx, doc.ID, false)
	require.NoError(t, err)

	emb.failQueries = true

	result, err := f.engine.Query(ctx, doc.ID, "What is the capital of France?", 3)
	require.NoError(t, err)
	assert.False(t, result.Grounded)
	assert.Empty(t, result.Sources)
	assert.NotEmpty(t, result.Text)
	assert.Empty(t, result.Err)
}

func TestQueryEmptyDocumentFallsBackToUngrounded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := saveDocument(t, f, "Empty", "   ")

	result, err := f.engine.Query(ctx, doc.ID, "anything in there?", 3)
	require.NoError(t, err)
	assert.False(t, result.Grounded)
	assert.Empty(t, result.Sources)
	assert.NotEmpty(t, result.Text)
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Query(context.Background(), "", "   ", 3)
	assert.ErrorIs(t, err, rag.ErrEmptyQuestion)
}

func TestIngestSkipsProcessedWithoutForce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := saveDocument(t, f, "Capitals", "Paris is the capital of France.")

	first, err := f.engine.Ingest(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := f.engine.Ingest(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.False(t, second)

	forced, err := f.engine.Ingest(ctx, doc.ID, true)
	require.NoError(t, err)
	assert.True(t, forced)
}

func TestIngestEmptyDocumentFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := saveDocument(t, f, "Empty", "")

	_, err := f.engine.Ingest(ctx, doc.ID, false)
	assert.ErrorIs(t, err, rag.ErrEmptyDocument)
}

const quizJSON = "```json\n" + `[
  {"content": "What is the capital of France?", "type": "MC",
   "options": ["Paris", "London", "Berlin", "Madrid"],
   "correct_answer": "A", "explanation": "Paris.", "knowledge_points": ["geography"]},
  {"content": "France borders Spain.", "type": "TF", "correct_answer": "true",
   "explanation": "They share the Pyrenees."}
]` + "\n```"

func TestGenerateQuizFromDocument(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{quizJSON}}
	f := newFixture(t, adapter)
	ctx := context.Background()

	doc := saveDocument(t, f, "France", "France is a country in Europe. Its capital is Paris.")

	result, err := f.engine.GenerateQuiz(ctx, rag.QuizRequest{DocumentID: doc.ID, Count: 2})
	require.NoError(t, err)
	require.Nil(t, result.ParseErr)
	require.NotNil(t, result.Quiz)

	assert.Equal(t, doc.ID, result.Quiz.DocumentID)
	assert.Equal(t, "Generated 2 questions (0 skipped).", result.Text)
	assert.Equal(t, 2, result.Quiz.TotalQuestions)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Questions, 2)
	assert.Equal(t, domain.SingleChoice, result.Questions[0].Type)
	assert.Equal(t, "A", result.Questions[0].CorrectAnswer.Token)

	persisted, err := f.store.ListQuestions(ctx, result.Quiz.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestGenerateQuizTopicMode(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{quizJSON}}
	f := newFixture(t, adapter)

	result, err := f.engine.GenerateQuiz(context.Background(), rag.QuizRequest{Topic: "European geography"})
	require.NoError(t, err)
	require.NotNil(t, result.Quiz)
	assert.Empty(t, result.Quiz.DocumentID)
	assert.Equal(t, "European geography", result.Quiz.Topic)
}

func TestGenerateQuizUnparsableOutput(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{"I cannot write quizzes today."}}
	f := newFixture(t, adapter)

	result, err := f.engine.GenerateQuiz(context.Background(), rag.QuizRequest{Topic: "anything"})
	require.NoError(t, err)
	assert.Nil(t, result.Quiz)
	assert.NotEmpty(t, result.Text)
	require.NotNil(t, result.ParseErr)
	assert.Equal(t, "I cannot write quizzes today.", result.ParseErr.RawText)
}

func TestGenerateQuizFromConversation(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		`{"topic": "photosynthesis", "constraints": "focus on light reactions",
		  "suggested_question_types": ["MC"], "suggested_difficulty": "easy"}`,
		quizJSON,
	}}
	f := newFixture(t, adapter)

	result, err := f.engine.GenerateQuizFromConversation(context.Background(),
		"Quiz me on photosynthesis, easy questions about the light reactions please",
		rag.QuizRequest{})
	require.NoError(t, err)
	require.NotNil(t, result.Quiz)
	assert.Equal(t, "photosynthesis", result.Quiz.Topic)
	assert.Equal(t, domain.Easy, result.Quiz.Difficulty)
}

func TestExtractConstraintsDegradesToGenericTopic(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{"not json at all"}}
	f := newFixture(t, adapter)

	extracted := f.engine.ExtractConstraints(context.Background(), "make me a quiz")
	assert.Equal(t, "general knowledge", extracted.Topic)
}

func TestSummarizeEchoesConfig(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := saveDocument(t, f, "France", "France is a country in Western Europe.")

	result, err := f.engine.Summarize(ctx, doc.ID, "short", true)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Text)
	assert.Equal(t, doc.ID, result.Config.DocumentID)
	assert.Equal(t, "short", result.Config.LengthClass)
	assert.True(t, result.Config.Outline)
}

func TestExplainRequiresQuestion(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Explain(context.Background(), rag.ExplainRequest{})
	assert.ErrorIs(t, err, rag.ErrEmptyQuestion)

	result, err := f.engine.Explain(context.Background(), rag.ExplainRequest{
		Question:      "What is the capital of France?",
		WrongAnswer:   "London",
		CorrectAnswer: "Paris",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Text)
}
