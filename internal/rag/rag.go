// Package rag orchestrates the retrieval-augmented generation pipeline:
// ingestion, grounded question answering, quiz generation, summaries and
// explanations. Expected failures (missing context, provider unavailability,
// malformed model output) surface as result fields; Go errors are reserved
// for caller contract violations and storage faults the host must see.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/chunker"
	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/llm"
	"github.com/cognolabs/studyrag/internal/prompt"
	"github.com/cognolabs/studyrag/internal/quiz"
	"github.com/cognolabs/studyrag/internal/store"
	"github.com/cognolabs/studyrag/internal/vectorindex"
)

var tracer = otel.Tracer("studyrag.rag")

// ErrEmptyQuestion indicates a query call without a question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// ErrEmptyDocument indicates an ingest call on a document with no content.
var ErrEmptyDocument = errors.New("document has no content to ingest")

// previewLimit bounds provenance previews, in runes.
const previewLimit = 200

// defaultTopK is the retrieval depth when the caller passes zero.
const defaultTopK = 3

// System prompts for the two synthesis modes. The grounded variant demands
// source fidelity, the ungrounded one demands disclosure.
const (
	groundedSystemPrompt = "You are a rigorous study assistant. Answer strictly from the provided reference material, cite it to support your answer, and say clearly when the material is insufficient."

	ungroundedSystemPrompt = "You are a helpful study assistant. No reference material is available for this question, so answer from general knowledge and state explicitly that the answer is not based on the user's documents."
)

// Store is the persistence surface the engine consumes.
type Store interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	SetDocumentProcessed(ctx context.Context, id string, processed bool) error
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)
}

// SourceRef is one provenance entry: the chunk that contributed to an
// answer, with a truncated preview. Attached to every grounded response
// whether or not the model text cites it.
type SourceRef struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Preview    string  `json:"preview"`
	Score      float32 `json:"score"`
}

// AnswerResult is the outcome of one question-answering call.
type AnswerResult struct {
	Text     string      `json:"text"`
	Model    string      `json:"model"`
	Grounded bool        `json:"grounded"`
	Sources  []SourceRef `json:"sources,omitempty"`
	Err      string      `json:"error,omitempty"`
	TaskID   string      `json:"task_id,omitempty"`
}

// Engine coordinates the pipeline components.
type Engine struct {
	store    Store
	chunker  *chunker.Chunker
	index    *vectorindex.Index
	gateway  *llm.Gateway
	prompts  *prompt.Engine
	quizzes  *quiz.Processor
	logger   *zap.Logger
	maxChars int
}

// Options tunes engine behavior.
type Options struct {
	// MaxPromptChars caps how much document text is inlined into a single
	// prompt before truncation. Default: 8000 runes.
	MaxPromptChars int
}

// NewEngine wires the pipeline. All components are required except the
// logger, which defaults to a no-op.
func NewEngine(
	st Store,
	ck *chunker.Chunker,
	index *vectorindex.Index,
	gateway *llm.Gateway,
	prompts *prompt.Engine,
	quizzes *quiz.Processor,
	logger *zap.Logger,
	opts Options,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPromptChars == 0 {
		opts.MaxPromptChars = 8000
	}
	return &Engine{
		store:    st,
		chunker:  ck,
		index:    index,
		gateway:  gateway,
		prompts:  prompts,
		quizzes:  quizzes,
		logger:   logger,
		maxChars: opts.MaxPromptChars,
	}
}

// Ingest chunks a document, replaces its stored chunks, and builds its
// vector index. Returns false without work when the document is already
// processed and force is unset. A build failure marks the document
// unprocessed before the error is returned.
func (e *Engine) Ingest(ctx context.Context, documentID string, force bool) (bool, error) {
	ctx, span := tracer.Start(ctx, "Engine.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID), attribute.Bool("force", force))

	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("failed to load document: %w", err)
	}

	if doc.IsProcessed && !force {
		loaded, err := e.index.Load(ctx, documentID)
		if err != nil {
			return false, fmt.Errorf("failed to load index: %w", err)
		}
		if loaded {
			return false, nil
		}
		// Processed flag without a persisted index; rebuild below.
		e.logger.Warn("processed document has no persisted index, rebuilding",
			zap.String("document_id", documentID),
		)
	}

	if strings.TrimSpace(doc.Content) == "" {
		return false, fmt.Errorf("%w: %s", ErrEmptyDocument, documentID)
	}

	pieces := e.chunker.Split(doc.Content)
	if len(pieces) == 0 {
		return false, fmt.Errorf("%w: %s", ErrEmptyDocument, documentID)
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{
			DocumentID: documentID,
			Ordinal:    p.Index,
			Content:    p.Text,
			StartChar:  p.Start,
			EndChar:    p.End,
		}
	}
	// The old index no longer matches the content we are about to store.
	e.index.MarkStale(documentID)

	if err := e.store.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return false, fmt.Errorf("failed to replace chunks: %w", err)
	}

	stored, err := e.store.ListChunks(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("failed to list chunks: %w", err)
	}
	indexChunks := make([]vectorindex.Chunk, len(stored))
	for i, c := range stored {
		indexChunks[i] = vectorindex.Chunk{ID: c.ID, Ordinal: c.Ordinal, Text: c.Content}
	}

	if err := e.index.Build(ctx, documentID, indexChunks); err != nil {
		if markErr := e.store.SetDocumentProcessed(ctx, documentID, false); markErr != nil {
			e.logger.Error("failed to mark document unprocessed after build failure",
				zap.String("document_id", documentID),
				zap.Error(markErr),
			)
		}
		return false, fmt.Errorf("failed to build index: %w", err)
	}

	if err := e.store.SetDocumentProcessed(ctx, documentID, true); err != nil {
		return false, fmt.Errorf("failed to mark document processed: %w", err)
	}

	e.logger.Info("document ingested",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(indexChunks)),
	)
	return true, nil
}

// Query answers a question, grounded in a document's chunks when documentID
// is non-empty and retrievable context exists, ungrounded otherwise.
func (e *Engine) Query(ctx context.Context, documentID, question string, topK int) (*AnswerResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Query")
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	span.SetAttributes(attribute.String("document_id", documentID), attribute.Int("top_k", topK))

	var sources []SourceRef
	var contextTexts []string
	if documentID != "" {
		retrieved, err := e.retrieve(ctx, documentID, question, topK)
		if err != nil {
			return nil, err
		}
		for _, r := range retrieved {
			sources = append(sources, SourceRef{
				ChunkID:    r.ID,
				DocumentID: r.DocumentID,
				Ordinal:    r.Ordinal,
				Preview:    truncate(r.Content, previewLimit),
				Score:      r.Score,
			})
			contextTexts = append(contextTexts, r.Content)
		}
	}

	// Both modes render the chat template so stored customizations apply;
	// the ungrounded mode substitutes a placeholder for the reference text.
	referenceText := prompt.NoContextReference
	systemPrompt := ungroundedSystemPrompt
	if len(contextTexts) > 0 {
		referenceText = prompt.JoinContext(contextTexts)
		systemPrompt = groundedSystemPrompt
	}
	promptText := e.prompts.RenderByType(ctx, prompt.TypeGroundedChat, "", map[string]string{
		"reference_text": referenceText,
		"query":          question,
	})

	resp := e.gateway.Generate(ctx, llm.Request{
		Prompt:       promptText,
		SystemPrompt: systemPrompt,
		TaskType:     domain.TaskChat,
	})

	return &AnswerResult{
		Text:     resp.Text,
		Model:    resp.Model,
		Grounded: len(contextTexts) > 0,
		Sources:  sources,
		Err:      resp.Err,
		TaskID:   resp.TaskID,
	}, nil
}

// retrieve resolves a question to full chunk records. When the index is
// uninitialized for an unprocessed document it triggers ingestion once and
// retries. Retrieval is best effort: a still-uninitialized index, a failing
// embedder or a failing index query all yield an empty set, not an error, so
// the answer degrades to ungrounded.
func (e *Engine) retrieve(ctx context.Context, documentID, question string, topK int) ([]domain.RetrievedChunk, error) {
	results, err := e.index.Query(ctx, documentID, question, topK)
	if errors.Is(err, vectorindex.ErrNotBuilt) {
		loaded, loadErr := e.index.Load(ctx, documentID)
		if loadErr != nil {
			return nil, fmt.Errorf("failed to load index: %w", loadErr)
		}
		if !loaded {
			if ingested, ingestErr := e.ingestOnce(ctx, documentID); ingestErr != nil || !ingested {
				if ingestErr != nil {
					e.logger.Warn("on-demand ingestion failed, answering without context",
						zap.String("document_id", documentID),
						zap.Error(ingestErr),
					)
				}
				return nil, nil
			}
		}
		results, err = e.index.Query(ctx, documentID, question, topK)
		if errors.Is(err, vectorindex.ErrNotBuilt) {
			return nil, nil
		}
	}
	if err != nil {
		e.logger.Warn("retrieval failed, answering without context",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		return nil, nil
	}

	retrieved := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		chunk, err := e.store.GetChunk(ctx, r.ChunkID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Index and store drifted; skip the orphan hit.
				e.logger.Warn("retrieved chunk missing from store",
					zap.String("chunk_id", r.ChunkID),
				)
				continue
			}
			return nil, fmt.Errorf("failed to resolve chunk: %w", err)
		}
		retrieved = append(retrieved, domain.RetrievedChunk{Chunk: *chunk, Score: r.Score})
	}
	return retrieved, nil
}

// ingestOnce attempts ingestion for an unprocessed document. Already
// processed documents are left alone.
func (e *Engine) ingestOnce(ctx context.Context, documentID string) (bool, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	if doc.IsProcessed {
		return false, nil
	}
	return e.Ingest(ctx, documentID, false)
}

// truncate limits s to n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
