// Package vectorindex manages the per-document embedding index lifecycle.
//
// Each document gets its own persisted chromem-go collection keyed by the
// document id. The index moves through an explicit state machine
// (unbuilt -> building -> ready, with stale marking on content change) and a
// generation counter; a failed build always reverts to unbuilt so callers can
// retry ingestion. Rebuilds are serialized per document id, so a concurrent
// query sees either the previous generation or the new one, never a torn
// index.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/embeddings"
)

var tracer = otel.Tracer("studyrag.vectorindex")

// Sentinel errors for index operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid index configuration")

	// ErrNotBuilt is returned when querying a document with no ready index.
	ErrNotBuilt = errors.New("index not built for document")

	// ErrNoChunks indicates a build request without chunks.
	ErrNoChunks = errors.New("no chunks to index")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// State is the lifecycle state of one document's index.
type State string

const (
	// StateUnbuilt means no usable index exists.
	StateUnbuilt State = "unbuilt"
	// StateBuilding means a build is in progress.
	StateBuilding State = "building"
	// StateReady means the index is current and queryable.
	StateReady State = "ready"
	// StateStale means the index is queryable but the document changed since
	// it was built.
	StateStale State = "stale"
)

// Config holds configuration for the index.
type Config struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/studyrag/vectorindex" expanded by the config layer.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	return nil
}

// Chunk is the unit handed to Build.
type Chunk struct {
	ID      string
	Ordinal int
	Text    string
}

// Result is one scored hit from a query. Results are transient and never
// persisted.
type Result struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Content    string
	Score      float32
}

// Index builds, loads and queries per-document vector collections.
type Index struct {
	db       *chromem.DB
	embedder embeddings.Provider
	logger   *zap.Logger

	mu      sync.Mutex
	handles map[string]*handle
}

// handle tracks one document's index state. Its mutex is the per-document
// locking granularity for builds.
type handle struct {
	mu         sync.Mutex
	state      State
	generation uint64
}

// New creates an Index persisting under cfg.Path.
func New(cfg Config, embedder embeddings.Provider, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("vector index initialized",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
		zap.String("embedding_model", embedder.ModelVersion()),
	)

	return &Index{
		db:       db,
		embedder: embedder,
		logger:   logger,
		handles:  make(map[string]*handle),
	}, nil
}

func (x *Index) handleFor(documentID string) *handle {
	x.mu.Lock()
	defer x.mu.Unlock()
	h, ok := x.handles[documentID]
	if !ok {
		h = &handle{state: StateUnbuilt}
		x.handles[documentID] = h
	}
	return h
}

func collectionName(documentID string) string {
	return "doc_" + documentID
}

// embeddingFunc adapts the provider for chromem's query-time embedding hook.
// Build supplies precomputed vectors, so this only runs for queries chromem
// issues itself.
func (x *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return x.embedder.EmbedQuery(ctx, text)
	}
}

// State reports the lifecycle state for a document.
func (x *Index) State(documentID string) State {
	h := x.handleFor(documentID)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Generation reports the build generation for a document. Zero means the
// document has never been built in this process.
func (x *Index) Generation(documentID string) uint64 {
	h := x.handleFor(documentID)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

// MarkStale flags a ready index as stale after its document content changed.
// Unbuilt and building states are left untouched.
func (x *Index) MarkStale(documentID string) {
	h := x.handleFor(documentID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateReady {
		h.state = StateStale
	}
}

// Build computes embeddings for all chunks and replaces the document's
// collection with a new generation. On any failure the state reverts to
// unbuilt and the partial collection is dropped.
func (x *Index) Build(ctx context.Context, documentID string, chunks []Chunk) error {
	ctx, span := tracer.Start(ctx, "Index.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", documentID),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return ErrNoChunks
	}

	h := x.handleFor(documentID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = StateBuilding

	err := x.build(ctx, documentID, chunks)
	if err != nil {
		h.state = StateUnbuilt
		// Drop whatever half-written state exists; a later build recreates it.
		_ = x.db.DeleteCollection(collectionName(documentID))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		x.logger.Error("index build failed",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		return err
	}

	h.state = StateReady
	h.generation++
	span.SetAttributes(attribute.Int64("generation", int64(h.generation)))
	span.SetStatus(codes.Ok, "success")

	x.logger.Info("index built",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
		zap.Uint64("generation", h.generation),
	)
	return nil
}

func (x *Index) build(ctx context.Context, documentID string, chunks []Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := x.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingFailed, len(vectors), len(chunks))
	}

	name := collectionName(documentID)

	// Replace, never merge: the old generation is dropped before the new one
	// is written.
	_ = x.db.DeleteCollection(name)

	collection, err := x.db.GetOrCreateCollection(name, map[string]string{
		"document_id":     documentID,
		"embedding_model": x.embedder.ModelVersion(),
	}, x.embeddingFunc())
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				"document_id": documentID,
				"ordinal":     strconv.Itoa(c.Ordinal),
			},
		}
	}

	// Concurrency of 1: embeddings are precomputed, nothing to parallelize.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Load restores a previously persisted index without recomputation. It
// returns true when a usable collection exists; it never fabricates one.
func (x *Index) Load(ctx context.Context, documentID string) (bool, error) {
	_, span := tracer.Start(ctx, "Index.Load")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	h := x.handleFor(documentID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateReady || h.state == StateStale {
		return true, nil
	}

	collection := x.db.GetCollection(collectionName(documentID), x.embeddingFunc())
	if collection == nil || collection.Count() == 0 {
		return false, nil
	}

	h.state = StateReady
	if h.generation == 0 {
		h.generation = 1
	}
	x.logger.Debug("index loaded from disk",
		zap.String("document_id", documentID),
		zap.Int("chunks", collection.Count()),
	)
	return true, nil
}

// Query returns the k nearest chunks for the query text, descending by
// similarity with ties broken by ascending chunk ordinal.
func (x *Index) Query(ctx context.Context, documentID, query string, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Index.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", documentID),
		attribute.Int("k", k),
	)

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection := x.db.GetCollection(collectionName(documentID), x.embeddingFunc())
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrNotBuilt
	}

	count := collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if k > count {
		k = count
	}

	queryVec, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	hits, err := collection.QueryEmbedding(ctx, queryVec, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		ordinal, _ := strconv.Atoi(hit.Metadata["ordinal"])
		results[i] = Result{
			ChunkID:    hit.ID,
			DocumentID: documentID,
			Ordinal:    ordinal,
			Content:    hit.Content,
			Score:      hit.Similarity,
		}
	}

	// chromem sorts by similarity but leaves tie order unspecified; pin it to
	// chunk ordinal so rankings are reproducible.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Drop removes a document's collection and resets its state to unbuilt.
func (x *Index) Drop(ctx context.Context, documentID string) error {
	_, span := tracer.Start(ctx, "Index.Drop")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	h := x.handleFor(documentID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := x.db.DeleteCollection(collectionName(documentID)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection: %w", err)
	}
	h.state = StateUnbuilt
	return nil
}
