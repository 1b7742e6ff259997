package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// localModelVersion tags vectors produced by the hashing embedder. Bump when
// the tokenization or hashing scheme changes, so persisted indexes rebuild.
const localModelVersion = "local-hash-v1"

// LocalProvider is a deterministic, dependency-free embedder.
//
// It hashes tokens into a fixed-dimension bag-of-words vector and normalizes
// it to unit length. Texts sharing tokens land near each other under cosine
// similarity, which is enough for offline operation and tests. The mapping is
// a pure function of (model version, text).
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local hashing embedder.
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &LocalProvider{dimension: dimension}
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

// Dimension returns the embedding dimension.
func (p *LocalProvider) Dimension() int { return p.dimension }

// ModelVersion identifies the hashing scheme.
func (p *LocalProvider) ModelVersion() string { return localModelVersion }

// Close is a no-op.
func (p *LocalProvider) Close() error { return nil }

func (p *LocalProvider) embed(text string) []float32 {
	vector := make([]float32, p.dimension)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vector[int(h.Sum32())%p.dimension]++
	}

	var sumSq float64
	for _, v := range vector {
		sumSq += float64(v) * float64(v)
	}
	if sumSq > 0 {
		norm := float32(1 / math.Sqrt(sumSq))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}

// tokenize lowercases and splits on non-alphanumeric runes. CJK runes carry
// meaning individually and have no word separators, so each becomes its own
// token.
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
