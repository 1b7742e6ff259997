package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognolabs/studyrag/internal/chunker"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     chunker.Config
		wantErr bool
	}{
		{name: "defaults", cfg: chunker.Config{}, wantErr: false},
		{name: "explicit", cfg: chunker.Config{Size: 200, Overlap: 20}, wantErr: false},
		{name: "negative overlap", cfg: chunker.Config{Size: 200, Overlap: -1}, wantErr: true},
		{name: "overlap not smaller than size", cfg: chunker.Config{Size: 50, Overlap: 50}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chunker.New(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, chunker.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := chunker.New(chunker.Config{})
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

func TestSplitSingleChunk(t *testing.T) {
	c, err := chunker.New(chunker.Config{Size: 100, Overlap: 10})
	require.NoError(t, err)

	pieces := c.Split("Paris is the capital of France.")
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Index)
	assert.Equal(t, 0, pieces[0].Start)
	assert.Equal(t, "Paris is the capital of France.", pieces[0].Text)
}

func TestSplitLossless(t *testing.T) {
	// Concatenating the unique spans must reconstruct the input exactly.
	texts := map[string]string{
		"paragraphs": strings.Repeat("First paragraph with some words.\n\nSecond paragraph follows here.\n\n", 20),
		"sentences":  strings.Repeat("One thing happened. Then another thing happened! Did a third? ", 30),
		"words":      strings.Repeat("alpha beta gamma delta epsilon ", 60),
		"hard":       strings.Repeat("x", 1500),
		"cjk":        strings.Repeat("这是一个测试句子。向量检索需要分块。", 80),
	}

	c, err := chunker.New(chunker.Config{Size: 200, Overlap: 30})
	require.NoError(t, err)

	for name, text := range texts {
		t.Run(name, func(t *testing.T) {
			pieces := c.Split(text)
			require.NotEmpty(t, pieces)

			runes := []rune(text)
			var rebuilt []rune
			prevEnd := 0
			for i, p := range pieces {
				assert.Equal(t, i, p.Index)
				assert.Equal(t, string(runes[p.Start:p.End]), p.Text, "span must match text")
				require.LessOrEqual(t, p.Start, prevEnd, "no gaps between chunks")
				rebuilt = append(rebuilt, runes[prevEnd:p.End]...)
				prevEnd = p.End
			}
			assert.Equal(t, text, string(rebuilt))
		})
	}
}

func TestSplitOverlap(t *testing.T) {
	c, err := chunker.New(chunker.Config{Size: 120, Overlap: 25})
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 40)
	pieces := c.Split(text)
	require.Greater(t, len(pieces), 2)

	for i := 1; i < len(pieces); i++ {
		prev, cur := pieces[i-1], pieces[i]
		assert.Equal(t, prev.End-25, cur.Start, "chunk %d overlaps previous by configured amount", i)
	}
}

func TestSplitRespectsSizeBudget(t *testing.T) {
	c, err := chunker.New(chunker.Config{Size: 150, Overlap: 20})
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)
	for _, p := range c.Split(text) {
		assert.LessOrEqual(t, len([]rune(p.Text)), 150)
	}
}

func TestSplitDeterministic(t *testing.T) {
	c, err := chunker.New(chunker.Config{Size: 180, Overlap: 40})
	require.NoError(t, err)

	text := strings.Repeat("Deterministic chunk counts matter for index rebuilds. ", 60)
	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	c, err := chunker.New(chunker.Config{Size: 80, Overlap: 10})
	require.NoError(t, err)

	para := strings.Repeat("word ", 12) + "end.\n\n" // ~65 runes
	pieces := c.Split(para + para + para)
	require.Greater(t, len(pieces), 1)
	assert.True(t, strings.HasSuffix(pieces[0].Text, "\n\n"), "first cut should land on the paragraph break, got %q", pieces[0].Text)
}
