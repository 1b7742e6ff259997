// Package chunker splits document text into overlapping segments for retrieval.
package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates invalid chunker configuration.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Config holds chunking parameters.
type Config struct {
	// Size is the target chunk size in runes.
	// Default: 1000
	Size int `koanf:"size"`

	// Overlap is the number of runes shared between consecutive chunks.
	// Default: 100
	Overlap int `koanf:"overlap"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Size == 0 {
		c.Size = 1000
	}
	if c.Overlap == 0 {
		c.Overlap = 100
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrInvalidConfig)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative", ErrInvalidConfig)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, c.Overlap, c.Size)
	}
	return nil
}

// Piece is one chunk of a document's text.
//
// Start and End are rune offsets into the original text, with Text equal to
// the original slice [Start:End). Pieces of one document are ordered by Start,
// their unique (non-overlapping) spans cover the input without gaps, and
// consecutive pieces share the configured overlap.
type Piece struct {
	Index int
	Text  string
	Start int
	End   int
}

// Chunker splits text into overlapping pieces.
//
// Cut points are chosen by preference: paragraph break, then sentence end,
// then word boundary, then a hard cut at the size budget.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker from config.
func New(cfg Config) (*Chunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// Split chunks text into overlapping pieces.
//
// Empty or whitespace-free empty input yields no pieces; callers that require
// content treat that as a failed ingestion.
func (c *Chunker) Split(text string) []Piece {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var pieces []Piece
	start := 0
	for {
		if start+c.size >= len(runes) {
			pieces = append(pieces, Piece{
				Index: len(pieces),
				Text:  string(runes[start:]),
				Start: start,
				End:   len(runes),
			})
			return pieces
		}

		cut := c.findCut(runes, start, start+c.size)
		pieces = append(pieces, Piece{
			Index: len(pieces),
			Text:  string(runes[start:cut]),
			Start: start,
			End:   cut,
		})

		next := cut - c.overlap
		if next <= start {
			// Overlap would stall the scan; advance without it.
			next = cut
		}
		start = next
	}
}

// findCut picks the best cut position in (start, limit], searching backwards
// so the chunk stays within the size budget. Cuts land just after the
// separator so separators stay attached to the preceding chunk.
func (c *Chunker) findCut(runes []rune, start, limit int) int {
	// Do not cut so early that chunks degenerate; keep at least half the budget.
	floor := start + c.size/2

	if p := lastParagraphBreak(runes, floor, limit); p > 0 {
		return p
	}
	if p := lastSentenceEnd(runes, floor, limit); p > 0 {
		return p
	}
	if p := lastWordBoundary(runes, floor, limit); p > 0 {
		return p
	}
	return limit
}

// lastParagraphBreak returns the position after the last "\n\n" in (floor, limit], or 0.
func lastParagraphBreak(runes []rune, floor, limit int) int {
	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	return 0
}

// lastSentenceEnd returns the position after the last sentence terminator in (floor, limit], or 0.
func lastSentenceEnd(runes []rune, floor, limit int) int {
	for i := limit; i > floor; i-- {
		switch runes[i-1] {
		case '.', '!', '?', '\n', '。', '！', '？', '；':
			return i
		}
	}
	return 0
}

// lastWordBoundary returns the position after the last space in (floor, limit], or 0.
func lastWordBoundary(runes []rune, floor, limit int) int {
	for i := limit; i > floor; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\t' {
			return i
		}
	}
	return 0
}
