package llm

import (
	"math"
	"strings"
	"unicode"
)

// wordsPerToken approximates the word-to-token ratio of common BPE
// vocabularies for non-CJK text.
const wordsPerToken = 0.75

// EstimateTokens approximates token usage for providers that report none.
// CJK characters count one token each; remaining text is counted as
// whitespace-separated words scaled by a fixed words-per-token ratio.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	cjk := 0
	var other strings.Builder
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other.WriteRune(r)
		}
	}

	words := len(strings.Fields(other.String()))
	estimated := cjk + int(math.Ceil(float64(words)/wordsPerToken))
	if estimated == 0 && len(text) > 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
