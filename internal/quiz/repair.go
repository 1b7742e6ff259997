package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError carries the raw model text alongside the failure so callers can
// report it without re-fetching.
type ParseError struct {
	Reason  string `json:"reason"`
	RawText string `json:"raw_text"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse quiz payload: %s", e.Reason)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// ExtractFenced returns the body of the first fenced code block, or the full
// text when no fence is present.
func ExtractFenced(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// StripComments removes // line comments and /* */ block comments outside of
// string literals.
func StripComments(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	escaped := false
	i := 0
	for i < len(s) {
		c := s[i]
		if inString {
			out.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			i++
			continue
		}
		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
			i++
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i += 2
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([\]}])`)

// StripTrailingCommas removes commas immediately preceding a closing bracket
// or brace.
func StripTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// FirstBalancedArray extracts the first balanced top-level [...] substring,
// respecting string literals. Returns the input unchanged when no balanced
// array is found.
func FirstBalancedArray(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return s
}

// ParseItems runs the extraction and repair pipeline over raw model output.
// It first tries the fenced (or full) text as-is; on failure it applies the
// ordered repairs — strip comments, strip trailing commas, extract the first
// balanced array — and retries once. Still unparsable input yields a
// ParseError carrying the raw text.
func ParseItems(raw string) ([]map[string]any, *ParseError) {
	candidate := ExtractFenced(raw)
	if candidate == "" {
		return nil, &ParseError{Reason: "empty model output", RawText: raw}
	}

	items, err := unmarshalItems(candidate)
	if err == nil {
		return items, nil
	}

	repaired := FirstBalancedArray(StripTrailingCommas(StripComments(candidate)))
	items, err = unmarshalItems(repaired)
	if err == nil {
		return items, nil
	}

	return nil, &ParseError{Reason: err.Error(), RawText: raw}
}

// unmarshalItems accepts either a bare array of items or a single object,
// which is treated as a one-item batch.
func unmarshalItems(s string) ([]map[string]any, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var single map[string]any
		if err := json.Unmarshal([]byte(s), &single); err != nil {
			return nil, err
		}
		return []map[string]any{single}, nil
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	return items, nil
}
