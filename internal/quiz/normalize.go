package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cognolabs/studyrag/internal/domain"
)

// genericKnowledgePoint tags items whose knowledge points could not be
// derived from the item text.
const genericKnowledgePoint = "general"

// NormalizeItem validates one raw quiz item and coerces it into a Question.
// Items missing content, type, or correct_answer are rejected, as are choice
// items without options. An unknown type degrades to single-choice with a
// warning flag so the caller can log it; that is a normalization, not a
// rejection.
func NormalizeItem(raw map[string]any, defaultDifficulty domain.Difficulty) (*domain.Question, bool, error) {
	content := stringField(raw, "content")
	if content == "" {
		// Some models emit "question" instead of "content".
		content = stringField(raw, "question")
	}
	if content == "" {
		return nil, false, fmt.Errorf("item missing content")
	}

	rawType := stringField(raw, "type")
	if rawType == "" {
		return nil, false, fmt.Errorf("item missing type")
	}
	qtype, known := domain.ParseQuestionType(rawType)
	typeDefaulted := false
	if !known {
		qtype = domain.SingleChoice
		typeDefaulted = true
	}

	answerRaw, ok := raw["correct_answer"]
	if !ok || answerRaw == nil {
		return nil, false, fmt.Errorf("item missing correct_answer")
	}

	options := stringSliceField(raw, "options")
	if qtype.IsChoice() && len(options) == 0 {
		return nil, false, fmt.Errorf("%s item missing options", qtype)
	}

	answer, err := coerceAnswer(qtype, answerRaw)
	if err != nil {
		return nil, false, err
	}

	explanation := stringField(raw, "explanation")
	points := stringSliceField(raw, "knowledge_points")
	if len(points) == 0 {
		points = extractKnowledgePoints(content, explanation)
	}

	difficulty := defaultDifficulty
	if d := stringField(raw, "difficulty"); d != "" {
		difficulty = domain.ParseDifficulty(d)
	}

	return &domain.Question{
		Content:         content,
		Type:            qtype,
		Options:         options,
		CorrectAnswer:   answer,
		Explanation:     explanation,
		SourcePassage:   stringField(raw, "source_passage"),
		KnowledgePoints: points,
		Difficulty:      difficulty,
	}, typeDefaulted, nil
}

// NormalizeAnswer re-applies the answer shape rules to an already built
// Question. Running it on normalized output is a no-op.
func NormalizeAnswer(q *domain.Question) {
	switch q.Type {
	case domain.MultiChoice:
		q.CorrectAnswer = domain.Answer{Tokens: normalizeTokenSet(q.CorrectAnswer.Tokens)}
	case domain.ShortAnswer:
		q.CorrectAnswer = domain.Answer{KeyPoints: q.CorrectAnswer.KeyPoints}
	default:
		q.CorrectAnswer = domain.Answer{Token: strings.TrimSpace(q.CorrectAnswer.Token)}
	}
}

// coerceAnswer maps a raw correct_answer value onto the shape its question
// type requires.
func coerceAnswer(qtype domain.QuestionType, raw any) (domain.Answer, error) {
	switch qtype {
	case domain.MultiChoice:
		tokens, err := coerceTokenSet(raw)
		if err != nil {
			return domain.Answer{}, err
		}
		return domain.Answer{Tokens: tokens}, nil
	case domain.ShortAnswer:
		points := anyToStrings(raw)
		if len(points) == 0 {
			return domain.Answer{}, fmt.Errorf("short_answer item has no key points")
		}
		return domain.Answer{KeyPoints: points}, nil
	default:
		token := anyToString(raw)
		if token == "" {
			return domain.Answer{}, fmt.Errorf("%s item has empty correct_answer", qtype)
		}
		return domain.Answer{Token: token}, nil
	}
}

// coerceTokenSet accepts a list, a JSON-array string, or a comma-separated
// string, and normalizes each to a sorted deduplicated token set.
func coerceTokenSet(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []any:
		return normalizeTokenSetAny(v)
	case []string:
		return normalizeTokenSet(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, fmt.Errorf("multi_choice item has empty correct_answer")
		}
		if strings.HasPrefix(s, "[") {
			var nested []any
			if err := json.Unmarshal([]byte(s), &nested); err == nil {
				return normalizeTokenSetAny(nested)
			}
			// Fall through to comma splitting when the nested form is broken.
		}
		return normalizeTokenSet(strings.Split(s, ",")), nil
	default:
		return nil, fmt.Errorf("multi_choice correct_answer has unsupported shape %T", raw)
	}
}

func normalizeTokenSetAny(items []any) ([]string, error) {
	tokens := make([]string, 0, len(items))
	for _, item := range items {
		tokens = append(tokens, anyToString(item))
	}
	set := normalizeTokenSet(tokens)
	if len(set) == 0 {
		return nil, fmt.Errorf("multi_choice item has empty correct_answer")
	}
	return set, nil
}

// normalizeTokenSet trims, uppercases single-letter option tokens, drops
// empties and duplicates, and sorts for a stable set representation.
func normalizeTokenSet(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len([]rune(t)) == 1 {
			t = strings.ToUpper(t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var knowledgePointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"([^"\n]{2,40})"`),
	regexp.MustCompile(`“([^”\n]{2,40})”`),
	regexp.MustCompile(`\*\*([^*\n]{2,40})\*\*`),
	regexp.MustCompile(`《([^》\n]{1,40})》`),
}

// extractKnowledgePoints derives a best-effort knowledge-point set from
// quoted or emphasized substrings of the item text. The exact matching rules
// are a placeholder strategy; when nothing matches, a single generic tag is
// returned so the field is never empty.
func extractKnowledgePoints(content, explanation string) []string {
	text := content + "\n" + explanation
	seen := make(map[string]struct{})
	var points []string
	for _, pattern := range knowledgePointPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			p := strings.TrimSpace(m[1])
			if p == "" {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			points = append(points, p)
			if len(points) == 5 {
				return points
			}
		}
	}
	if len(points) == 0 {
		return []string{genericKnowledgePoint}
	}
	return points
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		return strings.TrimSpace(anyToString(v))
	}
	return ""
}

func stringSliceField(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	return anyToStrings(v)
}

func anyToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		if s {
			return "true"
		}
		return "false"
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", s), ".0")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func anyToStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := strings.TrimSpace(anyToString(item)); str != "" {
				out = append(out, str)
			}
		}
		return out
	case string:
		if t := strings.TrimSpace(s); t != "" {
			return []string{t}
		}
		return nil
	default:
		return nil
	}
}
