// Package prompt resolves and renders prompt templates.
//
// Templates are looked up from storage by (type, name) and rendered with safe
// variable substitution: variables missing from the input are left untouched
// rather than erroring, so partially filled templates survive. Every template
// type has a built-in default used when storage has no match or is
// unavailable, so prompt rendering never blocks a generation call.
package prompt

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/store"
)

// Template types.
const (
	TypeDocumentQuiz    = "document_quiz"
	TypeTopicQuiz       = "topic_quiz"
	TypeGroundedChat    = "grounded_chat"
	TypeExplanation     = "explanation"
	TypeDocumentSummary = "document_summary"
	TypeQuizConstraints = "quiz_constraints"
)

// Source looks up stored templates. *store.Store satisfies it.
type Source interface {
	GetTemplate(ctx context.Context, templateType, name string) (*domain.PromptTemplate, error)
}

// Engine renders templates with storage-backed lookup and built-in fallback.
type Engine struct {
	source Source
	logger *zap.Logger
}

// NewEngine creates an Engine. source may be nil, in which case only the
// built-in defaults are used.
func NewEngine(source Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, logger: logger}
}

// variablePattern matches $name and ${name} substitution sites.
var variablePattern = regexp.MustCompile(`\$(?:(\w+)|\{(\w+)\})`)

// Render is the pure substitution step: every $name or ${name} whose key is
// present in vars is replaced, everything else stays verbatim.
func Render(template string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := variablePattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// RenderByType resolves the template for (templateType, name) and renders it.
// Lookup failures of any kind degrade to the built-in default for the type;
// an unknown type renders against an empty template and returns "".
func (e *Engine) RenderByType(ctx context.Context, templateType, name string, vars map[string]string) string {
	content := e.lookup(ctx, templateType, name)
	return Render(content, vars)
}

func (e *Engine) lookup(ctx context.Context, templateType, name string) string {
	if e.source != nil {
		t, err := e.source.GetTemplate(ctx, templateType, name)
		if err == nil && t != nil {
			return t.Content
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			// Storage trouble is not a reason to fail a generation call.
			e.logger.Warn("template lookup failed, using built-in default",
				zap.String("template_type", templateType),
				zap.Error(err),
			)
		}
	}
	return builtinTemplates[templateType]
}

// Builtins returns the built-in templates as seedable rows.
func Builtins() []domain.PromptTemplate {
	types := []string{
		TypeDocumentQuiz, TypeTopicQuiz, TypeGroundedChat,
		TypeExplanation, TypeDocumentSummary, TypeQuizConstraints,
	}
	templates := make([]domain.PromptTemplate, 0, len(types))
	for _, t := range types {
		templates = append(templates, domain.PromptTemplate{
			Name:     "standard",
			Type:     t,
			Content:  builtinTemplates[t],
			Version:  "1.0",
			IsActive: true,
		})
	}
	return templates
}

// NoContextReference fills the reference_text variable when retrieval
// produced nothing, so stored chat templates also apply to ungrounded
// answers.
const NoContextReference = "No specific reference material is available for this question."

// JoinContext concatenates chunk texts with a visible separator for use as
// the reference_text variable.
func JoinContext(texts []string) string {
	return strings.Join(texts, "\n\n---\n\n")
}
