// Package domain holds the data model shared across the pipeline.
package domain

import "time"

// Document is a source text under study.
type Document struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	FilePath       string    `json:"file_path,omitempty"`
	IsProcessed    bool      `json:"is_processed"`
	ContentVersion int       `json:"content_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Chunk is a bounded contiguous span of a document's text, the unit of
// retrieval. Chunks of a document are ordered by StartChar and contiguous;
// the text of neighbors may overlap, the ordinals never do.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	VectorRef  string `json:"vector_ref,omitempty"`
}

// RetrievedChunk is a chunk plus its similarity score for one query.
// Transient, never persisted.
type RetrievedChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// QuestionType is the closed set of quiz question types.
type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	MultiChoice  QuestionType = "multi_choice"
	TrueFalse    QuestionType = "true_false"
	FillBlank    QuestionType = "fill_blank"
	ShortAnswer  QuestionType = "short_answer"
)

// questionTypeAliases maps wire-format aliases (as emitted by models trained
// on the MC/MCM/TF/FB/SA convention) to canonical types.
var questionTypeAliases = map[string]QuestionType{
	"MC":            SingleChoice,
	"MCM":           MultiChoice,
	"TF":            TrueFalse,
	"FB":            FillBlank,
	"SA":            ShortAnswer,
	"SINGLE_CHOICE": SingleChoice,
	"MULTI_CHOICE":  MultiChoice,
	"TRUE_FALSE":    TrueFalse,
	"FILL_BLANK":    FillBlank,
	"SHORT_ANSWER":  ShortAnswer,
}

// ParseQuestionType resolves a raw type string, case-insensitively and
// including wire aliases. ok is false for unknown values.
func ParseQuestionType(raw string) (QuestionType, bool) {
	t, ok := questionTypeAliases[normalizeUpper(raw)]
	return t, ok
}

// IsChoice reports whether the type requires an options list.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultiChoice
}

// Difficulty is the quiz difficulty scale.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	Master Difficulty = "master"
)

// ParseDifficulty resolves a raw difficulty, defaulting to Medium.
func ParseDifficulty(raw string) Difficulty {
	switch Difficulty(normalizeLower(raw)) {
	case Easy:
		return Easy
	case Hard:
		return Hard
	case Master:
		return Master
	default:
		return Medium
	}
}

// Answer is a question's correct answer. Exactly one field is set, and which
// one is a pure function of the question type: Token for single-choice,
// true-false and fill-blank; Tokens for multi-choice (a normalized set);
// KeyPoints for short-answer scoring.
type Answer struct {
	Token     string   `json:"token,omitempty"`
	Tokens    []string `json:"tokens,omitempty"`
	KeyPoints []string `json:"key_points,omitempty"`
}

// Quiz is one generated quiz. DocumentID is empty for topic-only quizzes.
type Quiz struct {
	ID             string     `json:"id"`
	DocumentID     string     `json:"document_id,omitempty"`
	Title          string     `json:"title"`
	Topic          string     `json:"topic,omitempty"`
	Difficulty     Difficulty `json:"difficulty"`
	TotalQuestions int        `json:"total_questions"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Question is one quiz item.
type Question struct {
	ID              string       `json:"id"`
	QuizID          string       `json:"quiz_id"`
	Content         string       `json:"content"`
	Type            QuestionType `json:"type"`
	Options         []string     `json:"options,omitempty"`
	CorrectAnswer   Answer       `json:"correct_answer"`
	Explanation     string       `json:"explanation,omitempty"`
	SourcePassage   string       `json:"source_passage,omitempty"`
	KnowledgePoints []string     `json:"knowledge_points,omitempty"`
	Difficulty      Difficulty   `json:"difficulty"`
	Ordinal         int          `json:"ordinal"`
}

// TaskType classifies a generation call.
type TaskType string

const (
	TaskChat            TaskType = "chat"
	TaskQuizGeneration  TaskType = "quiz_generation"
	TaskQuizConstraints TaskType = "quiz_constraints"
	TaskSummary         TaskType = "summary"
	TaskExplanation     TaskType = "explanation"
)

// TaskStatus is the lifecycle of one generation task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// GenerationTask is the append-only record of one LLM call. It is created
// before dispatch and finalized exactly once, success or failure.
type GenerationTask struct {
	ID          string         `json:"id"`
	Type        TaskType       `json:"task_type"`
	Model       string         `json:"model,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Status      TaskStatus     `json:"status"`
	TokensUsed  int            `json:"tokens_used"`
	LatencyMS   int64          `json:"latency_ms"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// PromptTemplate is a stored, versioned prompt template.
type PromptTemplate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"template_type"`
	Content  string `json:"content"`
	Version  string `json:"version"`
	IsActive bool   `json:"is_active"`
}

// Known provider names for model configurations. DeepSeek and Qwen expose
// OpenAI-compatible APIs and share the openai adapter.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderQwen     = "qwen"
	ProviderGemini   = "gemini"
	ProviderOffline  = "offline"
)

// ModelConfig is one configured LLM provider entry.
type ModelConfig struct {
	ID          string  `json:"id"`
	Provider    string  `json:"provider"`
	ModelID     string  `json:"model_id"`
	APIKey      string  `json:"-"`
	APIBase     string  `json:"api_base,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	IsActive    bool    `json:"is_active"`
	IsDefault   bool    `json:"is_default"`
}
