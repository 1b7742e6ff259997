package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognolabs/studyrag/internal/domain"
	"github.com/cognolabs/studyrag/internal/rag"
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register a text file as a document",
	Long: `Register a text file as a document and ingest it.

Examples:
  studyrag add notes.txt
  studyrag add --title "Biology 101" chapter3.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			title = filepath.Base(args[0])
		}

		doc := &domain.Document{
			Title:    title,
			Content:  string(content),
			FilePath: args[0],
		}
		if err := a.store.SaveDocument(cmd.Context(), doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		if _, err := a.engine.Ingest(cmd.Context(), doc.ID, false); err != nil {
			return err
		}
		return printJSON(map[string]string{"document_id": doc.ID, "title": doc.Title})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <document-id>",
	Short: "Chunk and index a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		force, _ := cmd.Flags().GetBool("force")
		processed, err := a.engine.Ingest(cmd.Context(), args[0], force)
		if err != nil {
			return err
		}
		return printJSON(map[string]bool{"processed": processed})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question, grounded in a document when --document is set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		documentID, _ := cmd.Flags().GetString("document")
		topK, _ := cmd.Flags().GetInt("top-k")

		result, err := a.engine.Query(cmd.Context(), documentID, strings.Join(args, " "), topK)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate a quiz from a document or a topic",
	Long: `Generate a quiz from a document or a topic.

Examples:
  studyrag quiz --document 4f1f... --count 5
  studyrag quiz --topic "photosynthesis" --difficulty easy --types MC,TF
  studyrag quiz --from-request "quiz me on the French Revolution, hard ones"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		documentID, _ := cmd.Flags().GetString("document")
		topic, _ := cmd.Flags().GetString("topic")
		fromRequest, _ := cmd.Flags().GetString("from-request")
		count, _ := cmd.Flags().GetInt("count")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		typesFlag, _ := cmd.Flags().GetString("types")

		req := rag.QuizRequest{
			DocumentID: documentID,
			Topic:      topic,
			Count:      count,
		}
		if difficulty != "" {
			req.Difficulty = domain.ParseDifficulty(difficulty)
		}
		for _, raw := range strings.Split(typesFlag, ",") {
			if t, ok := domain.ParseQuestionType(strings.TrimSpace(raw)); ok {
				req.Types = append(req.Types, t)
			}
		}

		var result *rag.QuizResult
		if fromRequest != "" {
			result, err = a.engine.GenerateQuizFromConversation(cmd.Context(), fromRequest, req)
		} else {
			if documentID == "" && topic == "" {
				return fmt.Errorf("one of --document, --topic or --from-request is required")
			}
			result, err = a.engine.GenerateQuiz(cmd.Context(), req)
		}
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <document-id>",
	Short: "Summarize a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		length, _ := cmd.Flags().GetString("length")
		outline, _ := cmd.Flags().GetBool("outline")

		result, err := a.engine.Summarize(cmd.Context(), args[0], length, outline)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain why an answer to a question is wrong",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		question, _ := cmd.Flags().GetString("question")
		wrong, _ := cmd.Flags().GetString("wrong")
		correct, _ := cmd.Flags().GetString("correct")
		source, _ := cmd.Flags().GetString("source")

		result, err := a.engine.Explain(cmd.Context(), rag.ExplainRequest{
			Question:      question,
			WrongAnswer:   wrong,
			CorrectAnswer: correct,
			Source:        source,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	addCmd.Flags().String("title", "", "document title (default: file name)")

	ingestCmd.Flags().Bool("force", false, "reprocess even if already ingested")

	queryCmd.Flags().String("document", "", "document id to ground the answer in")
	queryCmd.Flags().Int("top-k", 3, "number of chunks to retrieve")

	quizCmd.Flags().String("document", "", "source document id")
	quizCmd.Flags().String("topic", "", "quiz topic (topic-only mode)")
	quizCmd.Flags().String("from-request", "", "free-form quiz request to extract topic and constraints from")
	quizCmd.Flags().Int("count", 5, "number of questions")
	quizCmd.Flags().String("difficulty", "", "easy, medium, hard or master")
	quizCmd.Flags().String("types", "", "comma-separated question types (MC,MCM,TF,FB,SA)")

	summarizeCmd.Flags().String("length", "medium", "summary length: short, medium or long")
	summarizeCmd.Flags().Bool("outline", false, "structure the summary as an outline")

	explainCmd.Flags().String("question", "", "the question text")
	explainCmd.Flags().String("wrong", "", "the student's wrong answer")
	explainCmd.Flags().String("correct", "", "the correct answer")
	explainCmd.Flags().String("source", "", "optional study material")
	_ = explainCmd.MarkFlagRequired("question")
	_ = explainCmd.MarkFlagRequired("wrong")
	_ = explainCmd.MarkFlagRequired("correct")
}
