// Package main implements the studyrag CLI: one-shot ingestion, grounded
// question answering, quiz generation, summaries and explanations.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "studyrag",
	Short: "Retrieval-augmented study assistant pipeline",
	Long: `studyrag ingests documents, retrieves relevant passages, and generates
grounded answers, quizzes, summaries and explanations through configured
LLM providers. Without provider credentials it runs in offline mode with
placeholder responses.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/studyrag/config.yaml)")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(modelCmd)
}
