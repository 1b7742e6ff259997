package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognolabs/studyrag/internal/domain"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage LLM provider model configs",
	Long: `Manage LLM provider model configs.

Examples:
  studyrag model add --provider deepseek --model deepseek-chat --api-key sk-... --default
  studyrag model add --provider gemini --model gemini-2.5-pro --api-key AI...
  studyrag model list
  studyrag model set-default <config-id>`,
}

var modelAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a provider model config",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		apiKey, _ := cmd.Flags().GetString("api-key")
		apiBase, _ := cmd.Flags().GetString("api-base")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")
		temperature, _ := cmd.Flags().GetFloat64("temperature")
		isDefault, _ := cmd.Flags().GetBool("default")

		mc := &domain.ModelConfig{
			Provider:    provider,
			ModelID:     model,
			APIKey:      apiKey,
			APIBase:     apiBase,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			IsActive:    true,
		}
		if err := a.store.SaveModelConfig(cmd.Context(), mc); err != nil {
			return fmt.Errorf("failed to save model config: %w", err)
		}
		if isDefault {
			if err := a.store.SetDefaultModel(cmd.Context(), mc.ID); err != nil {
				return fmt.Errorf("failed to set default model: %w", err)
			}
		}
		return printJSON(map[string]any{
			"id":       mc.ID,
			"provider": mc.Provider,
			"model_id": mc.ModelID,
			"default":  isDefault,
		})
	},
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered model configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		configs, err := a.store.ListModelConfigs(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list model configs: %w", err)
		}
		// Keys stay in the database; the listing only reveals whether one is set.
		for i := range configs {
			if configs[i].APIKey != "" {
				configs[i].APIKey = "(set)"
			}
		}
		return printJSON(configs)
	},
}

var modelSetDefaultCmd = &cobra.Command{
	Use:   "set-default <config-id>",
	Short: "Mark a model config as the default for generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.SetDefaultModel(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to set default model: %w", err)
		}
		return printJSON(map[string]string{"default_model": args[0]})
	},
}

func init() {
	modelAddCmd.Flags().String("provider", "", "provider name (openai, deepseek, qwen, gemini)")
	modelAddCmd.Flags().String("model", "", "provider model id, e.g. deepseek-chat")
	modelAddCmd.Flags().String("api-key", "", "provider API key")
	modelAddCmd.Flags().String("api-base", "", "API base URL for OpenAI-compatible endpoints")
	modelAddCmd.Flags().Int("max-tokens", 0, "per-call token budget (0 uses the gateway default)")
	modelAddCmd.Flags().Float64("temperature", 0, "sampling temperature")
	modelAddCmd.Flags().Bool("default", false, "mark this config as the default model")
	_ = modelAddCmd.MarkFlagRequired("provider")
	_ = modelAddCmd.MarkFlagRequired("model")

	modelCmd.AddCommand(modelAddCmd)
	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelSetDefaultCmd)
}
