package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cassmem/internal/config"
	"cassmem/internal/llm"
	"cassmem/internal/reflection"
)

var (
	reflectDays        int
	reflectMaxSessions int
)

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Run one reflection cycle over recent unprocessed sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := llm.NewGenAIClient(cmd.Context(), os.Getenv("GEMINI_API_KEY"), cfg.Model)
		if err != nil {
			return failMutation("llm_unavailable", fmt.Errorf("reflection needs the diary extractor: %w", err))
		}

		var validator llm.Validator
		if cfg.Validation.Enabled {
			validator = client
		}

		orch := reflection.NewOrchestrator(
			cfg,
			resolveSources(),
			historyClient(),
			client,
			validator,
			config.DiaryDir(),
			reflection.ProcessedLogPath(config.ReflectionsDir(), workspace),
		)

		result, err := orch.Run(cmd.Context(), reflection.Options{
			Days:        reflectDays,
			Workspace:   workspace,
			MaxSessions: reflectMaxSessions,
		})
		if err != nil {
			return failMutation("reflection_failed", err)
		}
		return printJSON(result)
	},
}

func init() {
	reflectCmd.Flags().IntVar(&reflectDays, "days", 0, "Lookback window in days (default: session_lookback_days)")
	reflectCmd.Flags().IntVar(&reflectMaxSessions, "max-sessions", 0, "Cap sessions processed this cycle")
}
