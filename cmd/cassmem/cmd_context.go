package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cassmem/internal/briefing"
	"cassmem/internal/config"
	"cassmem/internal/embedding"
)

var contextJSON bool

var contextCmd = &cobra.Command{
	Use:   "context <task description>",
	Short: "Build a ranked briefing of rules and anti-patterns for a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.Join(args, " ")

		var embedder briefing.Embedder
		if engine, err := embedding.NewEngine(cfg.Embedding); err == nil && engine != nil {
			embedder = embedding.NewCache(config.EmbeddingCachePath(), engine)
		}

		ranker := briefing.New(resolveSources(), historyClient(), embedder, cfg)
		result, err := ranker.Build(cmd.Context(), task, briefing.Options{Workspace: workspace})
		if err != nil {
			return err
		}

		if contextJSON {
			return printJSON(result)
		}

		fmt.Printf("Task: %s\n\n", result.Task)
		if len(result.RelevantBullets) > 0 {
			fmt.Println("Rules:")
			for _, rb := range result.RelevantBullets {
				fmt.Printf("  [%s/%s] %s\n", rb.Bullet.Category, rb.Bullet.Maturity, rb.Bullet.Content)
			}
		}
		if len(result.AntiPatterns) > 0 {
			fmt.Println("\nAnti-patterns:")
			for _, rb := range result.AntiPatterns {
				fmt.Printf("  [%s] %s\n", rb.Bullet.Category, rb.Bullet.Content)
			}
		}
		if len(result.DeprecatedWarnings) > 0 {
			fmt.Println("\nWarnings:")
			for _, w := range result.DeprecatedWarnings {
				line := fmt.Sprintf("  %q is deprecated (seen in %s)", w.Pattern, w.FoundIn)
				if w.Replacement != "" {
					line += fmt.Sprintf("; use %s", w.Replacement)
				}
				fmt.Println(line)
			}
		}
		if len(result.HistorySnippets) > 0 {
			fmt.Println("\nHistory:")
			for _, s := range result.HistorySnippets {
				fmt.Printf("  %s:%d %s\n", s.SourcePath, s.LineNumber, s.Snippet)
			}
		}
		if result.HistoryUnavailable {
			fmt.Println("\n(history search unavailable; briefing is playbook-only)")
		}
		return nil
	},
}

func init() {
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "Emit the briefing as JSON")
}
