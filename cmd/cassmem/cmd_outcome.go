package main

import (
	"github.com/spf13/cobra"

	"cassmem/internal/config"
	"cassmem/internal/outcome"
)

var (
	outcomeSession   string
	outcomeStatus    string
	outcomeRules     []string
	outcomeNotes     string
	outcomeDuration  float64
	outcomeErrors    int
	outcomeRetries   bool
	outcomeSentiment string
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Record session outcomes and apply them as feedback",
}

var outcomeRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append an outcome and feed it back to the cited rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec := outcome.Record{
			SessionID:       outcomeSession,
			Outcome:         outcome.Status(outcomeStatus),
			RulesUsed:       outcomeRules,
			Notes:           outcomeNotes,
			DurationSeconds: outcomeDuration,
			ErrorCount:      outcomeErrors,
			HadRetries:      outcomeRetries,
			Sentiment:       outcomeSentiment,
		}

		if err := outcome.Append(config.OutcomeLogPath(), rec); err != nil {
			return failMutation("outcome_record_failed", err)
		}

		applied, err := outcome.NewApplier(resolveSources()).Apply(rec)
		if err != nil {
			return failMutation("outcome_apply_failed", err)
		}
		return printJSON(map[string]interface{}{"success": true, "feedbackApplied": applied})
	},
}

func init() {
	outcomeRecordCmd.Flags().StringVar(&outcomeSession, "session", "", "Session id")
	outcomeRecordCmd.Flags().StringVar(&outcomeStatus, "status", "success", "success | failure | mixed")
	outcomeRecordCmd.Flags().StringSliceVar(&outcomeRules, "rule", nil, "Rule id used (repeatable)")
	outcomeRecordCmd.Flags().StringVar(&outcomeNotes, "notes", "", "Free-form notes")
	outcomeRecordCmd.Flags().Float64Var(&outcomeDuration, "duration", 0, "Session duration in seconds")
	outcomeRecordCmd.Flags().IntVar(&outcomeErrors, "errors", 0, "Error count observed")
	outcomeRecordCmd.Flags().BoolVar(&outcomeRetries, "retries", false, "Whether retries were needed")
	outcomeRecordCmd.Flags().StringVar(&outcomeSentiment, "sentiment", "", "positive | negative")
	outcomeCmd.AddCommand(outcomeRecordCmd)
}
