package main

import (
	"github.com/spf13/cobra"

	"cassmem/internal/playbook"
)

var (
	feedbackSession string
	feedbackReason  string
	feedbackContext string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record explicit feedback on a bullet",
}

var feedbackHelpfulCmd = &cobra.Command{
	Use:   "helpful <id>",
	Short: "Record that a bullet helped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordFeedback(args[0], playbook.FeedbackHelpful)
	},
}

var feedbackHarmfulCmd = &cobra.Command{
	Use:   "harmful <id>",
	Short: "Record that a bullet hurt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordFeedback(args[0], playbook.FeedbackHarmful)
	},
}

func recordFeedback(id string, ftype playbook.FeedbackType) error {
	return mutateOwner(id, "feedback_failed", func(pb *playbook.Playbook) error {
		if !playbook.RecordFeedbackEvent(pb, id, ftype, playbook.FeedbackOptions{
			SessionPath: feedbackSession,
			Reason:      feedbackReason,
			Context:     feedbackContext,
		}) {
			return playbook.NotFoundError(id)
		}
		return nil
	})
}

func init() {
	for _, c := range []*cobra.Command{feedbackHelpfulCmd, feedbackHarmfulCmd} {
		c.Flags().StringVar(&feedbackSession, "session", "", "Session path the feedback came from")
		c.Flags().StringVar(&feedbackReason, "reason", "", "Why")
		c.Flags().StringVar(&feedbackContext, "context", "", "Free-form context")
	}
	feedbackCmd.AddCommand(feedbackHelpfulCmd, feedbackHarmfulCmd)
}
