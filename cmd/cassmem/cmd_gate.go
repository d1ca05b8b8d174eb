package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cassmem/internal/gate"
	"cassmem/internal/sanitize"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Evidence-gate a candidate rule against session history",
}

var gateCheckCmd = &cobra.Command{
	Use:   "check <content>",
	Short: "Show the gate verdict for a candidate rule",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := gate.New(historyClient(), cfg.Validation)
		verdict := g.Evaluate(cmd.Context(), strings.Join(args, " "))
		return printJSON(verdict)
	},
}

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize [file]",
	Short: "Redact secrets from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}
		fmt.Print(sanitize.New(cfg.Sanitization).Sanitize(string(data)))
		return nil
	},
}

func init() {
	gateCmd.AddCommand(gateCheckCmd)
}
