package main

import (
	"encoding/json"
	"fmt"
	"os"

	"cassmem/internal/config"
	"cassmem/internal/history"
	"cassmem/internal/playbook"
)

// resolveSources builds the playbook cascade for the current invocation: the
// global file always, plus the repo overlay when a repo root is found.
func resolveSources() playbook.Sources {
	src := playbook.Sources{
		GlobalPath:      cfg.GlobalPlaybookPath(),
		GlobalToxicPath: config.GlobalToxicLogPath(),
	}
	if root, err := config.FindRepoRoot(workspace); err == nil {
		src.RepoPath = config.RepoPlaybookPath(root)
		src.RepoToxicPath = config.RepoToxicLogPath(root)
	}
	return src
}

func historyClient() *history.Client {
	return history.NewClient(cfg)
}

// commandError is the single user-visible failure shape for mutating
// commands: nothing was partially applied.
type commandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type commandFailure struct {
	Success bool         `json:"success"`
	Error   commandError `json:"error"`
}

// failMutation prints the structured failure and returns a silent error so
// cobra sets the exit code without double-printing.
func failMutation(code string, err error) error {
	out, _ := json.MarshalIndent(commandFailure{
		Success: false,
		Error:   commandError{Code: code, Message: err.Error()},
	}, "", "  ")
	fmt.Fprintln(os.Stderr, string(out))
	return fmt.Errorf("%s", code)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
