// Package history wraps the external "cass" session-search tool. Every entry
// point fails soft: when the tool is missing or errors, callers get empty
// results and the system degrades per policy instead of aborting.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"cassmem/internal/config"
	"cassmem/internal/logging"
)

// indexMissingExitCode is cass's signal that its index was never built (or was
// wiped). One rebuild-and-retry is attempted, then the call fails soft.
const indexMissingExitCode = 3

// Snippet is one history search hit.
type Snippet struct {
	SourcePath string  `json:"source_path"`
	LineNumber int     `json:"line_number"`
	Agent      string  `json:"agent"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// TimelineSession is one session in a timeline group.
type TimelineSession struct {
	Path  string `json:"path"`
	Agent string `json:"agent"`
}

// TimelineGroup is one day of sessions.
type TimelineGroup struct {
	Date     string            `json:"date"`
	Sessions []TimelineSession `json:"sessions"`
}

// Timeline is the discovery result for recent sessions.
type Timeline struct {
	Groups []TimelineGroup `json:"groups"`
}

// SearchOptions narrow a history search.
type SearchOptions struct {
	Limit     int
	Days      int
	Agent     string
	Workspace string
}

// Client invokes the configured cass binary.
type Client struct {
	binary        string
	searchTimeout time.Duration
	exportTimeout time.Duration

	// run is swappable for tests.
	run func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error)
}

// NewClient builds a client from config.
func NewClient(cfg *config.Config) *Client {
	c := &Client{
		binary:        cfg.CassPath,
		searchTimeout: parseDuration(cfg.History.SearchTimeout, 30*time.Second),
		exportTimeout: parseDuration(cfg.History.ExportTimeout, 30*time.Second),
	}
	c.run = c.exec
	return c
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Available reports whether the cass binary can be found at all.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

func (c *Client) exec(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.HistoryDebug("cass %v", args)
	err := cmd.Run()
	if err != nil {
		return stdout.Bytes(), fmt.Errorf("cass %v failed: %w (stderr: %s)", args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Search runs a history search. Unavailable tool or any failure yields an
// empty list. INDEX_MISSING triggers one index rebuild and a single retry.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) []Snippet {
	timer := logging.StartTimer(logging.CategoryHistory, "Search")
	defer timer.Stop()

	if !c.Available() {
		logging.History("cass unavailable, search degrades to empty")
		return nil
	}

	args := []string{"search", query, "--format", "json"}
	if opts.Limit > 0 {
		args = append(args, "--limit", strconv.Itoa(opts.Limit))
	}
	if opts.Days > 0 {
		args = append(args, "--days", strconv.Itoa(opts.Days))
	}
	if opts.Agent != "" {
		args = append(args, "--agent", opts.Agent)
	}
	if opts.Workspace != "" {
		args = append(args, "--workspace", opts.Workspace)
	}

	out, err := c.run(ctx, c.searchTimeout, args...)
	if err != nil {
		if exitCode(err) == indexMissingExitCode {
			logging.History("cass index missing, rebuilding once")
			if _, idxErr := c.run(ctx, c.searchTimeout, "index"); idxErr == nil {
				out, err = c.run(ctx, c.searchTimeout, args...)
			}
		}
		if err != nil {
			logging.Get(logging.CategoryHistory).Warn("Search failed soft: %v", err)
			return nil
		}
	}

	var snippets []Snippet
	if jsonErr := json.Unmarshal(out, &snippets); jsonErr != nil {
		logging.Get(logging.CategoryHistory).Warn("Unparseable search output: %v", jsonErr)
		return nil
	}
	logging.HistoryDebug("Search %q returned %d snippet(s)", query, len(snippets))
	return snippets
}

// Export renders a session transcript as markdown. Returns "" on any failure.
func (c *Client) Export(ctx context.Context, sessionPath string) string {
	if !c.Available() {
		return ""
	}
	out, err := c.run(ctx, c.exportTimeout, "export", sessionPath, "--format", "markdown")
	if err != nil {
		logging.Get(logging.CategoryHistory).Warn("Export of %s failed soft: %v", sessionPath, err)
		return ""
	}
	return string(out)
}

// RecentTimeline lists sessions from the last N days grouped by date.
func (c *Client) RecentTimeline(ctx context.Context, days int) Timeline {
	if !c.Available() {
		return Timeline{}
	}
	out, err := c.run(ctx, c.searchTimeout, "timeline", "--days", strconv.Itoa(days), "--format", "json")
	if err != nil {
		logging.Get(logging.CategoryHistory).Warn("Timeline failed soft: %v", err)
		return Timeline{}
	}
	var tl Timeline
	if jsonErr := json.Unmarshal(out, &tl); jsonErr != nil {
		logging.Get(logging.CategoryHistory).Warn("Unparseable timeline output: %v", jsonErr)
		return Timeline{}
	}
	return tl
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
