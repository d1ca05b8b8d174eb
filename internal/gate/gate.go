// Package gate decides whether a proposed new bullet is cheap-accepted,
// cheap-rejected, or deferred to the costly external validator, based on
// historical success/failure signals from session search.
package gate

import (
	"context"
	"regexp"
	"strings"

	"cassmem/internal/config"
	"cassmem/internal/history"
	"cassmem/internal/logging"
	"cassmem/internal/playbook"
	"cassmem/internal/similarity"
)

// evidenceSearchLimit caps snippets pulled per candidate.
const evidenceSearchLimit = 20

// Auto-decision thresholds.
const (
	autoAcceptSuccesses = 5
	autoRejectFailures  = 3
)

// Success and failure classifiers are word-boundary anchored. Generic
// substring matching is rejected: "fixed-width" must not count as a fix.
var successPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bfixed\s+(the|a|an|it|this|that)\b`),
	regexp.MustCompile(`(?i)\bsuccessfully\b`),
	regexp.MustCompile(`(?i)\bsolved\s+(the|a|an|it|this|that)\b`),
	regexp.MustCompile(`(?i)\bworks\s+(now|correctly|properly)\b`),
	regexp.MustCompile(`(?i)\bresolved\b`),
	regexp.MustCompile(`(?i)\bworking\s+now\b`),
}

var failurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bfailed\s+(to|with)\b`),
	regexp.MustCompile(`(?i)\berror:`),
	regexp.MustCompile(`(?i)\b(threw|throws)\b.{0,40}\berror\b`),
	regexp.MustCompile(`(?i)\bbroken\b`),
	regexp.MustCompile(`(?i)\bcrash(ed|es|ing)?\b`),
	regexp.MustCompile(`(?i)\bbug\s+(in|found|caused)\b`),
	regexp.MustCompile(`(?i)\bdoesn't\s+work\b`),
}

// Verdict is the gate's decision for one candidate.
type Verdict struct {
	Passed         bool           `json:"passed"`
	Reason         string         `json:"reason"`
	SuggestedState playbook.State `json:"suggestedState"`
	SessionCount   int            `json:"sessionCount"`
	SuccessCount   int            `json:"successCount"`
	FailureCount   int            `json:"failureCount"`

	// Ambiguous is set when the orchestrator should consult the external
	// validator before accepting.
	Ambiguous bool `json:"ambiguous"`
}

// Searcher is the slice of the history client the gate needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts history.SearchOptions) []Snippet
	Available() bool
}

// Snippet aliases the history hit so fakes stay small.
type Snippet = history.Snippet

// Gate evaluates candidates against historical evidence.
type Gate struct {
	search Searcher
	cfg    config.ValidationConfig
}

// New builds a gate.
func New(search Searcher, cfg config.ValidationConfig) *Gate {
	return &Gate{search: search, cfg: cfg}
}

// Evaluate classifies historical snippets mentioning the candidate's keywords
// and decides per the evidence table. The gate never auto-accepts when
// history is unavailable - it fails open to draft instead.
func (g *Gate) Evaluate(ctx context.Context, content string) Verdict {
	timer := logging.StartTimer(logging.CategoryGate, "Evaluate")
	defer timer.Stop()

	if g.search == nil || !g.search.Available() {
		logging.GateLog("History unavailable, skipping evidence gate (fail-open)")
		return Verdict{
			Passed:         true,
			Reason:         "history unavailable, skipping (fail-open)",
			SuggestedState: playbook.StateDraft,
		}
	}

	keywords := similarity.Keywords(content, 6)
	query := strings.Join(keywords, " ")
	snippets := g.search.Search(ctx, query, history.SearchOptions{
		Limit: evidenceSearchLimit,
		Days:  g.cfg.LookbackDays,
	})

	// Aggregate per distinct session so one chatty transcript cannot carry
	// the decision alone.
	type tally struct{ success, failure bool }
	perSession := make(map[string]*tally)
	for _, s := range snippets {
		t := perSession[s.SourcePath]
		if t == nil {
			t = &tally{}
			perSession[s.SourcePath] = t
		}
		if matchesAny(successPatterns, s.Snippet) {
			t.success = true
		}
		if matchesAny(failurePatterns, s.Snippet) {
			t.failure = true
		}
	}

	v := Verdict{SessionCount: len(perSession)}
	for _, t := range perSession {
		if t.success {
			v.SuccessCount++
		}
		if t.failure {
			v.FailureCount++
		}
	}

	switch {
	case v.SessionCount == 0:
		v.Passed = true
		v.SuggestedState = playbook.StateDraft
		v.Reason = "no historical evidence"
	case v.SuccessCount >= autoAcceptSuccesses && v.FailureCount == 0:
		v.Passed = true
		v.SuggestedState = playbook.StateActive
		v.Reason = "strong historical success, auto-accepted"
	case v.FailureCount >= autoRejectFailures && v.SuccessCount == 0:
		v.Passed = false
		v.SuggestedState = playbook.StateDraft
		v.Reason = "repeated historical failure, auto-rejected"
	default:
		v.Passed = true
		v.SuggestedState = playbook.StateDraft
		v.Ambiguous = true
		v.Reason = "ambiguous evidence, defer to validator"
	}

	logging.GateLog("Gate: sessions=%d success=%d failure=%d -> passed=%v (%s)",
		v.SessionCount, v.SuccessCount, v.FailureCount, v.Passed, v.Reason)
	return v
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
