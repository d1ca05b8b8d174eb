// Package briefing assembles the ranked, context-sensitive view of the
// playbook for a task: relevant rules, anti-patterns to avoid, historical
// snippets, and warnings for deprecated approaches.
package briefing

import (
	"context"
	"sort"
	"strings"
	"time"

	"cassmem/internal/config"
	"cassmem/internal/history"
	"cassmem/internal/logging"
	"cassmem/internal/playbook"
	"cassmem/internal/scoring"
	"cassmem/internal/similarity"
)

// effectiveFloor keeps mildly negative or zero-scored bullets rankable
// instead of zeroing them out of the briefing entirely.
const effectiveFloor = 0.1

// RankedBullet pairs a bullet with its briefing score.
type RankedBullet struct {
	Bullet    *playbook.Bullet `json:"bullet"`
	Relevance float64          `json:"relevance"`
	Final     float64          `json:"final"`
}

// Warning flags a deprecated pattern spotted in the task or history.
type Warning struct {
	Pattern     string `json:"pattern"`
	Reason      string `json:"reason,omitempty"`
	Replacement string `json:"replacement,omitempty"`
	FoundIn     string `json:"foundIn"` // "task" | "history"
}

// Result is the briefing for one task.
type Result struct {
	Task               string            `json:"task"`
	RelevantBullets    []RankedBullet    `json:"relevantBullets"`
	AntiPatterns       []RankedBullet    `json:"antiPatterns"`
	HistorySnippets    []history.Snippet `json:"historySnippets"`
	DeprecatedWarnings []Warning         `json:"deprecatedWarnings"`
	SuggestedQueries   []string          `json:"suggestedHistoryQueries"`

	// HistoryUnavailable annotates a degraded, partial result.
	HistoryUnavailable bool `json:"historyUnavailable,omitempty"`
}

// Searcher is the slice of the history client the ranker needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts history.SearchOptions) []history.Snippet
	Available() bool
}

// Embedder is the optional semantic hook consulted when bullets carry
// embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Ranker builds briefings.
type Ranker struct {
	src      playbook.Sources
	search   Searcher
	embedder Embedder
	cfg      *config.Config
}

// New builds a ranker. embedder may be nil.
func New(src playbook.Sources, search Searcher, embedder Embedder, cfg *config.Config) *Ranker {
	return &Ranker{src: src, search: search, embedder: embedder, cfg: cfg}
}

// Options narrow a briefing request.
type Options struct {
	// Workspace filters workspace-scoped bullets to the matching workspace;
	// bullets of other scopes are retained.
	Workspace string
}

// Build assembles the briefing for a task.
func (r *Ranker) Build(ctx context.Context, task string, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryRanker, "Build")
	defer timer.Stop()

	pb, err := playbook.LoadMerged(r.src)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	keywords := similarity.Keywords(task, 8)

	var taskVec []float32
	if r.embedder != nil {
		if vec, embErr := r.embedder.Embed(ctx, task); embErr == nil {
			taskVec = vec
		} else {
			logging.RankerDebug("Task embedding unavailable: %v", embErr)
		}
	}

	var ranked []RankedBullet
	for _, b := range playbook.GetActiveBullets(pb) {
		if opts.Workspace != "" && b.Scope == playbook.ScopeWorkspace && b.Workspace != opts.Workspace {
			continue
		}

		relevance := keywordRelevance(b, keywords)
		if taskVec != nil && len(b.Embedding) > 0 {
			if cos := similarity.Cosine(taskVec, b.Embedding); cos > relevance {
				relevance = cos
			}
		}
		if relevance <= 0 {
			continue
		}

		effective := scoring.EffectiveScore(b, r.cfg.Scoring, now)
		if effective < effectiveFloor {
			effective = effectiveFloor
		}
		final := relevance * effective
		if final <= 0 {
			continue
		}
		ranked = append(ranked, RankedBullet{Bullet: b, Relevance: relevance, Final: final})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Final > ranked[j].Final })
	max := r.cfg.Context.MaxBulletsInContext
	if max <= 0 {
		max = 10
	}
	if len(ranked) > max {
		ranked = ranked[:max]
	}

	res := &Result{Task: task, SuggestedQueries: suggestedQueries(keywords)}
	for _, rb := range ranked {
		if rb.Bullet.IsNegative || rb.Bullet.Kind == playbook.KindAntiPattern {
			res.AntiPatterns = append(res.AntiPatterns, rb)
		} else {
			res.RelevantBullets = append(res.RelevantBullets, rb)
		}
	}

	if r.search != nil && r.search.Available() {
		res.HistorySnippets = r.search.Search(ctx, strings.Join(keywords, " "), history.SearchOptions{
			Limit:     r.cfg.Context.MaxHistoryInContext,
			Days:      r.cfg.Context.SessionLookbackDays,
			Workspace: opts.Workspace,
		})
	} else {
		res.HistoryUnavailable = true
	}

	res.DeprecatedWarnings = deprecatedWarnings(pb.DeprecatedPatterns, task, res.HistorySnippets)

	logging.Ranker("Briefing for %q: %d rules, %d anti-patterns, %d snippets, %d warnings",
		truncate(task, 50), len(res.RelevantBullets), len(res.AntiPatterns),
		len(res.HistorySnippets), len(res.DeprecatedWarnings))
	return res, nil
}

// keywordRelevance is the overlap between task keywords and the bullet's
// content plus tags, normalized by keyword count.
func keywordRelevance(b *playbook.Bullet, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(b.Content + " " + strings.Join(b.Tags, " ") + " " + b.Category)
	hits := 0
	for _, k := range keywords {
		if strings.Contains(haystack, k) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func deprecatedWarnings(patterns []playbook.DeprecatedPattern, task string, snippets []history.Snippet) []Warning {
	var out []Warning
	taskLower := strings.ToLower(task)
	for _, p := range patterns {
		needle := strings.ToLower(p.Pattern)
		if needle == "" {
			continue
		}
		if strings.Contains(taskLower, needle) {
			out = append(out, Warning{Pattern: p.Pattern, Reason: p.Reason, Replacement: p.Replacement, FoundIn: "task"})
			continue
		}
		for _, s := range snippets {
			if strings.Contains(strings.ToLower(s.Snippet), needle) {
				out = append(out, Warning{Pattern: p.Pattern, Reason: p.Reason, Replacement: p.Replacement, FoundIn: "history"})
				break
			}
		}
	}
	return out
}

func suggestedQueries(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	var out []string
	out = append(out, strings.Join(keywords, " "))
	if len(keywords) >= 2 {
		out = append(out, strings.Join(keywords[:2], " "))
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
