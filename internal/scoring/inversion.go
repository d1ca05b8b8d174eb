package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cassmem/internal/config"
	"cassmem/internal/playbook"
	"cassmem/internal/similarity"
)

// ShouldInvert reports whether a bullet has accumulated enough harmful
// evidence to flip into an anti-pattern: decayedHarmful >= 3 and more than
// twice decayedHelpful. Pinned bullets and existing anti-patterns never
// invert; neither do inactive ones.
func ShouldInvert(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) bool {
	if b.Pinned || b.Kind == playbook.KindAntiPattern || b.IsNegative || !b.IsActive() {
		return false
	}
	helpful, harmful := DecayedCounts(b, cfg, now)
	return harmful >= 3 && harmful > 2*helpful
}

// Invert constructs the replacement anti-pattern for a harmful bullet. The
// caller deprecates the original with ReplacedBy pointing at the new bullet.
// Half-life is inherited from config, not from the original.
func Invert(b *playbook.Bullet, reason string, cfg config.ScoringConfig) *playbook.Bullet {
	now := time.Now().UTC()
	content := fmt.Sprintf("AVOID: %s", stripRulePrefix(b.Content))
	if reason != "" {
		content = fmt.Sprintf("%s. %s", content, reason)
	}

	inv := &playbook.Bullet{
		ID:          uuid.NewString(),
		Content:     content,
		Category:    b.Category,
		Kind:        playbook.KindAntiPattern,
		Type:        "anti-pattern",
		IsNegative:  true,
		Scope:       b.Scope,
		ScopeKey:    b.ScopeKey,
		Workspace:   b.Workspace,
		State:       playbook.StateActive,
		Maturity:    playbook.MaturityCandidate,
		Tags:        append([]string(nil), b.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
		ContentHash: similarity.HashContent(content),

		ConfidenceDecayHalfLifeDays: cfg.DecayHalfLifeDays,
	}
	inv.SourceSessions = append(inv.SourceSessions, b.SourceSessions...)
	return inv
}

// stripRulePrefix drops an imperative lead-in ("always", "prefer") so the
// AVOID phrasing reads naturally.
func stripRulePrefix(content string) string {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"always ", "prefer ", "you should ", "make sure to "} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}
