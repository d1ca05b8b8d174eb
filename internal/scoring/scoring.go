// Package scoring implements the time-decayed feedback engine: decayed counts,
// effective score, the maturity state machine, demotion and staleness, and the
// anti-pattern inversion rule. All functions are pure; the curator drives
// state changes.
package scoring

import (
	"math"
	"time"

	"cassmem/internal/config"
	"cassmem/internal/playbook"
)

// maturityMultiplier weights the raw score by quality tier.
var maturityMultiplier = map[playbook.Maturity]float64{
	playbook.MaturityCandidate:   0.5,
	playbook.MaturityEstablished: 1.0,
	playbook.MaturityProven:      1.5,
	playbook.MaturityDeprecated:  0.0,
}

// DecayContribution returns 0.5^(age/halfLife) for an event's age in days.
// Future-dated events are clamped to the present and contribute 1.
func DecayContribution(eventTime, now time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = config.DefaultScoringConfig().DecayHalfLifeDays
	}
	ageDays := now.Sub(eventTime).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// halfLifeFor resolves the bullet-level half-life override against config.
func halfLifeFor(b *playbook.Bullet, cfg config.ScoringConfig) float64 {
	if b.ConfidenceDecayHalfLifeDays > 0 {
		return b.ConfidenceDecayHalfLifeDays
	}
	return cfg.DecayHalfLifeDays
}

// DecayedCounts sums the decayed contributions of the bullet's feedback
// events, partitioned by type.
func DecayedCounts(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) (helpful, harmful float64) {
	halfLife := halfLifeFor(b, cfg)
	for _, e := range b.FeedbackEvents {
		c := DecayContribution(e.Timestamp, now, halfLife)
		switch e.Type {
		case playbook.FeedbackHelpful:
			helpful += c
		case playbook.FeedbackHarmful:
			harmful += c
		}
	}
	return helpful, harmful
}

// RawScore is decayedHelpful - harmfulMultiplier * decayedHarmful. The
// asymmetry makes harmful evidence degrade trust much faster than helpful
// evidence grows it.
func RawScore(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) float64 {
	helpful, harmful := DecayedCounts(b, cfg, now)
	mult := cfg.HarmfulMultiplier
	if mult <= 0 {
		mult = 4
	}
	return helpful - mult*harmful
}

// EffectiveScore is the raw score weighted by maturity.
func EffectiveScore(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) float64 {
	return RawScore(b, cfg, now) * maturityMultiplier[b.Maturity]
}

// NextMaturity evaluates the maturity state machine against current decayed
// feedback. Deprecated is terminal.
func NextMaturity(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) playbook.Maturity {
	if b.Maturity == playbook.MaturityDeprecated || b.Deprecated {
		return playbook.MaturityDeprecated
	}

	helpful, harmful := DecayedCounts(b, cfg, now)
	total := helpful + harmful
	harmfulRatio := 0.0
	if total > 0 {
		harmfulRatio = harmful / total
	}

	switch {
	case harmfulRatio > 0.3 && total > cfg.MinFeedbackForActive:
		return playbook.MaturityDeprecated
	case total < cfg.MinFeedbackForActive:
		return playbook.MaturityCandidate
	case helpful >= cfg.MinHelpfulForProven && harmfulRatio < cfg.MaxHarmfulRatioForProven:
		return playbook.MaturityProven
	default:
		return playbook.MaturityEstablished
	}
}

// promotionRank orders maturities for the promotion guard. Promotion may only
// move up this order; proven and deprecated are sinks.
var promotionRank = map[playbook.Maturity]int{
	playbook.MaturityCandidate:   0,
	playbook.MaturityEstablished: 1,
	playbook.MaturityProven:      2,
}

// Promote returns the maturity the bullet should be promoted to, or the
// current one when no promotion applies. Regression never happens through
// promotion; demotion is a separate path.
func Promote(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) playbook.Maturity {
	if b.Maturity == playbook.MaturityProven || b.Maturity == playbook.MaturityDeprecated {
		return b.Maturity
	}
	next := NextMaturity(b, cfg, now)
	if next == playbook.MaturityDeprecated {
		// The FSM may recommend deprecation, but that is the demotion path's
		// call, not a promotion.
		return b.Maturity
	}
	if promotionRank[next] > promotionRank[b.Maturity] {
		return next
	}
	return b.Maturity
}

// DemotionOutcome is the demotion pass verdict for one bullet.
type DemotionOutcome int

const (
	DemotionNone DemotionOutcome = iota
	DemotionDemote
	DemotionAutoDeprecate
)

// Demote evaluates the demotion rule. Pinned bullets are exempt. Returns the
// outcome and, for DemotionDemote, the maturity one level down.
func Demote(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) (DemotionOutcome, playbook.Maturity) {
	if b.Pinned {
		return DemotionNone, b.Maturity
	}
	effective := EffectiveScore(b, cfg, now)
	if effective < -cfg.PruneHarmfulThreshold {
		return DemotionAutoDeprecate, b.Maturity
	}
	if effective < 0 {
		switch b.Maturity {
		case playbook.MaturityProven:
			return DemotionDemote, playbook.MaturityEstablished
		case playbook.MaturityEstablished:
			return DemotionDemote, playbook.MaturityCandidate
		}
	}
	return DemotionNone, b.Maturity
}

// IsStale reports whether the bullet has gone unvalidated for longer than
// staleDays: no events and old, or last event older than the window.
func IsStale(b *playbook.Bullet, cfg config.ScoringConfig, now time.Time) bool {
	staleDays := cfg.StaleDays
	if staleDays <= 0 {
		staleDays = 90
	}
	window := time.Duration(staleDays) * 24 * time.Hour

	last := b.LastEventTime()
	if last.IsZero() {
		return now.Sub(b.CreatedAt) > window
	}
	return now.Sub(last) > window
}
