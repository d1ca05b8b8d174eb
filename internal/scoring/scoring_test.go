package scoring

import (
	"math"
	"testing"
	"time"

	"cassmem/internal/config"
	"cassmem/internal/playbook"
)

func testCfg() config.ScoringConfig {
	return config.ScoringConfig{
		DecayHalfLifeDays:        90,
		HarmfulMultiplier:        4,
		MinFeedbackForActive:     3,
		MinHelpfulForProven:      5,
		MaxHarmfulRatioForProven: 0.1,
		PruneHarmfulThreshold:    2,
	}
}

func bulletWithEvents(maturity playbook.Maturity, events ...playbook.FeedbackEvent) *playbook.Bullet {
	b := &playbook.Bullet{
		ID:             "b1",
		Content:        "rule",
		State:          playbook.StateActive,
		Maturity:       maturity,
		FeedbackEvents: events,
		CreatedAt:      time.Now().Add(-time.Hour),
	}
	b.RegenerateCounters()
	return b
}

func helpfulAt(ts time.Time) playbook.FeedbackEvent {
	return playbook.FeedbackEvent{Type: playbook.FeedbackHelpful, Timestamp: ts}
}

func harmfulAt(ts time.Time) playbook.FeedbackEvent {
	return playbook.FeedbackEvent{Type: playbook.FeedbackHarmful, Timestamp: ts}
}

func TestDecayContribution(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"fresh event", 0, 1},
		{"one half-life", 90 * 24 * time.Hour, 0.5},
		{"two half-lives", 180 * 24 * time.Hour, 0.25},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DecayContribution(now.Add(-tc.age), now, 90)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("contribution = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecayClampsFutureEvents(t *testing.T) {
	now := time.Now()
	future := DecayContribution(now.Add(72*time.Hour), now, 90)
	present := DecayContribution(now, now, 90)
	if future != present || future != 1 {
		t.Errorf("future contribution = %v, want %v (clamped to now)", future, present)
	}
}

func TestPerBulletHalfLifeOverride(t *testing.T) {
	now := time.Now()
	b := bulletWithEvents(playbook.MaturityCandidate, helpfulAt(now.Add(-10*24*time.Hour)))
	b.ConfidenceDecayHalfLifeDays = 10

	helpful, _ := DecayedCounts(b, testCfg(), now)
	if math.Abs(helpful-0.5) > 1e-9 {
		t.Errorf("decayed helpful = %v, want 0.5 with 10-day override", helpful)
	}
}

func TestEffectiveScoreProvenExample(t *testing.T) {
	// decayedHelpful = 6, decayedHarmful = 0 at proven: (6 - 4*0) * 1.5 = 9.0
	now := time.Now()
	var events []playbook.FeedbackEvent
	for i := 0; i < 6; i++ {
		events = append(events, helpfulAt(now))
	}
	b := bulletWithEvents(playbook.MaturityCandidate, events...)

	next := NextMaturity(b, testCfg(), now)
	if next != playbook.MaturityProven {
		t.Fatalf("maturity = %s, want proven", next)
	}
	b.Maturity = next
	if got := EffectiveScore(b, testCfg(), now); math.Abs(got-9.0) > 1e-6 {
		t.Errorf("effective = %v, want 9.0", got)
	}
}

func TestNextMaturityTable(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		helpful  int
		harmful  int
		from     playbook.Maturity
		want     playbook.Maturity
	}{
		{"no feedback stays candidate", 0, 0, playbook.MaturityCandidate, playbook.MaturityCandidate},
		{"below active threshold", 2, 0, playbook.MaturityCandidate, playbook.MaturityCandidate},
		{"established band", 4, 0, playbook.MaturityCandidate, playbook.MaturityEstablished},
		{"proven threshold", 6, 0, playbook.MaturityCandidate, playbook.MaturityProven},
		{"harmful ratio deprecates", 2, 3, playbook.MaturityEstablished, playbook.MaturityDeprecated},
		{"deprecated is terminal", 10, 0, playbook.MaturityDeprecated, playbook.MaturityDeprecated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var events []playbook.FeedbackEvent
			for i := 0; i < tc.helpful; i++ {
				events = append(events, helpfulAt(now))
			}
			for i := 0; i < tc.harmful; i++ {
				events = append(events, harmfulAt(now))
			}
			b := bulletWithEvents(tc.from, events...)
			if got := NextMaturity(b, testCfg(), now); got != tc.want {
				t.Errorf("NextMaturity = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPromoteNeverRegresses(t *testing.T) {
	now := time.Now()

	// Proven bullet whose feedback no longer supports proven.
	b := bulletWithEvents(playbook.MaturityProven, helpfulAt(now), helpfulAt(now), helpfulAt(now), harmfulAt(now))
	if got := Promote(b, testCfg(), now); got != playbook.MaturityProven {
		t.Errorf("Promote regressed proven to %s", got)
	}

	// Candidate earning established.
	c := bulletWithEvents(playbook.MaturityCandidate, helpfulAt(now), helpfulAt(now), helpfulAt(now), helpfulAt(now))
	if got := Promote(c, testCfg(), now); got != playbook.MaturityEstablished {
		t.Errorf("Promote = %s, want established", got)
	}
}

func TestDemote(t *testing.T) {
	now := time.Now()

	// Mildly negative effective score: one level down.
	b := bulletWithEvents(playbook.MaturityProven, harmfulAt(now.Add(-300*24*time.Hour)))
	outcome, to := Demote(b, testCfg(), now)
	if outcome != DemotionDemote || to != playbook.MaturityEstablished {
		t.Errorf("Demote = (%v, %s), want one-level demotion", outcome, to)
	}

	// Strongly negative: auto-deprecate.
	var harm []playbook.FeedbackEvent
	for i := 0; i < 3; i++ {
		harm = append(harm, harmfulAt(now))
	}
	worst := bulletWithEvents(playbook.MaturityEstablished, harm...)
	if outcome, _ := Demote(worst, testCfg(), now); outcome != DemotionAutoDeprecate {
		t.Errorf("Demote = %v, want auto-deprecate", outcome)
	}

	// Pinned bullets are exempt.
	worst.Pinned = true
	if outcome, _ := Demote(worst, testCfg(), now); outcome != DemotionNone {
		t.Errorf("pinned bullet demotion = %v, want none", outcome)
	}
}

func TestShouldInvertBoundary(t *testing.T) {
	now := time.Now()
	cfg := testCfg()

	// 5 harmful now, 1 helpful from 200 days ago at 90d half-life:
	// decayed helpful ~ 0.214, harmful = 5 -> invert.
	events := []playbook.FeedbackEvent{helpfulAt(now.Add(-200 * 24 * time.Hour))}
	for i := 0; i < 5; i++ {
		events = append(events, harmfulAt(now))
	}
	b := bulletWithEvents(playbook.MaturityEstablished, events...)

	if !ShouldInvert(b, cfg, now) {
		t.Error("bullet with overwhelming harmful evidence must invert")
	}

	b.Pinned = true
	if ShouldInvert(b, cfg, now) {
		t.Error("pinned bullet must never invert")
	}
	b.Pinned = false

	b.Kind = playbook.KindAntiPattern
	b.IsNegative = true
	if ShouldInvert(b, cfg, now) {
		t.Error("anti-patterns must never invert")
	}
}

func TestShouldInvertNeedsDominance(t *testing.T) {
	now := time.Now()
	// 3 harmful vs 2 helpful: harmful not > 2*helpful, no inversion.
	events := []playbook.FeedbackEvent{helpfulAt(now), helpfulAt(now)}
	for i := 0; i < 3; i++ {
		events = append(events, harmfulAt(now))
	}
	b := bulletWithEvents(playbook.MaturityEstablished, events...)
	if ShouldInvert(b, testCfg(), now) {
		t.Error("inversion requires harmful > 2*helpful")
	}
}

func TestInvertShape(t *testing.T) {
	cfg := testCfg()
	b := bulletWithEvents(playbook.MaturityEstablished)
	b.Content = "Always use global singletons for config"
	b.Category = "architecture"
	b.Scope = playbook.ScopeWorkspace
	b.Workspace = "repo1"
	b.ConfidenceDecayHalfLifeDays = 7 // must NOT be inherited

	inv := Invert(b, "Caused flaky tests", cfg)
	if inv.Kind != playbook.KindAntiPattern || !inv.IsNegative {
		t.Error("inverted bullet must be a negative anti-pattern")
	}
	if inv.Maturity != playbook.MaturityCandidate {
		t.Errorf("inverted maturity = %s, want candidate", inv.Maturity)
	}
	want := "AVOID: use global singletons for config. Caused flaky tests"
	if inv.Content != want {
		t.Errorf("content = %q, want %q", inv.Content, want)
	}
	if inv.Scope != b.Scope || inv.Workspace != b.Workspace {
		t.Error("scope/workspace not copied")
	}
	if inv.ConfidenceDecayHalfLifeDays != cfg.DecayHalfLifeDays {
		t.Errorf("half-life = %v, want config value %v", inv.ConfidenceDecayHalfLifeDays, cfg.DecayHalfLifeDays)
	}
}

func TestIsStale(t *testing.T) {
	now := time.Now()
	cfg := testCfg()
	cfg.StaleDays = 90

	fresh := bulletWithEvents(playbook.MaturityCandidate, helpfulAt(now.Add(-24*time.Hour)))
	if IsStale(fresh, cfg, now) {
		t.Error("fresh bullet marked stale")
	}

	idle := bulletWithEvents(playbook.MaturityCandidate, helpfulAt(now.Add(-100*24*time.Hour)))
	if !IsStale(idle, cfg, now) {
		t.Error("bullet idle past staleDays not marked stale")
	}

	eventless := bulletWithEvents(playbook.MaturityCandidate)
	eventless.CreatedAt = now.Add(-100 * 24 * time.Hour)
	if !IsStale(eventless, cfg, now) {
		t.Error("old eventless bullet not marked stale")
	}
}
