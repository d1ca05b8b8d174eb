// Package curator applies batches of playbook deltas with deduplication and
// merging, then runs the lifecycle post-processing pass: promotions,
// demotions/auto-prune, and anti-pattern inversions.
package curator

import (
	"fmt"
	"time"

	"cassmem/internal/config"
	"cassmem/internal/logging"
	"cassmem/internal/playbook"
	"cassmem/internal/scoring"
	"cassmem/internal/similarity"
)

// DeltaKind discriminates the proposed change.
type DeltaKind string

const (
	DeltaAdd       DeltaKind = "add"
	DeltaHelpful   DeltaKind = "helpful"
	DeltaHarmful   DeltaKind = "harmful"
	DeltaReplace   DeltaKind = "replace"
	DeltaDeprecate DeltaKind = "deprecate"
	DeltaMerge     DeltaKind = "merge"
)

// Delta is one proposed change to a playbook.
type Delta struct {
	Kind DeltaKind `json:"kind"`

	// add
	Bullet        *playbook.NewBulletInput `json:"bullet,omitempty"`
	SourceSession string                   `json:"sourceSession,omitempty"`

	// helpful / harmful / replace / deprecate
	BulletID string `json:"bulletId,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Context  string `json:"context,omitempty"`

	// replace
	NewContent string `json:"newContent,omitempty"`

	// deprecate / merge
	ReplacedBy    string   `json:"replacedBy,omitempty"`
	BulletIDs     []string `json:"bulletIds,omitempty"`
	MergedContent string   `json:"mergedContent,omitempty"`

	// SuggestedState lets the evidence gate pre-activate auto-accepted adds.
	SuggestedState playbook.State `json:"suggestedState,omitempty"`
}

// Promotion records one maturity change made by post-processing.
type Promotion struct {
	BulletID string            `json:"bulletId"`
	From     playbook.Maturity `json:"from"`
	To       playbook.Maturity `json:"to"`
	Reason   string            `json:"reason"`
}

// Inversion records one bullet flipped into an anti-pattern.
type Inversion struct {
	OriginalID    string `json:"originalId"`
	AntiPatternID string `json:"antiPatternId"`
}

// Result summarizes one curation pass. The playbook is mutated in place.
type Result struct {
	Applied    int         `json:"applied"`
	Skipped    int         `json:"skipped"`
	Conflicts  []string    `json:"conflicts,omitempty"`
	Promotions []Promotion `json:"promotions,omitempty"`
	Inversions []Inversion `json:"inversions,omitempty"`
	Pruned     int         `json:"pruned"`
}

// Apply processes the delta batch against the playbook, then runs the
// post-processing pass once. The caller holds the playbook file's lock.
func Apply(pb *playbook.Playbook, deltas []Delta, cfg *config.Config) Result {
	timer := logging.StartTimer(logging.CategoryCurator, "Apply")
	defer timer.Stop()

	var res Result
	for i, d := range deltas {
		if err := applyOne(pb, d, cfg, &res); err != nil {
			res.Skipped++
			res.Conflicts = append(res.Conflicts, fmt.Sprintf("delta %d (%s): %v", i, d.Kind, err))
			logging.CuratorDebug("Skipped delta %d (%s): %v", i, d.Kind, err)
		}
	}

	postProcess(pb, cfg, &res)

	logging.Curator("Curation: %d applied, %d skipped, %d promotions, %d inversions, %d pruned",
		res.Applied, res.Skipped, len(res.Promotions), len(res.Inversions), res.Pruned)
	return res
}

func applyOne(pb *playbook.Playbook, d Delta, cfg *config.Config, res *Result) error {
	switch d.Kind {
	case DeltaAdd:
		return applyAdd(pb, d, cfg, res)
	case DeltaHelpful:
		if !playbook.RecordFeedbackEvent(pb, d.BulletID, playbook.FeedbackHelpful, playbook.FeedbackOptions{
			SessionPath: d.SourceSession,
			Context:     d.Context,
		}) {
			return fmt.Errorf("unknown bullet %q", d.BulletID)
		}
		res.Applied++
		return nil
	case DeltaHarmful:
		if !playbook.RecordFeedbackEvent(pb, d.BulletID, playbook.FeedbackHarmful, playbook.FeedbackOptions{
			SessionPath: d.SourceSession,
			Reason:      d.Reason,
			Context:     d.Context,
		}) {
			return fmt.Errorf("unknown bullet %q", d.BulletID)
		}
		res.Applied++
		return nil
	case DeltaReplace:
		b := playbook.FindBullet(pb, d.BulletID)
		if b == nil {
			return fmt.Errorf("unknown bullet %q", d.BulletID)
		}
		if d.NewContent == "" {
			return fmt.Errorf("replace requires newContent")
		}
		b.Content = d.NewContent
		b.ContentHash = similarity.HashContent(d.NewContent)
		b.UpdatedAt = time.Now().UTC()
		res.Applied++
		return nil
	case DeltaDeprecate:
		if !playbook.DeprecateBullet(pb, d.BulletID, d.Reason, d.ReplacedBy) {
			return fmt.Errorf("unknown bullet %q", d.BulletID)
		}
		res.Applied++
		return nil
	case DeltaMerge:
		return applyMerge(pb, d, cfg, res)
	default:
		return fmt.Errorf("unknown delta kind %q", d.Kind)
	}
}

func applyAdd(pb *playbook.Playbook, d Delta, cfg *config.Config, res *Result) error {
	if d.Bullet == nil || d.Bullet.Content == "" || d.Bullet.Category == "" {
		return fmt.Errorf("add requires content and category")
	}

	active := playbook.GetActiveBullets(pb)

	// Exact duplicate by normalized hash: nothing to learn.
	hash := similarity.HashContent(d.Bullet.Content)
	for _, b := range active {
		if b.ContentHash == hash {
			return fmt.Errorf("duplicate of active bullet %s", b.ID)
		}
	}

	// Near-duplicate: reinforce the existing bullet instead of adding noise.
	threshold := cfg.Scoring.DedupSimilarityThreshold
	if threshold <= 0 {
		threshold = 0.85
	}
	if match, score := playbook.FindSimilarBullet(active, d.Bullet.Content, threshold); match != nil {
		playbook.RecordFeedbackEvent(pb, match.ID, playbook.FeedbackHelpful, playbook.FeedbackOptions{
			SessionPath: d.SourceSession,
			Context:     fmt.Sprintf("Reinforced by similar insight (jaccard=%.2f): %s", score, d.Bullet.Content),
		})
		res.Applied++
		logging.CuratorDebug("Add folded into %s (jaccard=%.2f)", match.ID, score)
		return nil
	}

	b := playbook.AddBullet(pb, *d.Bullet, d.SourceSession, cfg.Scoring.DecayHalfLifeDays)
	if d.SuggestedState == playbook.StateActive {
		b.State = playbook.StateActive
	}
	res.Applied++
	return nil
}

func applyMerge(pb *playbook.Playbook, d Delta, cfg *config.Config, res *Result) error {
	if d.MergedContent == "" {
		return fmt.Errorf("merge requires mergedContent")
	}

	var sources []*playbook.Bullet
	for _, id := range d.BulletIDs {
		if b := playbook.FindBullet(pb, id); b != nil {
			sources = append(sources, b)
		}
	}
	if len(sources) < 2 {
		return fmt.Errorf("merge requires at least 2 resolvable sources, got %d", len(sources))
	}

	tagSet := make(map[string]struct{})
	var tags []string
	for _, s := range sources {
		for _, t := range s.Tags {
			if _, ok := tagSet[t]; !ok {
				tagSet[t] = struct{}{}
				tags = append(tags, t)
			}
		}
	}

	merged := playbook.AddBullet(pb, playbook.NewBulletInput{
		Content:  d.MergedContent,
		Category: sources[0].Category,
		Kind:     sources[0].Kind,
		Scope:    sources[0].Scope,
		ScopeKey: sources[0].ScopeKey,
		Tags:     tags,
	}, d.SourceSession, cfg.Scoring.DecayHalfLifeDays)

	for _, s := range sources {
		playbook.DeprecateBullet(pb, s.ID, fmt.Sprintf("merged into %s", merged.ID), merged.ID)
	}

	res.Applied++
	return nil
}

// postProcess runs once per curator call, in order: promotions, then
// demotions/auto-prune, then inversions.
func postProcess(pb *playbook.Playbook, cfg *config.Config, res *Result) {
	now := time.Now().UTC()

	// 1. Promotions.
	for _, b := range pb.Bullets {
		if !b.IsActive() {
			continue
		}
		next := scoring.Promote(b, cfg.Scoring, now)
		if next != b.Maturity {
			res.Promotions = append(res.Promotions, Promotion{
				BulletID: b.ID,
				From:     b.Maturity,
				To:       next,
				Reason:   "feedback thresholds met",
			})
			logging.Scoring("Promoted %s: %s -> %s", b.ID, b.Maturity, next)
			b.Maturity = next
			if b.State == playbook.StateDraft && next != playbook.MaturityCandidate {
				b.State = playbook.StateActive
			}
			b.UpdatedAt = now
		}
	}

	// 2. Demotions / auto-prune. Inversion candidates are left for the
	// inversion pass so the anti-pattern replacement is produced instead of a
	// bare prune.
	for _, b := range pb.Bullets {
		if !b.IsActive() || scoring.ShouldInvert(b, cfg.Scoring, now) {
			continue
		}
		outcome, demoted := scoring.Demote(b, cfg.Scoring, now)
		switch outcome {
		case scoring.DemotionAutoDeprecate:
			playbook.DeprecateBullet(pb, b.ID, "auto-pruned: effective score below prune threshold", "")
			res.Pruned++
			logging.Scoring("Auto-pruned %s", b.ID)
		case scoring.DemotionDemote:
			logging.Scoring("Demoted %s: %s -> %s", b.ID, b.Maturity, demoted)
			b.Maturity = demoted
			b.UpdatedAt = now
		}
	}

	// 3. Inversions.
	for _, b := range pb.Bullets {
		if !scoring.ShouldInvert(b, cfg.Scoring, now) {
			continue
		}
		reason := lastHarmfulReason(b)
		inv := scoring.Invert(b, reason, cfg.Scoring)
		pb.Bullets = append(pb.Bullets, inv)
		playbook.DeprecateBullet(pb, b.ID, "inverted into anti-pattern", inv.ID)
		res.Inversions = append(res.Inversions, Inversion{OriginalID: b.ID, AntiPatternID: inv.ID})
		logging.Curator("Inverted %s -> anti-pattern %s", b.ID, inv.ID)
	}
}

func lastHarmfulReason(b *playbook.Bullet) string {
	for i := len(b.FeedbackEvents) - 1; i >= 0; i-- {
		e := b.FeedbackEvents[i]
		if e.Type == playbook.FeedbackHarmful && e.Reason != "" {
			return e.Reason
		}
	}
	return "Repeatedly caused problems"
}
