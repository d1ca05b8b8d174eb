package playbook

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"cassmem/internal/logging"
	"cassmem/internal/similarity"
)

// agentMarkers map session-path substrings to the agent that produced the
// session. Unmatched paths yield "unknown".
var agentMarkers = []struct {
	marker string
	agent  string
}{
	{".claude", "claude-code"},
	{".cursor", "cursor"},
	{".codex", "codex"},
	{".aider", "aider"},
}

// DeriveSourceAgent guesses the producing agent from a session path.
func DeriveSourceAgent(sessionPath string) string {
	lower := strings.ToLower(sessionPath)
	for _, m := range agentMarkers {
		if strings.Contains(lower, m.marker) {
			return m.agent
		}
	}
	return "unknown"
}

// NewBulletInput is the caller-supplied portion of a fresh bullet.
type NewBulletInput struct {
	Content   string
	Category  string
	Kind      Kind
	Scope     Scope
	ScopeKey  string
	Workspace string
	Tags      []string
}

// AddBullet constructs a fresh bullet with lifecycle defaults and appends it.
// New bullets start as draft candidates with zero feedback.
func AddBullet(pb *Playbook, in NewBulletInput, sourceSession string, halfLifeDays float64) *Bullet {
	now := time.Now().UTC()
	kind := in.Kind
	if kind == "" {
		kind = KindWorkflowRule
	}
	scope := in.Scope
	if scope == "" {
		scope = ScopeGlobal
	}

	b := &Bullet{
		ID:          uuid.NewString(),
		Content:     in.Content,
		Category:    in.Category,
		Kind:        kind,
		Type:        "rule",
		IsNegative:  kind == KindAntiPattern,
		Scope:       scope,
		ScopeKey:    in.ScopeKey,
		Workspace:   in.Workspace,
		State:       StateDraft,
		Maturity:    MaturityCandidate,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
		ContentHash: similarity.HashContent(in.Content),

		ConfidenceDecayHalfLifeDays: halfLifeDays,
	}
	if b.IsNegative {
		b.Type = "anti-pattern"
	}
	if sourceSession != "" {
		b.SourceSessions = []string{sourceSession}
		b.SourceAgents = []string{DeriveSourceAgent(sourceSession)}
	}

	pb.Bullets = append(pb.Bullets, b)
	logging.Playbook("Added bullet %s [%s] %q", b.ID, b.Category, truncate(b.Content, 60))
	return b
}

// FindBullet returns the bullet with the given id, or nil.
func FindBullet(pb *Playbook, id string) *Bullet {
	for _, b := range pb.Bullets {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// GetActiveBullets returns bullets not excluded by any retirement marker.
func GetActiveBullets(pb *Playbook) []*Bullet {
	var out []*Bullet
	for _, b := range pb.Bullets {
		if b.IsActive() {
			out = append(out, b)
		}
	}
	return out
}

// GetBulletsByCategory groups case-insensitively by category.
func GetBulletsByCategory(pb *Playbook, category string) []*Bullet {
	var out []*Bullet
	for _, b := range pb.Bullets {
		if strings.EqualFold(b.Category, category) {
			out = append(out, b)
		}
	}
	return out
}

// FilterBulletsByScope keeps bullets matching the scope (and scope key, when
// given).
func FilterBulletsByScope(bullets []*Bullet, scope Scope, scopeKey string) []*Bullet {
	var out []*Bullet
	for _, b := range bullets {
		if b.Scope != scope {
			continue
		}
		if scopeKey != "" && b.ScopeKey != scopeKey {
			continue
		}
		out = append(out, b)
	}
	return out
}

// FindSimilarBullet scans all active bullets and returns the single
// highest-Jaccard match at or above threshold. Ties break by insertion order.
func FindSimilarBullet(bullets []*Bullet, content string, threshold float64) (*Bullet, float64) {
	var best *Bullet
	bestScore := 0.0
	for _, b := range bullets {
		if !b.IsActive() {
			continue
		}
		score := similarity.Jaccard(b.Content, content)
		if score >= threshold && score > bestScore {
			best = b
			bestScore = score
		}
	}
	return best, bestScore
}

// DeprecateBullet retires a bullet, setting all three retirement markers so
// they agree. Returns false when the id is unknown.
func DeprecateBullet(pb *Playbook, id, reason, replacedBy string) bool {
	b := FindBullet(pb, id)
	if b == nil {
		return false
	}
	now := time.Now().UTC()
	b.Deprecated = true
	b.DeprecatedAt = &now
	b.DeprecationReason = reason
	b.State = StateRetired
	b.Maturity = MaturityDeprecated
	if replacedBy != "" {
		b.ReplacedBy = replacedBy
	}
	b.UpdatedAt = now
	logging.Playbook("Deprecated bullet %s: %s", id, reason)
	return true
}

// PinBullet protects a bullet from auto-deprecation, auto-prune and inversion.
func PinBullet(pb *Playbook, id, reason string) error {
	b := FindBullet(pb, id)
	if b == nil {
		return NotFoundError(id)
	}
	b.Pinned = true
	b.PinnedReason = reason
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// UnpinBullet clears the pin.
func UnpinBullet(pb *Playbook, id string) error {
	b := FindBullet(pb, id)
	if b == nil {
		return NotFoundError(id)
	}
	b.Pinned = false
	b.PinnedReason = ""
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// FeedbackOptions carries the optional parts of a feedback event.
type FeedbackOptions struct {
	Timestamp   time.Time
	SessionPath string
	Reason      string
	Context     string
}

// RecordFeedbackEvent appends a feedback event, keeps the denormalized
// counter consistent, touches updatedAt and, for helpful events, sets
// lastValidatedAt. A missing id returns false with no mutation.
func RecordFeedbackEvent(pb *Playbook, id string, ftype FeedbackType, opts FeedbackOptions) bool {
	b := FindBullet(pb, id)
	if b == nil {
		return false
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	b.FeedbackEvents = append(b.FeedbackEvents, FeedbackEvent{
		Type:        ftype,
		Timestamp:   ts,
		SessionPath: opts.SessionPath,
		Reason:      opts.Reason,
		Context:     opts.Context,
	})

	now := time.Now().UTC()
	switch ftype {
	case FeedbackHelpful:
		b.HelpfulCount++
		b.LastValidatedAt = &now
	case FeedbackHarmful:
		b.HarmfulCount++
	}
	b.UpdatedAt = now

	logging.PlaybookDebug("Recorded %s feedback on %s (events=%d)", ftype, id, len(b.FeedbackEvents))
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
