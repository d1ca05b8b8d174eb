// Package playbook implements the durable procedural-memory store: a versioned
// collection of bullets with cascading global/repo scopes, a toxic-content
// filter, CRUD that preserves lifecycle invariants, and atomic persistence.
package playbook

import (
	"fmt"
	"time"
)

// SchemaVersion is the current playbook document version.
const SchemaVersion = 1

// Scope narrows where a bullet applies.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeWorkspace Scope = "workspace"
	ScopeLanguage  Scope = "language"
	ScopeFramework Scope = "framework"
	ScopeTask      Scope = "task"
)

// State is the coarse lifecycle state of a bullet.
type State string

const (
	StateDraft   State = "draft"
	StateActive  State = "active"
	StateRetired State = "retired"
)

// Maturity is the quality tier of a bullet.
type Maturity string

const (
	MaturityCandidate   Maturity = "candidate"
	MaturityEstablished Maturity = "established"
	MaturityProven      Maturity = "proven"
	MaturityDeprecated  Maturity = "deprecated"
)

// Kind classifies what a bullet teaches.
type Kind string

const (
	KindWorkflowRule Kind = "workflow_rule"
	KindAntiPattern  Kind = "anti_pattern"
	KindStackPattern Kind = "stack_pattern"
)

// FeedbackType labels a feedback event.
type FeedbackType string

const (
	FeedbackHelpful FeedbackType = "helpful"
	FeedbackHarmful FeedbackType = "harmful"
)

// FeedbackEvent is one observed signal about a bullet. Events are the single
// source of truth; the per-bullet counters are denormalized caches.
type FeedbackEvent struct {
	Type        FeedbackType `yaml:"type" json:"type"`
	Timestamp   time.Time    `yaml:"timestamp" json:"timestamp"`
	SessionPath string       `yaml:"sessionPath,omitempty" json:"sessionPath,omitempty"`
	Reason      string       `yaml:"reason,omitempty" json:"reason,omitempty"`
	Context     string       `yaml:"context,omitempty" json:"context,omitempty"`
}

// Bullet is the unit of procedural knowledge.
type Bullet struct {
	ID string `yaml:"id" json:"id"`

	Content    string `yaml:"content" json:"content"`
	Category   string `yaml:"category" json:"category"`
	Kind       Kind   `yaml:"kind" json:"kind"`
	Type       string `yaml:"type" json:"type"` // "rule" | "anti-pattern"
	IsNegative bool   `yaml:"isNegative" json:"isNegative"`

	Scope     Scope  `yaml:"scope" json:"scope"`
	ScopeKey  string `yaml:"scopeKey,omitempty" json:"scopeKey,omitempty"`
	Workspace string `yaml:"workspace,omitempty" json:"workspace,omitempty"`

	State             State    `yaml:"state" json:"state"`
	Maturity          Maturity `yaml:"maturity" json:"maturity"`
	Pinned            bool     `yaml:"pinned" json:"pinned"`
	PinnedReason      string   `yaml:"pinnedReason,omitempty" json:"pinnedReason,omitempty"`
	Deprecated        bool     `yaml:"deprecated" json:"deprecated"`
	DeprecatedAt      *time.Time `yaml:"deprecatedAt,omitempty" json:"deprecatedAt,omitempty"`
	DeprecationReason string   `yaml:"deprecationReason,omitempty" json:"deprecationReason,omitempty"`
	ReplacedBy        string   `yaml:"replacedBy,omitempty" json:"replacedBy,omitempty"`

	SourceSessions []string `yaml:"sourceSessions,omitempty" json:"sourceSessions,omitempty"`
	SourceAgents   []string `yaml:"sourceAgents,omitempty" json:"sourceAgents,omitempty"`
	Tags           []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	FeedbackEvents []FeedbackEvent `yaml:"feedbackEvents,omitempty" json:"feedbackEvents,omitempty"`
	HelpfulCount   int             `yaml:"helpfulCount" json:"helpfulCount"`
	HarmfulCount   int             `yaml:"harmfulCount" json:"harmfulCount"`

	CreatedAt       time.Time  `yaml:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `yaml:"updatedAt" json:"updatedAt"`
	LastValidatedAt *time.Time `yaml:"lastValidatedAt,omitempty" json:"lastValidatedAt,omitempty"`

	// ConfidenceDecayHalfLifeDays overrides the config decay half-life.
	ConfidenceDecayHalfLifeDays float64 `yaml:"confidenceDecayHalfLifeDays,omitempty" json:"confidenceDecayHalfLifeDays,omitempty"`

	Embedding   []float32 `yaml:"embedding,omitempty" json:"embedding,omitempty"`
	ContentHash string    `yaml:"contentHash,omitempty" json:"contentHash,omitempty"`
}

// IsActive reports whether the bullet participates in active views and future
// scoring. The three retirement markers agree after any lifecycle transition,
// but any one of them suffices to exclude the bullet.
func (b *Bullet) IsActive() bool {
	return !b.Deprecated && b.State != StateRetired && b.Maturity != MaturityDeprecated
}

// RegenerateCounters rebuilds the denormalized counters from the events.
func (b *Bullet) RegenerateCounters() {
	helpful, harmful := 0, 0
	for _, e := range b.FeedbackEvents {
		switch e.Type {
		case FeedbackHelpful:
			helpful++
		case FeedbackHarmful:
			harmful++
		}
	}
	b.HelpfulCount = helpful
	b.HarmfulCount = harmful
}

// LastEventTime returns the newest event timestamp, or the zero time when the
// bullet has no events.
func (b *Bullet) LastEventTime() time.Time {
	var last time.Time
	for _, e := range b.FeedbackEvents {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

// DeprecatedPattern warns when a known-obsolete approach shows up in task text
// or history. Matched case-insensitively.
type DeprecatedPattern struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
}

// Metadata carries playbook-level bookkeeping.
type Metadata struct {
	CreatedAt              time.Time  `yaml:"createdAt" json:"createdAt"`
	LastReflection         *time.Time `yaml:"lastReflection,omitempty" json:"lastReflection,omitempty"`
	TotalReflections       int        `yaml:"totalReflections" json:"totalReflections"`
	TotalSessionsProcessed int        `yaml:"totalSessionsProcessed" json:"totalSessionsProcessed"`
}

// Playbook is the aggregate root, persisted as one YAML document per file.
type Playbook struct {
	SchemaVersion      int                 `yaml:"schema_version" json:"schema_version"`
	Name               string              `yaml:"name" json:"name"`
	Description        string              `yaml:"description,omitempty" json:"description,omitempty"`
	Metadata           Metadata            `yaml:"metadata" json:"metadata"`
	DeprecatedPatterns []DeprecatedPattern `yaml:"deprecatedPatterns,omitempty" json:"deprecatedPatterns,omitempty"`
	Bullets            []*Bullet           `yaml:"bullets" json:"bullets"`
}

// New returns an empty playbook with current metadata.
func New(name string) *Playbook {
	return &Playbook{
		SchemaVersion: SchemaVersion,
		Name:          name,
		Metadata:      Metadata{CreatedAt: time.Now().UTC()},
	}
}

// StructuredError is the user-facing error shape for input and policy
// violations: the single operation fails, the system continues.
type StructuredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (e *StructuredError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFoundError builds the standard unknown-bullet error.
func NotFoundError(id string) *StructuredError {
	return &StructuredError{
		Code:    "bullet_not_found",
		Message: fmt.Sprintf("no bullet with id %q", id),
		Hint:    "run 'cassmem playbook list' to see known ids",
	}
}

// PolicyError builds a policy-violation error.
func PolicyError(message string) *StructuredError {
	return &StructuredError{Code: "policy_violation", Message: message}
}
