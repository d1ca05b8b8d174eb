package config

// ScoringConfig tunes the time-decayed feedback scoring and the maturity
// state machine.
type ScoringConfig struct {
	// Half-life in days for feedback decay. A bullet-level override wins.
	DecayHalfLifeDays float64 `yaml:"decay_half_life_days"`

	// HarmfulMultiplier weights harmful evidence against helpful evidence.
	// Harmful evidence degrades trust much faster than helpful evidence grows it.
	HarmfulMultiplier float64 `yaml:"harmful_multiplier"`

	// Maturity thresholds.
	MinFeedbackForActive     float64 `yaml:"min_feedback_for_active"`
	MinHelpfulForProven      float64 `yaml:"min_helpful_for_proven"`
	MaxHarmfulRatioForProven float64 `yaml:"max_harmful_ratio_for_proven"`

	// PruneHarmfulThreshold: effective score below the negated threshold
	// recommends auto-deprecation.
	PruneHarmfulThreshold float64 `yaml:"prune_harmful_threshold"`

	// DedupSimilarityThreshold: Jaccard similarity at or above which a new
	// insight reinforces an existing bullet instead of creating a duplicate.
	DedupSimilarityThreshold float64 `yaml:"dedup_similarity_threshold"`

	// StaleDays: days without feedback after which a bullet counts as stale.
	StaleDays int `yaml:"stale_days"`
}

// DefaultScoringConfig returns sensible scoring defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		DecayHalfLifeDays:        90,
		HarmfulMultiplier:        4,
		MinFeedbackForActive:     3,
		MinHelpfulForProven:      5,
		MaxHarmfulRatioForProven: 0.1,
		PruneHarmfulThreshold:    2,
		DedupSimilarityThreshold: 0.85,
		StaleDays:                90,
	}
}
