package config

// ContextConfig bounds the context briefing returned for a task.
type ContextConfig struct {
	// MaxBulletsInContext caps the ranked bullets included in a briefing.
	MaxBulletsInContext int `yaml:"max_bullets_in_context"`

	// MaxHistoryInContext caps historical snippets merged into a briefing.
	MaxHistoryInContext int `yaml:"max_history_in_context"`

	// SessionLookbackDays bounds how far back history search reaches.
	SessionLookbackDays int `yaml:"session_lookback_days"`
}

// DefaultContextConfig returns briefing defaults.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxBulletsInContext: 10,
		MaxHistoryInContext: 5,
		SessionLookbackDays: 30,
	}
}

// ValidationConfig controls the evidence gate and external validator.
type ValidationConfig struct {
	// Enabled toggles the external validator for ambiguous candidates.
	Enabled bool `yaml:"enabled"`

	// LookbackDays bounds historical evidence collection for the gate.
	LookbackDays int `yaml:"lookback_days"`
}

// DefaultValidationConfig returns validation defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		Enabled:      true,
		LookbackDays: 30,
	}
}

// LoggingConfig mirrors the logging package's file-based debug logging knobs.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}
