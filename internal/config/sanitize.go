package config

// SanitizationConfig controls secret redaction of externally-supplied text.
type SanitizationConfig struct {
	// Enabled toggles redaction globally. Disabling is only sensible in tests.
	Enabled bool `yaml:"enabled"`

	// ExtraPatterns are additional regexes appended to the built-in secret
	// classes. Patterns failing the ReDoS guard are skipped.
	ExtraPatterns []string `yaml:"extra_patterns"`

	// AuditLog records each redaction through the logging facade.
	AuditLog bool `yaml:"audit_log"`

	// AuditLevel: "info" or "debug".
	AuditLevel string `yaml:"audit_level"`
}

// DefaultSanitizationConfig returns sanitizer defaults.
func DefaultSanitizationConfig() SanitizationConfig {
	return SanitizationConfig{
		Enabled:    true,
		AuditLog:   false,
		AuditLevel: "info",
	}
}

// EmbeddingConfig configures the optional vector embedding engine.
// Supports Ollama (local) and GenAI (cloud) backends; "none" disables
// semantic similarity entirely.
type EmbeddingConfig struct {
	// Provider: "ollama", "genai" or "none"
	Provider string `yaml:"provider"`

	// Ollama Configuration (local embedding server)
	OllamaEndpoint string `yaml:"ollama_endpoint"` // Default: "http://localhost:11434"
	OllamaModel    string `yaml:"ollama_model"`    // Default: "embeddinggemma"

	// GenAI Configuration (Google cloud embedding)
	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"` // Default: "gemini-embedding-001"
}

// DefaultEmbeddingConfig returns embedding defaults. Semantic search is off
// until a provider is configured.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:       "none",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "embeddinggemma",
		GenAIModel:     "gemini-embedding-001",
	}
}

// HistoryConfig tunes invocations of the external cass tool.
type HistoryConfig struct {
	// SearchTimeout and ExportTimeout are Go duration strings.
	SearchTimeout string `yaml:"search_timeout"`
	ExportTimeout string `yaml:"export_timeout"`
}

// DefaultHistoryConfig returns history tool defaults.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		SearchTimeout: "30s",
		ExportTimeout: "30s",
	}
}
