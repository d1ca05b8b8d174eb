// Package config holds all cassmem configuration.
// Config is persisted as YAML at <dataroot>/config.yaml; each concern keeps its
// sub-struct in its own file with a Default constructor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"cassmem/internal/logging"
)

// Config holds all cassmem configuration.
type Config struct {
	// PlaybookPath overrides the default global playbook location.
	PlaybookPath string `yaml:"playbook_path"`

	// CassPath is the name (or path) of the external session-search tool.
	CassPath string `yaml:"cass_path"`

	// LLM provider settings for the external validator / diary extractor.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	Scoring      ScoringConfig      `yaml:"scoring"`
	Context      ContextConfig      `yaml:"context"`
	Validation   ValidationConfig   `yaml:"validation"`
	Sanitization SanitizationConfig `yaml:"sanitization"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	History      HistoryConfig      `yaml:"history"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CassPath:     "cass",
		Provider:     "genai",
		Model:        "gemini-2.0-flash",
		Scoring:      DefaultScoringConfig(),
		Context:      DefaultContextConfig(),
		Validation:   DefaultValidationConfig(),
		Sanitization: DefaultSanitizationConfig(),
		Embedding:    DefaultEmbeddingConfig(),
		History:      DefaultHistoryConfig(),
		Logging:      LoggingConfig{Level: "info"},
	}
}

// Load reads the config from <dataroot>/config.yaml, layering defaults under
// whatever the file provides. A missing file yields pure defaults, not an error.
func Load(dataRoot string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(dataRoot, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.BootDebug("No config file at %s, using defaults", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(dataRoot string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dataRoot, 0755); err != nil {
		return fmt.Errorf("failed to create data root: %w", err)
	}
	return os.WriteFile(filepath.Join(dataRoot, "config.yaml"), data, 0644)
}

// applyEnvOverrides lets CASSMEM_* environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CASSMEM_PLAYBOOK_PATH"); v != "" {
		c.PlaybookPath = v
	}
	if v := os.Getenv("CASSMEM_CASS_PATH"); v != "" {
		c.CassPath = v
	}
	if v := os.Getenv("CASSMEM_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("CASSMEM_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CASSMEM_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("CASSMEM_VALIDATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Validation.Enabled = b
		}
	}
	if v := os.Getenv("CASSMEM_DECAY_HALF_LIFE_DAYS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Scoring.DecayHalfLifeDays = f
		}
	}
}
