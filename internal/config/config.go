// Package config loads sheetpilot configuration from YAML with environment
// overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all sheetpilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Primary parser model
	LLM LLMConfig `yaml:"llm"`

	// Fallback normalizer
	Normalizer NormalizerConfig `yaml:"normalizer"`

	// Spreadsheet backend
	Backend BackendConfig `yaml:"backend"`

	// Validation behavior
	Validation ValidationConfig `yaml:"validation"`

	// Execution journal
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the primary structured-output model.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// NormalizerConfig configures the fallback normalizer. Mode "local" uses the
// deterministic heuristic engine; "remote" calls the normalization service.
type NormalizerConfig struct {
	Mode     string `yaml:"mode"`
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// BackendConfig configures the spreadsheet backend connection.
type BackendConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Token         string `yaml:"token"`
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Author        string `yaml:"author"`
	Timeout       string `yaml:"timeout"`
}

// ValidationConfig configures coercion behavior.
type ValidationConfig struct {
	// DecimalComma treats "1.200,50" as 1200.50 instead of the default
	// "1,200.50" reading.
	DecimalComma bool `yaml:"decimal_comma"`
}

// HistoryConfig configures the execution journal.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool     `yaml:"debug_mode"`
	Level      string   `yaml:"level"`
	Categories []string `yaml:"categories"`
}

// ValidProviders lists supported primary-parser providers.
var ValidProviders = []string{"openai", "gemini"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sheetpilot",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "60s",
		},

		Normalizer: NormalizerConfig{
			Mode:    "local",
			Timeout: "30s",
		},

		Backend: BackendConfig{
			Endpoint: "http://localhost:3001/api/sheets",
			Author:   "sheetpilot",
			Timeout:  "30s",
		},

		History: HistoryConfig{
			Enabled: true,
			Dir:     ".sheetpilot",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, layering .env and environment
// variables on top. A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	// .env is optional; real environment always wins over it.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Provider keys
// are checked in priority order; the last one present wins.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	if token := os.Getenv("SHEETPILOT_BACKEND_TOKEN"); token != "" {
		c.Backend.Token = token
	}
	if url := os.Getenv("SHEETPILOT_BACKEND_URL"); url != "" {
		c.Backend.Endpoint = url
	}
	if id := os.Getenv("SHEETPILOT_SPREADSHEET_ID"); id != "" {
		c.Backend.SpreadsheetID = id
	}
	if url := os.Getenv("SHEETPILOT_NORMALIZER_URL"); url != "" {
		c.Normalizer.Endpoint = url
		c.Normalizer.Mode = "remote"
	}
	if os.Getenv("SHEETPILOT_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or GEMINI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.Backend.Endpoint == "" {
		return fmt.Errorf("backend endpoint not configured")
	}
	if c.Normalizer.Mode == "remote" && c.Normalizer.Endpoint == "" {
		return fmt.Errorf("normalizer mode is remote but no endpoint configured")
	}

	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetNormalizerTimeout returns the normalizer timeout as a duration.
func (c *Config) GetNormalizerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Normalizer.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetBackendTimeout returns the backend timeout as a duration.
func (c *Config) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
