// Package config loads reef configuration from a TOML file with
// environment variable overrides.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Anthropic AnthropicConfig `toml:"anthropic"`
	Agent     AgentConfig     `toml:"agent"`
	Database  DatabaseConfig  `toml:"database"`
	Retry     RetryConfig     `toml:"retry"`
	Observer  ObserverConfig  `toml:"observer"`
}

type AnthropicConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

type AgentConfig struct {
	Name              string   `toml:"name"`
	Description       string   `toml:"description"`
	Streaming         bool     `toml:"streaming"`
	MaxTokens         int      `toml:"max_tokens"`
	Temperature       float64  `toml:"temperature"`
	TopP              float64  `toml:"top_p"`
	StopSequences     []string `toml:"stop_sequences"`
	ToolMaxRecursions int      `toml:"tool_max_recursions"`
	HistoryLimit      int      `toml:"history_limit"`
}

type DatabaseConfig struct {
	Path        string `toml:"path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type RetryConfig struct {
	Enabled     bool `toml:"enabled"`
	MaxAttempts int  `toml:"max_attempts"`
	BaseDelayMs int  `toml:"base_delay_ms"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Anthropic: AnthropicConfig{Model: "claude-3-5-sonnet-20240620"},
		Agent: AgentConfig{
			Name:         "Assistant",
			Description:  "A helpful and friendly assistant for general conversations",
			Streaming:    true,
			HistoryLimit: 20,
		},
		Database: DatabaseConfig{Path: "reef.db"},
		Retry:    RetryConfig{Enabled: true, MaxAttempts: 3, BaseDelayMs: 1000},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "reef.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("REEF_ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("REEF_ANTHROPIC_MODEL"); v != "" {
		cfg.Anthropic.Model = v
	}
	if v := os.Getenv("REEF_ANTHROPIC_BASE_URL"); v != "" {
		cfg.Anthropic.BaseURL = v
	}
	if v := os.Getenv("REEF_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("REEF_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if os.Getenv("REEF_OBSERVER_ENABLED") == "true" || os.Getenv("REEF_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
