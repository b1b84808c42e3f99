// Package config handles shop agent configuration loading: a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all shop agent configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Agent     AgentConfig     `yaml:"agent"`
	Printful  KeyConfig       `yaml:"printful"`
	Rube      KeyConfig       `yaml:"rube"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // bind address; "" = all interfaces
	Port    int    `yaml:"port"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig selects and configures the model backends. Primary names
// which backend handles requests first; Fallback is the single alternate
// tried after a primary failure, or empty to disable failover.
type ProvidersConfig struct {
	Primary   string         `yaml:"primary"`
	Fallback  string         `yaml:"fallback"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
}

// ProviderConfig configures one backend.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	MaxRounds          int `yaml:"max_rounds"`
	HistoryLimit       int `yaml:"history_limit"`
	ProviderTimeoutSec int `yaml:"provider_timeout_sec"`
	DispatchTimeoutSec int `yaml:"dispatch_timeout_sec"`
}

// KeyConfig holds a bare API key for an integration.
type KeyConfig struct {
	APIKey string `yaml:"api_key"`
}

// DefaultSearchPaths returns the config file search order. An explicit path
// (from -config) is checked first by FindConfig.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "shopagent", "config.yaml"))
	}
	return append(paths, "/etc/shopagent/config.yaml")
}

// FindConfig locates a config file. If explicit is non-empty it must exist;
// otherwise the first existing default path wins.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Load reads and parses the config at path, applies defaults and environment
// overrides, and validates provider selection.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with defaults and environment overrides applied,
// for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "shopagent.db"
	}
	if c.Agent.MaxRounds == 0 {
		c.Agent.MaxRounds = 10
	}
	if c.Agent.HistoryLimit == 0 {
		c.Agent.HistoryLimit = 20
	}
	if c.Agent.ProviderTimeoutSec == 0 {
		c.Agent.ProviderTimeoutSec = 60
	}
	if c.Agent.DispatchTimeoutSec == 0 {
		c.Agent.DispatchTimeoutSec = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// applyEnv lets environment variables supply secrets so they stay out of
// config files.
func (c *Config) applyEnv() {
	overlay := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	overlay(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	overlay(&c.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	overlay(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	overlay(&c.Printful.APIKey, "PRINTFUL_API_KEY")
	overlay(&c.Rube.APIKey, "RUBE_API_KEY")

	if c.Providers.Primary == "" {
		// Mirror the storefront's historical preference order.
		switch {
		case c.Providers.OpenAI.APIKey != "":
			c.Providers.Primary = "openai"
			if c.Providers.Gemini.APIKey != "" {
				c.Providers.Fallback = "gemini"
			}
		case c.Providers.Gemini.APIKey != "":
			c.Providers.Primary = "gemini"
		case c.Providers.Anthropic.APIKey != "":
			c.Providers.Primary = "anthropic"
		}
	}
}

func (c *Config) validate() error {
	valid := map[string]bool{"": true, "openai": true, "anthropic": true, "gemini": true}
	if !valid[c.Providers.Primary] {
		return fmt.Errorf("unknown primary provider %q", c.Providers.Primary)
	}
	if !valid[c.Providers.Fallback] {
		return fmt.Errorf("unknown fallback provider %q", c.Providers.Fallback)
	}
	if c.Providers.Primary == "" {
		return fmt.Errorf("no provider configured: set providers.primary or an API key")
	}
	if c.Providers.Fallback == c.Providers.Primary {
		return fmt.Errorf("fallback provider must differ from primary")
	}
	return nil
}
