package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"PRINTFUL_API_KEY", "RUBE_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearProviderEnv(t)
	path := writeConfig(t, `
providers:
  primary: openai
  openai:
    api_key: sk-test
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Listen.Port)
	assert.Equal(t, "shopagent.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Agent.MaxRounds)
	assert.Equal(t, 20, cfg.Agent.HistoryLimit)
	assert.Equal(t, 60, cfg.Agent.ProviderTimeoutSec)
	assert.Equal(t, 30, cfg.Agent.DispatchTimeoutSec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	clearProviderEnv(t)
	path := writeConfig(t, `
listen:
  port: 9999
agent:
  max_rounds: 3
  history_limit: 5
providers:
  primary: gemini
  fallback: anthropic
  gemini:
    api_key: g-key
  anthropic:
    api_key: a-key
    model: claude-sonnet-4-20250514
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Listen.Port)
	assert.Equal(t, 3, cfg.Agent.MaxRounds)
	assert.Equal(t, 5, cfg.Agent.HistoryLimit)
	assert.Equal(t, "gemini", cfg.Providers.Primary)
	assert.Equal(t, "anthropic", cfg.Providers.Fallback)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Providers.Anthropic.Model)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	path := writeConfig(t, `
providers:
  primary: openai
  openai:
    api_key: sk-from-file
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Providers.OpenAI.APIKey)
}

func TestDefault_SelectsPrimaryFromEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "g-test")

	cfg := Default()
	assert.Equal(t, "openai", cfg.Providers.Primary)
	assert.Equal(t, "gemini", cfg.Providers.Fallback)
}

func TestDefault_GeminiOnly(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-test")

	cfg := Default()
	assert.Equal(t, "gemini", cfg.Providers.Primary)
	assert.Empty(t, cfg.Providers.Fallback)
}

func TestLoad_ValidationErrors(t *testing.T) {
	clearProviderEnv(t)

	_, err := Load(writeConfig(t, `
providers:
  primary: hal9000
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown primary provider")

	_, err = Load(writeConfig(t, `
providers:
  primary: openai
  fallback: openai
  openai:
    api_key: sk
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")

	_, err = Load(writeConfig(t, `log_level: warn`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider configured")
}

func TestFindConfig_ExplicitMustExist(t *testing.T) {
	_, err := FindConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
