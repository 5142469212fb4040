package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `
gemini:
  model: gemini-2.0-flash
batch:
  analysisDelay: 250ms
export:
  format: Markdown
  groupByTopic: true
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, Default().Gemini.Endpoint, cfg.Gemini.Endpoint)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.AnalysisDelay)
	assert.Equal(t, MaxBatchItems, cfg.Batch.MaxItems)
	assert.Equal(t, "markdown", cfg.Export.Format)
	assert.True(t, cfg.Export.GroupByTopic)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadFileClampsBatchSize(t *testing.T) {
	path := writeConfig(t, "batch:\n  maxItems: 500\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, MaxBatchItems, cfg.Batch.MaxItems)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, "gemini: [unterminated\n")
	cfg, err := LoadFile(path)
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, "gemini:\n  apiKey: from-file\n")
	t.Setenv(configPathEnv, path)
	t.Setenv(geminiAPIKeyEnv, "from-env")
	t.Setenv(databaseDriverEnv, " Postgres ")
	t.Setenv(httpAddrEnv, ":9090")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(telegramChatIDEnv, "42")

	cfg := Load()

	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.Notifications.Telegram.Enabled())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(geminiAPIKeyEnv, "")

	cfg := Load()
	assert.Equal(t, Default().Scanner, cfg.Scanner)
	assert.False(t, cfg.Notifications.Telegram.Enabled())
}
