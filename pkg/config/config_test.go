package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultRowHeight, cfg.Viewport.RowHeight)
	assert.Equal(t, DefaultDebounceInterval, cfg.Search.DebounceInterval)
	assert.Equal(t, "memory", cfg.Bus.Backend)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
confluence:
  domain: https://confluence.example.com
  timeout: 10s
dataset:
  environments:
    uat1: https://uat1.example.com/language-pack
  default_environment: uat1
viewport:
  row_height: 42
bulk:
  fetch_per_minute: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://confluence.example.com", cfg.Confluence.Domain)
	assert.Equal(t, 10*time.Second, cfg.Confluence.Timeout)
	assert.Equal(t, 42, cfg.Viewport.RowHeight)
	assert.Equal(t, 12, cfg.Bulk.FetchPerMinute)

	url, ok := cfg.EnvironmentURL("uat1")
	require.True(t, ok)
	assert.Equal(t, "https://uat1.example.com/language-pack", url)

	// default environment resolves when name is empty
	url, ok = cfg.EnvironmentURL("")
	require.True(t, ok)
	assert.Equal(t, "https://uat1.example.com/language-pack", url)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Viewport.RowHeight = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Bus.Backend = "kafka"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Bus.Backend = "nats"
	cfg.Bus.URL = ""
	assert.Error(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOCKEY_CONFLUENCE_DOMAIN", "https://wiki.internal")
	t.Setenv("LOCKEY_CONFLUENCE_PAT", "secret-token")
	t.Setenv("UAT2", "https://uat2.example.com/pack")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "https://wiki.internal", cfg.Confluence.Domain)
	assert.Equal(t, "secret-token", cfg.Confluence.Token)
	assert.Equal(t, "https://uat2.example.com/pack", cfg.Dataset.Environments["uat2"])
}
