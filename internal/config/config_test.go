package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 10*time.Second, cfg.Poll.FetchTimeout)
	assert.Equal(t, 10, cfg.Poll.MaxFailures)
	assert.False(t, cfg.Poll.Backoff)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadReadsFileAndNormalises(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"api": {"base_url": "http://recon.internal:9000/"},
		"poll": {"interval": "500ms", "max_failures": 3, "max_interval": "100ms"},
		"database": {"path": "~/cache.db"},
		"schedules": [{"name": "nightly", "expr": "@daily", "domain": "example.com"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, "http://recon.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 3, cfg.Poll.MaxFailures)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.MaxInterval, "max interval never below interval")
	assert.Equal(t, filepath.Join(home, "cache.db"), cfg.Database.Path)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "example.com", cfg.Schedules[0].Domain)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Poll.MaxFailures = 4
	require.NoError(t, Save(cfg, path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Poll.MaxFailures)
	assert.Equal(t, cfg.Poll.Interval, again.Poll.Interval)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api": `), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "reading config")
}
