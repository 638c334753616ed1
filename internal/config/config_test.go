package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsRunnable(t *testing.T) {
	cfg := Default()
	require.Equal(t, "8080", cfg.Server.Port)
	require.True(t, cfg.Kite.Enabled)
	require.True(t, cfg.Yahoo.Enabled)
	require.Positive(t, cfg.Resolve.MaxConcurrency)
	require.Positive(t, cfg.Resolve.TierTimeoutMS)
	require.NotEmpty(t, cfg.Instruments.Path)
}

func TestLoad_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: "9090"
instruments:
  path: /data/instruments.csv
  refresh_interval_min: 5
feed:
  enabled: true
  url: ws://localhost:7777/ticks
kite:
  enabled: false
resolve:
  max_concurrency: 4
  tier_timeout_ms: 1500
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "/data/instruments.csv", cfg.Instruments.Path)
	require.Equal(t, 5, cfg.Instruments.RefreshIntervalMin)
	require.True(t, cfg.Feed.Enabled)
	require.False(t, cfg.Kite.Enabled)
	require.Equal(t, 4, cfg.Resolve.MaxConcurrency)
	require.Equal(t, 1500, cfg.Resolve.TierTimeoutMS)
	// Untouched sections keep defaults.
	require.Equal(t, Default().Yahoo.BaseURL, cfg.Yahoo.BaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("KITE_API_KEY", "k")
	t.Setenv("KITE_ACCESS_TOKEN", "s")
	t.Setenv("RESOLVE_MAX_CONCURRENCY", "16")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "k", cfg.Kite.APIKey)
	require.Equal(t, "s", cfg.Kite.AccessToken)
	require.Equal(t, 16, cfg.Resolve.MaxConcurrency)
}

func TestLoad_MalformedYAMLIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
