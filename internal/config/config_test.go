// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	resolvePaths(&cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 0.3, cfg.KT.PriorMastery)
	assert.Equal(t, 85.0, cfg.Practice.SkipThreshold)
	assert.Equal(t, filepath.Join(cfg.DataDir, "insight.db"), cfg.SQLitePath)
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, time.Minute, cfg.CacheCleanupInterval)
}

func TestLoader_CacheKnobsAreIndependent(t *testing.T) {
	t.Setenv("INSIGHT_CACHE_TTL", "10m")
	t.Setenv("INSIGHT_CACHE_CLEANUP_INTERVAL", "30s")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.CacheCleanupInterval)
}

func TestLoader_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9999"
knowledge_tracing:
  guess_rate: 0.2
polls:
  auto_close: 10m
`), 0o600))

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 0.2, cfg.KT.GuessRate)
	assert.Equal(t, 10*time.Minute, cfg.Polls.AutoClose)
	// untouched keys keep their defaults
	assert.Equal(t, 0.1, cfg.KT.SlipRate)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9999\"\n"), 0o600))

	t.Setenv("INSIGHT_LISTEN", ":7777")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.ListenAddr)
}

func TestLoader_UnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listne_addr: \":9999\"\n"), 0o600))

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"guess rate out of range", func(c *AppConfig) { c.KT.GuessRate = 1.5 }},
		{"load min above max", func(c *AppConfig) { c.Practice.LoadMin = 0.9 }},
		{"skip below light", func(c *AppConfig) { c.Practice.SkipThreshold = 50 }},
		{"weights not normalized", func(c *AppConfig) { c.Engagement.ImplicitWeight = 0.9 }},
		{"critical above at-risk", func(c *AppConfig) { c.Engagement.CriticalThreshold = 60 }},
		{"single poll option", func(c *AppConfig) { c.Polls.MinOptions = 1 }},
		{"bad tracing exporter", func(c *AppConfig) {
			c.Tracing.Enabled = true
			c.Tracing.ExporterType = "udp"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			resolvePaths(&cfg)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvParsers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "nope")
	t.Setenv("TEST_FLOAT", "0.75")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_SLICE", "a, b ,c")

	assert.Equal(t, "hello", ParseString("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", ParseString("TEST_STR_MISSING", "fallback"))
	assert.Equal(t, 42, ParseInt("TEST_INT", 0))
	assert.Equal(t, 7, ParseInt("TEST_INT_BAD", 7))
	assert.Equal(t, 0.75, ParseFloat("TEST_FLOAT", 0))
	assert.True(t, ParseBool("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, ParseDuration("TEST_DUR", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, ParseStringSlice("TEST_SLICE", nil))
}

func TestManager_ReloadPinsImmutableFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\n"), 0o600))

	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	mgr := NewManager(loader, initial)

	// Change a tunable and an immutable field on disk.
	require.NoError(t, os.WriteFile(path, []byte(
		"data_dir: /somewhere/else\nknowledge_tracing:\n  slip_rate: 0.05\n"), 0o600))

	var notified AppConfig
	mgr.OnChange(func(c AppConfig) { notified = c })

	require.NoError(t, mgr.Reload())

	got := mgr.Current()
	assert.Equal(t, 0.05, got.KT.SlipRate, "tunable threshold should reload")
	assert.Equal(t, initial.DataDir, got.DataDir, "storage paths are pinned after startup")
	assert.Equal(t, 0.05, notified.KT.SlipRate)
}
