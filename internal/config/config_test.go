package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "p", cfg.Kind)
	assert.Equal(t, 4, cfg.Analyze.Concurrency)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PREDTEXT_DB", "/tmp/x.db")
	t.Setenv("PREDTEXT_KIND", "c")
	t.Setenv("PREDTEXT_DEV", "true")
	t.Setenv("PREDTEXT_ANALYZE_CONCURRENCY", "8")
	t.Setenv("PREDTEXT_POLL_INTERVAL", "500ms")
	t.Setenv("PREDTEXT_LOG_LEVEL", "debug")
	t.Setenv("PREDTEXT_MIN_CLIENT_VERSION", "1.4.0")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "c", cfg.Kind)
	assert.True(t, cfg.Dev)
	assert.Equal(t, 8, cfg.Analyze.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "1.4.0", cfg.Analyze.MinClientVersion)
	assert.NoError(t, cfg.Validate())

	path, err := cfg.ResolveDBPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", path)
}

func TestConfigFromEnvMalformed(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PREDTEXT_DEV", "sometimes"},
		{"PREDTEXT_ANALYZE_CONCURRENCY", "many"},
		{"PREDTEXT_POLL_INTERVAL", "soon"},
		{"PREDTEXT_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := ConfigFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty kind", func(c *Config) { c.Kind = "" }},
		{"zero concurrency", func(c *Config) { c.Analyze.Concurrency = 0 }},
		{"bad version", func(c *Config) { c.Analyze.MinClientVersion = "latest" }},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }},
		{"http url", func(c *Config) { c.TransportURL = "http://example.com" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
