// Package config holds the process configuration shared by the commands.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/abhisek/predtext/internal/store"
)

// Config holds all process configuration.
type Config struct {
	// DBPath is the SQLite database file. Default: store.DefaultDBPath().
	DBPath string

	// CatalogPath is a YAML experiment catalog. Empty uses the built-in one.
	CatalogPath string

	// Kind is the device role stamped on dispatched events. Default: "p".
	Kind string

	// Dev re-panics on reducer failures.
	Dev bool

	// TransportURL is the suggestion backend WebSocket endpoint.
	TransportURL string

	Analyze AnalyzeConfig

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string

	// PollInterval is how often watch reads new events. Default: 2s.
	PollInterval time.Duration

	LogLevel slog.Level
}

// AnalyzeConfig configures batch analysis.
type AnalyzeConfig struct {
	// Concurrency bounds the files analyzed at once. Default: 4.
	Concurrency int

	// MinClientVersion rejects logs from older clients when set.
	MinClientVersion string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Kind:         "p",
		TransportURL: "ws://localhost:5000/ws",
		Analyze: AnalyzeConfig{
			Concurrency: 4,
		},
		PollInterval: 2 * time.Second,
		LogLevel:     slog.LevelInfo,
	}
}

// ConfigFromEnv builds a Config from PREDTEXT_* environment variables,
// falling back to defaults for unset values. Malformed values are errors.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.DBPath = os.Getenv("PREDTEXT_DB")
	if p := os.Getenv("PREDTEXT_CATALOG"); p != "" {
		cfg.CatalogPath = p
	}
	if k := os.Getenv("PREDTEXT_KIND"); k != "" {
		cfg.Kind = k
	}
	if u := os.Getenv("PREDTEXT_TRANSPORT_URL"); u != "" {
		cfg.TransportURL = u
	}
	if a := os.Getenv("PREDTEXT_METRICS_ADDR"); a != "" {
		cfg.MetricsAddr = a
	}
	if v := os.Getenv("PREDTEXT_MIN_CLIENT_VERSION"); v != "" {
		cfg.Analyze.MinClientVersion = v
	}

	if v := os.Getenv("PREDTEXT_DEV"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("PREDTEXT_DEV: %w", err)
		}
		cfg.Dev = b
	}
	if v := os.Getenv("PREDTEXT_ANALYZE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("PREDTEXT_ANALYZE_CONCURRENCY: %w", err)
		}
		cfg.Analyze.Concurrency = n
	}
	if v := os.Getenv("PREDTEXT_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("PREDTEXT_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("PREDTEXT_LOG_LEVEL"); v != "" {
		lvl, err := ParseLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// ResolveDBPath returns DBPath, or the default location when unset.
func (c Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	return store.DefaultDBPath()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("device kind must not be empty")
	}
	if c.Analyze.Concurrency < 1 {
		return fmt.Errorf("analyze concurrency must be at least 1, got %d", c.Analyze.Concurrency)
	}
	if v := c.Analyze.MinClientVersion; v != "" {
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		if !semver.IsValid(v) {
			return fmt.Errorf("invalid minimum client version %q", c.Analyze.MinClientVersion)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.TransportURL != "" && !strings.HasPrefix(c.TransportURL, "ws://") && !strings.HasPrefix(c.TransportURL, "wss://") {
		return fmt.Errorf("transport URL must use ws:// or wss://, got %q", c.TransportURL)
	}
	return nil
}
