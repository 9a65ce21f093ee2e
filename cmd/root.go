package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/predtext/internal/catalog"
	"github.com/abhisek/predtext/internal/config"
	"github.com/abhisek/predtext/internal/store"
)

// cfg is resolved from the environment and flags before any command runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "predtext",
	Short: "Event-sourced predictive text study sessions",
	Long: "predtext runs, replays and analyzes predictive-text typing study sessions " +
		"recorded as append-only event logs.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Path to SQLite database file (overrides PREDTEXT_DB env var)")
	pf.String("catalog", "", "Path to a YAML experiment catalog (overrides PREDTEXT_CATALOG)")
	pf.String("kind", "", "Device kind stamped on dispatched events (overrides PREDTEXT_KIND)")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.Bool("dev", false, "Re-panic on reducer failures")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if p, _ := flags.GetString("db"); p != "" {
		c.DBPath = p
	}
	if p, _ := flags.GetString("catalog"); p != "" {
		c.CatalogPath = p
	}
	if k, _ := flags.GetString("kind"); k != "" {
		c.Kind = k
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		lvl, err := config.ParseLevel(v)
		if err != nil {
			return err
		}
		c.LogLevel = lvl
	}
	if flags.Changed("dev") {
		c.Dev, _ = flags.GetBool("dev")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel})))
	cfg = c
	return nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then PREDTEXT_DB env var, then the default XDG path.
func resolveDBPath() (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

func openStore() (*store.Store, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// loadCatalog returns the configured catalog, or the built-in one.
func loadCatalog() (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}
