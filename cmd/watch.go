package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abhisek/predtext/internal/dashboard"
	"github.com/abhisek/predtext/internal/metrics"
	"github.com/abhisek/predtext/internal/panopticon"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow every participant's session as events arrive",
	Long: "Watch polls the database for new events, keeps a replica of each " +
		"participant's session and prints an overview after every poll, or shows " +
		"them in an interactive dashboard with --tui.",
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.Bool("once", false, "Print one overview and exit")
	f.Bool("tui", false, "Show an interactive dashboard instead of printed tables")
	f.Duration("interval", 0, "Poll interval (default from PREDTEXT_POLL_INTERVAL)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	once, _ := cmd.Flags().GetBool("once")
	tui, _ := cmd.Flags().GetBool("tui")
	interval := cfg.PollInterval
	if d, _ := cmd.Flags().GetDuration("interval"); d > 0 {
		interval = d
	}
	metricsAddr := cfg.MetricsAddr
	if a, _ := cmd.Flags().GetString("metrics-addr"); a != "" {
		metricsAddr = a
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	serveMetrics(ctx, metricsAddr, reg)

	logger := slog.Default()
	if tui {
		// Log lines would tear the alternate screen.
		logger = slog.New(slog.DiscardHandler)
	}
	follower := panopticon.New(panopticon.Options{
		Screens: cat.Screens,
		Kind:    cfg.Kind,
		Logger:  logger,
		Metrics: metrics.New(reg),
	}).Follow(st.EventLog())

	if tui {
		return dashboard.Run(ctx, follower, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := follower.Poll(ctx); err != nil {
			return err
		}
		printOverview(follower.Overview())
		if once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printOverview(rows []panopticon.Row) {
	fmt.Printf("\n%s\n", time.Now().Format("15:04:05"))
	fmt.Printf("%-20s %-4s %-20s %-16s %6s  %s\n", "PARTICIPANT", "SCR", "SCREEN", "TRIAL", "EVENTS", "TEXT")
	fmt.Println(strings.Repeat("─", 90))
	for _, r := range rows {
		text := truncate(r.CurText, 30)
		if r.Err != "" {
			text = "error: " + truncate(r.Err, 40)
		}
		fmt.Printf("%-20s %-4d %-20s %-16s %6d  %s\n",
			truncate(r.Participant, 20), r.ScreenNum, truncate(r.ScreenName, 20),
			truncate(r.CurExperiment, 16), r.Events, text)
	}
}
