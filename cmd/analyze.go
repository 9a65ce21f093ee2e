package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/predtext/internal/analyze"
	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [log files...]",
	Short: "Reconstruct sessions from event logs",
	Long: "Analyze replays each log through the session reducers and reports per-trial " +
		"text, chunks, words and displayed suggestions. Use --participant to analyze a " +
		"log stored in the database instead of files.",
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("participant", "", "Analyze the stored log of this participant")
	f.Bool("save", false, "Store each successful analysis in the database")
	f.Bool("json", false, "Print full analyses as JSON instead of a summary")
	f.String("min-client-version", "", "Reject logs from clients older than this version")
	f.Int("concurrency", 0, "Files analyzed at once (default from PREDTEXT_ANALYZE_CONCURRENCY)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	participant, _ := cmd.Flags().GetString("participant")
	save, _ := cmd.Flags().GetBool("save")
	asJSON, _ := cmd.Flags().GetBool("json")
	if participant == "" && len(args) == 0 {
		return fmt.Errorf("give log files or --participant")
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	opts := analyze.Options{
		Screens:          cat.Screens,
		Kind:             cfg.Kind,
		MinClientVersion: cfg.Analyze.MinClientVersion,
		Logger:           slog.Default(),
	}
	if v, _ := cmd.Flags().GetString("min-client-version"); v != "" {
		opts.MinClientVersion = v
	}
	concurrency := cfg.Analyze.Concurrency
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		concurrency = n
	}

	var results []analyze.FileResult
	var st *store.Store
	if participant != "" || save {
		st, err = openStore()
		if err != nil {
			return err
		}
		defer st.Close()
	}

	if participant != "" {
		stored, err := st.EventLog().Events(ctx, participant, store.QueryOpts{})
		if err != nil {
			return err
		}
		events := make([]event.Event, len(stored))
		for i, se := range stored {
			events[i] = se.Event
		}
		a, err := analyze.Analyze(events, opts)
		results = append(results, analyze.FileResult{Path: "db:" + participant, Analysis: a, Err: err})
	}
	if len(args) > 0 {
		results = append(results, analyze.AnalyzeFiles(ctx, args, opts, concurrency)...)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if save {
			if err := st.AnalysisRepo().Save(ctx, r.Analysis.ParticipantID, r.Analysis.ClientVersion, r.Analysis); err != nil {
				return fmt.Errorf("save analysis of %s: %w", r.Path, err)
			}
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, r := range results {
			if r.Err == nil {
				if err := enc.Encode(r.Analysis); err != nil {
					return err
				}
			}
		}
	} else {
		printAnalysisSummary(results)
	}

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Path, r.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d logs failed", failed, len(results))
	}
	return nil
}

func printAnalysisSummary(results []analyze.FileResult) {
	fmt.Printf("%-28s %-16s %-8s %6s  %s\n", "LOG", "PARTICIPANT", "CONFIG", "EVENTS", "TRIALS")
	fmt.Println(strings.Repeat("─", 80))
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-28s %-16s %-8s %6s  %s\n", truncate(r.Path, 28), "-", "-", "-", "failed")
			continue
		}
		a := r.Analysis
		pages := make([]string, 0, len(a.Pages))
		for _, p := range a.Pages {
			pages = append(pages, fmt.Sprintf("%s(%d words)", p.Name, len(p.Words)))
		}
		fmt.Printf("%-28s %-16s %-8s %6d  %s\n",
			truncate(r.Path, 28), truncate(a.ParticipantID, 16), truncate(a.Config, 8), a.Events,
			strings.Join(pages, ", "))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
