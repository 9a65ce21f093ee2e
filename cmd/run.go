package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abhisek/predtext/internal/dispatch"
	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/metrics"
	"github.com/abhisek/predtext/internal/store"
	"github.com/abhisek/predtext/internal/transport"
	"github.com/abhisek/predtext/internal/trial"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live session fed by events on stdin",
	Long: "Run reads newline-delimited JSON events from stdin and dispatches them " +
		"through a live session. Suggestion requests go to the backend over a " +
		"WebSocket and replies are dispatched back. Every stamped event is written " +
		"to the database (--participant) or a log file (--log-file) before it is applied.",
	RunE: runSession,
}

func init() {
	f := runCmd.Flags()
	f.String("participant", "", "Store events in the database under this participant")
	f.String("log-file", "", "Append events to this newline-delimited JSON file instead")
	f.String("url", "", "Suggestion backend URL (overrides PREDTEXT_TRANSPORT_URL)")
	f.Bool("offline", false, "Run without a suggestion backend")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	participant, _ := cmd.Flags().GetString("participant")
	logFile, _ := cmd.Flags().GetString("log-file")
	offline, _ := cmd.Flags().GetBool("offline")
	url := cfg.TransportURL
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		url = u
	}
	metricsAddr := cfg.MetricsAddr
	if a, _ := cmd.Flags().GetString("metrics-addr"); a != "" {
		metricsAddr = a
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	serveMetrics(ctx, metricsAddr, reg)

	var evLog dispatch.EventLog
	switch {
	case logFile != "":
		fl, err := store.OpenFileLog(logFile)
		if err != nil {
			return err
		}
		defer fl.Close()
		evLog = fl
	case participant != "":
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		evLog = st.EventLog().For(participant)
	default:
		logger.Warn("no event log configured; events will not be persisted")
	}

	inbound := make(chan event.Event, 64)
	backlogs := make(chan []event.Event, 1)
	var (
		sender dispatch.Transport
		wsErrs <-chan error
		wsDone <-chan struct{}
	)
	if !offline {
		latency := transport.NewLatencyTracker(m.SuggestionLatency)
		ws, err := transport.Dial(ctx, url, transport.Options{
			OnEvent: func(ev event.Event) {
				latency.Received(ev)
				select {
				case inbound <- ev:
				case <-ctx.Done():
				}
			},
			OnBacklog: func(b []event.Event) {
				select {
				case backlogs <- b:
				case <-ctx.Done():
				}
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("connect to backend: %w", err)
		}
		defer ws.Close()
		sender = transport.Tracked{Sender: ws, LatencyTracker: latency}
		wsErrs, wsDone = ws.Errors(), ws.Done()
	}

	d := dispatch.New(dispatch.Config{
		Master: master.Config{
			Screens:  cat.Screens,
			NewTrial: trial.NewFactory(trial.WithLogger(logger), trial.WithObserver(m)),
			Logger:   logger,
		},
		Log:       evLog,
		Transport: sender,
		Kind:      cfg.Kind,
		Dev:       cfg.Dev,
		Metrics:   m,
		Logger:    logger,
	})
	d.Start()
	defer d.Stop()
	logger.Info("session started", "session", d.SessionID(), "kind", cfg.Kind)

	lines := make(chan event.Event)
	readErr := make(chan error, 1)
	go func() {
		rd := event.NewReader(os.Stdin, true)
		for {
			ev, err := rd.Next()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return printSession(d)
		case ev := <-lines:
			if err := d.Dispatch(ev); err != nil {
				return err
			}
		case ev := <-inbound:
			if err := d.Dispatch(ev); err != nil {
				return err
			}
		case b := <-backlogs:
			if err := d.ApplyBacklog(b); err != nil {
				return err
			}
		case err := <-wsErrs:
			m.TransportError()
			logger.Warn("transport error", "error", err)
		case <-wsDone:
			logger.Warn("backend connection closed")
			wsDone = nil
		case err := <-readErr:
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("read stdin: %w", err)
			}
			// Apply queued effects before printing the final state.
			idleCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = d.Idle(idleCtx)
			cancel()
			if err != nil && !errors.Is(err, dispatch.ErrStopped) {
				logger.Warn("session did not settle", "error", err)
			}
			return printSession(d)
		}
	}
}

func printSession(d *dispatch.Dispatcher) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(d.Snapshot())
}
