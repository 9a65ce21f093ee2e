package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/predtext/internal/dispatch"
	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/store"
)

// snapshotsKept is how many snapshots per participant survive a replay.
const snapshotsKept = 5

var replayCmd = &cobra.Command{
	Use:   "replay <participant>",
	Short: "Rebuild a participant's session from the stored log",
	Long: "Replay feeds the participant's stored events to a dispatcher as a reconnect " +
		"backlog, prints the resulting session and saves it as a snapshot. A suggestion " +
		"request still pending at the end of the log is printed instead of sent.",
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().Bool("no-save", false, "Do not store the rebuilt session as a snapshot")
}

// printTransport writes rpc effects to stderr.
type printTransport struct{}

func (printTransport) Send(ev event.Event) {
	fmt.Fprintf(os.Stderr, "pending request: id=%d sofar=%q cur=%q\n",
		ev.RPC.RequestID, ev.RPC.Sofar, ev.RPC.CurWord)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	participant := args[0]
	noSave, _ := cmd.Flags().GetBool("no-save")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stored, err := st.EventLog().Events(ctx, participant, store.QueryOpts{})
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return fmt.Errorf("no events stored for participant %q", participant)
	}
	events := make([]event.Event, len(stored))
	for i, se := range stored {
		events[i] = se.Event
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	d := dispatch.New(dispatch.Config{
		Master:    master.Config{Screens: cat.Screens, Logger: slog.Default()},
		Transport: printTransport{},
		Kind:      cfg.Kind,
		Dev:       cfg.Dev,
		Logger:    slog.Default(),
		Errors: func(err error, _ event.Event) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})
	d.Start()
	defer d.Stop()

	if err := d.ApplyBacklog(events); err != nil {
		return err
	}
	if err := d.Idle(ctx); err != nil {
		return err
	}
	mu.Lock()
	replayErr := errors.Join(errs...)
	mu.Unlock()
	if replayErr != nil {
		return fmt.Errorf("replay %s: %w", participant, replayErr)
	}

	session := d.Snapshot()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(session); err != nil {
		return err
	}

	if noSave {
		return nil
	}
	snaps := st.SnapshotRepo()
	err = snaps.Save(ctx, &store.Snapshot{
		ParticipantID: participant,
		Sequence:      stored[len(stored)-1].Sequence,
		Timestamp:     time.Now(),
		Data:          store.SnapshotData{Version: store.SnapshotVersion, Session: session},
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return snaps.Prune(ctx, participant, snapshotsKept)
}
