package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/store"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect stored event logs",
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List participants with stored events",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		participants, err := st.EventLog().Participants(cmd.Context())
		if err != nil {
			return err
		}
		if len(participants) == 0 {
			fmt.Println("No stored events.")
			return nil
		}

		fmt.Printf("%-24s %7s  %-19s  %-19s  %s\n", "PARTICIPANT", "EVENTS", "FIRST", "LAST", "DURATION")
		fmt.Println(strings.Repeat("─", 86))
		for _, p := range participants {
			first := time.UnixMilli(p.FirstTimestamp)
			last := time.UnixMilli(p.LastTimestamp)
			fmt.Printf("%-24s %7d  %-19s  %-19s  %s\n",
				truncate(p.ParticipantID, 24), p.Events,
				first.Format("2006-01-02 15:04:05"), last.Format("2006-01-02 15:04:05"),
				last.Sub(first).Round(time.Second))
		}
		return nil
	},
}

var logExportCmd = &cobra.Command{
	Use:   "export <participant>",
	Short: "Write a participant's stored events as newline-delimited JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stored, err := st.EventLog().Events(cmd.Context(), args[0], store.QueryOpts{})
		if err != nil {
			return err
		}
		events := make([]event.Event, len(stored))
		for i, se := range stored {
			events[i] = se.Event
		}
		return event.WriteAll(os.Stdout, events)
	},
}

func init() {
	logCmd.AddCommand(logListCmd)
	logCmd.AddCommand(logExportCmd)
}
