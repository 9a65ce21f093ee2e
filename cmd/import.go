package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/predtext/internal/event"
)

var importCmd = &cobra.Command{
	Use:   "import <log file>",
	Short: "Load a newline-delimited JSON event log into the database",
	Long: "Import validates every line of the log, takes the participant from its " +
		"login event and appends the events in order.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		events, err := event.ReadFile(args[0], true)
		if err != nil {
			return err
		}
		if len(events) == 0 || events[0].Type != event.TypeLogin {
			return fmt.Errorf("%s: log does not start with a login event", args[0])
		}
		participant, _ := cmd.Flags().GetString("participant")
		if participant == "" {
			participant = events[0].ParticipantID
		}
		if participant == "" {
			return fmt.Errorf("%s: login has no participant id; pass --participant", args[0])
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		log := st.EventLog()
		for i, ev := range events {
			if _, err := log.Append(ctx, participant, ev); err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
		}
		fmt.Printf("Imported %d events for %s.\n", len(events), participant)
		return nil
	},
}

func init() {
	importCmd.Flags().String("participant", "", "Override the participant id taken from the login")
}
