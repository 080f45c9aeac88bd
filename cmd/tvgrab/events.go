package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/tvgrab/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events [run-id]",
	Short: "Show recent events, or every event of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEventsCmd,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().Duration("prune", 0, "Delete events older than this duration and exit")
}

func runEventsCmd(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	prune, _ := cmd.Flags().GetDuration("prune")

	a, err := loadApp()
	if err != nil {
		return err
	}
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	log := events.NewEventLog(db)

	if prune > 0 {
		n, err := log.Prune(prune)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d events\n", n)
		return nil
	}

	var evs []events.RawEvent
	if len(args) == 1 {
		evs, err = log.ForRun(args[0])
	} else {
		evs, err = log.Tail(limit)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	if jsonOutput {
		printJSON(evs)
		return nil
	}

	if len(evs) == 0 {
		fmt.Println("No events")
		return nil
	}

	fmt.Printf("Events (%d):\n\n", len(evs))
	fmt.Printf("  %-16s %-16s %-10s %s\n", "TIME", "TYPE", "RUN", "TASK")
	fmt.Println("  " + strings.Repeat("-", 70))

	for _, e := range evs {
		fmt.Printf("  %-16s %-16s %-10s %s\n", humanize.Time(e.OccurredAt), e.EventType, shortID(e.RunID), e.Task)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
