package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/tvgrab/internal/download"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or the tasks of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryCmd,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().Bool("failed", false, "Only show failed tasks of the run")
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	failedOnly, _ := cmd.Flags().GetBool("failed")

	a, err := loadApp()
	if err != nil {
		return err
	}
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	store := download.NewStore(db)

	if len(args) == 1 {
		filter := download.Filter{RunID: &args[0]}
		if failedOnly {
			failed := download.StateFailed
			filter.State = &failed
		}
		records, err := store.List(filter)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		if jsonOutput {
			printJSON(records)
			return nil
		}
		printRecords(args[0], records)
		return nil
	}

	runs, err := store.Runs(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if jsonOutput {
		printJSON(runs)
		return nil
	}
	printRuns(runs)
	return nil
}

func printRuns(runs []download.RunSummary) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return
	}
	fmt.Printf("  %-36s %-16s %-6s %-6s %-6s %s\n", "RUN", "STARTED", "TASKS", "DONE", "FAILED", "RECEIVED")
	fmt.Println("  " + strings.Repeat("-", 86))
	for _, r := range runs {
		fmt.Printf("  %-36s %-16s %-6d %-6d %-6d %s\n",
			r.RunID, humanize.Time(r.StartedAt), r.Tasks, r.Completed, r.Failed,
			humanize.Bytes(uint64(max(r.Bytes, 0))))
	}
}

func printRecords(runID string, records []*download.Record) {
	if len(records) == 0 {
		fmt.Printf("No tasks for run %s\n", runID)
		return
	}
	fmt.Printf("Run %s (%d tasks):\n\n", runID, len(records))
	fmt.Printf("  %-4s %-40s %-12s %-20s %s\n", "#", "NAME", "STATE", "SIZE", "REASON")
	fmt.Println("  " + strings.Repeat("-", 90))
	for _, r := range records {
		size := humanize.Bytes(uint64(max(r.BytesDownloaded, 0)))
		if r.TotalBytes > 0 {
			size += " / " + humanize.Bytes(uint64(r.TotalBytes))
		}
		fmt.Printf("  %-4d %-40s %-12s %-20s %s\n", r.Index+1, truncate(r.Name, 40), r.State, size, r.Reason)
	}
}
