package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/tvgrab/internal/fsutil"
	"github.com/vmunix/tvgrab/internal/scheduler"
	"github.com/vmunix/tvgrab/internal/server"
)

var (
	getSel         selectionFlags
	getDir         string
	getServe       string
	getConcurrency int
	getNoHistory   bool
)

var getCmd = &cobra.Command{
	Use:   "get <series title>",
	Short: "Resolve and download episodes of a series",
	Long: `Resolve and download episodes of a series.

Files land in <dir>/<series title>/. Interrupted downloads resume from the
partial file on the next run.`,
	Example: `  tvgrab get "Foo" -s 2 -n 3
  tvgrab get "Foo" -s 1 -e 4 --serve :8484`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGetCmd,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getSel.bind(getCmd)
	getCmd.Flags().StringVarP(&getDir, "dir", "d", "", "Download directory (default: config download.dir)")
	getCmd.Flags().StringVar(&getServe, "serve", "", "Serve the status API on this address during the run, e.g. :8484")
	getCmd.Flags().IntVarP(&getConcurrency, "concurrency", "j", 0, "Download this many files at once (default: config scheduler)")
	getCmd.Flags().BoolVar(&getNoHistory, "no-history", false, "Do not record the run in the history database")
}

func runGetCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp()
	if err != nil {
		return err
	}

	res, err := resolveTitle(ctx, a, strings.Join(args, " "), &getSel)
	if err != nil {
		return err
	}
	if len(res.Tasks) == 0 {
		fmt.Println("Nothing to download")
		return nil
	}

	base := a.cfg.Download.Dir
	if getDir != "" {
		base = getDir
	}
	dir := seriesDir(base, res.Series)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	var db *sql.DB
	if !getNoHistory {
		db, err = a.openDB()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
	}

	runner := server.NewRunner(db, a.newEngine(), server.Config{
		Scheduler:      schedulerOptions(a, dir),
		Addr:           getServe,
		EventRetention: a.cfg.Database.EventRetention,
	}, a.log, newProgressPrinter(os.Stderr, 100*time.Millisecond))

	fmt.Fprintf(os.Stderr, "Downloading %d episode(s) of %s to %s\n", len(res.Tasks), res.Series, dir)
	report, runErr := runner.Run(ctx, res.Tasks)
	if report != nil {
		if jsonOutput {
			printJSON(report.Summary)
		} else {
			printSummary(report.Summary)
		}
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("interrupted; run the same command again to resume")
		}
		return runErr
	}
	if report.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", report.Summary.Failed, report.Summary.Total)
	}
	return nil
}

// seriesDir is the per-series folder under base.
func seriesDir(base, series string) string {
	name := fsutil.SanitizeFilename(series)
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(base, name)
}

func schedulerOptions(a *app, dir string) scheduler.Options {
	opts := scheduler.Options{
		Policy:      scheduler.Policy(a.cfg.Scheduler.Policy),
		Concurrency: a.cfg.Scheduler.Concurrency,
		Dir:         dir,
	}
	if getConcurrency > 0 {
		opts.Policy = scheduler.PolicyConcurrent
		opts.Concurrency = getConcurrency
	}
	return opts
}

func printSummary(s scheduler.Summary) {
	fmt.Println()
	fmt.Printf("Completed: %d of %d", s.Completed, s.Total)
	if s.AlreadyComplete > 0 {
		fmt.Printf(" (%d already complete)", s.AlreadyComplete)
	}
	fmt.Println()
	if s.Failed > 0 {
		parts := make([]string, 0, len(s.Reasons))
		for _, k := range s.ReasonKeys() {
			parts = append(parts, fmt.Sprintf("%s=%d", k, s.Reasons[k]))
		}
		fmt.Printf("Failed:    %d (%s)\n", s.Failed, strings.Join(parts, ", "))
	}
	fmt.Printf("Received:  %s in %s\n", humanize.Bytes(uint64(max(s.Bytes, 0))), s.Duration.Round(time.Second))
}
