package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "tvgrab",
	Short: "Resolve and download TV series episodes",
	Long: `tvgrab - resolve and download TV series episodes

Searches the configured site for a series, resolves the selected seasons
and episodes to direct download links, and downloads them with resumable
range requests.`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; partial downloads stay resumable.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: discovered)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("tvgrab {{.Version}}\n")
}
