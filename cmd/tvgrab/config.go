package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/vmunix/tvgrab/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config syntax, selectors and environment variable substitution without contacting the site.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configTestCmd, configShowCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := config.DefaultPath()
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		found, err := config.Discover()
		if err != nil {
			return err
		}
		path = found
	}

	fmt.Printf("Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			printConfigErrors(configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	printConfigSummary(cfg)
	fmt.Println("\nConfiguration valid!")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if a.cfgPath != "" {
		fmt.Printf("# %s\n", a.cfgPath)
	} else {
		fmt.Println("# defaults (no config file found)")
	}
	return toml.NewEncoder(os.Stdout).Encode(a.cfg)
}

func printConfigErrors(e *config.ConfigError) {
	if len(e.Missing) > 0 {
		fmt.Fprintln(os.Stderr, "Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Fprintf(os.Stderr, "  - %s\n", m)
		}
		fmt.Fprintln(os.Stderr)
	}

	if len(e.Errors) > 0 {
		fmt.Fprintln(os.Stderr, "Validation errors:")
		for _, err := range e.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", err)
		}
		fmt.Fprintln(os.Stderr)
	}
}

func printConfigSummary(cfg *config.Config) {
	fmt.Println("Configuration Summary:")
	fmt.Printf("  Site:       %s\n", cfg.Site.BaseURL)
	fmt.Printf("  Downloads:  %s (attempts %d, delay %s, collisions %s)\n",
		cfg.Download.Dir, cfg.Download.MaxAttempts, cfg.Download.RetryDelay, cfg.Download.CollisionPolicy)
	fmt.Printf("  Scheduler:  %s (concurrency %d)\n", cfg.Scheduler.Policy, cfg.Scheduler.Concurrency)
	fmt.Printf("  Server:     %s:%d (log: %s)\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.LogLevel)
	fmt.Printf("  Database:   %s\n", cfg.Database.Path)
}
