package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Discover when no config file exists.
var ErrNotFound = errors.New("config not found")

// DefaultPath returns the XDG-compliant default config path.
func DefaultPath() string {
	return filepath.Join(configHome(), "tvgrab", "config.toml")
}

// DefaultDatabasePath returns the XDG-compliant default database path.
func DefaultDatabasePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "./tvgrab.db"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "tvgrab", "tvgrab.db")
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

// Discover finds the config file using the standard search order.
// Search order:
//  1. TVGRAB_CONFIG environment variable
//  2. ./tvgrab.toml (current directory)
//  3. $XDG_CONFIG_HOME/tvgrab/config.toml
//  4. /etc/tvgrab/config.toml
func Discover() (string, error) {
	if envPath := os.Getenv("TVGRAB_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("TVGRAB_CONFIG=%s: %w", envPath, err)
		}
		return envPath, nil
	}

	paths := []string{
		"./tvgrab.toml",
		DefaultPath(),
		"/etc/tvgrab/config.toml",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w, checked: %s", ErrNotFound, strings.Join(paths, ", "))
}
