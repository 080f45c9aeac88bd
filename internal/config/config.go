// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Site      SiteConfig      `toml:"site"`
	HTTP      HTTPConfig      `toml:"http"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Download  DownloadConfig  `toml:"download"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
}

// SiteConfig holds the page-layout constants of the source site.
type SiteConfig struct {
	BaseURL string `toml:"base_url"`
	// SearchPath is appended to BaseURL; {query} is replaced by the escaped title.
	SearchPath         string `toml:"search_path"`
	SearchResult       string `toml:"search_result"`
	SeasonLink         string `toml:"season_link"`
	EpisodeContainer   string `toml:"episode_container"`
	EpisodeLabel       string `toml:"episode_label"`
	EpisodeLink        string `toml:"episode_link"`
	DownloadPageLink   string `toml:"download_page_link"`
	DownloadInput      string `toml:"download_input"`
	DownloadInputIndex int    `toml:"download_input_index"`
}

type HTTPConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
	UserAgent      string        `toml:"user_agent"`
	MaxConnections int           `toml:"max_connections"`
}

type ResolverConfig struct {
	EpisodeConcurrency int  `toml:"episode_concurrency"`
	SortByName         bool `toml:"sort_by_name"`
}

type DownloadConfig struct {
	Dir                  string        `toml:"dir"`
	ChunkSize            int           `toml:"chunk_size"`
	MaxAttempts          int           `toml:"max_attempts"`
	RetryDelay           time.Duration `toml:"retry_delay"`
	RequireResumeSupport *bool         `toml:"require_resume_support"`
	FailOnSizeMismatch   bool          `toml:"fail_on_size_mismatch"`
	CollisionPolicy      string        `toml:"collision_policy"`
}

type SchedulerConfig struct {
	Policy      string `toml:"policy"`
	Concurrency int    `toml:"concurrency"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path           string        `toml:"path"`
	EventRetention time.Duration `toml:"event_retention"` // 0 keeps all events
}

// RequiresResumeSupport reports whether downloads must refuse servers that
// do not advertise byte ranges. Unset means true.
func (c DownloadConfig) RequiresResumeSupport() bool {
	return c.RequireResumeSupport == nil || *c.RequireResumeSupport
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, missing, err := load(path)
	if err != nil {
		return nil, err
	}

	cfgErr := &ConfigError{Path: path, Missing: missing, Errors: cfg.Validate()}
	if cfgErr.HasErrors() {
		return nil, cfgErr
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration without validating it.
func LoadWithoutValidation(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

// LoadOrDefault loads path when it is non-empty, otherwise discovers a config
// file. When no file can be found the defaults are returned.
func LoadOrDefault(path string) (*Config, string, error) {
	if path == "" {
		found, err := Discover()
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Default(), "", nil
			}
			return nil, "", err
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, missing, nil
}

func (c *Config) applyDefaults() {
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = "https://mobiletvshows.site/"
	}
	if c.Site.SearchPath == "" {
		c.Site.SearchPath = "search.php?search={query}&beginsearch=Search&vsearch=&by=series="
	}
	if c.Site.SearchResult == "" {
		c.Site.SearchResult = ".mainbox3 table span a"
	}
	if c.Site.SeasonLink == "" {
		c.Site.SeasonLink = ".mainbox2 > a"
	}
	if c.Site.EpisodeContainer == "" {
		c.Site.EpisodeContainer = ".mainbox"
	}
	if c.Site.EpisodeLabel == "" {
		c.Site.EpisodeLabel = "b"
	}
	if c.Site.EpisodeLink == "" {
		c.Site.EpisodeLink = "a"
	}
	if c.Site.DownloadPageLink == "" {
		c.Site.DownloadPageLink = "#dlink2"
	}
	if c.Site.DownloadInput == "" {
		c.Site.DownloadInput = ".downloadlinks2 input"
	}
	if c.Site.DownloadInputIndex == 0 {
		c.Site.DownloadInputIndex = 2
	}

	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "tvgrab/1.0"
	}
	if c.HTTP.MaxConnections == 0 {
		c.HTTP.MaxConnections = 5
	}

	if c.Resolver.EpisodeConcurrency == 0 {
		c.Resolver.EpisodeConcurrency = 5
	}

	if c.Download.Dir == "" {
		c.Download.Dir = "."
	}
	if c.Download.ChunkSize == 0 {
		c.Download.ChunkSize = 16 * 1024
	}
	if c.Download.MaxAttempts == 0 {
		c.Download.MaxAttempts = 5
	}
	if c.Download.RetryDelay == 0 {
		c.Download.RetryDelay = 5 * time.Second
	}
	if c.Download.CollisionPolicy == "" {
		c.Download.CollisionPolicy = "suffix"
	}

	if c.Scheduler.Policy == "" {
		c.Scheduler.Policy = "sequential"
	}
	if c.Scheduler.Concurrency == 0 {
		c.Scheduler.Concurrency = 2
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8484
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath()
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Variables that are unset and have no default are left in place and reported.
// Comment lines are copied unchanged.
func substituteEnvVars(content string) (string, []string) {
	seen := make(map[string]bool)
	var missing []string

	lines := strings.SplitAfter(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines[i] = envVarPattern.ReplaceAllStringFunc(line, func(match string) string {
			groups := envVarPattern.FindStringSubmatch(match)
			name, hasDefault, def := groups[1], groups[2] != "", groups[3]
			if value, ok := os.LookupEnv(name); ok {
				return value
			}
			if hasDefault {
				return def
			}
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			return match
		})
	}

	sort.Strings(missing)
	return strings.Join(lines, ""), missing
}
