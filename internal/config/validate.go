package config

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/andybalholm/cascadia"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validPolicies = map[string]bool{
	"sequential": true, "concurrent": true,
}

var validCollisionPolicies = map[string]bool{
	"suffix": true, "fail": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("site.base_url: must be an absolute URL, got %q", c.Site.BaseURL))
	}

	selectors := map[string]string{
		"site.search_result":      c.Site.SearchResult,
		"site.season_link":        c.Site.SeasonLink,
		"site.episode_container":  c.Site.EpisodeContainer,
		"site.episode_label":      c.Site.EpisodeLabel,
		"site.episode_link":       c.Site.EpisodeLink,
		"site.download_page_link": c.Site.DownloadPageLink,
		"site.download_input":     c.Site.DownloadInput,
	}
	for _, key := range sortedKeys(selectors) {
		if err := checkSelector(selectors[key]); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid selector %q: %v", key, selectors[key], err))
		}
	}
	if c.Site.DownloadInputIndex < 1 {
		errs = append(errs, fmt.Sprintf("site.download_input_index: must be >= 1, got %d", c.Site.DownloadInputIndex))
	}

	if c.HTTP.RequestTimeout < 0 {
		errs = append(errs, "http.request_timeout: must not be negative")
	}
	if c.HTTP.MaxConnections < 1 {
		errs = append(errs, fmt.Sprintf("http.max_connections: must be >= 1, got %d", c.HTTP.MaxConnections))
	}

	if c.Resolver.EpisodeConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("resolver.episode_concurrency: must be >= 1, got %d", c.Resolver.EpisodeConcurrency))
	}

	if c.Download.ChunkSize < 512 {
		errs = append(errs, fmt.Sprintf("download.chunk_size: must be >= 512, got %d", c.Download.ChunkSize))
	}
	if c.Download.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("download.max_attempts: must be >= 1, got %d", c.Download.MaxAttempts))
	}
	if c.Download.RetryDelay < 0 {
		errs = append(errs, "download.retry_delay: must not be negative")
	}
	if c.Database.EventRetention < 0 {
		errs = append(errs, "database.event_retention: must not be negative")
	}
	if !validCollisionPolicies[c.Download.CollisionPolicy] {
		errs = append(errs, fmt.Sprintf("download.collision_policy: must be one of suffix, fail; got %q", c.Download.CollisionPolicy))
	}

	if !validPolicies[c.Scheduler.Policy] {
		errs = append(errs, fmt.Sprintf("scheduler.policy: must be one of sequential, concurrent; got %q", c.Scheduler.Policy))
	}
	if c.Scheduler.Concurrency < 1 || c.Scheduler.Concurrency > 16 {
		errs = append(errs, fmt.Sprintf("scheduler.concurrency: must be between 1 and 16, got %d", c.Scheduler.Concurrency))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	return errs
}

func checkSelector(sel string) error {
	if sel == "" {
		return fmt.Errorf("empty")
	}
	_, err := cascadia.Compile(sel)
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
