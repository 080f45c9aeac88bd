package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vmunix/tvgrab/internal/config"
	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/fetch"
	"github.com/vmunix/tvgrab/internal/migrations"
	"github.com/vmunix/tvgrab/internal/resolver"
)

// app holds the loaded configuration and logger shared by commands.
type app struct {
	cfg     *config.Config
	cfgPath string
	log     *slog.Logger
}

func loadApp() (*app, error) {
	cfg, path, err := config.LoadOrDefault(configPath)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			printConfigErrors(cfgErr)
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	level := cfg.Server.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}
	return &app{cfg: cfg, cfgPath: path, log: logger}, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openDB opens the history database and applies the schema.
func (a *app) openDB() (*sql.DB, error) {
	path := a.cfg.Database.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time keeps recorder and event log writes from
	// contending for the file lock.
	db.SetMaxOpenConns(1)
	if err := migrations.Apply(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (a *app) newResolver() (*resolver.Resolver, error) {
	httpCfg := a.cfg.HTTP
	client := &http.Client{
		Timeout:   httpCfg.RequestTimeout,
		Transport: download.NewTransport(httpCfg.RequestTimeout, httpCfg.MaxConnections),
	}
	site, err := resolver.NewMobileTVShows(a.cfg.Site, fetch.NewClient(client, httpCfg.UserAgent, a.log), a.log)
	if err != nil {
		return nil, err
	}
	return resolver.New(site, resolver.Options{
		EpisodeConcurrency: a.cfg.Resolver.EpisodeConcurrency,
		SortByName:         a.cfg.Resolver.SortByName,
		Collision:          resolver.CollisionPolicy(a.cfg.Download.CollisionPolicy),
	}, a.log), nil
}

func (a *app) newEngine() *download.Engine {
	opts := download.DefaultOptions()
	opts.ChunkSize = a.cfg.Download.ChunkSize
	opts.Retry = download.RetryPolicy{MaxAttempts: a.cfg.Download.MaxAttempts, Delay: a.cfg.Download.RetryDelay}
	opts.UserAgent = a.cfg.HTTP.UserAgent
	opts.RequireResumeSupport = a.cfg.Download.RequiresResumeSupport()
	opts.FailOnSizeMismatch = a.cfg.Download.FailOnSizeMismatch

	// No overall client timeout: a long transfer is bounded per chunk instead.
	client := &http.Client{Transport: download.NewTransport(a.cfg.HTTP.RequestTimeout, a.cfg.HTTP.MaxConnections)}
	return download.NewEngine(client, opts, a.log.With("component", "download"))
}
