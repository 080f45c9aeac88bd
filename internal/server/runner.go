// Package server wires the scheduler, event bus and status API for one run.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/vmunix/tvgrab/internal/api/v1"
	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/events"
	"github.com/vmunix/tvgrab/internal/scheduler"
)

// ErrAlreadyRan is returned when Run is called twice on one runner.
var ErrAlreadyRan = errors.New("runner already ran")

const defaultShutdownTimeout = 5 * time.Second

// Config for the runner.
type Config struct {
	Scheduler        scheduler.Options
	Addr             string        // status server address; empty disables it
	ShutdownTimeout  time.Duration // grace period for status server shutdown
	ProgressInterval time.Duration // throttle for task.progressed events
	RecordInterval   time.Duration // throttle for persisted byte counters
	EventRetention   time.Duration // prune older events on start; 0 keeps all
}

// Runner manages the components of one run. db may be nil, which disables
// task history and event persistence.
type Runner struct {
	db     *sql.DB
	config Config
	logger *slog.Logger

	bus      *events.Bus
	eventLog *events.EventLog
	store    *download.Store
	sched    *scheduler.Scheduler

	mu       sync.Mutex
	listener net.Listener
	ran      bool
}

// NewRunner creates a runner. Extra observers receive scheduler callbacks
// alongside the task recorder and event publisher.
func NewRunner(db *sql.DB, dl scheduler.Downloader, cfg Config, logger *slog.Logger, observers ...scheduler.Observer) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = events.DefaultProgressInterval
	}
	if cfg.RecordInterval == 0 {
		cfg.RecordInterval = download.DefaultRecordInterval
	}

	r := &Runner{db: db, config: cfg, logger: logger}

	if db != nil {
		r.eventLog = events.NewEventLog(db)
		r.store = download.NewStore(db)
		r.store.OnTransition(func(e download.TransitionEvent) {
			logger.Debug("task transition", "run", e.RunID, "task", e.Name, "from", e.From, "to", e.To)
		})
	}
	r.bus = events.NewBus(r.eventLog, logger.With("component", "bus"))

	all := []scheduler.Observer{events.NewPublisher(r.bus, cfg.ProgressInterval)}
	if r.store != nil {
		all = append(all, download.NewRecorder(r.store, cfg.RecordInterval, logger))
	}
	all = append(all, observers...)
	r.sched = scheduler.New(dl, cfg.Scheduler, logger, all...)
	return r
}

// Scheduler returns the scheduler driving the run.
func (r *Runner) Scheduler() *scheduler.Scheduler { return r.sched }

// Bus returns the event bus. It is closed when Run returns.
func (r *Runner) Bus() *events.Bus { return r.bus }

// Store returns the task store, or nil without a database.
func (r *Runner) Store() *download.Store { return r.store }

// Listen binds the status server address so bind errors surface before
// any download starts. Run calls it when it has not been called.
func (r *Runner) Listen() (net.Addr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config.Addr == "" {
		return nil, nil
	}
	if r.listener != nil {
		return r.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", r.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", r.config.Addr, err)
	}
	r.listener = ln
	return ln.Addr(), nil
}

// Run downloads tasks while serving status queries. It blocks until every
// task has ended, then stops the status server. A canceled context fails
// the remaining tasks; the report is still returned.
func (r *Runner) Run(ctx context.Context, tasks []download.Task) (*scheduler.Report, error) {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil, ErrAlreadyRan
	}
	r.ran = true
	r.mu.Unlock()

	defer r.bus.Close()

	if r.eventLog != nil && r.config.EventRetention > 0 {
		if n, err := r.eventLog.Prune(r.config.EventRetention); err != nil {
			r.logger.Warn("prune events failed", "error", err)
		} else if n > 0 {
			r.logger.Debug("pruned events", "count", n)
		}
	}

	addr, err := r.Listen()
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if addr != nil {
		api, err := v1.New(v1.ServerDeps{
			Status:   r.sched,
			Tasks:    r.store,
			Bus:      r.bus,
			EventLog: r.eventLog,
			Logger:   r.logger,
		})
		if err != nil {
			return nil, err
		}
		srv = &http.Server{
			Handler:           logRequests(api.Handler(), r.logger.With("component", "http")),
			ReadHeaderTimeout: 10 * time.Second,
		}
		r.logger.Info("status server listening", "addr", addr.String())
		g.Go(func() error {
			if err := srv.Serve(r.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}

	var report *scheduler.Report
	var runErr error
	g.Go(func() error {
		report, runErr = r.sched.Run(gctx, tasks)
		if srv == nil {
			return nil
		}
		// Ending the bus ends websocket streams, which Shutdown does not track.
		r.bus.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("status server shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, runErr
}
