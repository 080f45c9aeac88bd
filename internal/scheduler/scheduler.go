// Package scheduler drains a task list through the download engine under a
// concurrency policy and aggregates progress for status queries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/fsutil"
)

// ErrRunning is returned when Run is called while a run is in progress.
var ErrRunning = errors.New("scheduler is already running")

// Policy selects how tasks share the network.
type Policy string

const (
	// PolicySequential finishes each task before starting the next.
	PolicySequential Policy = "sequential"
	// PolicyConcurrent keeps at most Concurrency tasks in flight.
	PolicyConcurrent Policy = "concurrent"
)

// DefaultConcurrency is the in-flight limit of the concurrent policy.
const DefaultConcurrency = 2

// Downloader runs one task. *download.Engine implements it.
type Downloader interface {
	Download(ctx context.Context, task download.Task, dir string, onProgress download.ProgressFunc) download.Result
}

// Observer receives task lifecycle callbacks. Callbacks for one task come
// from one goroutine in order; callbacks for different tasks may be
// concurrent. Implementations must not block.
type Observer interface {
	TaskAdmitted(runID string, index int, task download.Task)
	TaskProgressed(runID string, index int, p download.Progress)
	TaskFinished(runID string, index int, res download.Result)
}

// RunObserver is optionally implemented by observers that track whole runs.
type RunObserver interface {
	RunStarted(runID string, tasks []download.Task)
	RunFinished(runID string, summary Summary)
}

// Options configures a scheduler.
type Options struct {
	Policy      Policy
	Concurrency int    // in-flight limit for PolicyConcurrent
	Dir         string // destination directory shared by all tasks
}

// Report is the outcome of a run. Results are in task order.
type Report struct {
	RunID   string
	Results []download.Result
	Summary Summary
}

// Scheduler owns the work queue of one run at a time.
type Scheduler struct {
	dl        Downloader
	opts      Options
	log       *slog.Logger
	observers []Observer
	locks     *pathLocks

	mu      sync.RWMutex
	running bool
	table   *table
}

// New creates a scheduler.
func New(dl Downloader, opts Options, log *slog.Logger, observers ...Observer) *Scheduler {
	if opts.Policy == "" {
		opts.Policy = PolicySequential
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		dl:        dl,
		opts:      opts,
		log:       log.With("component", "scheduler"),
		observers: observers,
		locks:     newPathLocks(),
		table:     newTable("", nil),
	}
}

// Limit returns the number of tasks allowed in flight.
func (s *Scheduler) Limit() int {
	if s.opts.Policy == PolicyConcurrent {
		return s.opts.Concurrency
	}
	return 1
}

// Run downloads tasks and returns one result per task. It always returns
// once every task has finished or been abandoned: cancellation fails the
// tasks not yet started and lets running ones stop at a chunk boundary.
func (s *Scheduler) Run(ctx context.Context, tasks []download.Task) (*Report, error) {
	runID := uuid.NewString()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunning
	}
	s.running = true
	s.table = newTable(runID, tasks)
	tbl := s.table
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log := s.log.With("run", runID)
	log.Info("run started", "tasks", len(tasks), "policy", s.opts.Policy, "limit", s.Limit(), "dir", s.opts.Dir)
	s.eachRunObserver(func(o RunObserver) { o.RunStarted(runID, tasks) })

	start := time.Now()
	results := make([]download.Result, len(tasks))
	var g errgroup.Group
	g.SetLimit(s.Limit())

	for i, task := range tasks {
		if ctx.Err() != nil {
			results[i] = abandoned(task, ctx.Err())
			tbl.fail(i)
			continue
		}
		g.Go(func() error {
			results[i] = s.runTask(ctx, runID, i, task, tbl)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	summary.Duration = time.Since(start)
	log.Info("run finished",
		"completed", summary.Completed,
		"already_complete", summary.AlreadyComplete,
		"failed", summary.Failed,
		"bytes", summary.Bytes,
		"duration_ms", summary.Duration.Milliseconds())
	s.eachRunObserver(func(o RunObserver) { o.RunFinished(runID, summary) })

	if err := ctx.Err(); err != nil {
		return &Report{RunID: runID, Results: results, Summary: summary}, fmt.Errorf("run %s: %w", runID, err)
	}
	return &Report{RunID: runID, Results: results, Summary: summary}, nil
}

func (s *Scheduler) runTask(ctx context.Context, runID string, index int, task download.Task, tbl *table) download.Result {
	if err := ctx.Err(); err != nil {
		tbl.fail(index)
		return abandoned(task, err)
	}
	unlock, err := s.locks.lock(ctx, s.destinationKey(task))
	if err != nil {
		tbl.fail(index)
		return abandoned(task, err)
	}
	defer unlock()

	for _, o := range s.observers {
		o.TaskAdmitted(runID, index, task)
	}

	res := s.dl.Download(ctx, task, s.opts.Dir, func(p download.Progress) {
		tbl.set(index, p)
		for _, o := range s.observers {
			o.TaskProgressed(runID, index, p)
		}
	})

	tbl.finish(index, res)
	for _, o := range s.observers {
		o.TaskFinished(runID, index, res)
	}
	return res
}

// destinationKey identifies the file a task writes. Case is folded since
// common filesystems ignore it.
func (s *Scheduler) destinationKey(task download.Task) string {
	return strings.ToLower(filepath.Join(s.opts.Dir, fsutil.SanitizeFilename(task.Name)))
}

func (s *Scheduler) eachRunObserver(fn func(RunObserver)) {
	for _, o := range s.observers {
		if ro, ok := o.(RunObserver); ok {
			fn(ro)
		}
	}
}

// Snapshot returns the progress of the current or most recent run. It is
// safe to call at any time from any goroutine.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	tbl := s.table
	running := s.running
	s.mu.RUnlock()

	snap := tbl.snapshot()
	snap.Running = running
	return snap
}

func abandoned(task download.Task, err error) download.Result {
	return download.Result{Task: task, Outcome: download.OutcomeFailed, Err: err}
}
