package v1

import (
	"errors"
	"log/slog"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/events"
	"github.com/vmunix/tvgrab/internal/scheduler"
)

// ErrMissingDependency is returned when a required dependency is nil.
var ErrMissingDependency = errors.New("missing required dependency")

// StatusSource reports live run progress. *scheduler.Scheduler implements it.
type StatusSource interface {
	Snapshot() scheduler.Snapshot
}

// ServerDeps contains all dependencies for the API server.
// Required dependencies must be non-nil; optional dependencies may be nil.
type ServerDeps struct {
	// Required dependencies
	Status StatusSource

	// Optional dependencies (nil if not configured)
	Tasks    *download.Store  // task history
	Bus      *events.Bus      // live event stream for /ws
	EventLog *events.EventLog // persisted events
	Logger   *slog.Logger
}

// Validate checks that all required dependencies are provided.
func (d ServerDeps) Validate() error {
	if d.Status == nil {
		return errors.New("status source is required")
	}
	return nil
}
