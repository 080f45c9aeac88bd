// Package download retrieves files with resumable range requests and
// records their progress.
package download

import (
	"context"
	"errors"
)

// Task is one file to retrieve.
type Task struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// State is the lifecycle state of a task's progress record.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateResuming    State = "resuming"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Progress is a snapshot of one task's transfer.
type Progress struct {
	Name            string  `json:"name"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	TotalBytes      int64   `json:"total_bytes"`
	Percent         float64 `json:"percent"`
	State           State   `json:"state"`
}

// ProgressFunc receives progress snapshots. It is called from the goroutine
// running the download and must not block for long.
type ProgressFunc func(Progress)

// Outcome is the final result kind of a download.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeAlreadyComplete Outcome = "already_complete"
	OutcomeFailed          Outcome = "failed"
)

// Result describes how a download ended.
type Result struct {
	Task     Task
	Path     string
	Outcome  Outcome
	Bytes    int64 // bytes on disk when the download ended
	Total    int64
	Attempts int
	Err      error // set when Outcome is OutcomeFailed, or on a tolerated size mismatch
}

// OK reports whether the file is complete on disk.
func (r Result) OK() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeAlreadyComplete
}

// Reason returns a short machine-readable failure reason, or "" when the
// download succeeded.
func (r Result) Reason() string {
	if r.OK() {
		return ""
	}
	return Reason(r.Err)
}

// Reason classifies an engine error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServerNotResumable):
		return "server_not_resumable"
	case errors.Is(err, ErrUnexpectedStatus):
		return "unexpected_status"
	case errors.Is(err, ErrNetworkExhausted):
		return "network_exhausted"
	case errors.Is(err, ErrSizeMismatch):
		return "size_mismatch"
	case errors.Is(err, ErrUnexpected):
		return "unexpected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unexpected"
	}
}

func percent(downloaded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(downloaded) * 100 / float64(total)
	if p > 100 {
		return 100
	}
	return p
}
