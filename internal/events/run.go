package events

import (
	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/scheduler"
)

// Event types for runs and their tasks.
const (
	EventRunStarted     = "run.started"
	EventTaskAdmitted   = "task.admitted"
	EventTaskProgressed = "task.progressed"
	EventTaskCompleted  = "task.completed"
	EventTaskFailed     = "task.failed"
	EventRunFinished    = "run.finished"
)

// RunStarted is emitted when a scheduler run begins.
type RunStarted struct {
	BaseEvent
	Tasks []download.Task `json:"tasks"`
}

// TaskAdmitted is emitted when a task is handed to the engine.
type TaskAdmitted struct {
	BaseEvent
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// TaskProgressed is emitted as bytes arrive. Publishers throttle it.
type TaskProgressed struct {
	BaseEvent
	Index           int            `json:"index"`
	State           download.State `json:"state"`
	BytesDownloaded int64          `json:"bytes_downloaded"`
	TotalBytes      int64          `json:"total_bytes"`
	Percent         float64        `json:"percent"`
}

// TaskCompleted is emitted when a file is complete on disk.
type TaskCompleted struct {
	BaseEvent
	Index    int              `json:"index"`
	Path     string           `json:"path"`
	Outcome  download.Outcome `json:"outcome"`
	Bytes    int64            `json:"bytes"`
	Attempts int              `json:"attempts"`
	Warning  string           `json:"warning,omitempty"` // tolerated size mismatch
}

// TaskFailed is emitted when a task ends without a complete file.
type TaskFailed struct {
	BaseEvent
	Index    int    `json:"index"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
	Bytes    int64  `json:"bytes"`
	Attempts int    `json:"attempts"`
}

// RunFinished is emitted once every task of a run has ended.
type RunFinished struct {
	BaseEvent
	Summary scheduler.Summary `json:"summary"`
}
