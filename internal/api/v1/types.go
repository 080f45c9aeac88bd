package v1

import (
	"time"

	"github.com/vmunix/tvgrab/internal/scheduler"
)

// statusResponse is the response for GET /status.
type statusResponse struct {
	RunID          string  `json:"run_id"`
	Running        bool    `json:"running"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	ActiveTasks    int     `json:"active_tasks"`
	AveragePercent float64 `json:"average_percent"`
}

// listTasksResponse is the response for GET /tasks.
type listTasksResponse struct {
	RunID string                 `json:"run_id"`
	Items []scheduler.TaskStatus `json:"items"`
	Total int                    `json:"total"`
}

// runResponse is the API representation of a past run.
type runResponse struct {
	RunID     string    `json:"run_id"`
	Tasks     int       `json:"tasks"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Bytes     int64     `json:"bytes"`
	StartedAt time.Time `json:"started_at"`
}

// taskRecordResponse is the API representation of a persisted task.
type taskRecordResponse struct {
	ID              int64      `json:"id"`
	Index           int        `json:"index"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	Path            string     `json:"path,omitempty"`
	State           string     `json:"state"`
	BytesDownloaded int64      `json:"bytes_downloaded"`
	TotalBytes      int64      `json:"total_bytes"`
	Attempts        int        `json:"attempts"`
	Reason          string     `json:"reason,omitempty"`
	AddedAt         time.Time  `json:"added_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// EventResponse is the API representation of a persisted event.
type EventResponse struct {
	ID         int64  `json:"id"`
	EventType  string `json:"event_type"`
	RunID      string `json:"run_id"`
	Task       string `json:"task,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type listEventsResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
	Limit int             `json:"limit"`
}
