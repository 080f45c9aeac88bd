package scheduler

import (
	"sync"

	"github.com/vmunix/tvgrab/internal/download"
)

// TaskStatus is one row of a snapshot.
type TaskStatus struct {
	Index    int               `json:"index"`
	URL      string            `json:"url"`
	Progress download.Progress `json:"progress"`
	Reason   string            `json:"reason,omitempty"`
}

// Snapshot aggregates the progress of a run.
type Snapshot struct {
	RunID          string       `json:"run_id"`
	Running        bool         `json:"running"`
	TotalTasks     int          `json:"total_tasks"`
	CompletedTasks int          `json:"completed_tasks"`
	FailedTasks    int          `json:"failed_tasks"`
	ActiveTasks    int          `json:"active_tasks"`
	AveragePercent float64      `json:"average_percent"`
	Tasks          []TaskStatus `json:"tasks"`
}

// table is the progress table of one run. Each entry has a single writer,
// the goroutine running that task; the lock orders those writes against
// snapshot reads.
type table struct {
	runID string

	mu   sync.RWMutex
	rows []TaskStatus
}

func newTable(runID string, tasks []download.Task) *table {
	rows := make([]TaskStatus, len(tasks))
	for i, task := range tasks {
		rows[i] = TaskStatus{
			Index:    i,
			URL:      task.URL,
			Progress: download.Progress{Name: task.Name, State: download.StatePending},
		}
	}
	return &table{runID: runID, rows: rows}
}

func (t *table) set(index int, p download.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A terminal entry never changes again.
	if t.rows[index].Progress.State.IsTerminal() {
		return
	}
	t.rows[index].Progress = p
}

func (t *table) finish(index int, res download.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := &t.rows[index]
	row.Progress.BytesDownloaded = res.Bytes
	if res.Total > 0 {
		row.Progress.TotalBytes = res.Total
	}
	row.Progress.State = download.StateFailed
	if res.OK() {
		row.Progress.State = download.StateCompleted
	}
	row.Reason = res.Reason()
}

func (t *table) fail(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[index].Progress.State = download.StateFailed
	t.rows[index].Reason = "canceled"
}

func (t *table) snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		RunID:      t.runID,
		TotalTasks: len(t.rows),
		Tasks:      make([]TaskStatus, len(t.rows)),
	}
	copy(snap.Tasks, t.rows)

	var sum float64
	for _, row := range t.rows {
		switch row.Progress.State {
		case download.StateCompleted:
			snap.CompletedTasks++
			sum += 100
		case download.StateFailed:
			snap.FailedTasks++
			sum += row.Progress.Percent
		case download.StateDownloading, download.StateResuming:
			snap.ActiveTasks++
			sum += row.Progress.Percent
		}
	}
	if len(t.rows) > 0 {
		snap.AveragePercent = sum / float64(len(t.rows))
	}
	return snap
}
