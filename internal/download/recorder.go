package download

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultRecordInterval bounds how often byte counters of a task are written.
const DefaultRecordInterval = time.Second

type recordKey struct {
	runID string
	index int
}

type trackedRecord struct {
	rec       *Record
	lastWrite time.Time
}

// Recorder persists task lifecycle callbacks into a Store. State changes are
// written immediately; byte counters at most once per interval.
type Recorder struct {
	store    *Store
	log      *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	records map[recordKey]*trackedRecord
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store *Store, interval time.Duration, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultRecordInterval
	}
	return &Recorder{
		store:    store,
		log:      log.With("component", "recorder"),
		interval: interval,
		records:  make(map[recordKey]*trackedRecord),
	}
}

// TaskAdmitted inserts the pending record for a task.
func (r *Recorder) TaskAdmitted(runID string, index int, task Task) {
	rec := &Record{RunID: runID, Index: index, Name: task.Name, URL: task.URL, State: StatePending}
	if err := r.store.Add(rec); err != nil {
		r.log.Error("record task failed", "task", task.Name, "error", err)
		return
	}

	r.mu.Lock()
	r.records[recordKey{runID, index}] = &trackedRecord{rec: rec, lastWrite: time.Now()}
	r.mu.Unlock()
}

// TaskProgressed records state changes and, throttled, byte counters.
// Terminal states are left to TaskFinished, which has the full result.
func (r *Recorder) TaskProgressed(runID string, index int, p Progress) {
	if p.State.IsTerminal() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.records[recordKey{runID, index}]
	if !ok {
		return
	}
	rec := t.rec
	rec.BytesDownloaded, rec.TotalBytes = p.BytesDownloaded, p.TotalBytes

	var err error
	switch {
	case p.State != rec.State && rec.State.CanTransitionTo(p.State):
		err = r.store.Transition(rec, p.State)
	case time.Since(t.lastWrite) >= r.interval:
		err = r.store.UpdateProgress(rec)
	default:
		return
	}
	t.lastWrite = time.Now()
	if err != nil {
		r.log.Warn("record progress failed", "task", rec.Name, "error", err)
	}
}

// TaskFinished stores the final result and moves the record to its
// terminal state.
func (r *Recorder) TaskFinished(runID string, index int, res Result) {
	key := recordKey{runID, index}

	r.mu.Lock()
	t, ok := r.records[key]
	delete(r.records, key)
	r.mu.Unlock()
	if !ok {
		return
	}

	rec := t.rec
	rec.Path = res.Path
	rec.BytesDownloaded, rec.TotalBytes = res.Bytes, res.Total
	rec.Attempts = res.Attempts
	rec.Reason = res.Reason()

	to := StateFailed
	if res.OK() {
		to = StateCompleted
	}
	if err := r.store.Transition(rec, to); err != nil {
		r.log.Error("record result failed", "task", rec.Name, "state", to, "error", err)
	}
}
