package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/scheduler"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(evs []Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.EventType()
	}
	return out
}

func TestPublisher_Lifecycle(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()
	ch := bus.SubscribeAll(100)
	pub := NewPublisher(bus, 0)

	task := download.Task{URL: "https://example.com/a.mp4", Name: "a.mp4"}
	pub.RunStarted("run-1", []download.Task{task})
	pub.TaskAdmitted("run-1", 0, task)
	pub.TaskProgressed("run-1", 0, download.Progress{Name: "a.mp4", State: download.StateDownloading, BytesDownloaded: 10, TotalBytes: 20, Percent: 50})
	pub.TaskProgressed("run-1", 0, download.Progress{Name: "a.mp4", State: download.StateCompleted, BytesDownloaded: 20, TotalBytes: 20, Percent: 100})
	pub.TaskFinished("run-1", 0, download.Result{Task: task, Path: "/tmp/a.mp4", Outcome: download.OutcomeCompleted, Bytes: 20, Total: 20, Attempts: 1})
	pub.RunFinished("run-1", scheduler.Summary{Total: 1, Completed: 1, Bytes: 20})

	evs := drain(ch)
	assert.Equal(t, []string{
		EventRunStarted,
		EventTaskAdmitted,
		EventTaskProgressed,
		EventTaskCompleted,
		EventRunFinished,
	}, eventTypes(evs))

	prog := evs[2].(*TaskProgressed)
	assert.Equal(t, int64(10), prog.BytesDownloaded)
	assert.Equal(t, "a.mp4", prog.Task())

	done := evs[3].(*TaskCompleted)
	assert.Equal(t, "/tmp/a.mp4", done.Path)
	assert.Empty(t, done.Warning)
}

func TestPublisher_ThrottlesByteCounters(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()
	ch := bus.SubscribeAll(100)
	pub := NewPublisher(bus, time.Hour)

	for i := int64(1); i <= 5; i++ {
		pub.TaskProgressed("run-1", 0, download.Progress{Name: "a.mp4", State: download.StateDownloading, BytesDownloaded: i})
	}
	// A state change is published even inside the interval.
	pub.TaskProgressed("run-1", 0, download.Progress{Name: "a.mp4", State: download.StateResuming, BytesDownloaded: 6})
	// Other tasks are throttled independently.
	pub.TaskProgressed("run-1", 1, download.Progress{Name: "b.mp4", State: download.StateDownloading, BytesDownloaded: 1})

	evs := drain(ch)
	require.Len(t, evs, 3)
	assert.Equal(t, int64(1), evs[0].(*TaskProgressed).BytesDownloaded)
	assert.Equal(t, download.StateResuming, evs[1].(*TaskProgressed).State)
	assert.Equal(t, "b.mp4", evs[2].Task())
}

func TestPublisher_FailedAndMismatch(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()
	ch := bus.SubscribeAll(100)
	pub := NewPublisher(bus, 0)

	task := download.Task{URL: "https://example.com/b.mp4", Name: "b.mp4"}
	pub.TaskFinished("run-1", 1, download.Result{
		Task:     task,
		Outcome:  download.OutcomeFailed,
		Bytes:    900,
		Attempts: 3,
		Err:      download.ErrNetworkExhausted,
	})
	pub.TaskFinished("run-1", 2, download.Result{
		Task:    download.Task{URL: "https://example.com/c.mp4", Name: "c.mp4"},
		Outcome: download.OutcomeCompleted,
		Bytes:   600,
		Err:     fmt.Errorf("%w: got 600 of 1000 bytes", download.ErrSizeMismatch),
	})

	evs := drain(ch)
	require.Len(t, evs, 2)

	failed := evs[0].(*TaskFailed)
	assert.Equal(t, "network_exhausted", failed.Reason)
	assert.Equal(t, 3, failed.Attempts)
	assert.NotEmpty(t, failed.Error)

	completed := evs[1].(*TaskCompleted)
	assert.NotEmpty(t, completed.Warning)
}

func TestPublisher_PersistsToLog(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	bus := NewBus(log, nil)
	defer bus.Close()
	pub := NewPublisher(bus, 0)

	pub.RunStarted("run-7", nil)
	pub.RunFinished("run-7", scheduler.Summary{})

	raws, err := log.ForRun("run-7")
	require.NoError(t, err)
	require.Len(t, raws, 2)

	reg := DefaultRegistry()
	ev, err := reg.Unmarshal(raws[1])
	require.NoError(t, err)
	assert.IsType(t, &RunFinished{}, ev)
}
