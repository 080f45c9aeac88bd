package events

import (
	"context"
	"sync"
	"time"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/scheduler"
)

// DefaultProgressInterval bounds how often a task's progress is published.
const DefaultProgressInterval = 500 * time.Millisecond

// Publisher turns scheduler callbacks into bus events. It implements
// scheduler.Observer and scheduler.RunObserver.
type Publisher struct {
	bus      *Bus
	interval time.Duration

	mu   sync.Mutex
	last map[progressKey]progressMark
}

type progressKey struct {
	run   string
	index int
}

type progressMark struct {
	at    time.Time
	state download.State
}

var (
	_ scheduler.Observer    = (*Publisher)(nil)
	_ scheduler.RunObserver = (*Publisher)(nil)
)

// NewPublisher creates a publisher. A non-positive interval publishes every
// progress update.
func NewPublisher(bus *Bus, interval time.Duration) *Publisher {
	return &Publisher{
		bus:      bus,
		interval: interval,
		last:     make(map[progressKey]progressMark),
	}
}

func (p *Publisher) RunStarted(runID string, tasks []download.Task) {
	p.publish(&RunStarted{
		BaseEvent: NewBaseEvent(EventRunStarted, runID, ""),
		Tasks:     tasks,
	})
}

func (p *Publisher) TaskAdmitted(runID string, index int, task download.Task) {
	p.publish(&TaskAdmitted{
		BaseEvent: NewBaseEvent(EventTaskAdmitted, runID, task.Name),
		Index:     index,
		URL:       task.URL,
	})
}

// TaskProgressed publishes state changes immediately and byte counters at
// most once per interval.
func (p *Publisher) TaskProgressed(runID string, index int, prog download.Progress) {
	if prog.State.IsTerminal() {
		return
	}
	key := progressKey{run: runID, index: index}
	now := time.Now()

	p.mu.Lock()
	mark, seen := p.last[key]
	if seen && mark.state == prog.State && now.Sub(mark.at) < p.interval {
		p.mu.Unlock()
		return
	}
	p.last[key] = progressMark{at: now, state: prog.State}
	p.mu.Unlock()

	p.publish(&TaskProgressed{
		BaseEvent:       NewBaseEvent(EventTaskProgressed, runID, prog.Name),
		Index:           index,
		State:           prog.State,
		BytesDownloaded: prog.BytesDownloaded,
		TotalBytes:      prog.TotalBytes,
		Percent:         prog.Percent,
	})
}

func (p *Publisher) TaskFinished(runID string, index int, res download.Result) {
	p.mu.Lock()
	delete(p.last, progressKey{run: runID, index: index})
	p.mu.Unlock()

	if res.OK() {
		ev := &TaskCompleted{
			BaseEvent: NewBaseEvent(EventTaskCompleted, runID, res.Task.Name),
			Index:     index,
			Path:      res.Path,
			Outcome:   res.Outcome,
			Bytes:     res.Bytes,
			Attempts:  res.Attempts,
		}
		if res.Err != nil {
			ev.Warning = res.Err.Error()
		}
		p.publish(ev)
		return
	}

	ev := &TaskFailed{
		BaseEvent: NewBaseEvent(EventTaskFailed, runID, res.Task.Name),
		Index:     index,
		Reason:    res.Reason(),
		Bytes:     res.Bytes,
		Attempts:  res.Attempts,
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	p.publish(ev)
}

func (p *Publisher) RunFinished(runID string, summary scheduler.Summary) {
	p.publish(&RunFinished{
		BaseEvent: NewBaseEvent(EventRunFinished, runID, ""),
		Summary:   summary,
	})
}

// publish never fails the caller; the bus logs persistence errors itself.
func (p *Publisher) publish(e Event) {
	_ = p.bus.Publish(context.Background(), e)
}
