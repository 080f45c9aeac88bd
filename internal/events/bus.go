// Package events carries run and task lifecycle events over an in-process
// bus and persists them to SQLite.
package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// subscriber is one consumer. An empty runID receives every run.
type subscriber struct {
	ch    chan Event
	runID string
}

func (s *subscriber) wants(e Event) bool {
	return s.runID == "" || s.runID == e.RunID()
}

// Bus fans events out to subscribers and, when an EventLog is set, appends
// them to it. Delivery never blocks the publisher: a full subscriber misses
// the event.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	closed bool

	log    *EventLog // may be nil
	logger *slog.Logger
}

// NewBus creates a bus. log may be nil to disable persistence.
func NewBus(log *EventLog, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{log: log, logger: logger}
}

// Publish persists e and delivers it to matching subscribers. Events
// published after Close are discarded.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	if b.log != nil {
		if _, err := b.log.Append(e); err != nil {
			// Delivery still goes ahead.
			b.logger.Error("failed to persist event", "type", e.EventType(), "run", e.RunID(), "error", err)
		}
	}

	// Channels are only closed under the write lock, so hold the read lock
	// while sending.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range targets {
		if b.closed || !slices.Contains(b.subs, s) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"type", e.EventType(),
				"run", e.RunID(),
				"task", e.Task())
		}
	}
	return nil
}

// SubscribeAll returns a channel receiving every event. It closes when the
// bus closes or on Unsubscribe.
func (b *Bus) SubscribeAll(bufferSize int) <-chan Event {
	return b.subscribe("", bufferSize)
}

// SubscribeRun returns a channel receiving the events of one run.
func (b *Bus) SubscribeRun(runID string, bufferSize int) <-chan Event {
	return b.subscribe(runID, bufferSize)
}

func (b *Bus) subscribe(runID string, bufferSize int) <-chan Event {
	ch := make(chan Event, bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, &subscriber{ch: ch, runID: runID})
	return ch
}

// Unsubscribe removes and closes a subscription. Unknown channels are
// ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.ch == ch {
			b.subs = slices.Delete(b.subs, i, i+1)
			close(s.ch)
			return
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	return nil
}
