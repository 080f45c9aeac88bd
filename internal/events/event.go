package events

import "time"

// Event is the base interface all events implement.
type Event interface {
	EventType() string
	RunID() string
	Task() string // task name; empty for run-level events
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type      string    `json:"type"`
	Run       string    `json:"run_id"`
	TaskName  string    `json:"task,omitempty"`
	Timestamp time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) RunID() string         { return e.Run }
func (e BaseEvent) Task() string          { return e.TaskName }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent creates a BaseEvent with the current timestamp.
func NewBaseEvent(eventType, runID, task string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Run:       runID,
		TaskName:  task,
		Timestamp: time.Now(),
	}
}
