package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// EventLog persists events to SQLite.
type EventLog struct {
	db *sql.DB
}

// NewEventLog creates a new event log.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// Append persists an event and returns its ID.
func (l *EventLog) Append(e Event) (int64, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	result, err := l.db.Exec(`
		INSERT INTO events (event_type, run_id, task, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.EventType(), e.RunID(), e.Task(), string(payload), e.OccurredAt(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	return result.LastInsertId()
}

// RawEvent represents a persisted event with its raw payload.
type RawEvent struct {
	ID         int64
	EventType  string
	RunID      string
	Task       string
	Payload    string
	OccurredAt time.Time
	CreatedAt  time.Time
}

const eventColumns = `id, event_type, run_id, task, payload, occurred_at, created_at`

// Since returns all events since the given time.
func (l *EventLog) Since(t time.Time) ([]RawEvent, error) {
	rows, err := l.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE occurred_at >= ?
		ORDER BY id ASC`,
		t,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ForRun returns all events of one run in order.
func (l *EventLog) ForRun(runID string) ([]RawEvent, error) {
	rows, err := l.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE run_id = ?
		ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Recent returns the newest limit events, newest first.
func (l *EventLog) Recent(limit int) ([]RawEvent, error) {
	rows, err := l.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Tail returns the newest limit events in chronological order.
func (l *EventLog) Tail(limit int) ([]RawEvent, error) {
	events, err := l.Recent(limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

// Prune removes events older than the given duration.
func (l *EventLog) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := l.db.Exec(`DELETE FROM events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return result.RowsAffected()
}

func scanEvents(rows *sql.Rows) ([]RawEvent, error) {
	var events []RawEvent
	for rows.Next() {
		var e RawEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.RunID, &e.Task, &e.Payload, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
