package download

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Record is a persisted task and its last known progress.
type Record struct {
	ID               int64
	RunID            string
	Index            int
	Name             string
	URL              string
	Path             string
	State            State
	BytesDownloaded  int64
	TotalBytes       int64
	Attempts         int
	Reason           string
	AddedAt          time.Time
	FinishedAt       *time.Time
	LastTransitionAt time.Time
}

// Filter specifies criteria for listing task records.
type Filter struct {
	RunID  *string
	State  *State
	Active bool // If true, exclude terminal states
	Limit  int  // 0 means no limit; with a limit the newest rows are returned
}

// RunSummary aggregates the task records of one run.
type RunSummary struct {
	RunID     string
	Tasks     int
	Completed int
	Failed    int
	Bytes     int64
	StartedAt time.Time
}

// TransitionEvent is emitted after a record changes state.
type TransitionEvent struct {
	TaskID int64
	RunID  string
	Name   string
	From   State
	To     State
	At     time.Time
}

// TransitionHandler receives transition events.
type TransitionHandler func(TransitionEvent)

// Store persists task records.
type Store struct {
	db       *sql.DB
	handlers []TransitionHandler
}

// NewStore creates a task store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OnTransition registers a handler to be called on state transitions.
func (s *Store) OnTransition(h TransitionHandler) {
	s.handlers = append(s.handlers, h)
}

const recordColumns = `id, run_id, idx, name, url, path, state, bytes_downloaded, total_bytes,
	attempts, reason, added_at, finished_at, last_transition_at`

// Add records a new task.
// This method is idempotent: if a task with the same run_id and name already
// exists, r is filled from the existing row instead of inserting a duplicate.
func (s *Store) Add(r *Record) error {
	existing, err := s.GetByName(r.RunID, r.Name)
	if err == nil {
		*r = *existing
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check existing task: %w", err)
	}

	if r.State == "" {
		r.State = StatePending
	}
	now := time.Now()
	result, err := s.db.Exec(`
		INSERT INTO tasks (run_id, idx, name, url, path, state, bytes_downloaded, total_bytes, attempts, reason, added_at, last_transition_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Index, r.Name, r.URL, r.Path, r.State, r.BytesDownloaded, r.TotalBytes, r.Attempts, r.Reason, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	r.ID = id
	r.AddedAt = now
	r.LastTransitionAt = now
	return nil
}

// Get retrieves a task by ID.
// Returns ErrNotFound if the task does not exist.
func (s *Store) Get(id int64) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(`SELECT `+recordColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return r, nil
}

// GetByName retrieves a task by its run and file name.
// Returns ErrNotFound if no matching task exists.
func (s *Store) GetByName(runID, name string) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(`SELECT `+recordColumns+` FROM tasks WHERE run_id = ? AND name = ?`, runID, name))
	if err != nil {
		return nil, fmt.Errorf("get task %s/%s: %w", runID, name, err)
	}
	return r, nil
}

// UpdateProgress writes the byte counters of r without changing its state.
// Returns ErrNotFound if the task does not exist.
func (s *Store) UpdateProgress(r *Record) error {
	result, err := s.db.Exec(`
		UPDATE tasks SET bytes_downloaded = ?, total_bytes = ?
		WHERE id = ?`,
		r.BytesDownloaded, r.TotalBytes, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %d: %w", r.ID, err)
	}
	return requireRow(result, "update task", r.ID)
}

// Transition changes a task's state with validation and event emission.
// Terminal transitions also store the result fields of r and stamp
// finished_at.
func (s *Store) Transition(r *Record, to State) error {
	if !r.State.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}

	from := r.State
	now := time.Now()
	var finishedAt *time.Time
	if to.IsTerminal() {
		finishedAt = &now
	}

	result, err := s.db.Exec(`
		UPDATE tasks SET state = ?, path = ?, bytes_downloaded = ?, total_bytes = ?, attempts = ?, reason = ?,
			finished_at = ?, last_transition_at = ?
		WHERE id = ?`,
		to, r.Path, r.BytesDownloaded, r.TotalBytes, r.Attempts, r.Reason, finishedAt, now, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %d: %w", r.ID, err)
	}
	if err := requireRow(result, "transition task", r.ID); err != nil {
		return err
	}

	r.State = to
	r.FinishedAt = finishedAt
	r.LastTransitionAt = now

	event := TransitionEvent{
		TaskID: r.ID,
		RunID:  r.RunID,
		Name:   r.Name,
		From:   from,
		To:     to,
		At:     now,
	}
	for _, h := range s.handlers {
		h(event)
	}
	return nil
}

// List returns tasks matching the specified filter, oldest first.
func (s *Store) List(f Filter) ([]*Record, error) {
	var conditions []string
	var args []any

	if f.RunID != nil {
		conditions = append(conditions, "run_id = ?")
		args = append(args, *f.RunID)
	}
	if f.State != nil {
		conditions = append(conditions, "state = ?")
		args = append(args, *f.State)
	}
	if f.Active {
		conditions = append(conditions, "state NOT IN (?, ?)")
		args = append(args, StateCompleted, StateFailed)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := "SELECT " + recordColumns + " FROM tasks " + whereClause + " ORDER BY id"
	if f.Limit > 0 {
		query = "SELECT " + recordColumns + " FROM tasks " + whereClause + " ORDER BY id DESC LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	if f.Limit > 0 {
		slices.Reverse(results)
	}
	return results, nil
}

// Runs summarizes the most recent runs, newest first.
func (s *Store) Runs(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT run_id, COUNT(*),
			SUM(CASE WHEN state = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'failed' THEN 1 ELSE 0 END),
			SUM(bytes_downloaded), MIN(id)
		FROM tasks
		GROUP BY run_id
		ORDER BY MIN(id) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type row struct {
		summary RunSummary
		firstID int64
	}
	var found []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.summary.RunID, &r.summary.Tasks, &r.summary.Completed, &r.summary.Failed, &r.summary.Bytes, &r.firstID); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close runs: %w", err)
	}

	// The first task of a run was admitted when the run started.
	summaries := make([]RunSummary, 0, len(found))
	for _, r := range found {
		first, err := s.Get(r.firstID)
		if err != nil {
			return nil, err
		}
		r.summary.StartedAt = first.AddedAt
		summaries = append(summaries, r.summary)
	}
	return summaries, nil
}

// Delete removes a task by ID.
// This operation is idempotent - no error is returned if the task does not exist.
func (s *Store) Delete(id int64) error {
	if _, err := s.db.Exec("DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	r := &Record{}
	err := row.Scan(&r.ID, &r.RunID, &r.Index, &r.Name, &r.URL, &r.Path, &r.State, &r.BytesDownloaded, &r.TotalBytes,
		&r.Attempts, &r.Reason, &r.AddedAt, &r.FinishedAt, &r.LastTransitionAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func requireRow(result sql.Result, op string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", op, id, ErrNotFound)
	}
	return nil
}
