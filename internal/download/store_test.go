package download

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/tvgrab/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Apply(db))
	return db
}

func addRecord(t *testing.T, store *Store, runID string, index int, name string) *Record {
	t.Helper()
	r := &Record{RunID: runID, Index: index, Name: name, URL: "http://files.test/" + name}
	require.NoError(t, store.Add(r))
	return r
}

func TestStore_Add(t *testing.T) {
	store := NewStore(setupTestDB(t))

	before := time.Now()
	r := addRecord(t, store, "run-1", 0, "Episode 01.mp4")
	after := time.Now()

	assert.NotZero(t, r.ID)
	assert.Equal(t, StatePending, r.State)
	assert.False(t, r.AddedAt.Before(before) || r.AddedAt.After(after),
		"AddedAt %v not in expected range [%v, %v]", r.AddedAt, before, after)
}

func TestStore_Add_Idempotent(t *testing.T) {
	store := NewStore(setupTestDB(t))

	first := addRecord(t, store, "run-1", 0, "Episode 01.mp4")
	second := &Record{RunID: "run-1", Index: 7, Name: "Episode 01.mp4", URL: "http://elsewhere"}
	require.NoError(t, store.Add(second))

	assert.Equal(t, first.ID, second.ID, "same run and name must map to one row")
	assert.Equal(t, first.URL, second.URL)

	other := addRecord(t, store, "run-2", 0, "Episode 01.mp4")
	assert.NotEqual(t, first.ID, other.ID, "a new run gets its own row")
}

func TestStore_Get(t *testing.T) {
	store := NewStore(setupTestDB(t))
	original := addRecord(t, store, "run-1", 3, "Episode 04.avi")

	got, err := store.Get(original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.RunID, got.RunID)
	assert.Equal(t, 3, got.Index)
	assert.Equal(t, original.Name, got.Name)
	assert.Equal(t, original.URL, got.URL)
	assert.Equal(t, StatePending, got.State)
	assert.Nil(t, got.FinishedAt)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t))

	_, err := store.Get(9999)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByName("run-x", "nothing.mp4")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Transition(t *testing.T) {
	store := NewStore(setupTestDB(t))
	r := addRecord(t, store, "run-1", 0, "Episode 01.mp4")

	var events []TransitionEvent
	store.OnTransition(func(e TransitionEvent) { events = append(events, e) })

	require.NoError(t, store.Transition(r, StateDownloading))
	r.BytesDownloaded, r.TotalBytes, r.Attempts = 100, 100, 1
	r.Path = "/tmp/Foo/Episode 01.mp4"
	require.NoError(t, store.Transition(r, StateCompleted))

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, int64(100), got.BytesDownloaded)
	assert.Equal(t, "/tmp/Foo/Episode 01.mp4", got.Path)
	require.NotNil(t, got.FinishedAt)

	require.Len(t, events, 2)
	assert.Equal(t, StatePending, events[0].From)
	assert.Equal(t, StateDownloading, events[0].To)
	assert.Equal(t, StateCompleted, events[1].To)
	assert.Equal(t, "run-1", events[1].RunID)
}

func TestStore_Transition_Invalid(t *testing.T) {
	store := NewStore(setupTestDB(t))
	r := addRecord(t, store, "run-1", 0, "Episode 01.mp4")
	require.NoError(t, store.Transition(r, StateCompleted))

	err := store.Transition(r, StateDownloading)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStore_Transition_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t))
	r := &Record{ID: 404, State: StatePending}

	err := store.Transition(r, StateDownloading)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StatePending, r.State, "state must not change on failure")
}

func TestStore_UpdateProgress(t *testing.T) {
	store := NewStore(setupTestDB(t))
	r := addRecord(t, store, "run-1", 0, "Episode 01.mp4")

	r.BytesDownloaded, r.TotalBytes = 512, 2048
	require.NoError(t, store.UpdateProgress(r))

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(512), got.BytesDownloaded)
	assert.Equal(t, int64(2048), got.TotalBytes)
	assert.Equal(t, StatePending, got.State)

	err = store.UpdateProgress(&Record{ID: 9999})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	store := NewStore(setupTestDB(t))
	a := addRecord(t, store, "run-1", 0, "a.mp4")
	addRecord(t, store, "run-1", 1, "b.mp4")
	addRecord(t, store, "run-2", 0, "c.mp4")
	require.NoError(t, store.Transition(a, StateFailed))

	all, err := store.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	run := "run-1"
	byRun, err := store.List(Filter{RunID: &run})
	require.NoError(t, err)
	require.Len(t, byRun, 2)
	assert.Equal(t, "a.mp4", byRun[0].Name)

	failed := StateFailed
	byState, err := store.List(Filter{State: &failed})
	require.NoError(t, err)
	require.Len(t, byState, 1)
	assert.Equal(t, a.ID, byState[0].ID)

	active, err := store.List(Filter{Active: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	latest, err := store.List(Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b.mp4", latest[0].Name, "limited lists are still oldest first")
	assert.Equal(t, "c.mp4", latest[1].Name)
}

func TestStore_Runs(t *testing.T) {
	store := NewStore(setupTestDB(t))
	a := addRecord(t, store, "run-1", 0, "a.mp4")
	b := addRecord(t, store, "run-1", 1, "b.mp4")
	addRecord(t, store, "run-2", 0, "c.mp4")

	a.BytesDownloaded = 1000
	require.NoError(t, store.Transition(a, StateCompleted))
	b.Reason = "network_exhausted"
	require.NoError(t, store.Transition(b, StateFailed))

	runs, err := store.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].RunID, "newest run first")
	assert.Equal(t, RunSummary{RunID: "run-1", Tasks: 2, Completed: 1, Failed: 1, Bytes: 1000, StartedAt: runs[1].StartedAt}, runs[1])
	assert.False(t, runs[1].StartedAt.IsZero())
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(setupTestDB(t))
	r := addRecord(t, store, "run-1", 0, "a.mp4")

	require.NoError(t, store.Delete(r.ID))
	_, err := store.Get(r.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Delete(r.ID), "delete is idempotent")
}
