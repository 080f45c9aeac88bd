package v1

import (
	"net/http"
	"time"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/events"
)

const maxListLimit = 1000

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGINATION", "limit must be non-negative")
		return
	}
	limit = min(limit, maxListLimit)

	runs, err := s.deps.Tasks.Runs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "HISTORY_ERROR", err.Error())
		return
	}
	items := make([]runResponse, len(runs))
	for i, run := range runs {
		items[i] = runResponse{
			RunID:     run.RunID,
			Tasks:     run.Tasks,
			Completed: run.Completed,
			Failed:    run.Failed,
			Bytes:     run.Bytes,
			StartedAt: run.StartedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) listRunTasks(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	records, err := s.deps.Tasks.List(download.Filter{RunID: &runID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "HISTORY_ERROR", err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
		return
	}
	items := make([]taskRecordResponse, len(records))
	for i, rec := range records {
		items[i] = taskRecordResponse{
			ID:              rec.ID,
			Index:           rec.Index,
			Name:            rec.Name,
			URL:             rec.URL,
			Path:            rec.Path,
			State:           string(rec.State),
			BytesDownloaded: rec.BytesDownloaded,
			TotalBytes:      rec.TotalBytes,
			Attempts:        rec.Attempts,
			Reason:          rec.Reason,
			AddedAt:         rec.AddedAt,
			FinishedAt:      rec.FinishedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "items": items, "total": len(items)})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGINATION", "limit must be non-negative")
		return
	}
	limit = min(limit, maxListLimit)

	evs, err := s.deps.EventLog.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Items: toEventResponses(evs), Total: len(evs), Limit: limit})
}

func (s *Server) listRunEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.deps.EventLog.ForRun(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Items: toEventResponses(evs), Total: len(evs), Limit: len(evs)})
}

func toEventResponses(evs []events.RawEvent) []EventResponse {
	out := make([]EventResponse, len(evs))
	for i, e := range evs {
		out[i] = EventResponse{
			ID:         e.ID,
			EventType:  e.EventType,
			RunID:      e.RunID,
			Task:       e.Task,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		}
	}
	return out
}
