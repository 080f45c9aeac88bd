// Package v1 implements the status API served while a run is in progress.
package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// Server is the v1 API server.
type Server struct {
	deps ServerDeps
	log  *slog.Logger
}

// New creates a v1 API server.
func New(deps ServerDeps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingDependency, err)
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{deps: deps, log: log.With("component", "api")}, nil
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Live progress
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("GET /api/v1/tasks", s.listTasks)
	mux.HandleFunc("GET /api/v1/tasks/{index}", s.getTask)
	mux.HandleFunc("GET /api/v1/ws", s.requireBus(s.streamEvents))

	// History
	mux.HandleFunc("GET /api/v1/runs", s.requireTasks(s.listRuns))
	mux.HandleFunc("GET /api/v1/runs/{id}/tasks", s.requireTasks(s.listRunTasks))
	mux.HandleFunc("GET /api/v1/runs/{id}/events", s.requireEventLog(s.listRunEvents))
	mux.HandleFunc("GET /api/v1/events", s.requireEventLog(s.listEvents))
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// pathInt extracts an integer from the URL path.
func pathInt(r *http.Request, name string) (int, error) {
	val := r.PathValue(name)
	if val == "" {
		return 0, fmt.Errorf("missing path parameter: %s", name)
	}
	return strconv.Atoi(val)
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Status.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		RunID:          snap.RunID,
		Running:        snap.Running,
		TotalTasks:     snap.TotalTasks,
		CompletedTasks: snap.CompletedTasks,
		FailedTasks:    snap.FailedTasks,
		ActiveTasks:    snap.ActiveTasks,
		AveragePercent: snap.AveragePercent,
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Status.Snapshot()
	writeJSON(w, http.StatusOK, listTasksResponse{
		RunID: snap.RunID,
		Items: snap.Tasks,
		Total: len(snap.Tasks),
	})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	index, err := pathInt(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INDEX", err.Error())
		return
	}
	snap := s.deps.Status.Snapshot()
	if index < 0 || index >= len(snap.Tasks) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, snap.Tasks[index])
}
