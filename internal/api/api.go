// Package api exposes the session core as a local HTTP JSON API. It is
// the command surface UI layers talk to; every handler translates one
// command into a manager call and maps domain errors onto status codes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"focusd/internal/models"
	"focusd/internal/session"
)

// Server provides the HTTP API handlers.
type Server struct {
	manager *session.Manager
	logger  *slog.Logger
}

// NewServer creates a new API server around the session manager.
func NewServer(m *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{manager: m, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/state", s.getState)
	mux.HandleFunc("PUT /api/v1/state/notes", s.setNotes)

	mux.HandleFunc("POST /api/v1/focus", s.enterFocus)
	mux.HandleFunc("DELETE /api/v1/focus", s.leaveFocus)
	mux.HandleFunc("POST /api/v1/focus/resume", s.resumeFocus)

	mux.HandleFunc("GET /api/v1/history", s.listHistory)
	mux.HandleFunc("POST /api/v1/history", s.addHistory)
	mux.HandleFunc("PUT /api/v1/history/{id}", s.updateHistory)
	mux.HandleFunc("DELETE /api/v1/history/{id}", s.deleteHistory)

	mux.HandleFunc("GET /api/v1/options", s.getOptions)
	mux.HandleFunc("PUT /api/v1/options", s.setOptions)

	mux.HandleFunc("GET /api/v1/stats", s.stats)
	mux.HandleFunc("POST /api/v1/reset", s.reset)

	mux.HandleFunc("POST /api/v1/notifications/{id}/actions", s.notificationAction)

	mux.HandleFunc("GET /api/v1/events", s.events)

	return s.logRequests(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newRequestID generates a new ULID string.
func newRequestID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := newRequestID()
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps manager errors onto status codes. Anything not
// covered by a sentinel is a defect or a transient persistence failure:
// fatal for this one request, safe to retry.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// queryMillis parses an optional millisecond query parameter.
func queryMillis(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// --- State ---

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.State(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) setNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	state, err := s.manager.SetNotes(r.Context(), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// --- Focus transitions ---

func (s *Server) enterFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start      *int64 `json:"startTimestamp"`
		StartEvent string `json:"startEvent"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	sinceActive := false
	switch req.StartEvent {
	case "":
	case "since_active":
		sinceActive = true
	default:
		writeError(w, http.StatusBadRequest, "unknown startEvent: "+req.StartEvent)
		return
	}

	state, err := s.manager.EnterFocus(r.Context(), req.Start, sinceActive)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) leaveFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stop *int64 `json:"stopTimestamp"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	state, err := s.manager.LeaveFocus(r.Context(), req.Stop)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) resumeFocus(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.ResumeFocus(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// --- History ---

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	from, err := queryMillis(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	until, err := queryMillis(r, "until")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid until timestamp")
		return
	}

	entries, err := s.manager.ListHistory(r.Context(), from, until)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) addHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start *int64 `json:"startTimestamp"`
		Stop  *int64 `json:"stopTimestamp"`
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Start == nil || req.Stop == nil {
		writeError(w, http.StatusBadRequest, "startTimestamp and stopTimestamp are required")
		return
	}

	entry, err := s.manager.AddHistoryEntry(r.Context(), *req.Start, *req.Stop, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) updateHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid history id")
		return
	}

	var req struct {
		Version *int64  `json:"version"`
		Start   *int64  `json:"startTimestamp"`
		Stop    *int64  `json:"stopTimestamp"`
		Notes   *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Version == nil {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}

	entry, err := s.manager.UpdateHistoryEntry(r.Context(), id, *req.Version, req.Start, req.Stop, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid history id")
		return
	}
	version, err := queryMillis(r, "version")
	if err != nil || version == nil {
		writeError(w, http.StatusBadRequest, "version query parameter is required")
		return
	}

	if err := s.manager.DeleteHistoryEntry(r.Context(), id, *version); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Options ---

func (s *Server) getOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.manager.Options(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) setOptions(w http.ResponseWriter, r *http.Request) {
	var candidate models.Options
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	opts, err := s.manager.SetOptions(r.Context(), candidate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// --- Stats / reset ---

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	from, err := queryMillis(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	until, err := queryMillis(r, "until")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid until timestamp")
		return
	}

	var result struct {
		Stats any `json:"stats"`
	}
	if from == nil && until == nil {
		// No bounds: aggregate the current logical day.
		stats, err := s.manager.TodayStats(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		result.Stats = stats
	} else {
		stats, err := s.manager.Stats(r.Context(), from, until)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		result.Stats = stats
	}
	writeJSON(w, http.StatusOK, result)
}

// notificationAction lets the surface rendering notifications (tray
// shell, desktop integration) report which button the user clicked.
func (s *Server) notificationAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Button *int `json:"button"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Button == nil {
		writeError(w, http.StatusBadRequest, "button is required")
		return
	}

	if err := s.manager.HandleNotificationAction(r.Context(), r.PathValue("id"), *req.Button); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ResetStorage(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
