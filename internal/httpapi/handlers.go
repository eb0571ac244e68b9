// Package httpapi implements the read-only operator HTTP API: a view over
// the ledger query index, the intent map, and the lessons document. It
// cannot invoke the gatekeeper or mutate any orchestration file.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orchestra-core/ledger/internal/intentmap"
	"github.com/orchestra-core/ledger/internal/ledgerindex"
	"github.com/orchestra-core/ledger/internal/lessons"
)

// Deps is everything the handlers need. Index may be nil to disable the
// ledger endpoint.
type Deps struct {
	WorkspaceRoot string
	Index         ledgerindex.Backend
	Lessons       *lessons.Store
}

// Server serves the operator HTTP API.
type Server struct {
	deps   Deps
	logger *slog.Logger
}

// NewServer returns a Server. A nil logger falls back to slog.Default().
func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	if s.deps.Index == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger query index not configured")
		return
	}

	q := ledgerindex.Query{
		RelativePath:  r.URL.Query().Get("path"),
		IntentID:      r.URL.Query().Get("intent_id"),
		MutationClass: r.URL.Query().Get("mutation_class"),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		q.Since = &t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		q.Until = &t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}

	rows, err := s.deps.Index.Query(r.Context(), q)
	if err != nil {
		s.logger.Error("ledger query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ledger query failed")
		return
	}
	if rows == nil {
		rows = []ledgerindex.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetIntentFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	files, err := intentmap.Files(s.deps.WorkspaceRoot, id)
	if err != nil {
		s.logger.Error("intent map read failed", "intent_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "intent map read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"intent_id": id,
		"files":     files,
	})
}

func (s *Server) handleGetLessons(w http.ResponseWriter, r *http.Request) {
	sections, err := s.deps.Lessons.List(s.deps.WorkspaceRoot)
	if err != nil {
		s.logger.Error("lessons read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lessons read failed")
		return
	}
	writeJSON(w, http.StatusOK, sections)
}
