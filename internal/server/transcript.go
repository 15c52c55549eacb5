package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/transcript"
)

// handleTranscript returns the current transcript, partial entries included,
// as a JSON array in chronological order.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.transcript.Entries())
}

// handleExport returns the transcript as a plain-text download. Partial
// entries are included as their current text.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transcript.txt"`)
	if err := transcript.WriteExport(w, s.transcript.Entries()); err != nil {
		observe.Logger(r.Context()).Warn("writing export failed", "err", err)
	}
}

// handleSearch runs a fuzzy search over the live transcript.
// Query parameters: q (required), limit (optional).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 20)

	results := transcript.Search(s.transcript.Entries(), q, limit)
	writeJSON(w, http.StatusOK, results)
}

// handleEvents upgrades the request to a WebSocket and streams transcript
// snapshots, starting with the current one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.transcript.Entries())
}

// handleReset clears the live transcript and notifies subscribers.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.transcript.Reset()
	s.hub.Broadcast(r.Context(), s.transcript.Entries())
	observe.Logger(r.Context()).Info("transcript reset")
	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
