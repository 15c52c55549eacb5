package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrWong99/vocalis/internal/archive"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/transcript"
)

// ArchiveSearcher is the server's view of the session archive. *archive.Store
// satisfies it; tests substitute a fake.
type ArchiveSearcher interface {
	ListSessions(ctx context.Context, limit int) ([]archive.SessionRecord, error)
	Session(ctx context.Context, sessionID string) (archive.SessionRecord, error)
	Entries(ctx context.Context, sessionID string) ([]transcript.Entry, error)
	SearchText(ctx context.Context, query string, limit int) ([]transcript.Entry, error)
	SemanticSearch(ctx context.Context, embedding []float32, topK int) ([]archive.SemanticResult, error)
}

// handleSessions lists archived sessions, newest first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	sessions, err := s.searcher.ListSessions(r.Context(), limit)
	if err != nil {
		observe.Logger(r.Context()).Error("listing sessions failed", "err", err)
		http.Error(w, "listing sessions failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleSessionTranscript returns the archived transcript of one session.
func (s *Server) handleSessionTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entries, err := s.searcher.Entries(r.Context(), id)
	if err != nil {
		observe.Logger(r.Context()).Error("loading archived transcript failed", "session_id", id, "err", err)
		http.Error(w, "loading archived transcript failed", http.StatusInternalServerError)
		return
	}
	if len(entries) == 0 {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleSessionSummary returns the recap stored with one archived session.
func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.searcher.Session(r.Context(), id)
	if errors.Is(err, archive.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("loading session failed", "session_id", id, "err", err)
		http.Error(w, "loading session failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": rec.ID,
		"summary":    rec.Summary,
	})
}

// handleArchiveSearch searches across all archived sessions. With an embedder
// configured the query is vectorised and matched against the semantic index;
// otherwise it falls back to Postgres full-text search.
func (s *Server) handleArchiveSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 10)
	log := observe.Logger(r.Context())

	if s.embedder != nil {
		vec, err := s.embedder.Embed(r.Context(), q)
		if err != nil {
			log.Error("embedding query failed", "err", err)
			http.Error(w, "embedding query failed", http.StatusBadGateway)
			return
		}
		results, err := s.searcher.SemanticSearch(r.Context(), vec, limit)
		if err != nil {
			log.Error("semantic search failed", "err", err)
			http.Error(w, "semantic search failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	hits, err := s.searcher.SearchText(r.Context(), q, limit)
	if err != nil {
		log.Error("text search failed", "err", err)
		http.Error(w, "text search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}
