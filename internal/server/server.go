// Package server exposes the Vocalis HTTP surface: the browser-facing token
// and SDP proxies, the live transcript endpoints, the session archive
// endpoints, and a WebSocket stream that pushes transcript updates to
// subscribed browsers.
//
// The server never reveals the provider API key to browsers. Clients obtain
// short-lived session tokens through POST /session and exchange SDP through
// POST /sdp; both are pass-through proxies that attach the key server-side.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/vocalis/internal/config"
	"github.com/MrWong99/vocalis/internal/health"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/transcript"
	"github.com/MrWong99/vocalis/pkg/embeddings"
)

// Transcript is the server's view of the live transcript. Implementations
// must be safe for concurrent use; Entries returns a snapshot the caller may
// keep.
type Transcript interface {
	Entries() []transcript.Entry
	Reset()
}

// Server is the Vocalis HTTP server.
type Server struct {
	cfg        config.ServerConfig
	realtime   config.RealtimeConfig
	transcript Transcript
	hub        *Hub
	metrics    *observe.Metrics
	health     *health.Handler
	searcher   ArchiveSearcher
	embedder   embeddings.Provider

	httpClient *http.Client
	srv        *http.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithHealthHandler installs the health endpoints.
func WithHealthHandler(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithArchiveSearcher enables the archived-session endpoints. The embedder is
// used to vectorise /archive/search queries; when nil, queries fall back to
// full-text search.
func WithArchiveSearcher(a ArchiveSearcher, embedder embeddings.Provider) Option {
	return func(s *Server) {
		s.searcher = a
		s.embedder = embedder
	}
}

// WithHTTPClient overrides the client used for the token and SDP proxies.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.httpClient = c }
}

// New creates a Server for the given live transcript.
func New(cfg config.ServerConfig, rt config.RealtimeConfig, tr Transcript, m *observe.Metrics, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		realtime:   rt,
		transcript: tr,
		hub:        NewHub(m),
		metrics:    m,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the WebSocket hub so the ingest loop can broadcast updates.
func (s *Server) Hub() *Hub { return s.hub }

// Routes assembles the full handler tree wrapped in the observability
// middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Browser-facing proxies.
	mux.HandleFunc("POST /session", s.handleSession)
	mux.HandleFunc("POST /sdp", s.handleSDP)

	// Live transcript.
	mux.HandleFunc("GET /transcript", s.handleTranscript)
	mux.HandleFunc("GET /transcript/export", s.handleExport)
	mux.HandleFunc("GET /transcript/search", s.handleSearch)
	mux.HandleFunc("POST /reset", s.handleReset)

	// Transcript push stream.
	mux.HandleFunc("GET /events", s.handleEvents)

	// Archived sessions.
	if s.searcher != nil {
		mux.HandleFunc("GET /sessions", s.handleSessions)
		mux.HandleFunc("GET /sessions/{id}/transcript", s.handleSessionTranscript)
		mux.HandleFunc("GET /sessions/{id}/summary", s.handleSessionSummary)
		mux.HandleFunc("GET /archive/search", s.handleArchiveSearch)
	}

	// Operational endpoints.
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}

	return observe.Middleware(s.metrics)(mux)
}

// Run serves HTTP (or HTTPS when TLS is configured) until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS != nil {
			slog.Info("https server listening", "addr", s.cfg.ListenAddr)
			err = s.srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			slog.Info("http server listening", "addr", s.cfg.ListenAddr)
			err = s.srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.CloseAll()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return ctx.Err()
	}
}
