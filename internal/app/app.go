// Package app wires the Vocalis subsystems together: the realtime event
// stream, the transcript aggregator, the HTTP server with its WebSocket hub,
// and the optional archive, summary, and embedding providers.
//
// The app owns the single ingest loop. Provider events arrive serially on the
// session's event channel, are folded into the transcript one at a time, and
// every state-changing event triggers a broadcast of the fresh snapshot to
// WebSocket subscribers. A dropped session is redialed by the reconnector;
// the transcript of the dead session is archived and the live view starts
// over, because a reconnected session is a new conversation as far as the
// provider is concerned.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vocalis/internal/archive"
	"github.com/MrWong99/vocalis/internal/config"
	"github.com/MrWong99/vocalis/internal/health"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/realtime"
	"github.com/MrWong99/vocalis/internal/server"
	"github.com/MrWong99/vocalis/internal/summary"
	"github.com/MrWong99/vocalis/internal/transcript"
	"github.com/MrWong99/vocalis/pkg/embeddings"
	oaiembed "github.com/MrWong99/vocalis/pkg/embeddings/openai"
)

// Archiver is the app's view of the session archive. Satisfied by
// [*archive.Store]; tests substitute an in-memory fake.
type Archiver interface {
	WriteSession(ctx context.Context, rec archive.SessionRecord, entries []transcript.Entry) error
	IndexEntries(ctx context.Context, sessionID string, entries []transcript.Entry, embedder embeddings.Provider) error
	Ping(ctx context.Context) error
}

// sessionStatus tracks whether the realtime stream is currently up. It feeds
// the readiness probe.
type sessionStatus struct {
	up atomic.Bool
}

func (s *sessionStatus) Connected() bool { return s.up.Load() }

// App is the assembled Vocalis service.
type App struct {
	cfg     *config.Config
	live    *Live
	metrics *observe.Metrics
	status  *sessionStatus

	server *server.Server
	recon  *realtime.Reconnector
	fresh  chan *realtime.Session // hands redialed sessions to the ingest loop
	source realtime.EventSource   // injected in tests instead of a reconnector

	store      *archive.Store
	archiver   Archiver
	summariser summary.Summariser
	embedder   embeddings.Provider

	// sessionID and startedAt identify the conversation currently being
	// transcribed; they rotate on reconnect.
	sessMu    sync.Mutex
	sessionID string
	startedAt time.Time

	closers  []func() error
	stopOnce sync.Once
}

// Option configures an [App], primarily to inject test doubles.
type Option func(*App)

// WithMetrics overrides the process-wide default metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithArchiver substitutes the session archive.
func WithArchiver(ar Archiver) Option {
	return func(a *App) { a.archiver = ar }
}

// WithSummariser substitutes the end-of-session summariser.
func WithSummariser(s summary.Summariser) Option {
	return func(a *App) { a.summariser = s }
}

// WithEmbedder substitutes the embedding provider for the semantic index.
func WithEmbedder(e embeddings.Provider) Option {
	return func(a *App) { a.embedder = e }
}

// WithEventSource replaces the realtime connection with a pre-built event
// source. The app then never dials the provider and never reconnects.
func WithEventSource(src realtime.EventSource) Option {
	return func(a *App) { a.source = src }
}

// New assembles the application from configuration. Subsystems disabled in
// the configuration (archive, summary, semantic index) are simply absent.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		live:      NewLive(),
		status:    &sessionStatus{},
		fresh:     make(chan *realtime.Session, 1),
		sessionID: newSessionID(),
		startedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Summariser ─────────────────────────────────────────────────────
	if err := a.initSummariser(); err != nil {
		return nil, err
	}

	// ── 2. Embedding provider ─────────────────────────────────────────────
	if err := a.initEmbedder(); err != nil {
		return nil, err
	}

	// ── 3. Session archive ────────────────────────────────────────────────
	if err := a.initArchive(ctx); err != nil {
		return nil, err
	}

	// ── 4. Realtime transport ─────────────────────────────────────────────
	a.initRealtime()

	// ── 5. HTTP server ────────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

func (a *App) initSummariser() error {
	if a.summariser != nil || a.cfg.Summary.Provider == "" {
		return nil
	}
	var opts []anyllmlib.Option
	if a.cfg.Summary.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(a.cfg.Summary.APIKey))
	}
	if a.cfg.Summary.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(a.cfg.Summary.BaseURL))
	}
	s, err := summary.New(a.cfg.Summary.Provider, a.cfg.Summary.Model, opts...)
	if err != nil {
		return fmt.Errorf("app: summariser: %w", err)
	}
	a.summariser = s
	return nil
}

func (a *App) initEmbedder() error {
	if a.embedder != nil || a.cfg.Archive.EmbeddingModel == "" {
		return nil
	}
	// The embedding model runs against the same provider account as the
	// realtime session, so the realtime key authenticates it.
	e, err := oaiembed.New(a.cfg.Realtime.APIKey, a.cfg.Archive.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("app: embedder: %w", err)
	}
	a.embedder = e
	return nil
}

func (a *App) initArchive(ctx context.Context) error {
	if a.archiver != nil || a.cfg.Archive.PostgresDSN == "" {
		return nil
	}
	dims := a.cfg.Archive.EmbeddingDimensions
	if dims <= 0 {
		dims = 1536
	}
	store, err := archive.New(ctx, a.cfg.Archive.PostgresDSN, dims)
	if err != nil {
		return fmt.Errorf("app: archive: %w", err)
	}
	a.store = store
	a.archiver = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

func (a *App) initRealtime() {
	if a.source != nil {
		return
	}
	var clientOpts []realtime.Option
	if a.cfg.Realtime.Model != "" {
		clientOpts = append(clientOpts, realtime.WithModel(a.cfg.Realtime.Model))
	}
	if a.cfg.Realtime.BaseURL != "" {
		clientOpts = append(clientOpts, realtime.WithBaseURL(a.cfg.Realtime.BaseURL))
	}
	client := realtime.New(a.cfg.Realtime.APIKey, clientOpts...)

	a.recon = realtime.NewReconnector(realtime.ReconnectorConfig{
		Client: client,
		Session: realtime.SessionConfig{
			Voice:        a.cfg.Realtime.Voice,
			Instructions: a.cfg.Realtime.Instructions,
		},
		Backoff:     a.cfg.Realtime.ReconnectBackoff,
		OnReconnect: a.handleReconnect,
	})
	a.closers = append(a.closers, a.recon.Stop)
}

func (a *App) initServer() {
	var pinger health.Pinger
	if a.archiver != nil {
		pinger = a.archiver
	}
	h := health.New(
		health.ArchiveChecker(pinger),
		health.RealtimeChecker(a.status),
	)

	opts := []server.Option{server.WithHealthHandler(h)}
	if a.store != nil {
		opts = append(opts, server.WithArchiveSearcher(a.store, a.embedder))
	}
	a.server = server.New(a.cfg.Server, a.cfg.Realtime, a.live, a.metrics, opts...)
}

// Live returns the live transcript view.
func (a *App) Live() *Live { return a.live }

// Run connects to the provider and serves until ctx is cancelled or a
// subsystem fails. A clean, cancellation-driven exit returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.ingestLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ingestLoop drains the realtime event stream into the transcript. It owns
// the only writer to the aggregator; event order on the channel is transcript
// order.
func (a *App) ingestLoop(ctx context.Context) error {
	src := a.source
	if src == nil {
		sess, err := a.recon.Connect(ctx)
		if err != nil {
			return fmt.Errorf("app: connect: %w", err)
		}
		a.wireSession(sess)
		a.recon.Monitor(ctx)
		src = sess
	}
	a.status.up.Store(true)
	a.metrics.SessionsStarted.Add(ctx, 1)
	observe.Logger(ctx).Info("realtime session started", "session_id", a.currentSessionID())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-src.Events():
			if !ok {
				if err := src.Err(); err != nil {
					a.metrics.RecordStreamError(ctx, "disconnect")
					observe.Logger(ctx).Warn("realtime stream dropped", "err", err)
				}
				a.status.up.Store(false)
				if a.recon == nil {
					// Injected sources do not redial; keep serving the
					// transcript until shutdown.
					<-ctx.Done()
					return ctx.Err()
				}
				a.recon.NotifyDisconnect()
				select {
				case sess := <-a.fresh:
					src = sess
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
			a.ingest(ctx, ev)
		}
	}
}

// ingest applies one event and, when it changed the transcript, pushes the
// new snapshot to subscribers.
func (a *App) ingest(ctx context.Context, ev transcript.RawEvent) {
	prev := a.live.Len()
	start := time.Now()
	outcome, entries := a.live.Ingest(ev)
	a.metrics.RecordIngest(ctx, outcome.String(), time.Since(start).Seconds())

	switch outcome {
	case transcript.OutcomeIgnored, transcript.OutcomeDuplicate:
		return
	}
	a.metrics.SetTranscriptEntries(ctx, prev, len(entries))
	a.server.Hub().Broadcast(ctx, entries)
}

// wireSession hooks non-fatal provider error events into metrics and logs.
func (a *App) wireSession(sess *realtime.Session) {
	sess.OnError(func(err error) {
		a.metrics.RecordStreamError(context.Background(), "provider")
		observe.Logger(context.Background()).Warn("provider error event", "err", err)
	})
}

// handleReconnect runs on the reconnector's goroutine after a successful
// redial. The dead session's transcript is archived and the live view starts
// over before the ingest loop switches to the new event channel.
func (a *App) handleReconnect(sess *realtime.Session) {
	ctx := context.Background()

	if err := a.archiveSession(ctx); err != nil {
		observe.Logger(ctx).Error("archiving previous session failed", "err", err)
	}
	a.rotateSession()
	a.live.Reset()
	a.server.Hub().Broadcast(ctx, nil)

	a.wireSession(sess)
	a.status.up.Store(true)
	a.metrics.SessionsStarted.Add(ctx, 1)
	observe.Logger(ctx).Info("realtime session restarted", "session_id", a.currentSessionID())

	select {
	case a.fresh <- sess:
	default:
	}
}

// archiveSession writes the current transcript to the archive, summarised
// when a summariser is configured. Empty transcripts are not archived.
func (a *App) archiveSession(ctx context.Context) error {
	if a.archiver == nil {
		return nil
	}
	entries := a.live.Entries()
	if len(entries) == 0 {
		return nil
	}

	a.sessMu.Lock()
	rec := archive.SessionRecord{
		ID:         a.sessionID,
		StartedAt:  a.startedAt,
		EndedAt:    time.Now().UTC(),
		EntryCount: len(entries),
	}
	a.sessMu.Unlock()

	if a.summariser != nil {
		start := time.Now()
		s, err := a.summariser.Summarise(ctx, entries)
		a.metrics.SummaryDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			observe.Logger(ctx).Warn("session summary failed", "err", err)
		} else {
			rec.Summary = s
		}
	}

	start := time.Now()
	if err := a.archiver.WriteSession(ctx, rec, entries); err != nil {
		return fmt.Errorf("app: write session: %w", err)
	}
	a.metrics.ArchiveWriteDuration.Record(ctx, time.Since(start).Seconds())

	if a.embedder != nil {
		if err := a.archiver.IndexEntries(ctx, rec.ID, entries, a.embedder); err != nil {
			return fmt.Errorf("app: index session: %w", err)
		}
	}
	observe.Logger(ctx).Info("session archived",
		"session_id", rec.ID,
		"entries", rec.EntryCount,
	)
	return nil
}

// rotateSession assigns a new session identity after a reconnect.
func (a *App) rotateSession() {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	a.sessionID = newSessionID()
	a.startedAt = time.Now().UTC()
}

func (a *App) currentSessionID() string {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.sessionID
}

// Shutdown archives the final transcript and releases resources, in order,
// respecting the ctx deadline. Safe to call multiple times.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if err := a.archiveSession(ctx); err != nil {
			errs = append(errs, err)
		}
		for _, closer := range a.closers {
			if ctx.Err() != nil {
				errs = append(errs, fmt.Errorf("app: shutdown interrupted: %w", ctx.Err()))
				return
			}
			if err := closer(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func newSessionID() string {
	return "sess-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
