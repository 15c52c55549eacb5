package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Reconnector monitors a realtime session and automatically redials on
// disconnection.
//
// Callers obtain the initial session via [Reconnector.Connect], then call
// [Reconnector.Monitor] to start a background goroutine that watches for
// drops. When a drop is signalled (via [Reconnector.NotifyDisconnect]), the
// monitor redials with exponential backoff and invokes the configured
// OnReconnect callback with the fresh session. A reconnected session is a new
// data channel as far as the provider is concerned — the consumer is expected
// to reset its transcript state in OnReconnect.
//
// All methods are safe for concurrent use.
type Reconnector struct {
	client      *Client
	sessionCfg  SessionConfig
	maxRetries  int
	backoff     time.Duration
	maxBackoff  time.Duration
	onReconnect func(*Session)

	mu           sync.Mutex
	session      *Session
	done         chan struct{}
	stopOnce     sync.Once
	disconnected chan struct{} // signalled when a disconnect is detected
}

// ReconnectorConfig configures a [Reconnector].
type ReconnectorConfig struct {
	// Client is used to establish sessions.
	Client *Client

	// Session is the configuration for every (re)dialed session.
	Session SessionConfig

	// MaxRetries is the maximum number of redial attempts per disconnect
	// before giving up. Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial backoff between retries. Doubles each attempt
	// up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on backoff duration. Defaults to 30s if zero.
	MaxBackoff time.Duration

	// OnReconnect is called after a successful redial with the new session.
	// May be nil.
	OnReconnect func(*Session)
}

// NewReconnector creates a new [Reconnector] with the given configuration.
func NewReconnector(cfg ReconnectorConfig) *Reconnector {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Reconnector{
		client:       cfg.Client,
		sessionCfg:   cfg.Session,
		maxRetries:   maxRetries,
		backoff:      backoff,
		maxBackoff:   maxBackoff,
		onReconnect:  cfg.OnReconnect,
		done:         make(chan struct{}),
		disconnected: make(chan struct{}, 1),
	}
}

// Connect performs the initial dial.
func (r *Reconnector) Connect(ctx context.Context) (*Session, error) {
	sess, err := r.client.Connect(ctx, r.sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("reconnector initial connect: %w", err)
	}

	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()

	return sess, nil
}

// Monitor starts watching for disconnect notifications in a background
// goroutine.
func (r *Reconnector) Monitor(ctx context.Context) {
	go r.monitorLoop(ctx)
}

// NotifyDisconnect signals the monitor that the session has been lost and a
// redial should be attempted. Safe to call multiple times; only the first
// call per reconnection cycle has effect.
func (r *Reconnector) NotifyDisconnect() {
	select {
	case r.disconnected <- struct{}{}:
	default:
		// Already signalled; avoid blocking.
	}
}

// Stop halts monitoring and closes the current session. Safe to call
// multiple times.
func (r *Reconnector) Stop() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.mu.Unlock()

	if sess != nil {
		return sess.Close()
	}
	return nil
}

// Session returns the current active session. May return nil during
// reconnection.
func (r *Reconnector) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// monitorLoop waits for disconnect notifications and attempts redials.
func (r *Reconnector) monitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.disconnected:
			r.attemptReconnect(ctx)
		}
	}
}

// attemptReconnect redials with exponential backoff.
func (r *Reconnector) attemptReconnect(ctx context.Context) {
	currentBackoff := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		slog.Info("attempting realtime reconnection",
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"backoff", currentBackoff,
		)

		sess, err := r.client.Connect(ctx, r.sessionCfg)
		if err == nil {
			r.mu.Lock()
			old := r.session
			r.session = sess
			r.mu.Unlock()

			// Close the old (failed) session to release its resources.
			if old != nil {
				_ = old.Close()
			}

			slog.Info("realtime reconnection successful", "attempt", attempt)

			if r.onReconnect != nil {
				r.onReconnect(sess)
			}
			return
		}

		slog.Warn("realtime reconnection attempt failed",
			"attempt", attempt,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(currentBackoff):
		}

		currentBackoff *= 2
		if currentBackoff > r.maxBackoff {
			currentBackoff = r.maxBackoff
		}
	}

	slog.Error("realtime reconnection failed; giving up", "max_retries", r.maxRetries)
}
