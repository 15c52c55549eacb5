// Package realtime implements the WebSocket transport to the model
// provider's realtime endpoint.
//
// A [Session] exchanges JSON events with the provider: it sends a
// session.update immediately after dialing and then delivers every incoming
// frame, decoded into a [transcript.RawEvent], on a single channel in arrival
// order. The transcript aggregator relies on that serial delivery; the
// session never reorders or concurrently dispatches events. Frames that are
// not valid JSON objects are skipped, and provider "error" events are
// surfaced through the OnError callback rather than terminating the stream.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/vocalis/internal/transcript"
)

// Compile-time assertion that Session satisfies EventSource.
var _ EventSource = (*Session)(nil)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
)

// EventSource is the read side of a realtime session, consumed by the app's
// ingest loop.
type EventSource interface {
	// Events returns the channel on which decoded provider events arrive, in
	// order. The channel is closed when the session ends.
	Events() <-chan transcript.RawEvent

	// Err returns the first error that terminated the session, or nil after
	// a clean close.
	Err() error
}

// ── Client ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the realtime model used for sessions.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// Client dials realtime sessions against the model provider.
type Client struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a Client with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SessionConfig carries the per-session model parameters sent in the initial
// session.update event.
type SessionConfig struct {
	// Voice selects the assistant's synthesised voice.
	Voice string

	// Instructions is the system prompt for the session.
	Instructions string
}

// Connect establishes a new realtime session. The returned Session delivers
// events immediately; callers should start draining Events() promptly.
func (c *Client) Connect(ctx context.Context, cfg SessionConfig) (*Session, error) {
	wsURL := fmt.Sprintf("%s?model=%s", c.baseURL, c.model)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + c.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &Session{
		conn:   conn,
		events: make(chan transcript.RawEvent, 64),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := sess.sendSessionUpdate(cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("realtime: session update: %w", err)
	}

	go sess.receiveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Voice             string `json:"voice,omitempty"`
	Instructions      string `json:"instructions,omitempty"`
	InputAudioFormat  string `json:"input_audio_format"`
	OutputAudioFormat string `json:"output_audio_format"`
}

type createConversationItemMessage struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string             `json:"type"`
	Role    string             `json:"role,omitempty"`
	Content []conversationPart `json:"content,omitempty"`
}

type conversationPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// serverErrorDetail is the nested error object in a provider error event:
// {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorEvent struct {
	Type  string             `json:"type"`
	Error *serverErrorDetail `json:"error,omitempty"`
}

// ── Session ───────────────────────────────────────────────────────────────────

// Session is one live realtime connection. All exported methods are safe for
// concurrent use; events are delivered serially on a single channel.
type Session struct {
	conn   *websocket.Conn
	events chan transcript.RawEvent

	mu           sync.Mutex
	errorHandler func(error)
	errVal       error
	closed       bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *Session) sendSessionUpdate(cfg SessionConfig) error {
	return s.writeJSON(sessionUpdateMessage{
		Type: "session.update",
		Session: sessionParams{
			Voice:             cfg.Voice,
			Instructions:      cfg.Instructions,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
		},
	})
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads frames from the WebSocket, decodes them, and delivers
// them in order. It owns the events channel and closes it on exit.
func (s *Session) receiveLoop() {
	defer s.closeOnce.Do(func() { close(s.events) })

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.setErr(err)
			}
			return
		}

		ev, err := transcript.ParseRawEvent(data)
		if err != nil {
			// A malformed frame is skipped; the stream continues.
			continue
		}

		if ev.Type == "error" {
			s.handleErrorFrame(data)
			continue
		}

		select {
		case s.events <- ev:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) handleErrorFrame(data []byte) {
	s.mu.Lock()
	handler := s.errorHandler
	s.mu.Unlock()
	if handler == nil {
		return
	}

	var evt errorEvent
	msg := "unknown error"
	if err := json.Unmarshal(data, &evt); err == nil && evt.Error != nil && evt.Error.Message != "" {
		msg = evt.Error.Message
	}
	handler(fmt.Errorf("realtime: %s", msg))
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

// Events implements [EventSource].
func (s *Session) Events() <-chan transcript.RawEvent { return s.events }

// Err implements [EventSource].
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// OnError registers a callback for non-fatal provider error events.
func (s *Session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// SendText injects a typed user message and asks the model to respond. This
// is what the demo's text input box goes through; the resulting
// conversation.item.create event also comes back down the event stream and
// lands in the transcript as a complete user message.
func (s *Session) SendText(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("realtime: session closed")
	}
	s.mu.Unlock()

	msg := createConversationItemMessage{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type: "message",
			Role: "user",
			Content: []conversationPart{
				{Type: "input_text", Text: text},
			},
		},
	}
	if err := s.writeJSON(msg); err != nil {
		return err
	}
	return s.writeJSON(map[string]string{"type": "response.create"})
}

// Interrupt sends a response.cancel event to stop the current model response.
func (s *Session) Interrupt() error {
	return s.writeJSON(map[string]string{"type": "response.cancel"})
}

// Close terminates the session and releases all resources. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
