package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/transcript"
)

// writeTimeout bounds a single push to one subscriber.
const writeTimeout = 5 * time.Second

// update is the frame pushed to subscribers after every transcript change.
// It always carries the full snapshot so clients never have to reconcile
// partial-entry rewrites themselves.
type update struct {
	Type    string             `json:"type"`
	Entries []transcript.Entry `json:"entries"`
}

// Hub fans transcript updates out to WebSocket subscribers. Slow subscribers
// miss intermediate snapshots but always receive the latest one they can keep
// up with.
type Hub struct {
	metrics *observe.Metrics

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	conn *websocket.Conn
	ch   chan []byte
}

// NewHub creates an empty hub.
func NewHub(m *observe.Metrics) *Hub {
	return &Hub{
		metrics: m,
		subs:    make(map[*subscriber]struct{}),
	}
}

// ServeWS upgrades the request to a WebSocket, sends initial as the first
// frame, and pushes a fresh snapshot after every subsequent broadcast until
// the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial []transcript.Entry) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}

	sub := &subscriber{conn: conn, ch: make(chan []byte, 8)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.WSClients.Add(r.Context(), 1)

	defer func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		h.metrics.WSClients.Add(context.Background(), -1)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	// The stream is push-only; CloseRead watches for client disconnect.
	ctx := conn.CloseRead(r.Context())

	if initial != nil {
		if frame, err := json.Marshal(update{Type: "transcript", Entries: initial}); err == nil {
			if err := h.write(ctx, conn, frame); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sub.ch:
			if err := h.write(ctx, conn, frame); err != nil {
				return
			}
		}
	}
}

// Broadcast pushes the snapshot to every subscriber. Subscribers whose
// buffers are full skip this snapshot; they will receive the next one.
func (h *Hub) Broadcast(ctx context.Context, entries []transcript.Entry) {
	frame, err := json.Marshal(update{Type: "transcript", Entries: entries})
	if err != nil {
		observe.Logger(ctx).Error("marshalling transcript update failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- frame:
		default:
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// CloseAll disconnects every subscriber and rejects new ones.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, frame)
}
