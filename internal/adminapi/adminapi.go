// Package adminapi serves a minimal read-only WebSocket event stream for
// operators: room state changes and feed updates, broadcast to every
// connected client. It is a deliberately smaller cousin of the teacher's
// gateway WS hub (internal/gateway/ws in the broader goclaw codebase) —
// there is no bidirectional RPC surface (no open_session/submit_task/
// reply_task methods) since this module has no multi-session task queue
// to drive from a client; operators watch, they don't steer.
package adminapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// EventType names the kind of update broadcast over the stream.
type EventType string

const (
	EventRoomUpdated EventType = "room_updated"
	EventFeedUpdated EventType = "feed_updated"
	EventTaskStarted EventType = "task_started"
	EventTaskEnded   EventType = "task_ended"
)

// Event is one broadcast message. Payload is any JSON-marshalable value —
// typically a snapshot of the room state or feed content that changed.
type Event struct {
	Type    EventType `json:"type"`
	RoomID  string    `json:"room_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// Hub accepts WebSocket connections and fans out Events to all of them.
// The zero value is not usable; construct with New.
type Hub struct {
	token string

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New builds a Hub. An empty token disables bearer-token auth on
// Handler (useful for local-only deployments bound to loopback).
func New(token string) *Hub {
	return &Hub{
		token:   token,
		clients: make(map[*client]struct{}),
	}
}

// Publish marshals event and fans it out to every connected client. Slow
// clients are dropped rather than allowed to block the broadcaster.
func (h *Hub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("adminapi: marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("adminapi: dropping event for slow client")
		}
	}
}

// Handler returns the http.Handler that upgrades connections to
// WebSocket and streams Events, authenticating with a bearer token when
// one is configured.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.serveWS)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+h.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("adminapi: ws accept", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register(c)

	ctx := r.Context()
	go h.writePump(ctx, c)
	h.readPump(ctx, c)
}

// readPump discards any client-sent frames (operators don't send
// commands over this stream) but still needs to read in order to notice
// the connection closing.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("adminapi: client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	slog.Info("adminapi: client disconnected", "clients", len(h.clients))
}

// Close disconnects every connected client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
	}
}
