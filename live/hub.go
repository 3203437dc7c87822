// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DadGPT/halloween/models"
)

// Event types
const (
	EventWelcome       = "welcome"
	EventEntryCreated  = "entry.created"
	EventEntryUpdated  = "entry.updated"
	EventEntryDeleted  = "entry.deleted"
	EventEntriesClear  = "entries.cleared"
	EventVoteChanged   = "vote.changed"
	EventVotesReset    = "votes.reset"
	EventTimingUpdated = "timing.updated"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is how many events may queue for one client before it
	// is considered too slow and dropped.
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is open for the API as well
	},
}

// client is one websocket connection. Only writePump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans contest events out to connected websocket clients. Publishing
// only queues messages, so a slow client never delays the caller. A nil
// *Hub is valid and drops every event.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ServeWS handles GET /ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: ws, send: make(chan []byte, sendBuffer)}
	welcome, _ := json.Marshal(models.Event{Type: EventWelcome, At: time.Now().UTC()})
	c.send <- welcome

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("live client connected", "clients", count)

	go c.writePump()
	c.readPump()

	h.remove(c)
	slog.Info("live client disconnected", "clients", h.Count())
}

// Publish queues an event for every client. Clients whose queue is full
// are dropped.
func (h *Hub) Publish(eventType string, data any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(models.Event{Type: eventType, Data: data, At: time.Now().UTC()})
	if err != nil {
		slog.Error("failed to encode live event", "type", eventType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			slog.Warn("dropping slow live client", "type", eventType)
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// remove unregisters c; safe to call more than once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// readPump discards incoming messages; it returns once the connection
// fails or the peer stops answering pings.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends queued events and pings. A closed send channel means
// the hub dropped the client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closed the stream"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
