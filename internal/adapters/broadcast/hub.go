// Package broadcast pushes overlay state to connected display clients
// over websockets. The hub holds the latest enriched roster and replays
// it to every client that connects, so a display joining mid-match is
// current immediately.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
	"github.com/vaccie/valoverlay-discord/pkg/metrics"
)

const sendBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// envelope is the frame format sent to display clients.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// Hub fans overlay updates out to every connected display client.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*client
	lastState []model.EnrichedParticipant
	closed    bool
	log       logger.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		log:     logger.Named("broadcast"),
	}
}

// ServeHTTP upgrades the connection, replays the current state and keeps
// the client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c.id] = c
	snapshot := h.lastState
	count := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateConnectedClients(count)
	h.log.Info(r.Context(), "display client connected",
		logger.String("client", c.id),
		logger.Int("clients", count),
	)

	go c.writeLoop()

	if snapshot != nil {
		if raw, err := json.Marshal(envelope{Type: "state", Payload: snapshot}); err == nil {
			c.deliver(raw)
		}
	}

	// Displays never send anything meaningful; the read loop only
	// detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c.id)
}

// PublishState replaces the roster snapshot and broadcasts it.
func (h *Hub) PublishState(participants []model.EnrichedParticipant) {
	if participants == nil {
		participants = []model.EnrichedParticipant{}
	}
	raw, err := json.Marshal(envelope{Type: "state", Payload: participants})
	if err != nil {
		return
	}

	h.mu.Lock()
	h.lastState = participants
	targets := h.snapshotClients()
	h.mu.Unlock()

	for _, c := range targets {
		c.deliver(raw)
	}
}

// PublishSpeaking broadcasts a speaking start/stop notification.
func (h *Hub) PublishSpeaking(ev model.SpeakingEvent) {
	raw, err := json.Marshal(envelope{Type: "speaking", Payload: ev})
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := h.snapshotClients()
	h.mu.RUnlock()

	for _, c := range targets {
		c.deliver(raw)
	}
}

// ClientCount returns the number of connected display clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	targets := h.snapshotClients()
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range targets {
		c.shutdown()
	}
	metrics.UpdateConnectedClients(0)
}

// snapshotClients must be called with h.mu held.
func (h *Hub) snapshotClients() []*client {
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.shutdown()
	metrics.UpdateConnectedClients(count)
	h.log.Info(context.Background(), "display client disconnected",
		logger.String("client", id),
		logger.Int("clients", count),
	)
}

// deliver queues a frame without blocking; a stalled client loses the
// frame rather than stalling the loop.
func (c *client) deliver(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for raw := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}
