// Package statushub broadcasts TNC lifecycle and traffic events to
// connected WebSocket clients, for a live status dashboard.
package statushub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"m17/pkg/logger"
)

// Event is one JSON message broadcast to every connected client.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e *Event) marshal() ([]byte, error) { return json.Marshal(e) }

// client is one connected WebSocket subscriber.
type client struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
}

// Hub manages WebSocket subscriber connections and fans out broadcast
// events to all of them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	log        *logger.Logger
	mu         sync.RWMutex
}

// New constructs a Hub. Run must be called to drive its event loop.
func New(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.New(logger.Config{Level: "info"})
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log.WithComponent("statushub"),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debug("client registered", logger.String("client_id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.messages)
			}
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.String("client_id", c.id))

		case event := <-h.broadcast:
			data, err := event.marshal()
			if err != nil {
				h.log.Error("failed to marshal event", logger.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.messages <- data:
				default:
					h.log.Warn("client buffer full, dropping event", logger.String("client_id", c.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.messages)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues an event for delivery to every connected client.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast channel full, dropping event", logger.String("event_type", event.Type))
	}
}

// BroadcastStreamStarted reports a new voice stream.
func (h *Hub) BroadcastStreamStarted(source, dest string) {
	h.Broadcast(Event{Type: "stream_started", Data: map[string]interface{}{"source": source, "dest": dest}})
}

// BroadcastStreamEnded reports a stream's end.
func (h *Hub) BroadcastStreamEnded(source, dest string) {
	h.Broadcast(Event{Type: "stream_ended", Data: map[string]interface{}{"source": source, "dest": dest}})
}

// BroadcastPacket reports a received packet-mode frame.
func (h *Hub) BroadcastPacket(source, dest string, packetType byte, bytes int) {
	h.Broadcast(Event{Type: "packet", Data: map[string]interface{}{
		"source": source, "dest": dest, "packet_type": packetType, "bytes": bytes,
	}})
}

// BroadcastReflectorStatus reports a reflector connect/disconnect.
func (h *Hub) BroadcastReflectorStatus(connected bool, reason string) {
	h.Broadcast(Event{Type: "reflector_status", Data: map[string]interface{}{
		"connected": connected, "reason": reason,
	}})
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns an HTTP handler that upgrades requests to WebSocket
// subscriptions.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		c := &client{id: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		h.register <- c

		go func() {
			defer func() {
				h.unregister <- c
				_ = c.conn.Close()
			}()
			c.conn.SetReadLimit(1024)
			for {
				if _, _, err := c.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range c.messages {
				_ = c.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}
