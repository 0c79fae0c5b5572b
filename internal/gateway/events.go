package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/logging"
)

// ErrClientClosed is returned when sending to a closed subscriber.
var ErrClientClosed = errors.New("client connection closed")

const writeWait = 5 * time.Second

// Client is one websocket subscriber of the events stream.
type Client struct {
	ConnID      string
	Socket      *websocket.Conn
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		Socket:      conn,
		ConnectedAt: time.Now(),
	}
}

// Send writes a frame to the client. Thread-safe.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Socket.WriteJSON(frame)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Socket.Close()
}

// EventHub streams callback records to websocket subscribers.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[string]*Client // connID → Client
	seq      atomic.Int64
	upgrader websocket.Upgrader
	version  string
	log      *logging.Logger
}

// NewEventHub creates a hub with no subscribers.
func NewEventHub(version string, log *logging.Logger) *EventHub {
	return &EventHub{
		clients: make(map[string]*Client),
		version: version,
		log:     log.Sub("events"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(nil),
		},
	}
}

// checkWebSocketOrigin returns a function that validates websocket Origin
// headers. Requests without an Origin (non-browser clients) are allowed;
// otherwise the Origin must be listed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeHTTP upgrades the request and keeps the subscriber registered until
// it disconnects. Incoming messages are discarded.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(4096)

	client := NewClient(conn)
	hello, err := NewHello(Hello{Protocol: ProtocolVersion, Version: h.version, ConnID: client.ConnID})
	if err == nil {
		err = client.Send(hello)
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("sending hello failed")
		client.Close()
		return
	}

	h.add(client)
	defer func() {
		h.remove(client.ConnID)
		client.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}
	}
}

func (h *EventHub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ConnID] = c
	h.log.Info().Str("connId", c.ConnID).Msg("subscriber connected")
}

func (h *EventHub) remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
	h.log.Info().Str("connId", connID).Msg("subscriber disconnected")
}

// Count returns the number of connected subscribers.
func (h *EventHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event frame to every subscriber. Subscribers that
// cannot keep up are disconnected.
func (h *EventHub) Broadcast(event string, payload any) {
	frame, err := NewEvent(event, payload, h.seq.Add(1))
	if err != nil {
		h.log.Warn().Err(err).Str("event", event).Msg("encoding event failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if err := c.Send(frame); err != nil {
			h.log.Warn().Err(err).Str("connId", c.ConnID).Msg("broadcast send failed")
			c.Close()
		}
	}
}

// Observer returns a hooks.Observer that forwards every record to the
// subscribers.
func (h *EventHub) Observer() hooks.Observer {
	return func(_ context.Context, rec domain.CallbackRecord) error {
		if h.Count() == 0 {
			return nil
		}
		if len(rec.Payload) > 0 && !json.Valid(rec.Payload) {
			quoted, _ := json.Marshal(string(rec.Payload))
			rec.Payload = quoted
		}
		event := EventCallbackRequest
		if rec.Kind == domain.CallbackResponse {
			event = EventCallbackResponse
		}
		h.Broadcast(event, rec)
		return nil
	}
}

// CloseAll disconnects every subscriber.
func (h *EventHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}
