// Package realtime is the websocket channel used to push alert updates to
// browser clients and to receive their commands.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HandlerFunc handles one inbound event from a client.
type HandlerFunc func(ctx context.Context, c *Client, data json.RawMessage)

// Hub tracks connected clients and dispatches their events.
type Hub struct {
	upgrader websocket.Upgrader

	mu           sync.RWMutex
	clients      map[*Client]struct{}
	handlers     map[string]HandlerFunc
	onConnect    []func(ctx context.Context, c *Client)
	onDisconnect []func(c *Client)
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[*Client]struct{}),
		handlers: make(map[string]HandlerFunc),
	}
}

// On registers the handler for an inbound event name.
func (h *Hub) On(event string, fn HandlerFunc) {
	h.mu.Lock()
	h.handlers[event] = fn
	h.mu.Unlock()
}

// OnConnect registers a hook run after a client is registered.
func (h *Hub) OnConnect(fn func(ctx context.Context, c *Client)) {
	h.mu.Lock()
	h.onConnect = append(h.onConnect, fn)
	h.mu.Unlock()
}

// OnDisconnect registers a hook run after a client is gone.
func (h *Hub) OnDisconnect(fn func(c *Client)) {
	h.mu.Lock()
	h.onDisconnect = append(h.onDisconnect, fn)
	h.mu.Unlock()
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	ctx := c.Request.Context()

	h.register(client)
	slog.Info("Client connected", "client", client.ID)
	go client.writePump()

	h.mu.RLock()
	hooks := append([]func(context.Context, *Client){}, h.onConnect...)
	h.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, client)
	}

	client.readPump(ctx)

	h.unregister(client)
	client.close()
	slog.Info("Client disconnected", "client", client.ID)

	h.mu.RLock()
	leave := append([]func(*Client){}, h.onDisconnect...)
	h.mu.RUnlock()
	for _, fn := range leave {
		fn(client)
	}
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		slog.Error("Failed to encode broadcast", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.deliver(event, msg)
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.close()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) handler(event string) (HandlerFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[event]
	return fn, ok
}

// Client is one websocket connection.
type Client struct {
	ID string

	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Emit sends an event to this client only. A client that cannot keep up
// loses the message.
func (c *Client) Emit(event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		slog.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	c.deliver(event, msg)
}

func (c *Client) deliver(event string, msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		slog.Warn("Client send buffer full, dropping message", "client", c.ID, "event", event)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Websocket read error", "client", c.ID, "error", err)
			}
			return
		}

		fn, ok := c.hub.handler(env.Event)
		if !ok {
			slog.Warn("Unknown event", "client", c.ID, "event", env.Event)
			continue
		}
		fn(ctx, c, env.Data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("Websocket write error", "client", c.ID, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
