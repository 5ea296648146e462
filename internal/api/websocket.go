package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
)

// Message type discriminators on the event stream.
const (
	WSTypeEvent    = "event"
	WSTypeFilter   = "filter"
	WSTypePing     = "ping"
	WSTypePong     = "pong"
	WSTypeResponse = "response"
	WSTypeError    = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// clientMessage is a control message sent by a connected client.
//
// A "filter" message replaces the client's event filter wholesale: only
// events whose type, topic, and source all pass are forwarded. Topics
// accept "+" and "#" wildcards; an empty list passes everything.
type clientMessage struct {
	Type       string   `json:"type"`
	ID         string   `json:"id,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

// serverMessage is a message sent to a connected client. Event messages
// carry the bus event verbatim; payload is the event body as raw JSON.
type serverMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"eventType,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Source    string          `json:"source,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// wsFilter selects which events a client receives. Empty slices pass
// everything; non-empty slices are OR-ed within and AND-ed across fields.
type wsFilter struct {
	eventTypes []string
	topics     []string
	sources    []string
}

// matches reports whether the event passes the filter.
func (f wsFilter) matches(ev events.Event) bool {
	if len(f.eventTypes) > 0 && !containsString(f.eventTypes, ev.Type()) {
		return false
	}
	if len(f.sources) > 0 && !containsString(f.sources, ev.Source()) {
		return false
	}
	if len(f.topics) > 0 {
		matched := false
		for _, pattern := range f.topics {
			if events.TopicMatches(pattern, ev.Topic()) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Hub fans bus events out to WebSocket clients. It subscribes to the
// event bus with no type restriction and applies per-client filters at
// delivery time.
type Hub struct {
	cfg     WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.RWMutex
	filter wsFilter
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Token auth, not cookies, so cross-origin requests carry no
		// ambient credentials.
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SubscribedEventTypes implements events.Subscriber; nil means every type.
func (h *Hub) SubscribedEventTypes() []string { return nil }

// Receive implements events.Subscriber. It runs on the bus dispatcher
// goroutine and must not block: sends are non-blocking, and a client whose
// buffer is full is dropped rather than allowed to stall event delivery.
func (h *Hub) Receive(ev events.Event) {
	msg := serverMessage{
		Type:      WSTypeEvent,
		EventType: ev.Type(),
		Topic:     ev.Topic(),
		Source:    ev.Source(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if p := ev.Payload(); p != "" {
		msg.Payload = json.RawMessage(p)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal event for broadcast", "error", err, "topic", ev.Topic())
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.wantsEvent(ev) {
			continue
		}
		if !client.trySend(data) {
			h.logger.Warn("websocket client too slow, disconnecting")
			h.Unregister(client)
			if client.conn != nil {
				client.conn.Close()
			}
		}
	}
}

// Run blocks until the context is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection
// on the event stream. Authentication is via access token when a JWT
// secret is configured.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		writeUnauthorized(w, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeFilter:
		c.setFilter(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// setFilter replaces the client's event filter.
func (c *WSClient) setFilter(msg clientMessage) {
	c.mu.Lock()
	c.filter = wsFilter{
		eventTypes: msg.EventTypes,
		topics:     msg.Topics,
		sources:    msg.Sources,
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket filter applied",
		"eventTypes", msg.EventTypes,
		"topics", msg.Topics,
		"sources", msg.Sources,
	)

	c.sendResponse(msg.ID, WSTypeResponse, nil)
}

// wantsEvent reports whether the event passes the client's filter.
func (c *WSClient) wantsEvent(ev events.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.matches(ev)
}

// trySend attempts to send data to the client's send channel. It reports
// false when the buffer is full; closed channels (client disconnected
// during broadcast) are absorbed and count as delivered.
func (c *WSClient) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = true
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendResponse sends a control response to the client.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResponse(id, msgType string, payload json.RawMessage) {
	msg := serverMessage{
		Type:      msgType,
		ID:        id,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	msg := serverMessage{
		Type:      WSTypeError,
		ID:        id,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}
