package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// WSEventState carries a full facility snapshot. Every client gets it.
	WSEventState = "state"

	// WSChannelAutomation carries individual automation events to clients
	// that subscribe to it.
	WSChannelAutomation = "automation"
)

const (
	defaultSendBuffer     = 256
	defaultMaxMessageSize = 8192
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
)

// WSMessage is a message sent to or from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks WebSocket clients. Each client is registered with the engine
// as an observer; the hub itself is an automation.EventSink that relays
// events to clients subscribed to the automation channel.
type Hub struct {
	engine  *automation.Engine
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	closed  bool
	mu      sync.RWMutex
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subID         automation.SubscriptionID
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	// sendMu guards send against a close racing a queued message.
	sendMu sync.Mutex
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub that subscribes its clients to engine.
func NewHub(engine *automation.Engine, cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client and subscribes it to the engine, which queues the
// current snapshot for it straight away. It returns false once the hub has
// shut down.
func (h *Hub) Register(client *WSClient) bool {
	client.subID = h.engine.Subscribe(client)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.engine.Unsubscribe(client.subID)
		return false
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
	return true
}

// Unregister unsubscribes a client and closes its send channel. Only the
// caller that removes the client from the map closes the channel.
func (h *Hub) Unregister(client *WSClient) {
	h.engine.Unsubscribe(client.subID)

	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		client.closeSend()
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Record implements automation.EventSink.
func (h *Hub) Record(ev automation.Event) {
	h.Broadcast(WSChannelAutomation, string(ev.Type), ev)
}

// Broadcast sends payload to every client subscribed to channel.
func (h *Hub) Broadcast(channel, eventType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.engine.Unsubscribe(client.subID)
		client.closeSend()
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// handleWebSocket upgrades the connection and registers the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	size := s.wsCfg.SendBuffer
	if size <= 0 {
		size = defaultSendBuffer
	}
	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, size),
		subscriptions: make(map[string]struct{}),
	}

	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Notify implements automation.Observer. It never blocks: a client whose
// buffer is full misses the snapshot and catches up on the next one.
func (c *WSClient) Notify(snap facility.Snapshot) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: WSEventState,
		Timestamp: snap.SystemStatus.LastUpdateAt.Format(time.RFC3339),
		Payload:   snap,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) timings() (maxSize int64, ping, pong time.Duration) {
	cfg := c.hub.cfg
	maxSize = int64(cfg.MaxMessageSize)
	if maxSize <= 0 {
		maxSize = defaultMaxMessageSize
	}
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	pong = time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = defaultPongTimeout
	}
	return maxSize, ping, pong
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	maxSize, pingInterval, pongWait := c.timings()
	c.conn.SetReadLimit(maxSize)
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
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump() {
	_, pingInterval, pongWait := c.timings()
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
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

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) updateSubscriptions(msg WSMessage, add bool) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(payloadBytes, &sub); err != nil {
		c.sendError(msg.ID, "invalid subscription payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

// trySend queues data without blocking. Full buffers drop the message and
// a closed client ignores it. It reports whether data was queued.
func (c *WSClient) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel once, which stops writePump.
func (c *WSClient) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
