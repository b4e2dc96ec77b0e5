package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by CORS and the auth token
	},
}

// WebSocketMessage is the frame format in both directions.
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// PresenceTracker records which users hold live connections.
type PresenceTracker interface {
	Connected(ctx context.Context, userID uint) error
	Disconnected(ctx context.Context, userID uint) error
	Touch(ctx context.Context, userID uint) error
}

// Client represents a WebSocket client
type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
}

// Hub tracks the connections of this instance, keyed by user. A user may
// hold several connections.
type Hub struct {
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	presence   PresenceTracker
	pingPeriod time.Duration
	log        *zap.Logger
}

// NewHub creates a hub; presence may be nil.
func NewHub(presence PresenceTracker, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		presence:   presence,
		pingPeriod: pingPeriod,
		log:        log,
	}
}

// Run processes registrations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mutex.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.mutex.Unlock()
			h.track(client.UserID, true)
			h.log.Debug("websocket client connected", zap.Uint("userId", client.UserID))

		case client := <-h.unregister:
			h.mutex.Lock()
			if conns, ok := h.clients[client.UserID]; ok && conns[client] {
				delete(conns, client)
				close(client.Send)
				if len(conns) == 0 {
					delete(h.clients, client.UserID)
				}
				h.mutex.Unlock()
				h.track(client.UserID, false)
			} else {
				h.mutex.Unlock()
			}
			h.log.Debug("websocket client disconnected", zap.Uint("userId", client.UserID))
		}
	}
}

func (h *Hub) track(userID uint, connected bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var err error
	if connected {
		err = h.presence.Connected(ctx, userID)
	} else {
		err = h.presence.Disconnected(ctx, userID)
	}
	if err != nil {
		h.log.Warn("failed to update presence", zap.Uint("userId", userID), zap.Error(err))
	}
}

// closeAll drops every connection. Send channels stay open: the read pump
// may still be queueing a pong, and nothing else closes them after shutdown.
func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for userID, conns := range h.clients {
		for client := range conns {
			if client.Conn != nil {
				client.Conn.Close()
			}
		}
		delete(h.clients, userID)
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToUser sends a message to every connection of a user. Slow
// connections drop the message rather than block the sender.
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.Send <- message:
		default:
			h.log.Warn("websocket send buffer full, dropping message", zap.Uint("userId", userID))
		}
	}
}

// BroadcastToAll sends a message to all connected clients
func (h *Hub) BroadcastToAll(message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, conns := range h.clients {
		for client := range conns {
			select {
			case client.Send <- message:
			default:
				h.log.Warn("websocket send buffer full, dropping message", zap.Uint("userId", client.UserID))
			}
		}
	}
}

// IsConnected reports whether the user has a connection on this instance.
func (h *Hub) IsConnected(userID uint) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID]) > 0
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// NotifyUser delivers to this instance only.
func (h *Hub) NotifyUser(_ context.Context, userID uint, msgType string, data interface{}) error {
	payload, err := json.Marshal(WebSocketMessage{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	h.BroadcastToUser(userID, payload)
	return nil
}

func (h *Hub) NotifyAll(_ context.Context, msgType string, data interface{}) error {
	payload, err := json.Marshal(WebSocketMessage{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	h.BroadcastToAll(payload)
	return nil
}

// HandleWebSocket upgrades the request and attaches the connection to userID.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    hub,
	}
	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) touchPresence() {
	if c.Hub.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Hub.presence.Touch(ctx, c.UserID); err != nil {
		c.Hub.log.Debug("failed to refresh presence", zap.Uint("userId", c.UserID), zap.Error(err))
	}
}

// readPump handles client frames. Clients only send keepalives; both JSON
// pings and protocol pongs refresh presence.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.touchPresence()
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read error", zap.Uint("userId", c.UserID), zap.Error(err))
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.touchPresence()
			pong, _ := json.Marshal(WebSocketMessage{Type: "pong"})
			select {
			case c.Send <- pong:
			default:
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.Hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Hub.done:
			return
		}
	}
}
