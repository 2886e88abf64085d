package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// sendBuffer is how many messages a client may fall behind before it is dropped.
const sendBuffer = 32

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a websocket connection listening for one user's notifications.
type Client struct {
	ID     string
	UserID string
	conn   Conn
	send   chan []byte
	once   sync.Once
}

// NewClient wraps conn for userID.
func NewClient(id, userID string, conn Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

// writePump drains the send buffer until the hub closes it.
func (c *Client) writePump(logger *slog.Logger) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Warn("websocket write failed", "client", c.ID, "user", c.UserID, "error", err)
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

type broadcastMessage struct {
	userID  string
	payload any
}

// Hub fans notification messages out to the clients of each user.
// Each user id is a room; a user may have several open connections.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "live-hub"),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", "clients", h.ClientCount())
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.close()
		_ = client.conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if h.rooms[client.UserID] == nil {
		h.rooms[client.UserID] = make(map[string]bool)
	}
	h.rooms[client.UserID][client.ID] = true
	h.mu.Unlock()

	go client.writePump(h.logger)
	h.logger.Info("client registered", "client", client.ID, "user", client.UserID)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	if room := h.rooms[client.UserID]; room != nil {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, client.UserID)
		}
	}
	client.close()
	h.logger.Info("client unregistered", "client", client.ID, "user", client.UserID)
}

func (h *Hub) handleBroadcast(msg broadcastMessage) {
	data, err := json.Marshal(msg.payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "user", msg.userID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for clientID := range h.rooms[msg.userID] {
		client, ok := h.clients[clientID]
		if !ok {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("dropping slow client", "client", client.ID, "user", client.UserID)
			h.removeLocked(client)
			_ = client.conn.Close()
		}
	}
}

// Register adds a client to its user's room.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		_ = client.conn.Close()
	}
}

// Unregister removes a client. Unknown clients are ignored.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues payload for every connection of userID.
func (h *Hub) Broadcast(userID string, payload any) {
	select {
	case h.broadcast <- broadcastMessage{userID: userID, payload: payload}:
	case <-h.done:
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserClientCount returns the number of connections open for userID.
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
