// Package ws pushes queue snapshots to equipment screens over websockets.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// Message is one payload for every subscriber of an equipment.
type Message struct {
	EquipmentID int64
	Payload     []byte
}

// Hub keeps websocket clients grouped by equipment id.
type Hub struct {
	clients    map[int64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message),
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws"),
	}
}

// Run serves registrations and broadcasts until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.EquipmentID] == nil {
				h.clients[client.EquipmentID] = make(map[*Client]bool)
			}
			h.clients[client.EquipmentID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.EquipmentID] {
				select {
				case client.send <- msg.Payload:
				default:
					h.logger.Warn("dropping slow subscriber", "equipment_id", msg.EquipmentID)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.EquipmentID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.EquipmentID)
	}
}

// Publish hands payload to every subscriber of equipmentID. It returns at once after Run stops.
func (h *Hub) Publish(equipmentID int64, payload []byte) {
	select {
	case h.broadcast <- Message{EquipmentID: equipmentID, Payload: payload}:
	case <-h.done:
	}
}

// Subscribers returns how many clients watch equipmentID.
func (h *Hub) Subscribers(equipmentID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[equipmentID])
}

// Client is one websocket connection watching one equipment.
type Client struct {
	EquipmentID int64
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
}

// readPump only tracks the connection; incoming messages are discarded.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve upgrades the request and subscribes it to equipmentID. initial, when not
// nil, is the first message the client receives.
func (h *Hub) Serve(c *gin.Context, equipmentID int64, initial []byte) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "equipment_id", equipmentID, "error", err)
		return
	}

	client := &Client{
		EquipmentID: equipmentID,
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
	}
	if initial != nil {
		client.send <- initial
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
