package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/misolabs/miso-api/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Camera frames arrive as
	// base64 JPEG, so this is far larger than a control message needs.
	maxMessageSize = 1 << 20
)

// Client represents a single WebSocket connection. The cooking device and
// any companion viewers of the same session share a room.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	Done      chan struct{}
	SessionID string
	UserID    uint
}

// Hub maintains active session rooms and broadcasts messages.
type Hub struct {
	Rooms      map[string]map[*Client]bool // sessionID -> set of clients
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *RoomMessage
	mu         sync.RWMutex
}

// RoomMessage carries a message destined for every client of a session.
type RoomMessage struct {
	SessionID string
	Message   []byte
}

// NewHub creates and returns a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *RoomMessage),
	}
}

// Run handles register, unregister, and broadcast events. It should be
// launched as a goroutine.
func (h *Hub) Run() {
	log := logger.Get()

	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.SessionID] == nil {
				h.Rooms[client.SessionID] = make(map[*Client]bool)
			}
			h.Rooms[client.SessionID][client] = true
			h.mu.Unlock()

			log.Info("client registered",
				zap.String("session_id", client.SessionID),
				zap.Uint("user_id", client.UserID),
			)

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.Rooms[client.SessionID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.Done)
					if len(clients) == 0 {
						delete(h.Rooms, client.SessionID)
					}
				}
			}
			h.mu.Unlock()

			log.Info("client unregistered",
				zap.String("session_id", client.SessionID),
				zap.Uint("user_id", client.UserID),
			)

		case msg := <-h.Broadcast:
			h.mu.RLock()
			for client := range h.Rooms[msg.SessionID] {
				select {
				case client.Send <- msg.Message:
				default:
					// Client's send buffer is full; drop the message
					// rather than stall the hub. Analysis events are
					// superseded by the next cycle anyway.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// TrySend queues a message for one client without blocking. It reports
// whether the message was queued.
func (c *Client) TrySend(message []byte) bool {
	select {
	case <-c.Done:
		return false
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// ReadPump reads messages from the WebSocket connection and hands each one
// to handler. It returns when the connection drops; the caller is
// responsible for unregistering the client afterwards.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				logger.Get().Warn("unexpected websocket close",
					zap.String("session_id", c.SessionID),
					zap.Uint("user_id", c.UserID),
					zap.Error(err),
				)
			}
			return
		}
		handler(c, message)
	}
}

// WritePump sends messages from the Send channel to the WebSocket
// connection and pings periodically to keep it alive. It is intended to be
// run in a per-client goroutine; it exits when the client is unregistered.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.Done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
