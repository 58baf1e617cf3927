// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from a different origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ActivityEvent is one entry on the live activity feed: an entity was
// created, a chapter saved, an extraction finished.
type ActivityEvent struct {
	Type      string    `json:"type"`
	StoryID   int       `json:"story_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type activityClient struct {
	conn     *websocket.Conn
	send     chan []byte
	closed   bool
	closeMu  sync.Mutex
	lastPong time.Time
}

func (c *activityClient) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
		c.conn.Close()
	}
}

// ActivityHub fans activity events out to every connected client.
type ActivityHub struct {
	clients    map[*activityClient]struct{}
	register   chan *activityClient
	unregister chan *activityClient
	broadcast  chan []byte
}

// NewActivityHub creates the hub and starts its event loop.
func NewActivityHub() *ActivityHub {
	hub := &ActivityHub{
		clients:    make(map[*activityClient]struct{}),
		register:   make(chan *activityClient),
		unregister: make(chan *activityClient),
		broadcast:  make(chan []byte, 64),
	}
	go hub.run()
	return hub
}

func (h *ActivityHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the hub.
					delete(h.clients, client)
					client.close()
				}
			}
		}
	}
}

// Publish queues one event for every connected client. Never blocks; the
// event is dropped if the hub is saturated.
func (h *ActivityHub) Publish(eventType string, storyID int, message string) {
	event := ActivityEvent{
		Type:      eventType,
		StoryID:   storyID,
		Message:   message,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// HandleActivityWS upgrades the connection and streams the activity feed.
func (h *ActivityHub) HandleActivityWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := &activityClient{
		conn:     conn,
		send:     make(chan []byte, 16),
		lastPong: time.Now(),
	}
	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *ActivityHub) writePump(client *activityClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.unregister <- client
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister <- client
				return
			}
		}
	}
}

func (h *ActivityHub) readPump(client *activityClient) {
	defer func() {
		h.unregister <- client
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.lastPong = time.Now()
		client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		// The feed is one-way; incoming frames are drained and ignored.
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
