package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS layer owns origin policy
	},
}

// WebSocketHandler serves session-watch connections. Clients subscribe to a
// session and receive re-fetch signals whenever its state changes; payload
// data always comes from the HTTP API.
type WebSocketHandler struct {
	hub *Hub
}

func NewWebSocketHandler() *WebSocketHandler {
	hub := NewHub()
	go hub.Run()
	return &WebSocketHandler{hub: hub}
}

// Hub maintains active connections grouped by watched session.
type Hub struct {
	// Map of sessionId -> map of connectionId -> connection
	sessions map[string]map[string]*Client
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
}

type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	sessionID    string
	connectionID string
	send         chan []byte
}

type BroadcastMessage struct {
	SessionID string
	Message   []byte
}

type WSMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.sessions[client.sessionID] == nil {
				h.sessions[client.sessionID] = make(map[string]*Client)
			}
			h.sessions[client.sessionID][client.connectionID] = client
			h.mu.Unlock()
			log.Printf("Watcher connected: session=%s conn=%s", client.sessionID, client.connectionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if session, ok := h.sessions[client.sessionID]; ok {
				if _, ok := session[client.connectionID]; ok {
					delete(session, client.connectionID)
					close(client.send)
					if len(session) == 0 {
						delete(h.sessions, client.sessionID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Watcher disconnected: session=%s conn=%s", client.sessionID, client.connectionID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if session, ok := h.sessions[msg.SessionID]; ok {
				for connectionID, client := range session {
					select {
					case client.send <- msg.Message:
					default:
						close(client.send)
						delete(session, connectionID)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) BroadcastToSession(sessionID string, message []byte) {
	h.broadcast <- &BroadcastMessage{
		SessionID: sessionID,
		Message:   message,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["sessionId"]
	if sessionID == "" {
		http.Error(w, "Missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:          h.hub,
		conn:         conn,
		sessionID:    sessionID,
		connectionID: uuid.NewString(),
		send:         make(chan []byte, 256),
	}

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastSessionChanged pushes a re-fetch signal to all watchers of a session.
func (h *WebSocketHandler) BroadcastSessionChanged(sessionID string) {
	msg := WSMessage{
		Type:      "session_changed",
		SessionID: sessionID,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal session change: %v", err)
		return
	}
	h.hub.BroadcastToSession(sessionID, data)
}

// GetHub returns the hub for use by other handlers
func (h *WebSocketHandler) GetHub() *Hub {
	return h.hub
}
