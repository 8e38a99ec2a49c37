package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	appLog "reccal/internal/log"
	"reccal/internal/store"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 4096
)

// Hub fans store changes out to websocket clients. A client whose buffer
// is full is dropped rather than blocking the store.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: map[*client]struct{}{}}
}

func (h *Hub) register() *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &client{send: make(chan []byte, sendBuffer)}
	if h.closed {
		close(c.send)
		return c
	}
	h.clients[c] = struct{}{}
	appLog.Debug("websocket client connected", "clients", len(h.clients))
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		appLog.Debug("websocket client disconnected", "clients", len(h.clients))
	}
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			appLog.Warn("websocket client too slow; dropped")
		}
	}
}

// BroadcastChange is the store.OnChange observer.
func (h *Hub) BroadcastChange(c store.Change) {
	msg, err := json.Marshal(c)
	if err != nil {
		appLog.Error("websocket change encode failed", err, "event_id", c.Event.ID)
		return
	}
	h.Broadcast(msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (s *Server) upgrader() websocket.Upgrader {
	allowed := map[string]bool{}
	for _, o := range s.cfg.CORSOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			// Same-origin requests are always fine.
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
}

// handleWebsocket streams store changes as JSON text frames. Client
// messages are read only to service pongs and detect disconnects.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		appLog.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := s.hub.register()
	go writePump(conn, c)
	go readPump(conn, c, s.hub)
}

func writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(conn *websocket.Conn, c *client, h *Hub) {
	defer func() {
		h.unregister(c)
		conn.Close()
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				appLog.Warn("websocket read failed", "err", err)
			}
			return
		}
	}
}
