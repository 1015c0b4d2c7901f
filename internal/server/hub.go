package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cpuguy83/agenda/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// message is a frame pushed to browsers.
type message struct {
	Type    string `json:"type"`
	Event   any    `json:"event,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Summary string `json:"summary,omitempty"`
	Body    string `json:"body,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to every connected WebSocket client.
// It implements notify.Sender so toasts reach the browsers.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    map[string][]byte
}

// NewHub creates a hub accepting connections from allowOrigins.
// An empty list accepts any origin.
func NewHub(allowOrigins []string) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		last:    make(map[string][]byte),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowOrigins),
	}
	return h
}

func originChecker(allow []string) func(*http.Request) bool {
	if len(allow) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allow {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Send implements notify.Sender.
func (h *Hub) Send(n notify.Notification) error {
	return h.broadcast(message{Type: "toast", Kind: n.Kind.String(), Summary: n.Summary, Body: truncate(n.Body, 280)}, false)
}

// PublishCurrent pushes the current meeting; ev is nil when none is in progress.
// The latest value is replayed to clients that connect later.
func (h *Hub) PublishCurrent(ev *eventDTO) error {
	msg := message{Type: "current"}
	if ev != nil {
		msg.Event = ev
	}
	return h.broadcast(msg, true)
}

// PublishSnapshot tells clients the agenda was reloaded.
func (h *Hub) PublishSnapshot(count int) error {
	return h.broadcast(message{Type: "snapshot", Body: strconv.Itoa(count)}, false)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg message, keep bool) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if keep {
		h.last[msg.Type] = data
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("dropping slow websocket client")
			h.remove(c)
		}
	}
	return nil
}

// remove unregisters c. h.mu must be held.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Handle upgrades the request and serves the client until it disconnects.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	for _, data := range h.last {
		cl.send <- data
	}
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Debug("websocket client connected", "clients", n)

	go h.writePump(cl)
	h.readPump(cl)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

// readPump discards incoming frames and keeps the connection alive until it fails.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		h.remove(c)
		h.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read failed", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ notify.Sender = (*Hub)(nil)
