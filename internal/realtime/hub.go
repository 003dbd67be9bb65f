// Package realtime fans board events out to WebSocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/events"
	"github.com/michae-lzhou/Task-Board/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	defaultSendBuffer = 64
)

type Options struct {
	// AllowedOrigins is the CORS allow-list; "*" accepts any origin.
	AllowedOrigins []string
	// SendBuffer is the per-subscriber queue length.
	SendBuffer int
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub implements events.Dispatcher. Dispatch never blocks: a subscriber
// whose queue is full is disconnected.
type Hub struct {
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	sendBuffer int

	mu      sync.RWMutex
	clients map[*client]struct{}
}

var _ events.Dispatcher = (*Hub)(nil)

func NewHub(opts Options, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}

	h := &Hub{
		logger:     logger.Named("realtime"),
		sendBuffer: opts.SendBuffer,
		clients:    make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(opts.AllowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no Origin
		if origin == "" {
			return true
		}
		return utils.Contains(allowed, "*") || utils.Contains(allowed, origin)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Dispatch(_ context.Context, evs ...events.Event) {
	for _, ev := range evs {
		msg, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}
		h.broadcast(msg)
	}
}

func (h *Hub) broadcast(msg []byte) {
	var slow []*client

	// sends are non-blocking so the read lock is held throughout; channels
	// are only closed under the write lock
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("subscriber too slow, dropping", zap.String("client_id", c.id))
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("subscriber connected", zap.String("client_id", c.id), zap.Int("subscribers", n))
}

// unregister removes c and closes its queue, which stops its writer.
// Safe to call more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("subscriber disconnected", zap.String("client_id", c.id), zap.Int("subscribers", n))
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

// ServeWS upgrades the request and keeps the subscriber attached until
// either side goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}

	welcome, _ := json.Marshal(gin.H{
		"type":      "connected",
		"message":   "WebSocket connection established",
		"client_id": cl.id,
	})
	cl.send <- welcome

	h.register(cl)
	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Warn("failed to set read deadline", zap.String("client_id", c.id), zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		h.logger.Debug("message from subscriber ignored",
			zap.String("client_id", c.id),
			zap.Int("bytes", len(message)),
		)
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
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write failed", zap.String("client_id", c.id), zap.Error(err))
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("ping failed", zap.String("client_id", c.id), zap.Error(err))
				h.unregister(c)
				return
			}
		}
	}
}
