package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ravi-parthasarathy/artiffex/pkg/executor"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// snapshotMessage is the first message on every feed connection.
type snapshotMessage struct {
	Type string `json:"type"`
	graphView
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans runner events out to websocket clients. A client that cannot
// keep up loses events rather than blocking the runner.
type hub struct {
	logger   *slog.Logger
	snapshot func() graphView

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub(logger *slog.Logger, snapshot func() graphView) *hub {
	return &hub{logger: logger, snapshot: snapshot, clients: make(map[*client]struct{})}
}

func (s *Server) snapshot() graphView { return s.graphView() }

func (h *hub) publish(ev executor.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "err", err)
		return
	}
	h.broadcast(data)
}

func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("event feed client too slow; dropping event", "remote", c.conn.RemoteAddr().String())
		}
	}
}

// add registers c with the snapshot as its first queued message. Holding mu
// keeps any broadcast from landing ahead of it.
func (h *hub) add(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap, err := json.Marshal(snapshotMessage{Type: "snapshot", graphView: h.snapshot()})
	if err != nil {
		return err
	}
	c.send <- snap
	h.clients[c] = struct{}{}
	return nil
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// serve upgrades the request and streams events until the client goes away.
func (h *hub) serve(gc *gin.Context) {
	conn, err := upgrader.Upgrade(gc.Writer, gc.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	if err := h.add(c); err != nil {
		h.logger.Error("encode snapshot", "err", err)
		conn.Close()
		return
	}
	h.logger.Info("event feed connected", "remote", conn.RemoteAddr().String())

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages and detects disconnects.
func (h *hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Info("event feed disconnected", "remote", c.conn.RemoteAddr().String())
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writeLoop(c *client) {
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
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
