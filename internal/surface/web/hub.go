package web

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

const (
	MessageShow    = "show"
	MessageRemove  = "remove"
	MessageDismiss = "dismiss"
	MessagePing    = "ping"
	// MessageSync carries the whole container; the page replaces its own.
	MessageSync = "sync"
)

// Message is the JSON frame exchanged with connected pages.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	HTML string `json:"html,omitempty"`
}

const (
	sendBuffer   = 64
	pingInterval = 50 * time.Second
	writeWait    = 10 * time.Second
	maxFrame     = 4 << 10
)

var upgrader = websocket.Upgrader{
	// Pages are served by this process; the listener defaults to loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// Hub fans messages out to every connected page. All client bookkeeping
// happens on the Run goroutine.
type Hub struct {
	log       logx.Logger
	dismisser toast.Dismisser
	// state renders the sync frame sent first to every new page.
	state func() Message

	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client

	done    chan struct{}
	seq     atomic.Uint64
	running atomic.Bool
	count   atomic.Int64
}

func NewHub(d toast.Dismisser, log logx.Logger) *Hub {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Hub{
		log:        log,
		dismisser:  d,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Running() bool { return h.running.Load() }

// Clients returns the number of connected pages.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Run serves register/unregister/broadcast until ctx is done, then closes
// every client. A Hub runs once.
func (h *Hub) Run(ctx context.Context) error {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return nil

		case c := <-h.register:
			// Everything queued so far is part of the state. Later
			// broadcasts may repeat it; the page ignores a show for an ID
			// it already has.
			h.flush()
			if h.state != nil {
				c.send <- h.state()
			}
			h.clients[c] = true
			h.count.Add(1)
			h.log.Debug("page connected", logx.String("client", c.id))

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.log.Debug("page disconnected", logx.String("client", c.id))
			}

		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

func (h *Hub) deliver(m Message) {
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			h.log.Warn("page too slow; disconnecting", logx.String("client", c.id))
			h.drop(c)
		}
	}
}

// flush delivers the broadcasts already queued.
func (h *Hub) flush() {
	for {
		select {
		case m := <-h.broadcast:
			h.deliver(m)
		default:
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	h.count.Add(-1)
	close(c.send)
}

// publish never blocks; a full backlog drops the message.
func (h *Hub) publish(m Message) bool {
	select {
	case h.broadcast <- m:
		return true
	default:
		h.log.Warn("page broadcast backlog full; message dropped", logx.String("type", m.Type), logx.String("id", m.ID))
		return false
	}
}

// serveWS upgrades the request and starts the client pumps.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	if !h.running.Load() {
		http.Error(w, "toast hub not running", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logx.Err(err))
		return
	}
	c := &client{
		id:   "page-" + strconv.FormatUint(h.seq.Add(1), 10),
		hub:  h,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				c.hub.log.Debug("page write failed", logx.String("client", c.id), logx.Err(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(Message{Type: MessagePing}); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrame)
	for {
		var m Message
		if err := c.conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("page read failed", logx.String("client", c.id), logx.Err(err))
			}
			return
		}
		switch m.Type {
		case MessageDismiss:
			if c.hub.dismisser != nil && m.ID != "" {
				c.hub.dismisser.Dismiss(toast.ID(m.ID))
			}
		case MessagePing:
		default:
			c.hub.log.Debug("unknown page message", logx.String("client", c.id), logx.String("type", m.Type))
		}
	}
}
