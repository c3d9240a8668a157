package devtools

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reva-ui/reva/pkg/reva"
)

const (
	writeTimeout = 10 * time.Second

	// clientBuffer bounds the per-client outbox. A client that cannot keep
	// up with the event rate is dropped rather than backpressuring the
	// reactive core.
	clientBuffer = 256
)

// event is one core instrumentation event on the wire.
type event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"ts"`

	Kind      string  `json:"kind,omitempty"`
	DepID     uint64  `json:"dep_id,omitempty"`
	Key       string  `json:"key,omitempty"`
	Fanout    int     `json:"fanout,omitempty"`
	WatcherID uint64  `json:"watcher_id,omitempty"`
	Lazy      bool    `json:"lazy,omitempty"`
	Failed    bool    `json:"failed,omitempty"`
	Watchers  int     `json:"watchers,omitempty"`
	Seconds   float64 `json:"seconds,omitempty"`
}

// client is one connected WebSocket consumer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan event
}

// hub fans core events out to WebSocket clients. Hook callbacks run on the
// mutating goroutine, so delivery is a non-blocking channel send; slow
// clients lose events and are eventually dropped, the core never waits.
type hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger.With("component", "devtools-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The devtools surface is bound to localhost in any sane
			// deployment; origin checks stay with the embedding app.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// hooks builds the core hook set feeding this hub.
func (h *hub) hooks() *reva.Hooks {
	return &reva.Hooks{
		ObserverInstalled: func(kind string) {
			h.broadcast(event{Type: "observer_installed", Kind: kind})
		},
		CellWrite: func(depID uint64, key string) {
			h.broadcast(event{Type: "cell_write", DepID: depID, Key: key})
		},
		DepNotify: func(depID uint64, fanout int) {
			h.broadcast(event{Type: "dep_notify", DepID: depID, Fanout: fanout})
		},
		WatcherCreated: func(id uint64, lazy bool) {
			h.broadcast(event{Type: "watcher_created", WatcherID: id, Lazy: lazy})
		},
		WatcherTorndown: func(id uint64) {
			h.broadcast(event{Type: "watcher_torndown", WatcherID: id})
		},
		WatcherRun: func(id uint64, d time.Duration, failed bool) {
			h.broadcast(event{Type: "watcher_run", WatcherID: id, Failed: failed, Seconds: d.Seconds()})
		},
		SchedulerFlush: func(n int, d time.Duration) {
			h.broadcast(event{Type: "scheduler_flush", Watchers: n, Seconds: d.Seconds()})
		},
	}
}

func (h *hub) broadcast(ev event) {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	ev.Timestamp = time.Now()
	for _, c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Outbox full; the write loop notices the backlog and the
			// client reconnects with a fresh snapshot.
		}
	}
	h.mu.RUnlock()
}

// serveWS upgrades the request and streams events until the client
// disconnects.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "devtools closed", http.StatusGone)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan event, clientBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", "client_id", c.id)

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *hub) writeLoop(c *client) {
	defer h.drop(c)

	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.logger.Debug("write failed", "client_id", c.id, "error", err)
			return
		}
	}
}

// readLoop drains the connection so close frames and pings are processed;
// the stream is one-directional.
func (h *hub) readLoop(c *client) {
	defer h.drop(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.logger.Debug("read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

func (h *hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}
