package devtools

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reva-ui/reva/pkg/reva"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventStream(t *testing.T) {
	dt := New(&Config{})
	srv := httptest.NewServer(dt.Handler())
	defer srv.Close()
	defer dt.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Registration happens just after the handshake; give the handler a
	// moment before producing events.
	time.Sleep(100 * time.Millisecond)

	c := reva.New(reva.Options{Data: map[string]any{"x": 1}})
	c.Data().Set("x", 2)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("expected an event on the stream: %v", err)
	}
	if ev.Type == "" || ev.Timestamp.IsZero() {
		t.Errorf("malformed event %+v", ev)
	}
}

func TestHubDropsSlowClientEventsSilently(t *testing.T) {
	h := newHub(discardLogger())

	// No clients connected: broadcast must be a cheap no-op.
	h.broadcast(event{Type: "cell_write"})

	// A full outbox must not block the caller.
	c := &client{id: "test", send: make(chan event)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.broadcast(event{Type: "cell_write"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
