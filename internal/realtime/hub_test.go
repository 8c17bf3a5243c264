package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"waterwise/internal/core"
	"waterwise/internal/ledger"
	applog "waterwise/internal/log"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesEveryClient(t *testing.T) {
	hub := NewHub(applog.Discard())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a, b := dial(t, srv), dial(t, srv)
	waitForClients(t, hub, 2)

	e := core.NewIntakeEvent(250, "08:00 AM", "2024-06-01")
	hub.Publish(ledger.Change{Kind: ledger.ChangeIntakeAdded, Date: "2024-06-01", IntakeTotal: 250, Event: &e})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var got ledger.Change
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatal(err)
		}
		if got.Kind != ledger.ChangeIntakeAdded || got.IntakeTotal != 250 || got.Event == nil || got.Event.ID != e.ID {
			t.Fatalf("unexpected change: %+v", got)
		}
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(applog.Discard())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(applog.Discard())
	hub.Broadcast([]byte(`{}`))
	if hub.Clients() != 0 {
		t.Fatal("expected no clients")
	}
}
