package statushub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"m17/pkg/logger"
)

func testLogger() *logger.Logger { return logger.New(logger.Config{Level: "info"}) }

func TestNew(t *testing.T) {
	if New(testLogger()) == nil {
		t.Fatal("New returned nil")
	}
}

func TestBroadcastWithNoClientsDoesNotPanic(t *testing.T) {
	hub := New(testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	hub.BroadcastStreamStarted("N0CALL", "*")
	hub.BroadcastPacket("N0CALL", "*", 1, 10)
	hub.BroadcastReflectorStatus(true, "")
	time.Sleep(20 * time.Millisecond)
}

func TestHandlerDeliversBroadcastToSubscriber(t *testing.T) {
	hub := New(testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the hub time to register the client before broadcasting.
	time.Sleep(50 * time.Millisecond)
	hub.BroadcastStreamStarted("N0CALL", "M17-NET")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if !strings.Contains(string(msg), "stream_started") {
		t.Errorf("expected stream_started in message, got %s", msg)
	}
	if !strings.Contains(string(msg), "N0CALL") {
		t.Errorf("expected source in message, got %s", msg)
	}
}

func TestClientCountTracksSubscribers(t *testing.T) {
	hub := New(testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}
	conn.Close()
}
