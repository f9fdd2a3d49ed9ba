package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestServeWS_BroadcastsPublishedEvents(t *testing.T) {
	hub := New("")
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the server a moment to register the client before publishing.
	time.Sleep(50 * time.Millisecond)
	hub.Publish(Event{Type: EventRoomUpdated, RoomID: "room-1", Payload: map[string]string{"phase": "execution"}})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if got.Type != EventRoomUpdated || got.RoomID != "room-1" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestServeWS_RejectsWrongToken(t *testing.T) {
	hub := New("secret-token")
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer wrong")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong token, got %d", resp.StatusCode)
	}
}

func TestServeWS_AllowsCorrectToken(t *testing.T) {
	hub := New("secret-token")
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer secret-token"}},
	})
	if err != nil {
		t.Fatalf("expected dial to succeed with correct token: %v", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestPublish_DropsSlowClientsWithoutBlocking(t *testing.T) {
	hub := New("")
	c := &client{send: make(chan []byte, 1)}
	hub.register(c)
	defer hub.unregister(c)

	// Fill the buffer, then publish again — must not block.
	done := make(chan struct{})
	go func() {
		hub.Publish(Event{Type: EventFeedUpdated})
		hub.Publish(Event{Type: EventFeedUpdated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow client")
	}
}
