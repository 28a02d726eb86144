package handlers

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/zeladoria/zela/internal/event"
)

func TestEventsStreamDeliversTurns(t *testing.T) {
	hub := event.NewHub()
	handler := NewEventsHandler(slog.Default(), hub)
	e := echo.New()
	handler.Register(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscription races the dial; give the handler a beat to register.
	deadline := time.Now().Add(2 * time.Second)
	var got event.TurnEvent
	for {
		hub.Publish(event.TurnEvent{SenderID: "s1", Kind: "text", Reply: "ola"})
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.ReadJSON(&got); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no event received before deadline")
		}
	}

	if got.SenderID != "s1" || got.Kind != "text" || got.Reply != "ola" {
		t.Errorf("event = %+v", got)
	}
	if got.ID == "" || got.At.IsZero() {
		t.Errorf("hub must stamp ID and timestamp: %+v", got)
	}
}
