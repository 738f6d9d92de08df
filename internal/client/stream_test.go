package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer accepts auth and hands every later message to respond.
func scriptedServer(t *testing.T, respond func(conn *websocket.Conn, msg wireMessage)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg wireMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "auth" {
				_ = conn.WriteJSON(wireMessage{Type: "auth_success", Timestamp: time.Now()})
				continue
			}
			respond(conn, msg)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamRefreshErrorLeavesSubscribePending(t *testing.T) {
	url := scriptedServer(t, func(conn *websocket.Conn, msg wireMessage) {
		if msg.Type != "subscribe" {
			return
		}
		_ = conn.WriteJSON(wireMessage{Type: "error", SystemID: msg.SystemID, Request: "refresh", Message: "metrics unavailable"})
		time.Sleep(20 * time.Millisecond)
		_ = conn.WriteJSON(wireMessage{Type: "subscribed", SystemID: msg.SystemID})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := Dial(ctx, url, "tok", nil)
	require.NoError(t, err)
	defer stream.Close()

	assert.NoError(t, stream.Subscribe(ctx, "srv-1"))
}

func TestStreamSubscribeErrorResolvesOnlySubscribe(t *testing.T) {
	url := scriptedServer(t, func(conn *websocket.Conn, msg wireMessage) {
		switch msg.Type {
		case "subscribe":
			_ = conn.WriteJSON(wireMessage{Type: "error", SystemID: msg.SystemID, Request: "subscribe", Message: "access denied"})
		case "unsubscribe":
			_ = conn.WriteJSON(wireMessage{Type: "unsubscribed", SystemID: msg.SystemID})
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := Dial(ctx, url, "tok", nil)
	require.NoError(t, err)
	defer stream.Close()

	err = stream.Subscribe(ctx, "srv-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	assert.NoError(t, stream.Unsubscribe(ctx, "srv-2"))
}
