// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fableboard/internal/relay"
)

func TestRelaySessionAnnouncesPresenceOnOpen(t *testing.T) {
	received := make(chan relay.Envelope, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" || r.URL.Query().Get("boardId") != "b1" {
			t.Errorf("upgrade query = %s, want token and boardId", r.URL.RawQuery)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			var env relay.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			received <- env
		}
	}))
	defer srv.Close()

	session := NewRelaySession(SessionConfig{
		ServerURL:         strings.Replace(srv.URL, "http", "ws", 1),
		Token:             "tok",
		BoardID:           "b1",
		UserID:            "alice",
		Name:              "Alice",
		ReconnectDelay:    50 * time.Millisecond,
		HeartbeatInterval: 30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	select {
	case env := <-received:
		if env.Type != relay.MessageTypePresenceUpdate {
			t.Errorf("first message type = %s, want presence_update", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no presence announcement received")
	}

	// Heartbeats follow on the ticker.
	select {
	case env := <-received:
		if env.Type != relay.MessageTypeHeartbeat {
			t.Errorf("second message type = %s, want heartbeat", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}

	if session.State() != SessionOpen {
		t.Errorf("session state = %s, want open", session.State())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if session.State() != SessionClosed {
		t.Errorf("session state after Run = %s, want closed", session.State())
	}
}

func TestRelaySessionRetriesWhileServerIsDown(t *testing.T) {
	session := NewRelaySession(SessionConfig{
		ServerURL:      "ws://127.0.0.1:1",
		Token:          "tok",
		BoardID:        "b1",
		UserID:         "alice",
		ReconnectDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	err := session.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run returned %v, want deadline exceeded", err)
	}
	if session.State() != SessionClosed {
		t.Errorf("session state = %s, want closed", session.State())
	}
}
