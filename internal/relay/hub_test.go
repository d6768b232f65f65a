// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package relay

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/models"
)

// startHub runs the hub under a cancelable context and returns it.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("hub did not stop on context cancel")
		}
	})
	return hub
}

// testClient builds a channel-only client; the connection pumps are not
// started, so tests interact with the send channel directly.
func testClient(hub *Hub, userID, boardID string, buffer int) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		send:    make(chan Envelope, buffer),
		userID:  userID,
		boardID: boardID,
		name:    userID,
	}
}

func registerAndDrainState(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.Register <- c
	select {
	case env := <-c.send:
		if env.Type != MessageTypePresenceState {
			t.Fatalf("first message to joiner = %q, want presence_state", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("joiner never received presence snapshot")
	}
}

func recvType(t *testing.T, c *Client, want string) Envelope {
	t.Helper()
	for {
		select {
		case env := <-c.send:
			if env.Type == want {
				return env
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.send:
		t.Fatalf("unexpected message %q", env.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFanOutExcludesOriginAndOtherBoards(t *testing.T) {
	hub := startHub(t)

	alice := testClient(hub, "alice", "board-1", 16)
	bob := testClient(hub, "bob", "board-1", 16)
	carol := testClient(hub, "carol", "board-2", 16)

	registerAndDrainState(t, hub, alice)
	registerAndDrainState(t, hub, bob)
	registerAndDrainState(t, hub, carol)

	// Alice sees Bob join; drain it so the cursor assertion is clean.
	recvType(t, alice, MessageTypePresenceUpdate)

	env := NewEnvelope(MessageTypeCursorMove, CursorPayload{
		UserID: "alice",
		Cursor: models.Position{X: 5, Y: 6},
	})
	hub.inbound <- inbound{origin: alice, env: env}

	got := recvType(t, bob, MessageTypeCursorMove)
	var payload CursorPayload
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Cursor.X != 5 || payload.Cursor.Y != 6 {
		t.Errorf("cursor = %+v, want (5, 6)", payload.Cursor)
	}

	assertSilent(t, alice) // no echo to origin
	assertSilent(t, carol) // no cross-board leakage
}

func TestUnregisterBroadcastsOffline(t *testing.T) {
	hub := startHub(t)

	alice := testClient(hub, "alice", "board-1", 16)
	bob := testClient(hub, "bob", "board-1", 16)
	registerAndDrainState(t, hub, alice)
	registerAndDrainState(t, hub, bob)
	recvType(t, alice, MessageTypePresenceUpdate) // bob joined

	hub.Unregister <- bob

	got := recvType(t, alice, MessageTypePresenceUpdate)
	var p models.Presence
	if err := json.Unmarshal(got.Payload, &p); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if p.UserID != "bob" || p.IsOnline {
		t.Errorf("offline update = %+v, want bob offline", p)
	}

	if n := hub.GroupSize("board-1"); n != 1 {
		t.Errorf("group size = %d, want 1", n)
	}
}

func TestInertClientWithoutIdentity(t *testing.T) {
	hub := startHub(t)

	ghost := testClient(hub, "", "", 16)
	hub.Register <- ghost

	alice := testClient(hub, "alice", "board-1", 16)
	registerAndDrainState(t, hub, alice)

	// The inert client's messages go nowhere.
	hub.inbound <- inbound{origin: ghost, env: NewEnvelope(MessageTypeCursorMove, CursorPayload{UserID: "ghost"})}
	assertSilent(t, alice)
	assertSilent(t, ghost)

	if n := hub.GroupSize("board-1"); n != 1 {
		t.Errorf("group size = %d, want 1", n)
	}
	if n := hub.ClientCount(); n != 2 {
		t.Errorf("client count = %d, want 2 (one inert)", n)
	}
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	hub := startHub(t)

	alice := testClient(hub, "alice", "board-1", 16)
	slow := testClient(hub, "slow", "board-1", 1)
	registerAndDrainState(t, hub, alice)

	hub.Register <- slow
	// Leave slow's presence snapshot in its single-slot queue so the next
	// delivery overflows it.
	recvType(t, alice, MessageTypePresenceUpdate)

	hub.inbound <- inbound{origin: alice, env: NewEnvelope(MessageTypeUserActivity, ActivityPayload{UserID: "alice"})}

	deadline := time.Now().Add(2 * time.Second)
	for hub.GroupSize("board-1") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("slow consumer was not evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The survivor is told the evicted member went offline.
	got := recvType(t, alice, MessageTypePresenceUpdate)
	var p models.Presence
	if err := json.Unmarshal(got.Payload, &p); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if p.UserID != "slow" || p.IsOnline {
		t.Errorf("eviction update = %+v, want slow offline", p)
	}
}

func TestHeartbeatIsNotFannedOut(t *testing.T) {
	hub := startHub(t)

	alice := testClient(hub, "alice", "board-1", 16)
	bob := testClient(hub, "bob", "board-1", 16)
	registerAndDrainState(t, hub, alice)
	registerAndDrainState(t, hub, bob)
	recvType(t, alice, MessageTypePresenceUpdate)

	hub.inbound <- inbound{origin: alice, env: Envelope{Type: MessageTypeHeartbeat}}
	assertSilent(t, bob)
}

func TestEntityChangedReachesWholeGroup(t *testing.T) {
	hub := startHub(t)

	alice := testClient(hub, "alice", "board-1", 16)
	bob := testClient(hub, "bob", "board-1", 16)
	registerAndDrainState(t, hub, alice)
	registerAndDrainState(t, hub, bob)
	recvType(t, alice, MessageTypePresenceUpdate)

	hub.BroadcastEntityChanged(events.EntityChanged{
		BoardID: "board-1", Entity: "card", EntityID: "card-9",
		Action: events.ActionUpdated, ActorID: "alice", Version: 3,
	})

	for _, c := range []*Client{alice, bob} {
		got := recvType(t, c, MessageTypeEntityChanged)
		var ev events.EntityChanged
		if err := json.Unmarshal(got.Payload, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.EntityID != "card-9" || ev.Version != 3 {
			t.Errorf("event = %+v", ev)
		}
	}
}

func TestPresenceSnapshotOnJoin(t *testing.T) {
	hub := startHub(t)

	alice := testClient(hub, "alice", "board-1", 16)
	registerAndDrainState(t, hub, alice)

	bob := testClient(hub, "bob", "board-1", 16)
	hub.Register <- bob

	got := recvType(t, bob, MessageTypePresenceState)
	var state PresenceStatePayload
	if err := json.Unmarshal(got.Payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if len(state.Users) != 2 {
		t.Fatalf("snapshot users = %d, want 2", len(state.Users))
	}
	if state.Users[0].UserID != "alice" || state.Users[1].UserID != "bob" {
		t.Errorf("snapshot order = %s, %s", state.Users[0].UserID, state.Users[1].UserID)
	}
}
