// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package events

import (
	"context"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	want := EntityChanged{
		BoardID:  "board-1",
		Entity:   "card",
		EntityID: "card-1",
		Action:   ActionUpdated,
		ActorID:  "user-1",
		Version:  4,
	}
	if err := bus.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-sub:
		if got != want {
			t.Errorf("received %+v, want %+v", got, want)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestBusMultipleSubscribersEachReceive(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subA, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe A: %v", err)
	}
	subB, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe B: %v", err)
	}

	ev := EntityChanged{BoardID: "b", Entity: "comment", EntityID: "c", Action: ActionCreated}
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for name, sub := range map[string]<-chan EntityChanged{"A": subA, "B": subB} {
		select {
		case got := <-sub:
			if got.EntityID != "c" {
				t.Errorf("subscriber %s got %+v", name, got)
			}
		case <-ctx.Done():
			t.Fatalf("subscriber %s timed out", name)
		}
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(1)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Publish(context.Background(), EntityChanged{}); err == nil {
		t.Fatal("expected error publishing on closed bus")
	}
	// Close is idempotent.
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
