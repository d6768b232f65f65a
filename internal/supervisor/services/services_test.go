// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/fableboard/internal/events"
)

// fakeHTTPServer blocks in ListenAndServe until Shutdown or a scripted
// failure.
type fakeHTTPServer struct {
	failWith error
	started  chan struct{}
	stop     chan struct{}
	shutdown atomic.Bool
}

func newFakeHTTPServer(failWith error) *fakeHTTPServer {
	return &fakeHTTPServer{
		failWith: failWith,
		started:  make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	close(f.started)
	if f.failWith != nil {
		return f.failWith
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(_ context.Context) error {
	f.shutdown.Store(true)
	close(f.stop)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newFakeHTTPServer(nil)
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if !server.shutdown.Load() {
		t.Error("Shutdown was never called")
	}
}

func TestHTTPServerServiceSurfacesStartupFailure(t *testing.T) {
	boom := errors.New("bind: address already in use")
	svc := NewHTTPServerService(newFakeHTTPServer(boom), time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, boom) {
		t.Errorf("Serve returned %v, want wrapped %v", err, boom)
	}
}

type fakeSweeper struct {
	calls   atomic.Int64
	removed int64
	err     error
}

func (f *fakeSweeper) Sweep(_ context.Context) (int64, error) {
	f.calls.Add(1)
	return f.removed, f.err
}

func TestSweeperServiceRunsImmediatelyAndOnTicks(t *testing.T) {
	sweeper := &fakeSweeper{removed: 3}
	svc := NewSweeperService(sweeper, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v, want deadline exceeded", err)
	}

	// One immediate pass plus at least two ticks.
	if n := sweeper.calls.Load(); n < 3 {
		t.Errorf("sweep ran %d times, want at least 3", n)
	}
}

func TestSweeperServiceSurvivesSweepErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("table locked")}
	svc := NewSweeperService(sweeper, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v, want deadline exceeded", err)
	}
	if sweeper.calls.Load() < 2 {
		t.Error("sweeper stopped retrying after an error")
	}
}

type fakePump struct {
	received chan events.EntityChanged
}

func (f *fakePump) PumpEvents(ctx context.Context, changes <-chan events.EntityChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			f.received <- ev
		}
	}
}

func TestEventPumpServiceForwardsChanges(t *testing.T) {
	bus := events.NewBus(16)
	t.Cleanup(func() { _ = bus.Close() })

	pump := &fakePump{received: make(chan events.EntityChanged, 1)}
	svc := NewEventPumpService(bus, pump)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give the subscription a moment to attach.
	time.Sleep(20 * time.Millisecond)

	want := events.EntityChanged{BoardID: "b1", Entity: "card", EntityID: "c1", Action: events.ActionUpdated}
	if err := bus.Publish(context.Background(), want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-pump.received:
		if got.BoardID != want.BoardID || got.EntityID != want.EntityID {
			t.Errorf("pumped event = %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("entity change never reached the pump")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
