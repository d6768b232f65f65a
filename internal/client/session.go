// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package client

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/models"
	"github.com/tomtom215/fableboard/internal/relay"
)

// SessionState is the lifecycle state of the relay session.
type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionOpen
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionOpen:
		return "open"
	case SessionClosing:
		return "closing"
	default:
		return "closed"
	}
}

// SessionConfig configures a relay session.
type SessionConfig struct {
	// ServerURL is the base ws:// or wss:// URL of the server.
	ServerURL string
	// Token is the bearer token, sent as a query parameter since browsers
	// cannot set headers on WebSocket requests.
	Token   string
	BoardID string
	UserID  string
	Name    string

	// ReconnectDelay is the fixed pause between reconnect attempts.
	ReconnectDelay time.Duration
	// HeartbeatInterval paces liveness heartbeats while open.
	HeartbeatInterval time.Duration

	// OnMessage receives every envelope from the server. May be nil.
	OnMessage func(relay.Envelope)
}

// RelaySession keeps one board's relay connection alive: it dials,
// announces presence, heartbeats, and redials with a fixed backoff for as
// long as its context lives. Messages are ephemeral; nothing missed while
// disconnected is recovered here (entity state comes from the REST API).
type RelaySession struct {
	cfg   SessionConfig
	state atomic.Int32

	// connMu guards conn; gorilla connections allow one writer at a time
	// and the heartbeat ticker competes with SendCursor/SendActivity.
	connMu sync.Mutex
	conn   *websocket.Conn
}

// ErrSessionNotOpen is returned when sending while disconnected. Relay
// traffic is ephemeral, so callers normally just drop the message.
var ErrSessionNotOpen = errors.New("relay session is not open")

// NewRelaySession creates a session. Run starts it.
func NewRelaySession(cfg SessionConfig) *RelaySession {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	s := &RelaySession{cfg: cfg}
	s.state.Store(int32(SessionConnecting))
	return s
}

// State returns the session's current lifecycle state.
func (s *RelaySession) State() SessionState {
	return SessionState(s.state.Load())
}

// Run dials and serves the session until ctx is canceled, reconnecting
// after the fixed delay on any failure. Always returns ctx.Err().
func (s *RelaySession) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.state.Store(int32(SessionClosed))
			return ctx.Err()
		}

		s.state.Store(int32(SessionConnecting))
		conn, err := s.dial(ctx)
		if err != nil {
			logging.Warn().Err(err).Str("board_id", s.cfg.BoardID).Msg("Relay dial failed, will retry")
			if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
				s.state.Store(int32(SessionClosed))
				return ctx.Err()
			}
			continue
		}

		s.state.Store(int32(SessionOpen))
		s.serve(ctx, conn)

		if ctx.Err() != nil {
			s.state.Store(int32(SessionClosed))
			return ctx.Err()
		}
		if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
			s.state.Store(int32(SessionClosed))
			return ctx.Err()
		}
	}
}

func (s *RelaySession) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/api/v1/ws"
	q := u.Query()
	q.Set("token", s.cfg.Token)
	q.Set("boardId", s.cfg.BoardID)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// serve runs one connection to completion: announce presence, heartbeat,
// and pump inbound messages to the callback. Returns when the connection
// dies or ctx is canceled.
func (s *RelaySession) serve(ctx context.Context, conn *websocket.Conn) {
	s.setConn(conn)
	defer func() {
		s.setConn(nil)
		_ = conn.Close()
	}()

	// The room learns about us immediately rather than on first movement.
	announcement := relay.NewEnvelope(relay.MessageTypePresenceUpdate, models.Presence{
		UserID:   s.cfg.UserID,
		BoardID:  s.cfg.BoardID,
		Name:     s.cfg.Name,
		IsOnline: true,
		LastSeen: time.Now().UTC(),
	})
	if err := s.writeEnvelope(announcement); err != nil {
		logging.Warn().Err(err).Msg("Failed to announce presence")
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var env relay.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if s.cfg.OnMessage != nil {
				s.cfg.OnMessage(env)
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.state.Store(int32(SessionClosing))
			s.connMu.Lock()
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.connMu.Unlock()
			<-done
			return

		case <-done:
			return

		case <-ticker.C:
			hb := relay.NewEnvelope(relay.MessageTypeHeartbeat, nil)
			if err := s.writeEnvelope(hb); err != nil {
				return
			}
		}
	}
}

func (s *RelaySession) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *RelaySession) writeEnvelope(env relay.Envelope) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrSessionNotOpen
	}
	return s.conn.WriteJSON(env)
}

// SendCursor publishes the local cursor position to the board group.
func (s *RelaySession) SendCursor(x, y float64) error {
	return s.writeEnvelope(relay.NewEnvelope(relay.MessageTypeCursorMove, relay.CursorPayload{
		UserID: s.cfg.UserID,
		Cursor: models.Position{X: x, Y: y},
	}))
}

// SendActivity publishes which card the local user is focused on.
func (s *RelaySession) SendActivity(currentCard string) error {
	return s.writeEnvelope(relay.NewEnvelope(relay.MessageTypeUserActivity, relay.ActivityPayload{
		UserID:      s.cfg.UserID,
		CurrentCard: currentCard,
	}))
}

// sleepCtx pauses for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
