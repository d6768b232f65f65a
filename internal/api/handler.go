// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package api exposes the REST surface and the WebSocket upgrade endpoint.
// Handlers enforce board access with the permission gate, delegate all
// durable state to the store, and answer in a uniform response envelope.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fableboard/internal/access"
	"github.com/tomtom215/fableboard/internal/auth"
	"github.com/tomtom215/fableboard/internal/models"
	"github.com/tomtom215/fableboard/internal/relay"
	"github.com/tomtom215/fableboard/internal/store"
)

// Handler carries the dependencies shared by all endpoints.
type Handler struct {
	store    *store.Store
	hub      *relay.Hub
	upgrader websocket.Upgrader
}

// NewHandler creates the API handler. allowedOrigins governs WebSocket
// upgrade origin checks and mirrors the HTTP CORS configuration.
func NewHandler(st *store.Store, hub *relay.Hub, allowedOrigins []string) *Handler {
	return &Handler{
		store:    st,
		hub:      hub,
		upgrader: newUpgrader(allowedOrigins),
	}
}

// Health reports liveness and store connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondData(w, code, map[string]interface{}{
		"status":  status,
		"clients": h.hub.ClientCount(),
	}, start)
}

// identity returns the verified caller, responding 401 when absent. The
// auth middleware guarantees presence on protected routes; this guards
// against wiring mistakes.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return nil, false
	}
	return id, true
}

// boardForRead loads the board and enforces read access.
func (h *Handler) boardForRead(w http.ResponseWriter, r *http.Request, boardID string) (*models.Board, *auth.Identity, bool) {
	id, ok := h.identity(w, r)
	if !ok {
		return nil, nil, false
	}
	board, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return nil, nil, false
	}
	if !access.CanRead(board, id.UserID) {
		respondForbidden(w)
		return nil, nil, false
	}
	return board, id, true
}

// boardForWrite loads the board and enforces mutation access.
func (h *Handler) boardForWrite(w http.ResponseWriter, r *http.Request, boardID string) (*models.Board, *auth.Identity, bool) {
	id, ok := h.identity(w, r)
	if !ok {
		return nil, nil, false
	}
	board, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return nil, nil, false
	}
	if !access.CanWrite(board, id.UserID) {
		respondForbidden(w)
		return nil, nil, false
	}
	return board, id, true
}
