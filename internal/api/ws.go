// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package api

import (
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fableboard/internal/access"
	"github.com/tomtom215/fableboard/internal/auth"
	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/relay"
)

// newUpgrader builds a WebSocket upgrader honoring the configured CORS
// origins. A "*" entry admits every origin.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin header.
				return true
			}
			if allowAll {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			// Same-origin requests are always fine.
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// ServeWS upgrades the request to a WebSocket and hands the connection to
// the relay hub. Access is checked before the upgrade: a caller who cannot
// read the requested board never gets a socket. A connection without a
// boardId query parameter is accepted but stays inert.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	boardID := r.URL.Query().Get("boardId")
	if boardID != "" {
		board, err := h.store.GetBoard(r.Context(), boardID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if !access.CanRead(board, id.UserID) {
			respondForbidden(w)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		logging.Warn().Err(err).Str("board_id", sanitizeLogValue(boardID)).Msg("WebSocket upgrade failed")
		return
	}

	client := relay.NewClient(h.hub, conn, id.UserID, boardID, id.Name)
	h.hub.Register <- client
	client.Start()
}
