// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fableboard/internal/models"
)

type createConnectionRequest struct {
	ID         string                `json:"_id" validate:"required,uuid4"`
	FromCardID string                `json:"fromCardId" validate:"required"`
	ToCardID   string                `json:"toCardId" validate:"required"`
	Label      string                `json:"label"`
	Type       models.ConnectionType `json:"type" validate:"required,conntype"`
	Color      string                `json:"color"`
}

// ListConnections returns every connection on the board.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, _, ok := h.boardForRead(w, r, boardID)
	if !ok {
		return
	}

	conns, err := h.store.ListConnections(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, conns, start)
}

// CreateConnection adds a typed edge between two cards on the board.
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var req createConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	conn, err := h.store.CreateConnection(r.Context(), &models.Connection{
		ID:         req.ID,
		BoardID:    boardID,
		FromCardID: req.FromCardID,
		ToCardID:   req.ToCardID,
		Label:      req.Label,
		Type:       req.Type,
		Color:      req.Color,
		CreatedBy:  id.UserID,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, conn, start)
}

// UpdateConnection patches a connection last-write-wins.
func (h *Handler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	connID := chi.URLParam(r, "connectionID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var patch models.ConnectionPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&patch); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	existing, err := h.store.GetConnection(r.Context(), connID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if existing.BoardID != boardID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "connection not found", nil)
		return
	}

	conn, err := h.store.UpdateConnection(r.Context(), connID, &patch, id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, conn, start)
}

// DeleteConnection removes a connection.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	connID := chi.URLParam(r, "connectionID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	existing, err := h.store.GetConnection(r.Context(), connID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if existing.BoardID != boardID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "connection not found", nil)
		return
	}

	if err := h.store.DeleteConnection(r.Context(), connID, id.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"deleted": connID}, start)
}
