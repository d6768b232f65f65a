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

// createCardRequest is the payload for card creation. The ID is
// client-generated so retries are idempotent; the version always starts
// at 1 server-side regardless of what the client believes.
type createCardRequest struct {
	ID      string          `json:"_id" validate:"required,uuid4"`
	Type    models.CardType `json:"type" validate:"required,cardtype"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Title   string          `json:"title"`
	Content string          `json:"content"`
	Tags    []string        `json:"tags"`
}

// updateCardRequest is a card patch plus the optional expected version.
// Omitting expectedVersion opts out of conflict detection, which is how
// rapid position drags are submitted.
type updateCardRequest struct {
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
	models.CardPatch
}

// ListCards returns every card on the board.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, _, ok := h.boardForRead(w, r, boardID)
	if !ok {
		return
	}

	cards, err := h.store.ListCards(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, cards, start)
}

// CreateCard adds a card to the board at version 1.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var req createCardRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	card, err := h.store.CreateCard(r.Context(), &models.Card{
		ID:        req.ID,
		BoardID:   boardID,
		Type:      req.Type,
		X:         req.X,
		Y:         req.Y,
		Title:     req.Title,
		Content:   req.Content,
		Tags:      req.Tags,
		CreatedBy: id.UserID,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, card, start)
}

// UpdateCard patches a card, optionally under version conflict detection.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	cardID := chi.URLParam(r, "cardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var req updateCardRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	// Confirm the card lives on the board the caller was authorized for.
	existing, err := h.store.GetCard(r.Context(), cardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if existing.BoardID != boardID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "card not found", nil)
		return
	}

	card, err := h.store.UpdateCard(r.Context(), cardID, &req.CardPatch, req.ExpectedVersion, id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, card, start)
}

// DeleteCard removes a card and cascades to its connections and comments.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	cardID := chi.URLParam(r, "cardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	card, err := h.store.GetCard(r.Context(), cardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if card.BoardID != boardID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "card not found", nil)
		return
	}

	if err := h.store.DeleteCard(r.Context(), cardID, id.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"deleted": cardID}, start)
}
