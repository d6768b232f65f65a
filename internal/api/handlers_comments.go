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

// createCommentRequest is the payload for commenting on a card. Mentions
// are never accepted from the client; the store derives them from content.
type createCommentRequest struct {
	ID              string           `json:"_id" validate:"required,uuid4"`
	CardID          string           `json:"cardId" validate:"required"`
	Content         string           `json:"content" validate:"required"`
	Position        *models.Position `json:"position,omitempty"`
	ParentCommentID string           `json:"parentCommentId"`
}

// ListComments returns every comment on the board in thread order.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, _, ok := h.boardForRead(w, r, boardID)
	if !ok {
		return
	}

	comments, err := h.store.ListComments(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, comments, start)
}

// CreateComment attaches a comment, or a threaded reply, to a card.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	comment := &models.Comment{
		ID:              req.ID,
		BoardID:         boardID,
		CardID:          req.CardID,
		Content:         req.Content,
		CreatedBy:       id.UserID,
		ParentCommentID: req.ParentCommentID,
	}
	if req.Position != nil {
		x, y := req.Position.X, req.Position.Y
		comment.X = &x
		comment.Y = &y
	}

	created, err := h.store.CreateComment(r.Context(), comment)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, created, start)
}

// UpdateComment patches a comment last-write-wins.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	commentID := chi.URLParam(r, "commentID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var patch models.CommentPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}

	existing, err := h.store.GetComment(r.Context(), commentID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if existing.BoardID != boardID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "comment not found", nil)
		return
	}

	comment, err := h.store.UpdateComment(r.Context(), commentID, &patch, id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, comment, start)
}

// DeleteComment removes a comment and its direct replies.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	commentID := chi.URLParam(r, "commentID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	existing, err := h.store.GetComment(r.Context(), commentID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if existing.BoardID != boardID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "comment not found", nil)
		return
	}

	if err := h.store.DeleteComment(r.Context(), commentID, id.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"deleted": commentID}, start)
}
