// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fableboard/internal/access"
	"github.com/tomtom215/fableboard/internal/models"
)

// createBoardRequest is the payload for board creation. The ID is
// client-generated so retries are idempotent.
type createBoardRequest struct {
	ID             string   `json:"_id" validate:"required,uuid4"`
	Name           string   `json:"name" validate:"required,max=200"`
	Description    string   `json:"description"`
	ParentFolderID string   `json:"parentFolderId"`
	Tags           []string `json:"tags"`
	TemplateID     string   `json:"templateId"`
	IsPublic       bool     `json:"isPublic"`
}

// ListBoards returns every board the caller may read, newest update first.
func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	boards, err := h.store.ListBoardsForUser(r.Context(), id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, boards, start)
}

// CreateBoard creates a board owned by the caller.
func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req createBoardRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	board, err := h.store.CreateBoard(r.Context(), &models.Board{
		ID:             req.ID,
		Name:           req.Name,
		Description:    req.Description,
		ParentFolderID: req.ParentFolderID,
		CreatedBy:      id.UserID,
		Tags:           req.Tags,
		TemplateID:     req.TemplateID,
		IsPublic:       req.IsPublic,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, board, start)
}

// GetBoard returns one board's metadata.
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	board, _, ok := h.boardForRead(w, r, chi.URLParam(r, "boardID"))
	if !ok {
		return
	}
	respondData(w, http.StatusOK, board, start)
}

// UpdateBoard patches board metadata last-write-wins.
func (h *Handler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var patch models.BoardPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&patch); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	board, err := h.store.UpdateBoard(r.Context(), boardID, &patch, id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, board, start)
}

// DeleteBoard removes a board and everything on it. Only users who can
// manage the board may delete it.
func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	board, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanManagePermissions(board, id.UserID) {
		respondForbidden(w)
		return
	}

	if err := h.store.DeleteBoard(r.Context(), boardID, id.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"deleted": boardID}, start)
}

// GetBoardData returns the combined entity snapshot for one board.
func (h *Handler) GetBoardData(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, _, ok := h.boardForRead(w, r, boardID)
	if !ok {
		return
	}

	data, err := h.store.GetBoardData(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, data, start)
}

// ClearBoard removes every entity on the board, keeping the board itself.
func (h *Handler) ClearBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	if err := h.store.ClearBoard(r.Context(), boardID, id.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"cleared": boardID}, start)
}

// ImportBoard replaces the board's content with the posted snapshot.
func (h *Handler) ImportBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	_, id, ok := h.boardForWrite(w, r, boardID)
	if !ok {
		return
	}

	var snapshot models.BoardData
	if err := decodeJSON(r, &snapshot); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}

	if err := h.store.ImportBoard(r.Context(), boardID, &snapshot, id.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"imported":    boardID,
		"cards":       len(snapshot.Cards),
		"connections": len(snapshot.Connections),
		"comments":    len(snapshot.Comments),
	}, start)
}

// inviteRequest grants a role to a user identified by email.
type inviteRequest struct {
	Email string      `json:"email" validate:"required,email"`
	Role  models.Role `json:"role" validate:"required,boardrole"`
}

// InviteUser grants a board role by email, creating a placeholder account
// when the invitee has none yet. Requires permission management rights.
func (h *Handler) InviteUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	board, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanManagePermissions(board, id.UserID) {
		respondForbidden(w)
		return
	}

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed or unrecognized request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	updated, user, err := h.store.GrantPermission(r.Context(), boardID, req.Email, req.Role, id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"board": updated,
		"user":  user,
	}, start)
}

// RevokePermission removes a user's role from the board.
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	boardID := chi.URLParam(r, "boardID")
	userID := chi.URLParam(r, "userID")
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	board, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanManagePermissions(board, id.UserID) {
		respondForbidden(w)
		return
	}

	updated, err := h.store.RevokePermission(r.Context(), boardID, userID, id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated, start)
}
