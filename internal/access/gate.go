// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package access evaluates whether a user may read or mutate a board's
// entities, based on the permission list embedded in the board itself.
//
// The gate is deliberately side-effect-free: every check is a pure
// function over (board, userID) returning a boolean. Callers reject the
// operation with an authorization error when a check returns false; the
// gate itself never errors.
package access

import "github.com/tomtom215/fableboard/internal/models"

// CanRead reports whether the user may read the board and its entities:
// public boards are readable by any authenticated user, and otherwise the
// user must be the creator or hold any permission entry.
func CanRead(board *models.Board, userID string) bool {
	if board == nil {
		return false
	}
	if board.IsPublic {
		return true
	}
	if userID == "" {
		return false
	}
	if board.CreatedBy == userID {
		return true
	}
	return board.PermissionFor(userID) != nil
}

// CanWrite reports whether the user may mutate entities on the board.
// The creator always may; otherwise an owner or editor entry is required.
func CanWrite(board *models.Board, userID string) bool {
	return canWriteAtLeast(board, userID, models.RoleEditor)
}

// CanManagePermissions reports whether the user may grant or revoke
// permission entries. This is stricter than generic write: only the
// creator or a user holding an owner entry qualifies.
func CanManagePermissions(board *models.Board, userID string) bool {
	return canWriteAtLeast(board, userID, models.RoleOwner)
}

func canWriteAtLeast(board *models.Board, userID string, min models.Role) bool {
	if board == nil || userID == "" {
		return false
	}
	if board.CreatedBy == userID {
		return true
	}
	perm := board.PermissionFor(userID)
	return perm != nil && perm.Role.AtLeast(min)
}
