// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package models

import "time"

// Role grants a capability level on a board. Capability ordering is
// owner > editor > viewer.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// AtLeast reports whether the role grants at least the capability of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Permission grants a role on a board to a single user.
type Permission struct {
	UserID    string    `json:"userId" validate:"required"`
	Role      Role      `json:"role" validate:"required,boardrole"`
	GrantedBy string    `json:"grantedBy"`
	GrantedAt time.Time `json:"grantedAt"`
}

// Board is a named, permissioned workspace containing cards, connections,
// and comments. The creator always holds an owner permission entry from
// creation time; a public board is readable by any authenticated user.
type Board struct {
	ID             string       `json:"_id" validate:"required"`
	Name           string       `json:"name" validate:"required,max=200"`
	Description    string       `json:"description,omitempty"`
	ParentFolderID string       `json:"parentFolderId,omitempty"`
	CreatedBy      string       `json:"createdBy"`
	Permissions    []Permission `json:"permissions"`
	Tags           []string     `json:"tags"`
	TemplateID     string       `json:"templateId,omitempty"`
	IsPublic       bool         `json:"isPublic"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// PermissionFor returns the permission entry for the given user, or nil.
func (b *Board) PermissionFor(userID string) *Permission {
	for i := range b.Permissions {
		if b.Permissions[i].UserID == userID {
			return &b.Permissions[i]
		}
	}
	return nil
}
