// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/access"
	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

const boardColumns = `id, name, description, parent_folder_id, created_by, permissions, tags, template_id, is_public, created_at, updated_at`

// CreateBoard inserts a board. The creator always receives an owner
// permission entry. Creation is idempotent on the client-generated ID: if
// the board already exists the stored row is returned unchanged, so a
// retried create after a lost response is a no-op.
func (s *Store) CreateBoard(ctx context.Context, board *models.Board) (*models.Board, error) {
	if existing, err := s.GetBoard(ctx, board.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ts := now()
	board.CreatedAt = ts
	board.UpdatedAt = ts
	if board.Tags == nil {
		board.Tags = []string{}
	}
	ensureOwnerPermission(board, ts)

	perms, err := marshalJSON(board.Permissions)
	if err != nil {
		return nil, fmt.Errorf("marshal permissions: %w", err)
	}
	tags, err := marshalJSON(board.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO boards (`+boardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		board.ID, board.Name, board.Description, board.ParentFolderID, board.CreatedBy,
		perms, tags, board.TemplateID, board.IsPublic, board.CreatedAt, board.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "boards", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}

	s.announce(ctx, events.EntityChanged{
		BoardID: board.ID, Entity: "board", EntityID: board.ID,
		Action: events.ActionCreated, ActorID: board.CreatedBy,
	})
	return board, nil
}

// ensureOwnerPermission guarantees the creator holds an owner entry.
func ensureOwnerPermission(board *models.Board, ts time.Time) {
	if board.CreatedBy == "" {
		return
	}
	for i := range board.Permissions {
		if board.Permissions[i].UserID == board.CreatedBy {
			board.Permissions[i].Role = models.RoleOwner
			return
		}
	}
	board.Permissions = append(board.Permissions, models.Permission{
		UserID:    board.CreatedBy,
		Role:      models.RoleOwner,
		GrantedBy: board.CreatedBy,
		GrantedAt: ts,
	})
}

// GetBoard returns the board with the given ID.
func (s *Store) GetBoard(ctx context.Context, id string) (*models.Board, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = ?`, id)
	board, err := scanBoard(row)
	metrics.RecordDBQuery("select", "boards", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "board", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	return board, nil
}

// ListBoardsForUser returns every board the user may read, newest update
// first. Public boards are included for any authenticated user.
func (s *Store) ListBoardsForUser(ctx context.Context, userID string) ([]models.Board, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT `+boardColumns+` FROM boards`)
	metrics.RecordDBQuery("select", "boards", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	visible := make([]models.Board, 0)
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		if access.CanRead(board, userID) {
			visible = append(visible, *board)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	sort.Slice(visible, func(i, j int) bool {
		return visible[i].UpdatedAt.After(visible[j].UpdatedAt)
	})
	return visible, nil
}

// UpdateBoard applies a metadata patch last-write-wins and bumps
// updated_at. Returns the updated board.
func (s *Store) UpdateBoard(ctx context.Context, id string, patch *models.BoardPatch, actorID string) (*models.Board, error) {
	board, err := s.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(board)
	board.UpdatedAt = now()

	if err := s.saveBoard(ctx, board); err != nil {
		return nil, err
	}

	s.announce(ctx, events.EntityChanged{
		BoardID: id, Entity: "board", EntityID: id,
		Action: events.ActionUpdated, ActorID: actorID,
	})
	return board, nil
}

// TouchBoard bumps the board's updated_at so it sorts first in listings
// after any entity on it changes. Best-effort.
func (s *Store) TouchBoard(ctx context.Context, id string) {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `UPDATE boards SET updated_at = ? WHERE id = ?`, now(), id)
	metrics.RecordDBQuery("update", "boards", time.Since(start), err)
	if err != nil {
		logging.Warn().Err(err).Str("board_id", id).Msg("Failed to touch board")
	}
}

func (s *Store) saveBoard(ctx context.Context, board *models.Board) error {
	perms, err := marshalJSON(board.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	tags, err := marshalJSON(board.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE boards SET name = ?, description = ?, parent_folder_id = ?, permissions = ?, tags = ?, template_id = ?, is_public = ?, updated_at = ? WHERE id = ?`,
		board.Name, board.Description, board.ParentFolderID, perms, tags,
		board.TemplateID, board.IsPublic, board.UpdatedAt, board.ID,
	)
	metrics.RecordDBQuery("update", "boards", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Entity: "board", ID: board.ID}
	}
	return nil
}

// DeleteBoard removes the board and cascades to its cards, connections,
// and comments. The board row goes first so the delete is authoritative
// even if a child delete fails; the sweeper reclaims any rows left behind.
func (s *Store) DeleteBoard(ctx context.Context, id string, actorID string) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	metrics.RecordDBQuery("delete", "boards", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Entity: "board", ID: id}
	}

	for _, table := range []string{"comments", "connections", "cards"} {
		childStart := time.Now()
		_, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE board_id = ?`, id)
		metrics.RecordDBQuery("delete", table, time.Since(childStart), err)
		if err != nil {
			logging.Warn().Err(err).Str("board_id", id).Str("table", table).
				Msg("Cascade delete failed, sweeper will reclaim")
		}
	}

	s.announce(ctx, events.EntityChanged{
		BoardID: id, Entity: "board", EntityID: id,
		Action: events.ActionDeleted, ActorID: actorID,
	})
	return nil
}

// GrantPermission grants role on the board to the user identified by
// email, creating a placeholder account if no user exists yet. An existing
// entry for the same user is replaced. Returns the updated board and the
// (possibly new) user.
func (s *Store) GrantPermission(ctx context.Context, boardID, email string, role models.Role, grantedBy string) (*models.Board, *models.User, error) {
	board, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.ensureUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	entry := models.Permission{
		UserID:    user.ID,
		Role:      role,
		GrantedBy: grantedBy,
		GrantedAt: now(),
	}
	replaced := false
	for i := range board.Permissions {
		if board.Permissions[i].UserID == user.ID {
			board.Permissions[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		board.Permissions = append(board.Permissions, entry)
	}
	board.UpdatedAt = now()

	if err := s.saveBoard(ctx, board); err != nil {
		return nil, nil, err
	}

	s.announce(ctx, events.EntityChanged{
		BoardID: boardID, Entity: "board", EntityID: boardID,
		Action: events.ActionUpdated, ActorID: grantedBy,
	})
	return board, user, nil
}

// RevokePermission removes the user's permission entry from the board.
// Removing an entry that does not exist is a no-op.
func (s *Store) RevokePermission(ctx context.Context, boardID, userID, actorID string) (*models.Board, error) {
	board, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	filtered := board.Permissions[:0]
	for _, p := range board.Permissions {
		if p.UserID != userID {
			filtered = append(filtered, p)
		}
	}
	board.Permissions = filtered
	board.UpdatedAt = now()

	if err := s.saveBoard(ctx, board); err != nil {
		return nil, err
	}

	s.announce(ctx, events.EntityChanged{
		BoardID: boardID, Entity: "board", EntityID: boardID,
		Action: events.ActionUpdated, ActorID: actorID,
	})
	return board, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBoard(row rowScanner) (*models.Board, error) {
	var (
		b           models.Board
		perms, tags string
	)
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.ParentFolderID, &b.CreatedBy,
		&perms, &tags, &b.TemplateID, &b.IsPublic, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(perms), &b.Permissions); err != nil || b.Permissions == nil {
		b.Permissions = []models.Permission{}
	}
	b.Tags = unmarshalStrings(tags)
	return &b, nil
}
