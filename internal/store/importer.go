// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

// ClearBoard removes every card, connection, and comment on the board,
// leaving the board record itself intact. The three deletes run in one
// transaction so a clear is all-or-nothing.
func (s *Store) ClearBoard(ctx context.Context, boardID string, actorID string) error {
	if _, err := s.GetBoard(ctx, boardID); err != nil {
		return err
	}

	start := time.Now()
	err := s.clearBoardTx(ctx, boardID)
	metrics.RecordDBQuery("delete", "board_entities", time.Since(start), err)
	if err != nil {
		return err
	}

	s.TouchBoard(ctx, boardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: boardID, Entity: "board", EntityID: boardID,
		Action: events.ActionUpdated, ActorID: actorID,
	})
	return nil
}

func (s *Store) clearBoardTx(ctx context.Context, boardID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"comments", "connections", "cards"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE board_id = ?`, boardID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// ImportBoard replaces the board's entire content with the given snapshot:
// existing entities are cleared and the imported ones inserted, all in one
// transaction. Imported cards keep their versions when positive and start
// at 1 otherwise. Comment mentions are re-derived from content so an
// imported snapshot cannot carry a stale mention list.
func (s *Store) ImportBoard(ctx context.Context, boardID string, data *models.BoardData, actorID string) error {
	if _, err := s.GetBoard(ctx, boardID); err != nil {
		return err
	}

	start := time.Now()
	err := s.importBoardTx(ctx, boardID, data)
	metrics.RecordDBQuery("import", "board_entities", time.Since(start), err)
	if err != nil {
		return err
	}

	s.TouchBoard(ctx, boardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: boardID, Entity: "board", EntityID: boardID,
		Action: events.ActionUpdated, ActorID: actorID,
	})
	return nil
}

func (s *Store) importBoardTx(ctx context.Context, boardID string, data *models.BoardData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"comments", "connections", "cards"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE board_id = ?`, boardID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	ts := now()
	for i := range data.Cards {
		card := &data.Cards[i]
		card.BoardID = boardID
		if card.Version <= 0 {
			card.Version = 1
		}
		if card.CreatedAt.IsZero() {
			card.CreatedAt = ts
		}
		card.UpdatedAt = ts

		tags, err := marshalJSON(card.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		attachments, err := marshalJSON(card.Attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			card.ID, boardID, string(card.Type), card.X, card.Y, card.Title, card.Content,
			tags, attachments, card.CreatedBy, card.Version, card.CreatedAt, card.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("import card %s: %w", card.ID, err)
		}
	}

	for i := range data.Connections {
		conn := &data.Connections[i]
		conn.BoardID = boardID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO connections (`+connectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			conn.ID, boardID, conn.FromCardID, conn.ToCardID, conn.Label, string(conn.Type), conn.Color, conn.CreatedBy,
		)
		if err != nil {
			return fmt.Errorf("import connection %s: %w", conn.ID, err)
		}
	}

	for i := range data.Comments {
		comment := &data.Comments[i]
		comment.BoardID = boardID
		comment.Mentions = models.ExtractMentions(comment.Content)
		if comment.CreatedAt.IsZero() {
			comment.CreatedAt = ts
		}
		mentions, err := marshalJSON(comment.Mentions)
		if err != nil {
			return fmt.Errorf("marshal mentions: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			comment.ID, boardID, comment.CardID, comment.Content, comment.CreatedBy,
			mentions, comment.Resolved, comment.X, comment.Y, comment.ParentCommentID, comment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("import comment %s: %w", comment.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}
