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
	"time"

	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

const commentColumns = `id, board_id, card_id, content, created_by, mentions, resolved, x, y, parent_comment_id, created_at`

// CreateComment inserts a comment on a card. Mentions are derived from the
// content server-side; whatever the client sent is discarded. A reply must
// name a parent comment on the same card. Creation is idempotent on the
// client-generated ID.
func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	if existing, err := s.GetComment(ctx, comment.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	card, err := s.GetCard(ctx, comment.CardID)
	if err != nil {
		return nil, err
	}
	if card.BoardID != comment.BoardID {
		return nil, fmt.Errorf("card %s is on board %s: %w", comment.CardID, card.BoardID, ErrCrossBoard)
	}

	if comment.ParentCommentID != "" {
		parent, err := s.GetComment(ctx, comment.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.CardID != comment.CardID {
			return nil, fmt.Errorf("parent comment %s is on card %s: %w", parent.ID, parent.CardID, ErrCrossBoard)
		}
	}

	comment.Mentions = models.ExtractMentions(comment.Content)
	comment.CreatedAt = now()

	mentions, err := marshalJSON(comment.Mentions)
	if err != nil {
		return nil, fmt.Errorf("marshal mentions: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, comment.BoardID, comment.CardID, comment.Content, comment.CreatedBy,
		mentions, comment.Resolved, comment.X, comment.Y, comment.ParentCommentID, comment.CreatedAt,
	)
	metrics.RecordDBQuery("insert", "comments", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.TouchBoard(ctx, comment.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: comment.BoardID, Entity: "comment", EntityID: comment.ID,
		Action: events.ActionCreated, ActorID: comment.CreatedBy,
	})
	return comment, nil
}

// GetComment returns the comment with the given ID.
func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	comment, err := scanComment(row)
	metrics.RecordDBQuery("select", "comments", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "comment", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return comment, nil
}

// ListComments returns every comment on the board, oldest first so threads
// render in creation order.
func (s *Store) ListComments(ctx context.Context, boardID string) ([]models.Comment, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE board_id = ? ORDER BY created_at`, boardID)
	metrics.RecordDBQuery("select", "comments", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *comment)
	}
	return comments, rows.Err()
}

// UpdateComment applies a patch last-write-wins. A content change
// re-derives the mention list.
func (s *Store) UpdateComment(ctx context.Context, id string, patch *models.CommentPatch, actorID string) (*models.Comment, error) {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(comment)

	mentions, err := marshalJSON(comment.Mentions)
	if err != nil {
		return nil, fmt.Errorf("marshal mentions: %w", err)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE comments SET content = ?, mentions = ?, resolved = ?, x = ?, y = ? WHERE id = ?`,
		comment.Content, mentions, comment.Resolved, comment.X, comment.Y, id,
	)
	metrics.RecordDBQuery("update", "comments", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &NotFoundError{Entity: "comment", ID: id}
	}

	s.TouchBoard(ctx, comment.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: comment.BoardID, Entity: "comment", EntityID: id,
		Action: events.ActionUpdated, ActorID: actorID,
	})
	return comment, nil
}

// DeleteComment removes the comment and, best-effort, any direct replies.
func (s *Store) DeleteComment(ctx context.Context, id string, actorID string) error {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	metrics.RecordDBQuery("delete", "comments", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	replyStart := time.Now()
	_, err = s.db.ExecContext(ctx, `DELETE FROM comments WHERE parent_comment_id = ?`, id)
	metrics.RecordDBQuery("delete", "comments", time.Since(replyStart), err)

	s.TouchBoard(ctx, comment.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: comment.BoardID, Entity: "comment", EntityID: id,
		Action: events.ActionDeleted, ActorID: actorID,
	})
	return nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var (
		c        models.Comment
		mentions string
	)
	err := row.Scan(&c.ID, &c.BoardID, &c.CardID, &c.Content, &c.CreatedBy,
		&mentions, &c.Resolved, &c.X, &c.Y, &c.ParentCommentID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Mentions = unmarshalStrings(mentions)
	return &c, nil
}
