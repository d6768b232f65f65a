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

	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

const cardColumns = `id, board_id, type, x, y, title, content, tags, attachments, created_by, version, created_at, updated_at`

// CreateCard inserts a card at version 1. Creation is idempotent on the
// client-generated ID: a duplicate create returns the stored row.
func (s *Store) CreateCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	if existing, err := s.GetCard(ctx, card.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if _, err := s.GetBoard(ctx, card.BoardID); err != nil {
		return nil, err
	}

	ts := now()
	card.Version = 1
	card.CreatedAt = ts
	card.UpdatedAt = ts
	if card.Tags == nil {
		card.Tags = []string{}
	}
	if card.Attachments == nil {
		card.Attachments = []models.Attachment{}
	}

	tags, err := marshalJSON(card.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	attachments, err := marshalJSON(card.Attachments)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.BoardID, string(card.Type), card.X, card.Y, card.Title, card.Content,
		tags, attachments, card.CreatedBy, card.Version, card.CreatedAt, card.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "cards", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}

	s.TouchBoard(ctx, card.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: card.BoardID, Entity: "card", EntityID: card.ID,
		Action: events.ActionCreated, ActorID: card.CreatedBy, Version: card.Version,
	})
	return card, nil
}

// GetCard returns the card with the given ID.
func (s *Store) GetCard(ctx context.Context, id string) (*models.Card, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	card, err := scanCard(row)
	metrics.RecordDBQuery("select", "cards", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "card", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

// ListCards returns every card on the board.
func (s *Store) ListCards(ctx context.Context, boardID string) ([]models.Card, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE board_id = ?`, boardID)
	metrics.RecordDBQuery("select", "cards", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cards := make([]models.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// UpdateCard applies a patch to the card under optimistic concurrency
// control. When expectedVersion is non-nil it must match the stored
// version or the update is rejected with a VersionConflictError carrying
// both versions. A nil expectedVersion applies last-write-wins, which is
// how position-only drags from the canvas are submitted.
//
// The compare-and-set runs under a per-card mutex so two concurrent
// updates cannot both observe the same stored version.
func (s *Store) UpdateCard(ctx context.Context, id string, patch *models.CardPatch, expectedVersion *int64, actorID string) (*models.Card, error) {
	mu := s.cardLock(id)
	mu.Lock()
	defer mu.Unlock()

	card, err := s.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}

	if expectedVersion != nil && *expectedVersion != card.Version {
		metrics.VersionConflicts.Inc()
		return nil, &VersionConflictError{CardID: id, Expected: *expectedVersion, Actual: card.Version}
	}

	if patch.IsZero() {
		return card, nil
	}

	patch.Apply(card)
	card.Version++
	card.UpdatedAt = now()

	tags, err := marshalJSON(card.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	attachments, err := marshalJSON(card.Attachments)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE cards SET type = ?, x = ?, y = ?, title = ?, content = ?, tags = ?, attachments = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		string(card.Type), card.X, card.Y, card.Title, card.Content, tags, attachments,
		card.Version, card.UpdatedAt, id, card.Version-1,
	)
	metrics.RecordDBQuery("update", "cards", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// The row vanished between the read and the write.
		return nil, &NotFoundError{Entity: "card", ID: id}
	}

	s.TouchBoard(ctx, card.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: card.BoardID, Entity: "card", EntityID: id,
		Action: events.ActionUpdated, ActorID: actorID, Version: card.Version,
	})
	return card, nil
}

// DeleteCard removes the card and cascades to connections touching it and
// comments attached to it. The card row goes first; child deletes are
// best-effort and the sweeper reclaims anything left behind.
func (s *Store) DeleteCard(ctx context.Context, id string, actorID string) error {
	mu := s.cardLock(id)
	mu.Lock()
	defer mu.Unlock()

	card, err := s.GetCard(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	metrics.RecordDBQuery("delete", "cards", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	s.cardLocks.Delete(id)

	connStart := time.Now()
	_, err = s.db.ExecContext(ctx, `DELETE FROM connections WHERE from_card_id = ? OR to_card_id = ?`, id, id)
	metrics.RecordDBQuery("delete", "connections", time.Since(connStart), err)
	if err != nil {
		logging.Warn().Err(err).Str("card_id", id).Msg("Cascade delete of connections failed, sweeper will reclaim")
	}

	commentStart := time.Now()
	_, err = s.db.ExecContext(ctx, `DELETE FROM comments WHERE card_id = ?`, id)
	metrics.RecordDBQuery("delete", "comments", time.Since(commentStart), err)
	if err != nil {
		logging.Warn().Err(err).Str("card_id", id).Msg("Cascade delete of comments failed, sweeper will reclaim")
	}

	s.TouchBoard(ctx, card.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: card.BoardID, Entity: "card", EntityID: id,
		Action: events.ActionDeleted, ActorID: actorID,
	})
	return nil
}

func scanCard(row rowScanner) (*models.Card, error) {
	var (
		c                 models.Card
		cardType          string
		tags, attachments string
	)
	err := row.Scan(&c.ID, &c.BoardID, &cardType, &c.X, &c.Y, &c.Title, &c.Content,
		&tags, &attachments, &c.CreatedBy, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Type = models.CardType(cardType)
	c.Tags = unmarshalStrings(tags)
	if err := json.Unmarshal([]byte(attachments), &c.Attachments); err != nil || c.Attachments == nil {
		c.Attachments = []models.Attachment{}
	}
	return &c, nil
}
