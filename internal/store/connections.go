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

const connectionColumns = `id, board_id, from_card_id, to_card_id, label, type, color, created_by`

// CreateConnection inserts a connection after verifying both endpoint
// cards exist on the connection's own board. Creation is idempotent on
// the client-generated ID.
func (s *Store) CreateConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	if existing, err := s.GetConnection(ctx, conn.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	for _, cardID := range []string{conn.FromCardID, conn.ToCardID} {
		card, err := s.GetCard(ctx, cardID)
		if err != nil {
			return nil, err
		}
		if card.BoardID != conn.BoardID {
			return nil, fmt.Errorf("card %s is on board %s: %w", cardID, card.BoardID, ErrCrossBoard)
		}
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (`+connectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID, conn.BoardID, conn.FromCardID, conn.ToCardID, conn.Label, string(conn.Type), conn.Color, conn.CreatedBy,
	)
	metrics.RecordDBQuery("insert", "connections", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	s.TouchBoard(ctx, conn.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: conn.BoardID, Entity: "connection", EntityID: conn.ID,
		Action: events.ActionCreated, ActorID: conn.CreatedBy,
	})
	return conn, nil
}

// GetConnection returns the connection with the given ID.
func (s *Store) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	conn, err := scanConnection(row)
	metrics.RecordDBQuery("select", "connections", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "connection", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

// ListConnections returns every connection on the board.
func (s *Store) ListConnections(ctx context.Context, boardID string) ([]models.Connection, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE board_id = ?`, boardID)
	metrics.RecordDBQuery("select", "connections", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	conns := make([]models.Connection, 0)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

// UpdateConnection applies a patch last-write-wins.
func (s *Store) UpdateConnection(ctx context.Context, id string, patch *models.ConnectionPatch, actorID string) (*models.Connection, error) {
	conn, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(conn)

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE connections SET label = ?, type = ?, color = ? WHERE id = ?`,
		conn.Label, string(conn.Type), conn.Color, id,
	)
	metrics.RecordDBQuery("update", "connections", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("update connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &NotFoundError{Entity: "connection", ID: id}
	}

	s.TouchBoard(ctx, conn.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: conn.BoardID, Entity: "connection", EntityID: id,
		Action: events.ActionUpdated, ActorID: actorID,
	})
	return conn, nil
}

// DeleteConnection removes the connection. Connections have no children,
// so there is nothing to cascade.
func (s *Store) DeleteConnection(ctx context.Context, id string, actorID string) error {
	conn, err := s.GetConnection(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	metrics.RecordDBQuery("delete", "connections", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}

	s.TouchBoard(ctx, conn.BoardID)
	s.announce(ctx, events.EntityChanged{
		BoardID: conn.BoardID, Entity: "connection", EntityID: id,
		Action: events.ActionDeleted, ActorID: actorID,
	})
	return nil
}

func scanConnection(row rowScanner) (*models.Connection, error) {
	var (
		c        models.Connection
		connType string
	)
	err := row.Scan(&c.ID, &c.BoardID, &c.FromCardID, &c.ToCardID, &c.Label, &connType, &c.Color, &c.CreatedBy)
	if err != nil {
		return nil, err
	}
	c.Type = models.ConnectionType(connType)
	return &c, nil
}
