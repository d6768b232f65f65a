// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package store is the server-authoritative entity store backed by DuckDB.
//
// All durable state lives here: users, boards, cards, connections, and
// comments. Cards carry a strictly increasing version counter enforced
// with compare-and-set under a per-card lock; every other entity kind is
// last-write-wins. Committed mutations are announced on the event bus
// after the write succeeds, never before.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/config"
	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/logging"
)

// Store wraps the DuckDB connection and the per-card write locks.
type Store struct {
	db  *sql.DB
	bus *events.Bus

	// cardLocks serializes version compare-and-set per card ID so two
	// concurrent updates to the same card cannot both pass the check.
	// Keys are card IDs, values *sync.Mutex. Entries are removed when
	// the card is deleted.
	cardLocks sync.Map

	closeOnce sync.Once
}

// New opens (or creates) the DuckDB database at cfg.Path, initializes the
// schema, and returns the store. bus may be nil, in which case committed
// mutations are not announced.
func New(cfg *config.DatabaseConfig, bus *events.Bus) (*Store, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	// 0750 per gosec G301.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, cfg.MaxMemory)

	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is embedded; a single writer connection avoids write-write
	// conflicts at the storage layer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, bus: bus}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("Entity store opened")
	return s, nil
}

// schema statements are idempotent so startup after an unclean shutdown is
// safe. Entity lists (permissions, tags, attachments, mentions) are stored
// as JSON text and unmarshalled at the edge.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR PRIMARY KEY,
		email         VARCHAR NOT NULL UNIQUE,
		name          VARCHAR NOT NULL,
		password_hash VARCHAR NOT NULL,
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS boards (
		id               VARCHAR PRIMARY KEY,
		name             VARCHAR NOT NULL,
		description      VARCHAR NOT NULL DEFAULT '',
		parent_folder_id VARCHAR NOT NULL DEFAULT '',
		created_by       VARCHAR NOT NULL,
		permissions      VARCHAR NOT NULL DEFAULT '[]',
		tags             VARCHAR NOT NULL DEFAULT '[]',
		template_id      VARCHAR NOT NULL DEFAULT '',
		is_public        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id          VARCHAR PRIMARY KEY,
		board_id    VARCHAR NOT NULL,
		type        VARCHAR NOT NULL,
		x           DOUBLE NOT NULL DEFAULT 0,
		y           DOUBLE NOT NULL DEFAULT 0,
		title       VARCHAR NOT NULL DEFAULT '',
		content     VARCHAR NOT NULL DEFAULT '',
		tags        VARCHAR NOT NULL DEFAULT '[]',
		attachments VARCHAR NOT NULL DEFAULT '[]',
		created_by  VARCHAR NOT NULL,
		version     BIGINT NOT NULL DEFAULT 1,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS connections (
		id           VARCHAR PRIMARY KEY,
		board_id     VARCHAR NOT NULL,
		from_card_id VARCHAR NOT NULL,
		to_card_id   VARCHAR NOT NULL,
		label        VARCHAR NOT NULL DEFAULT '',
		type         VARCHAR NOT NULL,
		color        VARCHAR NOT NULL DEFAULT '',
		created_by   VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id                VARCHAR PRIMARY KEY,
		board_id          VARCHAR NOT NULL,
		card_id           VARCHAR NOT NULL,
		content           VARCHAR NOT NULL,
		created_by        VARCHAR NOT NULL,
		mentions          VARCHAR NOT NULL DEFAULT '[]',
		resolved          BOOLEAN NOT NULL DEFAULT FALSE,
		x                 DOUBLE,
		y                 DOUBLE,
		parent_comment_id VARCHAR NOT NULL DEFAULT '',
		created_at        TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_board ON cards (board_id)`,
	`CREATE INDEX IF NOT EXISTS idx_connections_board ON connections (board_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_board ON comments (board_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_card ON comments (card_id)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database. Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

// cardLock returns the mutex guarding writes to the given card.
func (s *Store) cardLock(cardID string) *sync.Mutex {
	mu, _ := s.cardLocks.LoadOrStore(cardID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// announce publishes an entity-change event after a committed write.
// Failures are logged and swallowed: the write already happened and the
// relay is best-effort.
func (s *Store) announce(ctx context.Context, ev events.EntityChanged) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		logging.Warn().Err(err).
			Str("board_id", ev.BoardID).
			Str("entity", ev.Entity).
			Str("entity_id", ev.EntityID).
			Msg("Failed to announce entity change")
	}
}

// now returns the wall-clock time used for entity timestamps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// marshalJSON serializes a list field for storage, normalizing nil to [].
func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	str := string(b)
	if str == "null" {
		return "[]", nil
	}
	return str, nil
}

func unmarshalStrings(raw string) []string {
	var out []string
	if raw == "" {
		return []string{}
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
