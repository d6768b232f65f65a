// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package client

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

// ErrNoSnapshot is returned when the cache holds nothing for a board.
var ErrNoSnapshot = errors.New("no cached snapshot for board")

// LocalCache is the durable fallback store: when persistence fails, the
// full board snapshot lands here so a reload can pick up where the user
// left off. One entry per board, latest snapshot wins.
type LocalCache struct {
	db *badger.DB
}

// OpenLocalCache opens the cache at path. An empty path opens an
// in-memory cache, used by tests.
func OpenLocalCache(path string) (*LocalCache, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	// Badger's default logger writes to stderr outside our logging setup.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	return &LocalCache{db: db}, nil
}

func snapshotKey(boardID string) []byte {
	return []byte("snapshot:" + boardID)
}

// SaveSnapshot durably stores the board snapshot, replacing any previous
// one.
func (c *LocalCache) SaveSnapshot(boardID string, data *models.BoardData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(boardID), raw)
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	metrics.LocalCacheWrites.Inc()
	return nil
}

// LoadSnapshot returns the cached snapshot for the board, or ErrNoSnapshot.
func (c *LocalCache) LoadSnapshot(boardID string) (*models.BoardData, error) {
	var data models.BoardData
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(boardID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &data)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return &data, nil
}

// DropSnapshot removes the cached snapshot after a successful replay.
func (c *LocalCache) DropSnapshot(boardID string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(boardID))
	})
	if err != nil {
		return fmt.Errorf("drop snapshot: %w", err)
	}
	return nil
}

// Close releases the cache.
func (c *LocalCache) Close() error {
	return c.db.Close()
}
