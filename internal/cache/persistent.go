// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mealwise/internal/models"
)

// PersistentLayer stores entries in BadgerDB so they survive restarts.
// Entries are stored as JSON envelopes under "<namespace>:<key>" with a badger
// TTL, and re-checked against ExpiresAt on read.
type PersistentLayer struct {
	db        *badger.DB
	namespace string
	ttl       time.Duration
	clock     Clock
}

// OpenBadger opens a badger database at path, or an in-memory one when path is empty.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

// NewPersistentLayer creates a layer over db. Several layers may share one db
// as long as their namespaces differ.
func NewPersistentLayer(db *badger.DB, namespace string, ttl time.Duration, clock Clock) *PersistentLayer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}
	return &PersistentLayer{db: db, namespace: namespace, ttl: ttl, clock: clock}
}

// Name implements Layer.
func (p *PersistentLayer) Name() string { return LayerPersistent }

func (p *PersistentLayer) dbKey(key string) []byte {
	return []byte(p.namespace + ":" + key)
}

// Get reads and verifies the envelope for key.
func (p *PersistentLayer) Get(_ context.Context, key string) (*Entry, error) {
	var raw []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(p.dbKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read persistent entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, &models.CacheCorruptionError{Key: key, Layer: LayerPersistent, Cause: err}
	}
	if entry.Key != key || !entry.Intact() {
		return nil, &models.CacheCorruptionError{Key: key, Layer: LayerPersistent, Cause: errors.New("checksum mismatch")}
	}
	if entry.Expired(p.clock()) {
		return nil, ErrMiss
	}
	return &entry, nil
}

// Set writes e with a badger TTL no longer than the layer's cap.
func (p *PersistentLayer) Set(_ context.Context, e *Entry) error {
	now := p.clock()
	entry := e.withLayer(LayerPersistent, now, p.ttl)
	ttl := entry.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal persistent entry: %w", err)
	}

	return p.db.Update(func(txn *badger.Txn) error {
		// Badger expiry has one-second granularity; ExpiresAt is authoritative.
		return txn.SetEntry(badger.NewEntry(p.dbKey(e.Key), data).WithTTL(ttl + time.Second))
	})
}

// Delete removes key if present.
func (p *PersistentLayer) Delete(_ context.Context, key string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(p.dbKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// InvalidateOwner deletes every entry in this namespace owned by owner. It
// scans the namespace, so it suits rare events such as preference writes.
// Undecodable envelopes are left for Get to report.
func (p *PersistentLayer) InvalidateOwner(_ context.Context, owner string) (int, error) {
	prefix := []byte(p.namespace + ":")

	var doomed [][]byte
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var envelope struct {
				Owner string `json:"owner"`
			}
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &envelope) }); err != nil {
				continue
			}
			if envelope.Owner == owner {
				doomed = append(doomed, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan persistent entries: %w", err)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	wb := p.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range doomed {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete persistent entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("delete persistent entries: %w", err)
	}
	return len(doomed), nil
}

// CollectGarbage runs one badger value-log GC pass. Nothing-to-collect and
// in-memory mode are not errors.
func (p *PersistentLayer) CollectGarbage() error {
	err := p.db.RunValueLogGC(0.5)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}
