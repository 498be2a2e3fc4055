// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// openTestBadger opens an in-memory badger database closed at test cleanup.
func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// putRaw writes bytes directly under a persistent layer's key, bypassing encoding.
func putRaw(t *testing.T, p *PersistentLayer, key string, raw []byte) {
	t.Helper()
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(p.dbKey(key), raw)
	})
	if err != nil {
		t.Fatalf("putRaw: %v", err)
	}
}
