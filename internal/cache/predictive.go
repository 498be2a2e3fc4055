// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/mealwise/internal/models"
)

// PredictiveLayer holds precomputed results for popular filter combinations.
// Entries are owned by the user whose traffic made them popular, so a write to
// that user's preferences can drop them. Only the refresher writes here.
type PredictiveLayer struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	clock   Clock
}

// NewPredictiveLayer creates an empty predictive layer.
func NewPredictiveLayer(ttl time.Duration, clock Clock) *PredictiveLayer {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}
	return &PredictiveLayer{entries: make(map[string]*Entry), ttl: ttl, clock: clock}
}

// Name implements Layer.
func (p *PredictiveLayer) Name() string { return LayerPredictive }

// Get returns the live precomputed entry for key.
func (p *PredictiveLayer) Get(_ context.Context, key string) (*Entry, error) {
	p.mu.RLock()
	entry, ok := p.entries[key]
	p.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}
	if entry.Expired(p.clock()) {
		p.mu.Lock()
		if cur, still := p.entries[key]; still && cur == entry {
			delete(p.entries, key)
		}
		p.mu.Unlock()
		return nil, ErrMiss
	}
	if !entry.Intact() {
		_ = p.Delete(context.Background(), key)
		return nil, &models.CacheCorruptionError{Key: key, Layer: LayerPredictive}
	}
	return entry, nil
}

// Set stores a precomputed entry.
func (p *PredictiveLayer) Set(_ context.Context, e *Entry) error {
	entry := e.withLayer(LayerPredictive, p.clock(), p.ttl)
	p.mu.Lock()
	p.entries[e.Key] = entry
	p.mu.Unlock()
	return nil
}

// Delete removes key if present.
func (p *PredictiveLayer) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.entries, key)
	p.mu.Unlock()
	return nil
}

// InvalidateOwner drops every entry owned by owner and returns how many were dropped.
func (p *PredictiveLayer) InvalidateOwner(_ context.Context, owner string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for key, e := range p.entries {
		if e.Owner == owner {
			delete(p.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (p *PredictiveLayer) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// popularKey is a tracked lookup that the refresher can replay.
type popularKey struct {
	key   string
	owner string
	ttl   time.Duration
	load  Loader
	count int64
	last  time.Time
}

// popularity counts lookups per key and remembers how to reload them.
type popularity struct {
	mu      sync.Mutex
	keys    map[string]*popularKey
	maxKeys int
}

func newPopularity(maxKeys int) *popularity {
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	return &popularity{keys: make(map[string]*popularKey), maxKeys: maxKeys}
}

func (p *popularity) record(req Request, now time.Time) {
	if req.Load == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pk, ok := p.keys[req.Key]; ok {
		pk.count++
		pk.last = now
		pk.load = req.Load
		pk.owner = req.Owner
		return
	}
	if len(p.keys) >= p.maxKeys {
		p.evictColdest()
	}
	p.keys[req.Key] = &popularKey{
		key: req.Key, owner: req.Owner, ttl: req.TTL, load: req.Load, count: 1, last: now,
	}
}

// top returns up to k keys ordered by lookup count, most recent first on ties.
func (p *popularity) top(k int) []popularKey {
	p.mu.Lock()
	out := make([]popularKey, 0, len(p.keys))
	for _, pk := range p.keys {
		out = append(out, *pk)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		if !out[i].last.Equal(out[j].last) {
			return out[i].last.After(out[j].last)
		}
		return out[i].key < out[j].key
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func (p *popularity) forgetOwner(owner string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, pk := range p.keys {
		if pk.owner == owner {
			delete(p.keys, key)
		}
	}
}

// evictColdest drops the least-counted key (must be called with mu held).
func (p *popularity) evictColdest() {
	var coldest *popularKey
	for _, pk := range p.keys {
		if coldest == nil || pk.count < coldest.count ||
			(pk.count == coldest.count && pk.last.Before(coldest.last)) {
			coldest = pk
		}
	}
	if coldest != nil {
		delete(p.keys, coldest.key)
	}
}
