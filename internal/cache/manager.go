// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/mealwise/internal/metrics"
	"github.com/tomtom215/mealwise/internal/models"
)

// Loader fetches a fresh payload from upstream.
type Loader func(ctx context.Context) ([]byte, error)

// Request describes a cache-or-load lookup.
type Request struct {
	// Key is the normalized cache key.
	Key string

	// Owner ties the key to a user for predictive invalidation. Optional.
	Owner string

	// TTL for freshly loaded entries. Zero uses the manager default.
	TTL time.Duration

	// Load fetches the payload on a full miss. Required for Fetch.
	Load Loader
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Name labels metrics and logs ("search", "ai").
	Name string

	// DefaultTTL applies when a request carries none.
	// Default: 5m
	DefaultTTL time.Duration

	// LoadTimeout bounds an upstream load. The load runs detached from the
	// first caller's cancellation so coalesced waiters still get a result.
	// Default: 30s
	LoadTimeout time.Duration

	// PopularKeys bounds the popularity tracker.
	// Default: 1000
	PopularKeys int

	// PredictiveTopK is how many popular keys each refresh precomputes.
	// Default: 20
	PredictiveTopK int

	Clock Clock
}

// Manager is the layered cache. Lookups walk the write-through layers in order,
// then the predictive layer. A hit back-fills every earlier layer; a full miss
// is coalesced per key and the loaded payload is written to all write-through
// layers.
type Manager struct {
	cfg        ManagerConfig
	layers     []Layer
	predictive *PredictiveLayer
	popular    *popularity
	group      singleflight.Group
	logger     zerolog.Logger

	hits        atomic.Int64
	misses      atomic.Int64
	corruptions atomic.Int64
	coalesced   atomic.Int64
	lastAccess  atomic.Int64
	inflight    atomic.Int64

	layerHitsMu sync.Mutex
	layerHits   map[string]int64

	// ownerMu orders owner invalidation against cache writes. epoch advances
	// on every InvalidateUser; invalidated records the epoch at which each
	// owner was last invalidated.
	ownerMu     sync.Mutex
	epoch       uint64
	invalidated map[string]uint64
}

// NewManager composes the given write-through layers (fastest first) and an
// optional predictive layer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewManager(cfg ManagerConfig, logger zerolog.Logger, predictive *PredictiveLayer, layers ...Layer) *Manager {
	if cfg.Name == "" {
		cfg.Name = "cache"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	if cfg.PredictiveTopK <= 0 {
		cfg.PredictiveTopK = 20
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Manager{
		cfg:        cfg,
		layers:     layers,
		predictive: predictive,
		popular:    newPopularity(cfg.PopularKeys),
		logger:     logger.With().Str("component", "cache").Str("cache", cfg.Name).Logger(),
		layerHits:  make(map[string]int64),

		invalidated: make(map[string]uint64),
	}
}

// Name returns the manager's label.
func (m *Manager) Name() string { return m.cfg.Name }

// Get walks the layers without loading. It returns ErrMiss when no layer holds
// a live entry.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.touch()
	return m.lookup(ctx, key, true)
}

// Set writes payload to every write-through layer.
func (m *Manager) Set(ctx context.Context, key, owner string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	entry := NewEntry(key, owner, payload, m.cfg.Clock(), ttl)
	return m.fill(ctx, entry, len(m.layers))
}

// Fetch returns the cached payload for req.Key, loading it through req.Load on
// a full miss. Concurrent misses for one key share a single load. The second
// return value names the layer that served the payload, or SourceUpstream.
func (m *Manager) Fetch(ctx context.Context, req Request) ([]byte, string, error) {
	if req.Load == nil {
		return nil, "", errors.New("cache fetch requires a loader")
	}
	m.touch()
	m.popular.record(req, m.cfg.Clock())

	if data, src, err := m.lookup(ctx, req.Key, true); err == nil {
		return data, src, nil
	} else if !errors.Is(err, ErrMiss) {
		return nil, "", err
	}

	return m.load(ctx, req, true)
}

// Refetch evicts req.Key from every layer and loads it again, coalesced with any
// concurrent load of the same key.
func (m *Manager) Refetch(ctx context.Context, req Request) ([]byte, string, error) {
	if req.Load == nil {
		return nil, "", errors.New("cache refetch requires a loader")
	}
	m.Evict(ctx, req.Key)
	return m.load(ctx, req, false)
}

// load runs req.Load under singleflight. With recheck set, the flight first
// re-reads the layers so a caller that missed just before another flight
// finished does not trigger a second upstream call.
func (m *Manager) load(ctx context.Context, req Request, recheck bool) ([]byte, string, error) {
	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	type flightResult struct {
		data   []byte
		source string
	}

	ch := m.group.DoChan(req.Key, func() (interface{}, error) {
		start := m.currentEpoch()
		if recheck {
			if data, src, err := m.lookup(ctx, req.Key, false); err == nil {
				return flightResult{data: data, source: src}, nil
			}
		}

		m.inflight.Add(1)
		defer m.inflight.Add(-1)

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.LoadTimeout)
		defer cancel()

		data, err := req.Load(loadCtx)
		if err != nil {
			return nil, err
		}

		entry := NewEntry(req.Key, req.Owner, data, m.cfg.Clock(), ttl)
		written, err := m.writeOwned(req.Owner, start, func() error { return m.fill(loadCtx, entry, len(m.layers)) })
		if err != nil {
			m.logger.Warn().Err(err).Str("key", req.Key).Msg("Cache write-through failed")
		}
		if !written {
			m.logger.Debug().Str("key", req.Key).Str("owner", req.Owner).Msg("Owner invalidated during load, result not cached")
		}
		return flightResult{data: data, source: SourceUpstream}, nil
	})

	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			m.coalesced.Add(1)
			metrics.CacheSingleflightShared.WithLabelValues(m.cfg.Name).Inc()
		}
		if res.Err != nil {
			return nil, "", res.Err
		}
		fr, ok := res.Val.(flightResult)
		if !ok {
			return nil, "", fmt.Errorf("unexpected flight result %T", res.Val)
		}
		return fr.data, fr.source, nil
	}
}

// lookup walks write-through layers then the predictive layer. A corrupt entry
// is evicted from its layer and the walk continues, so the caller falls through
// to exactly one refetch.
func (m *Manager) lookup(ctx context.Context, key string, count bool) ([]byte, string, error) {
	all := m.allLayers()
	now := m.cfg.Clock()
	start := m.currentEpoch()

	for i, layer := range all {
		entry, err := layer.Get(ctx, key)
		switch {
		case err == nil && !entry.Expired(now):
			if count {
				m.recordHit(layer.Name())
			}
			if i > 0 {
				n := min(i, len(m.layers))
				if _, ferr := m.writeOwned(entry.Owner, start, func() error { return m.fill(ctx, entry, n) }); ferr != nil {
					m.logger.Warn().Err(ferr).Str("key", key).Msg("Cache back-fill failed")
				}
			}
			return entry.Payload, layer.Name(), nil
		case err == nil, errors.Is(err, ErrMiss):
			if count {
				metrics.RecordCacheLookup(m.cfg.Name, layer.Name(), false)
			}
		case errors.Is(err, models.ErrCacheCorruption):
			m.corruptions.Add(1)
			metrics.CacheCorruptions.WithLabelValues(m.cfg.Name, layer.Name()).Inc()
			m.logger.Warn().Err(err).Str("key", key).Str("layer", layer.Name()).Msg("Evicting corrupt cache entry")
			if derr := layer.Delete(ctx, key); derr != nil {
				m.logger.Error().Err(derr).Str("key", key).Msg("Failed to evict corrupt cache entry")
			}
		default:
			m.logger.Warn().Err(err).Str("key", key).Str("layer", layer.Name()).Msg("Cache layer read failed")
		}
	}

	if count {
		m.misses.Add(1)
	}
	return nil, "", ErrMiss
}

// fill writes entry to the first n write-through layers.
func (m *Manager) fill(ctx context.Context, entry *Entry, n int) error {
	var errs []error
	for _, layer := range m.layers[:n] {
		if err := layer.Set(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", layer.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) allLayers() []Layer {
	if m.predictive == nil {
		return m.layers
	}
	all := make([]Layer, 0, len(m.layers)+1)
	all = append(all, m.layers...)
	return append(all, m.predictive)
}

func (m *Manager) recordHit(layer string) {
	m.hits.Add(1)
	metrics.RecordCacheLookup(m.cfg.Name, layer, true)

	m.layerHitsMu.Lock()
	m.layerHits[layer]++
	m.layerHitsMu.Unlock()
}

func (m *Manager) touch() {
	m.lastAccess.Store(m.cfg.Clock().UnixNano())
}

// Evict removes key from every layer, predictive included.
func (m *Manager) Evict(ctx context.Context, key string) {
	for _, layer := range m.allLayers() {
		if err := layer.Delete(ctx, key); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Str("layer", layer.Name()).Msg("Cache eviction failed")
		}
	}
}

// InvalidateUser drops every entry owned by userID from all layers, forgets
// its popularity records, and stops loads already in flight for the user
// from caching their results. It returns how many entries were removed.
func (m *Manager) InvalidateUser(userID string) int {
	ctx := context.Background()

	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()

	m.epoch++
	m.invalidated[userID] = m.epoch
	m.popular.forgetOwner(userID)

	removed := 0
	for _, layer := range m.allLayers() {
		inv, ok := layer.(OwnerInvalidator)
		if !ok {
			continue
		}
		n, err := inv.InvalidateOwner(ctx, userID)
		if err != nil {
			m.logger.Warn().Err(err).Str("user_id", userID).Str("layer", layer.Name()).Msg("Owner invalidation failed")
		}
		removed += n
	}
	m.logger.Debug().Str("user_id", userID).Int("removed", removed).Msg("User entries invalidated")
	return removed
}

func (m *Manager) currentEpoch() uint64 {
	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()
	return m.epoch
}

// writeOwned runs write unless owner was invalidated after epoch start. It
// reports whether write ran.
func (m *Manager) writeOwned(owner string, start uint64, write func() error) (bool, error) {
	if owner == "" {
		return true, write()
	}
	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()
	if m.invalidated[owner] > start {
		return false, nil
	}
	return true, write()
}

// Idle reports how long ago the last lookup happened, and whether a load is in flight.
func (m *Manager) Idle() (time.Duration, bool) {
	last := m.lastAccess.Load()
	busy := m.inflight.Load() > 0
	if last == 0 {
		return time.Duration(1<<63 - 1), busy
	}
	return m.cfg.Clock().Sub(time.Unix(0, last)), busy
}

// RefreshPredictive reloads the most popular keys into the predictive layer and
// returns how many were refreshed.
func (m *Manager) RefreshPredictive(ctx context.Context) (int, error) {
	if m.predictive == nil {
		return 0, nil
	}

	refreshed := 0
	var errs []error
	for _, pk := range m.popular.top(m.cfg.PredictiveTopK) {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		start := m.currentEpoch()
		loadCtx, cancel := context.WithTimeout(ctx, m.cfg.LoadTimeout)
		data, err := pk.load(loadCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", pk.key, err))
			continue
		}

		ttl := pk.ttl
		if ttl <= 0 {
			ttl = m.cfg.DefaultTTL
		}
		entry := NewEntry(pk.key, pk.owner, data, m.cfg.Clock(), ttl)
		written, err := m.writeOwned(pk.owner, start, func() error { return m.predictive.Set(ctx, entry) })
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if written {
			refreshed++
		}
	}
	return refreshed, errors.Join(errs...)
}

// Stats summarizes lookups since start.
func (m *Manager) Stats() models.CacheStats {
	hits := m.hits.Load()
	misses := m.misses.Load()

	m.layerHitsMu.Lock()
	layerHits := make(map[string]int64, len(m.layerHits))
	for k, v := range m.layerHits {
		layerHits[k] = v
	}
	m.layerHitsMu.Unlock()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return models.CacheStats{
		Hits:        hits,
		Misses:      misses,
		HitRate:     rate,
		LayerHits:   layerHits,
		Corruptions: m.corruptions.Load(),
		Coalesced:   m.coalesced.Load(),
	}
}

// FetchJSON fetches req and decodes the payload into T. A payload that fails to
// decode is treated as corruption: the key is evicted everywhere and loaded once
// more. A fresh upstream payload that still fails to decode is a ParseError.
func FetchJSON[T any](ctx context.Context, m *Manager, req Request) (T, string, error) {
	var zero T

	data, src, err := m.Fetch(ctx, req)
	if err != nil {
		return zero, "", err
	}

	var out T
	decodeErr := json.Unmarshal(data, &out)
	if decodeErr == nil {
		return out, src, nil
	}
	if src == SourceUpstream {
		return zero, "", models.NewParseError("upstream payload", string(data), decodeErr)
	}

	m.corruptions.Add(1)
	metrics.CacheCorruptions.WithLabelValues(m.cfg.Name, src).Inc()
	m.logger.Warn().Err(decodeErr).Str("key", req.Key).Str("layer", src).Msg("Undecodable cache entry, refetching once")

	data, src, err = m.Refetch(ctx, req)
	if err != nil {
		return zero, "", err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, "", models.NewParseError("upstream payload", string(data), err)
	}
	return out, src, nil
}
