// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PredictiveCache is a layered cache whose predictive layer can be refilled
// from recorded popularity. Satisfied by *cache.Manager.
type PredictiveCache interface {
	Name() string
	Idle() (time.Duration, bool)
	RefreshPredictive(ctx context.Context) (int, error)
}

// Sweeper drops expired entries. Satisfied by *cache.MemoryLayer.
type Sweeper interface {
	CleanupExpired() int
}

// GarbageCollector reclaims storage. Satisfied by *cache.PersistentLayer.
type GarbageCollector interface {
	CollectGarbage() error
}

// CacheMaintenanceConfig holds configuration for the maintenance loop.
type CacheMaintenanceConfig struct {
	// Interval between maintenance passes. Default: 5m
	Interval time.Duration

	// IdleAfter is how long a cache must go without lookups before its
	// predictive layer is refreshed. Default: 1m
	IdleAfter time.Duration

	// RefreshTimeout bounds one predictive refresh. Default: 2m
	RefreshTimeout time.Duration
}

// CacheMaintenanceService refreshes predictive layers while their cache is
// idle, sweeps expired memory entries and runs badger value-log GC.
type CacheMaintenanceService struct {
	caches     []PredictiveCache
	sweepers   []Sweeper
	collectors []GarbageCollector
	config     CacheMaintenanceConfig
	logger     zerolog.Logger
	name       string
}

// NewCacheMaintenanceService creates the maintenance service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCacheMaintenanceService(cfg CacheMaintenanceConfig, logger zerolog.Logger) *CacheMaintenanceService {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 2 * time.Minute
	}
	return &CacheMaintenanceService{
		config: cfg,
		logger: logger.With().Str("service", "cache-maintenance").Logger(),
		name:   "cache-maintenance",
	}
}

// AddCache registers a cache for predictive refresh.
func (s *CacheMaintenanceService) AddCache(c PredictiveCache) { s.caches = append(s.caches, c) }

// AddSweeper registers a layer for expiry sweeps.
func (s *CacheMaintenanceService) AddSweeper(sw Sweeper) { s.sweepers = append(s.sweepers, sw) }

// AddCollector registers a store for garbage collection.
func (s *CacheMaintenanceService) AddCollector(gc GarbageCollector) {
	s.collectors = append(s.collectors, gc)
}

// Serve implements suture.Service.
func (s *CacheMaintenanceService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("idle_after", s.config.IdleAfter).
		Int("caches", len(s.caches)).
		Msg("cache maintenance starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache maintenance shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one maintenance pass. Failures are logged; the next pass
// tries again.
func (s *CacheMaintenanceService) RunOnce(ctx context.Context) {
	for _, c := range s.caches {
		if ctx.Err() != nil {
			return
		}
		idle, busy := c.Idle()
		if busy || idle < s.config.IdleAfter {
			s.logger.Debug().Str("cache", c.Name()).Dur("idle", idle).Bool("busy", busy).Msg("skipping predictive refresh")
			continue
		}

		refreshCtx, cancel := context.WithTimeout(ctx, s.config.RefreshTimeout)
		n, err := c.RefreshPredictive(refreshCtx)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("cache", c.Name()).Int("refreshed", n).Msg("predictive refresh incomplete")
			continue
		}
		if n > 0 {
			s.logger.Debug().Str("cache", c.Name()).Int("refreshed", n).Msg("predictive layer refreshed")
		}
	}

	swept := 0
	for _, sw := range s.sweepers {
		swept += sw.CleanupExpired()
	}
	if swept > 0 {
		s.logger.Debug().Int("expired", swept).Msg("expired memory entries removed")
	}

	for _, gc := range s.collectors {
		if err := gc.CollectGarbage(); err != nil {
			s.logger.Warn().Err(err).Msg("value log GC failed")
		}
	}
}

// String returns the service name for logging.
func (s *CacheMaintenanceService) String() string {
	return s.name
}
