// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package governor enforces the daily request quota and cost cap on external
// calls. Once either limit is reached the governor is in cache-only mode until
// the next UTC midnight.
package governor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/metrics"
	"github.com/tomtom215/mealwise/internal/models"
)

// Limit names used in warnings and CostLimitError.
const (
	LimitRequests = "request quota"
	LimitCost     = "cost cap"
)

// Config holds the daily limits.
type Config struct {
	// DailyRequestQuota is the number of external calls allowed per day.
	// Default: 1000
	DailyRequestQuota int64

	// DailyCostCap is the dollar spend allowed per day.
	// Default: 5.00
	DailyCostCap float64

	// WarnFraction of either limit triggers a one-time warning per day.
	// Default: 0.80
	WarnFraction float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DailyRequestQuota: 1000,
		DailyCostCap:      5.00,
		WarnFraction:      0.80,
	}
}

// Warning is delivered when usage first crosses WarnFraction of a limit.
type Warning struct {
	Limit       string
	Used        float64
	Max         float64
	PeriodStart time.Time
}

// Governor tracks daily usage. All methods are safe for concurrent use.
type Governor struct {
	cfg    Config
	clock  func() time.Time
	logger zerolog.Logger
	onWarn func(Warning)

	mu          sync.Mutex
	periodStart time.Time
	requests    int64
	cost        float64
	cacheOnly   bool
	warned      map[string]bool
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(g *Governor) { g.clock = clock }
}

// WithWarningHandler registers a callback for 80% warnings. It runs outside the
// governor's lock.
func WithWarningHandler(fn func(Warning)) Option {
	return func(g *Governor) { g.onWarn = fn }
}

// New creates a governor for the current period.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Governor {
	def := DefaultConfig()
	if cfg.DailyRequestQuota <= 0 {
		cfg.DailyRequestQuota = def.DailyRequestQuota
	}
	if cfg.DailyCostCap <= 0 {
		cfg.DailyCostCap = def.DailyCostCap
	}
	if cfg.WarnFraction <= 0 || cfg.WarnFraction > 1 {
		cfg.WarnFraction = def.WarnFraction
	}

	g := &Governor{
		cfg:    cfg,
		clock:  time.Now,
		logger: logger.With().Str("component", "governor").Logger(),
		warned: make(map[string]bool, 2),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.periodStart = PeriodStart(g.clock())
	return g
}

// PeriodStart returns the UTC midnight that starts the period containing t.
func PeriodStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextReset returns the next UTC midnight after t.
func NextReset(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 0, 1)
}

// Reserve admits and charges one call to service at the given cost. It returns a
// *models.CostLimitError when the quota or cap is exhausted, or would be
// exceeded by this call; in that case nothing is charged.
func (g *Governor) Reserve(service string, cost float64) error {
	if cost < 0 {
		cost = 0
	}

	g.mu.Lock()
	g.rolloverLocked(g.clock())

	if err := g.admitLocked(cost); err != nil {
		g.cacheOnly = true
		g.publishLocked()
		g.mu.Unlock()

		metrics.GovernorRejections.WithLabelValues(service).Inc()
		g.logger.Warn().Str("service", service).Err(err).Msg("External call refused, cache-only mode")
		return err
	}

	g.requests++
	g.cost += cost
	if g.requests >= g.cfg.DailyRequestQuota || g.cost >= g.cfg.DailyCostCap {
		g.cacheOnly = true
		g.logger.Warn().
			Int64("requests", g.requests).
			Float64("cost", g.cost).
			Msg("Daily limit reached, entering cache-only mode")
	}
	warnings := g.warningsLocked()
	g.publishLocked()
	g.mu.Unlock()

	g.deliver(warnings)
	return nil
}

func (g *Governor) admitLocked(cost float64) error {
	switch {
	case g.requests+1 > g.cfg.DailyRequestQuota:
		return &models.CostLimitError{Limit: LimitRequests, Used: float64(g.requests), Max: float64(g.cfg.DailyRequestQuota)}
	case g.cost+cost > g.cfg.DailyCostCap:
		return &models.CostLimitError{Limit: LimitCost, Used: g.cost, Max: g.cfg.DailyCostCap}
	case g.cacheOnly:
		return &models.CostLimitError{Limit: LimitRequests, Used: float64(g.requests), Max: float64(g.cfg.DailyRequestQuota)}
	}
	return nil
}

// warningsLocked returns the warnings newly crossed this period.
func (g *Governor) warningsLocked() []Warning {
	var out []Warning
	if !g.warned[LimitRequests] && float64(g.requests) >= g.cfg.WarnFraction*float64(g.cfg.DailyRequestQuota) {
		g.warned[LimitRequests] = true
		out = append(out, Warning{Limit: LimitRequests, Used: float64(g.requests), Max: float64(g.cfg.DailyRequestQuota), PeriodStart: g.periodStart})
	}
	if !g.warned[LimitCost] && g.cost >= g.cfg.WarnFraction*g.cfg.DailyCostCap {
		g.warned[LimitCost] = true
		out = append(out, Warning{Limit: LimitCost, Used: g.cost, Max: g.cfg.DailyCostCap, PeriodStart: g.periodStart})
	}
	return out
}

func (g *Governor) deliver(warnings []Warning) {
	for _, w := range warnings {
		metrics.GovernorWarnings.WithLabelValues(w.Limit).Inc()
		g.logger.Warn().
			Str("limit", w.Limit).
			Float64("used", w.Used).
			Float64("max", w.Max).
			Msg("Daily usage crossed warning threshold")
		if g.onWarn != nil {
			g.onWarn(w)
		}
	}
}

// CacheOnly reports whether external calls are currently refused.
func (g *Governor) CacheOnly() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(g.clock())
	return g.cacheOnly
}

// LimitError returns the CostLimitError for the exhausted limit while the
// governor is in cache-only mode, and nil otherwise.
func (g *Governor) LimitError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(g.clock())
	if !g.cacheOnly {
		return nil
	}
	if g.requests >= g.cfg.DailyRequestQuota {
		return &models.CostLimitError{Limit: LimitRequests, Used: float64(g.requests), Max: float64(g.cfg.DailyRequestQuota)}
	}
	return &models.CostLimitError{Limit: LimitCost, Used: g.cost, Max: g.cfg.DailyCostCap}
}

// Rollover resets the counters if now is in a later period than the current
// one. It reports whether a reset happened. Each boundary resets exactly once.
func (g *Governor) Rollover(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rolloverLocked(now)
}

func (g *Governor) rolloverLocked(now time.Time) bool {
	start := PeriodStart(now)
	if !start.After(g.periodStart) {
		return false
	}

	g.logger.Info().
		Time("previous_period", g.periodStart).
		Time("period", start).
		Int64("requests", g.requests).
		Float64("cost", g.cost).
		Msg("Daily usage counters reset")

	g.periodStart = start
	g.requests = 0
	g.cost = 0
	g.cacheOnly = false
	clear(g.warned)

	metrics.GovernorResets.Inc()
	g.publishLocked()
	return true
}

func (g *Governor) publishLocked() {
	metrics.UpdateGovernorGauges(g.requests, g.cost, g.cacheOnly)
}

// Status returns a snapshot of the governor's counters. Limiter and cache fields
// are left for the caller to fill.
func (g *Governor) Status() models.UsageStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(g.clock())

	var notice string
	switch {
	case g.cacheOnly:
		notice = "daily limit reached, serving from cache only"
	case g.warned[LimitRequests] && g.warned[LimitCost]:
		notice = "request quota and cost cap above warning threshold"
	case g.warned[LimitRequests]:
		notice = "request quota above warning threshold"
	case g.warned[LimitCost]:
		notice = "cost cap above warning threshold"
	}

	remaining := g.cfg.DailyRequestQuota - g.requests
	if remaining < 0 {
		remaining = 0
	}

	return models.UsageStatus{
		PeriodStart:    g.periodStart,
		DailyCost:      g.cost,
		DailyCostCap:   g.cfg.DailyCostCap,
		RequestsUsed:   g.requests,
		RequestQuota:   g.cfg.DailyRequestQuota,
		RemainingQuota: remaining,
		CacheOnly:      g.cacheOnly,
		Warning:        notice != "",
		Notice:         notice,
	}
}
