// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package breaker builds the circuit breakers that guard outbound collaborators
// (the AI service and the places lookup) and reports their state as metrics.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mealwise/internal/logging"
	"github.com/tomtom215/mealwise/internal/metrics"
)

// Config tunes a breaker.
type Config struct {
	// MaxRequests allowed through while half-open.
	// Default: 3
	MaxRequests uint32

	// Interval after which closed-state counts reset.
	// Default: 1m
	Interval time.Duration

	// Timeout spent open before probing again.
	// Default: 30s
	Timeout time.Duration

	// MinRequests before the failure ratio is considered.
	// Default: 10
	MinRequests uint32

	// FailureRatio at or above which the breaker opens.
	// Default: 0.6
	FailureRatio float64

	// IsSuccessful classifies errors that should not count as failures
	// (a 400 from upstream is the caller's fault, not the service's).
	IsSuccessful func(err error) bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// New creates a named breaker whose transitions are logged and exported.
func New[T any](name string, cfg Config) *gobreaker.CircuitBreaker[T] {
	def := DefaultConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = def.FailureRatio
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: cfg.IsSuccessful,
	})
}

// Rejected reports whether err is the breaker refusing a call rather than the
// call itself failing.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
