// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package retry runs operations under a bounded exponential backoff with jitter.
// Non-retryable errors stop immediately, and an upstream Retry-After hint
// stretches the next wait when it is longer than the computed backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/mealwise/internal/models"
)

// Policy configures the backoff schedule.
type Policy struct {
	// MaxAttempts includes the first call.
	// Default: 3
	MaxAttempts int

	// InitialInterval is the first wait.
	// Default: 500ms
	InitialInterval time.Duration

	// MaxInterval caps any single wait.
	// Default: 8s
	MaxInterval time.Duration

	// Multiplier grows the wait after each attempt.
	// Default: 2
	Multiplier float64

	// RandomizationFactor is the jitter fraction, 0 disables it.
	// Default: 0.5
	RandomizationFactor float64
}

// DefaultPolicy returns the AI call defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         8 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

// Notify is called before each wait with the attempt that just failed.
type Notify func(attempt int, err error, wait time.Duration)

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Do runs op until it succeeds, returns an error retryable rejects, the attempts
// run out or ctx ends. The last operation error is returned unwrapped, except
// that a context error wins once ctx is done.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op Operation, notify Notify) error {
	if retryable == nil {
		retryable = models.IsRetryable
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expo.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		expo.Multiplier = p.Multiplier
	}
	expo.RandomizationFactor = p.RandomizationFactor
	expo.MaxElapsedTime = 0 // attempts bound the loop, ctx bounds the time
	expo.Reset()

	hinted := &hintedBackOff{BackOff: backoff.WithMaxRetries(expo, uint64(p.MaxAttempts-1))}
	policy := backoff.WithContext(hinted, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		hinted.hint = retryAfterHint(err)
		return err
	}

	var onWait backoff.Notify
	if notify != nil {
		onWait = func(err error, wait time.Duration) { notify(attempt, err, wait) }
	}

	return backoff.RetryNotify(operation, policy, onWait)
}

// hintedBackOff waits at least as long as the last Retry-After hint.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if h.hint > next {
		next = h.hint
	}
	h.hint = 0
	return next
}

func retryAfterHint(err error) time.Duration {
	var ext *models.ExternalServiceError
	if errors.As(err, &ext) {
		return ext.RetryAfter
	}
	return 0
}
