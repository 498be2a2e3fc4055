// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRollover struct {
	mu    sync.Mutex
	calls []time.Time
	done  chan struct{}
}

func (f *fakeRollover) Rollover(now time.Time) bool {
	f.mu.Lock()
	f.calls = append(f.calls, now)
	f.mu.Unlock()
	select {
	case f.done <- struct{}{}:
	default:
	}
	return true
}

func TestGovernorResetService_WaitsUntilMidnight(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	roll := &fakeRollover{done: make(chan struct{}, 1)}
	svc := NewGovernorResetService(roll, zerolog.Nop())

	var mu sync.Mutex
	now := start
	svc.clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	waits := make(chan time.Duration, 4)
	fire := make(chan time.Time)
	svc.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return fire
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	if got, want := <-waits, time.Hour+time.Second; got != want {
		t.Errorf("first wait = %v, want %v", got, want)
	}

	mu.Lock()
	now = start.Add(time.Hour + time.Second)
	mu.Unlock()
	fire <- now

	select {
	case <-roll.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Rollover not called")
	}

	// The next wait targets the following midnight.
	if got, want := <-waits, 24*time.Hour; got != want {
		t.Errorf("second wait = %v, want %v", got, want)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}

	roll.mu.Lock()
	defer roll.mu.Unlock()
	if len(roll.calls) != 1 || !roll.calls[0].Equal(start.Add(time.Hour+time.Second)) {
		t.Errorf("Rollover calls = %v", roll.calls)
	}
}

func TestGovernorResetService_String(t *testing.T) {
	t.Parallel()

	if got := NewGovernorResetService(&fakeRollover{}, zerolog.Nop()).String(); got != "governor-reset" {
		t.Errorf("String() = %q", got)
	}
}
