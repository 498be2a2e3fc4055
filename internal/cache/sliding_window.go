// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most limit events in any window-length interval.
// It keeps the admission timestamps themselves in a ring buffer, so the count is
// exact rather than bucketed.
//
// Complexity:
//   - Allow: O(k) amortized where k = timestamps expired since the last call
//   - Memory: O(limit)
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	stamps []time.Time // ring buffer of admissions, oldest at head
	head   int
	count  int
	window time.Duration
	clock  Clock
}

// NewSlidingWindowLimiter creates a limiter admitting limit events per window.
func NewSlidingWindowLimiter(limit int, window time.Duration, clock Clock) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindowLimiter{
		stamps: make([]time.Time, limit),
		window: window,
		clock:  clock,
	}
}

// Allow records an admission and returns true when the window has room. When it
// is full, Allow returns false and how long until the oldest admission leaves the
// window. The wait is always positive on rejection.
func (l *SlidingWindowLimiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.expire(now)

	if l.count < len(l.stamps) {
		l.stamps[(l.head+l.count)%len(l.stamps)] = now
		l.count++
		return true, 0
	}

	wait := l.stamps[l.head].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// InUse returns the number of admissions inside the current window.
func (l *SlidingWindowLimiter) InUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(l.clock())
	return l.count
}

// Limit returns the configured admissions per window.
func (l *SlidingWindowLimiter) Limit() int {
	return len(l.stamps)
}

// Window returns the window length.
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

// expire drops admissions at or before now-window (must be called with mu held).
func (l *SlidingWindowLimiter) expire(now time.Time) {
	cutoff := now.Add(-l.window)
	for l.count > 0 && !l.stamps[l.head].After(cutoff) {
		l.stamps[l.head] = time.Time{}
		l.head = (l.head + 1) % len(l.stamps)
		l.count--
	}
}
