// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
)

type testStack struct {
	clock      *fakeClock
	memory     *MemoryLayer
	persistent *PersistentLayer
	predictive *PredictiveLayer
	manager    *Manager
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	clock := newFakeClock()
	clock.now = time.Now()

	s := &testStack{
		clock:      clock,
		memory:     NewMemoryLayer(100, 5*time.Minute, clock.Now),
		persistent: NewPersistentLayer(openTestBadger(t), "test", 24*time.Hour, clock.Now),
		predictive: NewPredictiveLayer(6*time.Hour, clock.Now),
	}
	s.manager = NewManager(ManagerConfig{
		Name:           "test",
		DefaultTTL:     time.Hour,
		LoadTimeout:    5 * time.Second,
		PredictiveTopK: 5,
		Clock:          clock.Now,
	}, zerolog.Nop(), s.predictive, s.memory, s.persistent)
	return s
}

// countingLoader returns payload and counts invocations.
func countingLoader(payload string, calls *atomic.Int64) Loader {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(payload), nil
	}
}

func TestManager_ConcurrentMissesShareOneLoad(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)

	var calls atomic.Int64
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`"result"`), nil
	}

	const callers = 25
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, _, err := s.manager.Fetch(context.Background(), Request{Key: "k", Load: load})
			results[i], errs[i] = string(data), err
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	for i := range results {
		if errs[i] != nil || results[i] != `"result"` {
			t.Errorf("caller %d got %q, %v", i, results[i], errs[i])
		}
	}
}

func TestManager_SequentialRequestsHitMemory(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	var calls atomic.Int64
	req := Request{Key: "k", Load: countingLoader("v", &calls)}

	_, src, err := s.manager.Fetch(ctx, req)
	if err != nil || src != SourceUpstream {
		t.Fatalf("first Fetch source=%q err=%v", src, err)
	}
	_, src, err = s.manager.Fetch(ctx, req)
	if err != nil || src != LayerMemory {
		t.Fatalf("second Fetch source=%q err=%v", src, err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}

	// Write-through reached the persistent layer too.
	if _, err := s.persistent.Get(ctx, "k"); err != nil {
		t.Errorf("persistent Get: %v", err)
	}
}

func TestManager_PersistentHitBackfillsMemory(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	_ = s.persistent.Set(ctx, NewEntry("k", "", []byte("stored"), s.clock.Now(), time.Hour))

	var calls atomic.Int64
	data, src, err := s.manager.Fetch(ctx, Request{Key: "k", Load: countingLoader("fresh", &calls)})
	if err != nil {
		t.Fatal(err)
	}
	if src != LayerPersistent || string(data) != "stored" {
		t.Errorf("Fetch() = %q from %q, want stored from persistent", data, src)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream called %d times on a persistent hit", calls.Load())
	}
	if _, err := s.memory.Get(ctx, "k"); err != nil {
		t.Errorf("memory not back-filled: %v", err)
	}
}

func TestManager_CorruptEntryRefetchedOnce(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	putRaw(t, s.persistent, "k", []byte("not an envelope"))

	var calls atomic.Int64
	data, src, err := s.manager.Fetch(ctx, Request{Key: "k", Load: countingLoader("fresh", &calls)})
	if err != nil {
		t.Fatal(err)
	}
	if src != SourceUpstream || string(data) != "fresh" {
		t.Errorf("Fetch() = %q from %q", data, src)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
	if e, err := s.persistent.Get(ctx, "k"); err != nil || string(e.Payload) != "fresh" {
		t.Errorf("persistent not repaired: %v", err)
	}
	if s.manager.Stats().Corruptions != 1 {
		t.Errorf("Corruptions = %d, want 1", s.manager.Stats().Corruptions)
	}
}

func TestManager_LoaderErrorNotCached(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	boom := errors.New("upstream down")
	_, _, err := s.manager.Fetch(ctx, Request{Key: "k", Load: func(context.Context) ([]byte, error) { return nil, boom }})
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch error = %v, want %v", err, boom)
	}
	if _, _, err := s.manager.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after failed load = %v, want ErrMiss", err)
	}
}

func TestManager_WaiterCancellation(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)

	release := make(chan struct{})
	defer close(release)
	load := func(context.Context) ([]byte, error) {
		<-release
		return []byte("late"), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := s.manager.Fetch(ctx, Request{Key: "k", Load: load})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch error = %v, want deadline exceeded", err)
	}
}

func TestFetchJSON_UndecodableCacheEntryRefetched(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	// Intact checksum, but not the JSON the caller expects.
	_ = s.memory.Set(ctx, NewEntry("k", "", []byte("{broken"), s.clock.Now(), time.Hour))

	var calls atomic.Int64
	got, src, err := FetchJSON[[]string](ctx, s.manager, Request{Key: "k", Load: countingLoader(`["a","b"]`, &calls)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || src != SourceUpstream {
		t.Errorf("FetchJSON() = %v from %q", got, src)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}

func TestFetchJSON_UpstreamGarbageIsParseError(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)

	var calls atomic.Int64
	_, _, err := FetchJSON[map[string]int](context.Background(), s.manager, Request{Key: "k", Load: countingLoader("<html>", &calls)})
	if !errors.Is(err, models.ErrParse) {
		t.Errorf("FetchJSON error = %v, want parse error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}

func TestManager_PredictiveRefreshAndInvalidation(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	var calls atomic.Int64
	hot := Request{Key: "hot", Owner: "user-1", Load: countingLoader("hot", &calls)}
	other := Request{Key: "other", Owner: "user-2", Load: countingLoader("other", &calls)}
	for i := 0; i < 3; i++ {
		_, _, _ = s.manager.Fetch(ctx, hot)
	}
	_, _, _ = s.manager.Fetch(ctx, other)

	n, err := s.manager.RefreshPredictive(ctx)
	if err != nil || n != 2 {
		t.Fatalf("RefreshPredictive() = %d, %v; want 2, nil", n, err)
	}
	if s.predictive.Len() != 2 {
		t.Fatalf("predictive Len() = %d, want 2", s.predictive.Len())
	}

	// memory, persistent and predictive each held "hot".
	if removed := s.manager.InvalidateUser("user-1"); removed != 3 {
		t.Errorf("InvalidateUser() = %d, want 3", removed)
	}
	for _, layer := range []Layer{s.memory, s.persistent, s.predictive} {
		if _, err := layer.Get(ctx, "hot"); !errors.Is(err, ErrMiss) {
			t.Errorf("%s: owned entry survived invalidation: %v", layer.Name(), err)
		}
		if _, err := layer.Get(ctx, "other"); err != nil {
			t.Errorf("%s: unrelated entry dropped: %v", layer.Name(), err)
		}
	}

	// Forgotten keys are not refreshed again.
	n, _ = s.manager.RefreshPredictive(ctx)
	if n != 1 {
		t.Errorf("second refresh = %d, want 1", n)
	}
}

func TestManager_PredictiveServesAfterMemoryExpiry(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	memory := NewMemoryLayer(10, time.Minute, clock.Now)
	predictive := NewPredictiveLayer(time.Hour, clock.Now)
	m := NewManager(ManagerConfig{Name: "test", DefaultTTL: time.Hour, Clock: clock.Now}, zerolog.Nop(), predictive, memory)
	ctx := context.Background()

	var calls atomic.Int64
	req := Request{Key: "k", Load: countingLoader("v", &calls)}
	_, _, _ = m.Fetch(ctx, req)
	if _, err := m.RefreshPredictive(ctx); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	_, src, err := m.Fetch(ctx, req)
	if err != nil || src != LayerPredictive {
		t.Fatalf("Fetch source=%q err=%v, want predictive", src, err)
	}
	if _, err := memory.Get(ctx, "k"); err != nil {
		t.Errorf("memory not back-filled from predictive: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2 (initial load and refresh)", calls.Load())
	}

	stats := m.Stats()
	if stats.LayerHits[LayerPredictive] != 1 {
		t.Errorf("LayerHits = %v", stats.LayerHits)
	}
}

func TestManager_Idle(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)

	if _, busy := s.manager.Idle(); busy {
		t.Error("fresh manager reports busy")
	}
	_, _, _ = s.manager.Get(context.Background(), "k")
	s.clock.Advance(45 * time.Second)

	idle, _ := s.manager.Idle()
	if idle != 45*time.Second {
		t.Errorf("Idle() = %v, want 45s", idle)
	}
}

func TestManager_InvalidateUserClearsBackfilledEntries(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	var calls atomic.Int64
	req := Request{Key: "ai:alice", Owner: "alice", Load: countingLoader("old-prefs-answer", &calls)}
	if _, _, err := s.manager.Fetch(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := s.manager.RefreshPredictive(ctx); err != nil {
		t.Fatal(err)
	}
	_ = s.memory.Delete(ctx, req.Key)
	_ = s.persistent.Delete(ctx, req.Key)

	if _, src, err := s.manager.Get(ctx, req.Key); err != nil || src != LayerPredictive {
		t.Fatalf("Get source=%q err=%v, want predictive", src, err)
	}
	if _, err := s.memory.Get(ctx, req.Key); err != nil {
		t.Fatalf("predictive hit did not back-fill memory: %v", err)
	}

	s.manager.InvalidateUser("alice")

	if data, src, err := s.manager.Get(ctx, req.Key); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after invalidation = %q from %q, %v; want miss", data, src, err)
	}
}

func TestManager_InvalidationDuringLoadIsNotCached(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	req := Request{Key: "ai:bob", Owner: "bob", Load: func(context.Context) ([]byte, error) {
		s.manager.InvalidateUser("bob")
		return []byte("computed-before-write"), nil
	}}
	data, src, err := s.manager.Fetch(ctx, req)
	if err != nil || string(data) != "computed-before-write" || src != SourceUpstream {
		t.Fatalf("Fetch = %q, %q, %v", data, src, err)
	}
	if _, _, err := s.manager.Get(ctx, req.Key); !errors.Is(err, ErrMiss) {
		t.Errorf("stale load was cached: %v", err)
	}
}

func TestManager_InvalidationDuringRefreshIsNotCached(t *testing.T) {
	t.Parallel()
	s := newTestStack(t)
	ctx := context.Background()

	var calls atomic.Int64
	req := Request{Key: "ai:carol", Owner: "carol", Load: func(context.Context) ([]byte, error) {
		if calls.Add(1) > 1 {
			s.manager.InvalidateUser("carol")
		}
		return []byte("answer"), nil
	}}
	if _, _, err := s.manager.Fetch(ctx, req); err != nil {
		t.Fatal(err)
	}

	n, err := s.manager.RefreshPredictive(ctx)
	if err != nil || n != 0 {
		t.Errorf("RefreshPredictive() = %d, %v; want 0, nil", n, err)
	}
	if s.predictive.Len() != 0 {
		t.Errorf("predictive Len() = %d, want 0 after mid-refresh invalidation", s.predictive.Len())
	}
}
