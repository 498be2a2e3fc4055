// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// fakeService implements suture.Service, failing the first maxFails runs.
type fakeService struct {
	name     string
	maxFails int32
	starts   atomic.Int32
	fails    atomic.Int32
}

func (f *fakeService) Serve(ctx context.Context) error {
	f.starts.Add(1)
	if f.maxFails > 0 && f.fails.Add(1) <= f.maxFails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeService) String() string { return f.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSupervisorTree(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults for zero config", func(t *testing.T) {
		t.Parallel()
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("NewSupervisorTree: %v", err)
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("config = %+v, want %+v", tree.config, DefaultTreeConfig())
		}
		if tree.Root() == nil {
			t.Error("root supervisor is nil")
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		t.Parallel()
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{FailureBackoff: time.Second})
		if err != nil {
			t.Fatalf("NewSupervisorTree: %v", err)
		}
		if tree.config.FailureBackoff != time.Second {
			t.Errorf("FailureBackoff = %v, want 1s", tree.config.FailureBackoff)
		}
	})

	t.Run("requires logger", func(t *testing.T) {
		t.Parallel()
		if _, err := NewSupervisorTree(nil, TreeConfig{}); err == nil {
			t.Error("expected error for nil logger")
		}
	})
}

func TestSupervisorTree_Add(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{})
	tree.AddMaintenanceService(&fakeService{name: "cache-maintenance"})
	tree.AddMaintenanceService(&fakeService{name: "governor-reset"})
	tree.AddEventService(&fakeService{name: "invalidation"})
	tree.AddAPIService(&fakeService{name: "http"})

	if _, err := tree.Add(Layer("storage-layer"), &fakeService{name: "x"}); err == nil {
		t.Error("Add accepted an unknown layer")
	}

	tests := []struct {
		layer Layer
		want  int
	}{
		{LayerMaintenance, 2},
		{LayerEvents, 1},
		{LayerAPI, 1},
	}
	for _, tt := range tests {
		if got := tree.ServiceCount(tt.layer); got != tt.want {
			t.Errorf("ServiceCount(%s) = %d, want %d", tt.layer, got, tt.want)
		}
	}
}

func TestSupervisorTree_Lifecycle(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	services := []*fakeService{{name: "maintenance"}, {name: "events"}, {name: "api"}}
	tree.AddMaintenanceService(services[0])
	tree.AddEventService(services[1])
	tree.AddAPIService(services[2])

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tree.Serve(ctx) }()

	for _, svc := range services {
		waitFor(t, func() bool { return svc.starts.Load() >= 1 })
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}

func TestSupervisorTree_ServeBackground(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	select {
	case err := <-tree.ServeBackground(ctx):
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("did not receive from error channel")
	}
}

func TestSupervisorTree_RestartIsolation(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	failing := &fakeService{name: "invalidation", maxFails: 2}
	stable := &fakeService{name: "http"}
	tree.AddEventService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	waitFor(t, func() bool { return failing.starts.Load() >= 3 })
	if got := stable.starts.Load(); got != 1 {
		t.Errorf("stable service started %d times, want 1", got)
	}
}

func TestSupervisorTree_RemoveEventService(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := &fakeService{name: "invalidation"}
	token := tree.AddEventService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)
	waitFor(t, func() bool { return svc.starts.Load() >= 1 })

	if err := tree.RemoveEventService(token); err != nil {
		t.Errorf("RemoveEventService: %v", err)
	}
}
