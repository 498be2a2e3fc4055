// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer identifies one child supervisor of the tree.
type Layer string

const (
	// LayerMaintenance holds background upkeep: cache refresh, GC, usage reset.
	LayerMaintenance Layer = "maintenance-layer"
	// LayerEvents holds preference-event consumers.
	LayerEvents Layer = "events-layer"
	// LayerAPI holds the HTTP server.
	LayerAPI Layer = "api-layer"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c *TreeConfig) applyDefaults() {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
}

// SupervisorTree manages the hierarchical supervisor structure for Mealwise.
//
// A failing event consumer or cache refresh is restarted inside its own layer
// and never takes the API layer down with it; recommendations keep being
// served from whatever the caches hold.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	counts map[Layer]int
	logger *slog.Logger
	config TreeConfig
}

// NewSupervisorTree creates a new supervisor tree with the given configuration.
// Zero config fields take their defaults.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor: logger is required")
	}
	config.applyDefaults()

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	// Children inherit the EventHook when added to the root.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("mealwise", rootSpec)
	layers := make(map[Layer]*suture.Supervisor, 3)
	for _, l := range []Layer{LayerMaintenance, LayerEvents, LayerAPI} {
		layers[l] = suture.New(string(l), childSpec)
		root.Add(layers[l])
	}

	return &SupervisorTree{
		root:   root,
		layers: layers,
		counts: make(map[Layer]int, 3),
		logger: logger,
		config: config,
	}, nil
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// Add places svc under the given layer. Services must be added before Serve.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.layers[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	t.counts[layer]++
	t.logger.Debug("service registered", "layer", string(layer), "service", fmt.Sprint(svc))
	return sup.Add(svc), nil
}

// AddMaintenanceService adds cache maintenance or governor reset services.
func (t *SupervisorTree) AddMaintenanceService(svc suture.Service) suture.ServiceToken {
	token, _ := t.Add(LayerMaintenance, svc)
	return token
}

// AddEventService adds a preference-event consumer.
func (t *SupervisorTree) AddEventService(svc suture.Service) suture.ServiceToken {
	token, _ := t.Add(LayerEvents, svc)
	return token
}

// AddAPIService adds the HTTP server.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	token, _ := t.Add(LayerAPI, svc)
	return token
}

// RemoveEventService stops and removes an event consumer.
func (t *SupervisorTree) RemoveEventService(token suture.ServiceToken) error {
	return t.layers[LayerEvents].Remove(token)
}

// ServiceCount reports how many services were added to layer.
func (t *SupervisorTree) ServiceCount(layer Layer) int {
	return t.counts[layer]
}

// Serve starts the tree and blocks until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	t.logger.Info("supervisor tree starting",
		"maintenance", t.counts[LayerMaintenance],
		"events", t.counts[LayerEvents],
		"api", t.counts[LayerAPI])
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a goroutine. The channel receives the
// result when the tree stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
