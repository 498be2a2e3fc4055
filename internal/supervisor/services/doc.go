// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package services provides suture.Service wrappers for Mealwise components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning ctx.Err() on cancellation tells the supervisor the service stopped
on purpose; any other error triggers a restart with backoff.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Drains in-flight requests for a configurable timeout

Cache Maintenance (CacheMaintenanceService):
  - Refreshes predictive cache layers while the cache is idle
  - Sweeps expired memory entries
  - Runs badger value-log garbage collection

Governor Reset (GovernorResetService):
  - Resets the daily usage counters at UTC midnight

The preference-event subscriber (events.InvalidationSubscriber) implements
suture.Service directly and needs no wrapper.

# Usage

	tree.AddAPIService(services.NewHTTPServerService(server, addr, 30*time.Second, logger))
	tree.AddDataService(services.NewGovernorResetService(gov, logger))
*/
package services
