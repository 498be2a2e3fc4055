// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package supervisor provides process supervision for Mealwise using suture v4.

Long-running components are organized into a tree of supervisors so a crash
in one layer is restarted in place without disturbing the others:

	RootSupervisor ("mealwise")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── CacheMaintenanceService
	│   └── GovernorResetService
	├── EventsSupervisor ("events-layer")
	│   └── events.InvalidationSubscriber
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

The recommendation engine itself is not supervised: it is a library called
from HTTP handlers and holds no goroutines of its own.

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds. When
the counter exceeds FailureThreshold the layer waits FailureBackoff before the
next restart. Defaults match suture's (5 failures, 30s decay, 15s backoff,
10s shutdown timeout).

Return behavior for services:
  - ctx.Err() after cancellation: orderly shutdown
  - any other error: crash, restarted with backoff
  - nil: stopped, not restarted

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMaintenanceService(maintenance)
	tree.AddEventService(subscriber)
	tree.AddAPIService(services.NewHTTPServerService(server, addr, 30*time.Second, logger))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

Supervisor events are logged through sutureslog, bridged to zerolog by
logging.NewSlogLogger.

If services do not stop in time, UnstoppedServiceReport lists them.
*/
package supervisor
