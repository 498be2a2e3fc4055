// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package main is the entry point for the Mealwise server.

Mealwise ranks restaurants for a user by combining a hard dietary safety
filter, strategy-weighted scoring and optional AI re-ranking, all under a
daily usage governor.

# Application Architecture

	RootSupervisor ("mealwise")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── Cache maintenance (predictive refresh, expiry sweep, badger GC)
	│   └── Governor reset (UTC midnight)
	├── EventsSupervisor ("events-layer")
	│   └── Preference invalidation subscriber
	└── APISupervisor ("api-layer")
	    └── HTTP server (chi)

Initialization order:

 1. .env file (optional, godotenv) and configuration (koanf v2)
 2. Logging (zerolog)
 3. Event transport (watermill: in-process channel or NATS)
 4. Preference store (memory or PostgreSQL)
 5. Caches (memory LRU, badger, predictive)
 6. Usage governor, AI client, restaurant catalog
 7. Recommendation engine and HTTP router
 8. Supervisor tree

# Example Usage

Local development with a static catalog and no AI:

	export PLACES_ENABLED=true
	export PLACES_CATALOG_PATH=./testdata/restaurants.json
	export PREFERENCES_SEED_PATH=./testdata/profiles.json
	export LOG_FORMAT=console
	./mealwise

Production with AI ranking, PostgreSQL and NATS:

	export AI_ENABLED=true
	export AI_API_KEY=sk-...
	export PREFERENCES_BACKEND=postgres
	export DATABASE_URL=postgres://mealwise@db/mealwise?sslmode=require
	export EVENTS_BACKEND=nats
	export NATS_URL=nats://nats:4222
	export AUTH_ENABLED=true
	export JWT_SECRET=$(openssl rand -base64 32)
	./mealwise

SIGINT and SIGTERM cancel the tree; the HTTP server drains in-flight
requests for HTTP_SHUTDOWN_TIMEOUT before the stores are closed.
*/
package main
