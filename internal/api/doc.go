// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package api provides the HTTP surface of Mealwise, routed with chi.

# Endpoints

	POST   /api/v1/recommendations        recommend restaurants for a user
	GET    /api/v1/status                 daily usage, limiter and cache statistics
	GET    /api/v1/preferences/{userID}   read a preference profile
	PUT    /api/v1/preferences/{userID}   create or replace a preference profile
	DELETE /api/v1/preferences/{userID}   delete a preference profile
	GET    /health                        liveness
	GET    /health/ready                  readiness (runs the registered checks)
	GET    /metrics                       Prometheus exposition

# Response Envelope

Every API endpoint answers with models.APIResponse:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "query_time_ms": 45, "request_id": "..."}
	}

Errors carry a stable code and, where useful, details:

	{
	  "status": "error",
	  "data": null,
	  "metadata": {...},
	  "error": {"code": "RATE_LIMIT_EXCEEDED", "message": "...", "details": {"retry_after_seconds": 12}}
	}

Error codes map to HTTP status as follows:

	VALIDATION_ERROR        400 (404 for an unknown profile on the preferences routes)
	RATE_LIMIT_EXCEEDED     429 with Retry-After
	COST_LIMIT_EXCEEDED     503
	EXTERNAL_SERVICE_ERROR  502
	PARSE_ERROR             502
	TIMEOUT                 504
	INTERNAL_ERROR          500

# Middleware

Global: request ID with logging context, real IP, panic recovery, CORS,
security headers. The /api/v1 group adds per-IP throttling (httprate),
Prometheus instrumentation and, when enabled, HS256 bearer authentication.
With authentication on, a token may only act for the user named in its
subject claim.
*/
package api
