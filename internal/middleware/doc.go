// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: X-Request-ID propagation and generation, with the ID and a fresh
    correlation ID placed on the logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation,
    labelled by chi route pattern rather than raw path

Both are written as func(http.HandlerFunc) http.HandlerFunc and adapted to chi
by the api package:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Inside a handler the request ID is available from either package:

	id := middleware.GetRequestID(r.Context())
	logging.Ctx(r.Context()).Info().Msg("served") // carries request_id

See Also:

  - internal/api: router and handlers
  - internal/metrics: Prometheus metric definitions
*/
package middleware
