// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package ai re-ranks rule-scored candidates with a generative model.

The Client never fails a recommendation. Each call goes through these steps:

  - The response cache is consulted first. A hit costs nothing and skips the
    rate limiter and the governor.
  - On a miss, each attempt passes the sliding-window limiter, reserves its cost
    with the governor, calls the Generator under a per-attempt timeout and
    parses the answer.
  - Timeouts, network failures, 5xx and 429 responses are retried with
    exponential backoff and jitter. Parse, auth, rate-limit and cost-limit
    failures end the call at once.
  - Any failure returns the rule-based order with status fallback and the
    error code in Degradation.

While the governor is in cache-only mode, only cached answers are served.

HTTPGenerator speaks the OpenAI chat completions protocol and sits behind a
circuit breaker. An open breaker is reported as a retryable service error.
*/
package ai
