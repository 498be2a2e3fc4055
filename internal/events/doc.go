// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package events carries preference-updated notifications over Watermill.
//
// A preference write publishes a PreferenceUpdated event. The
// InvalidationSubscriber consumes the topic and drops the predictive cache
// entries and popularity records owned by that user, so precomputed answers
// never outlive the profile they were computed for.
//
// Two transports are supported:
//
//   - memory: Watermill's gochannel pub/sub, for a single process
//   - nats: watermill-nats over NATS JetStream, for external writers and
//     multiple replicas
package events
