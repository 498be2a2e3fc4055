// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package metrics declares the Prometheus collectors for Mealwise and small
// Record* helpers used by the engine, caches, governor and outbound clients.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation pipeline
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendations served, by status",
		},
		[]string{"status"}, // ai, ai_cached, rule_based, fallback, partial, cached
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SafetyExclusions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_exclusions_total",
			Help: "Candidates excluded by the safety filter, by reason",
		},
		[]string{"reason"},
	)

	CandidatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "candidates_dropped_total",
			Help: "Candidates dropped because their record could not be scored",
		},
	)

	// Layered cache
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by cache, layer and result",
		},
		[]string{"cache", "layer", "result"}, // result: hit, miss
	)

	CacheSingleflightShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_singleflight_shared_total",
			Help: "Lookups that joined an in-flight upstream fetch",
		},
		[]string{"cache"},
	)

	CacheCorruptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_corruptions_total",
			Help: "Corrupt cache entries evicted, by layer",
		},
		[]string{"cache", "layer"},
	)

	// Usage governor
	GovernorRequestsUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "governor_requests_used",
			Help: "External requests charged in the current daily period",
		},
	)

	GovernorCostUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "governor_cost_used_dollars",
			Help: "External cost charged in the current daily period",
		},
	)

	GovernorCacheOnly = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "governor_cache_only",
			Help: "1 when the governor has switched to cache-only mode",
		},
	)

	GovernorWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_warnings_total",
			Help: "Warning-threshold crossings, by limit",
		},
		[]string{"limit"}, // requests, cost
	)

	GovernorRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_rejections_total",
			Help: "External calls refused by the governor, by service",
		},
		[]string{"service"},
	)

	GovernorResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "governor_resets_total",
			Help: "Daily counter resets",
		},
	)

	// AI client
	AICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "AI ranking calls by outcome",
		},
		[]string{"outcome"}, // success, cached, fallback, rate_limited, cost_limited
	)

	AIRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_retries_total",
			Help: "Retried AI attempts",
		},
	)

	AIAttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_attempt_duration_seconds",
			Help:    "Duration of individual AI service attempts",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Calls rejected by the sliding-window limiter",
		},
		[]string{"limiter"},
	)

	// Places client
	PlacesRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_requests_total",
			Help: "Places lookup requests by operation and status code",
		},
		[]string{"operation", "status_code"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Events
	PreferenceInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_invalidations_total",
			Help: "Preference-updated events processed, by result",
		},
		[]string{"result"}, // invalidated, malformed
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordRecommendation records a served recommendation.
func RecordRecommendation(status string, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(status).Inc()
	RecommendationDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss at one cache layer.
func RecordCacheLookup(cache, layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(cache, layer, result).Inc()
}

// UpdateGovernorGauges publishes the governor's current counters.
func UpdateGovernorGauges(requests int64, cost float64, cacheOnly bool) {
	GovernorRequestsUsed.Set(float64(requests))
	GovernorCostUsed.Set(cost)
	if cacheOnly {
		GovernorCacheOnly.Set(1)
	} else {
		GovernorCacheOnly.Set(0)
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
