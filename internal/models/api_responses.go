// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package models

import (
	"time"
)

// APIResponse is the envelope returned by every HTTP endpoint.
//
// Status is "success" with Data populated, or "error" with Error populated:
//
//	{
//	  "status": "success",
//	  "data": {"candidates": [...], "status": "rule_based"},
//	  "metadata": {"timestamp": "2026-10-19T12:00:00Z", "query_time_ms": 45}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is the structured error body. Code is one of the Code* constants.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RecommendationRequest is the body of POST /api/v1/recommendations.
type RecommendationRequest struct {
	UserID     string             `json:"user_id" validate:"required,max=128"`
	Context    FilterContext      `json:"context"`
	Candidates []RestaurantRecord `json:"candidates,omitempty" validate:"max=1000"`
}

// UsageStatus is the answer to the usage/status query.
type UsageStatus struct {
	PeriodStart      time.Time             `json:"period_start"`
	DailyCost        float64               `json:"daily_cost"`
	DailyCostCap     float64               `json:"daily_cost_cap"`
	RequestsUsed     int64                 `json:"requests_used"`
	RequestQuota     int64                 `json:"request_quota"`
	RemainingQuota   int64                 `json:"remaining_quota"`
	CacheOnly        bool                  `json:"cache_only"`
	Warning          bool                  `json:"warning"`
	Notice           string                `json:"notice,omitempty"`
	RateLimiterInUse int                   `json:"rate_limiter_in_use"`
	RateLimiterLimit int                   `json:"rate_limiter_limit"`
	Caches           map[string]CacheStats `json:"caches"`
}

// CacheStats summarizes one layered cache.
type CacheStats struct {
	Hits        int64            `json:"hits"`
	Misses      int64            `json:"misses"`
	HitRate     float64          `json:"hit_rate"`
	LayerHits   map[string]int64 `json:"layer_hits"`
	Corruptions int64            `json:"corruptions"`
	Coalesced   int64            `json:"coalesced"`
}
