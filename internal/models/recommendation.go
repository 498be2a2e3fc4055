// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package models

import (
	"time"
)

// Factor names used in score breakdowns and weight profiles.
const (
	FactorDietary    = "dietary"
	FactorCuisine    = "cuisine"
	FactorPrice      = "price"
	FactorDistance   = "distance"
	FactorContextual = "contextual"
)

// FactorScores is the per-factor breakdown of a candidate's score. Every value lies in [0,1].
type FactorScores struct {
	Dietary    float64 `json:"dietary"`
	Cuisine    float64 `json:"cuisine"`
	Price      float64 `json:"price"`
	Distance   float64 `json:"distance"`
	Contextual float64 `json:"contextual"`
}

// BudgetClass classifies a candidate's cost against the daily allowance.
type BudgetClass string

// Budget classifications.
const (
	BudgetWithin       BudgetClass = "within-budget"
	BudgetSmallStretch BudgetClass = "small-stretch"
	BudgetSaveForLater BudgetClass = "save-for-later"
)

// BudgetMessage is the message category shown alongside a budget classification.
// Presentation layers choose the final wording.
type BudgetMessage string

// Budget message categories.
const (
	MessageFitsAllowance   BudgetMessage = "fits-allowance"
	MessageMinorStretch    BudgetMessage = "minor-stretch"
	MessageDeferToLater    BudgetMessage = "defer-to-later"
	MessageNoBudgetContext BudgetMessage = "no-budget-context"
)

// BudgetImpact is the investment-impact framing for one candidate.
type BudgetImpact struct {
	EstimatedCost  float64       `json:"estimated_cost"`
	DailyAllowance float64       `json:"daily_allowance"`
	Overage        float64       `json:"overage"`
	Class          BudgetClass   `json:"class,omitempty"`
	Message        BudgetMessage `json:"message"`
}

// BudgetSummary aggregates the budget impact of a recommendation list.
type BudgetSummary struct {
	DailyAllowance float64       `json:"daily_allowance"`
	WithinBudget   int           `json:"within_budget"`
	SmallStretch   int           `json:"small_stretch"`
	SaveForLater   int           `json:"save_for_later"`
	Message        BudgetMessage `json:"message"`
}

// ScoredCandidate is a restaurant that passed the safety filter, with its scores.
type ScoredCandidate struct {
	Restaurant     *RestaurantRecord `json:"restaurant"`
	Factors        FactorScores      `json:"factors"`
	Score          float64           `json:"score"`
	Strategy       Strategy          `json:"strategy"`
	DistanceMeters *float64          `json:"distance_meters,omitempty"`
	BudgetImpact   *BudgetImpact     `json:"budget_impact,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// RecommendationStatus records how a recommendation was produced.
type RecommendationStatus string

// Recommendation statuses.
const (
	StatusAI        RecommendationStatus = "ai"
	StatusAICached  RecommendationStatus = "ai_cached"
	StatusRuleBased RecommendationStatus = "rule_based"
	StatusFallback  RecommendationStatus = "fallback"
	StatusPartial   RecommendationStatus = "partial"
	StatusCached    RecommendationStatus = "cached"
)

// Recommendation is the engine's result: a capped, ordered candidate list plus framing.
type Recommendation struct {
	RequestID         string               `json:"request_id,omitempty"`
	UserID            string               `json:"user_id"`
	Candidates        []ScoredCandidate    `json:"candidates"`
	Reasoning         string               `json:"reasoning"`
	Confidence        float64              `json:"confidence"`
	Budget            BudgetSummary        `json:"budget"`
	Strategy          Strategy             `json:"strategy"`
	Status            RecommendationStatus `json:"status"`
	Degradation       string               `json:"degradation,omitempty"`
	RetryAfterSeconds int                  `json:"retry_after_seconds,omitempty"`
	TotalCandidates   int                  `json:"total_candidates"`
	ExcludedForSafety int                  `json:"excluded_for_safety"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

// Clamp01 limits v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
