// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/mealwise/internal/models"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// MaxResults caps every Recommendation's candidate list.
	// Default: 10
	MaxResults int `json:"max_results"`

	// StrictThreshold is the strictness at or above which a restriction is
	// enforced by the safety filter instead of scored.
	// Default: 4
	StrictThreshold int `json:"strict_threshold"`

	// AITopN is how many rule-ranked candidates are offered to the AI ranker.
	// Default: 20
	AITopN int `json:"ai_top_n"`

	// ParallelScoringThreshold is the candidate count at which scoring fans out.
	// Default: 200
	ParallelScoringThreshold int `json:"parallel_scoring_threshold"`

	// RequestTimeout bounds one GetRecommendations call end to end.
	// Default: 30s
	RequestTimeout time.Duration `json:"request_timeout"`

	// ResultCacheSize bounds the last-good-result cache used on timeout.
	// Default: 512
	ResultCacheSize int `json:"result_cache_size"`

	// ResultCacheTTL is how long a last-good result stays usable.
	// Default: 1h
	ResultCacheTTL time.Duration `json:"result_cache_ttl"`

	// EnrichDetailsLimit is how many searched candidates with missing safety
	// data are looked up by id before filtering. Zero disables enrichment.
	// Default: 10
	EnrichDetailsLimit int `json:"enrich_details_limit"`

	// DiversityLambda balances score against cuisine variety when ordering
	// exploration results. Values outside (0, 1) disable the reordering.
	// Default: 0 (disabled)
	DiversityLambda float64 `json:"diversity_lambda"`

	// Weights holds one weight profile per strategy.
	Weights map[models.Strategy]WeightProfile `json:"weights"`

	// Strategy configures the strategy selector.
	Strategy StrategyConfig `json:"strategy"`

	// Budget configures the budget impact calculator.
	Budget BudgetConfig `json:"budget"`

	// Restrictions and Allergens narrow the recognized categories. Empty means
	// every built-in category.
	Restrictions []models.DietaryRestriction `json:"restrictions"`
	Allergens    []models.Allergen           `json:"allergens"`
}

// WeightProfile is the relative contribution of each scoring factor.
// Weights are normalized at scoring time, so they need not sum to 1.
type WeightProfile struct {
	Dietary    float64 `json:"dietary"`
	Cuisine    float64 `json:"cuisine"`
	Price      float64 `json:"price"`
	Distance   float64 `json:"distance"`
	Contextual float64 `json:"contextual"`
}

// Normalize returns a copy whose weights sum to 1.0. An all-zero profile
// becomes equal weights.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w WeightProfile) Normalize() WeightProfile {
	sum := w.Dietary + w.Cuisine + w.Price + w.Distance + w.Contextual
	if sum == 0 {
		const equal = 1.0 / 5.0
		return WeightProfile{Dietary: equal, Cuisine: equal, Price: equal, Distance: equal, Contextual: equal}
	}
	return WeightProfile{
		Dietary:    w.Dietary / sum,
		Cuisine:    w.Cuisine / sum,
		Price:      w.Price / sum,
		Distance:   w.Distance / sum,
		Contextual: w.Contextual / sum,
	}
}

// ToMap returns the weights keyed by factor name.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w WeightProfile) ToMap() map[string]float64 {
	return map[string]float64{
		models.FactorDietary:    w.Dietary,
		models.FactorCuisine:    w.Cuisine,
		models.FactorPrice:      w.Price,
		models.FactorDistance:   w.Distance,
		models.FactorContextual: w.Contextual,
	}
}

//nolint:gocritic // value receiver is intentional for immutable semantics
func (w WeightProfile) validate() error {
	for name, v := range w.ToMap() {
		if v < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %f", name, v)
		}
	}
	return nil
}

// StrategyConfig configures strategy selection.
type StrategyConfig struct {
	// QuickMealMinutes is the time-available threshold below which quick-meal wins.
	// Default: 30
	QuickMealMinutes int `json:"quick_meal_minutes"`

	// HealthyMoods are the mood tags that select healthy-focus. Matching is
	// case-insensitive.
	HealthyMoods []string `json:"healthy_moods"`

	// HealthyTag is the restaurant tag that counts as a healthy signal.
	// Default: "healthy"
	HealthyTag string `json:"healthy_tag"`

	// Expressions overrides the CEL predicate of a strategy. Exploration has no
	// predicate and cannot be overridden.
	Expressions map[models.Strategy]string `json:"expressions"`
}

// BudgetConfig configures the budget impact calculator.
type BudgetConfig struct {
	// StretchThreshold is the overage, as a fraction of the daily allowance,
	// still classed as a small stretch.
	// Default: 0.25
	StretchThreshold float64 `json:"stretch_threshold"`

	// TierCosts is the per-person estimate for price tiers 1 to 4, used when a
	// record carries no cost estimate.
	// Default: [12, 25, 45, 80]
	TierCosts []float64 `json:"tier_costs"`
}

// DefaultWeights returns the built-in weight profile per strategy.
func DefaultWeights() map[models.Strategy]WeightProfile {
	return map[models.Strategy]WeightProfile{
		models.StrategyExploration:     {Dietary: 0.40, Cuisine: 0.25, Price: 0.15, Distance: 0.10, Contextual: 0.10},
		models.StrategyQuickMeal:       {Dietary: 0.40, Cuisine: 0.15, Price: 0.10, Distance: 0.20, Contextual: 0.15},
		models.StrategyHealthyFocus:    {Dietary: 0.45, Cuisine: 0.15, Price: 0.10, Distance: 0.10, Contextual: 0.20},
		models.StrategyBudgetConscious: {Dietary: 0.40, Cuisine: 0.15, Price: 0.30, Distance: 0.10, Contextual: 0.05},
	}
}

// DefaultConfig returns a production-ready configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxResults:               10,
		StrictThreshold:          4,
		AITopN:                   20,
		ParallelScoringThreshold: 200,
		RequestTimeout:           30 * time.Second,
		ResultCacheSize:          512,
		ResultCacheTTL:           time.Hour,
		EnrichDetailsLimit:       10,
		Weights:                  DefaultWeights(),
		Strategy: StrategyConfig{
			QuickMealMinutes: 30,
			HealthyMoods:     []string{"healthy", "light", "fresh", "clean-eating", "post-workout"},
			HealthyTag:       "healthy",
		},
		Budget: BudgetConfig{
			StretchThreshold: 0.25,
			TierCosts:        []float64{12, 25, 45, 80},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxResults < 1 || c.MaxResults > 100 {
		errs = append(errs, fmt.Errorf("max_results must be between 1 and 100, got %d", c.MaxResults))
	}
	if c.StrictThreshold < 1 || c.StrictThreshold > 5 {
		errs = append(errs, fmt.Errorf("strict_threshold must be between 1 and 5, got %d", c.StrictThreshold))
	}
	if c.AITopN < 1 {
		errs = append(errs, fmt.Errorf("ai_top_n must be positive, got %d", c.AITopN))
	}
	if c.ParallelScoringThreshold < 1 {
		errs = append(errs, fmt.Errorf("parallel_scoring_threshold must be positive, got %d", c.ParallelScoringThreshold))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.DiversityLambda < 0 || c.DiversityLambda > 1 {
		errs = append(errs, fmt.Errorf("diversity_lambda must be between 0 and 1, got %f", c.DiversityLambda))
	}
	if c.EnrichDetailsLimit < 0 {
		errs = append(errs, fmt.Errorf("enrich_details_limit must not be negative, got %d", c.EnrichDetailsLimit))
	}
	if c.ResultCacheSize < 1 {
		errs = append(errs, fmt.Errorf("result_cache_size must be positive, got %d", c.ResultCacheSize))
	}

	for _, s := range models.AllStrategies {
		w, ok := c.Weights[s]
		if !ok {
			errs = append(errs, fmt.Errorf("weights: missing profile for %s", s))
			continue
		}
		if err := w.validate(); err != nil {
			errs = append(errs, fmt.Errorf("weights.%s: %w", s, err))
		}
	}
	for s := range c.Weights {
		if !s.IsValid() {
			errs = append(errs, fmt.Errorf("weights: unknown strategy %q", s))
		}
	}

	if c.Strategy.QuickMealMinutes < 1 {
		errs = append(errs, fmt.Errorf("strategy.quick_meal_minutes must be positive, got %d", c.Strategy.QuickMealMinutes))
	}
	for s := range c.Strategy.Expressions {
		if !s.IsValid() || s == models.StrategyExploration {
			errs = append(errs, fmt.Errorf("strategy.expressions: %q cannot be overridden", s))
		}
	}

	if c.Budget.StretchThreshold < 0 || c.Budget.StretchThreshold > 1 {
		errs = append(errs, fmt.Errorf("budget.stretch_threshold must be between 0 and 1, got %f", c.Budget.StretchThreshold))
	}
	if len(c.Budget.TierCosts) != 4 {
		errs = append(errs, fmt.Errorf("budget.tier_costs must list 4 tiers, got %d", len(c.Budget.TierCosts)))
	}
	for i, cost := range c.Budget.TierCosts {
		if cost <= 0 {
			errs = append(errs, fmt.Errorf("budget.tier_costs[%d] must be positive, got %f", i, cost))
		}
	}

	for _, r := range c.Restrictions {
		if !r.IsValid() {
			errs = append(errs, fmt.Errorf("restrictions: unknown category %q", r))
		}
	}
	for _, a := range c.Allergens {
		if !a.IsValid() {
			errs = append(errs, fmt.Errorf("allergens: unknown category %q", a))
		}
	}

	return errors.Join(errs...)
}

// isHealthyMood reports whether mood is one of the configured health-focused tags.
func (c *StrategyConfig) isHealthyMood(mood string) bool {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return false
	}
	for _, m := range c.HealthyMoods {
		if strings.EqualFold(m, mood) {
			return true
		}
	}
	return false
}
