// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/mealwise/internal/models"
)

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateEngine,
		c.validateWeights,
		c.validateStrategy,
		c.validateBudget,
		c.validateDietary,
		c.validateGovernor,
		c.validateCache,
		c.validateAI,
		c.validatePlaces,
		c.validatePreferences,
		c.validateEvents,
		c.validateAuth,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RecommendationsPerMinute < 0 {
		return fmt.Errorf("RECOMMENDATIONS_RATE_LIMIT must not be negative, got %d", c.Server.RecommendationsPerMinute)
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Engine.RequestTimeout {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT (%s) must exceed ENGINE_REQUEST_TIMEOUT (%s)",
			c.Server.WriteTimeout, c.Engine.RequestTimeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateEngine() error {
	e := c.Engine
	switch {
	case e.RequestTimeout <= 0:
		return fmt.Errorf("ENGINE_REQUEST_TIMEOUT must be positive, got %s", e.RequestTimeout)
	case e.MaxResults < 1 || e.MaxResults > 100:
		return fmt.Errorf("ENGINE_MAX_RESULTS must be between 1 and 100, got %d", e.MaxResults)
	case e.StrictThreshold < 1 || e.StrictThreshold > 5:
		return fmt.Errorf("ENGINE_STRICT_THRESHOLD must be between 1 and 5, got %d", e.StrictThreshold)
	case e.AITopN < 1:
		return fmt.Errorf("ENGINE_AI_TOP_N must be positive, got %d", e.AITopN)
	case e.ParallelScoringThreshold < 1:
		return fmt.Errorf("ENGINE_PARALLEL_SCORING_THRESHOLD must be positive, got %d", e.ParallelScoringThreshold)
	case e.ResultCacheSize < 1:
		return fmt.Errorf("ENGINE_RESULT_CACHE_SIZE must be positive, got %d", e.ResultCacheSize)
	case e.DiversityLambda < 0 || e.DiversityLambda > 1:
		return fmt.Errorf("ENGINE_DIVERSITY_LAMBDA must be between 0 and 1, got %f", e.DiversityLambda)
	case e.EnrichDetailsLimit < 0:
		return fmt.Errorf("ENGINE_ENRICH_DETAILS_LIMIT must not be negative, got %d", e.EnrichDetailsLimit)
	}
	return nil
}

func (c *Config) validateWeights() error {
	for _, s := range models.AllStrategies {
		if _, ok := c.Weights[string(s)]; !ok {
			return fmt.Errorf("weights: missing profile for %s", s)
		}
	}
	for name, w := range c.Weights {
		if !models.Strategy(name).IsValid() {
			return fmt.Errorf("weights: unknown strategy %q", name)
		}
		if w.Dietary < 0 || w.Cuisine < 0 || w.Price < 0 || w.Distance < 0 || w.Contextual < 0 {
			return fmt.Errorf("weights.%s: weights must be non-negative", name)
		}
	}
	return nil
}

func (c *Config) validateStrategy() error {
	if c.Strategy.QuickMealMinutes < 1 {
		return fmt.Errorf("STRATEGY_QUICK_MEAL_MINUTES must be positive, got %d", c.Strategy.QuickMealMinutes)
	}
	for name := range c.Strategy.Expressions {
		s := models.Strategy(name)
		if !s.IsValid() || s == models.StrategyExploration {
			return fmt.Errorf("strategy.expressions: %q cannot be overridden", name)
		}
	}
	return nil
}

func (c *Config) validateBudget() error {
	if c.Budget.StretchThreshold < 0 || c.Budget.StretchThreshold > 1 {
		return fmt.Errorf("BUDGET_STRETCH_THRESHOLD must be between 0 and 1, got %f", c.Budget.StretchThreshold)
	}
	if len(c.Budget.TierCosts) != 4 {
		return fmt.Errorf("BUDGET_TIER_COSTS must list 4 values, got %d", len(c.Budget.TierCosts))
	}
	for i, v := range c.Budget.TierCosts {
		if v <= 0 {
			return fmt.Errorf("BUDGET_TIER_COSTS[%d] must be positive, got %f", i, v)
		}
	}
	return nil
}

func (c *Config) validateDietary() error {
	for _, r := range c.Dietary.Restrictions {
		if !models.DietaryRestriction(r).IsValid() {
			return fmt.Errorf("DIETARY_RESTRICTIONS: unknown restriction %q", r)
		}
	}
	for _, a := range c.Dietary.Allergens {
		if !models.Allergen(a).IsValid() {
			return fmt.Errorf("DIETARY_ALLERGENS: unknown allergen %q", a)
		}
	}
	return nil
}

func (c *Config) validateGovernor() error {
	g := c.Governor
	switch {
	case g.DailyRequestQuota < 1:
		return fmt.Errorf("DAILY_REQUEST_QUOTA must be positive, got %d", g.DailyRequestQuota)
	case g.DailyCostCap <= 0:
		return fmt.Errorf("DAILY_COST_CAP must be positive, got %f", g.DailyCostCap)
	case g.WarnFraction <= 0 || g.WarnFraction > 1:
		return fmt.Errorf("GOVERNOR_WARN_FRACTION must be in (0, 1], got %f", g.WarnFraction)
	case g.AICostPerCall < 0 || g.PlacesCostPerCall < 0:
		return fmt.Errorf("per-call costs must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	cc := c.Cache
	switch {
	case cc.MemoryCapacity < 1:
		return fmt.Errorf("CACHE_MEMORY_CAPACITY must be positive, got %d", cc.MemoryCapacity)
	case cc.MemoryTTL <= 0 || cc.PersistentTTL <= 0 || cc.PredictiveTTL <= 0:
		return fmt.Errorf("cache TTLs must be positive")
	case cc.PredictiveTopK < 0:
		return fmt.Errorf("CACHE_PREDICTIVE_TOP_K must not be negative, got %d", cc.PredictiveTopK)
	case cc.PredictiveRefreshInterval <= 0:
		return fmt.Errorf("CACHE_PREDICTIVE_REFRESH_INTERVAL must be positive, got %s", cc.PredictiveRefreshInterval)
	case cc.LocationPrecision < 0 || cc.LocationPrecision > 6:
		return fmt.Errorf("CACHE_LOCATION_PRECISION must be between 0 and 6, got %d", cc.LocationPrecision)
	}
	return nil
}

func (c *Config) validateAI() error {
	if !c.AI.Enabled {
		return nil
	}
	a := c.AI
	if err := validateHTTPURL(a.BaseURL, "AI_BASE_URL"); err != nil {
		return err
	}
	switch {
	case a.APIKey == "":
		return fmt.Errorf("AI_API_KEY is required when AI_ENABLED=true")
	case a.Model == "":
		return fmt.Errorf("AI_MODEL is required when AI_ENABLED=true")
	case a.Timeout <= 0:
		return fmt.Errorf("AI_TIMEOUT must be positive, got %s", a.Timeout)
	case a.MaxAttempts < 1:
		return fmt.Errorf("AI_MAX_ATTEMPTS must be at least 1, got %d", a.MaxAttempts)
	case a.BackoffMultiplier < 1:
		return fmt.Errorf("AI_BACKOFF_MULTIPLIER must be at least 1, got %f", a.BackoffMultiplier)
	case a.Jitter < 0 || a.Jitter > 1:
		return fmt.Errorf("AI_JITTER must be between 0 and 1, got %f", a.Jitter)
	case a.RateLimitPerMinute < 1:
		return fmt.Errorf("AI_RATE_LIMIT_PER_MINUTE must be positive, got %d", a.RateLimitPerMinute)
	}
	return nil
}

func (c *Config) validatePlaces() error {
	if !c.Places.Enabled {
		return nil
	}
	p := c.Places
	switch p.Backend {
	case PlacesBackendStatic:
		if p.CatalogPath == "" {
			return fmt.Errorf("PLACES_CATALOG_PATH is required when PLACES_BACKEND=static")
		}
	case PlacesBackendHTTP:
		if err := validateHTTPURL(p.BaseURL, "PLACES_BASE_URL"); err != nil {
			return err
		}
		if p.RequestsPerSecond <= 0 || p.Burst < 1 {
			return fmt.Errorf("PLACES_REQUESTS_PER_SECOND and PLACES_BURST must be positive")
		}
		if p.MaxAttempts < 1 {
			return fmt.Errorf("PLACES_MAX_ATTEMPTS must be at least 1, got %d", p.MaxAttempts)
		}
	default:
		return fmt.Errorf("PLACES_BACKEND must be static or http, got %q", p.Backend)
	}
	return nil
}

func (c *Config) validatePreferences() error {
	switch c.Preferences.Backend {
	case PreferencesBackendMemory:
		return nil
	case PreferencesBackendPostgres:
		if c.Preferences.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required when PREFERENCES_BACKEND=postgres")
		}
		return nil
	default:
		return fmt.Errorf("PREFERENCES_BACKEND must be memory or postgres, got %q", c.Preferences.Backend)
	}
}

func (c *Config) validateEvents() error {
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC must not be empty")
	}
	switch c.Events.Backend {
	case EventsBackendMemory:
		return nil
	case EventsBackendNATS:
		if err := validateNATSURL(c.Events.NATSURL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("EVENTS_BACKEND must be memory or nats, got %q", c.Events.Backend)
	}
}

func (c *Config) validateAuth() error {
	if !c.Auth.Enabled {
		return nil
	}
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_ENABLED=true", minJWTSecretLength)
	}
	return nil
}
