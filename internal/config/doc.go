// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package config provides centralized configuration management for Mealwise.

# Configuration Sources

Configuration is loaded with koanf v2 from three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, then config.yaml, config.yml,
    /etc/mealwise/config.yaml, /etc/mealwise/config.yml
 3. Environment variables, through an explicit name mapping

Unmapped environment variables are ignored. Comma-separated values are
accepted for list settings (CORS_ORIGINS, DIETARY_ALLERGENS, BUDGET_TIER_COSTS,
and so on). Strategy weights are set with WEIGHTS_<STRATEGY>_<FACTOR>, for
example WEIGHTS_QUICK_MEAL_DISTANCE=0.3.

# Configuration Structure

  - ServerConfig: HTTP bind address, timeouts, route rate limit, CORS
  - LoggingConfig: zerolog level and format
  - EngineConfig: request timeout, result sizes, strictness threshold
  - WeightConfig / StrategyConfig / BudgetConfig: scoring and classification
  - DietaryConfig: narrowing of the recognized restriction and allergen lists
  - GovernorConfig: daily request quota, cost cap, per-call costs
  - CacheConfig: memory, badger and predictive layers
  - AIConfig: AI ranking service, retries and rate limit
  - PlacesConfig: restaurant catalog (static file or HTTP)
  - PreferencesConfig: preference store (memory or PostgreSQL)
  - EventsConfig: preference-change events (in-process or NATS)
  - AuthConfig: optional HS256 bearer tokens

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal().Err(err).Msg("Failed to load configuration")
	}

Load validates before returning, so a returned Config is always usable.
*/
package config
