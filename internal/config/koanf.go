// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mealwise/config.yaml",
	"/etc/mealwise/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                     8080,
			Host:                     "0.0.0.0",
			ReadTimeout:              10 * time.Second,
			WriteTimeout:             45 * time.Second, // above engine.request_timeout
			ShutdownTimeout:          15 * time.Second,
			RecommendationsPerMinute: 60,
			CORSOrigins:              []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Engine: EngineConfig{
			RequestTimeout:           30 * time.Second,
			MaxResults:               10,
			StrictThreshold:          4,
			AITopN:                   20,
			ParallelScoringThreshold: 200,
			ResultCacheSize:          512,
			ResultCacheTTL:           time.Hour,
			EnrichDetailsLimit:       10,
			DiversityLambda:          0.7,
		},
		Weights: map[string]WeightConfig{
			"exploration":      {Dietary: 0.40, Cuisine: 0.25, Price: 0.15, Distance: 0.10, Contextual: 0.10},
			"quick-meal":       {Dietary: 0.40, Cuisine: 0.15, Price: 0.10, Distance: 0.20, Contextual: 0.15},
			"healthy-focus":    {Dietary: 0.45, Cuisine: 0.15, Price: 0.10, Distance: 0.10, Contextual: 0.20},
			"budget-conscious": {Dietary: 0.40, Cuisine: 0.15, Price: 0.30, Distance: 0.10, Contextual: 0.05},
		},
		Strategy: StrategyConfig{
			QuickMealMinutes: 30,
			HealthyMoods:     []string{"healthy", "light", "fresh", "clean-eating", "post-workout"},
			HealthyTag:       "healthy",
		},
		Budget: BudgetConfig{
			StretchThreshold: 0.25,
			TierCosts:        []float64{12, 25, 45, 80},
		},
		Governor: GovernorConfig{
			DailyRequestQuota: 1000,
			DailyCostCap:      5.00,
			WarnFraction:      0.80,
			AICostPerCall:     0.002,
			PlacesCostPerCall: 0.017,
		},
		Cache: CacheConfig{
			MemoryCapacity:            1000,
			MemoryTTL:                 5 * time.Minute,
			PersistentPath:            "", // in-memory badger
			PersistentTTL:             24 * time.Hour,
			PredictiveTTL:             6 * time.Hour,
			PredictiveTopK:            20,
			PredictiveRefreshInterval: 10 * time.Minute,
			IdleAfter:                 30 * time.Second,
			LoadTimeout:               30 * time.Second,
			LocationPrecision:         3,
		},
		AI: AIConfig{
			Enabled:            false,
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o-mini",
			Temperature:        0.2,
			Timeout:            15 * time.Second,
			MaxAttempts:        3,
			InitialBackoff:     500 * time.Millisecond,
			MaxBackoff:         8 * time.Second,
			BackoffMultiplier:  2.0,
			Jitter:             0.5,
			RateLimitPerMinute: 10,
			ResponseTTL:        time.Hour,
		},
		Places: PlacesConfig{
			Enabled:           false,
			Backend:           PlacesBackendStatic,
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           10 * time.Second,
			MaxAttempts:       3,
			SearchTTL:         15 * time.Minute,
		},
		Preferences: PreferencesConfig{
			Backend:         PreferencesBackendMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Events: EventsConfig{
			Backend:    EventsBackendMemory,
			NATSURL:    "nats://127.0.0.1:4222",
			Topic:      "preferences.updated",
			JetStream:  true,
			QueueGroup: "",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
	}
}

// Load loads configuration with koanf from layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"strategy.healthy_moods",
	"budget.tier_costs",
	"dietary.restrictions",
	"dietary.allergens",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unlisted variables are ignored so unrelated environment cannot leak in.
var envMappings = map[string]string{
	// Server
	"http_port":                  "server.port",
	"http_host":                  "server.host",
	"http_read_timeout":          "server.read_timeout",
	"http_write_timeout":         "server.write_timeout",
	"http_shutdown_timeout":      "server.shutdown_timeout",
	"recommendations_rate_limit": "server.recommendations_per_minute",
	"cors_origins":               "server.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Engine
	"engine_request_timeout":            "engine.request_timeout",
	"engine_max_results":                "engine.max_results",
	"engine_strict_threshold":           "engine.strict_threshold",
	"engine_ai_top_n":                   "engine.ai_top_n",
	"engine_parallel_scoring_threshold": "engine.parallel_scoring_threshold",
	"engine_result_cache_size":          "engine.result_cache_size",
	"engine_result_cache_ttl":           "engine.result_cache_ttl",
	"engine_enrich_details_limit":       "engine.enrich_details_limit",
	"engine_diversity_lambda":           "engine.diversity_lambda",

	// Strategy and budget
	"strategy_quick_meal_minutes": "strategy.quick_meal_minutes",
	"strategy_healthy_moods":      "strategy.healthy_moods",
	"strategy_healthy_tag":        "strategy.healthy_tag",
	"budget_stretch_threshold":    "budget.stretch_threshold",
	"budget_tier_costs":           "budget.tier_costs",

	// Dietary categories
	"dietary_restrictions": "dietary.restrictions",
	"dietary_allergens":    "dietary.allergens",

	// Governor
	"daily_request_quota":    "governor.daily_request_quota",
	"daily_cost_cap":         "governor.daily_cost_cap",
	"governor_warn_fraction": "governor.warn_fraction",
	"ai_cost_per_call":       "governor.ai_cost_per_call",
	"places_cost_per_call":   "governor.places_cost_per_call",

	// Cache
	"cache_memory_capacity":             "cache.memory_capacity",
	"cache_memory_ttl":                  "cache.memory_ttl",
	"cache_persistent_path":             "cache.persistent_path",
	"cache_persistent_ttl":              "cache.persistent_ttl",
	"cache_predictive_ttl":              "cache.predictive_ttl",
	"cache_predictive_top_k":            "cache.predictive_top_k",
	"cache_predictive_refresh_interval": "cache.predictive_refresh_interval",
	"cache_idle_after":                  "cache.idle_after",
	"cache_load_timeout":                "cache.load_timeout",
	"cache_location_precision":          "cache.location_precision",

	// AI
	"ai_enabled":               "ai.enabled",
	"ai_base_url":              "ai.base_url",
	"ai_api_key":               "ai.api_key",
	"ai_model":                 "ai.model",
	"ai_temperature":           "ai.temperature",
	"ai_timeout":               "ai.timeout",
	"ai_max_attempts":          "ai.max_attempts",
	"ai_initial_backoff":       "ai.initial_backoff",
	"ai_max_backoff":           "ai.max_backoff",
	"ai_backoff_multiplier":    "ai.backoff_multiplier",
	"ai_jitter":                "ai.jitter",
	"ai_rate_limit_per_minute": "ai.rate_limit_per_minute",
	"ai_response_ttl":          "ai.response_ttl",

	// Places
	"places_enabled":             "places.enabled",
	"places_backend":             "places.backend",
	"places_catalog_path":        "places.catalog_path",
	"places_base_url":            "places.base_url",
	"places_api_key":             "places.api_key",
	"places_requests_per_second": "places.requests_per_second",
	"places_burst":               "places.burst",
	"places_timeout":             "places.timeout",
	"places_max_attempts":        "places.max_attempts",
	"places_search_ttl":          "places.search_ttl",

	// Preferences
	"preferences_backend":        "preferences.backend",
	"preferences_seed_path":      "preferences.seed_path",
	"database_url":               "preferences.dsn",
	"postgres_max_open_conns":    "preferences.max_open_conns",
	"postgres_max_idle_conns":    "preferences.max_idle_conns",
	"postgres_conn_max_lifetime": "preferences.conn_max_lifetime",

	// Events
	"events_backend":   "events.backend",
	"nats_url":         "events.nats_url",
	"events_topic":     "events.topic",
	"nats_jetstream":   "events.jetstream",
	"nats_queue_group": "events.queue_group",

	// Auth
	"auth_enabled": "auth.enabled",
	"jwt_secret":   "auth.jwt_secret",
	"jwt_issuer":   "auth.issuer",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - AI_API_KEY -> ai.api_key
//   - DATABASE_URL -> preferences.dsn
//   - WEIGHTS_QUICK_MEAL_PRICE -> weights.quick-meal.price
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	if strings.HasPrefix(key, "weights_") {
		return weightPath(strings.TrimPrefix(key, "weights_"))
	}

	// For unmapped keys, return empty string to skip them
	return ""
}

// weightPath maps "quick_meal_price" to "weights.quick-meal.price". The factor
// is the last segment; the strategy is everything before it.
func weightPath(rest string) string {
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 || i == len(rest)-1 {
		return ""
	}
	strategy := strings.ReplaceAll(rest[:i], "_", "-")
	factor := rest[i+1:]
	switch factor {
	case "dietary", "cuisine", "price", "distance", "contextual":
		return "weights." + strategy + "." + factor
	default:
		return ""
	}
}
