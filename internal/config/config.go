// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig            `koanf:"server"`
	Logging     LoggingConfig           `koanf:"logging"`
	Engine      EngineConfig            `koanf:"engine"`
	Weights     map[string]WeightConfig `koanf:"weights"`
	Strategy    StrategyConfig          `koanf:"strategy"`
	Budget      BudgetConfig            `koanf:"budget"`
	Dietary     DietaryConfig           `koanf:"dietary"`
	Governor    GovernorConfig          `koanf:"governor"`
	Cache       CacheConfig             `koanf:"cache"`
	AI          AIConfig                `koanf:"ai"`
	Places      PlacesConfig            `koanf:"places"`
	Preferences PreferencesConfig       `koanf:"preferences"`
	Events      EventsConfig            `koanf:"events"`
	Auth        AuthConfig              `koanf:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RecommendationsPerMinute is the per-IP request limit on the
	// recommendations route. Zero disables it.
	RecommendationsPerMinute int      `koanf:"recommendations_per_minute"`
	CORSOrigins              []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// EngineConfig holds orchestrator settings.
type EngineConfig struct {
	RequestTimeout           time.Duration `koanf:"request_timeout"`
	MaxResults               int           `koanf:"max_results"`
	StrictThreshold          int           `koanf:"strict_threshold"`
	AITopN                   int           `koanf:"ai_top_n"`
	ParallelScoringThreshold int           `koanf:"parallel_scoring_threshold"`
	ResultCacheSize          int           `koanf:"result_cache_size"`
	ResultCacheTTL           time.Duration `koanf:"result_cache_ttl"`
	EnrichDetailsLimit       int           `koanf:"enrich_details_limit"`
	DiversityLambda          float64       `koanf:"diversity_lambda"`
}

// WeightConfig is one strategy's factor weights.
type WeightConfig struct {
	Dietary    float64 `koanf:"dietary"`
	Cuisine    float64 `koanf:"cuisine"`
	Price      float64 `koanf:"price"`
	Distance   float64 `koanf:"distance"`
	Contextual float64 `koanf:"contextual"`
}

// StrategyConfig holds strategy selection settings. Expressions maps a
// strategy name to a CEL predicate replacing its built-in rule.
type StrategyConfig struct {
	QuickMealMinutes int               `koanf:"quick_meal_minutes"`
	HealthyMoods     []string          `koanf:"healthy_moods"`
	HealthyTag       string            `koanf:"healthy_tag"`
	Expressions      map[string]string `koanf:"expressions"`
}

// BudgetConfig holds budget impact settings.
type BudgetConfig struct {
	StretchThreshold float64   `koanf:"stretch_threshold"`
	TierCosts        []float64 `koanf:"tier_costs"`
}

// DietaryConfig narrows the recognized categories. Empty lists keep every
// built-in category.
type DietaryConfig struct {
	Restrictions []string `koanf:"restrictions"`
	Allergens    []string `koanf:"allergens"`
}

// GovernorConfig holds the daily limits and per-call cost estimates.
type GovernorConfig struct {
	DailyRequestQuota int64   `koanf:"daily_request_quota"`
	DailyCostCap      float64 `koanf:"daily_cost_cap"`
	WarnFraction      float64 `koanf:"warn_fraction"`
	AICostPerCall     float64 `koanf:"ai_cost_per_call"`
	PlacesCostPerCall float64 `koanf:"places_cost_per_call"`
}

// CacheConfig holds cache layer settings.
type CacheConfig struct {
	MemoryCapacity int           `koanf:"memory_capacity"`
	MemoryTTL      time.Duration `koanf:"memory_ttl"`

	// PersistentPath is the badger directory. Empty runs badger in memory.
	PersistentPath string        `koanf:"persistent_path"`
	PersistentTTL  time.Duration `koanf:"persistent_ttl"`

	PredictiveTTL             time.Duration `koanf:"predictive_ttl"`
	PredictiveTopK            int           `koanf:"predictive_top_k"`
	PredictiveRefreshInterval time.Duration `koanf:"predictive_refresh_interval"`

	// IdleAfter is how long a cache must go unused before predictive refresh runs.
	IdleAfter   time.Duration `koanf:"idle_after"`
	LoadTimeout time.Duration `koanf:"load_timeout"`

	// LocationPrecision is the number of decimal places kept when locations
	// are part of a cache key.
	LocationPrecision int `koanf:"location_precision"`
}

// AIConfig holds AI ranking service settings.
type AIConfig struct {
	Enabled            bool          `koanf:"enabled"`
	BaseURL            string        `koanf:"base_url"`
	APIKey             string        `koanf:"api_key"`
	Model              string        `koanf:"model"`
	Temperature        float64       `koanf:"temperature"`
	Timeout            time.Duration `koanf:"timeout"`
	MaxAttempts        int           `koanf:"max_attempts"`
	InitialBackoff     time.Duration `koanf:"initial_backoff"`
	MaxBackoff         time.Duration `koanf:"max_backoff"`
	BackoffMultiplier  float64       `koanf:"backoff_multiplier"`
	Jitter             float64       `koanf:"jitter"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"`
	ResponseTTL        time.Duration `koanf:"response_ttl"`
}

// Places backends.
const (
	PlacesBackendStatic = "static"
	PlacesBackendHTTP   = "http"
)

// PlacesConfig holds restaurant catalog settings.
type PlacesConfig struct {
	Enabled bool `koanf:"enabled"`

	// Backend is static (a JSON file of records) or http.
	Backend     string `koanf:"backend"`
	CatalogPath string `koanf:"catalog_path"`

	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Timeout           time.Duration `koanf:"timeout"`
	MaxAttempts       int           `koanf:"max_attempts"`
	SearchTTL         time.Duration `koanf:"search_ttl"`
}

// Preference store backends.
const (
	PreferencesBackendMemory   = "memory"
	PreferencesBackendPostgres = "postgres"
)

// PreferencesConfig holds preference store settings.
type PreferencesConfig struct {
	Backend string `koanf:"backend"`

	// SeedPath optionally loads profiles into the memory backend at startup.
	SeedPath string `koanf:"seed_path"`

	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// Event transport backends.
const (
	EventsBackendMemory = "memory"
	EventsBackendNATS   = "nats"
)

// EventsConfig holds preference-change event settings.
type EventsConfig struct {
	Backend    string `koanf:"backend"`
	NATSURL    string `koanf:"nats_url"`
	Topic      string `koanf:"topic"`
	JetStream  bool   `koanf:"jetstream"`
	QueueGroup string `koanf:"queue_group"`
}

// AuthConfig holds bearer-token settings.
type AuthConfig struct {
	Enabled   bool   `koanf:"enabled"`
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
}
