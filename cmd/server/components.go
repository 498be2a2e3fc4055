// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/ai"
	"github.com/tomtom215/mealwise/internal/cache"
	"github.com/tomtom215/mealwise/internal/config"
	"github.com/tomtom215/mealwise/internal/events"
	"github.com/tomtom215/mealwise/internal/governor"
	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/places"
	"github.com/tomtom215/mealwise/internal/preferences"
	"github.com/tomtom215/mealwise/internal/recommend"
	"github.com/tomtom215/mealwise/internal/retry"
)

// layeredCache is one cache manager together with the layers the maintenance
// service needs direct access to.
type layeredCache struct {
	manager    *cache.Manager
	memory     *cache.MemoryLayer
	persistent *cache.PersistentLayer
}

// newLayeredCache builds memory -> badger -> predictive under one namespace.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newLayeredCache(name string, ttl time.Duration, cc *config.CacheConfig, db *badger.DB, logger zerolog.Logger) *layeredCache {
	mem := cache.NewMemoryLayer(cc.MemoryCapacity, cc.MemoryTTL, nil)
	persistent := cache.NewPersistentLayer(db, name, cc.PersistentTTL, nil)
	predictive := cache.NewPredictiveLayer(cc.PredictiveTTL, nil)
	mgr := cache.NewManager(cache.ManagerConfig{
		Name:           name,
		DefaultTTL:     ttl,
		LoadTimeout:    cc.LoadTimeout,
		PredictiveTopK: cc.PredictiveTopK,
	}, logger, predictive, mem, persistent)
	return &layeredCache{manager: mgr, memory: mem, persistent: persistent}
}

// openPreferenceStore opens the configured store. The returned *sql.DB is nil
// for the memory backend.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func openPreferenceStore(ctx context.Context, pc *config.PreferencesConfig, notifier preferences.Notifier, logger zerolog.Logger) (preferences.Store, *sql.DB, error) {
	switch pc.Backend {
	case config.PreferencesBackendPostgres:
		db, err := preferences.OpenPostgres(ctx, preferences.PostgresConfig{
			DSN:             pc.DSN,
			MaxOpenConns:    pc.MaxOpenConns,
			MaxIdleConns:    pc.MaxIdleConns,
			ConnMaxLifetime: pc.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return preferences.NewPostgresStore(db, notifier, logger), db, nil

	default:
		store := preferences.NewMemoryStore(notifier, logger)
		if pc.SeedPath != "" {
			n, err := store.LoadFile(pc.SeedPath)
			if err != nil {
				return nil, nil, fmt.Errorf("seed preferences: %w", err)
			}
			logger.Info().Str("path", pc.SeedPath).Int("profiles", n).Msg("Preference profiles seeded")
		}
		return store, nil, nil
	}
}

// openCatalog returns nil when the catalog is disabled; the engine then only
// ranks candidates supplied with each request.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func openCatalog(pc *config.PlacesConfig, costPerCall float64, gov *governor.Governor, logger zerolog.Logger) (places.Catalog, error) {
	if !pc.Enabled {
		return nil, nil
	}
	if pc.Backend == config.PlacesBackendHTTP {
		policy := retry.DefaultPolicy()
		policy.MaxAttempts = pc.MaxAttempts
		return places.NewClient(places.ClientConfig{
			BaseURL:           pc.BaseURL,
			APIKey:            pc.APIKey,
			Timeout:           pc.Timeout,
			RequestsPerSecond: pc.RequestsPerSecond,
			Burst:             pc.Burst,
			Retry:             policy,
			CostPerCall:       costPerCall,
		}, gov, logger), nil
	}
	static, err := places.LoadStaticCatalog(pc.CatalogPath, logger)
	if err != nil {
		return nil, err
	}
	return static, nil
}

// newAIClient always returns a client; with AI disabled it passes the
// rule-based order through.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newAIClient(cfg *config.Config, responses *cache.Manager, gov *governor.Governor, logger zerolog.Logger) *ai.Client {
	ac := cfg.AI
	var gen ai.Generator
	if ac.Enabled {
		gen = ai.NewHTTPGenerator(ai.HTTPGeneratorConfig{
			BaseURL:     ac.BaseURL,
			APIKey:      ac.APIKey,
			Model:       ac.Model,
			Temperature: ac.Temperature,
		})
	}
	limiter := cache.NewSlidingWindowLimiter(ac.RateLimitPerMinute, time.Minute, nil)
	return ai.NewClient(ai.Config{
		Enabled: ac.Enabled,
		Timeout: ac.Timeout,
		Retry: retry.Policy{
			MaxAttempts:         ac.MaxAttempts,
			InitialInterval:     ac.InitialBackoff,
			MaxInterval:         ac.MaxBackoff,
			Multiplier:          ac.BackoffMultiplier,
			RandomizationFactor: ac.Jitter,
		},
		ResponseTTL: ac.ResponseTTL,
		CostPerCall: cfg.Governor.AICostPerCall,
	}, gen, responses, limiter, gov, logger)
}

func governorConfig(gc *config.GovernorConfig) governor.Config {
	return governor.Config{
		DailyRequestQuota: gc.DailyRequestQuota,
		DailyCostCap:      gc.DailyCostCap,
		WarnFraction:      gc.WarnFraction,
	}
}

func eventsConfig(ec *config.EventsConfig) events.Config {
	cfg := events.DefaultConfig()
	cfg.Backend = ec.Backend
	cfg.Topic = ec.Topic
	cfg.URL = ec.NATSURL
	cfg.JetStream = ec.JetStream
	if ec.QueueGroup != "" {
		cfg.QueueGroup = ec.QueueGroup
	}
	return cfg
}

// engineConfig translates the flat application config into the engine's typed
// configuration.
func engineConfig(cfg *config.Config) *recommend.Config {
	out := recommend.DefaultConfig()
	out.MaxResults = cfg.Engine.MaxResults
	out.StrictThreshold = cfg.Engine.StrictThreshold
	out.AITopN = cfg.Engine.AITopN
	out.ParallelScoringThreshold = cfg.Engine.ParallelScoringThreshold
	out.RequestTimeout = cfg.Engine.RequestTimeout
	out.ResultCacheSize = cfg.Engine.ResultCacheSize
	out.ResultCacheTTL = cfg.Engine.ResultCacheTTL
	out.EnrichDetailsLimit = cfg.Engine.EnrichDetailsLimit
	out.DiversityLambda = cfg.Engine.DiversityLambda

	out.Weights = make(map[models.Strategy]recommend.WeightProfile, len(cfg.Weights))
	for name, w := range cfg.Weights {
		out.Weights[models.Strategy(name)] = recommend.WeightProfile{
			Dietary:    w.Dietary,
			Cuisine:    w.Cuisine,
			Price:      w.Price,
			Distance:   w.Distance,
			Contextual: w.Contextual,
		}
	}

	out.Strategy.QuickMealMinutes = cfg.Strategy.QuickMealMinutes
	if len(cfg.Strategy.HealthyMoods) > 0 {
		out.Strategy.HealthyMoods = cfg.Strategy.HealthyMoods
	}
	if cfg.Strategy.HealthyTag != "" {
		out.Strategy.HealthyTag = cfg.Strategy.HealthyTag
	}
	if len(cfg.Strategy.Expressions) > 0 {
		out.Strategy.Expressions = make(map[models.Strategy]string, len(cfg.Strategy.Expressions))
		for name, expr := range cfg.Strategy.Expressions {
			out.Strategy.Expressions[models.Strategy(name)] = expr
		}
	}

	out.Budget.StretchThreshold = cfg.Budget.StretchThreshold
	out.Budget.TierCosts = cfg.Budget.TierCosts

	for _, r := range cfg.Dietary.Restrictions {
		out.Restrictions = append(out.Restrictions, models.DietaryRestriction(r))
	}
	for _, a := range cfg.Dietary.Allergens {
		out.Allergens = append(out.Allergens, models.Allergen(a))
	}
	return out
}
