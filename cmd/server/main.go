// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tomtom215/mealwise/internal/api"
	"github.com/tomtom215/mealwise/internal/cache"
	"github.com/tomtom215/mealwise/internal/config"
	"github.com/tomtom215/mealwise/internal/events"
	"github.com/tomtom215/mealwise/internal/governor"
	"github.com/tomtom215/mealwise/internal/logging"
	"github.com/tomtom215/mealwise/internal/recommend"
	"github.com/tomtom215/mealwise/internal/supervisor"
	"github.com/tomtom215/mealwise/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logger := logging.Logger()

	logging.Info().
		Str("version", version).
		Bool("ai_enabled", cfg.AI.Enabled).
		Bool("places_enabled", cfg.Places.Enabled).
		Str("preferences_backend", cfg.Preferences.Backend).
		Str("events_backend", cfg.Events.Backend).
		Bool("auth_enabled", cfg.Auth.Enabled).
		Msg("Starting Mealwise")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event transport
	transport, err := events.NewTransport(eventsConfig(&cfg.Events), events.NewLoggerAdapter(logging.WithComponent("events")))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect event transport")
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event transport")
		}
	}()
	publisher := events.NewPublisher(transport.Publisher, transport.Topic)

	// Preference store
	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	store, db, err := openPreferenceStore(openCtx, &cfg.Preferences, publisher, logger)
	cancelOpen()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open preference store")
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing preference database")
			}
		}()
	}

	// Caches share one badger database, one namespace each.
	badgerDB, err := cache.OpenBadger(cfg.Cache.PersistentPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer func() {
		if err := badgerDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache database")
		}
	}()
	aiCache := newLayeredCache("ai", cfg.AI.ResponseTTL, &cfg.Cache, badgerDB, logger)
	searchCache := newLayeredCache("search", cfg.Places.SearchTTL, &cfg.Cache, badgerDB, logger)

	gov := governor.New(governorConfig(&cfg.Governor), logger)
	aiClient := newAIClient(cfg, aiCache.manager, gov, logger)

	catalog, err := openCatalog(&cfg.Places, cfg.Governor.PlacesCostPerCall, gov, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open restaurant catalog")
	}

	opts := []recommend.Option{
		recommend.WithRanker(aiClient),
		recommend.WithGovernor(gov),
		recommend.WithRateLimiter(aiClient.Limiter()),
		recommend.WithStatusCache(aiCache.manager),
	}
	if catalog != nil {
		opts = append(opts, recommend.WithCatalog(catalog, searchCache.manager, cfg.Cache.LocationPrecision))
	}
	engine, err := recommend.NewEngine(engineConfig(cfg), store, logger, opts...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}

	// HTTP
	handler := api.NewHandler(engine, store, version)
	handler.AddReadinessCheck("cache", func(context.Context) error {
		if badgerDB.IsClosed() {
			return errors.New("cache database closed")
		}
		return nil
	})
	if db != nil {
		handler.AddReadinessCheck("preferences", db.PingContext)
	}

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwConfig.RecommendationsPerWindow = cfg.Server.RecommendationsPerMinute

	var auth *api.Authenticator
	if cfg.Auth.Enabled {
		auth, err = api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to configure authentication")
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, mwConfig, auth).SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Supervisor tree
	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout + 5*time.Second
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	maintenance := services.NewCacheMaintenanceService(services.CacheMaintenanceConfig{
		Interval:       cfg.Cache.PredictiveRefreshInterval,
		IdleAfter:      cfg.Cache.IdleAfter,
		RefreshTimeout: cfg.Cache.LoadTimeout,
	}, logger)
	maintenance.AddCache(aiCache.manager)
	maintenance.AddSweeper(aiCache.memory)
	// Both persistent layers share badgerDB; one collector covers it.
	maintenance.AddCollector(aiCache.persistent)
	invalidationTargets := []events.Invalidator{aiCache.manager}
	if catalog != nil {
		maintenance.AddCache(searchCache.manager)
		maintenance.AddSweeper(searchCache.memory)
		invalidationTargets = append(invalidationTargets, searchCache.manager)
	}

	tree.AddMaintenanceService(maintenance)
	tree.AddMaintenanceService(services.NewGovernorResetService(gov, logger))
	tree.AddEventService(events.NewInvalidationSubscriber(transport.Subscriber, transport.Topic, logger, invalidationTargets...))
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout, logger))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Mealwise stopped")
}
