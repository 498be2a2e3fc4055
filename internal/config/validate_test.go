// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"write timeout below request timeout", func(c *Config) { c.Server.WriteTimeout = 10 * time.Second }, "HTTP_WRITE_TIMEOUT"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"zero max results", func(c *Config) { c.Engine.MaxResults = 0 }, "ENGINE_MAX_RESULTS"},
		{"diversity above one", func(c *Config) { c.Engine.DiversityLambda = 1.5 }, "ENGINE_DIVERSITY_LAMBDA"},
		{"negative enrichment", func(c *Config) { c.Engine.EnrichDetailsLimit = -1 }, "ENGINE_ENRICH_DETAILS_LIMIT"},
		{"missing weight profile", func(c *Config) { delete(c.Weights, "exploration") }, "missing profile"},
		{"unknown weight profile", func(c *Config) { c.Weights["brunch-mode"] = WeightConfig{Dietary: 1} }, "unknown strategy"},
		{"negative weight", func(c *Config) {
			w := c.Weights["quick-meal"]
			w.Price = -0.1
			c.Weights["quick-meal"] = w
		}, "non-negative"},
		{"exploration expression", func(c *Config) {
			c.Strategy.Expressions = map[string]string{"exploration": "true"}
		}, "cannot be overridden"},
		{"three tier costs", func(c *Config) { c.Budget.TierCosts = []float64{1, 2, 3} }, "BUDGET_TIER_COSTS"},
		{"unknown allergen", func(c *Config) { c.Dietary.Allergens = []string{"plastic"} }, "DIETARY_ALLERGENS"},
		{"unknown restriction", func(c *Config) { c.Dietary.Restrictions = []string{"carnivore"} }, "DIETARY_RESTRICTIONS"},
		{"zero quota", func(c *Config) { c.Governor.DailyRequestQuota = 0 }, "DAILY_REQUEST_QUOTA"},
		{"warn fraction above one", func(c *Config) { c.Governor.WarnFraction = 1.5 }, "GOVERNOR_WARN_FRACTION"},
		{"precision too fine", func(c *Config) { c.Cache.LocationPrecision = 9 }, "CACHE_LOCATION_PRECISION"},
		{"ai without key", func(c *Config) { c.AI.Enabled = true }, "AI_API_KEY"},
		{"ai with bad url", func(c *Config) {
			c.AI.Enabled = true
			c.AI.BaseURL = "ftp://models.example"
		}, "AI_BASE_URL"},
		{"ai configured", func(c *Config) {
			c.AI.Enabled = true
			c.AI.APIKey = "sk-test"
		}, ""},
		{"static places without path", func(c *Config) { c.Places.Enabled = true }, "PLACES_CATALOG_PATH"},
		{"http places without url", func(c *Config) {
			c.Places.Enabled = true
			c.Places.Backend = PlacesBackendHTTP
		}, "PLACES_BASE_URL"},
		{"unknown places backend", func(c *Config) {
			c.Places.Enabled = true
			c.Places.Backend = "graphql"
		}, "PLACES_BACKEND"},
		{"postgres without dsn", func(c *Config) { c.Preferences.Backend = PreferencesBackendPostgres }, "DATABASE_URL"},
		{"unknown preferences backend", func(c *Config) { c.Preferences.Backend = "redis" }, "PREFERENCES_BACKEND"},
		{"nats with bad url", func(c *Config) {
			c.Events.Backend = EventsBackendNATS
			c.Events.NATSURL = "http://broker:4222"
		}, "NATS_URL"},
		{"empty topic", func(c *Config) { c.Events.Topic = "" }, "EVENTS_TOPIC"},
		{"auth with short secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = "short"
		}, "JWT_SECRET"},
		{"auth configured", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = strings.Repeat("s", 32)
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateHTTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.openai.com/v1", false},
		{"http://localhost:8081", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"https://example.com?key=1", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			err := validateHTTPURL(tt.url, "TEST_URL")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
