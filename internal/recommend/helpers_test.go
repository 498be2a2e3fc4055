// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
)

var testNow = time.Date(2026, 5, 20, 19, 0, 0, 0, time.UTC)

// restaurant builds a valid record; opts adjust it.
func restaurant(id string, opts ...func(*models.RestaurantRecord)) models.RestaurantRecord {
	r := models.RestaurantRecord{
		ID:        id,
		Name:      "Restaurant " + id,
		Location:  models.Coordinates{Latitude: 40.7128, Longitude: -74.0060},
		PriceTier: 2,
		Rating:    4.0,
		Cuisines:  []string{"italian"},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func withAllergen(a models.Allergen, level models.SafetyLevel) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) {
		if r.AllergenSafety == nil {
			r.AllergenSafety = map[models.Allergen]models.SafetyLevel{}
		}
		r.AllergenSafety[a] = level
	}
}

func withDiet(d models.DietaryRestriction, level models.CompatibilityLevel) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) {
		if r.DietaryCompatibility == nil {
			r.DietaryCompatibility = map[models.DietaryRestriction]models.CompatibilityLevel{}
		}
		r.DietaryCompatibility[d] = level
	}
}

func withPrice(tier int) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) { r.PriceTier = tier }
}

func withRating(v float64) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) { r.Rating = v }
}

func withCuisines(c ...string) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) { r.Cuisines = c }
}

func withWait(minutes int) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) { r.AverageWaitMinutes = &minutes }
}

func withCost(c float64) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) { r.EstimatedCostPerPerson = &c }
}

func withTags(tags ...string) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) { r.Tags = tags }
}

func withVerifications(n int) func(*models.RestaurantRecord) {
	return func(r *models.RestaurantRecord) {
		r.VerificationCounts = map[models.DietaryRestriction]int{models.RestrictionVegan: n}
	}
}

func ptrs(records ...models.RestaurantRecord) []*models.RestaurantRecord {
	out := make([]*models.RestaurantRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out
}

func ids(candidates []models.ScoredCandidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Restaurant.ID
	}
	return out
}

// memoryProfiles is an in-memory ProfileSource.
type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.UserPreferenceProfile
	err      error
}

func newMemoryProfiles(profiles ...*models.UserPreferenceProfile) *memoryProfiles {
	m := &memoryProfiles{profiles: make(map[string]*models.UserPreferenceProfile)}
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return m
}

func (m *memoryProfiles) Get(_ context.Context, userID string) (*models.UserPreferenceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memoryProfiles) put(p *models.UserPreferenceProfile) {
	m.mu.Lock()
	m.profiles[p.UserID] = p
	m.mu.Unlock()
}

func profile(userID string) *models.UserPreferenceProfile {
	return &models.UserPreferenceProfile{
		UserID:     userID,
		Strictness: 3,
		UpdatedAt:  testNow.Add(-24 * time.Hour),
	}
}

func newTestEngine(t *testing.T, cfg *Config, profiles ProfileSource, opts ...Option) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e, err := NewEngine(cfg, profiles, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}
