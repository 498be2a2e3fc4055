// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
)

const epsilon = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < epsilon }

func TestPriceScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tier, pref int
		strategy   models.Strategy
		want       float64
	}{
		{"exact match", 2, 2, models.StrategyExploration, 1.0},
		{"one over", 3, 2, models.StrategyExploration, 0.66},
		{"three over", 4, 1, models.StrategyExploration, 0},
		{"one under", 1, 2, models.StrategyExploration, 0.90},
		{"three under", 1, 4, models.StrategyExploration, 0.70},
		{"budget ignores under", 1, 4, models.StrategyBudgetConscious, 1.0},
		{"budget keeps over", 3, 2, models.StrategyBudgetConscious, 0.66},
		{"no preference", 4, 0, models.StrategyExploration, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := priceScore(tt.tier, tt.pref, tt.strategy); !approx(got, tt.want) {
				t.Errorf("priceScore(%d, %d) = %v, want %v", tt.tier, tt.pref, got, tt.want)
			}
		})
	}
}

func TestDistanceScore(t *testing.T) {
	t.Parallel()

	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name     string
		distance *float64
		pref     float64
		want     float64
	}{
		{"unknown distance", nil, 1000, 0.5},
		{"no preference", f(500), 0, 0.5},
		{"inside preference", f(500), 1000, 1},
		{"halfway to double", f(1500), 1000, 0.5},
		{"beyond double", f(5000), 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := distanceScore(tt.distance, tt.pref); !approx(got, tt.want) {
				t.Errorf("distanceScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDietaryAndCuisineScore(t *testing.T) {
	t.Parallel()

	r := restaurant("a",
		withDiet(models.RestrictionVegan, models.CompatibilityFullMenu),
		withDiet(models.RestrictionKeto, models.CompatibilityFewOptions),
		withCuisines("Thai", "vietnamese"))

	if got := dietaryScore(&r, nil); got != 1 {
		t.Errorf("dietaryScore(no lenient) = %v, want 1", got)
	}
	lenient := []models.DietaryRestriction{models.RestrictionVegan, models.RestrictionKeto}
	if got := dietaryScore(&r, lenient); !approx(got, 0.7) {
		t.Errorf("dietaryScore = %v, want 0.7", got)
	}
	missing := []models.DietaryRestriction{models.RestrictionPaleo}
	if got := dietaryScore(&r, missing); got != 0 {
		t.Errorf("dietaryScore(missing entry) = %v, want 0", got)
	}

	if got := cuisineScore(&r, nil); got != 1 {
		t.Errorf("cuisineScore(no affinity) = %v, want 1", got)
	}
	if got := cuisineScore(&r, map[string]float64{"thai": 0.3, "vietnamese": 0.8}); !approx(got, 0.8) {
		t.Errorf("cuisineScore = %v, want best affinity 0.8", got)
	}
	if got := cuisineScore(&r, map[string]float64{"french": 0.9}); got != 0.5 {
		t.Errorf("cuisineScore(no overlap) = %v, want neutral", got)
	}
}

func TestScorer_ScoreAll(t *testing.T) {
	t.Parallel()

	s := NewScorer(200, zerolog.Nop())
	fctx := &models.FilterContext{CurrentTime: testNow, MealTime: models.MealDinner, GroupSize: 1}
	p := profile("u1")
	p.PricePreference = 2

	records := ptrs(
		restaurant("cheap-good", withPrice(2), withRating(4.5)),
		restaurant("pricey", withPrice(4), withRating(4.5)),
		restaurant("broken", withPrice(9)),
	)

	scored, dropped, err := s.ScoreAll(context.Background(), records, &ScoreInput{
		Profile:  p,
		Context:  fctx,
		Strategy: models.StrategyExploration,
		Weights:  DefaultWeights()[models.StrategyExploration],
	})
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if got := ids(scored); len(got) != 2 || got[0] != "cheap-good" {
		t.Fatalf("order = %v, want cheap-good first", got)
	}
	for _, c := range scored {
		if c.Score < 0 || c.Score > 1 {
			t.Errorf("%s score %v outside [0,1]", c.Restaurant.ID, c.Score)
		}
		if c.Strategy != models.StrategyExploration {
			t.Errorf("%s strategy = %s", c.Restaurant.ID, c.Strategy)
		}
	}
}

func TestRank_TieBreak(t *testing.T) {
	t.Parallel()

	a := restaurant("a", withPrice(2))
	b := restaurant("b", withPrice(1))
	c := restaurant("c", withPrice(2), withVerifications(5))
	d := restaurant("d", withPrice(1))
	candidates := []models.ScoredCandidate{
		{Restaurant: &a, Score: 0.5},
		{Restaurant: &b, Score: 0.5},
		{Restaurant: &c, Score: 0.5},
		{Restaurant: &d, Score: 0.5},
	}

	Rank(candidates)
	want := []string{"c", "b", "d", "a"}
	got := ids(candidates)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestScorer_ParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	var records []models.RestaurantRecord
	for i := range 300 {
		records = append(records, restaurant(fmt.Sprintf("r%03d", i),
			withPrice(i%4+1),
			withRating(float64(i%50)/10),
			withCuisines([]string{"thai", "italian", "mexican"}[i%3])))
	}
	in := &ScoreInput{
		Profile:  &models.UserPreferenceProfile{UserID: "u", Strictness: 3, PricePreference: 2, CuisineAffinity: map[string]float64{"thai": 0.9}},
		Context:  &models.FilterContext{CurrentTime: testNow, MealTime: models.MealLunch, GroupSize: 1},
		Strategy: models.StrategyExploration,
		Weights:  DefaultWeights()[models.StrategyExploration],
	}

	seq, _, err := NewScorer(10000, zerolog.Nop()).ScoreAll(context.Background(), ptrs(records...), in)
	if err != nil {
		t.Fatal(err)
	}
	par, _, err := NewScorer(10, zerolog.Nop()).ScoreAll(context.Background(), ptrs(records...), in)
	if err != nil {
		t.Fatal(err)
	}

	if len(seq) != len(par) {
		t.Fatalf("len %d vs %d", len(seq), len(par))
	}
	for i := range seq {
		if seq[i].Restaurant.ID != par[i].Restaurant.ID || seq[i].Score != par[i].Score {
			t.Fatalf("position %d: %s/%v vs %s/%v", i, seq[i].Restaurant.ID, seq[i].Score, par[i].Restaurant.ID, par[i].Score)
		}
	}
}

func TestScorer_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := &ScoreInput{
		Profile:  profile("u"),
		Context:  &models.FilterContext{CurrentTime: testNow, GroupSize: 1},
		Strategy: models.StrategyExploration,
	}

	t.Run("sequential keeps the ranking", func(t *testing.T) {
		t.Parallel()
		scored, _, err := NewScorer(200, zerolog.Nop()).ScoreAll(ctx, ptrs(restaurant("a"), restaurant("b")), in)
		if err == nil {
			t.Fatal("ScoreAll with canceled context returned nil error")
		}
		if len(scored) != 2 {
			t.Errorf("scored = %d, want the completed ranking of 2", len(scored))
		}
	})

	t.Run("parallel skips without counting drops", func(t *testing.T) {
		t.Parallel()
		scored, dropped, err := NewScorer(1, zerolog.Nop()).ScoreAll(ctx, ptrs(restaurant("a"), restaurant("b")), in)
		if err == nil {
			t.Fatal("ScoreAll with canceled context returned nil error")
		}
		if scored == nil || dropped != 0 {
			t.Errorf("scored = %v, dropped = %d; want non-nil partial slice and no drops", scored, dropped)
		}
	})
}
