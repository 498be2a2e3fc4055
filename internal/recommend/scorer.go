// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mealwise/internal/models"
)

// neutral is the score of a factor with no information either way.
const neutral = 0.5

// Price penalties per tier of distance from the user's preference.
const (
	overPricePenalty  = 0.34
	underPricePenalty = 0.10
)

// ScoreInput is everything the scorer needs besides the candidates.
type ScoreInput struct {
	Profile  *models.UserPreferenceProfile
	Context  *models.FilterContext
	Strategy models.Strategy
	Weights  WeightProfile

	// Lenient are the declared restrictions below the strict threshold.
	Lenient []models.DietaryRestriction

	// HealthyTag marks restaurants that count toward healthy-focus.
	HealthyTag string
}

// Scorer computes per-factor and overall compatibility scores.
// It is stateless and safe for concurrent use.
type Scorer struct {
	parallelThreshold int
	logger            zerolog.Logger
}

// NewScorer creates a scorer that fans out at parallelThreshold candidates.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewScorer(parallelThreshold int, logger zerolog.Logger) *Scorer {
	if parallelThreshold < 1 {
		parallelThreshold = 200
	}
	return &Scorer{
		parallelThreshold: parallelThreshold,
		logger:            logger.With().Str("component", "scorer").Logger(),
	}
}

// ScoreAll scores and ranks candidates. Malformed records are dropped with a
// warning and counted in dropped. The result is ordered by score, then by
// verification count, then by cheaper price tier, then by id.
//
// When ctx ends during a parallel run, the candidates scored so far are still
// returned, ranked, together with the context error.
func (s *Scorer) ScoreAll(ctx context.Context, candidates []*models.RestaurantRecord, in *ScoreInput) (scored []models.ScoredCandidate, dropped int, err error) {
	weights := in.Weights.Normalize()
	results := make([]models.ScoredCandidate, len(candidates))
	ok := make([]bool, len(candidates))
	malformed := make([]bool, len(candidates))

	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			r := candidates[i]
			if cerr := r.Check(); cerr != nil {
				s.logger.Warn().Err(cerr).Msg("Dropping candidate that cannot be scored")
				malformed[i] = true
				continue
			}
			results[i] = s.score(r, in, weights)
			ok[i] = true
		}
	}

	if len(candidates) < s.parallelThreshold {
		scoreRange(0, len(candidates))
	} else {
		g, gctx := errgroup.WithContext(ctx)
		workers := runtime.GOMAXPROCS(0)
		chunk := (len(candidates) + workers - 1) / workers
		for lo := 0; lo < len(candidates); lo += chunk {
			lo, hi := lo, min(lo+chunk, len(candidates))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scoreRange(lo, hi)
				return nil
			})
		}
		if werr := g.Wait(); werr != nil {
			s.logger.Debug().Err(werr).Msg("Scoring stopped early")
		}
	}

	scored = make([]models.ScoredCandidate, 0, len(candidates))
	for i := range results {
		switch {
		case ok[i]:
			scored = append(scored, results[i])
		case malformed[i]:
			dropped++
		}
	}
	Rank(scored)
	return scored, dropped, ctx.Err()
}

// Rank sorts candidates best first with the deterministic tie-break.
func Rank(candidates []models.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if va, vb := a.Restaurant.TotalVerifications(), b.Restaurant.TotalVerifications(); va != vb {
			return va > vb
		}
		if a.Restaurant.PriceTier != b.Restaurant.PriceTier {
			return a.Restaurant.PriceTier < b.Restaurant.PriceTier
		}
		return a.Restaurant.ID < b.Restaurant.ID
	})
}

//nolint:gocritic // weights passed by value for immutability
func (s *Scorer) score(r *models.RestaurantRecord, in *ScoreInput, w WeightProfile) models.ScoredCandidate {
	var distance *float64
	if in.Context.Location != nil {
		d := models.DistanceMeters(*in.Context.Location, r.Location)
		distance = &d
	}

	f := models.FactorScores{
		Dietary:    dietaryScore(r, in.Lenient),
		Cuisine:    cuisineScore(r, in.Profile.CuisineAffinity),
		Price:      priceScore(r.PriceTier, in.Profile.PricePreference, in.Strategy),
		Distance:   distanceScore(distance, in.Profile.DistancePreferenceMeters),
		Contextual: contextualScore(r, in),
	}

	overall := w.Dietary*f.Dietary +
		w.Cuisine*f.Cuisine +
		w.Price*f.Price +
		w.Distance*f.Distance +
		w.Contextual*f.Contextual

	return models.ScoredCandidate{
		Restaurant:     r,
		Factors:        f,
		Score:          models.Clamp01(overall),
		Strategy:       in.Strategy,
		DistanceMeters: distance,
	}
}

// dietaryScore averages compatibility over the lenient restrictions. A missing
// entry counts as not-suitable; no lenient restrictions is a perfect match.
func dietaryScore(r *models.RestaurantRecord, lenient []models.DietaryRestriction) float64 {
	if len(lenient) == 0 {
		return 1.0
	}
	var sum float64
	for _, restriction := range lenient {
		sum += r.DietaryCompatibility[restriction].Score()
	}
	return models.Clamp01(sum / float64(len(lenient)))
}

// cuisineScore is the best affinity among the restaurant's cuisines.
func cuisineScore(r *models.RestaurantRecord, affinity map[string]float64) float64 {
	if len(affinity) == 0 {
		return 1.0
	}
	best, found := 0.0, false
	for _, c := range r.Cuisines {
		if v, ok := affinity[strings.ToLower(c)]; ok {
			if !found || v > best {
				best, found = v, true
			}
		}
	}
	if !found {
		return neutral
	}
	return models.Clamp01(best)
}

// priceScore penalizes tiers above the preference heavily and tiers below it
// lightly. Budget-conscious does not penalize cheaper tiers.
func priceScore(tier, preference int, strategy models.Strategy) float64 {
	if preference < 1 {
		return neutral
	}
	over := float64(max(0, tier-preference))
	under := float64(max(0, preference-tier))
	if strategy == models.StrategyBudgetConscious {
		under = 0
	}
	return models.Clamp01(1 - overPricePenalty*over - underPricePenalty*under)
}

// distanceScore is 1 within the preferred distance, decaying linearly to 0 at
// twice the preference.
func distanceScore(distance *float64, preference float64) float64 {
	if distance == nil || preference <= 0 {
		return neutral
	}
	if *distance <= preference {
		return 1.0
	}
	return models.Clamp01(1 - (*distance-preference)/preference)
}

// contextualScore is the mean of the signals that apply to this request.
func contextualScore(r *models.RestaurantRecord, in *ScoreInput) float64 {
	var sum float64
	var n int
	add := func(v float64) {
		sum += models.Clamp01(v)
		n++
	}

	if r.Rating > 0 {
		add(r.Rating / 5)
	}
	if serves, ok := r.ServesMealTime(in.Context.MealTime); ok {
		add(boolScore(serves))
	}

	switch in.Strategy {
	case models.StrategyQuickMeal:
		if in.Context.TimeAvailableMinutes != nil && r.AverageWaitMinutes != nil && *in.Context.TimeAvailableMinutes > 0 {
			add(1 - float64(*r.AverageWaitMinutes)/float64(*in.Context.TimeAvailableMinutes))
		}
	case models.StrategyHealthyFocus:
		if in.HealthyTag != "" {
			add(boolScore(r.HasTag(in.HealthyTag)))
		}
	case models.StrategyExploration:
		if len(in.Profile.CuisineAffinity) > 0 && len(r.Cuisines) > 0 {
			add(boolScore(!knownCuisine(r, in.Profile.CuisineAffinity)))
		}
	}

	if n == 0 {
		return neutral
	}
	return sum / float64(n)
}

func knownCuisine(r *models.RestaurantRecord, affinity map[string]float64) bool {
	for _, c := range r.Cuisines {
		if _, ok := affinity[strings.ToLower(c)]; ok {
			return true
		}
	}
	return false
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
