// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/ai"
	"github.com/tomtom215/mealwise/internal/cache"
	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/places"
)

// fakeCatalog serves fixed search results and details records.
type fakeCatalog struct {
	mu          sync.Mutex
	results     []models.RestaurantRecord
	details     map[string]models.RestaurantRecord
	err         error
	block       bool
	searchCalls atomic.Int32
	detailCalls atomic.Int32
}

func (f *fakeCatalog) Search(ctx context.Context, _ places.Query) ([]models.RestaurantRecord, error) {
	f.searchCalls.Add(1)
	f.mu.Lock()
	block, err, results := f.block, f.err, f.results
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (f *fakeCatalog) Details(_ context.Context, id string) (*models.RestaurantRecord, error) {
	f.detailCalls.Add(1)
	r, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("restaurant %s: %w", id, models.ErrNotFound)
	}
	return &r, nil
}

func (f *fakeCatalog) setBlock(b bool) {
	f.mu.Lock()
	f.block = b
	f.mu.Unlock()
}

// fakeRanker returns a scripted result, or blocks until the context ends.
type fakeRanker struct {
	result *ai.Result
	block  bool
	seen   []string
}

func (f *fakeRanker) Rank(ctx context.Context, in *ai.Input) *ai.Result {
	for _, c := range in.Candidates {
		f.seen = append(f.seen, c.Restaurant.ID)
	}
	if f.block {
		<-ctx.Done()
		return &ai.Result{Candidates: in.Candidates, Status: models.StatusFallback, Degradation: models.CodeTimeout, Err: ctx.Err()}
	}
	res := *f.result
	if res.Candidates == nil {
		res.Candidates = in.Candidates
	}
	return &res
}

func newSearchCache() *cache.Manager {
	return cache.NewManager(cache.ManagerConfig{Name: "search", DefaultTTL: time.Hour, LoadTimeout: 500 * time.Millisecond},
		zerolog.Nop(), nil, cache.NewMemoryLayer(100, time.Hour, nil))
}

var nyc = models.Coordinates{Latitude: 40.7128, Longitude: -74.0060}

func TestEngine_SuppliedCandidates(t *testing.T) {
	t.Parallel()

	p := profile("u1")
	p.PricePreference = 2
	p.CuisineAffinity = map[string]float64{"Thai": 0.9}
	cfg := DefaultConfig()
	cfg.MaxResults = 2
	e := newTestEngine(t, cfg, newMemoryProfiles(p))

	candidates := []models.RestaurantRecord{
		restaurant("italian", withPrice(2)),
		restaurant("thai", withPrice(2), withCuisines("thai")),
		restaurant("pricey", withPrice(4)),
	}
	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{CurrentTime: testNow}, candidates)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	if rec.Status != models.StatusRuleBased {
		t.Errorf("Status = %s, want rule_based", rec.Status)
	}
	if got := ids(rec.Candidates); len(got) != 2 || got[0] != "thai" {
		t.Fatalf("candidates = %v, want thai first and capped at 2", got)
	}
	if rec.TotalCandidates != 3 {
		t.Errorf("TotalCandidates = %d, want 3", rec.TotalCandidates)
	}
	if rec.Strategy != models.StrategyExploration {
		t.Errorf("Strategy = %s, want exploration", rec.Strategy)
	}
	if rec.Confidence <= 0 || rec.Confidence > 1 {
		t.Errorf("Confidence = %v, want (0,1]", rec.Confidence)
	}
	if rec.Budget.Message != models.MessageNoBudgetContext {
		t.Errorf("Budget.Message = %s, want no-budget-context", rec.Budget.Message)
	}
	for _, c := range rec.Candidates {
		if c.BudgetImpact == nil {
			t.Errorf("%s missing budget impact", c.Restaurant.ID)
		}
	}
	if rec.RequestID == "" || rec.Reasoning == "" || !rec.GeneratedAt.Equal(testNow) {
		t.Errorf("missing framing: %+v", rec)
	}
}

func TestEngine_NeverReturnsUnsafe(t *testing.T) {
	t.Parallel()

	p := profile("u1")
	p.Allergies = []models.Allergy{{Allergen: models.AllergenPeanuts, Severity: models.SeveritySevere}}
	p.Restrictions = []models.RestrictionPreference{{Restriction: models.RestrictionVegan, Strictness: 5}}

	var candidates []models.RestaurantRecord
	for i := range 40 {
		level := models.SafetyAllergenFree
		if i%2 == 0 {
			level = models.SafetyNotSafe
		}
		diet := models.CompatibilityManyOptions
		if i%3 == 0 {
			diet = models.CompatibilityLimitedOptions
		}
		candidates = append(candidates, restaurant(fmt.Sprintf("r%02d", i),
			withAllergen(models.AllergenPeanuts, level),
			withDiet(models.RestrictionVegan, diet),
			withRating(5)))
	}
	candidates = append(candidates, restaurant("no-data", withRating(5)))

	ranker := &fakeRanker{result: &ai.Result{Status: models.StatusAI, Confidence: 0.9}}
	e := newTestEngine(t, nil, newMemoryProfiles(p), WithRanker(ranker))

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{CurrentTime: testNow}, candidates)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	for _, id := range ranker.seen {
		r := findRecord(candidates, id)
		if r.AllergenSafety[models.AllergenPeanuts] != models.SafetyAllergenFree {
			t.Errorf("ranker saw unsafe restaurant %s", id)
		}
	}
	for _, c := range rec.Candidates {
		if c.Restaurant.AllergenSafety[models.AllergenPeanuts].Unsafe() || c.Restaurant.ID == "no-data" {
			t.Errorf("returned unsafe restaurant %s", c.Restaurant.ID)
		}
		if lvl := c.Restaurant.DietaryCompatibility[models.RestrictionVegan]; lvl != models.CompatibilityManyOptions {
			t.Errorf("returned %s with vegan compatibility %s", c.Restaurant.ID, lvl)
		}
	}
	if rec.ExcludedForSafety == 0 {
		t.Error("ExcludedForSafety = 0, want exclusions counted")
	}
}

// rankerFunc adapts a function to Ranker.
type rankerFunc func(ctx context.Context, in *ai.Input) *ai.Result

func (f rankerFunc) Rank(ctx context.Context, in *ai.Input) *ai.Result { return f(ctx, in) }

func findRecord(records []models.RestaurantRecord, id string) models.RestaurantRecord {
	for _, r := range records {
		if r.ID == id {
			return r
		}
	}
	return models.RestaurantRecord{}
}

func TestEngine_InvalidInput(t *testing.T) {
	t.Parallel()

	store := newMemoryProfiles(profile("u1"))
	e := newTestEngine(t, nil, store)
	candidates := []models.RestaurantRecord{restaurant("a")}

	tests := []struct {
		name   string
		userID string
		fctx   models.FilterContext
	}{
		{"empty user", "  ", models.FilterContext{}},
		{"unknown user", "ghost", models.FilterContext{}},
		{"group too large", "u1", models.FilterContext{GroupSize: 500}},
		{"bad meal time", "u1", models.FilterContext{MealTime: "elevenses"}},
		{"negative budget", "u1", models.FilterContext{Budget: &models.BudgetConstraint{RemainingBudget: -5, DaysRemaining: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := e.GetRecommendations(context.Background(), tt.userID, tt.fctx, candidates)
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestEngine_ProfileStoreFailure(t *testing.T) {
	t.Parallel()

	store := newMemoryProfiles(profile("u1"))
	store.err = errors.New("connection refused")
	e := newTestEngine(t, nil, store)

	_, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{}, []models.RestaurantRecord{restaurant("a")})
	if err == nil || errors.Is(err, models.ErrValidation) {
		t.Fatalf("err = %v, want non-validation store error", err)
	}
}

func TestEngine_DisabledCategory(t *testing.T) {
	t.Parallel()

	p := profile("u1")
	p.Allergies = []models.Allergy{{Allergen: models.AllergenLupin, Severity: models.SeverityMild}}
	cfg := DefaultConfig()
	cfg.Allergens = []models.Allergen{models.AllergenPeanuts, models.AllergenMilk}
	e := newTestEngine(t, cfg, newMemoryProfiles(p))

	_, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{}, []models.RestaurantRecord{restaurant("a")})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError for disabled allergen", err)
	}
}

func TestEngine_CatalogSearch(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{results: []models.RestaurantRecord{restaurant("a"), restaurant("b")}}
	e := newTestEngine(t, nil, newMemoryProfiles(profile("u1")), WithCatalog(catalog, newSearchCache(), 3))
	fctx := models.FilterContext{Location: &nyc, Filters: []string{"Vegan", "patio"}}

	for range 3 {
		rec, err := e.GetRecommendations(context.Background(), "u1", fctx, nil)
		if err != nil {
			t.Fatalf("GetRecommendations: %v", err)
		}
		if len(rec.Candidates) != 2 {
			t.Fatalf("candidates = %d, want 2", len(rec.Candidates))
		}
	}
	if n := catalog.searchCalls.Load(); n != 1 {
		t.Errorf("catalog searched %d times, want 1 (cached)", n)
	}

	t.Run("location required", func(t *testing.T) {
		_, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{}, nil)
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("err = %v, want validation error", err)
		}
	})
}

func TestEngine_CatalogFailure(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{err: &models.ExternalServiceError{Service: places.ServiceName, StatusCode: 502}}
	e := newTestEngine(t, nil, newMemoryProfiles(profile("u1")), WithCatalog(catalog, newSearchCache(), 3))

	_, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{Location: &nyc}, nil)
	if !errors.Is(err, models.ErrExternalService) {
		t.Fatalf("err = %v, want external service error", err)
	}
}

func TestEngine_NoCatalogConfigured(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil, newMemoryProfiles(profile("u1")))
	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{Location: &nyc}, nil)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if len(rec.Candidates) != 0 || rec.Reasoning == "" {
		t.Errorf("want empty explained result, got %+v", rec)
	}
}

func TestEngine_EnrichesMissingSafetyData(t *testing.T) {
	t.Parallel()

	p := profile("u1")
	p.Allergies = []models.Allergy{{Allergen: models.AllergenSesame, Severity: models.SeveritySevere}}
	catalog := &fakeCatalog{
		results: []models.RestaurantRecord{
			restaurant("enriched"),
			restaurant("unknown"),
			restaurant("complete", withAllergen(models.AllergenSesame, models.SafetyDedicatedPrep)),
		},
		details: map[string]models.RestaurantRecord{
			"enriched": restaurant("enriched", withAllergen(models.AllergenSesame, models.SafetyAllergenFree)),
		},
	}
	e := newTestEngine(t, nil, newMemoryProfiles(p), WithCatalog(catalog, newSearchCache(), 3))

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{Location: &nyc}, nil)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	got := map[string]bool{}
	for _, id := range ids(rec.Candidates) {
		got[id] = true
	}
	if !got["enriched"] || !got["complete"] || got["unknown"] {
		t.Errorf("candidates = %v, want enriched and complete only", ids(rec.Candidates))
	}
	if n := catalog.detailCalls.Load(); n != 2 {
		t.Errorf("details calls = %d, want 2", n)
	}
	if rec.ExcludedForSafety != 1 {
		t.Errorf("ExcludedForSafety = %d, want 1", rec.ExcludedForSafety)
	}
}

func TestEngine_AIRanking(t *testing.T) {
	t.Parallel()

	candidates := []models.RestaurantRecord{
		restaurant("a", withRating(5)),
		restaurant("b", withRating(4)),
		restaurant("c", withRating(3)),
	}
	cfg := DefaultConfig()
	cfg.AITopN = 2

	ranker := rankerFunc(func(_ context.Context, in *ai.Input) *ai.Result {
		if len(in.Candidates) != 2 {
			t.Errorf("ranker offered %d candidates, want 2", len(in.Candidates))
		}
		reordered := []models.ScoredCandidate{in.Candidates[1], in.Candidates[0]}
		reordered[0].Reason = "quieter"
		return &ai.Result{Candidates: reordered, Status: models.StatusAI, Confidence: 0.8, Reasoning: "Picked for a quiet dinner."}
	})
	e := newTestEngine(t, cfg, newMemoryProfiles(profile("u1")), WithRanker(ranker))

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{Craving: "quiet"}, candidates)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if got := ids(rec.Candidates); len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("order = %v, want [b a c]", got)
	}
	if rec.Status != models.StatusAI || rec.Confidence != 0.8 || rec.Reasoning != "Picked for a quiet dinner." {
		t.Errorf("framing = %s/%v/%q", rec.Status, rec.Confidence, rec.Reasoning)
	}
	if rec.Candidates[0].Reason != "quieter" {
		t.Errorf("reason = %q, want quieter", rec.Candidates[0].Reason)
	}
}

func TestEngine_AIFallback(t *testing.T) {
	t.Parallel()

	ranker := rankerFunc(func(_ context.Context, in *ai.Input) *ai.Result {
		return &ai.Result{Candidates: in.Candidates, Status: models.StatusFallback, Degradation: models.CodeRateLimit}
	})
	e := newTestEngine(t, nil, newMemoryProfiles(profile("u1")), WithRanker(ranker))

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{},
		[]models.RestaurantRecord{restaurant("a", withRating(5)), restaurant("b", withRating(2))})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if rec.Status != models.StatusFallback || rec.Degradation != models.CodeRateLimit {
		t.Errorf("status = %s/%s, want fallback/RATE_LIMIT_EXCEEDED", rec.Status, rec.Degradation)
	}
	if got := ids(rec.Candidates); got[0] != "a" {
		t.Errorf("order = %v, want rule-based order", got)
	}
}

func TestEngine_TimeoutReturnsRuleBased(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	e := newTestEngine(t, cfg, newMemoryProfiles(profile("u1")), WithRanker(&fakeRanker{block: true}))

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{},
		[]models.RestaurantRecord{restaurant("a"), restaurant("b")})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if rec.Status != models.StatusPartial || rec.Degradation != models.CodeTimeout {
		t.Errorf("status = %s/%s, want partial/TIMEOUT", rec.Status, rec.Degradation)
	}
	if len(rec.Candidates) != 2 {
		t.Errorf("candidates = %d, want rule-based 2", len(rec.Candidates))
	}
}

func TestEngine_TimeoutServesLastGood(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RequestTimeout = 100 * time.Millisecond
	store := newMemoryProfiles(profile("u1"))
	catalog := &fakeCatalog{results: []models.RestaurantRecord{
		restaurant("a", withAllergen(models.AllergenFish, models.SafetyNotSafe)),
		restaurant("b", withAllergen(models.AllergenFish, models.SafetyAllergenFree)),
	}}
	search := newSearchCache()
	e := newTestEngine(t, cfg, store, WithCatalog(catalog, search, 3))
	fctx := models.FilterContext{Location: &nyc}
	key := cache.SearchKey(cache.SearchQuery{Latitude: nyc.Latitude, Longitude: nyc.Longitude, RadiusMeters: places.DefaultRadiusMeters}, 3)

	first, err := e.GetRecommendations(context.Background(), "u1", fctx, nil)
	if err != nil || first.Status != models.StatusRuleBased {
		t.Fatalf("first call: %v %+v", err, first)
	}

	search.Evict(context.Background(), key)
	catalog.setBlock(true)

	second, err := e.GetRecommendations(context.Background(), "u1", fctx, nil)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Status != models.StatusCached || second.Degradation != models.CodeTimeout {
		t.Errorf("status = %s/%s, want cached/TIMEOUT", second.Status, second.Degradation)
	}
	if len(second.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2 from last good result", len(second.Candidates))
	}

	t.Run("profile change invalidates last good", func(t *testing.T) {
		p := profile("u1")
		p.Allergies = []models.Allergy{{Allergen: models.AllergenFish, Severity: models.SeveritySevere}}
		p.UpdatedAt = testNow
		store.put(p)

		third, err := e.GetRecommendations(context.Background(), "u1", fctx, nil)
		if err != nil {
			t.Fatalf("third call: %v", err)
		}
		if third.Status != models.StatusPartial || len(third.Candidates) != 0 {
			t.Errorf("got %s with %d candidates, want empty partial", third.Status, len(third.Candidates))
		}
	})
}

func TestEngine_Status(t *testing.T) {
	t.Parallel()

	search := newSearchCache()
	limiter := cache.NewSlidingWindowLimiter(10, time.Minute, nil)
	limiter.Allow()
	e := newTestEngine(t, nil, newMemoryProfiles(profile("u1")),
		WithCatalog(&fakeCatalog{}, search, 3), WithRateLimiter(limiter))

	s := e.Status()
	if s.RateLimiterInUse != 1 || s.RateLimiterLimit != 10 {
		t.Errorf("limiter = %d/%d, want 1/10", s.RateLimiterInUse, s.RateLimiterLimit)
	}
	if _, ok := s.Caches["search"]; !ok {
		t.Errorf("caches = %v, want search", s.Caches)
	}
}

func TestEngine_Concurrent(t *testing.T) {
	t.Parallel()

	p := profile("u1")
	p.Allergies = []models.Allergy{{Allergen: models.AllergenMilk, Severity: models.SeverityModerate}}
	e := newTestEngine(t, nil, newMemoryProfiles(p))
	candidates := []models.RestaurantRecord{
		restaurant("a", withAllergen(models.AllergenMilk, models.SafetyNotSafe)),
		restaurant("b"),
		restaurant("c", withTags("healthy")),
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{Mood: []string{"", "healthy"}[i%2]}, candidates)
			if err != nil {
				t.Errorf("GetRecommendations: %v", err)
				return
			}
			for _, c := range rec.Candidates {
				if c.Restaurant.ID == "a" {
					t.Error("unsafe restaurant returned")
				}
			}
		}()
	}
	wg.Wait()
}

func TestEngine_ExplorationDiversity(t *testing.T) {
	t.Parallel()

	p := profile("u1")
	p.CuisineAffinity = map[string]float64{"italian": 0.9, "thai": 0.2}
	candidates := []models.RestaurantRecord{
		restaurant("trattoria", withRating(4.8)),
		restaurant("osteria", withRating(4.7)),
		restaurant("pizzeria", withRating(4.6)),
		restaurant("thai", withRating(3.9), withCuisines("thai")),
	}
	fctx := models.FilterContext{CurrentTime: testNow}

	plain := DefaultConfig()
	plain.MaxResults = 2
	rec, err := newTestEngine(t, plain, newMemoryProfiles(p)).GetRecommendations(context.Background(), "u1", fctx, candidates)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if got := ids(rec.Candidates); got[0] != "trattoria" || got[1] != "osteria" {
		t.Fatalf("without diversity candidates = %v, want the two best italian", got)
	}

	diverse := DefaultConfig()
	diverse.MaxResults = 2
	diverse.DiversityLambda = 0.3
	rec, err = newTestEngine(t, diverse, newMemoryProfiles(p)).GetRecommendations(context.Background(), "u1", fctx, candidates)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if got := ids(rec.Candidates); got[0] != "trattoria" || got[1] != "thai" {
		t.Errorf("with diversity candidates = %v, want [trattoria thai]", got)
	}
}

func TestEngine_ExplorationTiesKeepVerificationOrder(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DiversityLambda = 0.7
	e := newTestEngine(t, cfg, newMemoryProfiles(profile("u1")))
	candidates := []models.RestaurantRecord{
		restaurant("c", withVerifications(1), withCuisines("thai")),
		restaurant("b", withVerifications(5)),
		restaurant("a", withVerifications(10)),
	}

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{CurrentTime: testNow}, candidates)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if rec.Strategy != models.StrategyExploration {
		t.Fatalf("strategy = %s, want exploration", rec.Strategy)
	}
	for i := 1; i < len(rec.Candidates); i++ {
		if rec.Candidates[i].Score != rec.Candidates[0].Score {
			t.Fatalf("scores differ (%v vs %v); candidates must tie", rec.Candidates[i].Score, rec.Candidates[0].Score)
		}
	}
	if got := ids(rec.Candidates); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("order = %v, want [a b c] by verification count", got)
	}
}

// slowProfiles answers after delay regardless of the caller's deadline.
type slowProfiles struct {
	*memoryProfiles
	delay time.Duration
}

func (s slowProfiles) Get(ctx context.Context, userID string) (*models.UserPreferenceProfile, error) {
	time.Sleep(s.delay)
	return s.memoryProfiles.Get(ctx, userID)
}

func TestEngine_TimeoutDuringScoringReturnsRanking(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	profiles := slowProfiles{memoryProfiles: newMemoryProfiles(profile("u1")), delay: 80 * time.Millisecond}
	e := newTestEngine(t, cfg, profiles)

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{},
		[]models.RestaurantRecord{restaurant("a", withRating(5)), restaurant("b", withRating(3))})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if rec.Status != models.StatusPartial || rec.Degradation != models.CodeTimeout {
		t.Errorf("status = %s/%s, want partial/TIMEOUT", rec.Status, rec.Degradation)
	}
	if got := ids(rec.Candidates); len(got) != 2 || got[0] != "a" {
		t.Errorf("candidates = %v, want the rule-based ranking [a b]", got)
	}
}

func TestEngine_RateLimitedFallbackCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	ranker := rankerFunc(func(_ context.Context, in *ai.Input) *ai.Result {
		return &ai.Result{
			Candidates:  in.Candidates,
			Status:      models.StatusFallback,
			Degradation: models.CodeRateLimit,
			Err:         fmt.Errorf("rank: %w", models.NewRateLimitError(ai.ServiceName, 2500*time.Millisecond)),
		}
	})
	e := newTestEngine(t, nil, newMemoryProfiles(profile("u1")), WithRanker(ranker))

	rec, err := e.GetRecommendations(context.Background(), "u1", models.FilterContext{},
		[]models.RestaurantRecord{restaurant("a")})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if rec.Status != models.StatusFallback || rec.RetryAfterSeconds != 3 {
		t.Errorf("status = %s, retry after = %d; want fallback with 3", rec.Status, rec.RetryAfterSeconds)
	}

	other := rankerFunc(func(_ context.Context, in *ai.Input) *ai.Result {
		return &ai.Result{Candidates: in.Candidates, Status: models.StatusFallback, Degradation: models.CodeExternalService, Err: errors.New("boom")}
	})
	rec, err = newTestEngine(t, nil, newMemoryProfiles(profile("u1")), WithRanker(other)).
		GetRecommendations(context.Background(), "u1", models.FilterContext{}, []models.RestaurantRecord{restaurant("a")})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if rec.RetryAfterSeconds != 0 {
		t.Errorf("retry after = %d for a non rate-limit fallback, want 0", rec.RetryAfterSeconds)
	}
}
