// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mealwise/internal/ai"
	"github.com/tomtom215/mealwise/internal/cache"
	"github.com/tomtom215/mealwise/internal/governor"
	"github.com/tomtom215/mealwise/internal/logging"
	"github.com/tomtom215/mealwise/internal/metrics"
	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/places"
	"github.com/tomtom215/mealwise/internal/validation"
)

// maxUserIDLength bounds user identifiers.
const maxUserIDLength = 128

// enrichConcurrency bounds parallel details lookups per request.
const enrichConcurrency = 4

// ProfileSource reads preference profiles. An unknown user is reported with an
// error wrapping models.ErrNotFound.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*models.UserPreferenceProfile, error)
}

// Ranker re-ranks the rule-based top slice. It never fails; degradation is
// reported on the result.
type Ranker interface {
	Rank(ctx context.Context, in *ai.Input) *ai.Result
}

// Engine is the recommendation orchestrator. It is safe for concurrent use;
// request-local work shares nothing, and the collaborators it holds are
// themselves concurrency-safe.
type Engine struct {
	cfg    *Config
	logger zerolog.Logger
	clock  func() time.Time

	profiles ProfileSource
	selector *StrategySelector
	scorer   *Scorer
	budget   *BudgetCalculator
	diverse  *Diversifier

	catalog   places.Catalog
	search    *cache.Manager
	precision int

	ranker  Ranker
	gov     *governor.Governor
	limiter *cache.SlidingWindowLimiter
	caches  []*cache.Manager

	results *cache.MemoryLayer

	restrictions map[models.DietaryRestriction]bool
	allergens    map[models.Allergen]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog lets the engine search for candidates when a request supplies
// none. Searches and details lookups go through searchCache, keyed with
// coordinates rounded to precision decimals.
func WithCatalog(catalog places.Catalog, searchCache *cache.Manager, precision int) Option {
	return func(e *Engine) {
		e.catalog = catalog
		e.search = searchCache
		e.precision = precision
		if searchCache != nil {
			e.caches = append(e.caches, searchCache)
		}
	}
}

// WithRanker enables AI re-ranking.
func WithRanker(r Ranker) Option {
	return func(e *Engine) { e.ranker = r }
}

// WithGovernor reports the governor's counters in Status.
func WithGovernor(g *governor.Governor) Option {
	return func(e *Engine) { e.gov = g }
}

// WithRateLimiter reports the AI limiter's occupancy in Status.
func WithRateLimiter(l *cache.SlidingWindowLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithStatusCache adds a cache manager to the Status report.
func WithStatusCache(m *cache.Manager) Option {
	return func(e *Engine) { e.caches = append(e.caches, m) }
}

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine creates an engine. cfg is validated and the strategy predicates are
// compiled up front.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, profiles ProfileSource, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if profiles == nil {
		return nil, errors.New("profile source is required")
	}

	selector, err := NewStrategySelector(cfg.Strategy, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger.With().Str("component", "recommend").Logger(),
		clock:     time.Now,
		profiles:  profiles,
		selector:  selector,
		scorer:    NewScorer(cfg.ParallelScoringThreshold, logger),
		budget:    NewBudgetCalculator(cfg.Budget),
		diverse:   NewDiversifier(cfg.DiversityLambda),
		precision: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.results = cache.NewMemoryLayer(cfg.ResultCacheSize, cfg.ResultCacheTTL, e.clock)

	if len(cfg.Restrictions) > 0 {
		e.restrictions = make(map[models.DietaryRestriction]bool, len(cfg.Restrictions))
		for _, r := range cfg.Restrictions {
			e.restrictions[r] = true
		}
	}
	if len(cfg.Allergens) > 0 {
		e.allergens = make(map[models.Allergen]bool, len(cfg.Allergens))
		for _, a := range cfg.Allergens {
			e.allergens[a] = true
		}
	}

	return e, nil
}

// request carries the state of one GetRecommendations call.
type request struct {
	id       string
	userID   string
	fctx     models.FilterContext
	profile  *models.UserPreferenceProfile
	safety   SafetyConstraints
	lenient  []models.DietaryRestriction
	key      string
	start    time.Time
	logger   zerolog.Logger
	excluded int
	total    int
}

// GetRecommendations produces a safety-filtered, scored and ranked
// recommendation for userID.
//
// When candidates is empty the catalog is searched around fctx.Location. An
// error is returned only for invalid input, an unknown user, an unreadable
// profile, or when no candidates can be obtained at all. Every other failure
// degrades the result instead. On timeout or cancellation the rule-based
// ranking is returned if it was computed, else the last good result for the
// same request, else an empty result; all with status partial or cached.
//
//nolint:gocritic // hugeParam: fctx is copied so normalization stays request-local
func (e *Engine) GetRecommendations(ctx context.Context, userID string, fctx models.FilterContext, candidates []models.RestaurantRecord) (*models.Recommendation, error) {
	req := &request{
		id:     logging.RequestIDFromContext(ctx),
		userID: strings.TrimSpace(userID),
		fctx:   fctx,
		start:  e.clock(),
	}
	if req.id == "" {
		req.id = logging.GenerateRequestID()
	}
	req.logger = e.logger.With().Str("request_id", req.id).Str("user_id", req.userID).Logger()

	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	if err := e.loadProfile(ctx, req); err != nil {
		if ctx.Err() != nil {
			return e.finish(req, e.emptyResult(req, "Timed out before the preference profile was read.")), nil
		}
		return nil, err
	}

	records, err := e.obtainCandidates(ctx, req, candidates)
	if err != nil {
		if ctx.Err() != nil {
			return e.finish(req, e.timedOut(req, nil)), nil
		}
		return nil, err
	}
	req.total = len(records)

	e.enrich(ctx, req, records)

	kept, exclusions := FilterSafe(records, req.safety)
	req.excluded = len(exclusions)
	for _, ex := range exclusions {
		metrics.SafetyExclusions.WithLabelValues(ex.Reason).Inc()
		req.logger.Debug().
			Str("restaurant_id", ex.RestaurantID).
			Str("reason", ex.Reason).
			Str("allergen", string(ex.Allergen)).
			Str("restriction", string(ex.Restriction)).
			Msg("Excluded for safety")
	}

	strategy := e.selector.Select(&req.fctx)
	kept = PreFilter(strategy, kept, &req.fctx, e.budget)

	scored, dropped, err := e.scorer.ScoreAll(ctx, kept, &ScoreInput{
		Profile:    req.profile,
		Context:    &req.fctx,
		Strategy:   strategy,
		Weights:    e.cfg.Weights[strategy],
		Lenient:    req.lenient,
		HealthyTag: e.cfg.Strategy.HealthyTag,
	})
	if dropped > 0 {
		metrics.CandidatesDropped.Add(float64(dropped))
	}
	if err != nil && len(scored) == 0 {
		return e.finish(req, e.timedOut(req, nil)), nil
	}
	if strategy == models.StrategyExploration {
		scored = e.diverse.Apply(scored, e.cfg.MaxResults*diversityWindowFactor)
	}

	rec := e.ruleBased(req, strategy, scored)
	if err != nil || ctx.Err() != nil {
		return e.finish(req, e.timedOut(req, rec)), nil
	}

	if e.ranker != nil && len(scored) > 0 {
		rec = e.rerank(ctx, req, strategy, scored, rec)
		if ctx.Err() != nil && rec.Status == models.StatusFallback {
			return e.finish(req, e.timedOut(req, rec)), nil
		}
	}

	e.remember(req, rec)
	return e.finish(req, rec), nil
}

func (e *Engine) validateRequest(req *request) error {
	switch {
	case req.userID == "":
		return models.NewValidationError("invalid request", models.FieldError{Field: "user_id", Message: "user_id is required"})
	case len(req.userID) > maxUserIDLength:
		return models.NewValidationError("invalid request", models.FieldError{Field: "user_id", Message: fmt.Sprintf("user_id must be at most %d characters", maxUserIDLength)})
	}

	req.fctx.Normalize(req.start)
	if verr := validation.ValidateStruct(&req.fctx); verr != nil {
		return verr
	}
	return nil
}

// loadProfile reads and checks the user's profile, and derives the safety
// constraints. Cuisine affinity keys are lowercased on a private copy.
func (e *Engine) loadProfile(ctx context.Context, req *request) error {
	profile, err := e.profiles.Get(ctx, req.userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewValidationError("unknown user", models.FieldError{Field: "user_id", Message: "no preference profile for " + req.userID})
		}
		return fmt.Errorf("read preference profile: %w", err)
	}
	if verr := validation.ValidateStruct(profile); verr != nil {
		return verr
	}
	if err := e.checkCategories(profile); err != nil {
		return err
	}

	p := *profile
	if len(profile.CuisineAffinity) > 0 {
		p.CuisineAffinity = make(map[string]float64, len(profile.CuisineAffinity))
		for k, v := range profile.CuisineAffinity {
			k = strings.ToLower(strings.TrimSpace(k))
			if cur, ok := p.CuisineAffinity[k]; !ok || v > cur {
				p.CuisineAffinity[k] = v
			}
		}
	}
	req.profile = &p

	strict, lenient := p.SplitRestrictions(e.cfg.StrictThreshold)
	req.safety = SafetyConstraints{Allergies: p.Allergies, Strict: strict}
	req.lenient = lenient
	return nil
}

// checkCategories rejects profiles declaring categories this deployment does
// not recognize. Ignoring a declared allergy could surface an unsafe result.
func (e *Engine) checkCategories(p *models.UserPreferenceProfile) error {
	var fields []models.FieldError
	if e.restrictions != nil {
		for i, r := range p.Restrictions {
			if !e.restrictions[r.Restriction] {
				fields = append(fields, models.FieldError{
					Field:   fmt.Sprintf("restrictions[%d]", i),
					Message: fmt.Sprintf("restriction %q is not enabled", r.Restriction),
				})
			}
		}
	}
	if e.allergens != nil {
		for i, a := range p.Allergies {
			if !e.allergens[a.Allergen] {
				fields = append(fields, models.FieldError{
					Field:   fmt.Sprintf("allergies[%d]", i),
					Message: fmt.Sprintf("allergen %q is not enabled", a.Allergen),
				})
			}
		}
	}
	if len(fields) > 0 {
		return models.NewValidationError("unsupported dietary category", fields...)
	}
	return nil
}

// obtainCandidates returns the supplied candidates, or searches the catalog
// through the search cache. It also sets the request's result key.
func (e *Engine) obtainCandidates(ctx context.Context, req *request, supplied []models.RestaurantRecord) ([]*models.RestaurantRecord, error) {
	if len(supplied) > 0 {
		ids := make([]string, len(supplied))
		for i := range supplied {
			ids[i] = supplied[i].ID
		}
		sort.Strings(ids)
		req.key = e.resultKey(req, "candidates:"+cache.Fingerprint(ids...))
		return pointers(supplied), nil
	}

	if req.fctx.Location == nil {
		return nil, models.NewValidationError("invalid request", models.FieldError{
			Field:   "context.location",
			Message: "location is required when no candidates are supplied",
		})
	}

	q := places.Query{
		Location:     *req.fctx.Location,
		RadiusMeters: req.fctx.RadiusMeters,
		Keyword:      req.fctx.Keyword,
		Filters:      req.fctx.Filters,
	}
	if q.RadiusMeters <= 0 {
		q.RadiusMeters = places.DefaultRadiusMeters
	}
	searchKey := cache.SearchKey(cache.SearchQuery{
		Latitude:     q.Location.Latitude,
		Longitude:    q.Location.Longitude,
		RadiusMeters: q.RadiusMeters,
		Keyword:      q.Keyword,
		Filters:      q.Filters,
	}, e.precision)
	req.key = e.resultKey(req, searchKey)

	if e.catalog == nil || e.search == nil {
		req.logger.Warn().Msg("No candidates supplied and no catalog configured")
		return nil, nil
	}

	catalog := e.catalog
	found, src, err := cache.FetchJSON[[]models.RestaurantRecord](ctx, e.search, cache.Request{
		Key:   searchKey,
		Owner: req.userID,
		Load: func(ctx context.Context) ([]byte, error) {
			records, err := catalog.Search(ctx, q)
			if err != nil {
				return nil, err
			}
			return json.Marshal(records)
		},
	})
	if err != nil {
		req.logger.Error().Err(err).Str("key", searchKey).Msg("Catalog search failed")
		return nil, err
	}
	req.logger.Debug().Str("source", src).Int("results", len(found)).Msg("Catalog search complete")
	return pointers(found), nil
}

// enrich replaces searched records that lack safety data for the user's
// declared allergies or strict restrictions with their details record. Lookups
// are best effort; a record that stays incomplete is handled by the safety
// filter, which fails closed.
func (e *Engine) enrich(ctx context.Context, req *request, records []*models.RestaurantRecord) {
	if e.catalog == nil || e.search == nil || e.cfg.EnrichDetailsLimit == 0 || req.safety.Empty() {
		return
	}

	var targets []int
	for i, r := range records {
		if missingSafetyData(r, req.safety) {
			targets = append(targets, i)
			if len(targets) == e.cfg.EnrichDetailsLimit {
				break
			}
		}
	}
	if len(targets) == 0 {
		return
	}

	catalog := e.catalog
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for _, i := range targets {
		id := records[i].ID
		g.Go(func() error {
			detail, _, err := cache.FetchJSON[models.RestaurantRecord](gctx, e.search, cache.Request{
				Key:   cache.DetailsKey(id),
				Owner: req.userID,
				Load: func(ctx context.Context) ([]byte, error) {
					rec, err := catalog.Details(ctx, id)
					if err != nil {
						return nil, err
					}
					return json.Marshal(rec)
				},
			})
			if err != nil {
				req.logger.Debug().Err(err).Str("restaurant_id", id).Msg("Details lookup failed, keeping search record")
				return nil
			}
			if detail.ID == id && detail.Check() == nil {
				records[i] = &detail
			}
			return nil
		})
	}
	_ = g.Wait()
}

func missingSafetyData(r *models.RestaurantRecord, c SafetyConstraints) bool {
	for _, a := range c.Allergies {
		if _, ok := r.AllergenSafety[a.Allergen]; !ok {
			return true
		}
	}
	for _, s := range c.Strict {
		if _, ok := r.DietaryCompatibility[s]; !ok {
			return true
		}
	}
	return false
}

// ruleBased builds the capped rule-based recommendation.
func (e *Engine) ruleBased(req *request, strategy models.Strategy, scored []models.ScoredCandidate) *models.Recommendation {
	capped := capCandidates(scored, e.cfg.MaxResults)
	rec := &models.Recommendation{
		RequestID:         req.id,
		UserID:            req.userID,
		Candidates:        capped,
		Strategy:          strategy,
		Status:            models.StatusRuleBased,
		Confidence:        e.ruleConfidence(capped),
		Reasoning:         e.ruleReasoning(req, strategy, len(scored), len(capped)),
		TotalCandidates:   req.total,
		ExcludedForSafety: req.excluded,
	}
	rec.Budget = e.budget.Annotate(rec.Candidates, req.fctx.Budget)
	return rec
}

// rerank asks the ranker to reorder the top slice and splices the answer back
// in front of the remaining rule-ranked candidates. A fallback answer marks
// rule with the degradation and returns it.
func (e *Engine) rerank(ctx context.Context, req *request, strategy models.Strategy, scored []models.ScoredCandidate, rule *models.Recommendation) *models.Recommendation {
	topN := min(e.cfg.AITopN, len(scored))
	res := e.ranker.Rank(ctx, &ai.Input{
		UserID:     req.userID,
		Profile:    req.profile,
		Context:    &req.fctx,
		Strategy:   strategy,
		Candidates: scored[:topN],
	})

	switch res.Status {
	case models.StatusAI, models.StatusAICached:
	case models.StatusFallback:
		rule.Status = models.StatusFallback
		rule.Degradation = res.Degradation
		var rl *models.RateLimitError
		if errors.As(res.Err, &rl) {
			rule.RetryAfterSeconds = rl.RetryAfterSeconds()
		}
		return rule
	default:
		return rule
	}

	merged := make([]models.ScoredCandidate, 0, len(scored))
	merged = append(merged, res.Candidates...)
	merged = append(merged, scored[topN:]...)

	rec := &models.Recommendation{
		RequestID:         req.id,
		UserID:            req.userID,
		Candidates:        capCandidates(merged, e.cfg.MaxResults),
		Strategy:          strategy,
		Status:            res.Status,
		Confidence:        res.Confidence,
		Reasoning:         res.Reasoning,
		TotalCandidates:   req.total,
		ExcludedForSafety: req.excluded,
	}
	if rec.Reasoning == "" {
		rec.Reasoning = rule.Reasoning
	}
	rec.Budget = e.budget.Annotate(rec.Candidates, req.fctx.Budget)
	return rec
}

// ruleConfidence is the mean score of the returned candidates, scaled down when
// fewer than MaxResults survived.
func (e *Engine) ruleConfidence(candidates []models.ScoredCandidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for i := range candidates {
		sum += candidates[i].Score
	}
	mean := sum / float64(len(candidates))
	coverage := min(1, float64(len(candidates))/float64(e.cfg.MaxResults))
	return models.Clamp01(mean * coverage)
}

func (e *Engine) ruleReasoning(req *request, strategy models.Strategy, scored, returned int) string {
	if returned == 0 {
		if req.total == 0 {
			return "No restaurants were found for this request."
		}
		return fmt.Sprintf("None of the %d restaurants found are safe and suitable for your dietary profile.", req.total)
	}
	msg := fmt.Sprintf("Top %d of %d suitable restaurants ranked for %s", returned, scored, strings.ReplaceAll(string(strategy), "-", " "))
	if req.excluded > 0 {
		msg += fmt.Sprintf("; %d excluded for allergy or diet safety", req.excluded)
	}
	return msg + "."
}

// timedOut returns the best result available once the request deadline has
// passed: the rule-based ranking, else the last good result, else an empty one.
func (e *Engine) timedOut(req *request, partial *models.Recommendation) *models.Recommendation {
	req.logger.Warn().Msg("Recommendation deadline reached, returning best available result")

	if partial != nil {
		partial.Status = models.StatusPartial
		partial.Degradation = models.CodeTimeout
		return partial
	}
	if last := e.lastGood(req); last != nil {
		return last
	}
	return e.emptyResult(req, "Timed out before any restaurants could be ranked.")
}

func (e *Engine) emptyResult(req *request, reasoning string) *models.Recommendation {
	rec := &models.Recommendation{
		RequestID:         req.id,
		UserID:            req.userID,
		Candidates:        []models.ScoredCandidate{},
		Reasoning:         reasoning,
		Status:            models.StatusPartial,
		Degradation:       models.CodeTimeout,
		TotalCandidates:   req.total,
		ExcludedForSafety: req.excluded,
	}
	rec.Budget = e.budget.Annotate(nil, req.fctx.Budget)
	return rec
}

// resultKey scopes last-good results to the user and the profile version, so a
// profile edit never resurfaces a result computed under older constraints.
func (e *Engine) resultKey(req *request, requestKey string) string {
	version := ""
	if req.profile != nil {
		version = req.profile.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return cache.Fingerprint(req.userID, version, requestKey)
}

func (e *Engine) remember(req *request, rec *models.Recommendation) {
	if req.key == "" || len(rec.Candidates) == 0 {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		req.logger.Warn().Err(err).Msg("Could not encode result for reuse")
		return
	}
	entry := cache.NewEntry(req.key, req.userID, payload, e.clock(), e.cfg.ResultCacheTTL)
	_ = e.results.Set(context.Background(), entry)
}

// lastGood returns the remembered result for the request, re-checked against
// the current safety constraints.
func (e *Engine) lastGood(req *request) *models.Recommendation {
	if req.key == "" {
		return nil
	}
	entry, err := e.results.Get(context.Background(), req.key)
	if err != nil {
		return nil
	}
	var rec models.Recommendation
	if err := json.Unmarshal(entry.Payload, &rec); err != nil {
		_ = e.results.Delete(context.Background(), req.key)
		return nil
	}

	restaurants := make([]*models.RestaurantRecord, len(rec.Candidates))
	for i := range rec.Candidates {
		restaurants[i] = rec.Candidates[i].Restaurant
	}
	safe, _ := FilterSafe(restaurants, req.safety)
	allowed := make(map[*models.RestaurantRecord]bool, len(safe))
	for _, r := range safe {
		allowed[r] = true
	}
	kept := rec.Candidates[:0]
	for _, c := range rec.Candidates {
		if c.Restaurant != nil && allowed[c.Restaurant] {
			kept = append(kept, c)
		}
	}
	rec.Candidates = kept
	rec.RequestID = req.id
	rec.Status = models.StatusCached
	rec.Degradation = models.CodeTimeout
	return &rec
}

func (e *Engine) finish(req *request, rec *models.Recommendation) *models.Recommendation {
	rec.GeneratedAt = e.clock()
	if rec.Candidates == nil {
		rec.Candidates = []models.ScoredCandidate{}
	}
	elapsed := rec.GeneratedAt.Sub(req.start)
	metrics.RecordRecommendation(string(rec.Status), elapsed)

	req.logger.Info().
		Str("status", string(rec.Status)).
		Str("strategy", string(rec.Strategy)).
		Str("degradation", rec.Degradation).
		Int("total", rec.TotalCandidates).
		Int("excluded", rec.ExcludedForSafety).
		Int("returned", len(rec.Candidates)).
		Dur("elapsed", elapsed).
		Msg("Recommendation served")
	return rec
}

// Status reports usage against the daily limits, AI limiter occupancy and
// cache statistics.
func (e *Engine) Status() models.UsageStatus {
	var s models.UsageStatus
	if e.gov != nil {
		s = e.gov.Status()
	}
	if e.limiter != nil {
		s.RateLimiterInUse = e.limiter.InUse()
		s.RateLimiterLimit = e.limiter.Limit()
	}
	s.Caches = make(map[string]models.CacheStats, len(e.caches))
	for _, m := range e.caches {
		s.Caches[m.Name()] = m.Stats()
	}
	return s
}

func pointers(records []models.RestaurantRecord) []*models.RestaurantRecord {
	out := make([]*models.RestaurantRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out
}

func capCandidates(candidates []models.ScoredCandidate, limit int) []models.ScoredCandidate {
	n := min(limit, len(candidates))
	out := make([]models.ScoredCandidate, n)
	copy(out, candidates[:n])
	return out
}
