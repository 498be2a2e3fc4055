// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/cache"
	"github.com/tomtom215/mealwise/internal/governor"
	"github.com/tomtom215/mealwise/internal/metrics"
	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/retry"
)

// Config configures the AI client.
type Config struct {
	// Enabled turns AI re-ranking on. When false Rank returns the input order.
	Enabled bool

	// Timeout bounds one attempt.
	// Default: 15s
	Timeout time.Duration

	// Retry is the backoff policy for retryable failures.
	Retry retry.Policy

	// ResponseTTL is how long a parsed answer is cached.
	// Default: 1h
	ResponseTTL time.Duration

	// CostPerCall is charged to the governor for every attempt that reaches
	// the service.
	// Default: 0.002
	CostPerCall float64
}

// Result is the outcome of a ranking call. It is never an error: failures are
// reported through Status and Degradation.
type Result struct {
	// Candidates in final order. AI-ranked candidates lead, carrying the
	// model's reason; the rest follow in rule-based order.
	Candidates []models.ScoredCandidate

	Reasoning  string
	Confidence float64
	Weights    map[string]float64

	// Status is ai, ai_cached, fallback, or rule_based when AI is disabled.
	Status models.RecommendationStatus

	// Degradation is the error code behind a fallback.
	Degradation string

	// Err is the failure behind a fallback, kept for logging and retry hints.
	Err error
}

// Client ranks candidates through a Generator with caching, rate limiting,
// governance and retries, falling back to the rule-based order on any failure.
type Client struct {
	cfg       Config
	gen       Generator
	responses *cache.Manager
	limiter   *cache.SlidingWindowLimiter
	gov       *governor.Governor
	logger    zerolog.Logger
}

// NewClient wires the client. responses caches parsed answers, limiter paces
// calls, and gov charges each attempt.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewClient(cfg Config, gen Generator, responses *cache.Manager, limiter *cache.SlidingWindowLimiter, gov *governor.Governor, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = time.Hour
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.CostPerCall < 0 {
		cfg.CostPerCall = 0
	}
	return &Client{
		cfg:       cfg,
		gen:       gen,
		responses: responses,
		limiter:   limiter,
		gov:       gov,
		logger:    logger.With().Str("component", "ai").Logger(),
	}
}

// Enabled reports whether Rank will consult the generator.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.gen != nil
}

// Limiter returns the client's rate limiter.
func (c *Client) Limiter() *cache.SlidingWindowLimiter {
	return c.limiter
}

// Rank re-ranks in.Candidates. Cached answers are served without touching the
// limiter or the governor. In cache-only mode a cache miss falls back with a
// cost-limit degradation instead of calling the service.
func (c *Client) Rank(ctx context.Context, in *Input) *Result {
	if !c.Enabled() || len(in.Candidates) == 0 {
		return &Result{Candidates: in.Candidates, Status: models.StatusRuleBased}
	}

	offered := in.candidateIDs()
	key := ResponseKey(in)

	if err := c.gov.LimitError(); err != nil {
		resp, ok := c.cachedOnly(ctx, key, offered)
		if !ok {
			return c.fallback(in, err)
		}
		metrics.AICalls.WithLabelValues("cached").Inc()
		return c.apply(in, resp, models.StatusAICached)
	}

	resp, src, err := cache.FetchJSON[Response](ctx, c.responses, cache.Request{
		Key:   key,
		Owner: in.UserID,
		TTL:   c.cfg.ResponseTTL,
		Load:  c.loader(in, offered),
	})
	if err != nil {
		return c.fallback(in, err)
	}
	// Cached answers are checked against the offered ids again.
	if err := resp.validate(offered); err != nil {
		c.responses.Evict(ctx, key)
		return c.fallback(in, models.NewParseError(err.Error(), "", nil))
	}

	if src == cache.SourceUpstream {
		metrics.AICalls.WithLabelValues("success").Inc()
		return c.apply(in, &resp, models.StatusAI)
	}
	metrics.AICalls.WithLabelValues("cached").Inc()
	return c.apply(in, &resp, models.StatusAICached)
}

func (c *Client) cachedOnly(ctx context.Context, key string, offered []string) (*Response, bool) {
	data, _, err := c.responses.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil || resp.validate(offered) != nil {
		c.responses.Evict(ctx, key)
		return nil, false
	}
	return &resp, true
}

// loader performs the uncached call: limiter, governor, generator, parse, each
// attempt in that order.
func (c *Client) loader(in *Input, offered []string) cache.Loader {
	prompt := BuildPrompt(in)

	return func(ctx context.Context) ([]byte, error) {
		var parsed *Response

		err := retry.Do(ctx, c.cfg.Retry, nil, func(ctx context.Context, attempt int) error {
			if ok, wait := c.limiter.Allow(); !ok {
				metrics.RateLimitRejections.WithLabelValues(ServiceName).Inc()
				return models.NewRateLimitError(ServiceName, wait)
			}
			if err := c.gov.Reserve(ServiceName, c.cfg.CostPerCall); err != nil {
				return err
			}

			attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()

			start := time.Now()
			raw, err := c.gen.Generate(attemptCtx, prompt)
			metrics.AIAttemptDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					return &models.ExternalServiceError{Service: ServiceName, Retryable: true, Cause: err}
				}
				return err
			}

			resp, err := ParseResponse(raw, offered)
			if err != nil {
				return err
			}
			parsed = resp
			return nil
		}, func(attempt int, err error, wait time.Duration) {
			metrics.AIRetries.Inc()
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("retry_delay", wait).
				Msg("AI call failed, retrying")
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(parsed)
	}
}

// apply orders candidates by the model's ranking, keeping unranked candidates
// after the ranked ones in their original order.
func (c *Client) apply(in *Input, resp *Response, status models.RecommendationStatus) *Result {
	byID := make(map[string]int, len(in.Candidates))
	for i := range in.Candidates {
		byID[in.Candidates[i].Restaurant.ID] = i
	}

	out := make([]models.ScoredCandidate, 0, len(in.Candidates))
	used := make([]bool, len(in.Candidates))
	for _, item := range resp.Ranked {
		i, ok := byID[item.ID]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		sc := in.Candidates[i]
		sc.Reason = strings.TrimSpace(item.Reason)
		out = append(out, sc)
	}
	for i := range in.Candidates {
		if !used[i] {
			out = append(out, in.Candidates[i])
		}
	}

	return &Result{
		Candidates: out,
		Reasoning:  resp.Reasoning,
		Confidence: models.Clamp01(resp.Confidence),
		Weights:    resp.Weights,
		Status:     status,
	}
}

func (c *Client) fallback(in *Input, err error) *Result {
	outcome := "fallback"
	switch {
	case errors.Is(err, models.ErrRateLimitExceeded):
		outcome = "rate_limited"
	case errors.Is(err, models.ErrCostLimitExceeded):
		outcome = "cost_limited"
	}
	metrics.AICalls.WithLabelValues(outcome).Inc()

	code := models.ErrorCode(err)
	c.logger.Warn().
		Err(err).
		Str("user_id", in.UserID).
		Str("degradation", code).
		Msg("AI ranking unavailable, using rule-based order")

	return &Result{
		Candidates:  in.Candidates,
		Status:      models.StatusFallback,
		Degradation: code,
		Err:         err,
	}
}

// ResponseKey fingerprints the inputs that determine an answer: the user, a
// coarse budget band, the meal time, the offered ids in order and the craving.
func ResponseKey(in *Input) string {
	return cache.Fingerprint(
		in.UserID,
		budgetBand(in.Context.Budget),
		string(in.Context.MealTime),
		strings.Join(in.candidateIDs(), ","),
		strings.ToLower(strings.TrimSpace(in.Context.Craving)),
	)
}

// budgetBand buckets the daily allowance so small budget changes reuse answers.
func budgetBand(b *models.BudgetConstraint) string {
	if b == nil {
		return "none"
	}
	allowance := b.DailyAllowance()
	switch {
	case allowance < 10:
		return "lt10"
	case allowance < 20:
		return "lt20"
	case allowance < 40:
		return "lt40"
	case allowance < 80:
		return "lt80"
	default:
		return "80plus"
	}
}
