// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package places

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mealwise/internal/breaker"
	"github.com/tomtom215/mealwise/internal/governor"
	"github.com/tomtom215/mealwise/internal/metrics"
	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/retry"
	"github.com/tomtom215/mealwise/internal/upstream"
)

// ClientConfig configures the HTTP places client.
type ClientConfig struct {
	BaseURL string
	APIKey  string

	// Timeout bounds one attempt.
	// Default: 10s
	Timeout time.Duration

	// RequestsPerSecond and Burst pace outbound calls.
	// Default: 5 and 5
	RequestsPerSecond float64
	Burst             int

	Retry retry.Policy

	// CostPerCall is charged to the governor for every attempt.
	// Default: 0.017
	CostPerCall float64

	HTTPClient *http.Client
	Breaker    breaker.Config
}

// Client queries a remote places service. Every attempt waits for the pacing
// limiter, reserves its cost with the governor and runs behind a circuit
// breaker; transient failures are retried.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	gov     *governor.Governor
	logger  zerolog.Logger
}

// NewClient creates a places client.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewClient(cfg ClientConfig, gov *governor.Governor, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.CostPerCall < 0 {
		cfg.CostPerCall = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	bc := cfg.Breaker
	if bc.IsSuccessful == nil {
		// A 404 is an answer, not an outage.
		bc.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, models.ErrNotFound) || errors.Is(err, context.Canceled)
		}
	}

	return &Client{
		cfg:     cfg,
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: breaker.New[[]byte]("places", bc),
		gov:     gov,
		logger:  logger.With().Str("component", "places").Logger(),
	}
}

// maxResponseSize caps a places response body.
const maxResponseSize = 8 << 20

func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

// Search returns the restaurants within q.RadiusMeters of q.Location.
func (c *Client) Search(ctx context.Context, q Query) ([]models.RestaurantRecord, error) {
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Location.Latitude, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(q.Location.Longitude, 'f', -1, 64))
	params.Set("radius", strconv.FormatFloat(radius, 'f', 0, 64))
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		params.Set("keyword", kw)
	}
	if len(q.Filters) > 0 {
		params.Set("filters", strings.Join(q.Filters, ","))
	}

	body, err := c.get(ctx, "search", "/restaurants/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, models.NewParseError("places search response", string(body), err)
	}
	return decodeRecords(resp.Results, c.logger), nil
}

// Details returns the enriched record for id, or an error wrapping
// models.ErrNotFound.
func (c *Client) Details(ctx context.Context, id string) (*models.RestaurantRecord, error) {
	body, err := c.get(ctx, "details", "/restaurants/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	records := decodeRecords([]json.RawMessage{body}, c.logger)
	if len(records) == 0 {
		return nil, models.NewParseError("places details response", string(body), nil)
	}
	return &records[0], nil
}

func (c *Client) get(ctx context.Context, operation, path string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.cfg.Retry, nil, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := c.gov.Reserve(ServiceName, c.cfg.CostPerCall); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		out, err := c.breaker.Execute(func() ([]byte, error) {
			return c.do(attemptCtx, operation, path)
		})
		if breaker.Rejected(err) {
			return &models.ExternalServiceError{Service: ServiceName, Retryable: true, RetryAfter: time.Second, Cause: err}
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return &models.ExternalServiceError{Service: ServiceName, Retryable: true, Cause: err}
			}
			return err
		}
		body = out
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("retry_delay", wait).
			Msg("Places request failed, retrying")
	})
	return body, err
}

func (c *Client) do(ctx context.Context, operation, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.PlacesRequests.WithLabelValues(operation, "error").Inc()
		return nil, upstream.TransportError(ServiceName, err)
	}
	defer resp.Body.Close()
	metrics.PlacesRequests.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", ServiceName, path, models.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, upstream.StatusError(ServiceName, resp)
	}

	body, err := readAll(resp)
	if err != nil {
		return nil, upstream.TransportError(ServiceName, err)
	}
	return body, nil
}
