// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mealwise/internal/logging"
	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/preferences"
)

// maxBodyBytes bounds request bodies. A thousand inline candidates fit.
const maxBodyBytes = 4 << 20

// maxCandidates mirrors the validate tag on models.RecommendationRequest.
const maxCandidates = 1000

// readinessTimeout bounds all readiness checks together.
const readinessTimeout = 3 * time.Second

// Recommender is the engine as seen by the HTTP layer.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, fctx models.FilterContext, candidates []models.RestaurantRecord) (*models.Recommendation, error)
	Status() models.UsageStatus
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler serves the API endpoints.
type Handler struct {
	engine    Recommender
	profiles  preferences.Store
	checks    map[string]ReadinessCheck
	version   string
	startTime time.Time
}

// NewHandler creates a handler. profiles may be nil, in which case the
// preference routes are not mounted.
func NewHandler(engine Recommender, profiles preferences.Store, version string) *Handler {
	return &Handler{
		engine:    engine,
		profiles:  profiles,
		checks:    make(map[string]ReadinessCheck),
		version:   version,
		startTime: time.Now(),
	}
}

// AddReadinessCheck registers a named check run by /health/ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// Recommend handles POST /api/v1/recommendations.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.Fail(err)
		return
	}
	if len(req.Candidates) > maxCandidates {
		rw.Fail(models.NewValidationError("invalid request", models.FieldError{
			Field:   "candidates",
			Message: fmt.Sprintf("at most %d candidates may be supplied", maxCandidates),
		}))
		return
	}
	if !mayActFor(r.Context(), req.UserID) {
		rw.Error(http.StatusForbidden, codeForbidden, "token subject does not match user_id")
		return
	}

	rec, err := h.engine.GetRecommendations(r.Context(), req.UserID, req.Context, req.Candidates)
	if err != nil {
		rw.Fail(err)
		return
	}

	if rec.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rec.RetryAfterSeconds))
	}
	cached := rec.Status == models.StatusCached || rec.Status == models.StatusAICached
	rw.SuccessCached(rec, cached)
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.Status())
}

// healthResponse is the body of the health endpoints.
type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. It only reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready handles GET /health/ready, running every registered check
// concurrently. Any failure answers 503 with per-check results.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			results[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        make(map[string]string, len(names)),
	}
	for i, name := range names {
		if results[i] != nil {
			resp.Status = "unavailable"
			resp.Checks[name] = results[i].Error()
			logging.Ctx(r.Context()).Warn().Err(results[i]).Str("check", name).Msg("Readiness check failed")
			continue
		}
		resp.Checks[name] = "ok"
	}

	rw := NewResponseWriter(w, r)
	if resp.Status != "ok" {
		rw.write(http.StatusServiceUnavailable, resp, false)
		return
	}
	rw.Success(resp)
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return models.NewValidationError("request body is empty")
		case errors.As(err, &tooLarge):
			return models.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		default:
			return models.NewValidationError("malformed JSON body: " + err.Error())
		}
	}
	if dec.More() {
		return models.NewValidationError("request body must hold a single JSON object")
	}
	return nil
}
