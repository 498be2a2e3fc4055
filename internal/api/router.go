// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/mealwise/internal/middleware"
	"github.com/tomtom215/mealwise/internal/models"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	auth          *Authenticator
}

// NewRouter creates a router. auth may be nil to serve without authentication.
func NewRouter(handler *Handler, mwConfig *ChiMiddlewareConfig, auth *Authenticator) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwConfig),
		auth:          auth,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(APISecurityHeaders())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusNotFound, codeNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, models.CodeValidation, "method not allowed")
	})

	r.Get("/health", router.handler.Health)
	r.Get("/health/ready", router.handler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		if router.auth != nil {
			r.Use(chiMiddleware(router.auth.Authenticate))
		}

		r.With(router.chiMiddleware.RateLimitRecommendations()).
			Post("/recommendations", router.handler.Recommend)
		r.Get("/status", router.handler.Status)

		if router.handler.profiles != nil {
			r.Get("/preferences/{userID}", router.handler.GetPreferences)
			r.Put("/preferences/{userID}", router.handler.PutPreferences)
			r.Delete("/preferences/{userID}", router.handler.DeletePreferences)
		}
	})

	return r
}
