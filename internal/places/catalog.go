// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package places looks up restaurant candidates: an HTTP client for a remote
// places service and an in-memory catalog backed by a spatial grid.
package places

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/metrics"
	"github.com/tomtom215/mealwise/internal/models"
)

// ServiceName labels places errors, metrics and the breaker.
const ServiceName = "places"

// DefaultRadiusMeters applies when a query carries no radius.
const DefaultRadiusMeters = 2000.0

// Query is a catalog search.
type Query struct {
	Location     models.Coordinates
	RadiusMeters float64
	Keyword      string
	Filters      []string
}

// Catalog finds restaurants near a point and returns enriched records by id.
type Catalog interface {
	Search(ctx context.Context, q Query) ([]models.RestaurantRecord, error)
	Details(ctx context.Context, id string) (*models.RestaurantRecord, error)
}

// decodeRecords decodes each raw record on its own so one record with an
// unknown enum value or a bad field is dropped without losing the rest.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func decodeRecords(raw []json.RawMessage, logger zerolog.Logger) []models.RestaurantRecord {
	out := make([]models.RestaurantRecord, 0, len(raw))
	for i, r := range raw {
		var rec models.RestaurantRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			metrics.CandidatesDropped.Inc()
			logger.Warn().Err(err).Int("index", i).Msg("Dropping undecodable catalog record")
			continue
		}
		if err := rec.Check(); err != nil {
			metrics.CandidatesDropped.Inc()
			logger.Warn().Err(err).Msg("Dropping malformed catalog record")
			continue
		}
		out = append(out, rec)
	}
	return out
}
