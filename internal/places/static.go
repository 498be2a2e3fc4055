// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package places

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
)

// StaticCatalog serves a fixed set of records from memory. It backs local
// development and tests, and deployments that ship their own catalog file.
type StaticCatalog struct {
	grid *spatialGrid
}

// NewStaticCatalog indexes records. Records failing Check are skipped.
func NewStaticCatalog(records []models.RestaurantRecord) *StaticCatalog {
	c := &StaticCatalog{grid: newSpatialGrid(1000)}
	for i := range records {
		r := records[i]
		if r.Check() != nil {
			continue
		}
		c.grid.insert(&r)
	}
	return c
}

// LoadStaticCatalog reads a JSON array of records from path. Undecodable or
// malformed records are logged and skipped.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func LoadStaticCatalog(path string, logger zerolog.Logger) (*StaticCatalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	records := decodeRecords(raw, logger.With().Str("component", "places").Logger())
	logger.Info().Str("path", path).Int("records", len(records)).Msg("Static catalog loaded")
	return NewStaticCatalog(records), nil
}

// Len returns the number of indexed records.
func (c *StaticCatalog) Len() int {
	return c.grid.size()
}

// Search returns matching records ordered by distance, then id.
func (c *StaticCatalog) Search(ctx context.Context, q Query) ([]models.RestaurantRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))

	type hit struct {
		rec  *models.RestaurantRecord
		dist float64
	}
	var hits []hit
	for _, r := range c.grid.nearby(q.Location, radius) {
		if keyword != "" && !matchesKeyword(r, keyword) {
			continue
		}
		if !matchesFilters(r, q.Filters) {
			continue
		}
		hits = append(hits, hit{rec: r, dist: models.DistanceMeters(q.Location, r.Location)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].rec.ID < hits[j].rec.ID
	})

	out := make([]models.RestaurantRecord, len(hits))
	for i, h := range hits {
		out[i] = *h.rec
	}
	return out, nil
}

// Details returns the record for id.
func (c *StaticCatalog) Details(ctx context.Context, id string) (*models.RestaurantRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := c.grid.get(id)
	if !ok {
		return nil, fmt.Errorf("restaurant %s: %w", id, models.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func matchesKeyword(r *models.RestaurantRecord, keyword string) bool {
	if strings.Contains(strings.ToLower(r.Name), keyword) {
		return true
	}
	for _, c := range r.Cuisines {
		if strings.Contains(strings.ToLower(c), keyword) {
			return true
		}
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), keyword) {
			return true
		}
	}
	return false
}

// matchesFilters requires every filter to name a cuisine, a tag, or a dietary
// restriction the restaurant serves with more than limited options.
func matchesFilters(r *models.RestaurantRecord, filters []string) bool {
	for _, f := range filters {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !matchesFilter(r, f) {
			return false
		}
	}
	return true
}

func matchesFilter(r *models.RestaurantRecord, f string) bool {
	for _, c := range r.Cuisines {
		if strings.EqualFold(c, f) {
			return true
		}
	}
	for _, t := range r.Tags {
		if strings.EqualFold(t, f) {
			return true
		}
	}
	level, ok := r.DietaryCompatibility[models.DietaryRestriction(f)]
	return ok && level != models.CompatibilityNotSuitable && level != models.CompatibilityLimitedOptions
}
