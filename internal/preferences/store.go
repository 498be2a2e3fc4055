// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package preferences stores user preference profiles.
//
// Two backends implement Store: MemoryStore for single-process deployments and
// tests, and PostgresStore (lib/pq, JSONB) for shared persistence. Both
// validate profiles on write and on read, so the engine never sees an
// undeclared enumeration value, and both announce writes through a Notifier
// so cached state derived from the old profile can be dropped.
package preferences

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/validation"
)

// Store reads and writes preference profiles. Get returns an error wrapping
// models.ErrNotFound for an unknown user.
type Store interface {
	Get(ctx context.Context, userID string) (*models.UserPreferenceProfile, error)
	Put(ctx context.Context, profile *models.UserPreferenceProfile) error
	Delete(ctx context.Context, userID string) error
}

// Notifier announces profile changes. events.Publisher implements it.
type Notifier interface {
	PreferenceUpdated(ctx context.Context, userID string, updatedAt time.Time) error
}

// normalize validates p and prepares it for storage: the user id is trimmed,
// affinity keys are lowercased, and UpdatedAt is stamped when zero.
func normalize(p *models.UserPreferenceProfile, now time.Time) (*models.UserPreferenceProfile, error) {
	if p == nil {
		return nil, models.NewValidationError("profile is required")
	}
	out := *p
	out.UserID = strings.TrimSpace(p.UserID)
	if out.Strictness == 0 {
		out.Strictness = 3
	}
	if len(p.CuisineAffinity) > 0 {
		out.CuisineAffinity = make(map[string]float64, len(p.CuisineAffinity))
		for k, v := range p.CuisineAffinity {
			out.CuisineAffinity[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = now
	}
	out.UpdatedAt = out.UpdatedAt.UTC()

	if verr := validation.ValidateStruct(&out); verr != nil {
		return nil, verr
	}
	return &out, nil
}

func notFound(userID string) error {
	return fmt.Errorf("preference profile %s: %w", userID, models.ErrNotFound)
}
