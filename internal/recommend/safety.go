// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"github.com/tomtom215/mealwise/internal/models"
)

// Exclusion reasons reported by the safety filter.
const (
	ReasonAllergenNotSafe       = "allergen_not_safe"
	ReasonAllergenUnknown       = "allergen_unknown"
	ReasonRestrictionUnsuitable = "restriction_unsuitable"
	ReasonRestrictionUnknown    = "restriction_unknown"
)

// Exclusion records why a restaurant was removed by the safety filter.
type Exclusion struct {
	RestaurantID string
	Reason       string
	Allergen     models.Allergen
	Restriction  models.DietaryRestriction
}

// SafetyConstraints are the hard constraints a restaurant must satisfy.
type SafetyConstraints struct {
	Allergies []models.Allergy
	Strict    []models.DietaryRestriction
}

// Empty reports whether the constraints exclude nothing.
func (c SafetyConstraints) Empty() bool {
	return len(c.Allergies) == 0 && len(c.Strict) == 0
}

// FilterSafe removes every restaurant that violates a declared allergy or strict
// restriction. Input order is preserved.
//
// An allergy excludes a restaurant whose safety level for it is not-safe or
// limited-safety. A severe allergy with no safety entry excludes the restaurant,
// while mild and moderate ones pass. A strict restriction excludes a restaurant
// whose compatibility is not-suitable, limited-options or unknown.
func FilterSafe(restaurants []*models.RestaurantRecord, c SafetyConstraints) ([]*models.RestaurantRecord, []Exclusion) {
	if c.Empty() {
		return restaurants, nil
	}

	kept := make([]*models.RestaurantRecord, 0, len(restaurants))
	var excluded []Exclusion
	for _, r := range restaurants {
		if ex, bad := checkSafety(r, c); bad {
			excluded = append(excluded, ex)
			continue
		}
		kept = append(kept, r)
	}
	return kept, excluded
}

func checkSafety(r *models.RestaurantRecord, c SafetyConstraints) (Exclusion, bool) {
	for _, a := range c.Allergies {
		level, known := r.AllergenSafety[a.Allergen]
		switch {
		case known && level.Unsafe():
			return Exclusion{RestaurantID: r.ID, Reason: ReasonAllergenNotSafe, Allergen: a.Allergen}, true
		case !known && a.Severity == models.SeveritySevere:
			return Exclusion{RestaurantID: r.ID, Reason: ReasonAllergenUnknown, Allergen: a.Allergen}, true
		}
	}

	for _, restriction := range c.Strict {
		level, known := r.DietaryCompatibility[restriction]
		switch {
		case !known:
			return Exclusion{RestaurantID: r.ID, Reason: ReasonRestrictionUnknown, Restriction: restriction}, true
		case level == models.CompatibilityNotSuitable || level == models.CompatibilityLimitedOptions:
			return Exclusion{RestaurantID: r.ID, Reason: ReasonRestrictionUnsuitable, Restriction: restriction}, true
		}
	}

	return Exclusion{}, false
}
