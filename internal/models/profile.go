// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package models

import (
	"time"
)

// RestrictionPreference is a declared dietary restriction and how strictly it is followed.
// Strictness 0 inherits the profile-level strictness.
type RestrictionPreference struct {
	Restriction DietaryRestriction `json:"restriction" validate:"required,enum"`
	Strictness  int                `json:"strictness,omitempty" validate:"omitempty,min=1,max=5"`
}

// Allergy is a declared allergen with its severity.
type Allergy struct {
	Allergen Allergen `json:"allergen" validate:"required,enum"`
	Severity Severity `json:"severity" validate:"required,enum"`
}

// UserPreferenceProfile is a user's dietary and taste profile. It is owned by the
// preference store and read-only to the engine.
type UserPreferenceProfile struct {
	UserID                   string                  `json:"user_id" validate:"required,max=128"`
	Restrictions             []RestrictionPreference `json:"restrictions,omitempty" validate:"dive"`
	Allergies                []Allergy               `json:"allergies,omitempty" validate:"dive"`
	CuisineAffinity          map[string]float64      `json:"cuisine_affinity,omitempty" validate:"dive,min=0,max=1"`
	PricePreference          int                     `json:"price_preference,omitempty" validate:"omitempty,min=1,max=4"`
	DistancePreferenceMeters float64                 `json:"distance_preference_meters,omitempty" validate:"omitempty,gt=0"`
	Strictness               int                     `json:"strictness" validate:"min=1,max=5"`
	UpdatedAt                time.Time               `json:"updated_at"`
}

// StrictnessOf returns the effective strictness of a declared restriction.
func (p *UserPreferenceProfile) StrictnessOf(r RestrictionPreference) int {
	if r.Strictness > 0 {
		return r.Strictness
	}
	return p.Strictness
}

// SplitRestrictions partitions declared restrictions into strict ones (at or above
// threshold) and the rest.
func (p *UserPreferenceProfile) SplitRestrictions(threshold int) (strict, lenient []DietaryRestriction) {
	for _, r := range p.Restrictions {
		if p.StrictnessOf(r) >= threshold {
			strict = append(strict, r.Restriction)
		} else {
			lenient = append(lenient, r.Restriction)
		}
	}
	return strict, lenient
}
