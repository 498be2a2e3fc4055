// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"lat" validate:"min=-90,max=90"`
	Longitude float64 `json:"lng" validate:"min=-180,max=180"`
}

// RestaurantRecord is a catalog entry. The engine treats it as immutable input.
type RestaurantRecord struct {
	ID                     string                                    `json:"id"`
	Name                   string                                    `json:"name,omitempty"`
	Location               Coordinates                               `json:"location"`
	PriceTier              int                                       `json:"price_tier"`
	Rating                 float64                                   `json:"rating"`
	Cuisines               []string                                  `json:"cuisines,omitempty"`
	DietaryCompatibility   map[DietaryRestriction]CompatibilityLevel `json:"dietary_compatibility,omitempty"`
	AllergenSafety         map[Allergen]SafetyLevel                  `json:"allergen_safety,omitempty"`
	VerificationCounts     map[DietaryRestriction]int                `json:"verification_counts,omitempty"`
	AverageWaitMinutes     *int                                      `json:"average_wait_minutes,omitempty"`
	EstimatedCostPerPerson *float64                                  `json:"estimated_cost_per_person,omitempty"`
	MealTimes              []MealTime                                `json:"meal_times,omitempty"`
	Tags                   []string                                  `json:"tags,omitempty"`
	LastUpdated            time.Time                                 `json:"last_updated"`
}

// ErrMalformedRecord marks a catalog record that cannot be scored.
var ErrMalformedRecord = errors.New("malformed restaurant record")

// Check reports why a record cannot be scored, or nil. Records failing Check are
// dropped individually; they never abort a request.
func (r *RestaurantRecord) Check() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: empty id", ErrMalformedRecord)
	case r.PriceTier < 1 || r.PriceTier > 4:
		return fmt.Errorf("%w: %s: price tier %d outside 1-4", ErrMalformedRecord, r.ID, r.PriceTier)
	case math.IsNaN(r.Rating) || r.Rating < 0 || r.Rating > 5:
		return fmt.Errorf("%w: %s: rating %v outside 0-5", ErrMalformedRecord, r.ID, r.Rating)
	case math.IsNaN(r.Location.Latitude) || math.IsNaN(r.Location.Longitude):
		return fmt.Errorf("%w: %s: coordinates are not numbers", ErrMalformedRecord, r.ID)
	}
	for k, v := range r.DietaryCompatibility {
		if !k.IsValid() || !v.IsValid() {
			return fmt.Errorf("%w: %s: bad compatibility entry %q=%q", ErrMalformedRecord, r.ID, k, v)
		}
	}
	for k, v := range r.AllergenSafety {
		if !k.IsValid() || !v.IsValid() {
			return fmt.Errorf("%w: %s: bad safety entry %q=%q", ErrMalformedRecord, r.ID, k, v)
		}
	}
	return nil
}

// TotalVerifications sums per-restriction verification counts.
func (r *RestaurantRecord) TotalVerifications() int {
	total := 0
	for _, n := range r.VerificationCounts {
		if n > 0 {
			total += n
		}
	}
	return total
}

// HasTag reports whether the record carries the given tag.
func (r *RestaurantRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ServesMealTime reports whether the record lists m. ok is false when the record
// carries no meal-time data.
func (r *RestaurantRecord) ServesMealTime(m MealTime) (serves, ok bool) {
	if len(r.MealTimes) == 0 {
		return false, false
	}
	for _, mt := range r.MealTimes {
		if mt == m {
			return true, true
		}
	}
	return false, true
}

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
