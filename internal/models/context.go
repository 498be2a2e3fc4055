// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package models

import (
	"time"
)

// BudgetConstraint is the user's remaining spend for the current budget period.
type BudgetConstraint struct {
	RemainingBudget float64 `json:"remaining_budget" validate:"min=0"`
	DaysRemaining   int     `json:"days_remaining" validate:"min=1,max=366"`
}

// DailyAllowance is the remaining budget spread evenly across remaining days.
func (b *BudgetConstraint) DailyAllowance() float64 {
	days := b.DaysRemaining
	if days < 1 {
		days = 1
	}
	return b.RemainingBudget / float64(days)
}

// FilterContext carries the per-request contextual signals. It is built fresh for
// every request.
type FilterContext struct {
	CurrentTime          time.Time         `json:"current_time"`
	MealTime             MealTime          `json:"meal_time,omitempty" validate:"omitempty,enum"`
	Mood                 string            `json:"mood,omitempty" validate:"max=64"`
	GroupSize            int               `json:"group_size" validate:"min=1,max=100"`
	Budget               *BudgetConstraint `json:"budget,omitempty"`
	TimeAvailableMinutes *int              `json:"time_available_minutes,omitempty" validate:"omitempty,min=0,max=1440"`
	Location             *Coordinates      `json:"location,omitempty"`
	RadiusMeters         float64           `json:"radius_meters,omitempty" validate:"min=0,max=50000"`
	Keyword              string            `json:"keyword,omitempty" validate:"max=128"`
	Filters              []string          `json:"filters,omitempty" validate:"max=32,dive,max=64"`
	Craving              string            `json:"craving,omitempty" validate:"max=280"`
}

// Normalize fills derived fields: a zero CurrentTime becomes now, a zero group size
// becomes one diner, and an empty meal time is derived from CurrentTime.
func (c *FilterContext) Normalize(now time.Time) {
	if c.CurrentTime.IsZero() {
		c.CurrentTime = now
	}
	if c.GroupSize == 0 {
		c.GroupSize = 1
	}
	if c.MealTime == "" {
		c.MealTime = MealTimeAt(c.CurrentTime.Hour())
	}
}
