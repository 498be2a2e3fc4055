// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package models defines the data structures shared across Mealwise.

Domain types:

  - UserPreferenceProfile: dietary restrictions, allergies and taste preferences
  - RestaurantRecord: catalog entry with per-restriction compatibility and per-allergen safety
  - FilterContext: per-request signals (time, mood, budget, time available)
  - ScoredCandidate and Recommendation: engine output

Closed enumerations (DietaryRestriction, Allergen, Severity, CompatibilityLevel,
SafetyLevel, Strategy, MealTime) reject unknown values when decoded, so malformed
collaborator data is stopped at the boundary.

The error taxonomy (ValidationError, ExternalServiceError, RateLimitError,
CostLimitError, CacheCorruptionError, ParseError) lives in errors.go together
with IsRetryable, the retry predicate shared by every outbound client.
*/
package models
