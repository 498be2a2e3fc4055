// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package models

import (
	"fmt"
)

// DietaryRestriction is a category of food a user chooses to avoid or follow.
type DietaryRestriction string

// Dietary restriction categories.
const (
	RestrictionVegetarian       DietaryRestriction = "vegetarian"
	RestrictionVegan            DietaryRestriction = "vegan"
	RestrictionPescatarian      DietaryRestriction = "pescatarian"
	RestrictionGlutenFree       DietaryRestriction = "gluten-free"
	RestrictionDairyFree        DietaryRestriction = "dairy-free"
	RestrictionNutFree          DietaryRestriction = "nut-free"
	RestrictionSoyFree          DietaryRestriction = "soy-free"
	RestrictionEggFree          DietaryRestriction = "egg-free"
	RestrictionShellfishFree    DietaryRestriction = "shellfish-free"
	RestrictionHalal            DietaryRestriction = "halal"
	RestrictionKosher           DietaryRestriction = "kosher"
	RestrictionKeto             DietaryRestriction = "keto"
	RestrictionPaleo            DietaryRestriction = "paleo"
	RestrictionLowCarb          DietaryRestriction = "low-carb"
	RestrictionLowSodium        DietaryRestriction = "low-sodium"
	RestrictionLowFat           DietaryRestriction = "low-fat"
	RestrictionLowSugar         DietaryRestriction = "low-sugar"
	RestrictionDiabeticFriendly DietaryRestriction = "diabetic-friendly"
	RestrictionFODMAP           DietaryRestriction = "fodmap"
	RestrictionRaw              DietaryRestriction = "raw"
	RestrictionWhole30          DietaryRestriction = "whole30"
	RestrictionJain             DietaryRestriction = "jain"
)

// AllRestrictions lists every recognized dietary restriction in declaration order.
var AllRestrictions = []DietaryRestriction{
	RestrictionVegetarian, RestrictionVegan, RestrictionPescatarian,
	RestrictionGlutenFree, RestrictionDairyFree, RestrictionNutFree,
	RestrictionSoyFree, RestrictionEggFree, RestrictionShellfishFree,
	RestrictionHalal, RestrictionKosher, RestrictionKeto, RestrictionPaleo,
	RestrictionLowCarb, RestrictionLowSodium, RestrictionLowFat,
	RestrictionLowSugar, RestrictionDiabeticFriendly, RestrictionFODMAP,
	RestrictionRaw, RestrictionWhole30, RestrictionJain,
}

// IsValid reports whether r is a recognized restriction.
func (r DietaryRestriction) IsValid() bool {
	for _, known := range AllRestrictions {
		if r == known {
			return true
		}
	}
	return false
}

// UnmarshalText rejects unknown restriction categories.
func (r *DietaryRestriction) UnmarshalText(b []byte) error {
	v := DietaryRestriction(b)
	if !v.IsValid() {
		return fmt.Errorf("%w: dietary restriction %q", ErrUnknownValue, string(b))
	}
	*r = v
	return nil
}

// Allergen is an allergen category a user may declare.
type Allergen string

// Allergen categories.
const (
	AllergenPeanuts   Allergen = "peanuts"
	AllergenTreeNuts  Allergen = "tree-nuts"
	AllergenMilk      Allergen = "milk"
	AllergenEggs      Allergen = "eggs"
	AllergenWheat     Allergen = "wheat"
	AllergenSoy       Allergen = "soy"
	AllergenFish      Allergen = "fish"
	AllergenShellfish Allergen = "shellfish"
	AllergenSesame    Allergen = "sesame"
	AllergenMustard   Allergen = "mustard"
	AllergenCelery    Allergen = "celery"
	AllergenLupin     Allergen = "lupin"
	AllergenSulphites Allergen = "sulphites"
	AllergenMolluscs  Allergen = "molluscs"
	AllergenGluten    Allergen = "gluten"
)

// AllAllergens lists every recognized allergen in declaration order.
var AllAllergens = []Allergen{
	AllergenPeanuts, AllergenTreeNuts, AllergenMilk, AllergenEggs,
	AllergenWheat, AllergenSoy, AllergenFish, AllergenShellfish,
	AllergenSesame, AllergenMustard, AllergenCelery, AllergenLupin,
	AllergenSulphites, AllergenMolluscs, AllergenGluten,
}

// IsValid reports whether a is a recognized allergen.
func (a Allergen) IsValid() bool {
	for _, known := range AllAllergens {
		if a == known {
			return true
		}
	}
	return false
}

// UnmarshalText rejects unknown allergens.
func (a *Allergen) UnmarshalText(b []byte) error {
	v := Allergen(b)
	if !v.IsValid() {
		return fmt.Errorf("%w: allergen %q", ErrUnknownValue, string(b))
	}
	*a = v
	return nil
}

// Severity classifies how dangerous an allergen is for a user.
type Severity string

// Allergy severities.
const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// IsValid reports whether s is a recognized severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	default:
		return false
	}
}

// UnmarshalText rejects unknown severities.
func (s *Severity) UnmarshalText(b []byte) error {
	v := Severity(b)
	if !v.IsValid() {
		return fmt.Errorf("%w: allergy severity %q", ErrUnknownValue, string(b))
	}
	*s = v
	return nil
}

// CompatibilityLevel rates how well a restaurant's menu serves a dietary restriction.
type CompatibilityLevel string

// Compatibility levels, best first.
const (
	CompatibilityFullMenu       CompatibilityLevel = "full-menu"
	CompatibilityManyOptions    CompatibilityLevel = "many-options"
	CompatibilitySomeOptions    CompatibilityLevel = "some-options"
	CompatibilityFewOptions     CompatibilityLevel = "few-options"
	CompatibilityLimitedOptions CompatibilityLevel = "limited-options"
	CompatibilityNotSuitable    CompatibilityLevel = "not-suitable"
)

// Score maps the level onto [0,1]. Unknown levels score 0.
func (c CompatibilityLevel) Score() float64 {
	switch c {
	case CompatibilityFullMenu:
		return 1.0
	case CompatibilityManyOptions:
		return 0.8
	case CompatibilitySomeOptions:
		return 0.6
	case CompatibilityFewOptions:
		return 0.4
	case CompatibilityLimitedOptions:
		return 0.2
	default:
		return 0.0
	}
}

// IsValid reports whether c is a recognized compatibility level.
func (c CompatibilityLevel) IsValid() bool {
	switch c {
	case CompatibilityFullMenu, CompatibilityManyOptions, CompatibilitySomeOptions,
		CompatibilityFewOptions, CompatibilityLimitedOptions, CompatibilityNotSuitable:
		return true
	default:
		return false
	}
}

// UnmarshalText rejects unknown compatibility levels.
func (c *CompatibilityLevel) UnmarshalText(b []byte) error {
	v := CompatibilityLevel(b)
	if !v.IsValid() {
		return fmt.Errorf("%w: compatibility level %q", ErrUnknownValue, string(b))
	}
	*c = v
	return nil
}

// SafetyLevel rates allergen cross-contamination risk at a restaurant.
type SafetyLevel string

// Safety levels, safest first.
const (
	SafetyAllergenFree       SafetyLevel = "allergen-free"
	SafetyDedicatedPrep      SafetyLevel = "dedicated-prep"
	SafetyCrossContamManaged SafetyLevel = "cross-contamination-managed"
	SafetyLimited            SafetyLevel = "limited-safety"
	SafetyNotSafe            SafetyLevel = "not-safe"
)

// IsValid reports whether s is a recognized safety level.
func (s SafetyLevel) IsValid() bool {
	switch s {
	case SafetyAllergenFree, SafetyDedicatedPrep, SafetyCrossContamManaged, SafetyLimited, SafetyNotSafe:
		return true
	default:
		return false
	}
}

// Unsafe reports whether the level excludes a restaurant for a declared allergy.
func (s SafetyLevel) Unsafe() bool {
	return s == SafetyLimited || s == SafetyNotSafe
}

// UnmarshalText rejects unknown safety levels.
func (s *SafetyLevel) UnmarshalText(b []byte) error {
	v := SafetyLevel(b)
	if !v.IsValid() {
		return fmt.Errorf("%w: safety level %q", ErrUnknownValue, string(b))
	}
	*s = v
	return nil
}

// Strategy is a named scoring profile selected from the request context.
type Strategy string

// Recommendation strategies.
const (
	StrategyQuickMeal       Strategy = "quick-meal"
	StrategyHealthyFocus    Strategy = "healthy-focus"
	StrategyBudgetConscious Strategy = "budget-conscious"
	StrategyExploration     Strategy = "exploration"
)

// AllStrategies lists strategies in selection precedence order.
var AllStrategies = []Strategy{
	StrategyQuickMeal, StrategyHealthyFocus, StrategyBudgetConscious, StrategyExploration,
}

// IsValid reports whether s is a recognized strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyQuickMeal, StrategyHealthyFocus, StrategyBudgetConscious, StrategyExploration:
		return true
	default:
		return false
	}
}

// MealTime is the meal slot a request is made for.
type MealTime string

// Meal-time slots.
const (
	MealBreakfast MealTime = "breakfast"
	MealBrunch    MealTime = "brunch"
	MealLunch     MealTime = "lunch"
	MealDinner    MealTime = "dinner"
	MealLateNight MealTime = "late-night"
	MealSnack     MealTime = "snack"
)

// IsValid reports whether m is a recognized meal-time slot.
func (m MealTime) IsValid() bool {
	switch m {
	case MealBreakfast, MealBrunch, MealLunch, MealDinner, MealLateNight, MealSnack:
		return true
	default:
		return false
	}
}

// UnmarshalText rejects unknown meal-time slots.
func (m *MealTime) UnmarshalText(b []byte) error {
	v := MealTime(b)
	if !v.IsValid() {
		return fmt.Errorf("%w: meal time %q", ErrUnknownValue, string(b))
	}
	*m = v
	return nil
}

// MealTimeAt derives the meal-time slot for a local wall-clock time.
func MealTimeAt(hour int) MealTime {
	switch {
	case hour >= 5 && hour < 10:
		return MealBreakfast
	case hour >= 10 && hour < 12:
		return MealBrunch
	case hour >= 12 && hour < 15:
		return MealLunch
	case hour >= 15 && hour < 17:
		return MealSnack
	case hour >= 17 && hour < 22:
		return MealDinner
	default:
		return MealLateNight
	}
}
