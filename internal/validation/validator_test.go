// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/mealwise/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

func validRequest() models.RecommendationRequest {
	return models.RecommendationRequest{
		UserID: "user-1",
		Context: models.FilterContext{
			MealTime:  models.MealLunch,
			GroupSize: 2,
		},
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	req := validRequest()
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("ValidateStruct() = %v, want nil", err)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		modify    func(*models.RecommendationRequest)
		wantField string
	}{
		{
			name:      "missing user id",
			modify:    func(r *models.RecommendationRequest) { r.UserID = "" },
			wantField: "user_id",
		},
		{
			name:      "group size zero",
			modify:    func(r *models.RecommendationRequest) { r.Context.GroupSize = 0 },
			wantField: "context.group_size",
		},
		{
			name:      "unknown meal time",
			modify:    func(r *models.RecommendationRequest) { r.Context.MealTime = "elevenses" },
			wantField: "context.meal_time",
		},
		{
			name: "budget days",
			modify: func(r *models.RecommendationRequest) {
				r.Context.Budget = &models.BudgetConstraint{RemainingBudget: 50, DaysRemaining: 0}
			},
			wantField: "context.budget.days_remaining",
		},
		{
			name: "latitude",
			modify: func(r *models.RecommendationRequest) {
				r.Context.Location = &models.Coordinates{Latitude: 123, Longitude: 0}
			},
			wantField: "context.location.lat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := validRequest()
			tt.modify(&req)
			err := ValidateStruct(&req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("error %v does not match ErrValidation", err)
			}
			found := false
			for _, f := range err.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("fields %+v do not include %q", err.Fields, tt.wantField)
			}
		})
	}
}

func TestValidateStruct_ProfileEnums(t *testing.T) {
	t.Parallel()

	profile := models.UserPreferenceProfile{
		UserID:     "u1",
		Strictness: 3,
		Allergies: []models.Allergy{
			{Allergen: "kryptonite", Severity: models.SeveritySevere},
		},
		CuisineAffinity: map[string]float64{"thai": 1.5},
	}
	err := ValidateStruct(&profile)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "allergen") {
		t.Errorf("message %q should mention allergen", msg)
	}
	if !strings.Contains(msg, "cuisine_affinity") {
		t.Errorf("message %q should mention cuisine_affinity", msg)
	}
}
