// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"testing"

	"github.com/tomtom215/mealwise/internal/models"
)

func TestBudgetCalculator_Impact(t *testing.T) {
	t.Parallel()

	calc := NewBudgetCalculator(DefaultConfig().Budget)
	budget := &models.BudgetConstraint{RemainingBudget: 300, DaysRemaining: 10}

	tests := []struct {
		name        string
		cost        float64
		wantClass   models.BudgetClass
		wantMessage models.BudgetMessage
		wantOverage float64
	}{
		{"under allowance", 18, models.BudgetWithin, models.MessageFitsAllowance, 0},
		{"exactly allowance", 30, models.BudgetWithin, models.MessageFitsAllowance, 0},
		{"small stretch", 36, models.BudgetSmallStretch, models.MessageMinorStretch, 6},
		{"stretch boundary", 37.5, models.BudgetSmallStretch, models.MessageMinorStretch, 7.5},
		{"save for later", 60, models.BudgetSaveForLater, models.MessageDeferToLater, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Impact(tt.cost, budget)
			if got.Class != tt.wantClass || got.Message != tt.wantMessage {
				t.Errorf("Impact(%v) = %s/%s, want %s/%s", tt.cost, got.Class, got.Message, tt.wantClass, tt.wantMessage)
			}
			if !approx(got.Overage, tt.wantOverage) {
				t.Errorf("Overage = %v, want %v", got.Overage, tt.wantOverage)
			}
			if got.DailyAllowance != 30 {
				t.Errorf("DailyAllowance = %v, want 30", got.DailyAllowance)
			}
		})
	}
}

func TestBudgetCalculator_NoBudget(t *testing.T) {
	t.Parallel()

	calc := NewBudgetCalculator(DefaultConfig().Budget)
	got := calc.Impact(42, nil)
	if got.Class != "" || got.Message != models.MessageNoBudgetContext || got.EstimatedCost != 42 {
		t.Errorf("Impact without budget = %+v", got)
	}
}

func TestBudgetCalculator_EstimatedCost(t *testing.T) {
	t.Parallel()

	calc := NewBudgetCalculator(DefaultConfig().Budget)
	withEstimate := restaurant("a", withPrice(4), withCost(19.5))
	tierOnly := restaurant("b", withPrice(3))

	if got := calc.EstimatedCost(&withEstimate); got != 19.5 {
		t.Errorf("EstimatedCost(estimate) = %v, want 19.5", got)
	}
	if got := calc.EstimatedCost(&tierOnly); got != 45 {
		t.Errorf("EstimatedCost(tier 3) = %v, want 45", got)
	}
}

func TestBudgetCalculator_Annotate(t *testing.T) {
	t.Parallel()

	calc := NewBudgetCalculator(DefaultConfig().Budget)
	a := restaurant("a", withCost(10))
	b := restaurant("b", withCost(22))
	c := restaurant("c", withCost(90))
	candidates := []models.ScoredCandidate{{Restaurant: &a}, {Restaurant: &b}, {Restaurant: &c}}

	summary := calc.Annotate(candidates, &models.BudgetConstraint{RemainingBudget: 140, DaysRemaining: 7})
	if summary.WithinBudget != 1 || summary.SmallStretch != 1 || summary.SaveForLater != 1 {
		t.Errorf("summary counts = %+v", summary)
	}
	if summary.Message != models.MessageFitsAllowance {
		t.Errorf("summary message = %s, want fits-allowance", summary.Message)
	}
	for _, cand := range candidates {
		if cand.BudgetImpact == nil {
			t.Errorf("%s has no budget impact", cand.Restaurant.ID)
		}
	}

	over := []models.ScoredCandidate{{Restaurant: &c}}
	if got := calc.Annotate(over, &models.BudgetConstraint{RemainingBudget: 140, DaysRemaining: 7}); got.Message != models.MessageDeferToLater {
		t.Errorf("all over budget message = %s, want defer-to-later", got.Message)
	}
}
