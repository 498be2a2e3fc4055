// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"math"

	"github.com/tomtom215/mealwise/internal/models"
)

// BudgetCalculator frames each candidate's cost against the user's daily allowance.
type BudgetCalculator struct {
	stretch   float64
	tierCosts []float64
}

// NewBudgetCalculator creates a calculator from cfg.
func NewBudgetCalculator(cfg BudgetConfig) *BudgetCalculator {
	return &BudgetCalculator{stretch: cfg.StretchThreshold, tierCosts: cfg.TierCosts}
}

// EstimatedCost returns the record's per-person cost estimate, falling back to
// the configured cost of its price tier.
func (b *BudgetCalculator) EstimatedCost(r *models.RestaurantRecord) float64 {
	if r.EstimatedCostPerPerson != nil && *r.EstimatedCostPerPerson >= 0 {
		return *r.EstimatedCostPerPerson
	}
	if r.PriceTier >= 1 && r.PriceTier <= len(b.tierCosts) {
		return b.tierCosts[r.PriceTier-1]
	}
	return 0
}

// Impact classifies cost against the budget's daily allowance. Without a budget
// the impact carries only the cost and the no-budget message.
func (b *BudgetCalculator) Impact(cost float64, budget *models.BudgetConstraint) models.BudgetImpact {
	if budget == nil {
		return models.BudgetImpact{EstimatedCost: cost, Message: models.MessageNoBudgetContext}
	}

	allowance := budget.DailyAllowance()
	overage := math.Max(0, cost-allowance)

	impact := models.BudgetImpact{
		EstimatedCost:  cost,
		DailyAllowance: allowance,
		Overage:        overage,
	}
	switch {
	case overage == 0:
		impact.Class, impact.Message = models.BudgetWithin, models.MessageFitsAllowance
	case overage <= b.stretch*allowance:
		impact.Class, impact.Message = models.BudgetSmallStretch, models.MessageMinorStretch
	default:
		impact.Class, impact.Message = models.BudgetSaveForLater, models.MessageDeferToLater
	}
	return impact
}

// Annotate sets BudgetImpact on every candidate and returns the list summary.
func (b *BudgetCalculator) Annotate(candidates []models.ScoredCandidate, budget *models.BudgetConstraint) models.BudgetSummary {
	summary := models.BudgetSummary{Message: models.MessageNoBudgetContext}
	if budget != nil {
		summary.DailyAllowance = budget.DailyAllowance()
	}

	for i := range candidates {
		impact := b.Impact(b.EstimatedCost(candidates[i].Restaurant), budget)
		candidates[i].BudgetImpact = &impact
		switch impact.Class {
		case models.BudgetWithin:
			summary.WithinBudget++
		case models.BudgetSmallStretch:
			summary.SmallStretch++
		case models.BudgetSaveForLater:
			summary.SaveForLater++
		}
	}

	if budget == nil {
		return summary
	}
	switch {
	case summary.WithinBudget > 0 || len(candidates) == 0:
		summary.Message = models.MessageFitsAllowance
	case summary.SmallStretch > 0:
		summary.Message = models.MessageMinorStretch
	default:
		summary.Message = models.MessageDeferToLater
	}
	return summary
}
