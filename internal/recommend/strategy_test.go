// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
)

func intPtr(v int) *int { return &v }

func TestStrategySelector_Select(t *testing.T) {
	t.Parallel()

	sel, err := NewStrategySelector(DefaultConfig().Strategy, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStrategySelector: %v", err)
	}
	budget := &models.BudgetConstraint{RemainingBudget: 100, DaysRemaining: 5}

	tests := []struct {
		name string
		fctx models.FilterContext
		want models.Strategy
	}{
		{
			name: "no signals explores",
			fctx: models.FilterContext{MealTime: models.MealDinner},
			want: models.StrategyExploration,
		},
		{
			name: "short time is quick meal",
			fctx: models.FilterContext{MealTime: models.MealLunch, TimeAvailableMinutes: intPtr(20)},
			want: models.StrategyQuickMeal,
		},
		{
			name: "time at threshold is not quick meal",
			fctx: models.FilterContext{MealTime: models.MealLunch, TimeAvailableMinutes: intPtr(30)},
			want: models.StrategyExploration,
		},
		{
			name: "quick meal beats healthy mood",
			fctx: models.FilterContext{MealTime: models.MealLunch, Mood: "healthy", TimeAvailableMinutes: intPtr(10)},
			want: models.StrategyQuickMeal,
		},
		{
			name: "healthy mood case-insensitive",
			fctx: models.FilterContext{MealTime: models.MealDinner, Mood: "Post-Workout"},
			want: models.StrategyHealthyFocus,
		},
		{
			name: "breakfast is healthy focus",
			fctx: models.FilterContext{MealTime: models.MealBreakfast},
			want: models.StrategyHealthyFocus,
		},
		{
			name: "healthy beats budget",
			fctx: models.FilterContext{MealTime: models.MealBreakfast, Budget: budget},
			want: models.StrategyHealthyFocus,
		},
		{
			name: "budget present",
			fctx: models.FilterContext{MealTime: models.MealDinner, Budget: budget},
			want: models.StrategyBudgetConscious,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := sel.Select(&tt.fctx); got != tt.want {
				t.Errorf("Select() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStrategySelector_CustomExpression(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig().Strategy
	cfg.Expressions = map[models.Strategy]string{
		models.StrategyBudgetConscious: `has_budget || group_size >= 6`,
	}
	sel, err := NewStrategySelector(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStrategySelector: %v", err)
	}

	fctx := models.FilterContext{MealTime: models.MealDinner, GroupSize: 8}
	if got := sel.Select(&fctx); got != models.StrategyBudgetConscious {
		t.Errorf("Select() = %s, want budget-conscious for a large group", got)
	}
}

func TestStrategySelector_RejectsBadExpressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{"syntax error", `has_budget &&`},
		{"unknown variable", `calories < 500`},
		{"non-bool result", `group_size + 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig().Strategy
			cfg.Expressions = map[models.Strategy]string{models.StrategyQuickMeal: tt.expr}
			if _, err := NewStrategySelector(cfg, zerolog.Nop()); err == nil {
				t.Errorf("expression %q accepted, want error", tt.expr)
			}
		})
	}
}

func TestPreFilter(t *testing.T) {
	t.Parallel()

	calc := NewBudgetCalculator(DefaultConfig().Budget)
	records := ptrs(
		restaurant("fast", withWait(10), withCost(15)),
		restaurant("slow", withWait(45), withCost(22)),
		restaurant("unknown-wait", withCost(40)),
	)

	t.Run("quick meal drops slow kitchens", func(t *testing.T) {
		t.Parallel()
		fctx := &models.FilterContext{TimeAvailableMinutes: intPtr(30)}
		got := PreFilter(models.StrategyQuickMeal, records, fctx, calc)
		if len(got) != 2 || got[0].ID != "fast" || got[1].ID != "unknown-wait" {
			t.Errorf("kept %v, want fast and unknown-wait", got)
		}
	})

	t.Run("budget drops save-for-later", func(t *testing.T) {
		t.Parallel()
		// Allowance 20; 25% stretch allows up to 25.
		fctx := &models.FilterContext{Budget: &models.BudgetConstraint{RemainingBudget: 100, DaysRemaining: 5}}
		got := PreFilter(models.StrategyBudgetConscious, records, fctx, calc)
		if len(got) != 2 || got[0].ID != "fast" || got[1].ID != "slow" {
			t.Errorf("kept %v, want fast and slow", got)
		}
	})

	t.Run("exploration keeps all", func(t *testing.T) {
		t.Parallel()
		got := PreFilter(models.StrategyExploration, records, &models.FilterContext{}, calc)
		if len(got) != 3 {
			t.Errorf("kept %d, want 3", len(got))
		}
	})
}
