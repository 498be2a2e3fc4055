// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
)

// Default strategy predicates, evaluated in models.AllStrategies order.
// Exploration is the fallback and has no predicate.
var defaultExpressions = map[models.Strategy]string{
	models.StrategyQuickMeal:       `has_time_limit && time_available_minutes < quick_meal_minutes`,
	models.StrategyHealthyFocus:    `health_mood || meal_time == "breakfast"`,
	models.StrategyBudgetConscious: `has_budget`,
}

// costLimit bounds a single predicate evaluation.
const costLimit = 10000

// StrategySelector maps a FilterContext onto a strategy through a fixed-precedence
// table of compiled CEL predicates.
type StrategySelector struct {
	cfg      StrategyConfig
	programs []strategyProgram
	logger   zerolog.Logger
}

type strategyProgram struct {
	strategy models.Strategy
	expr     string
	program  cel.Program
}

// NewStrategySelector compiles the predicates. Configured expressions replace the
// defaults; an expression that does not compile to a bool is rejected.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStrategySelector(cfg StrategyConfig, logger zerolog.Logger) (*StrategySelector, error) {
	env, err := cel.NewEnv(
		cel.Variable("time_available_minutes", cel.IntType),
		cel.Variable("has_time_limit", cel.BoolType),
		cel.Variable("mood", cel.StringType),
		cel.Variable("health_mood", cel.BoolType),
		cel.Variable("meal_time", cel.StringType),
		cel.Variable("has_budget", cel.BoolType),
		cel.Variable("group_size", cel.IntType),
		cel.Variable("quick_meal_minutes", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create strategy environment: %w", err)
	}

	s := &StrategySelector{
		cfg:    cfg,
		logger: logger.With().Str("component", "strategy").Logger(),
	}

	for _, strategy := range models.AllStrategies {
		expr, ok := cfg.Expressions[strategy]
		if !ok {
			expr, ok = defaultExpressions[strategy]
		}
		if !ok {
			continue
		}

		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile %s predicate: %w", strategy, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("%s predicate must be a bool expression, got %s", strategy, ast.OutputType())
		}

		prog, err := env.Program(ast, cel.CostLimit(costLimit))
		if err != nil {
			return nil, fmt.Errorf("build %s predicate: %w", strategy, err)
		}
		s.programs = append(s.programs, strategyProgram{strategy: strategy, expr: expr, program: prog})
	}

	return s, nil
}

// Select returns the first strategy whose predicate holds, or exploration.
func (s *StrategySelector) Select(fctx *models.FilterContext) models.Strategy {
	vars := s.variables(fctx)
	for _, p := range s.programs {
		out, _, err := p.program.Eval(vars)
		if err != nil {
			s.logger.Warn().Err(err).Str("strategy", string(p.strategy)).Msg("Strategy predicate failed, treating as false")
			continue
		}
		matched, ok := out.Value().(bool)
		if !ok {
			s.logger.Warn().Str("strategy", string(p.strategy)).Msg("Strategy predicate returned non-bool, treating as false")
			continue
		}
		if matched {
			return p.strategy
		}
	}
	return models.StrategyExploration
}

func (s *StrategySelector) variables(fctx *models.FilterContext) map[string]any {
	timeAvailable := int64(-1)
	if fctx.TimeAvailableMinutes != nil {
		timeAvailable = int64(*fctx.TimeAvailableMinutes)
	}
	return map[string]any{
		"time_available_minutes": timeAvailable,
		"has_time_limit":         fctx.TimeAvailableMinutes != nil,
		"mood":                   fctx.Mood,
		"health_mood":            s.cfg.isHealthyMood(fctx.Mood),
		"meal_time":              string(fctx.MealTime),
		"has_budget":             fctx.Budget != nil,
		"group_size":             int64(fctx.GroupSize),
		"quick_meal_minutes":     int64(s.cfg.QuickMealMinutes),
	}
}

// PreFilter applies the strategy's candidate restriction. Quick-meal drops
// restaurants whose known average wait does not fit the time available.
// Budget-conscious drops restaurants whose estimated cost is beyond a small
// stretch of the daily allowance.
func PreFilter(strategy models.Strategy, restaurants []*models.RestaurantRecord, fctx *models.FilterContext, budget *BudgetCalculator) []*models.RestaurantRecord {
	switch strategy {
	case models.StrategyQuickMeal:
		if fctx.TimeAvailableMinutes == nil {
			return restaurants
		}
		limit := *fctx.TimeAvailableMinutes
		out := make([]*models.RestaurantRecord, 0, len(restaurants))
		for _, r := range restaurants {
			if r.AverageWaitMinutes != nil && *r.AverageWaitMinutes >= limit {
				continue
			}
			out = append(out, r)
		}
		return out

	case models.StrategyBudgetConscious:
		if fctx.Budget == nil || budget == nil {
			return restaurants
		}
		out := make([]*models.RestaurantRecord, 0, len(restaurants))
		for _, r := range restaurants {
			impact := budget.Impact(budget.EstimatedCost(r), fctx.Budget)
			if impact.Class == models.BudgetSaveForLater {
				continue
			}
			out = append(out, r)
		}
		return out

	default:
		return restaurants
	}
}
