// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package recommend produces dietary-safe restaurant recommendations.
//
// # Pipeline
//
// Every request runs the same stages:
//
//  1. Validate the user id and FilterContext, then load the preference profile.
//  2. Obtain candidates: the supplied list, or a cached catalog search.
//  3. Safety filter: remove every restaurant violating a declared allergy or a
//     strict restriction. Nothing downstream sees an excluded restaurant.
//  4. Select a strategy from the context (CEL predicates, fixed precedence)
//     and apply its pre-filter.
//  5. Score every survivor on five factors and rank with a deterministic
//     tie-break.
//  6. Optionally re-rank the top slice with the AI ranker. Any AI failure
//     falls back to the rule-based order.
//  7. Cap the list, annotate budget impact, attach confidence and reasoning.
//
// # Safety
//
// The safety filter is fail-closed. A severe allergy or strict restriction
// the restaurant has no data for excludes it. Cached results replayed on
// timeout are filtered again against the current profile.
//
// # Usage
//
//	engine, err := recommend.NewEngine(cfg, store, logger,
//	    recommend.WithCatalog(catalog, searchCache, 3),
//	    recommend.WithRanker(aiClient),
//	)
//	rec, err := engine.GetRecommendations(ctx, "user-1", fctx, nil)
//
// # Thread Safety
//
// Engine is safe for concurrent use. Per-request state is local to the call.
package recommend
