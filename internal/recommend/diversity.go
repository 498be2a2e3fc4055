// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package recommend

import (
	"strings"

	"github.com/tomtom215/mealwise/internal/models"
)

// diversityWindowFactor sizes the reordered prefix as a multiple of the
// result cap. Candidates beyond it keep their score order.
const diversityWindowFactor = 3

// Diversifier reorders scored candidates with Maximal Marginal Relevance so
// the top of an exploration list spans several cuisines instead of repeating
// the best-scoring one:
//
//	next = argmax[lambda*score(i) - (1-lambda)*max(sim(i, s)) for s in selected]
//
// sim is the Jaccard similarity of the two restaurants' cuisine sets.
type Diversifier struct {
	lambda float64
}

// NewDiversifier returns nil when lambda is outside (0, 1), meaning no
// reordering.
func NewDiversifier(lambda float64) *Diversifier {
	if lambda <= 0 || lambda >= 1 {
		return nil
	}
	return &Diversifier{lambda: lambda}
}

// Apply reorders the first window candidates and leaves the rest in place.
// Candidates with equal scores keep their relative order. The input slice is
// not modified. A nil Diversifier returns the input.
func (d *Diversifier) Apply(scored []models.ScoredCandidate, window int) []models.ScoredCandidate {
	if d == nil || len(scored) < 3 || window < 2 {
		return scored
	}
	window = min(window, len(scored))
	head := scored[:window]

	cuisines := make([]map[string]struct{}, window)
	for i := range head {
		cuisines[i] = cuisineSet(head[i].Restaurant)
	}

	out := make([]models.ScoredCandidate, 0, len(scored))
	picked := make([]bool, window)
	// maxSim[i] is candidate i's highest similarity to anything picked so far.
	maxSim := make([]float64, window)

	for len(out) < window {
		best, bestValue := -1, 0.0
		for i := range head {
			if picked[i] || !eligible(head, picked, i) {
				continue
			}
			v := d.lambda*head[i].Score - (1-d.lambda)*maxSim[i]
			if best < 0 || v > bestValue {
				best, bestValue = i, v
			}
		}
		picked[best] = true
		out = append(out, head[best])
		for i := range head {
			if !picked[i] {
				maxSim[i] = max(maxSim[i], jaccard(cuisines[i], cuisines[best]))
			}
		}
	}
	return append(out, scored[window:]...)
}

// eligible reports whether i is the first unpicked candidate of its
// equal-score run. Equal scores are already in tie-break order, and
// diversity never overrides that order.
func eligible(head []models.ScoredCandidate, picked []bool, i int) bool {
	return i == 0 || picked[i-1] || head[i-1].Score != head[i].Score
}

func cuisineSet(r *models.RestaurantRecord) map[string]struct{} {
	if r == nil {
		return nil
	}
	set := make(map[string]struct{}, len(r.Cuisines))
	for _, c := range r.Cuisines {
		set[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
