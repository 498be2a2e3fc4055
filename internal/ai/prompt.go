// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tomtom215/mealwise/internal/models"
)

const systemPrompt = `You rank restaurants for a diner with dietary needs. Every candidate you are given has already passed the diner's allergy and strict-diet checks. Never invent restaurants. Answer with a single JSON object and nothing else.`

const responseSchema = `Respond with JSON of exactly this shape:
{
  "ranked": [{"id": "<candidate id>", "reason": "<one sentence>"}],
  "reasoning": "<two or three sentences on the overall choice>",
  "weights": {"dietary": 0-1, "cuisine": 0-1, "price": 0-1, "distance": 0-1, "contextual": 0-1},
  "confidence": 0-1
}
"ranked" must list a subset of the candidate ids above, best first, each at most once.`

// Input is what the AI client ranks.
type Input struct {
	UserID   string
	Profile  *models.UserPreferenceProfile
	Context  *models.FilterContext
	Strategy models.Strategy

	// Candidates are the rule-ranked top slice, best first.
	Candidates []models.ScoredCandidate
}

// candidateIDs returns the candidate ids in rank order.
func (in *Input) candidateIDs() []string {
	ids := make([]string, len(in.Candidates))
	for i := range in.Candidates {
		ids[i] = in.Candidates[i].Restaurant.ID
	}
	return ids
}

// BuildPrompt renders the user prompt. The output depends only on in, so equal
// inputs produce byte-identical prompts.
func BuildPrompt(in *Input) string {
	var b strings.Builder

	b.WriteString("## Diner\n")
	p := in.Profile
	if len(p.Restrictions) > 0 {
		parts := make([]string, 0, len(p.Restrictions))
		for _, r := range p.Restrictions {
			parts = append(parts, fmt.Sprintf("%s (strictness %d/5)", r.Restriction, p.StrictnessOf(r)))
		}
		fmt.Fprintf(&b, "Dietary restrictions: %s\n", strings.Join(parts, ", "))
	}
	if len(p.Allergies) > 0 {
		parts := make([]string, 0, len(p.Allergies))
		for _, a := range p.Allergies {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Allergen, a.Severity))
		}
		fmt.Fprintf(&b, "Allergies: %s\n", strings.Join(parts, ", "))
	}
	if len(p.CuisineAffinity) > 0 {
		cuisines := make([]string, 0, len(p.CuisineAffinity))
		for c := range p.CuisineAffinity {
			cuisines = append(cuisines, c)
		}
		sort.Strings(cuisines)
		parts := make([]string, 0, len(cuisines))
		for _, c := range cuisines {
			parts = append(parts, fmt.Sprintf("%s %.2f", c, p.CuisineAffinity[c]))
		}
		fmt.Fprintf(&b, "Cuisine affinity: %s\n", strings.Join(parts, ", "))
	}
	if p.PricePreference > 0 {
		fmt.Fprintf(&b, "Preferred price tier: up to %d of 4\n", p.PricePreference)
	}
	if p.DistancePreferenceMeters > 0 {
		fmt.Fprintf(&b, "Preferred distance: within %.0f m\n", p.DistancePreferenceMeters)
	}

	b.WriteString("\n## Situation\n")
	c := in.Context
	fmt.Fprintf(&b, "Meal: %s, party of %d, strategy %s\n", c.MealTime, c.GroupSize, in.Strategy)
	if c.Mood != "" {
		fmt.Fprintf(&b, "Mood: %s\n", c.Mood)
	}
	if c.TimeAvailableMinutes != nil {
		fmt.Fprintf(&b, "Time available: %d minutes\n", *c.TimeAvailableMinutes)
	}
	if c.Budget != nil {
		fmt.Fprintf(&b, "Budget: %.2f left over %d days (%.2f per day)\n",
			c.Budget.RemainingBudget, c.Budget.DaysRemaining, c.Budget.DailyAllowance())
	}
	if craving := strings.TrimSpace(c.Craving); craving != "" {
		fmt.Fprintf(&b, "Craving: %q\n", craving)
	}

	b.WriteString("\n## Candidates (rule-based order)\n")
	for i := range in.Candidates {
		sc := &in.Candidates[i]
		r := sc.Restaurant
		fmt.Fprintf(&b, "- id=%s", r.ID)
		if r.Name != "" {
			fmt.Fprintf(&b, " name=%q", r.Name)
		}
		fmt.Fprintf(&b, " score=%.3f tier=%d rating=%.1f", sc.Score, r.PriceTier, r.Rating)
		if len(r.Cuisines) > 0 {
			fmt.Fprintf(&b, " cuisines=%s", strings.Join(r.Cuisines, "/"))
		}
		if sc.DistanceMeters != nil {
			fmt.Fprintf(&b, " distance=%.0fm", *sc.DistanceMeters)
		}
		if r.AverageWaitMinutes != nil {
			fmt.Fprintf(&b, " wait=%dmin", *r.AverageWaitMinutes)
		}
		fmt.Fprintf(&b, " factors=[dietary %.2f cuisine %.2f price %.2f distance %.2f context %.2f]\n",
			sc.Factors.Dietary, sc.Factors.Cuisine, sc.Factors.Price, sc.Factors.Distance, sc.Factors.Contextual)
	}

	b.WriteString("\n")
	b.WriteString(responseSchema)
	return b.String()
}
