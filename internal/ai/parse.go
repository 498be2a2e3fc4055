// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package ai

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mealwise/internal/models"
)

// RankedItem is one entry of the model's ranking.
type RankedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Response is a validated model answer. It is also the cached payload.
type Response struct {
	Ranked     []RankedItem       `json:"ranked"`
	Reasoning  string             `json:"reasoning"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	Confidence float64            `json:"confidence"`
}

// ParseResponse decodes raw and validates it against the candidate ids that
// were offered. Markdown code fences around the JSON are tolerated. Every
// failure is a *models.ParseError.
func ParseResponse(raw string, offered []string) (*Response, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, models.NewParseError("empty response", raw, nil)
	}

	var resp Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, models.NewParseError("invalid JSON", raw, err)
	}
	if err := resp.validate(offered); err != nil {
		return nil, models.NewParseError(err.Error(), raw, nil)
	}
	resp.Reasoning = strings.TrimSpace(resp.Reasoning)
	return &resp, nil
}

func (r *Response) validate(offered []string) error {
	if len(r.Ranked) == 0 {
		return fmt.Errorf("ranking is empty")
	}
	allowed := make(map[string]struct{}, len(offered))
	for _, id := range offered {
		allowed[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(r.Ranked))
	for i, item := range r.Ranked {
		if _, ok := allowed[item.ID]; !ok {
			return fmt.Errorf("ranked[%d]: id %q was not offered", i, item.ID)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("ranked[%d]: id %q listed twice", i, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	if !unit(r.Confidence) {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	for name, w := range r.Weights {
		if !unit(w) {
			return fmt.Errorf("weight %s=%v outside [0,1]", name, w)
		}
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
