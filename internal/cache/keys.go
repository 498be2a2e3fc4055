// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Key prefixes.
const (
	PrefixSearch  = "search:"
	PrefixDetails = "details:"
	PrefixAI      = "ai:"
)

// DetailsKey is the cache key of a catalog details lookup.
func DetailsKey(id string) string {
	return PrefixDetails + id
}

// SearchQuery is the normalized input of a catalog search key.
type SearchQuery struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	Keyword      string
	Filters      []string
}

// SearchKey builds the cache key for a catalog search. Coordinates are rounded to
// precision decimal places, filters are lowercased, deduplicated and sorted, and
// the keyword is hashed. Two queries that differ only in filter order, case or
// sub-precision coordinate noise share a key.
func SearchKey(q SearchQuery, precision int) string {
	if precision < 0 {
		precision = 3
	}

	var b strings.Builder
	b.WriteString(PrefixSearch)
	b.WriteString(formatCoord(q.Latitude, precision))
	b.WriteByte(',')
	b.WriteString(formatCoord(q.Longitude, precision))
	b.WriteString(":r")
	b.WriteString(strconv.FormatInt(int64(math.Round(q.RadiusMeters)), 10))

	if filters := normalizeTerms(q.Filters); len(filters) > 0 {
		b.WriteString(":f=")
		b.WriteString(strings.Join(filters, ","))
	}
	if kw := strings.ToLower(strings.TrimSpace(q.Keyword)); kw != "" {
		b.WriteString(":k=")
		b.WriteString(shortHash(kw))
	}
	return b.String()
}

// Fingerprint builds an AI response key from the ordered parts that shape a
// prompt. Parts are length-prefixed so boundaries cannot collide.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return PrefixAI + hex.EncodeToString(h.Sum(nil))
}

func formatCoord(v float64, precision int) string {
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(v*scale) / scale
	if rounded == 0 {
		rounded = 0 // normalize -0
	}
	return strconv.FormatFloat(rounded, 'f', precision, 64)
}

func normalizeTerms(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
