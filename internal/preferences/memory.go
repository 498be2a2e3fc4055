// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package preferences

import (
	"context"
	"errors"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
)

// MemoryStore keeps profiles in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserPreferenceProfile
	notifier Notifier
	clock    func() time.Time
	logger   zerolog.Logger
}

// NewMemoryStore creates an empty store. notifier may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMemoryStore(notifier Notifier, logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.UserPreferenceProfile),
		notifier: notifier,
		clock:    time.Now,
		logger:   logger.With().Str("component", "preferences").Str("backend", "memory").Logger(),
	}
}

// Get returns a copy of the user's profile.
func (s *MemoryStore) Get(_ context.Context, userID string) (*models.UserPreferenceProfile, error) {
	s.mu.RLock()
	p, ok := s.profiles[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(userID)
	}
	return clone(p), nil
}

// Put validates and stores profile, then notifies. A notification failure is
// logged; the write itself has succeeded.
func (s *MemoryStore) Put(ctx context.Context, profile *models.UserPreferenceProfile) error {
	p, err := normalize(profile, s.clock())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.profiles[p.UserID] = p
	s.mu.Unlock()

	s.notify(ctx, p.UserID, p.UpdatedAt)
	return nil
}

// Delete removes the user's profile.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	_, ok := s.profiles[userID]
	delete(s.profiles, userID)
	s.mu.Unlock()
	if !ok {
		return notFound(userID)
	}
	s.notify(ctx, userID, s.clock())
	return nil
}

// Len returns the number of stored profiles.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// LoadFile seeds the store from a JSON array of profiles. Invalid profiles
// fail the whole load. Seeding does not notify.
func (s *MemoryStore) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var profiles []models.UserPreferenceProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		if errors.Is(err, models.ErrUnknownValue) {
			return 0, models.NewValidationError("preference seed file: " + err.Error())
		}
		return 0, models.NewParseError("preference seed file", string(data), err)
	}

	now := s.clock()
	normalized := make([]*models.UserPreferenceProfile, 0, len(profiles))
	for i := range profiles {
		p, err := normalize(&profiles[i], now)
		if err != nil {
			return 0, err
		}
		normalized = append(normalized, p)
	}

	s.mu.Lock()
	for _, p := range normalized {
		s.profiles[p.UserID] = p
	}
	s.mu.Unlock()

	s.logger.Info().Str("path", path).Int("profiles", len(normalized)).Msg("Preference profiles loaded")
	return len(normalized), nil
}

func (s *MemoryStore) notify(ctx context.Context, userID string, at time.Time) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PreferenceUpdated(ctx, userID, at); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Preference change notification failed")
	}
}

func clone(p *models.UserPreferenceProfile) *models.UserPreferenceProfile {
	out := *p
	out.Restrictions = slices.Clone(p.Restrictions)
	out.Allergies = slices.Clone(p.Allergies)
	out.CuisineAffinity = maps.Clone(p.CuisineAffinity)
	return &out
}
