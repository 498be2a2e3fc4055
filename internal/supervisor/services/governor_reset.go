// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/governor"
)

// Rollover resets daily counters when now starts a new period. Satisfied by
// *governor.Governor.
type Rollover interface {
	Rollover(now time.Time) bool
}

// GovernorResetService resets the usage governor at each UTC midnight.
//
// The governor also rolls over lazily on its next Reserve call, so an idle
// server would otherwise report yesterday's usage until the first request.
type GovernorResetService struct {
	gov    Rollover
	clock  func() time.Time
	after  func(time.Duration) <-chan time.Time
	logger zerolog.Logger
}

// NewGovernorResetService creates the reset service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGovernorResetService(gov Rollover, logger zerolog.Logger) *GovernorResetService {
	return &GovernorResetService{
		gov:    gov,
		clock:  time.Now,
		after:  time.After,
		logger: logger.With().Str("service", "governor-reset").Logger(),
	}
}

// Serve implements suture.Service. A missed boundary (for example after a
// suspend) is caught on wake-up because Rollover compares periods, not ticks.
func (s *GovernorResetService) Serve(ctx context.Context) error {
	for {
		now := s.clock()
		// Small slack past midnight keeps the wake-up on the new day.
		wait := governor.NextReset(now).Sub(now) + time.Second
		s.logger.Debug().Dur("wait", wait).Msg("next usage reset scheduled")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(wait):
			s.gov.Rollover(s.clock())
		}
	}
}

// String returns the service name for logging.
func (s *GovernorResetService) String() string {
	return "governor-reset"
}
