// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/metrics"
)

// Invalidator drops cached state owned by a user. cache.Manager implements it.
type Invalidator interface {
	Name() string
	InvalidateUser(userID string) int
}

// InvalidationSubscriber consumes preference-updated events and invalidates
// every registered cache for the affected user. It runs as a supervised
// service.
type InvalidationSubscriber struct {
	subscriber message.Subscriber
	topic      string
	targets    []Invalidator
	logger     zerolog.Logger
}

// NewInvalidationSubscriber creates a subscriber on topic.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewInvalidationSubscriber(sub message.Subscriber, topic string, logger zerolog.Logger, targets ...Invalidator) *InvalidationSubscriber {
	if topic == "" {
		topic = DefaultTopic
	}
	return &InvalidationSubscriber{
		subscriber: sub,
		topic:      topic,
		targets:    targets,
		logger:     logger.With().Str("component", "invalidation-subscriber").Str("topic", topic).Logger(),
	}
}

// Serve consumes until ctx is canceled.
func (s *InvalidationSubscriber) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info().Msg("Invalidation subscriber started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("subscription channel closed")
			}
			s.handle(msg)
		}
	}
}

// handle invalidates and acks. A malformed payload is acked too: redelivery
// cannot repair it.
func (s *InvalidationSubscriber) handle(msg *message.Message) {
	evt, err := DecodePreferenceUpdated(msg.Payload)
	if err != nil {
		metrics.PreferenceInvalidations.WithLabelValues("malformed").Inc()
		s.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed preference event")
		msg.Ack()
		return
	}

	removed := 0
	for _, t := range s.targets {
		n := t.InvalidateUser(evt.UserID)
		removed += n
		s.logger.Debug().Str("cache", t.Name()).Str("user_id", evt.UserID).Int("removed", n).Msg("Invalidated")
	}
	metrics.PreferenceInvalidations.WithLabelValues("invalidated").Inc()
	s.logger.Info().
		Str("user_id", evt.UserID).
		Str("event_id", evt.EventID).
		Int("removed", removed).
		Msg("Preference change processed")
	msg.Ack()
}

// String names the service in supervisor logs.
func (s *InvalidationSubscriber) String() string {
	return "invalidation-subscriber"
}
