// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mealwise/internal/breaker"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher sends preference-updated events through a circuit breaker.
type Publisher struct {
	publisher message.Publisher
	topic     string
	cb        *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub for topic.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		publisher: pub,
		topic:     topic,
		cb:        breaker.New[struct{}]("events-publisher", breaker.DefaultConfig()),
	}
}

// PreferenceUpdated publishes a change notice for userID.
func (p *Publisher) PreferenceUpdated(ctx context.Context, userID string, updatedAt time.Time) error {
	return p.Publish(ctx, NewPreferenceUpdated(userID, updatedAt))
}

// Publish sends evt. The event id doubles as the NATS message id for
// deduplication.
func (p *Publisher) Publish(ctx context.Context, evt *PreferenceUpdated) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg, err := evt.ToMessage()
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)

	_, err = p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(p.topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish preference event for %s: %w", evt.UserID, err)
	}
	return nil
}

// Close stops further publishing. The underlying publisher is owned by the
// Transport and closed there.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
