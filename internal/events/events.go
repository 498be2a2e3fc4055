// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultTopic carries preference-updated events.
const DefaultTopic = "preferences.updated"

// Metadata keys set on every published message.
const (
	MetadataUserID    = "user_id"
	MetadataEventType = "event_type"
)

// EventTypePreferenceUpdated labels preference-updated messages.
const EventTypePreferenceUpdated = "preference.updated"

// ErrMalformedEvent marks a payload that cannot be decoded into an event.
var ErrMalformedEvent = errors.New("malformed preference event")

// PreferenceUpdated announces that a user's preference profile changed.
type PreferenceUpdated struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPreferenceUpdated creates an event with a fresh id.
func NewPreferenceUpdated(userID string, updatedAt time.Time) *PreferenceUpdated {
	return &PreferenceUpdated{
		EventID:   uuid.New().String(),
		UserID:    userID,
		UpdatedAt: updatedAt.UTC(),
	}
}

// Validate checks the event's required fields.
func (e *PreferenceUpdated) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: empty user_id", ErrMalformedEvent)
	}
	return nil
}

// ToMessage encodes the event as a Watermill message. The event id becomes
// the message UUID so brokers can deduplicate redeliveries.
func (e *PreferenceUpdated) ToMessage() (*message.Message, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode preference event: %w", err)
	}
	id := e.EventID
	if id == "" {
		id = uuid.New().String()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(MetadataUserID, e.UserID)
	msg.Metadata.Set(MetadataEventType, EventTypePreferenceUpdated)
	return msg, nil
}

// DecodePreferenceUpdated parses a message payload.
func DecodePreferenceUpdated(payload []byte) (*PreferenceUpdated, error) {
	var e PreferenceUpdated
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
