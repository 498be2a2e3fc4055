// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrMiss is returned by a layer when it holds no live entry for a key.
var ErrMiss = errors.New("cache miss")

// Layer names.
const (
	LayerMemory     = "memory"
	LayerPersistent = "persistent"
	LayerPredictive = "predictive"
	SourceUpstream  = "upstream"
)

// Layer is one tier of the layered cache.
//
// Get returns ErrMiss when the key is absent or expired, and a
// *models.CacheCorruptionError when the stored entry cannot be trusted.
// Implementations never return an entry past its ExpiresAt.
type Layer interface {
	Name() string
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, key string) error
}

// OwnerInvalidator is implemented by layers that can drop every entry written
// on behalf of one owner.
type OwnerInvalidator interface {
	InvalidateOwner(ctx context.Context, owner string) (int, error)
}

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// Entry is a cached payload with its provenance.
type Entry struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Layer     string    `json:"layer"`
	Owner     string    `json:"owner,omitempty"`
	Checksum  string    `json:"checksum"`
}

// NewEntry builds an entry that expires ttl after now.
func NewEntry(key, owner string, payload []byte, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Key:       key,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Owner:     owner,
		Checksum:  checksum(payload),
	}
}

// Expired reports whether the entry is no longer servable at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Intact reports whether the payload still matches its checksum.
func (e *Entry) Intact() bool {
	return e.Checksum == checksum(e.Payload)
}

// withLayer returns a shallow copy tagged with the given layer, with the expiry
// capped so the copy never outlives maxTTL from now.
func (e *Entry) withLayer(layer string, now time.Time, maxTTL time.Duration) *Entry {
	c := *e
	c.Layer = layer
	if maxTTL > 0 {
		if limit := now.Add(maxTTL); limit.Before(c.ExpiresAt) {
			c.ExpiresAt = limit
		}
	}
	return &c
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
