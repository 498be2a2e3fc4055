// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

/*
Package cache implements the layered cache used for catalog search results and
AI responses.

# Layers

Lookups walk three layers in order:
  - memory: a bounded LRU with per-entry TTL (MemoryLayer)
  - persistent: a badger store shared across restarts (PersistentLayer)
  - predictive: precomputed results for popular filter combinations (PredictiveLayer)

A hit in a later layer back-fills the earlier write-through layers. A full miss
is loaded once per key no matter how many callers are waiting (singleflight),
and the result is written to the memory and persistent layers. The predictive
layer is written only by the Refresher, which replays the most popular keys
while the manager is idle.

# Corruption

Every entry carries a SHA-256 checksum of its payload. An entry whose checksum,
envelope or payload cannot be trusted is evicted from the layer that held it and
the lookup continues as a miss, so corruption costs at most one upstream call.
FetchJSON applies the same rule to payloads that fail to decode.

# Keys

SearchKey normalizes a catalog query (coordinates rounded to a fixed precision,
filters sorted and lowercased, keyword hashed) so equivalent queries share an
entry. Fingerprint derives AI response keys from the inputs that shape a prompt.

# Rate Limiting

SlidingWindowLimiter keeps an exact log of admission timestamps. It never
admits more than its limit within any window-length interval.

# Thread Safety

Every exported type is safe for concurrent use.
*/
package cache
