// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/mealwise/internal/models"
)

// lruNode is a node in the LRU's doubly-linked list.
type lruNode struct {
	entry *Entry
	prev  *lruNode
	next  *lruNode
}

// MemoryLayer is a bounded, thread-safe LRU cache with per-entry expiry.
// Get, Set and eviction are O(1): a hashmap indexes a doubly-linked list whose
// head is the most recently used entry. Expired entries are dropped lazily on
// access and by CleanupExpired.
type MemoryLayer struct {
	mu sync.Mutex

	// capacity is the maximum number of entries
	capacity int

	// ttl caps how long any entry may live in this layer
	ttl time.Duration

	items map[string]*lruNode

	// head and tail are sentinels; head.next is the most recently used
	head *lruNode
	tail *lruNode

	clock Clock

	hits      int64
	misses    int64
	evictions int64
}

// NewMemoryLayer creates an LRU layer with the given capacity and TTL cap.
func NewMemoryLayer(capacity int, ttl time.Duration, clock Clock) *MemoryLayer {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if clock == nil {
		clock = time.Now
	}

	c := &MemoryLayer{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruNode, capacity),
		head:     &lruNode{},
		tail:     &lruNode{},
		clock:    clock,
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Name implements Layer.
func (c *MemoryLayer) Name() string { return LayerMemory }

// Get returns the live entry for key and marks it most recently used.
func (c *MemoryLayer) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, ErrMiss
	}
	if node.entry.Expired(c.clock()) {
		c.removeNode(node)
		c.misses++
		return nil, ErrMiss
	}
	if !node.entry.Intact() {
		c.removeNode(node)
		return nil, &models.CacheCorruptionError{Key: key, Layer: LayerMemory}
	}

	c.moveToFront(node)
	c.hits++
	return node.entry, nil
}

// Set stores e, evicting the least recently used entry when over capacity.
func (c *MemoryLayer) Set(_ context.Context, e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := e.withLayer(LayerMemory, c.clock(), c.ttl)

	if node, exists := c.items[e.Key]; exists {
		node.entry = entry
		c.moveToFront(node)
		return nil
	}

	node := &lruNode{entry: entry}
	c.addToFront(node)
	c.items[e.Key] = node

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
	return nil
}

// Delete removes key if present.
func (c *MemoryLayer) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.items[key]; exists {
		c.removeNode(node)
	}
	return nil
}

// InvalidateOwner removes every entry owned by owner.
func (c *MemoryLayer) InvalidateOwner(_ context.Context, owner string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, node := range c.items {
		if node.entry.Owner == owner {
			c.removeNode(node)
			removed++
		}
	}
	return removed, nil
}

// Len returns the current number of entries, expired or not.
func (c *MemoryLayer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (c *MemoryLayer) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	removed := 0
	for node := c.tail.prev; node != c.head; {
		prev := node.prev
		if node.entry.Expired(now) {
			c.removeNode(node)
			removed++
		}
		node = prev
	}
	return removed
}

// Stats returns hit, miss and eviction counters and the current size.
func (c *MemoryLayer) Stats() (hits, misses, evictions int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions, len(c.items)
}

// Internal methods (must be called with lock held)

func (c *MemoryLayer) addToFront(node *lruNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *MemoryLayer) moveToFront(node *lruNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
	c.addToFront(node)
}

func (c *MemoryLayer) removeNode(node *lruNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
	delete(c.items, node.entry.Key)
}

func (c *MemoryLayer) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeNode(oldest)
	c.evictions++
}
