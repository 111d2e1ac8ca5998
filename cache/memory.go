package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryCache is an in-process Backend.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	policy  Policy
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	written   time.Time
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache with the given policy.
func NewMemoryCache(policy Policy) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		policy:  policy,
		now:     time.Now,
	}
}

// Get returns a copy of the stored value. Expired entries are dropped lazily.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if expired(entry.expiresAt, c.now()) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.written.Equal(entry.written) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return slices.Clone(entry.value), true
}

// Set stores a copy of value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && c.policy.MaxEntries > 0 && len(c.entries) >= c.policy.MaxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = memoryEntry{
		value:     slices.Clone(value),
		written:   now,
		expiresAt: c.policy.Expiry(now),
	}
	return nil
}

// evictLocked drops expired entries, or the oldest one when none expired.
func (c *MemoryCache) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	removed := false
	for k, e := range c.entries {
		if expired(e.expiresAt, now) {
			delete(c.entries, k)
			removed = true
			continue
		}
		if oldestKey == "" || e.written.Before(oldest) {
			oldestKey, oldest = k, e.written
		}
	}
	if !removed && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Has reports whether a live entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// dropped.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error { return nil }

var (
	_ Backend = (*MemoryCache)(nil)
	_ Pinger  = (*MemoryCache)(nil)
)
