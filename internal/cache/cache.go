// Package cache keeps fuzzer discovery results for a bounded time so
// queries do not re-run discovery, which spawns containers and shells out
// to the build system, on every call.
package cache

import (
	"sync"
	"time"

	"codeforge/internal/types"
	"codeforge/pkg/clock"
)

// Cache maps fuzzer name to metadata with a single last-populated timestamp
// and a TTL. Safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]types.FuzzerMetadata
	populatedAt time.Time
	ttl         time.Duration
	clock       clock.Clock
}

func NewCache(ttl time.Duration, clk clock.Clock) *Cache {
	return &Cache{
		entries: make(map[string]types.FuzzerMetadata),
		ttl:     ttl,
		clock:   clk,
	}
}

// IsValid is true only if the cache has been populated and its TTL has not
// elapsed.
func (c *Cache) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populatedAt.IsZero() {
		return false
	}
	return c.clock.Now().Sub(c.populatedAt) <= c.ttl
}

// UpdateCache replaces the whole entry set and resets the timestamp.
func (c *Cache) UpdateCache(list []types.FuzzerMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]types.FuzzerMetadata, len(list))
	for _, md := range list {
		c.entries[md.Name] = md
	}
	c.populatedAt = c.clock.Now()
}

// Invalidate clears the entries and the timestamp.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]types.FuzzerMetadata)
	c.populatedAt = time.Time{}
}

// Merge inserts or replaces a single entry without touching the
// last-populated timestamp. Used by targeted refresh.
func (c *Cache) Merge(md types.FuzzerMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[md.Name] = md
}

// Get returns the metadata for one fuzzer.
func (c *Cache) Get(name string) (types.FuzzerMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	md, ok := c.entries[name]
	return md, ok
}

// List returns a snapshot of all cached entries.
func (c *Cache) List() []types.FuzzerMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.FuzzerMetadata, 0, len(c.entries))
	for _, md := range c.entries {
		out = append(out, md)
	}
	return out
}
