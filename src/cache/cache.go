package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market-gateway/src/logger"
)

// -----------------------------------------------------------------------------
// TTL Cache
//
// Entries are immutable once written and overwritten wholesale, so a plain
// map under an RWMutex is enough. Expiry is enforced on read; a background
// sweep reclaims expired entries opportunistically.
// -----------------------------------------------------------------------------

type entry struct {
	value      interface{}
	insertedAt time.Time
	expiresAt  time.Time
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  *logger.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	writes    atomic.Int64
	evictions atomic.Int64

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewCache(log *logger.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		logger:  log,
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// Key builds a deterministic cache key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// -----------------------------------------------------------------------------

// Get returns the live value for key. Stale entries read as absent and are
// left for the sweep; the read path never takes the write lock.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

// -----------------------------------------------------------------------------

// Put stores value under key with the given TTL. Last writer wins.
func (c *Cache) Put(key string, value interface{}, ttl time.Duration) {
	now := c.now()

	c.mu.Lock()
	c.entries[key] = entry{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	c.mu.Unlock()

	c.writes.Add(1)
}

// -----------------------------------------------------------------------------

// Len returns the number of entries currently held, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// -----------------------------------------------------------------------------

// StartSweeper runs the periodic expiry sweep until ctx is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := c.Sweep()
				if removed > 0 {
					c.logger.Debug("Swept %d expired cache entries", removed)
				}
			}
		}
	}()
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.evictions.Add(int64(removed))
	return removed
}

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

type Metrics struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Writes    int64   `json:"writes"`
	Evictions int64   `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
	Entries   int     `json:"entries"`
}

// Snapshot returns current counters. The hit ratio is 0 until the first read.
func (c *Cache) Snapshot() Metrics {
	hits := c.hits.Load()
	misses := c.misses.Load()

	ratio := 0.0
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return Metrics{
		Hits:      hits,
		Misses:    misses,
		Writes:    c.writes.Load(),
		Evictions: c.evictions.Load(),
		HitRatio:  ratio,
		Entries:   c.Len(),
	}
}
