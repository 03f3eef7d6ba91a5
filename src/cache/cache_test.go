package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/logger"
)

func newTestCache() (*Cache, *time.Time) {
	c := NewCache(logger.NewLogger(nil, "cache-test"))
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetReturnsLiveValue(t *testing.T) {
	c, _ := newTestCache()

	c.Put(Key("technical", "EURUSD", "1m"), 42, time.Minute)

	v, ok := c.Get("technical:EURUSD:1m")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestExpiredEntryReadsAsAbsent(t *testing.T) {
	c, now := newTestCache()

	c.Put("k", "v", 10*time.Second)
	*now = now.Add(11 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)

	// Lazy expiry: the entry is still held until the sweep runs.
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 0, c.Len())
}

func TestEntryAtExactExpiryStillLive(t *testing.T) {
	c, now := newTestCache()

	c.Put("k", "v", 10*time.Second)
	*now = now.Add(10 * time.Second)

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestPutOverwritesUnconditionally(t *testing.T) {
	c, _ := newTestCache()

	c.Put("k", "first", time.Minute)
	c.Put("k", "second", time.Minute)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, c.Len())
}

func TestSweepLeavesLiveEntries(t *testing.T) {
	c, now := newTestCache()

	c.Put("short", 1, 5*time.Second)
	c.Put("long", 2, time.Hour)
	*now = now.Add(time.Minute)

	assert.Equal(t, 1, c.Sweep())

	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestMetricsSnapshot(t *testing.T) {
	c, now := newTestCache()

	c.Put("k", "v", time.Second)
	c.Get("k")
	c.Get("k")
	*now = now.Add(2 * time.Second)
	c.Get("k")

	m := c.Snapshot()
	assert.Equal(t, int64(2), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.Equal(t, int64(1), m.Writes)
	assert.InDelta(t, 2.0/3.0, m.HitRatio, 1e-9)
}
