package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitWithinTTL(t *testing.T) {
	c := NewCache[string](10 * time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("k", "v")

	c.now = func() time.Time { return base.Add(9 * time.Second) }
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCacheEntryStaleAtExactTTL(t *testing.T) {
	c := NewCache[string](10 * time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("k", "v")
	require.Equal(t, 1, c.Len())

	// An entry whose age equals the TTL is already stale.
	c.now = func() time.Time { return base.Add(10 * time.Second) }
	_, ok := c.Get("k")
	assert.False(t, ok)

	// The stale read deleted the entry.
	assert.Equal(t, 0, c.Len())
}

func TestCacheSetRestartsTTL(t *testing.T) {
	c := NewCache[int](10 * time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("k", 1)

	c.now = func() time.Time { return base.Add(8 * time.Second) }
	c.Set("k", 2)

	// 16s after the first insert but only 8s after the second.
	c.now = func() time.Time { return base.Add(16 * time.Second) }
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestCacheMissOnUnknownKey(t *testing.T) {
	c := NewCache[string](time.Minute)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCacheDelete(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Set("k", "v")
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheClearReportsDropped(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	assert.Equal(t, 2, c.Clear())
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("a")
	assert.False(t, ok)
}
