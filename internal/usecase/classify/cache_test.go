package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openprogramia/propuestas/internal/domain/classification"
)

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(time.Minute, 2)

	c.Set("a", classification.Result{Category: "A"})
	c.Set("b", classification.Result{Category: "B"})
	_, _ = c.Get("a")
	c.Set("c", classification.Result{Category: "C"})

	_, ok := c.Get("b")
	assert.False(t, ok, "b should be evicted")
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", got.Category)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_OverwriteRefreshesTimestamp(t *testing.T) {
	c := NewCache(time.Minute, 10)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("k", classification.Result{Category: "old"})
	now = now.Add(50 * time.Second)
	c.Set("k", classification.Result{Category: "new"})
	now = now.Add(50 * time.Second)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", got.Category)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(time.Minute, 10)
	c.Set("k", classification.Result{MatchedKeywords: []string{"afp"}})

	got, _ := c.Get("k")
	got.MatchedKeywords[0] = "changed"

	again, _ := c.Get("k")
	assert.Equal(t, "afp", again.MatchedKeywords[0])
}

func TestCache_Defaults(t *testing.T) {
	c := NewCache(0, 0)
	assert.Equal(t, DefaultCacheTTL, c.ttl)
	assert.Equal(t, DefaultCacheEntries, c.maxEntries)
	assert.InDelta(t, 5.0, c.Stats().CacheTTLMinutes, 1e-9)
}
