package nutrition

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/columbiacals/menud/internal/menu"
)

func TestLRUCacheGetPut(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := newLRUCache(4, time.Hour)

	_, hit := c.get("apple", now)
	assert.False(t, hit)

	c.put("apple", cacheEntry{macros: menu.Macros{Calories: 95}, ok: true, storedAt: now})
	entry, hit := c.get("apple", now)
	assert.True(t, hit)
	assert.True(t, entry.ok)
	assert.Equal(t, 95.0, entry.macros.Calories)
}

func TestLRUCacheNegativeEntry(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := newLRUCache(4, time.Hour)

	c.put("mystery stew", cacheEntry{ok: false, storedAt: now})
	entry, hit := c.get("mystery stew", now)
	assert.True(t, hit, "a cached miss is still a hit")
	assert.False(t, entry.ok)
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := newLRUCache(4, time.Hour)

	c.put("apple", cacheEntry{ok: true, storedAt: now})

	_, hit := c.get("apple", now.Add(59*time.Minute))
	assert.True(t, hit)

	_, hit = c.get("apple", now.Add(61*time.Minute))
	assert.False(t, hit, "entries past the TTL must be revalidated")
	assert.Equal(t, 0, c.len(), "expired entries are dropped on read")
}

func TestLRUCacheEviction(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := newLRUCache(3, 0)

	for i := 0; i < 3; i++ {
		c.put(fmt.Sprintf("item-%d", i), cacheEntry{ok: true, storedAt: now})
	}
	// Touch item-0 so item-1 is the oldest.
	_, hit := c.get("item-0", now)
	assert.True(t, hit)

	c.put("item-3", cacheEntry{ok: true, storedAt: now})
	assert.Equal(t, 3, c.len())

	_, hit = c.get("item-1", now)
	assert.False(t, hit, "least recently used entry should be evicted")
	_, hit = c.get("item-0", now)
	assert.True(t, hit)
}

func TestLRUCacheUpdateExisting(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := newLRUCache(2, 0)

	c.put("apple", cacheEntry{macros: menu.Macros{Calories: 90}, ok: true, storedAt: now})
	c.put("apple", cacheEntry{macros: menu.Macros{Calories: 95}, ok: true, storedAt: now})

	assert.Equal(t, 1, c.len())
	entry, _ := c.get("apple", now)
	assert.Equal(t, 95.0, entry.macros.Calories)
}
