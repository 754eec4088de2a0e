package nutrition

import (
	"container/list"
	"sync"
	"time"

	"github.com/columbiacals/menud/internal/menu"
)

// cacheEntry stores one resolved lookup. ok=false entries cache a miss so
// repeated unknown items do not hammer the provider.
type cacheEntry struct {
	macros   menu.Macros
	ok       bool
	storedAt time.Time
}

type lruNode struct {
	key   string
	entry cacheEntry
}

// lruCache is a bounded LRU with a staleness horizon. Entries older than
// the TTL are treated as absent so the next caller revalidates them.
type lruCache struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	ll    *list.List
	items map[string]*list.Element
}

func newLRUCache(max int, ttl time.Duration) *lruCache {
	return &lruCache{
		max:   max,
		ttl:   ttl,
		ll:    list.New(),
		items: make(map[string]*list.Element, max),
	}
}

func (c *lruCache) get(key string, now time.Time) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return cacheEntry{}, false
	}
	node := el.Value.(*lruNode)
	if c.ttl > 0 && now.Sub(node.entry.storedAt) > c.ttl {
		c.ll.Remove(el)
		delete(c.items, key)
		return cacheEntry{}, false
	}
	c.ll.MoveToFront(el)
	return node.entry, true
}

func (c *lruCache) put(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*lruNode).entry = entry
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&lruNode{key: key, entry: entry})
	for c.ll.Len() > c.max {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*lruNode).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
