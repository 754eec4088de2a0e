package nutrition

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/menu"
	"github.com/columbiacals/menud/internal/metrics"
)

// Config controls the Enricher.
type Config struct {
	Workers   int
	CacheSize int
	CacheTTL  time.Duration
}

// Enricher fills missing macro fields on menu items. Lookups for the same
// normalized name are coalesced: the second caller waits on the first's
// result instead of issuing a duplicate request.
type Enricher struct {
	source menu.NutritionSource
	cache  *lruCache
	clock  menu.Clock
	logger *zap.Logger
	cfg    Config

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done   chan struct{}
	macros menu.Macros
	ok     bool
}

// New builds an Enricher.
func New(source menu.NutritionSource, clock menu.Clock, logger *zap.Logger, cfg Config) *Enricher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	return &Enricher{
		source:   source,
		cache:    newLRUCache(cfg.CacheSize, cfg.CacheTTL),
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		inflight: make(map[string]*inflightCall),
	}
}

// Halls enriches every item across the given halls with bounded
// concurrency. Item order within stations is preserved.
func (e *Enricher) Halls(ctx context.Context, halls []menu.DiningHall) []menu.DiningHall {
	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup

	for hi := range halls {
		for mi := range halls[hi].Meals {
			for si := range halls[hi].Meals[mi].Stations {
				items := halls[hi].Meals[mi].Stations[si].Items
				for ii := range items {
					if items[ii].HasAllMacros() {
						continue
					}
					wg.Add(1)
					sem <- struct{}{}
					go func(item *menu.MenuItem) {
						defer wg.Done()
						defer func() { <-sem }()
						*item = e.Item(ctx, *item)
					}(&items[ii])
				}
			}
		}
	}
	wg.Wait()
	metrics.SetEnrichmentCacheEntries(e.cache.len())
	return halls
}

// Item returns the item with missing macros filled when a confident match
// exists. Items that already carry all four macros are returned unchanged.
func (e *Enricher) Item(ctx context.Context, item menu.MenuItem) menu.MenuItem {
	if item.HasAllMacros() {
		return item
	}
	key := normalizeName(item.Name)
	if key == "" {
		return item
	}

	if entry, hit := e.cache.get(key, e.clock.Now()); hit {
		metrics.ObserveEnrichment("cache_hit")
		return apply(item, entry.macros, entry.ok)
	}

	macros, ok := e.resolve(ctx, key)
	return apply(item, macros, ok)
}

// resolve performs the external lookup, coalescing concurrent callers for
// the same key.
func (e *Enricher) resolve(ctx context.Context, key string) (menu.Macros, bool) {
	e.mu.Lock()
	if call, exists := e.inflight[key]; exists {
		e.mu.Unlock()
		select {
		case <-call.done:
			return call.macros, call.ok
		case <-ctx.Done():
			return menu.Macros{}, false
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	e.inflight[key] = call
	e.mu.Unlock()

	macros, ok, err := e.source.Lookup(ctx, key)
	if err != nil {
		// A lookup failure is a miss, not a cycle failure. Do not cache
		// it: the provider may recover before the item's next refresh.
		e.logger.Warn("nutrition lookup failed", zap.String("item", key), zap.Error(err))
		metrics.ObserveEnrichment("error")
		ok = false
	} else {
		if ok {
			metrics.ObserveEnrichment("match")
		} else {
			metrics.ObserveEnrichment("miss")
		}
		e.cache.put(key, cacheEntry{macros: macros, ok: ok, storedAt: e.clock.Now()})
	}

	call.macros = macros
	call.ok = ok

	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()
	close(call.done)

	return macros, ok
}

// apply fills only the missing fields; adapter-sourced values outrank the
// lookup. Estimated flips true only when something was actually filled.
func apply(item menu.MenuItem, macros menu.Macros, ok bool) menu.MenuItem {
	if !ok {
		return item
	}
	filled := false
	if item.Calories == nil {
		item.Calories = menu.Float64(macros.Calories)
		filled = true
	}
	if item.ProteinG == nil {
		item.ProteinG = menu.Float64(macros.ProteinG)
		filled = true
	}
	if item.CarbsG == nil {
		item.CarbsG = menu.Float64(macros.CarbsG)
		filled = true
	}
	if item.FatG == nil {
		item.FatG = menu.Float64(macros.FatG)
		filled = true
	}
	if filled {
		item.Estimated = true
	}
	return item
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
