package nutrition

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/menu"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSource counts lookups and can hold callers open to exercise
// coalescing.
type fakeSource struct {
	calls   atomic.Int64
	macros  menu.Macros
	ok      bool
	err     error
	release chan struct{}
}

func (s *fakeSource) Lookup(ctx context.Context, name string) (menu.Macros, bool, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.macros, s.ok, s.err
}

func appleMacros() menu.Macros {
	return menu.Macros{Calories: 95, ProteinG: 0.5, CarbsG: 25, FatG: 0.3}
}

func TestItemFillsMissingMacros(t *testing.T) {
	source := &fakeSource{macros: appleMacros(), ok: true}
	e := New(source, newFakeClock(), zap.NewNop(), Config{CacheTTL: time.Hour})

	got := e.Item(context.Background(), menu.MenuItem{Name: "Apple"})

	require.NotNil(t, got.Calories)
	assert.Equal(t, 95.0, *got.Calories)
	assert.Equal(t, 0.5, *got.ProteinG)
	assert.True(t, got.Estimated)
}

func TestItemAlreadyCompleteIsUntouched(t *testing.T) {
	source := &fakeSource{macros: appleMacros(), ok: true}
	e := New(source, newFakeClock(), zap.NewNop(), Config{CacheTTL: time.Hour})

	item := menu.MenuItem{
		Name:     "Apple",
		Calories: menu.Float64(100),
		ProteinG: menu.Float64(1),
		CarbsG:   menu.Float64(20),
		FatG:     menu.Float64(0.4),
	}
	got := e.Item(context.Background(), item)

	assert.Equal(t, item, got)
	assert.False(t, got.Estimated)
	assert.Equal(t, int64(0), source.calls.Load())
}

func TestItemPartialFillKeepsUpstreamValues(t *testing.T) {
	source := &fakeSource{macros: appleMacros(), ok: true}
	e := New(source, newFakeClock(), zap.NewNop(), Config{CacheTTL: time.Hour})

	item := menu.MenuItem{Name: "Apple", Calories: menu.Float64(110)}
	got := e.Item(context.Background(), item)

	assert.Equal(t, 110.0, *got.Calories, "upstream calories win over the lookup")
	assert.Equal(t, 0.5, *got.ProteinG)
	assert.True(t, got.Estimated)
}

func TestItemMissLeavesFieldsAbsent(t *testing.T) {
	source := &fakeSource{ok: false}
	e := New(source, newFakeClock(), zap.NewNop(), Config{CacheTTL: time.Hour})

	got := e.Item(context.Background(), menu.MenuItem{Name: "Mystery Stew"})

	assert.Nil(t, got.Calories)
	assert.Nil(t, got.ProteinG)
	assert.False(t, got.Estimated)
}

func TestItemCacheHitSkipsLookup(t *testing.T) {
	source := &fakeSource{macros: appleMacros(), ok: true}
	e := New(source, newFakeClock(), zap.NewNop(), Config{CacheTTL: time.Hour})

	e.Item(context.Background(), menu.MenuItem{Name: "Apple"})
	e.Item(context.Background(), menu.MenuItem{Name: "  apple "})

	assert.Equal(t, int64(1), source.calls.Load(),
		"normalized names share one cache entry")
}

func TestItemMissIsCached(t *testing.T) {
	source := &fakeSource{ok: false}
	e := New(source, newFakeClock(), zap.NewNop(), Config{CacheTTL: time.Hour})

	e.Item(context.Background(), menu.MenuItem{Name: "Mystery Stew"})
	e.Item(context.Background(), menu.MenuItem{Name: "Mystery Stew"})

	assert.Equal(t, int64(1), source.calls.Load())
}

func TestItemLookupErrorNotCached(t *testing.T) {
	source := &fakeSource{err: context.DeadlineExceeded}
	e := New(source, newFakeClock(), zap.NewNop(), Config{CacheTTL: time.Hour})

	got := e.Item(context.Background(), menu.MenuItem{Name: "Apple"})
	assert.Nil(t, got.Calories)

	e.Item(context.Background(), menu.MenuItem{Name: "Apple"})
	assert.Equal(t, int64(2), source.calls.Load(),
		"transport failures retry on the next pass")
}

func TestItemTTLRevalidation(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{macros: appleMacros(), ok: true}
	e := New(source, clock, zap.NewNop(), Config{CacheTTL: time.Hour})

	e.Item(context.Background(), menu.MenuItem{Name: "Apple"})
	clock.advance(2 * time.Hour)
	e.Item(context.Background(), menu.MenuItem{Name: "Apple"})

	assert.Equal(t, int64(2), source.calls.Load())
}

func TestConcurrentLookupsCoalesce(t *testing.T) {
	source := &fakeSource{macros: appleMacros(), ok: true, release: make(chan struct{})}
	e := New(source, newFakeClock(), zap.NewNop(), Config{Workers: 4, CacheTTL: time.Hour})

	var wg sync.WaitGroup
	results := make([]menu.MenuItem, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Item(context.Background(), menu.MenuItem{Name: "Apple"})
		}(i)
	}

	// Wait for the first caller to reach the source, then let both finish.
	require.Eventually(t, func() bool {
		return source.calls.Load() >= 1
	}, time.Second, time.Millisecond)
	// Give the second caller time to join the in-flight call.
	time.Sleep(10 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, int64(1), source.calls.Load(),
		"concurrent lookups for one name must coalesce to a single call")
	for _, got := range results {
		require.NotNil(t, got.Calories)
		assert.Equal(t, 95.0, *got.Calories)
	}
}

func TestHallsEnrichesEveryItem(t *testing.T) {
	source := &fakeSource{macros: appleMacros(), ok: true}
	e := New(source, newFakeClock(), zap.NewNop(), Config{Workers: 2, CacheTTL: time.Hour})

	halls := []menu.DiningHall{{
		Name:   "John Jay",
		Status: menu.StatusOpen,
		Meals: []menu.Meal{{
			MealType: "Lunch",
			Stations: []menu.Station{{
				Name: "Main Line",
				Items: []menu.MenuItem{
					{Name: "Apple"},
					{Name: "Banana"},
					{Name: "Complete", Calories: menu.Float64(1), ProteinG: menu.Float64(1), CarbsG: menu.Float64(1), FatG: menu.Float64(1)},
				},
			}},
		}},
	}}

	got := e.Halls(context.Background(), halls)

	items := got[0].Meals[0].Stations[0].Items
	require.Len(t, items, 3)
	assert.Equal(t, "Apple", items[0].Name, "item order is preserved")
	assert.NotNil(t, items[0].Calories)
	assert.NotNil(t, items[1].Calories)
	assert.Equal(t, 1.0, *items[2].Calories, "complete items are untouched")
	assert.Equal(t, int64(2), source.calls.Load())
}
