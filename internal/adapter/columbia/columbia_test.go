package columbia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/fetch"
	"github.com/columbiacals/menud/internal/menu"
)

type fakeFetcher struct {
	pages map[string][]byte
	errs  map[string]error
}

func (f *fakeFetcher) Get(_ context.Context, url string, _ http.Header) (fetch.Result, error) {
	if err, ok := f.errs[url]; ok {
		return fetch.Result{}, err
	}
	body, ok := f.pages[url]
	if !ok {
		return fetch.Result{}, errors.New("unexpected url " + url)
	}
	return fetch.Result{URL: url, StatusCode: http.StatusOK, Body: body}, nil
}

// cancellingFetcher cancels the context after its first call, simulating
// a deadline expiring partway through a scrape.
type cancellingFetcher struct {
	inner  *fakeFetcher
	cancel context.CancelFunc
	calls  int
}

func (f *cancellingFetcher) Get(ctx context.Context, url string, headers http.Header) (fetch.Result, error) {
	f.calls++
	res, err := f.inner.Get(ctx, url, headers)
	if f.calls == 1 {
		f.cancel()
	}
	return res, err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// mondayNoon is a Monday at 12:00 New York time, inside John Jay's lunch
// window.
func mondayNoon(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, 3, 2, 12, 0, 0, 0, loc)
}

func menuDataPage(day string) []byte {
	blob := fmt.Sprintf(`[{"date_range_fields":[{"date_from":%q,"date_to":%q,"menu_type":["7"],`+
		`"stations":[{"station":["24"],"meals_paragraph":[`+
		`{"title":"Grilled Chicken","meal_text":"With herbs","allergens":[],"prefs":["Halal"]},`+
		`{"title":"Rice Pilaf","meal_text":"","allergens":[],"prefs":["Vegan"]}]}]}]}]`, day, day)
	return []byte("<html><body><script>var menu_data = `" + blob + "`;</script></body></html>")
}

func TestFetchParsesDynamicHall(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	hall := HallConfig{Name: "John Jay Dining Hall", URL: "https://dining.example/john-jay"}
	fetcher := &fakeFetcher{pages: map[string][]byte{
		hall.URL: menuDataPage(now.Format("2006-01-02")),
	}}

	a, err := New(fetcher, &fakeClock{now: now.UTC()}, zap.NewNop(),
		WithHalls([]HallConfig{hall}), WithBarnardLocations(nil))
	require.NoError(t, err)
	require.Equal(t, "columbia", a.University())

	halls, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, halls, 1+len(staticCafes))

	jj := halls[0]
	require.Equal(t, "John Jay Dining Hall", jj.Name)
	require.Equal(t, menu.StatusOpen, jj.Status)
	require.Len(t, jj.Meals, 1)

	lunch := jj.Meals[0]
	require.Equal(t, "Lunch", lunch.MealType)
	require.NotNil(t, lunch.TimeRange)
	require.Equal(t, "11:00", lunch.TimeRange.Start.String())
	require.Equal(t, "14:30", lunch.TimeRange.End.String())
	require.Len(t, lunch.Stations, 1)
	require.Equal(t, "Main Station", lunch.Stations[0].Name)
	require.Len(t, lunch.Stations[0].Items, 2)
	require.Equal(t, "Grilled Chicken", lunch.Stations[0].Items[0].Name)
	require.Equal(t, []string{"Halal"}, lunch.Stations[0].Items[0].DietaryPrefs)
}

func TestFetchNoMenuDuringHours(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	hall := HallConfig{Name: "John Jay Dining Hall", URL: "https://dining.example/john-jay"}
	fetcher := &fakeFetcher{pages: map[string][]byte{
		hall.URL: []byte("<html><body><p>Menus coming soon</p></body></html>"),
	}}

	a, err := New(fetcher, &fakeClock{now: now.UTC()}, zap.NewNop(),
		WithHalls([]HallConfig{hall}), WithBarnardLocations(nil))
	require.NoError(t, err)

	halls, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, menu.StatusNoMenuPosted, halls[0].Status)
	require.Empty(t, halls[0].Meals)
}

func TestFetchClosedMarkup(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	hall := HallConfig{Name: "John Jay Dining Hall", URL: "https://dining.example/john-jay"}
	fetcher := &fakeFetcher{pages: map[string][]byte{
		hall.URL: []byte(`<html><body><div class="hours">Closed for break</div></body></html>`),
	}}

	a, err := New(fetcher, &fakeClock{now: now.UTC()}, zap.NewNop(),
		WithHalls([]HallConfig{hall}), WithBarnardLocations(nil))
	require.NoError(t, err)

	halls, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, menu.StatusClosed, halls[0].Status)
}

func TestFetchSingleHallFailureDegrades(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	ok := HallConfig{Name: "John Jay Dining Hall", URL: "https://dining.example/john-jay"}
	bad := HallConfig{Name: "Ferris Booth Commons", URL: "https://dining.example/ferris"}
	fetcher := &fakeFetcher{
		pages: map[string][]byte{ok.URL: menuDataPage(now.Format("2006-01-02"))},
		errs:  map[string]error{bad.URL: errors.New("connection reset")},
	}

	a, err := New(fetcher, &fakeClock{now: now.UTC()}, zap.NewNop(),
		WithHalls([]HallConfig{ok, bad}), WithBarnardLocations(nil))
	require.NoError(t, err)

	halls, err := a.Fetch(context.Background())
	require.NoError(t, err, "one hall down must not fail the university")
	require.Equal(t, menu.StatusOpen, halls[0].Status)
	require.Equal(t, menu.StatusServiceUnavailable, halls[1].Status)
	require.Empty(t, halls[1].Meals)
}

func TestFetchAllHallsFailedIsAdapterError(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	hall := HallConfig{Name: "John Jay Dining Hall", URL: "https://dining.example/john-jay"}
	fetcher := &fakeFetcher{errs: map[string]error{hall.URL: errors.New("dns failure")}}

	a, err := New(fetcher, &fakeClock{now: now.UTC()}, zap.NewNop(),
		WithHalls([]HallConfig{hall}), WithBarnardLocations(nil))
	require.NoError(t, err)

	_, err = a.Fetch(context.Background())
	var adapterErr *menu.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	require.Equal(t, "columbia", adapterErr.University)
	require.Equal(t, menu.AdapterErrNetwork, adapterErr.Kind)
}

func staticCafeByName(t *testing.T, name string) staticCafe {
	t.Helper()
	for _, c := range staticCafes {
		if c.name == name {
			return c
		}
	}
	t.Fatalf("no static cafe named %q", name)
	return staticCafe{}
}

func TestStaticCafeOpenMidday(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	uris := staticCafeByName(t, "Blue Java Uris")

	hall := uris.hall(now, now.UTC())
	require.Equal(t, menu.StatusOpen, hall.Status)
	require.Len(t, hall.Meals, 1)
	require.Equal(t, "All Day", hall.Meals[0].MealType)
	require.NotEmpty(t, hall.Meals[0].Stations[0].Items)

	lateNight := now.Add(11 * time.Hour) // 23:00, past closing
	closed := uris.hall(lateNight, lateNight.UTC())
	require.Equal(t, menu.StatusClosed, closed.Status)
	require.Empty(t, closed.Meals)

	saturday := now.Add(5 * 24 * time.Hour)
	require.Equal(t, menu.StatusClosed, uris.hall(saturday, saturday.UTC()).Status)
}

func TestStaticCafeOvernightHours(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	jjs := staticCafeByName(t, "JJ's Place")

	// Open at noon, still open at 2 AM, closed in the 10 AM - noon gap.
	require.Equal(t, menu.StatusOpen, jjs.hall(now, now.UTC()).Status)

	twoAM := now.Add(14 * time.Hour)
	open := jjs.hall(twoAM, twoAM.UTC())
	require.Equal(t, menu.StatusOpen, open.Status)
	require.NotNil(t, open.Meals[0].TimeRange)
	require.True(t, open.Meals[0].TimeRange.CrossesMidnight)

	elevenAM := now.Add(-1 * time.Hour)
	require.Equal(t, menu.StatusClosed, jjs.hall(elevenAM, elevenAM.UTC()).Status)
}

func TestFetchContextExpiryDegradesRemainingHalls(t *testing.T) {
	t.Parallel()

	now := mondayNoon(t)
	first := HallConfig{Name: "John Jay Dining Hall", URL: "https://dining.example/john-jay"}
	second := HallConfig{Name: "Ferris Booth Commons", URL: "https://dining.example/ferris"}
	third := HallConfig{Name: "Grace Dodge", URL: "https://dining.example/grace-dodge"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &fakeFetcher{pages: map[string][]byte{
		first.URL: menuDataPage(now.Format("2006-01-02")),
	}}
	fetcher := &cancellingFetcher{inner: inner, cancel: cancel}

	a, err := New(fetcher, &fakeClock{now: now.UTC()}, zap.NewNop(),
		WithHalls([]HallConfig{first, second, third}), WithBarnardLocations(nil))
	require.NoError(t, err)

	halls, err := a.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, halls, 3+len(staticCafes), "unattempted halls must not vanish")
	require.Equal(t, menu.StatusOpen, halls[0].Status)
	require.Equal(t, "Ferris Booth Commons", halls[1].Name)
	require.Equal(t, menu.StatusServiceUnavailable, halls[1].Status)
	require.Equal(t, "Grace Dodge", halls[2].Name)
	require.Equal(t, menu.StatusServiceUnavailable, halls[2].Status)
}
