// Package columbia scrapes Columbia dining halls from dining.columbia.edu.
// Dynamic halls embed a menu_data JSON blob in their pages; cafes with
// fixed offerings come from a built-in table.
package columbia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/adapter"
	"github.com/columbiacals/menud/internal/menu"
)

const universityTag = "columbia"

// menuDataPattern matches the backtick-quoted JSON blob Columbia embeds in
// each dynamic hall page.
var menuDataPattern = regexp.MustCompile("(?s)var menu_data = `(.+?)`;")

// HallConfig names one dynamic hall and its page URL.
type HallConfig struct {
	Name string
	URL  string
}

// defaultHalls are the dynamic-menu halls scraped per cycle. JJ's Place
// and the cafes publish no menu_data; they live in the static table.
var defaultHalls = []HallConfig{
	{Name: "John Jay Dining Hall", URL: "https://dining.columbia.edu/content/john-jay-dining-hall"},
	{Name: "Ferris Booth Commons", URL: "https://dining.columbia.edu/content/ferris-booth-commons-0"},
	{Name: "Grace Dodge", URL: "https://dining.columbia.edu/content/grace-dodge-dining-hall-0"},
	{Name: "Faculty House 2nd Floor", URL: "https://dining.columbia.edu/content/faculty-house-2nd-floor-0"},
	{Name: "Faculty House Skyline", URL: "https://dining.columbia.edu/content/faculty-house-4th-floor-skyline-room"},
	{Name: "Fac Shack", URL: "https://dining.columbia.edu/content/fac-shack-0"},
	{Name: "Chef Mike's", URL: "https://dining.columbia.edu/chef-mikes"},
	{Name: "Johnny's", URL: "https://dining.columbia.edu/johnnys"},
}

// stationNames maps Columbia's numeric station IDs to display names.
var stationNames = map[string]string{
	"10":  "Smoothie Bar",
	"12":  "Kosher Station",
	"16":  "Halal Station",
	"24":  "Main Station",
	"27":  "Bakery",
	"28":  "Soup & Oatmeal",
	"29":  "Vegan Station",
	"33":  "Grill",
	"100": "Asian Station",
	"159": "Pasta Station",
}

// mealTypeCodes maps Columbia's menu_type codes to meal names. Codes
// outside this table (such as "All Day") are skipped for dynamic halls.
var mealTypeCodes = map[string]string{
	"6": "Breakfast",
	"7": "Lunch",
	"8": "Dinner",
}

var mealOrder = []string{"Breakfast", "Lunch", "Dinner"}

// Adapter implements menu.Adapter for Columbia, covering the Columbia
// dynamic halls, the static cafes, and the Barnard halls served by the
// DineOnCampus API.
type Adapter struct {
	fetcher    adapter.PageFetcher
	clock      menu.Clock
	logger     *zap.Logger
	loc        *time.Location
	halls      []HallConfig
	barnard    []BarnardLocation
	barnardURL string
}

// Option adjusts adapter construction.
type Option func(*Adapter)

// WithHalls overrides the dynamic hall list (tests).
func WithHalls(halls []HallConfig) Option {
	return func(a *Adapter) { a.halls = halls }
}

// WithBarnardLocations overrides the Barnard hall list (tests). Nil
// disables Barnard scraping.
func WithBarnardLocations(locs []BarnardLocation) Option {
	return func(a *Adapter) { a.barnard = locs }
}

// WithBarnardBaseURL overrides the DineOnCampus API base URL (tests).
func WithBarnardBaseURL(url string) Option {
	return func(a *Adapter) { a.barnardURL = strings.TrimRight(url, "/") }
}

// New builds the Columbia adapter. Campus times are interpreted in
// America/New_York.
func New(fetcher adapter.PageFetcher, clock menu.Clock, logger *zap.Logger, opts ...Option) (*Adapter, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load campus timezone: %w", err)
	}
	a := &Adapter{
		fetcher:    fetcher,
		clock:      clock,
		logger:     logger,
		loc:        loc,
		halls:      defaultHalls,
		barnard:    barnardLocations,
		barnardURL: defaultBarnardBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// University returns the adapter's university tag.
func (a *Adapter) University() string { return universityTag }

// Fetch scrapes every configured hall page, the static cafes, and the
// Barnard halls. A single hall failure degrades that hall; only a
// whole-university failure returns an AdapterError.
func (a *Adapter) Fetch(ctx context.Context) ([]menu.DiningHall, error) {
	now := a.clock.Now()
	local := now.In(a.loc)

	halls := make([]menu.DiningHall, 0, len(a.halls)+len(staticCafes)+len(a.barnard))
	failures := 0
	var lastErr error

	for _, hc := range a.halls {
		// Once the context is gone the remaining halls still appear in
		// the result, degraded, rather than vanishing from the cycle.
		if err := ctx.Err(); err != nil {
			failures++
			lastErr = err
			halls = append(halls, unavailableHall(hc.Name, now))
			continue
		}
		hall, err := a.fetchHall(ctx, hc, now, local)
		if err != nil {
			failures++
			lastErr = err
			a.logger.Warn("columbia hall fetch failed",
				zap.String("hall", hc.Name),
				zap.Error(err),
			)
			hall = unavailableHall(hc.Name, now)
		}
		halls = append(halls, hall)
	}

	if len(a.halls) > 0 && failures == len(a.halls) {
		kind := menu.AdapterErrNetwork
		if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = menu.AdapterErrTimeout
		}
		return nil, menu.NewAdapterError(universityTag, kind, fmt.Errorf("all %d halls failed: %w", failures, lastErr))
	}

	for _, cafe := range staticCafes {
		halls = append(halls, cafe.hall(local, now))
	}

	for _, loc := range a.barnard {
		halls = append(halls, a.fetchBarnard(ctx, loc, now, local))
	}
	return halls, nil
}

func unavailableHall(name string, now time.Time) menu.DiningHall {
	return menu.DiningHall{
		Name:       name,
		University: universityTag,
		Status:     menu.StatusServiceUnavailable,
		ScrapedAt:  now,
	}
}

func (a *Adapter) fetchHall(ctx context.Context, hc HallConfig, now time.Time, local time.Time) (menu.DiningHall, error) {
	headers := http.Header{}
	headers.Set("Accept", "text/html,application/xhtml+xml")
	headers.Set("Referer", "https://dining.columbia.edu/")

	res, err := a.fetcher.Get(ctx, hc.URL, headers)
	if err != nil {
		return menu.DiningHall{}, fmt.Errorf("fetch %s: %w", hc.URL, err)
	}

	schedule := scheduleFor(hc.Name, local.Weekday())
	open := hallOpenAt(schedule, local)

	raw, ok := extractMenuData(res.Body)
	if !ok {
		// No embedded menu. Distinguish an explicitly closed page from a
		// page that simply has nothing posted yet.
		status := menu.StatusNoMenuPosted
		if !open || pageMarkedClosed(res.Body) {
			status = menu.StatusClosed
		}
		return menu.DiningHall{
			Name:       hc.Name,
			University: universityTag,
			Status:     status,
			ScrapedAt:  now,
		}, nil
	}

	var menus []columbiaMenu
	if err := json.Unmarshal(raw, &menus); err != nil {
		return menu.DiningHall{}, fmt.Errorf("decode menu_data for %s: %w", hc.Name, err)
	}

	meals := a.assembleMeals(menus, schedule, local)

	status := menu.StatusClosed
	switch {
	case len(meals) > 0:
		status = menu.StatusOpen
	case open:
		status = menu.StatusNoMenuPosted
	}

	return menu.DiningHall{
		Name:       hc.Name,
		University: universityTag,
		Status:     status,
		Meals:      meals,
		ScrapedAt:  now,
	}, nil
}

// assembleMeals collects today's items grouped by meal type, merging
// stations that repeat across date ranges, then emits meals in
// Breakfast/Lunch/Dinner order with the hall's scheduled time ranges.
func (a *Adapter) assembleMeals(menus []columbiaMenu, schedule map[string]menu.TimeRange, local time.Time) []menu.Meal {
	stationsByMeal := make(map[string][]menu.Station)

	for _, m := range menus {
		for _, dr := range m.DateRangeFields {
			if !dr.coversDate(local, a.loc) {
				continue
			}
			if len(dr.MenuTypes) == 0 {
				continue
			}
			mealType, ok := mealTypeCodes[dr.MenuTypes[0]]
			if !ok {
				continue
			}
			if schedule != nil {
				if _, served := schedule[mealType]; !served {
					continue
				}
			}
			stationsByMeal[mealType] = mergeStations(stationsByMeal[mealType], dr.stations())
		}
	}

	var meals []menu.Meal
	for _, mealType := range mealOrder {
		stations := stationsByMeal[mealType]
		if len(stations) == 0 {
			continue
		}
		meal := menu.Meal{MealType: mealType, Stations: stations}
		if tr, ok := schedule[mealType]; ok {
			r := tr
			meal.TimeRange = &r
		}
		meals = append(meals, meal)
	}
	return meals
}

// extractMenuData pulls the backtick-quoted JSON blob out of the page.
func extractMenuData(page []byte) ([]byte, bool) {
	m := menuDataPattern.FindSubmatch(page)
	if m == nil {
		return nil, false
	}
	return m[1], true
}

// pageMarkedClosed scans the page's hour/status markup for an explicit
// closed marker.
func pageMarkedClosed(page []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return false
	}
	text := doc.Find(".hours, .status, .hours-status, .field--name-field-hours").Text()
	return strings.Contains(strings.ToLower(text), "closed")
}

func mergeStations(existing, incoming []menu.Station) []menu.Station {
	for _, in := range incoming {
		merged := false
		for i := range existing {
			if existing[i].Name != in.Name {
				continue
			}
			seen := make(map[string]bool, len(existing[i].Items))
			for _, item := range existing[i].Items {
				seen[item.Name] = true
			}
			for _, item := range in.Items {
				if !seen[item.Name] {
					existing[i].Items = append(existing[i].Items, item)
					seen[item.Name] = true
				}
			}
			merged = true
			break
		}
		if !merged {
			existing = append(existing, in)
		}
	}
	return existing
}

type columbiaMenu struct {
	DateRangeFields []dateRange `json:"date_range_fields"`
}

type dateRange struct {
	DateFrom  string       `json:"date_from"`
	DateTo    string       `json:"date_to"`
	MenuTypes []string     `json:"menu_type"`
	Stations  []rawStation `json:"stations"`
}

// coversDate reports whether the range includes the given campus-local day.
// Ranges without parseable bounds are kept rather than silently dropped.
func (dr dateRange) coversDate(local time.Time, loc *time.Location) bool {
	from, fromOK := parseUpstreamDate(dr.DateFrom, loc)
	to, toOK := parseUpstreamDate(dr.DateTo, loc)
	if !fromOK && !toOK {
		return true
	}
	day := local.Format("2006-01-02")
	switch {
	case fromOK && toOK:
		return from.Format("2006-01-02") <= day && day <= to.Format("2006-01-02")
	case fromOK:
		return day == from.Format("2006-01-02")
	default:
		return day == to.Format("2006-01-02")
	}
}

func (dr dateRange) stations() []menu.Station {
	var out []menu.Station
	for _, rs := range dr.Stations {
		name := "Station"
		if len(rs.StationIDs) > 0 {
			if mapped, ok := stationNames[rs.StationIDs[0]]; ok {
				name = mapped
			}
		}
		var items []menu.MenuItem
		for _, rm := range rs.MealsParagraph {
			title := strings.TrimSpace(rm.Title)
			if len(title) <= 2 {
				continue
			}
			items = append(items, menu.MenuItem{
				Name:         title,
				Description:  strings.TrimSpace(rm.MealText),
				Allergens:    rm.Allergens,
				DietaryPrefs: rm.Prefs,
			})
		}
		if len(items) > 0 {
			out = append(out, menu.Station{Name: name, Items: items})
		}
	}
	return out
}

type rawStation struct {
	StationIDs     []string  `json:"station"`
	MealsParagraph []rawMeal `json:"meals_paragraph"`
}

type rawMeal struct {
	Title     string   `json:"title"`
	MealText  string   `json:"meal_text"`
	Allergens []string `json:"allergens"`
	Prefs     []string `json:"prefs"`
}

// parseUpstreamDate handles both ISO timestamps (with or without zone) and
// bare YYYY-MM-DD dates.
func parseUpstreamDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	s = strings.Replace(s, "Z", "+00:00", 1)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}
