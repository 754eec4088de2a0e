// Package cornell scrapes Cornell dining halls via the Cornell Dining Now
// JSON API (now.dining.cornell.edu).
package cornell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/adapter"
	"github.com/columbiacals/menud/internal/menu"
)

const (
	universityTag  = "cornell"
	defaultBaseURL = "https://now.dining.cornell.edu/api/1.0/dining"
)

// Adapter implements menu.Adapter for Cornell.
type Adapter struct {
	fetcher adapter.PageFetcher
	clock   menu.Clock
	logger  *zap.Logger
	loc     *time.Location
	baseURL string
}

// Option adjusts adapter construction.
type Option func(*Adapter)

// WithBaseURL overrides the eateries API base URL (tests).
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// New builds the Cornell adapter. Campus times are interpreted in
// America/New_York.
func New(fetcher adapter.PageFetcher, clock menu.Clock, logger *zap.Logger, opts ...Option) (*Adapter, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load campus timezone: %w", err)
	}
	a := &Adapter{
		fetcher: fetcher,
		clock:   clock,
		logger:  logger,
		loc:     loc,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// University returns the adapter's university tag.
func (a *Adapter) University() string { return universityTag }

// Fetch retrieves today's eateries and converts them to canonical halls.
func (a *Adapter) Fetch(ctx context.Context) ([]menu.DiningHall, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("Referer", "https://now.dining.cornell.edu/")

	res, err := a.fetcher.Get(ctx, a.baseURL+"/eateries.json", headers)
	if err != nil {
		kind := menu.AdapterErrNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			kind = menu.AdapterErrTimeout
		}
		return nil, menu.NewAdapterError(universityTag, kind, err)
	}

	var payload eateriesResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return nil, menu.NewAdapterError(universityTag, menu.AdapterErrParse, fmt.Errorf("decode eateries: %w", err))
	}
	eateries := payload.Data.Eateries
	if len(eateries) == 0 {
		return nil, menu.NewAdapterError(universityTag, menu.AdapterErrParse, errors.New("no eateries in payload"))
	}

	now := a.clock.Now()
	today := now.In(a.loc).Format("2006-01-02")

	halls := make([]menu.DiningHall, 0, len(eateries))
	for _, e := range eateries {
		halls = append(halls, a.parseEatery(e, today, now))
	}
	return halls, nil
}

func (a *Adapter) parseEatery(e eatery, today string, now time.Time) menu.DiningHall {
	var todayHours *operatingDay
	for i := range e.OperatingHours {
		if e.OperatingHours[i].Date == today {
			todayHours = &e.OperatingHours[i]
			break
		}
	}

	var meals []menu.Meal
	if todayHours != nil {
		for _, ev := range todayHours.Events {
			if m, ok := a.parseEvent(ev); ok {
				meals = append(meals, m)
			}
		}
	}

	status := menu.StatusClosed
	switch {
	case len(meals) > 0:
		status = menu.StatusOpen
	case a.currentlyOpen(todayHours, now):
		status = menu.StatusNoMenuPosted
	}
	if status != menu.StatusOpen {
		meals = nil
	}

	return menu.DiningHall{
		Name:       e.Name,
		University: universityTag,
		Status:     status,
		Meals:      meals,
		ScrapedAt:  now,
	}
}

func (a *Adapter) parseEvent(ev event) (menu.Meal, bool) {
	mealType := ev.Descr
	if mealType == "" {
		mealType = ev.CalSummary
	}
	if mealType == "" {
		mealType = "Meal"
	}

	var stations []menu.Station
	for _, cat := range ev.Menu {
		name := cat.Category
		if name == "" {
			name = "Station"
		}
		var items []menu.MenuItem
		for _, it := range cat.Items {
			itemName := strings.TrimSpace(it.Item)
			if len(itemName) <= 2 {
				continue
			}
			items = append(items, menu.MenuItem{
				Name:         itemName,
				Description:  strings.TrimSpace(it.Description),
				Allergens:    it.Allergens,
				DietaryPrefs: dietaryPrefs(it),
			})
		}
		if len(items) > 0 {
			stations = append(stations, menu.Station{Name: name, Items: items})
		}
	}
	if len(stations) == 0 {
		return menu.Meal{}, false
	}

	return menu.Meal{
		MealType:  mealType,
		TimeRange: a.timeRange(ev.StartTimestamp, ev.EndTimestamp),
		Stations:  stations,
	}, true
}

// timeRange converts the event's Unix timestamps into campus wall-clock
// times. An end date after the start date marks the range as crossing
// midnight.
func (a *Adapter) timeRange(startTS, endTS int64) *menu.TimeRange {
	if startTS == 0 || endTS == 0 || endTS <= startTS {
		return nil
	}
	start := time.Unix(startTS, 0).In(a.loc)
	end := time.Unix(endTS, 0).In(a.loc)
	return &menu.TimeRange{
		Start:           menu.ClockTime{Hour: start.Hour(), Minute: start.Minute()},
		End:             menu.ClockTime{Hour: end.Hour(), Minute: end.Minute()},
		CrossesMidnight: end.YearDay() != start.YearDay(),
	}
}

func (a *Adapter) currentlyOpen(todayHours *operatingDay, now time.Time) bool {
	if todayHours == nil {
		return false
	}
	ts := now.Unix()
	for _, ev := range todayHours.Events {
		if ev.StartTimestamp <= ts && ts < ev.EndTimestamp {
			return true
		}
	}
	return false
}

func dietaryPrefs(it apiItem) []string {
	var prefs []string
	if it.Healthy {
		prefs = append(prefs, "Healthy")
	}
	if it.Vegan {
		prefs = append(prefs, "Vegan")
	}
	if it.Vegetarian {
		prefs = append(prefs, "Vegetarian")
	}
	if it.GlutenFree {
		prefs = append(prefs, "Gluten Free")
	}
	return prefs
}

type eateriesResponse struct {
	Data struct {
		Eateries []eatery `json:"eateries"`
	} `json:"data"`
}

type eatery struct {
	Name           string         `json:"name"`
	EateryType     string         `json:"eateryType"`
	OperatingHours []operatingDay `json:"operatingHours"`
}

type operatingDay struct {
	Date   string  `json:"date"`
	Events []event `json:"events"`
}

type event struct {
	Descr          string     `json:"descr"`
	CalSummary     string     `json:"calSummary"`
	StartTimestamp int64      `json:"startTimestamp"`
	EndTimestamp   int64      `json:"endTimestamp"`
	Menu           []category `json:"menu"`
}

type category struct {
	Category string    `json:"category"`
	Items    []apiItem `json:"items"`
}

type apiItem struct {
	Item        string   `json:"item"`
	Description string   `json:"description"`
	Allergens   []string `json:"allergens"`
	Healthy     bool     `json:"healthy"`
	Vegan       bool     `json:"vegan"`
	Vegetarian  bool     `json:"vegetarian"`
	GlutenFree  bool     `json:"glutenFree"`
}
