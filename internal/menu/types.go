// Package menu defines core types shared across subsystems.
package menu

import (
	"encoding/json"
	"fmt"
	"time"
)

// HallStatus represents the serving state of one dining hall.
type HallStatus string

// Hall status values carried in every snapshot.
const (
	StatusOpen               HallStatus = "open"
	StatusClosed             HallStatus = "closed"
	StatusNoMenuPosted       HallStatus = "no_menu_posted"
	StatusServiceUnavailable HallStatus = "service_unavailable"
)

// MenuItem is one dish or product offered at a station. Nutrition fields
// are nil until an adapter supplies them or the enricher resolves them;
// Estimated marks values that came from a lookup rather than the upstream.
type MenuItem struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	DietaryPrefs []string `json:"dietary_prefs"`
	Allergens    []string `json:"allergens"`
	Calories     *float64 `json:"calories"`
	ProteinG     *float64 `json:"protein_g"`
	CarbsG       *float64 `json:"carbs_g"`
	FatG         *float64 `json:"fat_g"`
	Estimated    bool     `json:"estimated"`
	SourceID     string   `json:"source_id"`
}

// HasAllMacros reports whether every nutrition field is already set.
func (m MenuItem) HasAllMacros() bool {
	return m.Calories != nil && m.ProteinG != nil && m.CarbsG != nil && m.FatG != nil
}

// Station is a named serving station with its items in scraped order.
type Station struct {
	Name  string     `json:"station"`
	Items []MenuItem `json:"items"`
}

// ClockTime is a wall-clock time of day, JSON-encoded as "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes returns the offset from midnight.
func (t ClockTime) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON encodes the time as a quoted "HH:MM" string.
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a quoted "HH:MM" string.
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal clock time: %w", err)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("parse clock time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("clock time %q out of range", s)
	}
	t.Hour = hour
	t.Minute = minute
	return nil
}

// TimeRange is a half-open [Start, End) interval of wall-clock time.
// CrossesMidnight marks ranges that wrap past 00:00; adapters leave it
// false unless the upstream says otherwise.
type TimeRange struct {
	Start           ClockTime `json:"start"`
	End             ClockTime `json:"end"`
	CrossesMidnight bool      `json:"crosses_midnight,omitempty"`
}

// Valid reports whether End is after Start (always true when the range
// wraps midnight).
func (r TimeRange) Valid() bool {
	if r.CrossesMidnight {
		return true
	}
	return r.End.Minutes() > r.Start.Minutes()
}

// Meal groups the stations served during one meal period.
type Meal struct {
	MealType  string     `json:"meal_type"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
	Stations  []Station  `json:"stations"`
}

// DiningHall is one hall's full menu for the current day. Meals is empty
// whenever Status is not open.
type DiningHall struct {
	Name       string     `json:"name"`
	University string     `json:"university"`
	Status     HallStatus `json:"status"`
	Meals      []Meal     `json:"meals"`
	ScrapedAt  time.Time  `json:"scraped_at"`
}

// Snapshot is the immutable aggregate published after each cycle. It is
// only ever replaced wholesale, never patched.
type Snapshot struct {
	Halls       []DiningHall `json:"halls"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// IsZero reports whether the snapshot has never been populated.
func (s Snapshot) IsZero() bool {
	return s.GeneratedAt.IsZero() && len(s.Halls) == 0
}

// ByUniversity returns the halls whose university tag matches. An unknown
// tag yields an empty slice, not an error.
func (s Snapshot) ByUniversity(tag string) []DiningHall {
	var out []DiningHall
	for _, hall := range s.Halls {
		if hall.University == tag {
			out = append(out, hall)
		}
	}
	return out
}

// CycleStatus summarizes one run of the scrape pipeline.
type CycleStatus string

// Cycle outcomes reported on /status.
const (
	CycleSuccess CycleStatus = "success"
	CyclePartial CycleStatus = "partial"
	CycleFailed  CycleStatus = "failed"
)

// UniversityStatus records how one university's adapter fared in a cycle.
type UniversityStatus struct {
	OK           bool      `json:"ok"`
	Halls        int       `json:"halls"`
	CarriedOver  bool      `json:"carried_over,omitempty"`
	Error        string    `json:"error,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// CycleResult is returned by the aggregator after every cycle.
type CycleResult struct {
	Status       CycleStatus                 `json:"status"`
	Snapshot     Snapshot                    `json:"-"`
	Universities map[string]UniversityStatus `json:"universities"`
	StartedAt    time.Time                   `json:"started_at"`
	FinishedAt   time.Time                   `json:"finished_at"`
}

// Macros holds the four nutrition values resolved by a lookup.
type Macros struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Float64 returns a pointer to v, for filling optional nutrition fields.
func Float64(v float64) *float64 {
	return &v
}
