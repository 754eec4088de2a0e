// Package normalize validates and coerces adapter output into the
// canonical schema.
package normalize

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/menu"
)

// dietaryVocab maps known dietary tags (lowercased, spaces collapsed) to
// their canonical form. Unknown tags pass through verbatim so upstream
// additions are never silently dropped.
var dietaryVocab = map[string]string{
	"vegan":       "vegan",
	"vegetarian":  "vegetarian",
	"halal":       "halal",
	"kosher":      "kosher",
	"gluten free": "gluten-free",
	"gluten-free": "gluten-free",
	"healthy":     "healthy",
	"dairy free":  "dairy-free",
	"dairy-free":  "dairy-free",
}

// allergenVocab is the controlled vocabulary for allergen tags.
var allergenVocab = map[string]string{
	"dairy":     "dairy",
	"milk":      "dairy",
	"eggs":      "eggs",
	"egg":       "eggs",
	"gluten":    "gluten",
	"wheat":     "wheat",
	"soy":       "soy",
	"peanuts":   "peanuts",
	"peanut":    "peanuts",
	"tree nuts": "tree-nuts",
	"tree-nuts": "tree-nuts",
	"fish":      "fish",
	"shellfish": "shellfish",
	"sesame":    "sesame",
}

// Normalizer coerces raw adapter halls into the canonical schema.
type Normalizer struct {
	logger *zap.Logger
}

// New builds a Normalizer.
func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Halls normalizes every hall in place-order: strings trimmed, tags
// canonicalized, source IDs assigned, name collisions within a station
// merged last-wins. Nutrition values supplied by adapters are left
// untouched.
func (n *Normalizer) Halls(halls []menu.DiningHall) []menu.DiningHall {
	out := make([]menu.DiningHall, 0, len(halls))
	for _, hall := range halls {
		out = append(out, n.hall(hall))
	}
	return out
}

func (n *Normalizer) hall(hall menu.DiningHall) menu.DiningHall {
	hall.Name = strings.TrimSpace(hall.Name)
	hall.University = strings.ToLower(strings.TrimSpace(hall.University))

	// Non-open halls carry no meals.
	if hall.Status != menu.StatusOpen {
		hall.Meals = nil
		return hall
	}

	meals := make([]menu.Meal, 0, len(hall.Meals))
	for _, meal := range hall.Meals {
		meal.MealType = strings.TrimSpace(meal.MealType)
		if meal.TimeRange != nil && !meal.TimeRange.Valid() {
			n.logger.Warn("dropping invalid meal time range",
				zap.String("hall", hall.Name),
				zap.String("meal", meal.MealType),
				zap.String("start", meal.TimeRange.Start.String()),
				zap.String("end", meal.TimeRange.End.String()),
			)
			meal.TimeRange = nil
		}
		stations := make([]menu.Station, 0, len(meal.Stations))
		for _, st := range meal.Stations {
			if norm, ok := n.station(hall.Name, st); ok {
				stations = append(stations, norm)
			}
		}
		if len(stations) > 0 {
			meal.Stations = stations
			meals = append(meals, meal)
		}
	}
	if len(meals) == 0 {
		hall.Status = menu.StatusNoMenuPosted
		hall.Meals = nil
		return hall
	}
	hall.Meals = meals
	return hall
}

func (n *Normalizer) station(hallName string, st menu.Station) (menu.Station, bool) {
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" {
		st.Name = "Station"
	}

	// Last-wins merge on item name collisions, preserving first-seen
	// position so station order stays stable.
	position := make(map[string]int, len(st.Items))
	items := make([]menu.MenuItem, 0, len(st.Items))
	for i, item := range st.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		item.Description = strings.TrimSpace(item.Description)
		item.DietaryPrefs = canonicalize(item.DietaryPrefs, dietaryVocab)
		item.Allergens = canonicalize(item.Allergens, allergenVocab)
		if item.SourceID == "" {
			item.SourceID = sourceID(st.Name, item.Name, i)
		}

		if at, seen := position[item.Name]; seen {
			n.logger.Warn("item name collision within station",
				zap.String("hall", hallName),
				zap.String("station", st.Name),
				zap.String("item", item.Name),
			)
			item.SourceID = items[at].SourceID
			items[at] = item
			continue
		}
		position[item.Name] = len(items)
		items = append(items, item)
	}
	if len(items) == 0 {
		return menu.Station{}, false
	}
	st.Items = items
	return st, true
}

// canonicalize lowercases known tags against the vocabulary; unknown tags
// pass through verbatim.
func canonicalize(tags []string, vocab map[string]string) []string {
	if len(tags) == 0 {
		return tags
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.Join(strings.Fields(strings.ToLower(trimmed)), " ")
		canon, ok := vocab[key]
		if !ok {
			canon = trimmed
		}
		if !seen[canon] {
			seen[canon] = true
			out = append(out, canon)
		}
	}
	return out
}

// sourceID derives a stable identifier from the station, item name, and
// scrape position.
func sourceID(station, name string, position int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", station, name, position))
	return fmt.Sprintf("%x", sum)[:16]
}
