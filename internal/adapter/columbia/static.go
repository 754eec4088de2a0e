package columbia

import (
	"time"

	"github.com/columbiacals/menud/internal/menu"
)

// staticCafe is a location whose offerings never change; Columbia
// publishes no menu_data for these, so the menu ships with the adapter.
type staticCafe struct {
	name     string
	schedule hallSchedule
	station  string
	items    []menu.MenuItem
}

// hall renders the cafe as a DiningHall with a single all-day meal when it
// is currently open.
func (c staticCafe) hall(local time.Time, scrapedAt time.Time) menu.DiningHall {
	schedule := c.schedule[local.Weekday()]
	if !hallOpenAt(schedule, local) {
		return menu.DiningHall{
			Name:       c.name,
			University: universityTag,
			Status:     menu.StatusClosed,
			ScrapedAt:  scrapedAt,
		}
	}

	items := make([]menu.MenuItem, len(c.items))
	copy(items, c.items)

	meal := menu.Meal{
		MealType: "All Day",
		Stations: []menu.Station{{Name: c.station, Items: items}},
	}
	if tr, ok := schedule["All Day"]; ok {
		r := tr
		meal.TimeRange = &r
	}

	return menu.DiningHall{
		Name:       c.name,
		University: universityTag,
		Status:     menu.StatusOpen,
		Meals:      []menu.Meal{meal},
		ScrapedAt:  scrapedAt,
	}
}

var jjsPlaceItems = []menu.MenuItem{
	{Name: "Hamburger", Description: "Classic beef burger", Allergens: []string{"Gluten"}},
	{Name: "Cheeseburger", Description: "Beef burger with cheese", Allergens: []string{"Gluten", "Dairy"}},
	{Name: "Fried Chicken Burger", Description: "Crispy fried chicken sandwich", Allergens: []string{"Gluten"}},
	{Name: "Chicken Nuggets", Description: "Breaded chicken nuggets", Allergens: []string{"Gluten"}},
	{Name: "Chicken Tenders", Description: "Breaded chicken tenders", Allergens: []string{"Gluten"}},
	{Name: "French Fries", Description: "Crispy golden fries", DietaryPrefs: []string{"Vegan", "Gluten Free"}},
	{Name: "Quesadilla", Description: "Cheese quesadilla", Allergens: []string{"Dairy", "Gluten"}, DietaryPrefs: []string{"Vegetarian"}},
	{Name: "Pancakes", Description: "Fluffy pancakes", Allergens: []string{"Gluten", "Eggs", "Dairy"}, DietaryPrefs: []string{"Vegetarian"}},
	{Name: "Chocolate Chip Pancakes", Description: "Pancakes with chocolate chips", Allergens: []string{"Gluten", "Eggs", "Dairy"}, DietaryPrefs: []string{"Vegetarian"}},
	{Name: "French Toast", Description: "Classic french toast", Allergens: []string{"Gluten", "Eggs", "Dairy"}, DietaryPrefs: []string{"Vegetarian"}},
}

var blueJavaItems = []menu.MenuItem{
	{Name: "Hot Espresso Beverages", Description: "Lattes, cappuccinos, americanos", Allergens: []string{"Dairy"}},
	{Name: "Iced Espresso Beverages", Description: "Iced lattes, iced cappuccinos", Allergens: []string{"Dairy"}},
	{Name: "Iced Coffee", Description: "Cold brewed iced coffee", DietaryPrefs: []string{"Vegan"}},
	{Name: "Hot Brewed Coffee", Description: "Fresh hot coffee", DietaryPrefs: []string{"Vegan"}},
	{Name: "Cold Brew Coffee", Description: "Slow-steeped cold brew", DietaryPrefs: []string{"Vegan"}},
	{Name: "Paninis", Description: "Assorted grilled paninis", Allergens: []string{"Gluten", "Dairy"}},
	{Name: "Republic of Tea", Description: "Premium tea selection", DietaryPrefs: []string{"Vegan"}},
	{Name: "Assorted Muffins", Description: "Various muffin flavors", Allergens: []string{"Gluten", "Eggs", "Dairy"}, DietaryPrefs: []string{"Vegetarian"}},
	{Name: "Assorted Pastries", Description: "Fresh baked pastries", Allergens: []string{"Gluten", "Eggs", "Dairy"}, DietaryPrefs: []string{"Vegetarian"}},
	{Name: "Chilled Drinks", Description: "Bottled beverages and juices", DietaryPrefs: []string{"Vegan"}},
	{Name: "Assorted Fruit", Description: "Fresh fruit cups", DietaryPrefs: []string{"Vegan", "Gluten Free"}},
	{Name: "Assorted Snacks", Description: "Grab and go snacks"},
}

var cafeDeliItems = []menu.MenuItem{
	{Name: "Hot Espresso Beverages", Description: "Lattes, cappuccinos, americanos", Allergens: []string{"Dairy"}},
	{Name: "Iced Coffee", Description: "Cold brewed iced coffee", DietaryPrefs: []string{"Vegan"}},
	{Name: "Hot Brewed Coffee", Description: "Fresh hot coffee", DietaryPrefs: []string{"Vegan"}},
	{Name: "Sandwiches", Description: "Fresh made sandwiches", Allergens: []string{"Gluten"}},
	{Name: "Salads", Description: "Fresh salads", DietaryPrefs: []string{"Vegetarian"}},
	{Name: "Assorted Pastries", Description: "Fresh baked pastries", Allergens: []string{"Gluten", "Eggs", "Dairy"}, DietaryPrefs: []string{"Vegetarian"}},
	{Name: "Chilled Drinks", Description: "Bottled beverages and juices", DietaryPrefs: []string{"Vegan"}},
	{Name: "Assorted Snacks", Description: "Grab and go snacks"},
}

var staticCafes = []staticCafe{
	{
		// Open daily from noon through 10 the next morning.
		name: "JJ's Place",
		schedule: onDays(allWeek, map[string]menu.TimeRange{
			"All Day": atOvernight(12, 0, 10, 0),
		}),
		station: "Grill",
		items:   jjsPlaceItems,
	},
	{
		name: "Blue Java Butler",
		schedule: merge(
			onDays(monToThu, map[string]menu.TimeRange{
				"All Day": atOvernight(8, 0, 0, 0),
			}),
			onDays([]time.Weekday{time.Friday, time.Saturday, time.Sunday}, map[string]menu.TimeRange{
				"All Day": at(9, 0, 21, 0),
			}),
		),
		station: "Coffee Bar",
		items:   blueJavaItems,
	},
	{
		name: "Blue Java Uris",
		schedule: onDays(weekdays, map[string]menu.TimeRange{
			"All Day": at(8, 0, 17, 30),
		}),
		station: "Coffee Bar",
		items:   blueJavaItems,
	},
	{
		name: "Blue Java Mudd",
		schedule: onDays(weekdays, map[string]menu.TimeRange{
			"All Day": at(8, 0, 18, 0),
		}),
		station: "Coffee Bar",
		items:   blueJavaItems,
	},
	{
		name: "Blue Java Everett",
		schedule: merge(
			onDays(monToThu, map[string]menu.TimeRange{
				"All Day": at(8, 0, 19, 30),
			}),
			onDays([]time.Weekday{time.Friday}, map[string]menu.TimeRange{
				"All Day": at(8, 0, 14, 30),
			}),
		),
		station: "Coffee Bar",
		items:   blueJavaItems,
	},
	{
		name: "Lenfest Cafe",
		schedule: merge(
			onDays(monToThu, map[string]menu.TimeRange{
				"All Day": at(8, 0, 18, 30),
			}),
			onDays([]time.Weekday{time.Friday}, map[string]menu.TimeRange{
				"All Day": at(8, 0, 15, 0),
			}),
		),
		station: "Cafe",
		items:   cafeDeliItems,
	},
	{
		name: "Robert F. Smith",
		schedule: merge(
			onDays(monToThu, map[string]menu.TimeRange{
				"All Day": at(8, 0, 16, 30),
			}),
			onDays([]time.Weekday{time.Friday}, map[string]menu.TimeRange{
				"All Day": at(8, 0, 16, 0),
			}),
		),
		station: "Cafe",
		items:   cafeDeliItems,
	},
}
