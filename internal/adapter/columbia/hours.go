package columbia

import (
	"time"

	"github.com/columbiacals/menud/internal/menu"
)

// hallSchedule maps each weekday to the meals served that day. A missing
// weekday means the hall is closed.
type hallSchedule map[time.Weekday]map[string]menu.TimeRange

func at(startH, startM, endH, endM int) menu.TimeRange {
	return menu.TimeRange{
		Start: menu.ClockTime{Hour: startH, Minute: startM},
		End:   menu.ClockTime{Hour: endH, Minute: endM},
	}
}

// atOvernight is a service window that runs past midnight into the next
// morning, such as a late-night grill.
func atOvernight(startH, startM, endH, endM int) menu.TimeRange {
	tr := at(startH, startM, endH, endM)
	tr.CrossesMidnight = true
	return tr
}

func onDays(days []time.Weekday, meals map[string]menu.TimeRange) hallSchedule {
	s := make(hallSchedule, len(days))
	for _, d := range days {
		s[d] = meals
	}
	return s
}

func merge(schedules ...hallSchedule) hallSchedule {
	out := make(hallSchedule)
	for _, s := range schedules {
		for d, meals := range s {
			out[d] = meals
		}
	}
	return out
}

var (
	allWeek  = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	sunToThu = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	monToThu = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	monToWed = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday}
)

// hallSchedules captures the published Columbia Dining service hours for
// the dynamic halls. The upstream pages do not expose these in the
// menu_data blob, so they are maintained here.
var hallSchedules = map[string]hallSchedule{
	"John Jay Dining Hall": onDays(sunToThu, map[string]menu.TimeRange{
		"Breakfast": at(9, 30, 11, 0),
		"Lunch":     at(11, 0, 14, 30),
		"Dinner":    at(17, 0, 21, 0),
	}),
	"Ferris Booth Commons": merge(
		onDays(weekdays, map[string]menu.TimeRange{
			"Breakfast": at(7, 30, 10, 30),
			"Lunch":     at(11, 0, 15, 0),
			"Dinner":    at(17, 0, 20, 0),
		}),
		onDays([]time.Weekday{time.Saturday}, map[string]menu.TimeRange{
			"Breakfast": at(9, 0, 11, 0),
			"Lunch":     at(11, 0, 15, 0),
			"Dinner":    at(17, 0, 20, 0),
		}),
		onDays([]time.Weekday{time.Sunday}, map[string]menu.TimeRange{
			"Lunch":  at(10, 0, 14, 0),
			"Dinner": at(16, 0, 20, 0),
		}),
	),
	"Grace Dodge": onDays(monToThu, map[string]menu.TimeRange{
		"Lunch":  at(11, 0, 14, 30),
		"Dinner": at(14, 30, 19, 30),
	}),
	"Faculty House 2nd Floor": onDays(monToThu, map[string]menu.TimeRange{
		"Lunch": at(11, 0, 14, 30),
	}),
	"Faculty House Skyline": onDays(monToThu, map[string]menu.TimeRange{
		"Lunch": at(11, 0, 14, 30),
	}),
	"Fac Shack": merge(
		onDays(monToThu, map[string]menu.TimeRange{
			"Lunch":  at(12, 0, 15, 0),
			"Dinner": at(17, 0, 20, 0),
		}),
		onDays([]time.Weekday{time.Sunday}, map[string]menu.TimeRange{
			"Dinner": at(15, 0, 20, 0),
		}),
	),
	"Johnny's": merge(
		onDays(monToWed, map[string]menu.TimeRange{
			"Lunch": at(11, 0, 14, 30),
		}),
		onDays([]time.Weekday{time.Thursday, time.Friday}, map[string]menu.TimeRange{
			"Lunch":  at(11, 0, 14, 30),
			"Dinner": at(19, 0, 23, 0),
		}),
		onDays([]time.Weekday{time.Saturday}, map[string]menu.TimeRange{
			"Dinner": at(19, 0, 23, 0),
		}),
		onDays([]time.Weekday{time.Sunday}, map[string]menu.TimeRange{
			"Dinner": at(18, 0, 22, 0),
		}),
	),
	"Chef Mike's": merge(
		onDays(weekdays, map[string]menu.TimeRange{
			"Lunch":  at(10, 30, 15, 0),
			"Dinner": at(17, 0, 22, 0),
		}),
		onDays([]time.Weekday{time.Saturday}, map[string]menu.TimeRange{
			"Lunch":  at(11, 0, 15, 0),
			"Dinner": at(15, 0, 19, 0),
		}),
	),
}

// scheduleFor returns the meals served by a hall on the given weekday, or
// nil when the hall has no published schedule (treated as "serve whatever
// the menu lists").
func scheduleFor(hall string, day time.Weekday) map[string]menu.TimeRange {
	s, ok := hallSchedules[hall]
	if !ok {
		return nil
	}
	return s[day]
}

// hallOpenAt reports whether the local time falls inside any scheduled
// meal window. Overnight windows cover from their start to midnight and
// from midnight to their end.
func hallOpenAt(schedule map[string]menu.TimeRange, local time.Time) bool {
	nowMin := local.Hour()*60 + local.Minute()
	for _, tr := range schedule {
		if tr.CrossesMidnight {
			if nowMin >= tr.Start.Minutes() || nowMin < tr.End.Minutes() {
				return true
			}
			continue
		}
		if tr.Start.Minutes() <= nowMin && nowMin < tr.End.Minutes() {
			return true
		}
	}
	return false
}
