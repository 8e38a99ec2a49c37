package store

import (
	"time"

	"reccal/internal/calendar"
	"reccal/internal/model"
)

// DayEvents keeps the events starting on day's calendar date.
func DayEvents(events []model.Event, day time.Time) []model.Event {
	return filter(events, func(ev model.Event) bool {
		return calendar.DaysAreEqual(ev.StartDate, day)
	})
}

// HourEvents keeps the events starting on t's date within t's hour.
func HourEvents(events []model.Event, t time.Time) []model.Event {
	return filter(events, func(ev model.Event) bool {
		return calendar.DaysAreEqual(ev.StartDate, t) && ev.StartDate.Hour() == t.Hour()
	})
}

// MonthEvents keeps the events starting in the month with the given
// zero-based id.
func MonthEvents(events []model.Event, monthID, year int) []model.Event {
	return filter(events, func(ev model.Event) bool {
		return ev.StartDate.Year() == year && int(ev.StartDate.Month())-1 == monthID
	})
}

// SourceEvents keeps the events imported from source.
func SourceEvents(events []model.Event, source string) []model.Event {
	return filter(events, func(ev model.Event) bool { return ev.Source == source })
}

func filter(events []model.Event, keep func(model.Event) bool) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}
