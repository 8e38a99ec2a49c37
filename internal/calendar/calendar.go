// Package calendar implements the Gregorian date arithmetic a calendar UI
// renders against: month lengths, week boundaries, week numbering and the
// day grids of week and month views.
//
// Nothing here reads process-wide state. Week start, clock and location live
// on a caller-owned Calendar value; the zero Calendar starts weeks on Sunday,
// uses time.Now and time.Local.
package calendar

import (
	"time"
)

// Day is one cell of a week or month view.
type Day struct {
	Date    time.Time `json:"date"`
	Weekday TimeLabel `json:"weekday"`
	// CurrentPeriod is false for lead/trail days borrowed from an adjacent
	// month, and for every day of a week view.
	CurrentPeriod bool `json:"current_period"`
}

// Week is identified by its week-of-year number and its first day at midnight.
type Week struct {
	ID       int       `json:"id"`
	FirstDay time.Time `json:"first_day"`
}

// Calendar carries the configuration the primitives depend on.
type Calendar struct {
	WeekStart time.Weekday
	Location  *time.Location
	Now       func() time.Time
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.location())
	}
	return c.Now().In(c.location())
}

// Today returns the current day as a Day in the current period.
func (c Calendar) Today() Day {
	return NewDay(c.now(), true)
}

// NewDay wraps date with its weekday label.
func NewDay(date time.Time, currentPeriod bool) Day {
	return Day{
		Date:          date,
		Weekday:       WeekdayByID(int(date.Weekday())),
		CurrentPeriod: currentPeriod,
	}
}

// IsLeapYear reports whether year has a February 29 in the proleptic
// Gregorian calendar.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in the month with the given
// zero-based id (0 = January).
func DaysInMonth(monthID, year int) int {
	switch monthID {
	case 1:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 3, 5, 8, 10:
		return 30
	default:
		return 31
	}
}

// MonthFromDate returns the label of the month date falls in.
func MonthFromDate(date time.Time) TimeLabel {
	return MonthByID(int(date.Month()) - 1)
}

// AddMonths moves t by n calendar months, keeping the wall-clock time and
// clamping the day to the target month's length: January 31 plus one month
// is February 29 in a leap year.
func AddMonths(t time.Time, n int) time.Time {
	idx := int(t.Month()) - 1 + n
	year := t.Year() + floorDiv(idx, 12)
	monthID := mod(idx, 12)

	day := t.Day()
	if last := DaysInMonth(monthID, year); day > last {
		day = last
	}
	h, mi, s := t.Clock()
	return time.Date(year, time.Month(monthID+1), day, h, mi, s, t.Nanosecond(), t.Location())
}

// MonthsBetween counts calendar months from a's month to b's month, ignoring
// the day of month.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysSinceEpoch counts whole calendar days from 1970-01-01 to t's wall-clock
// date. Time of day and DST transitions do not affect the result.
func DaysSinceEpoch(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// DaysAreEqual reports whether a and b fall on the same wall-clock date.
func DaysAreEqual(a, b time.Time) bool {
	return DaysSinceEpoch(a) == DaysSinceEpoch(b)
}

// DifferenceInDays returns the number of calendar days from a to b.
func DifferenceInDays(a, b time.Time) int {
	return DaysSinceEpoch(b) - DaysSinceEpoch(a)
}

// weekOffset is how many days date lies after the start of its week.
func (c Calendar) weekOffset(wd time.Weekday) int {
	return mod(int(wd)-int(c.WeekStart), 7)
}

// FirstDayOfWeek returns midnight of the week-start day on or before date.
func (c Calendar) FirstDayOfWeek(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d-c.weekOffset(date.Weekday()), 0, 0, 0, 0, date.Location())
}

// firstWeekStartOfYear is the first day of week 1: the week containing
// January 4.
func (c Calendar) firstWeekStartOfYear(year int, loc *time.Location) time.Time {
	return c.FirstDayOfWeek(time.Date(year, time.January, 4, 0, 0, 0, 0, loc))
}

// WeekNumber numbers weeks so that the week containing January 4 is week 1.
//
// The year is taken from the last day of date's week, stepping back one
// year when that week begins before the year's week 1. All seven days of a
// week therefore share a number, and no week is numbered 0.
func (c Calendar) WeekNumber(date time.Time) int {
	first := c.FirstDayOfWeek(date)
	year := first.AddDate(0, 0, 6).Year()
	week1 := c.firstWeekStartOfYear(year, date.Location())
	if first.Before(week1) {
		week1 = c.firstWeekStartOfYear(year-1, date.Location())
	}
	return DifferenceInDays(week1, first)/7 + 1
}

// WeekByDate returns the week date belongs to.
func (c Calendar) WeekByDate(date time.Time) Week {
	return Week{
		ID:       c.WeekNumber(date),
		FirstDay: c.FirstDayOfWeek(date),
	}
}

func (c Calendar) FirstDayOfYear(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, c.location())
}

func (c Calendar) LastDayOfYear(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, c.location())
}

// FirstWeekOfYear returns the week holding January 1. Its ID is always 0;
// callers that need the ISO-style number use WeekByDate.
func (c Calendar) FirstWeekOfYear(year int) Week {
	return Week{
		ID:       0,
		FirstDay: c.FirstDayOfWeek(c.FirstDayOfYear(year)),
	}
}

// WeekdayFromWeek returns the day of week that carries the given weekday.
func (c Calendar) WeekdayFromWeek(week Week, weekday TimeLabel) Day {
	y, m, d := week.FirstDay.Date()
	offset := c.weekOffset(time.Weekday(mod(weekday.ID, 7)))
	date := time.Date(y, m, d+offset, 0, 0, 0, 0, week.FirstDay.Location())
	return Day{Date: date, Weekday: WeekdayByID(weekday.ID), CurrentPeriod: false}
}
