package calendar

import "time"

// WeekDays returns the seven days of the week containing date.
func (c Calendar) WeekDays(date time.Time) []Day {
	first := c.FirstDayOfWeek(date)
	y, m, d := first.Date()

	days := make([]Day, 7)
	for i := range days {
		days[i] = NewDay(time.Date(y, m, d+i, 0, 0, 0, 0, first.Location()), false)
	}
	return days
}

// MonthDays returns every day of the month, all marked as current period.
func (c Calendar) MonthDays(monthID, year int) []Day {
	n := DaysInMonth(monthID, year)
	loc := c.location()

	days := make([]Day, n)
	for i := range days {
		days[i] = NewDay(time.Date(year, time.Month(monthID+1), i+1, 0, 0, 0, 0, loc), true)
	}
	return days
}

// PrevMonthDisplayDays returns the trailing days of the previous month that
// fill the first row of a month grid, oldest first.
func (c Calendar) PrevMonthDisplayDays(monthID, year int) []Day {
	first := time.Date(year, time.Month(monthID+1), 1, 0, 0, 0, 0, c.location())
	lead := c.weekOffset(first.Weekday())

	days := make([]Day, lead)
	for i := range days {
		days[i] = NewDay(first.AddDate(0, 0, i-lead), false)
	}
	return days
}

// NextMonthDisplayDays returns the leading days of the next month that fill
// the last row of a month grid.
func (c Calendar) NextMonthDisplayDays(monthID, year int) []Day {
	last := time.Date(year, time.Month(monthID+1), DaysInMonth(monthID, year), 0, 0, 0, 0, c.location())
	trail := 6 - c.weekOffset(last.Weekday())

	days := make([]Day, trail)
	for i := range days {
		days[i] = NewDay(last.AddDate(0, 0, i+1), false)
	}
	return days
}

// MonthDisplayDays is the full grid for a month view: lead days, the month
// itself and trail days. Its length is always a multiple of seven.
func (c Calendar) MonthDisplayDays(monthID, year int) []Day {
	prev := c.PrevMonthDisplayDays(monthID, year)
	cur := c.MonthDays(monthID, year)
	next := c.NextMonthDisplayDays(monthID, year)

	out := make([]Day, 0, len(prev)+len(cur)+len(next))
	out = append(out, prev...)
	out = append(out, cur...)
	return append(out, next...)
}
