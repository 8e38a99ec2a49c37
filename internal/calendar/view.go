package calendar

import "time"

// DayKind is the highlight class a UI picks a style for.
type DayKind string

const (
	DayPast     DayKind = "past"
	DaySelected DayKind = "selected"
	DayToday    DayKind = "today"
	DayFuture   DayKind = "future"
)

// Classify places day relative to today and the selected day. A past day is
// past even when selected; otherwise selection wins over today.
func (c Calendar) Classify(day, selected Day) DayKind {
	today := c.now()
	switch {
	case DaysSinceEpoch(day.Date) < DaysSinceEpoch(today):
		return DayPast
	case DaysAreEqual(day.Date, selected.Date):
		return DaySelected
	case DaysAreEqual(day.Date, today):
		return DayToday
	default:
		return DayFuture
	}
}

// View is the navigation state of a calendar screen: one selected day from
// which the visible week and month derive. The caller owns it; it is not safe
// for concurrent mutation.
type View struct {
	cal      Calendar
	selected Day
}

// NewView starts a view on selected, or on today when selected is zero.
func (c Calendar) NewView(selected time.Time) *View {
	if selected.IsZero() {
		selected = c.now()
	}
	return &View{cal: c, selected: NewDay(selected, true)}
}

func (v *View) Selected() Day { return v.selected }

func (v *View) Year() int { return v.selected.Date.Year() }

func (v *View) Month() TimeLabel { return MonthFromDate(v.selected.Date) }

func (v *View) Week() Week { return v.cal.WeekByDate(v.selected.Date) }

func (v *View) WeekDays() []Day { return v.cal.WeekDays(v.selected.Date) }

func (v *View) MonthDisplayDays() []Day {
	return v.cal.MonthDisplayDays(v.Month().ID, v.Year())
}

// NextWeek returns the week after the visible one without moving the view.
func (v *View) NextWeek() Week {
	return v.cal.WeekByDate(v.Week().FirstDay.AddDate(0, 0, 7))
}

// LastWeek returns the week before the visible one without moving the view.
func (v *View) LastWeek() Week {
	return v.cal.WeekByDate(v.Week().FirstDay.AddDate(0, 0, -7))
}

func (v *View) NextMonth() TimeLabel { return MonthByID(v.Month().ID + 1) }

func (v *View) LastMonth() TimeLabel { return MonthByID(v.Month().ID - 1) }

func (v *View) LoadNextWeek() { v.Select(NewDay(v.selected.Date.AddDate(0, 0, 7), true)) }

func (v *View) LoadPrevWeek() { v.Select(NewDay(v.selected.Date.AddDate(0, 0, -7), true)) }

func (v *View) LoadNextMonth() { v.shiftMonth(1) }

func (v *View) LoadPrevMonth() { v.shiftMonth(-1) }

// Select moves the view to day.
func (v *View) Select(day Day) {
	day.CurrentPeriod = true
	v.selected = day
}

// shiftMonth keeps the day of month, clamped to the target month's length
// (March 31 minus one month is February 28 or 29).
func (v *View) shiftMonth(delta int) {
	v.Select(NewDay(AddMonths(v.selected.Date, delta), true))
}
