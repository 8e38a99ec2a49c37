package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysInMonth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		monthID int
		year    int
		want    int
	}{
		{0, 2024, 31},
		{1, 2024, 29},
		{1, 2023, 28},
		{1, 1900, 28},
		{1, 2000, 29},
		{3, 2024, 30},
		{6, 2024, 31},
		{7, 2024, 31},
		{10, 2024, 30},
		{11, 2024, 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysInMonth(tt.monthID, tt.year), "month %d of %d", tt.monthID, tt.year)
	}
}

func TestDaysInMonthMatchesTimePackage(t *testing.T) {
	t.Parallel()

	for year := 1896; year <= 2104; year++ {
		for m := 0; m < 12; m++ {
			want := time.Date(year, time.Month(m+2), 0, 0, 0, 0, 0, time.UTC).Day()
			require.Equal(t, want, DaysInMonth(m, year), "month %d of %d", m, year)
		}
	}
}

func TestFirstDayOfWeek(t *testing.T) {
	t.Parallel()

	wed := time.Date(2024, time.January, 3, 15, 30, 0, 0, time.UTC)

	var sunday Calendar
	assert.Equal(t, date(2023, time.December, 31), sunday.FirstDayOfWeek(wed))

	monday := Calendar{WeekStart: time.Monday}
	assert.Equal(t, date(2024, time.January, 1), monday.FirstDayOfWeek(wed))

	// A week-start day maps onto itself at midnight.
	assert.Equal(t, date(2023, time.December, 31), sunday.FirstDayOfWeek(time.Date(2023, time.December, 31, 23, 59, 0, 0, time.UTC)))
}

func TestWeekNumber(t *testing.T) {
	t.Parallel()

	var cal Calendar
	tests := []struct {
		name string
		date time.Time
		want int
	}{
		{"first monday of 2024", date(2024, time.January, 1), 1},
		{"mid march 2024", date(2024, time.March, 15), 11},
		{"last days of 2024 belong to week 1 of 2025", date(2024, time.December, 30), 1},
		{"new year 2025 shares that week", date(2025, time.January, 1), 1},
		{"new year 2027 falls in the last week of 2026", date(2027, time.January, 1), 52},
		{"first sunday of 2027 week 1", date(2027, time.January, 3), 1},
		{"early january 2021 stays in week 53 of 2020, never week 0", date(2021, time.January, 2), 53},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.WeekNumber(tt.date))
		})
	}
}

// Weeks straddling new year take their number from the year that owns the
// week, not from the date's own year.
func TestWeekNumberAcrossYearBoundary(t *testing.T) {
	t.Parallel()

	for _, cal := range []Calendar{{}, {WeekStart: time.Monday}} {
		t.Run(cal.WeekStart.String(), func(t *testing.T) {
			assert.Equal(t, 1, cal.WeekNumber(date(2024, time.December, 30)))
			assert.Equal(t, 53, cal.WeekNumber(date(2021, time.January, 2)))
			assert.Equal(t, 53, cal.WeekNumber(date(2020, time.December, 31)))
		})
	}
}

func TestWeekNumberNeverZeroAndStableWithinWeek(t *testing.T) {
	t.Parallel()

	for _, cal := range []Calendar{{}, {WeekStart: time.Monday}} {
		d := date(2019, time.December, 1)
		for i := 0; i < 3000; i++ {
			day := d.AddDate(0, 0, i)
			n := cal.WeekNumber(day)
			require.GreaterOrEqual(t, n, 1, "week number of %s", day)
			require.LessOrEqual(t, n, 53, "week number of %s", day)
			first := cal.FirstDayOfWeek(day)
			require.Equal(t, cal.WeekNumber(first), n, "week of %s", day)
		}
	}
}

func TestWeekByDate(t *testing.T) {
	t.Parallel()

	var cal Calendar
	w := cal.WeekByDate(date(2024, time.March, 15))
	assert.Equal(t, 11, w.ID)
	assert.Equal(t, date(2024, time.March, 10), w.FirstDay)
	assert.Equal(t, time.Sunday, w.FirstDay.Weekday())
}

func TestYearHelpers(t *testing.T) {
	t.Parallel()

	cal := Calendar{Location: time.UTC}
	assert.Equal(t, date(2024, time.January, 1), cal.FirstDayOfYear(2024))
	assert.Equal(t, date(2024, time.December, 31), cal.LastDayOfYear(2024))

	w := cal.FirstWeekOfYear(2024)
	assert.Equal(t, 0, w.ID)
	assert.Equal(t, date(2023, time.December, 31), w.FirstDay)
}

func TestWeekdayFromWeek(t *testing.T) {
	t.Parallel()

	var sunday Calendar
	week := sunday.WeekByDate(date(2024, time.January, 3))
	day := sunday.WeekdayFromWeek(week, WeekdayByID(3))
	assert.Equal(t, date(2024, time.January, 3), day.Date)
	assert.Equal(t, "Wednesday", day.Weekday.Name)
	assert.False(t, day.CurrentPeriod)

	monday := Calendar{WeekStart: time.Monday}
	week = monday.WeekByDate(date(2024, time.January, 3))
	assert.Equal(t, date(2024, time.January, 7), monday.WeekdayFromWeek(week, WeekdayByID(0)).Date)
}

func TestMonthFromDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "February", MonthFromDate(date(2024, time.February, 29)).Name)
	assert.Equal(t, 11, MonthFromDate(date(2024, time.December, 1)).ID)
}

func TestLabels(t *testing.T) {
	t.Parallel()

	assert.Len(t, Months(), 12)
	assert.Len(t, Weekdays(), 7)
	assert.Equal(t, "Jan", MonthByID(12).ShortName)
	assert.Equal(t, "Dec", MonthByID(-1).ShortName)
	assert.Equal(t, "Sunday", WeekdayByID(7).Name)

	m := Months()
	m[0].Name = "changed"
	assert.Equal(t, "January", MonthByID(0).Name)
}

func TestDayDifferences(t *testing.T) {
	t.Parallel()

	a := time.Date(2024, time.March, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, time.March, 2, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DifferenceInDays(a, b))
	assert.False(t, DaysAreEqual(a, b))
	assert.True(t, DaysAreEqual(a, date(2024, time.March, 1)))

	assert.Equal(t, 0, DaysSinceEpoch(date(1970, time.January, 1)))
	assert.Equal(t, -1, DaysSinceEpoch(time.Date(1969, time.December, 31, 18, 0, 0, 0, time.UTC)))
}

func TestDifferenceInDaysAcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	before := time.Date(2024, time.March, 9, 12, 0, 0, 0, loc)
	after := time.Date(2024, time.March, 11, 0, 30, 0, 0, loc)
	assert.Equal(t, 2, DifferenceInDays(before, after))
}

func TestAddMonths(t *testing.T) {
	t.Parallel()

	jan31 := time.Date(2024, time.January, 31, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.February, 29, 9, 30, 0, 0, time.UTC), AddMonths(jan31, 1))
	assert.Equal(t, time.Date(2024, time.March, 31, 9, 30, 0, 0, time.UTC), AddMonths(jan31, 2))
	assert.Equal(t, time.Date(2023, time.November, 30, 9, 30, 0, 0, time.UTC), AddMonths(jan31, -2))
	assert.Equal(t, time.Date(2025, time.February, 28, 9, 30, 0, 0, time.UTC), AddMonths(jan31, 13))

	feb29 := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), AddMonths(feb29, 12))
	assert.Equal(t, time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC), AddMonths(feb29, 48))

	assert.Equal(t, 13, MonthsBetween(jan31, AddMonths(jan31, 13)))
	assert.Equal(t, -2, MonthsBetween(jan31, AddMonths(jan31, -2)))
}
