package calendar

// TimeLabel names a month (ID 0-11) or a weekday (ID 0-6, Sunday=0).
type TimeLabel struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	ID        int    `json:"id"`
}

var months = [12]TimeLabel{
	{Name: "January", ShortName: "Jan", ID: 0},
	{Name: "February", ShortName: "Feb", ID: 1},
	{Name: "March", ShortName: "Mar", ID: 2},
	{Name: "April", ShortName: "Apr", ID: 3},
	{Name: "May", ShortName: "May", ID: 4},
	{Name: "June", ShortName: "Jun", ID: 5},
	{Name: "July", ShortName: "Jul", ID: 6},
	{Name: "August", ShortName: "Aug", ID: 7},
	{Name: "September", ShortName: "Sep", ID: 8},
	{Name: "October", ShortName: "Oct", ID: 9},
	{Name: "November", ShortName: "Nov", ID: 10},
	{Name: "December", ShortName: "Dec", ID: 11},
}

var weekdays = [7]TimeLabel{
	{Name: "Sunday", ShortName: "Sun", ID: 0},
	{Name: "Monday", ShortName: "Mon", ID: 1},
	{Name: "Tuesday", ShortName: "Tue", ID: 2},
	{Name: "Wednesday", ShortName: "Wed", ID: 3},
	{Name: "Thursday", ShortName: "Thu", ID: 4},
	{Name: "Friday", ShortName: "Fri", ID: 5},
	{Name: "Saturday", ShortName: "Sat", ID: 6},
}

// Months returns a copy of the twelve month labels, January first.
func Months() []TimeLabel {
	out := make([]TimeLabel, len(months))
	copy(out, months[:])
	return out
}

// Weekdays returns a copy of the seven weekday labels, Sunday first.
func Weekdays() []TimeLabel {
	out := make([]TimeLabel, len(weekdays))
	copy(out, weekdays[:])
	return out
}

// MonthByID wraps out-of-range ids, so MonthByID(12) is January.
func MonthByID(id int) TimeLabel {
	return months[mod(id, 12)]
}

// WeekdayByID wraps out-of-range ids, so WeekdayByID(7) is Sunday.
func WeekdayByID(id int) TimeLabel {
	return weekdays[mod(id, 7)]
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
