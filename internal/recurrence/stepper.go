package recurrence

import (
	"fmt"
	"slices"
	"time"

	"reccal/internal/calendar"
	"reccal/internal/model"
)

// Stepper computes successive candidate dates for one inclusion rule.
//
// Month and year steps are measured from the anchor (the event's own start)
// rather than from the previous candidate, so a rule anchored on the 31st
// lands on the 31st again after passing through shorter months:
// Jan 31, Feb 29, Mar 31, Apr 30.
type Stepper struct {
	anchor    time.Time
	freq      model.Frequency
	interval  int
	weekdays  []int
	weekStart time.Weekday
}

// NewStepper validates rule and binds it to anchor. Weekday constraints only
// apply to WEEKLY and MONTHLY rules; weekStart positions the weekly cycle.
func NewStepper(anchor time.Time, rule model.InclusionRule, weekStart time.Weekday) (*Stepper, error) {
	if err := rule.Frequency.Check(); err != nil {
		return nil, err
	}
	interval := rule.Interval.OrElse(1)
	if interval <= 0 || interval > MaxInterval {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, interval)
	}
	return &Stepper{
		anchor:    anchor,
		freq:      rule.Frequency,
		interval:  interval,
		weekdays:  normalizeWeekdays(rule.Weekdays),
		weekStart: weekStart,
	}, nil
}

// Next returns the first candidate strictly after last.
func (s *Stepper) Next(last time.Time) time.Time {
	switch s.freq {
	case model.FrequencyYearly:
		return calendar.AddMonths(s.anchor, calendar.MonthsBetween(s.anchor, last)+12*s.interval)
	case model.FrequencyMonthly:
		if len(s.weekdays) > 0 {
			return s.nextMonthlyWeekday(last)
		}
		return calendar.AddMonths(s.anchor, calendar.MonthsBetween(s.anchor, last)+s.interval)
	case model.FrequencyWeekly:
		if len(s.weekdays) > 0 {
			return s.nextWeeklyWeekday(last)
		}
		return last.AddDate(0, 0, 7*s.interval)
	case model.FrequencyDaily:
		return last.AddDate(0, 0, s.interval)
	default:
		d, _ := s.fixedStep()
		return last.Add(d)
	}
}

// fixedStep is the constant step of the sub-daily units.
func (s *Stepper) fixedStep() (time.Duration, bool) {
	var unit time.Duration
	switch s.freq {
	case model.FrequencyHourly:
		unit = time.Hour
	case model.FrequencyMinutely:
		unit = time.Minute
	case model.FrequencySecondly:
		unit = time.Second
	default:
		return 0, false
	}
	return unit * time.Duration(s.interval), true
}

// nextWeeklyWeekday walks the weekday set in week order. After the last
// weekday of a week it jumps interval weeks ahead to the set's first weekday.
func (s *Stepper) nextWeeklyWeekday(last time.Time) time.Time {
	set := s.withWeekday(last.Weekday())
	positions := make([]int, 0, len(set))
	for _, wd := range set {
		positions = append(positions, s.position(wd))
	}
	slices.Sort(positions)

	lastPos := s.position(int(last.Weekday()))
	for _, p := range positions {
		if p > lastPos {
			return shiftDays(last, p-lastPos)
		}
	}
	return shiftDays(last, 7*s.interval-lastPos+positions[0])
}

// nextMonthlyWeekday returns the next day of last's month that falls on a
// weekday in the set, or else the first such day interval months later.
func (s *Stepper) nextMonthlyWeekday(last time.Time) time.Time {
	set := s.withWeekday(last.Weekday())
	days := calendar.DaysInMonth(int(last.Month())-1, last.Year())
	for d := last.Day() + 1; d <= days; d++ {
		if c := withDay(last, d); slices.Contains(set, int(c.Weekday())) {
			return c
		}
	}

	first := calendar.AddMonths(withDay(last, 1), s.interval)
	for i := 0; i < 7; i++ {
		if c := shiftDays(first, i); slices.Contains(set, int(c.Weekday())) {
			return c
		}
	}
	return first
}

// withWeekday adds the previous candidate's weekday to the rule's set, so a
// start date outside the set still anchors the cycle.
func (s *Stepper) withWeekday(wd time.Weekday) []int {
	if slices.Contains(s.weekdays, int(wd)) {
		return s.weekdays
	}
	set := append(slices.Clone(s.weekdays), int(wd))
	slices.Sort(set)
	return set
}

func (s *Stepper) position(wd int) int {
	return ((wd-int(s.weekStart))%7 + 7) % 7
}

// Next is the stateless form of Stepper.Next, anchored on last itself and
// with weeks starting on Sunday.
func Next(last time.Time, rule model.InclusionRule) (time.Time, error) {
	s, err := NewStepper(last, rule, time.Sunday)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(last), nil
}

// normalizeWeekdays folds ids into 0-6 (negative ids by magnitude), then
// dedupes and sorts them.
func normalizeWeekdays(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, 0, len(in))
	for _, w := range in {
		if w < 0 {
			w = -w
		}
		w %= 7
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return out
}

// shiftDays moves t by n calendar days, keeping the wall-clock time.
func shiftDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

func withDay(t time.Time, day int) time.Time {
	y, m, _ := t.Date()
	h, mi, sec := t.Clock()
	return time.Date(y, m, day, h, mi, sec, t.Nanosecond(), t.Location())
}
