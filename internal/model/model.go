package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// Frequency is the unit a recurrence rule steps by.
type Frequency string

const (
	FrequencyYearly   Frequency = "YEARLY"
	FrequencyMonthly  Frequency = "MONTHLY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyDaily    Frequency = "DAILY"
	FrequencyHourly   Frequency = "HOURLY"
	FrequencyMinutely Frequency = "MINUTELY"
	FrequencySecondly Frequency = "SECONDLY"
)

// ErrInvalidFrequency is returned for a frequency outside Frequencies.
var ErrInvalidFrequency = errors.New("invalid frequency")

// Frequencies lists every recognized unit, coarsest first.
var Frequencies = []Frequency{
	FrequencyYearly,
	FrequencyMonthly,
	FrequencyWeekly,
	FrequencyDaily,
	FrequencyHourly,
	FrequencyMinutely,
	FrequencySecondly,
}

// Valid reports whether f is one of the recognized units. Matching is exact:
// "weekly" and "BIWEEKLY" are both invalid.
func (f Frequency) Valid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// Check returns ErrInvalidFrequency, wrapped with the offending value, when f
// is not valid.
func (f Frequency) Check() error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
	return nil
}

// InclusionRule is one recurrence pattern of a schedule.
//
// Optional fields use mo.Option so that an explicit zero (rejected for
// Interval) is distinguishable from an absent value (Interval defaults to 1).
type InclusionRule struct {
	Frequency Frequency      `json:"frequency" validate:"required"`
	Interval  mo.Option[int] `json:"interval"`

	// Weekdays holds weekday ids, Sunday=0.
	Weekdays []int                `json:"weekdays,omitempty" validate:"omitempty,dive,min=0,max=6"`
	Limit    mo.Option[int]       `json:"limit"`
	Until    mo.Option[time.Time] `json:"until"`
}

// ExclusionRule removes the occurrence starting on the same calendar day as Date.
type ExclusionRule struct {
	Date time.Time `json:"date" validate:"required"`
}

// Schedule is what makes an event recurring.
type Schedule struct {
	Recurs    bool            `json:"recurs"`
	Inclusion []InclusionRule `json:"inclusion" validate:"dive"`
	Exclusion []ExclusionRule `json:"exclusion,omitempty" validate:"dive"`
}

// BaseEvent holds the fields every event has. ID is assigned by the store.
type BaseEvent struct {
	ID          string    `json:"id"`
	Source      string    `json:"source,omitempty"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`

	// Extra carries caller-defined fields through storage and expansion untouched.
	Extra map[string]any `json:"extra,omitempty"`
}

// Duration is the span every occurrence of the event keeps.
func (b BaseEvent) Duration() time.Duration {
	return b.EndDate.Sub(b.StartDate)
}

// Kind tags the two event variants.
type Kind string

const (
	KindSimple    Kind = "simple"
	KindRecurring Kind = "recurring"
)

// Event is either a simple event or a recurring one. A nil Schedule, or one
// with Recurs unset, makes it simple.
type Event struct {
	BaseEvent
	Schedule *Schedule `json:"schedule,omitempty"`
}

// Simple builds the non-recurring variant.
func Simple(b BaseEvent) Event {
	return Event{BaseEvent: b}
}

// Recurring builds the recurring variant; Recurs is forced on.
func Recurring(b BaseEvent, s Schedule) Event {
	s.Recurs = true
	return Event{BaseEvent: b, Schedule: &s}
}

func (e Event) Kind() Kind {
	if e.Schedule != nil && e.Schedule.Recurs {
		return KindRecurring
	}
	return KindSimple
}

// AsRecurring unpacks the recurring variant. ok is false for simple events.
func (e Event) AsRecurring() (base BaseEvent, schedule Schedule, ok bool) {
	if e.Kind() != KindRecurring {
		return e.BaseEvent, Schedule{}, false
	}
	return e.BaseEvent, *e.Schedule, true
}

// Occurrence is one concrete instance of an event: the event's own fields
// with the instance's start and end, and no schedule.
type Occurrence struct {
	BaseEvent

	// InstanceKey identifies the instance; the start time in RFC3339.
	InstanceKey string `json:"instance_key"`
	// Master marks the event's own stored start/end.
	Master bool `json:"master"`
	// RuleIndex is the inclusion rule that generated the instance, -1 for
	// the master and for simple events.
	RuleIndex int `json:"rule_index"`
}

// NewOccurrence places base at start, keeping its duration.
func NewOccurrence(base BaseEvent, start time.Time, ruleIndex int) Occurrence {
	dur := base.Duration()
	base.StartDate = start
	base.EndDate = start.Add(dur)
	return Occurrence{
		BaseEvent:   base,
		InstanceKey: start.Format(time.RFC3339Nano),
		RuleIndex:   ruleIndex,
	}
}

// MasterOccurrence is the event's own stored span.
func MasterOccurrence(base BaseEvent) Occurrence {
	return Occurrence{
		BaseEvent:   base,
		InstanceKey: base.StartDate.Format(time.RFC3339Nano),
		Master:      true,
		RuleIndex:   -1,
	}
}
