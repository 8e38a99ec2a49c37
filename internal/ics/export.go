package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "reccal/internal/log"
	"reccal/internal/model"
	"reccal/internal/recurrence"
)

const (
	productID   = "-//reccal//reccal 1//EN"
	utcLayout   = "20060102T150405Z"
	dateLayout  = "20060102"
	exportUIDAt = "@reccal"
)

// Export renders events as a VCALENDAR. Each inclusion rule becomes an
// RRULE and each exclusion an EXDATE at the event's time of day. Rules that
// cannot be expressed are logged and left out; the event is still exported.
func Export(events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		ve := cal.AddEvent(exportUID(ev))
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.StartDate)
			ve.SetAllDayEndAt(ev.EndDate)
		} else {
			ve.SetStartAt(ev.StartDate)
			ve.SetEndAt(ev.EndDate)
		}

		_, sched, ok := ev.AsRecurring()
		if !ok {
			continue
		}
		for i, rule := range sched.Inclusion {
			s, err := recurrence.FormatRRule(rule)
			if err != nil {
				appLog.Warn("ics export rule skipped", "event_id", ev.ID, "rule_index", i, "err", err)
				continue
			}
			ve.AddProperty(ical.ComponentPropertyRrule, s)
		}
		for _, ex := range sched.Exclusion {
			if ev.AllDay {
				ve.AddProperty(ical.ComponentPropertyExdate, ex.Date.Format(dateLayout),
					&ical.KeyValues{Key: string(ical.ParameterValue), Value: []string{"DATE"}})
				continue
			}
			ve.AddProperty(ical.ComponentPropertyExdate, exdateAt(ev.StartDate, ex.Date).UTC().Format(utcLayout))
		}
	}
	return cal.Serialize()
}

// exportUID keeps the upstream UID of imported events so a round trip
// through another client does not duplicate them.
func exportUID(ev model.Event) string {
	if uid, ok := ev.Extra["uid"].(string); ok && uid != "" {
		return uid
	}
	return ev.ID + exportUIDAt
}

// exdateAt moves start's clock onto the calendar day of ex, in start's zone.
func exdateAt(start, ex time.Time) time.Time {
	ex = ex.In(start.Location())
	return time.Date(ex.Year(), ex.Month(), ex.Day(),
		start.Hour(), start.Minute(), start.Second(), 0, start.Location())
}
