package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "reccal/internal/log"
	"reccal/internal/model"
	"reccal/internal/recurrence"
)

const untitled = "(untitled)"

// vevent is the subset of a VEVENT that maps onto model.Event.
type vevent struct {
	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRules  []string
	ExDates []time.Time
	// Recurrence is the RECURRENCE-ID of an overridden instance.
	Recurrence *time.Time
}

// Parse converts an ICS payload into events tagged with src.
//
//   - Event ids are "<source id>:<UID>"; overridden instances append their
//     RECURRENCE-ID.
//   - Each RRULE becomes an inclusion rule and each EXDATE an exclusion.
//     An RRULE the rule model cannot express is logged and dropped; the
//     event is kept with its remaining rules, or as a simple event.
//   - An overridden instance is imported as its own simple event, and its
//     original date is excluded from the recurring master.
//   - Floating and all-day times are read in loc.
func Parse(src Source, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	var parsed []vevent
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		parsed = append(parsed, ev)
	}

	events := make([]model.Event, 0, len(parsed))
	masters := map[string]int{}
	for _, ve := range parsed {
		if ve.Recurrence != nil {
			continue
		}
		masters[ve.UID] = len(events)
		events = append(events, toEvent(src, ve))
	}
	for _, ve := range parsed {
		if ve.Recurrence == nil {
			continue
		}
		if i, ok := masters[ve.UID]; ok && events[i].Schedule != nil {
			s := events[i].Schedule
			s.Exclusion = append(s.Exclusion, model.ExclusionRule{Date: *ve.Recurrence})
		}
		ev := toEvent(src, ve)
		ev.ID += ":" + ve.Recurrence.UTC().Format("20060102T150405Z")
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func toEvent(src Source, ve vevent) model.Event {
	base := model.BaseEvent{
		ID:          src.ID + ":" + ve.UID,
		Source:      src.ID,
		Title:       ve.Summary,
		Description: ve.Description,
		Location:    ve.Location,
		AllDay:      ve.AllDay,
		StartDate:   ve.Start,
		EndDate:     ve.End,
		Extra:       map[string]any{"uid": ve.UID, "sequence": ve.Seq},
	}
	if base.Title == "" {
		base.Title = untitled
	}
	if base.EndDate.IsZero() || base.EndDate.Before(base.StartDate) {
		base.EndDate = base.StartDate
		if ve.AllDay {
			base.EndDate = base.StartDate.AddDate(0, 0, 1)
		}
	}
	if ve.Recurrence != nil {
		return model.Simple(base)
	}

	var sched model.Schedule
	for _, raw := range ve.RRules {
		rule, err := recurrence.ParseRRule(raw)
		if err != nil {
			appLog.Warn("ics rrule dropped", "id", src.ID, "uid", ve.UID, "rrule", raw, "err", err)
			continue
		}
		sched.Inclusion = append(sched.Inclusion, rule)
	}
	if len(sched.Inclusion) == 0 {
		return model.Simple(base)
	}
	for _, d := range ve.ExDates {
		sched.Exclusion = append(sched.Exclusion, model.ExclusionRule{Date: d})
	}
	return model.Recurring(base, sched)
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parsePropTime(dtStart, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = isDateValue(dtStart)

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if end, err := parsePropTime(dtEnd, loc); err == nil {
			out.End = end
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyRrule) {
		if p.Value != "" {
			out.RRules = append(out.RRules, p.Value)
		}
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tz := param(p, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, tz, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
		if t, err := parsePropTime(rid, loc); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

func param(p *ical.IANAProperty, key string) string {
	if vs, ok := p.ICalParameters[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// isDateValue reports VALUE=DATE, or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	return strings.EqualFold(param(p, "VALUE"), "DATE") || !strings.Contains(p.Value, "T")
}

func parsePropTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, param(p, "TZID"), loc)
}

// parseICSTime parses DATE and DATE-TIME values. A TZID wins over loc for
// local date-times; an unknown TZID falls back to loc.
func parseICSTime(v, tzid string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
