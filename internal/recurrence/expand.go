// Package recurrence expands recurring events into concrete occurrences.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"reccal/internal/calendar"
	appLog "reccal/internal/log"
	"reccal/internal/model"
)

const (
	defaultMaxOccurrencesPerRule = 5000
	defaultMaxIterationsPerRule  = 1_000_000
)

// Options controls expansion. The zero value is usable: weeks start on
// Sunday and the caps take their defaults.
type Options struct {
	// WeekStart positions the cycle of weekday-constrained WEEKLY rules.
	WeekStart time.Weekday

	// MaxOccurrencesPerRule caps how many occurrences one rule may append.
	// If zero, defaultMaxOccurrencesPerRule is used.
	MaxOccurrencesPerRule int

	// MaxIterationsPerRule caps how many candidates one rule may step
	// through, including those before the window start.
	// If zero, defaultMaxIterationsPerRule is used.
	MaxIterationsPerRule int
}

func DefaultOptions() Options {
	return Options{
		WeekStart:             time.Sunday,
		MaxOccurrencesPerRule: defaultMaxOccurrencesPerRule,
		MaxIterationsPerRule:  defaultMaxIterationsPerRule,
	}
}

func (o Options) normalized() Options {
	if o.MaxOccurrencesPerRule <= 0 {
		o.MaxOccurrencesPerRule = defaultMaxOccurrencesPerRule
	}
	if o.MaxIterationsPerRule <= 0 {
		o.MaxIterationsPerRule = defaultMaxIterationsPerRule
	}
	return o
}

// RuleRef names one inclusion rule of one event.
type RuleRef struct {
	EventID string `json:"event_id"`
	Index   int    `json:"rule_index"`
}

// Result is the outcome of an expansion. Malformed rules are reported in
// RuleErrors and contribute nothing; everything else is still expanded.
type Result struct {
	Occurrences []model.Occurrence
	RuleErrors  []RuleError
	// Truncated records rules that hit a cap before their natural end.
	Truncated []RuleRef
}

// Err joins the rule errors, or returns nil when every rule expanded.
func (r Result) Err() error {
	if len(r.RuleErrors) == 0 {
		return nil
	}
	errs := make([]error, len(r.RuleErrors))
	for i, re := range r.RuleErrors {
		errs[i] = re
	}
	return errors.Join(errs...)
}

// Between expands ev within the inclusive window [start, end].
//
// The result always begins with the master occurrence (the event's stored
// start and end), whatever the window. Rule-generated occurrences follow in
// rule order, then generation order, and are not de-duplicated across
// rules. A zero start or end leaves that side of the window open. Simple
// events yield only their master.
//
// Each exclusion then removes the first non-master occurrence starting on
// the same calendar day as the exclusion date.
func Between(ev model.Event, start, end time.Time, opts Options) Result {
	opts = opts.normalized()

	base, schedule, ok := ev.AsRecurring()
	result := Result{Occurrences: []model.Occurrence{model.MasterOccurrence(base)}}
	if !ok {
		return result
	}

	for i, rule := range schedule.Inclusion {
		occ, truncated, err := expandRule(base, i, rule, start, end, opts)
		if err != nil {
			re := RuleError{EventID: base.ID, Index: i, Frequency: rule.Frequency, Err: err}
			result.RuleErrors = append(result.RuleErrors, re)
			appLog.Warn("recurrence: rule skipped",
				"event_id", base.ID,
				"rule_index", i,
				"frequency", rule.Frequency,
				"err", err,
			)
			continue
		}
		if truncated {
			result.Truncated = append(result.Truncated, RuleRef{EventID: base.ID, Index: i})
			appLog.Error("recurrence: truncated occurrences for rule due to cap",
				errors.New("max occurrences reached"),
				"event_id", base.ID,
				"rule_index", i,
				"max_occurrences", opts.MaxOccurrencesPerRule,
				"max_iterations", opts.MaxIterationsPerRule,
			)
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	result.Occurrences = applyExclusions(result.Occurrences, schedule.Exclusion)
	return result
}

// expandRule generates the occurrences of one rule, master excluded. The
// master counts toward the rule's limit, as do candidates stepped over
// before the window start.
func expandRule(base model.BaseEvent, idx int, rule model.InclusionRule, start, end time.Time, opts Options) ([]model.Occurrence, bool, error) {
	st, err := NewStepper(base.StartDate, rule, opts.WeekStart)
	if err != nil {
		return nil, false, err
	}
	limit, hasLimit := rule.Limit.Get()
	if hasLimit && limit <= 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	until, hasUntil := rule.Until.Get()
	if end.IsZero() && !hasLimit && !hasUntil {
		return nil, false, ErrUnboundedRule
	}

	count := 1
	last := base.StartDate

	// Sub-daily rules jump straight to just before the window.
	if d, ok := st.fixedStep(); ok && !start.IsZero() && last.Before(start) {
		if n := int(start.Sub(last)/d) - 1; n > 0 {
			if hasLimit && count+n >= limit {
				return nil, false, nil
			}
			last = last.Add(time.Duration(n) * d)
			count += n
		}
	}

	var out []model.Occurrence
	for iter := 0; !hasLimit || count < limit; iter++ {
		if iter >= opts.MaxIterationsPerRule {
			return out, true, nil
		}
		next := st.Next(last)
		if !end.IsZero() && next.After(end) {
			break
		}
		if hasUntil && next.After(until) {
			break
		}
		count++
		last = next
		if !start.IsZero() && next.Before(start) {
			continue
		}
		if len(out) >= opts.MaxOccurrencesPerRule {
			return out, true, nil
		}
		out = append(out, model.NewOccurrence(base, next, idx))
	}
	return out, false, nil
}

func applyExclusions(occ []model.Occurrence, exclusions []model.ExclusionRule) []model.Occurrence {
	for _, ex := range exclusions {
		i := slices.IndexFunc(occ, func(o model.Occurrence) bool {
			return !o.Master && calendar.DaysAreEqual(o.StartDate, ex.Date.In(o.StartDate.Location()))
		})
		if i >= 0 {
			occ = slices.Delete(occ, i, i+1)
		}
	}
	return occ
}

// ExpandAll expands a mixed list of simple and recurring events and keeps
// the occurrences that overlap [start, end], masters included, sorted by
// start. Rule errors and truncations of every event are collected.
func ExpandAll(events []model.Event, start, end time.Time, opts Options) Result {
	var all Result
	for _, ev := range events {
		r := Between(ev, start, end, opts)
		for _, o := range r.Occurrences {
			if overlaps(o.StartDate, o.EndDate, start, end) {
				all.Occurrences = append(all.Occurrences, o)
			}
		}
		all.RuleErrors = append(all.RuleErrors, r.RuleErrors...)
		all.Truncated = append(all.Truncated, r.Truncated...)
	}
	slices.SortStableFunc(all.Occurrences, func(a, b model.Occurrence) int {
		return a.StartDate.Compare(b.StartDate)
	})
	return all
}

// overlaps treats a zero window bound as open.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !bStart.IsZero() && aEnd.Before(bStart) {
		return false
	}
	if !bEnd.IsZero() && bEnd.Before(aStart) {
		return false
	}
	return true
}
