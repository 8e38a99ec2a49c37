package recurrence

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"reccal/internal/model"
)

var toRRuleFreq = map[model.Frequency]rrule.Frequency{
	model.FrequencyYearly:   rrule.YEARLY,
	model.FrequencyMonthly:  rrule.MONTHLY,
	model.FrequencyWeekly:   rrule.WEEKLY,
	model.FrequencyDaily:    rrule.DAILY,
	model.FrequencyHourly:   rrule.HOURLY,
	model.FrequencyMinutely: rrule.MINUTELY,
	model.FrequencySecondly: rrule.SECONDLY,
}

// rruleWeekdays is indexed by weekday id, Sunday=0.
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ToROption converts rule into rrule-go options. Limit maps to COUNT, which
// likewise counts the first instance. Weeks start on Sunday so weekly
// BYDAY cycles line up with the default expansion.
func ToROption(rule model.InclusionRule) (rrule.ROption, error) {
	freq, ok := toRRuleFreq[rule.Frequency]
	if !ok {
		return rrule.ROption{}, rule.Frequency.Check()
	}
	opt := rrule.ROption{Freq: freq, Wkst: rrule.SU}
	if iv, ok := rule.Interval.Get(); ok {
		if iv <= 0 || iv > MaxInterval {
			return rrule.ROption{}, fmt.Errorf("%w: %d", ErrInvalidInterval, iv)
		}
		opt.Interval = iv
	}
	if n, ok := rule.Limit.Get(); ok {
		if n <= 0 {
			return rrule.ROption{}, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
		}
		opt.Count = n
	}
	if u, ok := rule.Until.Get(); ok {
		opt.Until = u
	}
	for _, w := range normalizeWeekdays(rule.Weekdays) {
		opt.Byweekday = append(opt.Byweekday, rruleWeekdays[w])
	}
	return opt, nil
}

// FormatRRule renders rule as an RRULE value, without the "RRULE:" prefix.
func FormatRRule(rule model.InclusionRule) (string, error) {
	opt, err := ToROption(rule)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// ParseRRule reads an RRULE value, with or without the "RRULE:" prefix.
// Parts an InclusionRule cannot express (BYMONTHDAY, BYSETPOS, ordinal
// weekdays such as 2MO, ...) yield ErrUnsupportedRRule.
func ParseRRule(s string) (model.InclusionRule, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return model.InclusionRule{}, fmt.Errorf("parse rrule %q: %w", s, err)
	}

	unsupported := []struct {
		part string
		n    int
	}{
		{"BYSETPOS", len(opt.Bysetpos)},
		{"BYMONTH", len(opt.Bymonth)},
		{"BYMONTHDAY", len(opt.Bymonthday)},
		{"BYYEARDAY", len(opt.Byyearday)},
		{"BYWEEKNO", len(opt.Byweekno)},
		{"BYHOUR", len(opt.Byhour)},
		{"BYMINUTE", len(opt.Byminute)},
		{"BYSECOND", len(opt.Bysecond)},
		{"BYEASTER", len(opt.Byeaster)},
	}
	for _, u := range unsupported {
		if u.n > 0 {
			return model.InclusionRule{}, fmt.Errorf("%w: %s in %q", ErrUnsupportedRRule, u.part, s)
		}
	}

	var rule model.InclusionRule
	for f, rf := range toRRuleFreq {
		if rf == opt.Freq {
			rule.Frequency = f
			break
		}
	}
	if rule.Frequency == "" {
		return model.InclusionRule{}, fmt.Errorf("%w: frequency %v in %q", ErrUnsupportedRRule, opt.Freq, s)
	}
	if opt.Interval > 0 {
		rule.Interval = mo.Some(opt.Interval)
	}
	if opt.Count > 0 {
		rule.Limit = mo.Some(opt.Count)
	}
	if !opt.Until.IsZero() {
		rule.Until = mo.Some(opt.Until)
	}
	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			return model.InclusionRule{}, fmt.Errorf("%w: ordinal weekday in %q", ErrUnsupportedRRule, s)
		}
		// rrule-go numbers Monday 0 through Sunday 6.
		rule.Weekdays = append(rule.Weekdays, (wd.Day()+1)%7)
	}
	rule.Weekdays = normalizeWeekdays(rule.Weekdays)
	return rule, nil
}
