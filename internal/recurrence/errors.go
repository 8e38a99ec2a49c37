package recurrence

import (
	"errors"
	"fmt"

	"reccal/internal/model"
)

// MaxInterval bounds a rule's interval so that a step of interval units
// never overflows a time.Duration or a month count.
const MaxInterval = 1_000_000

var (
	// ErrInvalidFrequency: the rule's frequency is not one of the recognized units.
	ErrInvalidFrequency = model.ErrInvalidFrequency
	// ErrInvalidInterval: an explicit interval of zero or less, or above MaxInterval.
	ErrInvalidInterval = errors.New("interval must be between 1 and 1000000")
	// ErrInvalidLimit: an explicit limit of zero or less.
	ErrInvalidLimit = errors.New("limit must be positive")
	// ErrUnboundedRule: the rule has no limit or until, and the query no end.
	ErrUnboundedRule = errors.New("rule is unbounded: no limit, until or window end")
	// ErrUnsupportedRRule: the RRULE uses a part InclusionRule cannot express.
	ErrUnsupportedRRule = errors.New("unsupported rrule")
)

// RuleError reports one inclusion rule that contributed no occurrences.
// The master event and the other rules of the same event are unaffected.
type RuleError struct {
	EventID   string          `json:"event_id"`
	Index     int             `json:"rule_index"`
	Frequency model.Frequency `json:"frequency"`
	Err       error           `json:"-"`
}

func (e RuleError) Error() string {
	return fmt.Sprintf("event %q rule %d (%s): %v", e.EventID, e.Index, e.Frequency, e.Err)
}

func (e RuleError) Unwrap() error { return e.Err }
