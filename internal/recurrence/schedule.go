package recurrence

import (
	"time"

	"reccal/internal/model"
)

// Query is the window-query handle of one event. It holds no state beyond
// its inputs; every Between call recomputes from the rules.
type Query struct {
	event model.Event
	opts  Options
}

// ForEvent binds ev and opts for repeated window queries, typically one per
// visible week or month.
func ForEvent(ev model.Event, opts Options) Query {
	return Query{event: ev, opts: opts}
}

func (q Query) Between(start, end time.Time) Result {
	return Between(q.event, start, end, q.opts)
}
