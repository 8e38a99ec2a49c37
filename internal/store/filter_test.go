package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reccal/internal/model"
)

func titles(events []model.Event) []string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.Title)
	}
	return out
}

func TestFilters(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		model.Simple(base("morning", time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC))),
		model.Simple(base("morning late", time.Date(2024, 3, 1, 9, 59, 0, 0, time.UTC))),
		model.Simple(base("evening", time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))),
		model.Simple(base("next day", time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC))),
		model.Simple(base("last year", time.Date(2023, 3, 1, 9, 0, 0, 0, time.UTC))),
	}

	assert.Equal(t, []string{"morning", "morning late", "evening"},
		titles(DayEvents(events, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))))
	assert.Equal(t, []string{"morning", "morning late"},
		titles(HourEvents(events, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))))
	assert.Equal(t, []string{"morning", "morning late", "evening", "next day"},
		titles(MonthEvents(events, 2, 2024)))
	assert.Empty(t, MonthEvents(events, 3, 2024))
}

func TestSourceEvents(t *testing.T) {
	t.Parallel()

	a := model.Simple(base("a", time.Now()))
	a.Source = "work"
	b := model.Simple(base("b", time.Now()))

	assert.Equal(t, []string{"a"}, titles(SourceEvents([]model.Event{a, b}, "work")))
}
