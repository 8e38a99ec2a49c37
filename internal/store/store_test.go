package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reccal/internal/model"
)

func base(title string, start time.Time) model.BaseEvent {
	return model.BaseEvent{Title: title, StartDate: start, EndDate: start.Add(time.Hour)}
}

func weekly(title string, start time.Time) model.Event {
	return model.Recurring(base(title, start), model.Schedule{
		Inclusion: []model.InclusionRule{{Frequency: model.FrequencyWeekly, Weekdays: []int{1, 3}, Limit: mo.Some(4)}},
		Exclusion: []model.ExclusionRule{{Date: start.AddDate(0, 0, 7)}},
	})
}

func TestAddAssignsIDs(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	in := model.Simple(base("a", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
	in.ID = "caller-chosen"

	a, err := m.Add(in)
	require.NoError(t, err)
	b, err := m.Add(in)
	require.NoError(t, err)

	assert.NotEqual(t, "caller-chosen", a.ID)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, m.List(), 2)
}

func TestAddValidates(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   model.Event
	}{
		{
			name: "missing title",
			ev:   model.Simple(model.BaseEvent{StartDate: start, EndDate: start}),
		},
		{
			name: "missing start",
			ev:   model.Simple(model.BaseEvent{Title: "x", EndDate: start}),
		},
		{
			name: "end before start",
			ev:   model.Simple(model.BaseEvent{Title: "x", StartDate: start, EndDate: start.Add(-time.Minute)}),
		},
		{
			name: "weekday out of range",
			ev: model.Recurring(base("x", start), model.Schedule{
				Inclusion: []model.InclusionRule{{Frequency: model.FrequencyWeekly, Weekdays: []int{7}}},
			}),
		},
		{
			name: "exclusion without date",
			ev: model.Recurring(base("x", start), model.Schedule{
				Inclusion: []model.InclusionRule{{Frequency: model.FrequencyDaily}},
				Exclusion: []model.ExclusionRule{{}},
			}),
		},
	}
	for _, tt := range tests {
		_, err := m.Add(tt.ev)
		assert.ErrorIs(t, err, ErrInvalidEvent, tt.name)
	}
	assert.Empty(t, m.List())

	// Unknown frequencies are stored; the expander reports them.
	_, err := m.Add(model.Recurring(base("x", start), model.Schedule{
		Inclusion: []model.InclusionRule{{Frequency: "BIWEEKLY"}},
	}))
	assert.NoError(t, err)
}

func TestUpdateReplacesAndMovesToEnd(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	a, _ := m.Add(model.Simple(base("a", start)))
	b, _ := m.Add(model.Simple(base("b", start)))

	a.Title = "a2"
	_, err := m.Update(a)
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, "a2", list[1].Title)

	missing := model.Simple(base("ghost", start))
	missing.ID = "nope"
	_, err = m.Update(missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertKeepsPosition(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	ev := model.Simple(base("a", start))
	ev.ID = "feed:1"
	_, err := m.Upsert(ev)
	require.NoError(t, err)
	_, err = m.Add(model.Simple(base("b", start)))
	require.NoError(t, err)

	ev.Title = "a2"
	_, err = m.Upsert(ev)
	require.NoError(t, err)
	assert.Equal(t, "a2", m.List()[0].Title)

	ev.ID = ""
	_, err = m.Upsert(ev)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDeleteAndGet(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	a, _ := m.Add(model.Simple(base("a", time.Now())))

	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Title)

	require.NoError(t, m.Delete(a.ID))
	_, err = m.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(a.ID), ErrNotFound)
}

func TestReturnedEventsAreCopies(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	in := weekly("w", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	in.Extra = map[string]any{"color": "red"}
	added, err := m.Add(in)
	require.NoError(t, err)

	in.Schedule.Inclusion[0].Weekdays[0] = 5
	added.Schedule.Exclusion = nil
	added.Extra["color"] = "blue"

	got, err := m.Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got.Schedule.Inclusion[0].Weekdays)
	assert.Len(t, got.Schedule.Exclusion, 1)
	assert.Equal(t, "red", got.Extra["color"])
}

func TestOnChange(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })

	a, _ := m.Add(model.Simple(base("a", time.Now())))
	a.Title = "a2"
	_, _ = m.Update(a)
	_ = m.Delete(a.ID)
	_ = m.Delete(a.ID)

	require.Len(t, changes, 3)
	assert.Equal(t, ChangeAdded, changes[0].Kind)
	assert.Equal(t, ChangeUpdated, changes[1].Kind)
	assert.Equal(t, ChangeDeleted, changes[2].Kind)
	assert.Equal(t, "a2", changes[2].Event.Title)
}

func TestOnChangeFollowsCommitOrder(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	var seen []string
	m.OnChange(func(c Change) {
		// Give later writers a chance to commit while this change is in flight.
		runtime.Gosched()
		seen = append(seen, c.Event.ID)
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Add(model.Simple(base(fmt.Sprintf("ev-%d", i), time.Now())))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var committed []string
	for _, ev := range m.List() {
		committed = append(committed, ev.ID)
	}
	require.Len(t, committed, 50)
	assert.Equal(t, committed, seen)
}

func TestOnChangeObserverMayReadStore(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	var sizes []int
	m.OnChange(func(Change) { sizes = append(sizes, len(m.List())) })

	a, err := m.Add(model.Simple(base("a", time.Now())))
	require.NoError(t, err)
	_, err = m.Add(model.Simple(base("b", time.Now())))
	require.NoError(t, err)
	require.NoError(t, m.Delete(a.ID))

	assert.Equal(t, []int{1, 2, 1}, sizes)
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.json")
	f, err := OpenFile(path)
	require.NoError(t, err)
	assert.Empty(t, f.List())

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	w, err := f.Add(weekly("w", start))
	require.NoError(t, err)
	s, err := f.Add(model.Simple(base("s", start)))
	require.NoError(t, err)
	require.NoError(t, f.Delete(s.ID))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	list := reopened.List()
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, model.KindRecurring, got.Kind())
	assert.True(t, start.Equal(got.StartDate))
	rule := got.Schedule.Inclusion[0]
	assert.Equal(t, model.FrequencyWeekly, rule.Frequency)
	assert.Equal(t, mo.Some(4), rule.Limit)
	assert.True(t, rule.Interval.IsAbsent())
	assert.True(t, rule.Until.IsAbsent())
	assert.True(t, start.AddDate(0, 0, 7).Equal(got.Schedule.Exclusion[0].Date))
}

func TestFileFailedWriteLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "events.json"))
	require.NoError(t, err)

	f.persist = func([]model.Event) error { return errors.New("disk full") }
	_, err = f.Add(model.Simple(base("a", time.Now())))
	require.Error(t, err)
	assert.Empty(t, f.List())
}

func TestOpenFileRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := OpenFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"events":[]}`), 0o600))
	_, err = OpenFile(path)
	assert.Error(t, err)
}
