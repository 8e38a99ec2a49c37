// Package store keeps the flat list of events that the expander reads from.
//
// Mutation is replace-by-id: an update swaps the whole event. Callers never
// see the store's own copies; every event going in or out is cloned.
package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appLog "reccal/internal/log"
	"reccal/internal/model"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidEvent = errors.New("invalid event")
)

// ChangeKind says what happened to an event.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is delivered to OnChange observers after a mutation commits.
type Change struct {
	Kind  ChangeKind  `json:"kind"`
	Event model.Event `json:"event"`
}

// Store is the event store consumed by the HTTP API and the ICS sync.
type Store interface {
	// Add assigns a fresh id, ignoring any id on ev.
	Add(ev model.Event) (model.Event, error)
	// Update replaces the event with ev's id and moves it to the end.
	Update(ev model.Event) (model.Event, error)
	// Upsert stores ev under its own id, replacing in place when present.
	Upsert(ev model.Event) (model.Event, error)
	Delete(id string) error
	Get(id string) (model.Event, error)
	// List returns every event in insertion order.
	List() []model.Event
	OnChange(fn func(Change))
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	events    []model.Event
	observers []func(Change)
	committed uint64 // changes committed so far, guarded by mu

	// Observers are called outside mu, one change at a time in commit
	// order. delivered counts the changes already handed to observers.
	notifyMu  sync.Mutex
	turn      *sync.Cond
	delivered uint64

	validate *validator.Validate
	newID    func() string

	// persist, when set, is called under the write lock with the state about
	// to be committed. An error aborts the mutation.
	persist func([]model.Event) error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newID:    newEventID,
	}
	m.turn = sync.NewCond(&m.notifyMu)
	return m
}

// newEventID returns a time-ordered UUIDv7, falling back to v4 if the clock
// source fails.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Validate checks the structural constraints of ev: a title, a start, an end
// not before the start, and well-formed rule fields. Rule semantics such as
// an unknown frequency are left to the expander, which reports them per rule.
func (m *Memory) Validate(ev model.Event) error {
	if err := m.validate.Struct(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

func (m *Memory) Add(ev model.Event) (model.Event, error) {
	ev = clone(ev)
	ev.ID = m.newID()
	if err := m.Validate(ev); err != nil {
		return model.Event{}, err
	}

	m.mu.Lock()
	next := append(slices.Clip(m.events), ev)
	if err := m.commit(next); err != nil {
		m.mu.Unlock()
		return model.Event{}, err
	}
	appLog.Debug("store: event added", "id", ev.ID, "kind", ev.Kind())
	m.publish(Change{Kind: ChangeAdded, Event: ev})
	return clone(ev), nil
}

func (m *Memory) Update(ev model.Event) (model.Event, error) {
	ev = clone(ev)
	if err := m.Validate(ev); err != nil {
		return model.Event{}, err
	}

	m.mu.Lock()
	i := m.indexOf(ev.ID)
	if i < 0 {
		m.mu.Unlock()
		return model.Event{}, fmt.Errorf("%w: %q", ErrNotFound, ev.ID)
	}
	next := slices.Delete(slices.Clone(m.events), i, i+1)
	next = append(next, ev)
	if err := m.commit(next); err != nil {
		m.mu.Unlock()
		return model.Event{}, err
	}
	appLog.Debug("store: event updated", "id", ev.ID)
	m.publish(Change{Kind: ChangeUpdated, Event: ev})
	return clone(ev), nil
}

func (m *Memory) Upsert(ev model.Event) (model.Event, error) {
	ev = clone(ev)
	if ev.ID == "" {
		return model.Event{}, fmt.Errorf("%w: upsert needs an id", ErrInvalidEvent)
	}
	if err := m.Validate(ev); err != nil {
		return model.Event{}, err
	}

	m.mu.Lock()
	kind := ChangeUpdated
	next := slices.Clone(m.events)
	if i := m.indexOf(ev.ID); i >= 0 {
		next[i] = ev
	} else {
		kind = ChangeAdded
		next = append(next, ev)
	}
	if err := m.commit(next); err != nil {
		m.mu.Unlock()
		return model.Event{}, err
	}
	m.publish(Change{Kind: kind, Event: ev})
	return clone(ev), nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	removed := m.events[i]
	next := slices.Delete(slices.Clone(m.events), i, i+1)
	if err := m.commit(next); err != nil {
		m.mu.Unlock()
		return err
	}
	appLog.Debug("store: event deleted", "id", id)
	m.publish(Change{Kind: ChangeDeleted, Event: removed})
	return nil
}

func (m *Memory) Get(id string) (model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return model.Event{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return clone(m.events[i]), nil
}

func (m *Memory) List() []model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Event, len(m.events))
	for i, ev := range m.events {
		out[i] = clone(ev)
	}
	return out
}

// OnChange registers fn to run after every committed mutation. Observers run
// synchronously on the mutating goroutine, outside the store's lock, and see
// changes in the order they were committed even under concurrent writers.
// An observer may read the store but must not mutate it.
func (m *Memory) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// publish must be called with mu write-locked; it unlocks mu. The change
// takes the next delivery slot while still under mu, so slots follow commit
// order, then waits for the earlier slots to be delivered.
func (m *Memory) publish(c Change) {
	slot := m.committed
	m.committed++
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.notifyMu.Lock()
	for m.delivered != slot {
		m.turn.Wait()
	}
	m.notifyMu.Unlock()

	defer func() {
		m.notifyMu.Lock()
		m.delivered++
		m.turn.Broadcast()
		m.notifyMu.Unlock()
	}()
	for _, fn := range observers {
		fn(Change{Kind: c.Kind, Event: clone(c.Event)})
	}
}

// commit must be called with mu held.
func (m *Memory) commit(next []model.Event) error {
	if m.persist != nil {
		if err := m.persist(next); err != nil {
			return fmt.Errorf("persist events: %w", err)
		}
	}
	m.events = next
	return nil
}

// indexOf must be called with mu held.
func (m *Memory) indexOf(id string) int {
	return slices.IndexFunc(m.events, func(ev model.Event) bool { return ev.ID == id })
}

// clone copies the parts of ev that are shared by reference. Extra values
// themselves are not deep-copied.
func clone(ev model.Event) model.Event {
	ev.Extra = maps.Clone(ev.Extra)
	if ev.Schedule != nil {
		s := *ev.Schedule
		s.Inclusion = slices.Clone(s.Inclusion)
		for i := range s.Inclusion {
			s.Inclusion[i].Weekdays = slices.Clone(s.Inclusion[i].Weekdays)
		}
		s.Exclusion = slices.Clone(s.Exclusion)
		ev.Schedule = &s
	}
	return ev
}
