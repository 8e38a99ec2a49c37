package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	appLog "reccal/internal/log"
	"reccal/internal/model"
	"reccal/internal/store"
)

// Report summarizes one source's sync.
type Report struct {
	Source    string `json:"source"`
	FromCache bool   `json:"from_cache"`
	Imported  int    `json:"imported"`
	Unchanged int    `json:"unchanged"`
	Removed   int    `json:"removed"`
	Rejected  int    `json:"rejected"`
	Err       string `json:"error,omitempty"`
}

// Syncer mirrors subscribed feeds into a store. Events of a source are
// upserted under stable ids, and events the feed no longer carries are
// deleted. Events from other sources and user-created events are untouched.
type Syncer struct {
	fetcher *Fetcher
	store   store.Store
	sources []Source
	loc     *time.Location

	mu sync.Mutex // serializes runs
}

func NewSyncer(f *Fetcher, st store.Store, sources []Source, loc *time.Location) *Syncer {
	return &Syncer{fetcher: f, store: st, sources: sources, loc: loc}
}

// SyncAll syncs every source. A failing source does not stop the others;
// their errors are joined.
func (s *Syncer) SyncAll(ctx context.Context) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := make([]Report, 0, len(s.sources))
	var errs []error
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := s.syncOne(ctx, src)
		if err != nil {
			rep.Err = err.Error()
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

func (s *Syncer) syncOne(ctx context.Context, src Source) (Report, error) {
	rep := Report{Source: src.ID}

	res, err := s.fetcher.FetchOne(ctx, src)
	if err != nil {
		appLog.Error("ics sync fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
		return rep, err
	}
	rep.FromCache = res.FromCache

	events, err := Parse(src, res.Body, s.loc)
	if err != nil {
		return rep, err
	}

	current := map[string]model.Event{}
	for _, ev := range store.SourceEvents(s.store.List(), src.ID) {
		current[ev.ID] = ev
	}

	keep := make(map[string]bool, len(events))
	for _, ev := range events {
		keep[ev.ID] = true
		if old, ok := current[ev.ID]; ok && sameEvent(old, ev) {
			rep.Unchanged++
			continue
		}
		if _, err := s.store.Upsert(ev); err != nil {
			rep.Rejected++
			appLog.Warn("ics sync event rejected", "id", src.ID, "event_id", ev.ID, "err", err)
			continue
		}
		rep.Imported++
	}

	for id := range current {
		if keep[id] {
			continue
		}
		if err := s.store.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return rep, err
		}
		rep.Removed++
	}

	appLog.Info("ics sync completed", "id", src.ID, "from_cache", rep.FromCache,
		"imported", rep.Imported, "unchanged", rep.Unchanged, "removed", rep.Removed, "rejected", rep.Rejected)
	return rep, nil
}

// sameEvent compares the stored encodings, which is what observers and the
// file store see. time.Time equality would trip over location pointers.
func sameEvent(a, b model.Event) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
