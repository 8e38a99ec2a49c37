package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	appLog "reccal/internal/log"
	"reccal/internal/model"
	"reccal/internal/recurrence"
	"reccal/internal/store"
)

// eventsQuery holds the optional filters of GET /api/events. At most one
// of day, hour and month applies; source combines with any of them.
type eventsQuery struct {
	Day    string `validate:"omitempty,datetime=2006-01-02"`
	Hour   string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Month  *int   `validate:"omitempty,min=0,max=11"`
	Year   int    `validate:"required_with=Month,omitempty,min=1,max=9999"`
	Source string `validate:"omitempty,max=200"`
}

// handleListEvents returns the stored events, optionally narrowed by day,
// hour, month or source.
//
// GET /api/events?day=2024-03-01
// GET /api/events?hour=2024-03-01T09:00:00Z
// GET /api/events?month=2&year=2024   (month is zero-based)
// GET /api/events?source=work
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := eventsQuery{Day: q.Get("day"), Hour: q.Get("hour"), Source: q.Get("source")}
	if v := q.Get("month"); v != "" {
		m, err := parseIntDefault(v, 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be an integer")
			return
		}
		query.Month = &m
		if query.Year, err = parseIntDefault(q.Get("year"), 0); err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
	}
	if err := s.validate.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc := s.cal.Location
	events := s.store.List()
	switch {
	case query.Day != "":
		day, _, _ := parseTime(query.Day, loc)
		events = store.DayEvents(inLocation(events, loc), day)
	case query.Hour != "":
		t, _, _ := parseTime(query.Hour, loc)
		events = store.HourEvents(inLocation(events, loc), t)
	case query.Month != nil:
		events = store.MonthEvents(inLocation(events, loc), *query.Month, query.Year)
	}
	if query.Source != "" {
		events = store.SourceEvents(events, query.Source)
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// inLocation moves start and end into loc so day-based filters compare
// wall-clock dates of the configured zone.
func inLocation(events []model.Event, loc *time.Location) []model.Event {
	out := make([]model.Event, len(events))
	for i, ev := range events {
		ev.StartDate = ev.StartDate.In(loc)
		ev.EndDate = ev.EndDate.In(loc)
		out[i] = ev
	}
	return out
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.store.Add(ev)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	appLog.Info("event created", "event_id", created.ID, "kind", created.Kind())
	w.Header().Set("Location", "/api/events/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleUpdateEvent replaces the event named in the path; an id in the body
// is ignored.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.ID = mux.Vars(r)["id"]
	updated, err := s.store.Update(ev)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	appLog.Info("event updated", "event_id", updated.ID, "kind", updated.Kind())
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	appLog.Info("event deleted", "event_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleEventOccurrences expands one event within ?start=&end=.
func (s *Server) handleEventOccurrences(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	start, end, err := parseWindow(r, s.cal.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := recurrence.ForEvent(ev, s.opts).Between(start, end)
	writeJSON(w, http.StatusOK, s.occurrencesResponse(res, start, end))
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, "store operation failed")
	}
}
