package web

import (
	"errors"
	"net/http"
	"time"

	"reccal/internal/calendar"
	"reccal/internal/ics"
	appLog "reccal/internal/log"
	"reccal/internal/model"
	"reccal/internal/recurrence"
)

// ruleWarning is a RuleError flattened for JSON.
type ruleWarning struct {
	EventID   string          `json:"event_id"`
	Index     int             `json:"rule_index"`
	Frequency model.Frequency `json:"frequency"`
	Message   string          `json:"message"`
}

type occurrencesResponse struct {
	Occurrences []model.Occurrence   `json:"occurrences"`
	Warnings    []ruleWarning        `json:"warnings,omitempty"`
	Truncated   []recurrence.RuleRef `json:"truncated,omitempty"`
	RangeStart  *time.Time           `json:"range_start,omitempty"`
	RangeEnd    *time.Time           `json:"range_end,omitempty"`
	TimeZone    string               `json:"timezone"`
	WeekStart   string               `json:"week_start"`
}

func (s *Server) occurrencesResponse(res recurrence.Result, start, end time.Time) occurrencesResponse {
	resp := occurrencesResponse{
		Occurrences: res.Occurrences,
		Truncated:   res.Truncated,
		TimeZone:    s.cal.Location.String(),
		WeekStart:   s.cfg.WeekStart,
	}
	if resp.Occurrences == nil {
		resp.Occurrences = []model.Occurrence{}
	}
	for _, re := range res.RuleErrors {
		resp.Warnings = append(resp.Warnings, ruleWarning{
			EventID:   re.EventID,
			Index:     re.Index,
			Frequency: re.Frequency,
			Message:   re.Err.Error(),
		})
	}
	if !start.IsZero() {
		resp.RangeStart = &start
	}
	if !end.IsZero() {
		resp.RangeEnd = &end
	}
	return resp
}

// handleOccurrences expands every stored event within ?start=&end=. Rules
// that cannot be expanded are listed under warnings; the rest still are.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r, s.cal.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := recurrence.ExpandAll(s.store.List(), start, end, s.opts)
	if len(res.RuleErrors) > 0 {
		appLog.Warn("api occurrences: rules skipped", "count", len(res.RuleErrors))
	}
	writeJSON(w, http.StatusOK, s.occurrencesResponse(res, start, end))
}

// gridDay is one cell of a month or week grid with the occurrences starting
// on it.
type gridDay struct {
	calendar.Day
	Kind        calendar.DayKind   `json:"kind"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

type monthResponse struct {
	Year     int                  `json:"year"`
	Month    calendar.TimeLabel   `json:"month"`
	Weekdays []calendar.TimeLabel `json:"weekdays"`
	Days     []gridDay            `json:"days"`
	Warnings []ruleWarning        `json:"warnings,omitempty"`
}

type weekResponse struct {
	Week     calendar.Week `json:"week"`
	Days     []gridDay     `json:"days"`
	Warnings []ruleWarning `json:"warnings,omitempty"`
}

type monthQuery struct {
	Year  int `validate:"min=1,max=9999"`
	Month int `validate:"min=0,max=11"`
}

// handleMonth renders the month grid with lead and trail days.
//
// GET /api/calendar/month?year=2024&month=1&selected=2024-02-14
// month is zero-based; both default to the current month.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := s.cal.Today()

	var query monthQuery
	var err error
	if query.Year, err = parseIntDefault(q.Get("year"), today.Date.Year()); err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	if query.Month, err = parseIntDefault(q.Get("month"), int(today.Date.Month())-1); err != nil {
		writeError(w, http.StatusBadRequest, "month must be an integer")
		return
	}
	if err := s.validate.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	selected, err := s.selectedDay(q.Get("selected"), today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, warnings := s.fillGrid(s.cal.MonthDisplayDays(query.Month, query.Year), selected)
	writeJSON(w, http.StatusOK, monthResponse{
		Year:     query.Year,
		Month:    calendar.MonthByID(query.Month),
		Weekdays: s.orderedWeekdays(),
		Days:     days,
		Warnings: warnings,
	})
}

// handleWeek renders the seven days of the week holding ?date= (default
// today).
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	today := s.cal.Today()
	selected, err := s.selectedDay(r.URL.Query().Get("date"), today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, warnings := s.fillGrid(s.cal.WeekDays(selected.Date), selected)
	writeJSON(w, http.StatusOK, weekResponse{
		Week:     s.cal.WeekByDate(selected.Date),
		Days:     days,
		Warnings: warnings,
	})
}

func (s *Server) selectedDay(v string, def calendar.Day) (calendar.Day, error) {
	if v == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, s.cal.Location)
	if err != nil {
		return calendar.Day{}, errors.New("date must be YYYY-MM-DD")
	}
	return calendar.NewDay(t, true), nil
}

// orderedWeekdays lists weekday labels starting from the configured week
// start, the column order of a grid.
func (s *Server) orderedWeekdays() []calendar.TimeLabel {
	out := make([]calendar.TimeLabel, 7)
	for i := range out {
		out[i] = calendar.WeekdayByID(int(s.cal.WeekStart) + i)
	}
	return out
}

// fillGrid expands the stored events over the span of days and buckets each
// occurrence on the day it starts, in the configured zone.
func (s *Server) fillGrid(days []calendar.Day, selected calendar.Day) ([]gridDay, []ruleWarning) {
	out := make([]gridDay, len(days))
	if len(days) == 0 {
		return out, nil
	}
	start := days[0].Date
	end := days[len(days)-1].Date.AddDate(0, 0, 1).Add(-time.Nanosecond)

	res := recurrence.ExpandAll(s.store.List(), start, end, s.opts)
	first := calendar.DaysSinceEpoch(start)
	for i, d := range days {
		out[i] = gridDay{Day: d, Kind: s.cal.Classify(d, selected), Occurrences: []model.Occurrence{}}
	}
	for _, occ := range res.Occurrences {
		i := calendar.DaysSinceEpoch(occ.StartDate.In(s.cal.Location)) - first
		if i < 0 || i >= len(out) {
			// Started before the grid but still running into it.
			continue
		}
		out[i].Occurrences = append(out[i].Occurrences, occ)
	}
	return out, s.occurrencesResponse(res, start, end).Warnings
}

// handleExport serves every stored event as an ICS calendar.
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	body := ics.Export(s.store.List(), time.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reccal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type syncResponse struct {
	Reports []ics.Report `json:"reports"`
	Error   string       `json:"error,omitempty"`
}

// handleSync runs a subscription sync now instead of waiting for the cron.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "no subscriptions configured")
		return
	}
	reports, err := s.syncer.SyncAll(r.Context())
	resp := syncResponse{Reports: reports}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}
