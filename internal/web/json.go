package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	appLog "reccal/internal/log"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

const dateLayout = time.DateOnly

// parseTime accepts RFC3339 or a bare date, which is read as midnight in
// loc. An empty value yields the zero time.
func parseTime(v string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	if v == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.ParseInLocation(dateLayout, v, loc); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC3339", v)
	}
	return t.In(loc), false, nil
}

// parseWindow reads start and end query parameters. A bare end date
// includes that whole day. Missing bounds stay zero (open).
func parseWindow(r *http.Request, loc *time.Location) (start, end time.Time, err error) {
	q := r.URL.Query()
	start, _, err = parseTime(q.Get("start"), loc)
	if err != nil {
		return start, end, fmt.Errorf("start: %w", err)
	}
	end, dateOnly, err := parseTime(q.Get("end"), loc)
	if err != nil {
		return start, end, fmt.Errorf("end: %w", err)
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, errors.New("end is before start")
	}
	return start, end, nil
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
