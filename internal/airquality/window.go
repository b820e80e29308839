package airquality

import (
	"fmt"
	"time"
)

// Window is a time range relative to a reference instant.
type Window struct {
	Start time.Duration
	Span  time.Duration
}

var (
	// NowWindow covers the hour starting at the reference instant.
	NowWindow = Window{Start: 0, Span: time.Hour}
	// ForecastWindow covers the day starting one hour after the reference instant.
	ForecastWindow = Window{Start: time.Hour, Span: 24 * time.Hour}
)

// Bounds returns the inclusive UTC bounds of the window around now.
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	from = now.UTC().Add(w.Start)
	return from, from.Add(w.Span)
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w == Window{}
}

// FilterByWindow returns the records dated within the window, in input order.
// A single malformed date fails the whole call.
func FilterByWindow(records []Record, now time.Time, w Window) ([]Record, error) {
	from, to := w.Bounds(now)

	kept := make([]Record, 0, len(records))
	for i := range records {
		t, err := records[i].Time()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d date %q", ErrDateParse, i, records[i].Date)
		}
		if t.Before(from) || t.After(to) {
			continue
		}
		kept = append(kept, records[i])
	}

	return kept, nil
}
