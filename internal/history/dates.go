package history

import (
	"iter"
	"time"

	"waterwise/internal/core"
)

// DatesBetween yields every calendar date from start to end inclusive as an
// ISO string. The sequence is lazy and can be ranged over any number of
// times. It yields nothing when start is after end.
func DatesBetween(start, end time.Time) iter.Seq[string] {
	first := calendarDay(start)
	last := calendarDay(end)
	return func(yield func(string) bool) {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			if !yield(core.FormatDate(d)) {
				return
			}
		}
	}
}

// ParseRange parses two ISO dates and returns the sequence between them.
func ParseRange(startDate, endDate string) (iter.Seq[string], error) {
	start, err := core.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := core.ParseDate(endDate)
	if err != nil {
		return nil, err
	}
	return DatesBetween(start, end), nil
}

// calendarDay pins t to midnight UTC of its own calendar date so that
// stepping by one day never trips over DST changes.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
