package core

import "slices"

// HistoryRecord is the per-date summary shown in the history view.
type HistoryRecord struct {
	Date       string `json:"date"`
	Intake     int    `json:"intake"`
	Percentage int    `json:"percentage"`
}

// NewHistoryRecord derives the percentage of goal for a day's intake.
func NewHistoryRecord(date string, intake, goal int) HistoryRecord {
	return HistoryRecord{Date: date, Intake: intake, Percentage: Percentage(intake, goal)}
}

// SortByDateDesc orders records most recent first. Dates are compared as
// calendar dates; unparseable dates sink to the end in input order.
func SortByDateDesc(records []HistoryRecord) {
	slices.SortStableFunc(records, func(a, b HistoryRecord) int {
		ta, errA := ParseDate(a.Date)
		tb, errB := ParseDate(b.Date)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		return tb.Compare(ta)
	})
}
