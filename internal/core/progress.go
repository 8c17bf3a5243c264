// Package core provides the hydration domain types and the arithmetic shared
// by the ledger, the history view and the outer surfaces.
//
// This file holds the percentage and display helpers. Percentages stored in
// history records use truncating integer math so that every surface reports
// the same number; the progress label keeps one decimal for display only.
package core

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
)

// Mood is the hydration tier shown next to the user's progress.
type Mood string

const (
	MoodThirsty  Mood = "thirsty"
	MoodDrinking Mood = "drinking"
	MoodCool     Mood = "cool"
	MoodHappy    Mood = "happy"
)

// Percentage returns intake*100/goal truncated toward zero, or 0 when goal <= 0.
// Values above 100 are kept; results that do not fit in an int saturate at math.MaxInt.
func Percentage(intake, goal int) int {
	if goal <= 0 || intake <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(intake), 100)
	if hi >= uint64(goal) {
		return math.MaxInt
	}
	q, _ := bits.Div64(hi, lo, uint64(goal))
	if q > math.MaxInt {
		return math.MaxInt
	}
	return int(q)
}

// ExactPercentage is the unrounded percentage used for display labels.
func ExactPercentage(intake, goal int) float64 {
	if goal <= 0 || intake <= 0 {
		return 0
	}
	return float64(intake) * 100 / float64(goal)
}

// MoodFor picks the tier for the given intake against goal.
func MoodFor(intake, goal int) Mood {
	pct := ExactPercentage(intake, goal)
	switch {
	case pct <= 25:
		return MoodThirsty
	case pct <= 50:
		return MoodDrinking
	case pct <= 75:
		return MoodCool
	default:
		return MoodHappy
	}
}

// ProgressLabel renders the centre text of the progress ring, e.g. "75%\n1.5L".
func ProgressLabel(intake, goal int) string {
	return fmt.Sprintf("%s%%\n%sL",
		compactFloat(ExactPercentage(intake, goal)),
		compactFloat(float64(intake)/1000))
}

// compactFloat drops the fraction when v is integral and keeps one decimal otherwise.
func compactFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
