package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DateLayout is the ISO calendar date used for every stored and compared date.
	DateLayout = "2006-01-02"
	// TimeLayout is the wall-clock time-of-day attached to an intake event.
	TimeLayout = "03:04 PM"
)

const (
	DefaultGoal   = 2000
	DefaultWeight = 40
	DefaultName   = "User"
	DefaultGender = "Female"

	MinGoal   = 2000
	MaxGoal   = 5000
	MaxWeight = 200

	// MaxIntakeAmount caps a single event in ml.
	MaxIntakeAmount = 5000
)

type (
	// IntakeEvent is one logged "add water" action. Immutable once created.
	IntakeEvent struct {
		ID     string `json:"id"`
		Time   string `json:"time"`
		Date   string `json:"date"`
		Amount int    `json:"amount"`
	}

	// DailyState is the running tally for CurrentDate.
	DailyState struct {
		CurrentDate string        `json:"current_date"`
		IntakeTotal int           `json:"intake_total"`
		Events      []IntakeEvent `json:"events"`
	}

	Profile struct {
		Name       string `json:"name"`
		Goal       int    `json:"goal"`
		Weight     int    `json:"weight"`
		Gender     string `json:"gender"`
		SignUpDate string `json:"sign_up_date"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrMalformedDate = errors.New("malformed date")
	ErrStaleDate     = errors.New("date is before the current day")
	ErrSyncFailure   = errors.New("sync failure")
	ErrInvalidGoal   = errors.New("invalid daily goal")
	ErrInvalidWeight = errors.New("invalid weight")
	ErrEmptyName     = errors.New("empty name")
)

// ParseDate parses an ISO yyyy-MM-dd string. Any failure wraps ErrMalformedDate.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrMalformedDate)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatTime renders the time-of-day part of t, e.g. "08:15 AM".
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// NewIntakeEvent stamps a new event with a fresh ID.
func NewIntakeEvent(amount int, timeOfDay, date string) IntakeEvent {
	return IntakeEvent{
		ID:     uuid.NewString(),
		Time:   timeOfDay,
		Date:   date,
		Amount: amount,
	}
}

func (e IntakeEvent) Validate() error {
	if !ValidAmount(e.Amount) {
		return ErrInvalidAmount
	}
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	return nil
}

// ValidAmount reports whether amount ml fits in (0, MaxIntakeAmount].
func ValidAmount(amount int) bool {
	return amount > 0 && amount <= MaxIntakeAmount
}

func ValidGoal(goal int) bool {
	return goal >= MinGoal && goal <= MaxGoal
}

// DefaultProfile returns the profile used before the user configures anything.
// SignUpDate stays empty until the first run stamps it.
func DefaultProfile() Profile {
	return Profile{
		Name:   DefaultName,
		Goal:   DefaultGoal,
		Weight: DefaultWeight,
		Gender: DefaultGender,
	}
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Weight <= 0 || p.Weight > MaxWeight {
		return ErrInvalidWeight
	}
	if !ValidGoal(p.Goal) {
		return ErrInvalidGoal
	}
	if p.SignUpDate != "" {
		if _, err := ParseDate(p.SignUpDate); err != nil {
			return err
		}
	}
	return nil
}

// Total sums event amounts.
func Total(events []IntakeEvent) int {
	total := 0
	for _, e := range events {
		total += e.Amount
	}
	return total
}
