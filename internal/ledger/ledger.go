// Package ledger keeps today's water intake: the running total, the list of
// today's events, and the rollover that clears both when the calendar day
// advances.
//
// A Ledger is not safe for concurrent use. Callers that share one across
// goroutines serialize access themselves.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets"
)

// ChangeKind identifies a ledger state transition.
type ChangeKind string

const (
	ChangeReset       ChangeKind = "reset"
	ChangeIntakeAdded ChangeKind = "intake_added"
)

// Change is delivered to subscribers after every state transition.
type Change struct {
	Kind        ChangeKind        `json:"kind"`
	Date        string            `json:"date"`
	IntakeTotal int               `json:"intake_total"`
	Event       *core.IntakeEvent `json:"event,omitempty"`
}

// SyncError reports that an event was recorded locally but could not be
// mirrored to the remote store.
type SyncError struct {
	Event core.IntakeEvent
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync intake event %s: %v", e.Event.ID, e.Err)
}

func (e *SyncError) Unwrap() []error {
	return []error{core.ErrSyncFailure, e.Err}
}

type Ledger struct {
	profile sheets.ProfileStore
	remote  sheets.EventSaver
	logger  *applog.Logger

	state core.DailyState

	subscribers map[int]func(Change)
	nextSubID   int
}

// New builds an empty ledger. Until the first rollover check there is no
// current date, so the first CheckAndResetIfNewDay always resets.
func New(profile sheets.ProfileStore, remote sheets.EventSaver, logger *applog.Logger) *Ledger {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Ledger{
		profile:     profile,
		remote:      remote,
		logger:      logger.WithComponent(applog.ComponentLedger),
		subscribers: make(map[int]func(Change)),
	}
}

// Restore loads a previously saved state. Events dated differently from the
// state's date are dropped and the total is recomputed from what remains.
func (l *Ledger) Restore(s core.DailyState) error {
	if _, err := core.ParseDate(s.CurrentDate); err != nil {
		return fmt.Errorf("restore daily state: %w", err)
	}
	events := make([]core.IntakeEvent, 0, len(s.Events))
	for _, e := range s.Events {
		if e.Date != s.CurrentDate || !core.ValidAmount(e.Amount) {
			l.logger.Warn("Dropping inconsistent event from saved state",
				"event_id", e.ID, "event_date", e.Date, "current_date", s.CurrentDate)
			continue
		}
		events = append(events, e)
	}
	l.state = core.DailyState{
		CurrentDate: s.CurrentDate,
		IntakeTotal: core.Total(events),
		Events:      events,
	}
	return nil
}

// CheckAndResetIfNewDay clears the tally when date differs from the last
// reset date. Calling it again with the same date is a no-op.
func (l *Ledger) CheckAndResetIfNewDay(ctx context.Context, date string) (bool, error) {
	if _, err := core.ParseDate(date); err != nil {
		l.logger.WarnContext(ctx, "Skipping rollover check", applog.FieldError, err, applog.FieldDate, date)
		return false, err
	}
	if l.state.CurrentDate == date {
		return false, nil
	}

	previous := l.state.CurrentDate
	l.state = core.DailyState{CurrentDate: date, Events: []core.IntakeEvent{}}
	l.persistLocal(ctx)

	l.logger.InfoContext(ctx, "Daily intake reset", "previous_date", previous, applog.FieldDate, date)
	l.notify(Change{Kind: ChangeReset, Date: date})
	return true, nil
}

// AddIntake records amount ml for date. A later date rolls the ledger over
// first; an earlier one is rejected. When only the remote mirror fails the
// event is returned together with a *SyncError and stays recorded locally.
func (l *Ledger) AddIntake(ctx context.Context, amount int, timeOfDay, date string) (core.IntakeEvent, error) {
	if !core.ValidAmount(amount) {
		return core.IntakeEvent{}, fmt.Errorf("%w: %d", core.ErrInvalidAmount, amount)
	}
	day, err := core.ParseDate(date)
	if err != nil {
		return core.IntakeEvent{}, err
	}
	if l.state.CurrentDate != "" {
		current, err := core.ParseDate(l.state.CurrentDate)
		if err == nil && day.Before(current) {
			return core.IntakeEvent{}, fmt.Errorf("%w: %s < %s", core.ErrStaleDate, date, l.state.CurrentDate)
		}
	}
	if _, err := l.CheckAndResetIfNewDay(ctx, date); err != nil {
		return core.IntakeEvent{}, err
	}

	event := core.NewIntakeEvent(amount, timeOfDay, date)
	l.state.Events = append(l.state.Events, event)
	l.state.IntakeTotal += amount
	l.persistLocal(ctx)

	l.logger.InfoContext(ctx, "Intake recorded",
		"event_id", event.ID,
		applog.FieldAmountML, amount,
		applog.FieldDate, date,
		"intake_total", l.state.IntakeTotal)
	l.notify(Change{Kind: ChangeIntakeAdded, Date: date, IntakeTotal: l.state.IntakeTotal, Event: &event})

	if l.remote == nil {
		return event, nil
	}
	if err := l.remote.SaveIntakeEvent(ctx, event); err != nil {
		l.logger.ErrorContext(ctx, "Failed to mirror intake event", "event_id", event.ID, applog.FieldError, err)
		return event, &SyncError{Event: event, Err: err}
	}
	return event, nil
}

func (l *Ledger) IntakeTotal() int { return l.state.IntakeTotal }

func (l *Ledger) Events() []core.IntakeEvent { return slices.Clone(l.state.Events) }

func (l *Ledger) CurrentDate() string { return l.state.CurrentDate }

// State returns a copy of the full daily state.
func (l *Ledger) State() core.DailyState {
	s := l.state
	s.Events = slices.Clone(s.Events)
	return s
}

// Subscribe registers fn for change notifications and returns its cancel func.
func (l *Ledger) Subscribe(fn func(Change)) (unsubscribe func()) {
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = fn
	return func() { delete(l.subscribers, id) }
}

func (l *Ledger) notify(c Change) {
	for _, fn := range l.subscribers {
		fn(c)
	}
}

// persistLocal writes the tally to the profile store. Failures are logged
// only: the in-memory state stays authoritative for the session.
func (l *Ledger) persistLocal(ctx context.Context) {
	if l.profile == nil {
		return
	}
	err := errors.Join(
		l.profile.SetIntakeTotal(ctx, l.state.IntakeTotal),
		l.profile.SaveDailyState(ctx, l.State()),
	)
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to persist daily state", applog.FieldError, err, applog.FieldDate, l.state.CurrentDate)
	}
}
