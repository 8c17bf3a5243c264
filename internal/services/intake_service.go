package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"waterwise/internal/core"
	"waterwise/internal/history"
	"waterwise/internal/ledger"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets"
)

// TodayView is what the home screen shows.
type TodayView struct {
	Date        string             `json:"date"`
	IntakeTotal int                `json:"intake_total"`
	Goal        int                `json:"goal"`
	Percentage  int                `json:"percentage"`
	Mood        core.Mood          `json:"mood"`
	Label       string             `json:"label"`
	Events      []core.IntakeEvent `json:"events"`
}

// IntakeService orchestrates the ledger, the history view and the profile
// for concurrent callers. Every ledger access goes through mu.
type IntakeService struct {
	mu      sync.Mutex
	ledger  *ledger.Ledger
	history *history.Aggregator
	profile sheets.ProfileStore
	goals   sheets.GoalSync
	now     func() time.Time
	logger  *applog.Logger
}

const goalSyncTimeout = 5 * time.Second

type Option func(*IntakeService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *IntakeService) { s.now = now }
}

// NewIntakeService builds the service and restores today's tally from the
// profile store when one was saved. A first run stamps today as the sign-up
// date. When remote also mirrors the goal, a goal still at its default is
// replaced by the remote one.
func NewIntakeService(ctx context.Context, profile sheets.ProfileStore, remote sheets.EventSaver, agg *history.Aggregator, logger *applog.Logger, opts ...Option) *IntakeService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &IntakeService{
		ledger:  ledger.New(profile, remote, logger),
		history: agg,
		profile: profile,
		now:     time.Now,
		logger:  logger.WithComponent(applog.ComponentApp),
	}
	if gs, ok := remote.(sheets.GoalSync); ok {
		s.goals = gs
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore(ctx)
	s.initProfile(ctx)
	return s
}

func (s *IntakeService) initProfile(ctx context.Context) {
	p, err := s.profile.Profile(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load profile", applog.FieldError, err)
		return
	}
	changed := false
	if p.SignUpDate == "" {
		p.SignUpDate = core.FormatDate(s.now())
		changed = true
	}
	if p.Goal == core.DefaultGoal && s.goals != nil {
		if goal, ok := s.remoteGoal(ctx); ok && goal != p.Goal {
			p.Goal = goal
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := s.profile.SaveProfile(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "Failed to save initial profile", applog.FieldError, err)
		return
	}
	s.logger.InfoContext(ctx, "Profile initialised",
		"sign_up_date", p.SignUpDate, applog.FieldGoal, p.Goal)
}

func (s *IntakeService) remoteGoal(ctx context.Context) (int, bool) {
	fctx, cancel := context.WithTimeout(ctx, goalSyncTimeout)
	defer cancel()
	goal, err := s.goals.FetchGoal(fctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Remote goal unavailable", applog.FieldError, err)
		return 0, false
	}
	if !core.ValidGoal(goal) {
		s.logger.WarnContext(ctx, "Ignoring out-of-range remote goal", applog.FieldGoal, goal)
		return 0, false
	}
	return goal, true
}

func (s *IntakeService) restore(ctx context.Context) {
	st, ok, err := s.profile.LoadDailyState(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load saved daily state", applog.FieldError, err)
		return
	}
	if !ok {
		return
	}
	if err := s.ledger.Restore(st); err != nil {
		s.logger.WarnContext(ctx, "Ignoring saved daily state", applog.FieldError, err)
		return
	}
	s.logger.InfoContext(ctx, "Restored daily state",
		applog.FieldDate, st.CurrentDate, "intake_total", s.ledger.IntakeTotal())
}

// Today rolls the ledger over if the day changed and reports progress.
func (s *IntakeService) Today(ctx context.Context) (TodayView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := core.FormatDate(s.now())
	if _, err := s.ledger.CheckAndResetIfNewDay(ctx, date); err != nil {
		return TodayView{}, err
	}
	return s.view(ctx), nil
}

// AddIntake records amount ml at the current time. When the event is kept
// locally but the remote mirror fails, the returned error wraps
// core.ErrSyncFailure and the view still reflects the new total.
func (s *IntakeService) AddIntake(ctx context.Context, amount int) (core.IntakeEvent, TodayView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, err := s.ledger.AddIntake(ctx, amount, core.FormatTime(now), core.FormatDate(now))
	if err != nil && !errors.Is(err, core.ErrSyncFailure) {
		return core.IntakeEvent{}, TodayView{}, err
	}
	return e, s.view(ctx), err
}

// History returns one record per day since sign-up, most recent first.
func (s *IntakeService) History(ctx context.Context) []core.HistoryRecord {
	if s.history == nil {
		return []core.HistoryRecord{}
	}
	return s.history.History(ctx, core.FormatDate(s.now()))
}

func (s *IntakeService) Profile(ctx context.Context) (core.Profile, error) {
	return s.profile.Profile(ctx)
}

// UpdateProfile validates and stores p. An empty sign-up date keeps the
// stored one. A changed goal is mirrored to the remote store; a failed
// mirror is logged and does not fail the update.
func (s *IntakeService) UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	current, err := s.profile.Profile(ctx)
	if err != nil {
		return core.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if p.SignUpDate == "" {
		p.SignUpDate = current.SignUpDate
	}
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	if err := s.profile.SaveProfile(ctx, p); err != nil {
		return core.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	s.logger.InfoContext(ctx, "Profile updated", applog.FieldGoal, p.Goal)

	if s.goals != nil && p.Goal != current.Goal {
		fctx, cancel := context.WithTimeout(ctx, goalSyncTimeout)
		defer cancel()
		if err := s.goals.SaveGoal(fctx, p.Goal); err != nil {
			s.logger.WarnContext(ctx, "Failed to mirror goal", applog.FieldGoal, p.Goal, applog.FieldError, err)
		}
	}
	return p, nil
}

// Subscribe forwards ledger changes to fn. fn runs with the service lock
// held and must not call back into the service.
func (s *IntakeService) Subscribe(fn func(ledger.Change)) (unsubscribe func()) {
	s.mu.Lock()
	cancel := s.ledger.Subscribe(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cancel()
	}
}

// view must be called with mu held.
func (s *IntakeService) view(ctx context.Context) TodayView {
	goal, err := s.profile.Goal(ctx)
	if err != nil || goal <= 0 {
		if err != nil {
			s.logger.WarnContext(ctx, "Falling back to default goal", applog.FieldError, err)
		}
		goal = core.DefaultGoal
	}
	total := s.ledger.IntakeTotal()
	return TodayView{
		Date:        s.ledger.CurrentDate(),
		IntakeTotal: total,
		Goal:        goal,
		Percentage:  core.Percentage(total, goal),
		Mood:        core.MoodFor(total, goal),
		Label:       core.ProgressLabel(total, goal),
		Events:      s.ledger.Events(),
	}
}
