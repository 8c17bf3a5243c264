package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"waterwise/internal/core"
	"waterwise/internal/history"
	"waterwise/internal/ledger"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type failingSaver struct{}

func (failingSaver) SaveIntakeEvent(context.Context, core.IntakeEvent) error {
	return errors.New("remote unavailable")
}

type failingGoals struct{ failingSaver }

func (failingGoals) FetchGoal(context.Context) (int, error) { return 0, errors.New("remote unavailable") }
func (failingGoals) SaveGoal(context.Context, int) error    { return errors.New("remote unavailable") }

func newTestService(t *testing.T, store *memory.Store, clock *testClock) *IntakeService {
	t.Helper()
	agg := history.NewAggregator(store, store, applog.Discard(), history.Options{})
	return NewIntakeService(context.Background(), store, store, agg, applog.Discard(), WithClock(clock.Now))
}

func TestIntakeServiceDayFlow(t *testing.T) {
	ctx := context.Background()
	profile := core.DefaultProfile()
	profile.SignUpDate = "2024-06-01"
	store := memory.New(profile, nil)
	clock := &testClock{t: time.Date(2024, 6, 1, 8, 15, 0, 0, time.UTC)}
	svc := newTestService(t, store, clock)

	e, view, err := svc.AddIntake(ctx, 500)
	if err != nil {
		t.Fatal(err)
	}
	if e.Time != "08:15 AM" || e.Date != "2024-06-01" {
		t.Fatalf("unexpected event stamp: %+v", e)
	}
	if _, view, err = svc.AddIntake(ctx, 700); err != nil {
		t.Fatal(err)
	}
	if view.IntakeTotal != 1200 || view.Percentage != 60 || view.Mood != core.MoodCool || view.Label != "60%\n1.2L" {
		t.Fatalf("unexpected view: %+v", view)
	}

	clock.Set(time.Date(2024, 6, 2, 7, 0, 0, 0, time.UTC))
	today, err := svc.Today(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if today.Date != "2024-06-02" || today.IntakeTotal != 0 || len(today.Events) != 0 {
		t.Fatalf("expected a fresh day, got %+v", today)
	}
	if _, _, err := svc.AddIntake(ctx, 300); err != nil {
		t.Fatal(err)
	}

	got := svc.History(ctx)
	want := []core.HistoryRecord{
		{Date: "2024-06-02", Intake: 300, Percentage: 15},
		{Date: "2024-06-01", Intake: 1200, Percentage: 60},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("history = %+v, want %+v", got, want)
	}
}

func TestIntakeServiceRestoresSavedState(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultProfile(), nil)
	clock := &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}

	first := newTestService(t, store, clock)
	if _, _, err := first.AddIntake(ctx, 400); err != nil {
		t.Fatal(err)
	}

	second := newTestService(t, store, clock)
	view, err := second.Today(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if view.IntakeTotal != 400 || len(view.Events) != 1 {
		t.Fatalf("expected restored tally of 400, got %+v", view)
	}
}

func TestIntakeServiceRejectsInvalidAmount(t *testing.T) {
	store := memory.New(core.DefaultProfile(), nil)
	svc := newTestService(t, store, &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)})
	if _, _, err := svc.AddIntake(context.Background(), 0); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestIntakeServiceSyncFailureStillCounts(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultProfile(), nil)
	clock := &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewIntakeService(ctx, store, failingSaver{}, nil, applog.Discard(), WithClock(clock.Now))

	e, view, err := svc.AddIntake(ctx, 250)
	if !errors.Is(err, core.ErrSyncFailure) {
		t.Fatalf("expected ErrSyncFailure, got %v", err)
	}
	if e.ID == "" || view.IntakeTotal != 250 {
		t.Fatalf("event should be kept locally: e=%+v view=%+v", e, view)
	}
	if got := svc.History(ctx); len(got) != 0 {
		t.Fatalf("no aggregator configured, expected empty history, got %+v", got)
	}
}

func TestIntakeServiceUpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultProfile(), nil)
	svc := newTestService(t, store, &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)})

	tests := []struct {
		name    string
		in      core.Profile
		wantErr error
	}{
		{"valid", core.Profile{Name: "Ada", Goal: 3000, Weight: 70, Gender: "Female"}, nil},
		{"empty name", core.Profile{Name: " ", Goal: 3000, Weight: 70}, core.ErrEmptyName},
		{"goal too low", core.Profile{Name: "Ada", Goal: 1500, Weight: 70}, core.ErrInvalidGoal},
		{"weight too high", core.Profile{Name: "Ada", Goal: 3000, Weight: 250}, core.ErrInvalidWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.UpdateProfile(ctx, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err == nil && got.SignUpDate != "2024-06-01" {
				t.Fatalf("sign-up date should be preserved, got %q", got.SignUpDate)
			}
		})
	}

	view, err := svc.Today(ctx)
	if err != nil || view.Goal != 3000 {
		t.Fatalf("today should use the updated goal, got %+v (%v)", view, err)
	}
}

func TestIntakeServiceStampsSignUpDate(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultProfile(), nil)
	clock := &testClock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, store, clock)

	p, err := store.Profile(ctx)
	if err != nil || p.SignUpDate != "2026-10-16" {
		t.Fatalf("expected sign-up date stamped on first run, got %+v (%v)", p, err)
	}
	got := svc.History(ctx)
	if len(got) != 1 || got[0] != (core.HistoryRecord{Date: "2026-10-16"}) {
		t.Fatalf("fresh install history = %+v, want one empty row for today", got)
	}

	clock.Set(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	newTestService(t, store, clock)
	if p, _ := store.Profile(ctx); p.SignUpDate != "2026-10-16" {
		t.Fatalf("a later run must keep the stored sign-up date, got %q", p.SignUpDate)
	}
	if got := svc.History(ctx); len(got) != 3 {
		t.Fatalf("expected 3 days of history, got %d", len(got))
	}
}

func TestIntakeServiceGoalSync(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}

	remoteProfile := core.DefaultProfile()
	remoteProfile.Goal = 3000
	remote := memory.New(remoteProfile, nil)
	local := memory.New(core.DefaultProfile(), nil)

	svc := NewIntakeService(ctx, local, remote, nil, applog.Discard(), WithClock(clock.Now))
	view, err := svc.Today(ctx)
	if err != nil || view.Goal != 3000 {
		t.Fatalf("default local goal should adopt the remote one, got %+v (%v)", view, err)
	}

	p, _ := svc.Profile(ctx)
	p.Goal = 3500
	if _, err := svc.UpdateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if g, _ := remote.FetchGoal(ctx); g != 3500 {
		t.Fatalf("expected goal mirrored to remote, got %d", g)
	}

	if err := remote.SaveGoal(ctx, 4000); err != nil {
		t.Fatal(err)
	}
	NewIntakeService(ctx, local, remote, nil, applog.Discard(), WithClock(clock.Now))
	if g, _ := local.Goal(ctx); g != 3500 {
		t.Fatalf("a configured local goal must win over the remote, got %d", g)
	}
}

func TestIntakeServiceGoalSyncFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	local := memory.New(core.DefaultProfile(), nil)
	clock := &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewIntakeService(ctx, local, failingGoals{}, nil, applog.Discard(), WithClock(clock.Now))

	p, _ := svc.Profile(ctx)
	if p.Goal != core.DefaultGoal || p.SignUpDate != "2024-06-01" {
		t.Fatalf("unexpected profile after failed remote fetch: %+v", p)
	}
	p.Goal = 2500
	got, err := svc.UpdateProfile(ctx, p)
	if err != nil || got.Goal != 2500 {
		t.Fatalf("update should succeed locally, got %+v (%v)", got, err)
	}
}

func TestIntakeServiceSubscribe(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultProfile(), nil)
	svc := newTestService(t, store, &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)})

	var changes []ledger.Change
	unsubscribe := svc.Subscribe(func(c ledger.Change) { changes = append(changes, c) })
	if _, _, err := svc.AddIntake(ctx, 100); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	if _, _, err := svc.AddIntake(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 || changes[1].Kind != ledger.ChangeIntakeAdded {
		t.Fatalf("unexpected changes: %+v", changes)
	}
}

func TestIntakeServiceConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultProfile(), nil)
	svc := newTestService(t, store, &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = svc.AddIntake(ctx, 10)
		}()
	}
	wg.Wait()

	view, _ := svc.Today(ctx)
	if view.IntakeTotal != 500 || len(view.Events) != 50 {
		t.Fatalf("expected 500 over 50 events, got %d over %d", view.IntakeTotal, len(view.Events))
	}
}
