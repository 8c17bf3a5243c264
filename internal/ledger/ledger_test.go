package ledger

import (
	"context"
	"errors"
	"testing"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
)

type fakeProfile struct {
	total      int
	saved      []core.DailyState
	failWrites bool
}

func (f *fakeProfile) Profile(context.Context) (core.Profile, error) { return core.DefaultProfile(), nil }
func (f *fakeProfile) SaveProfile(context.Context, core.Profile) error { return nil }
func (f *fakeProfile) Goal(context.Context) (int, error)              { return core.DefaultGoal, nil }
func (f *fakeProfile) SetIntakeTotal(_ context.Context, v int) error {
	if f.failWrites {
		return errors.New("prefs unavailable")
	}
	f.total = v
	return nil
}
func (f *fakeProfile) SaveDailyState(_ context.Context, s core.DailyState) error {
	if f.failWrites {
		return errors.New("prefs unavailable")
	}
	f.saved = append(f.saved, s)
	return nil
}
func (f *fakeProfile) LoadDailyState(context.Context) (core.DailyState, bool, error) {
	if len(f.saved) == 0 {
		return core.DailyState{}, false, nil
	}
	return f.saved[len(f.saved)-1], true, nil
}

type fakeRemote struct {
	events []core.IntakeEvent
	err    error
}

func (f *fakeRemote) SaveIntakeEvent(_ context.Context, e core.IntakeEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func newTestLedger() (*Ledger, *fakeProfile, *fakeRemote) {
	p := &fakeProfile{}
	r := &fakeRemote{}
	return New(p, r, applog.Discard()), p, r
}

func assertInvariant(t *testing.T, l *Ledger) {
	t.Helper()
	if got, want := l.IntakeTotal(), core.Total(l.Events()); got != want {
		t.Fatalf("intake total %d != sum of events %d", got, want)
	}
	for _, e := range l.Events() {
		if e.Date != l.CurrentDate() {
			t.Fatalf("event %s dated %s, ledger at %s", e.ID, e.Date, l.CurrentDate())
		}
	}
}

func TestCheckAndResetIfNewDay(t *testing.T) {
	ctx := context.Background()
	l, p, _ := newTestLedger()

	reset, err := l.CheckAndResetIfNewDay(ctx, "2024-06-01")
	if err != nil || !reset {
		t.Fatalf("first check should reset: reset=%v err=%v", reset, err)
	}
	if _, err := l.AddIntake(ctx, 500, "08:00 AM", "2024-06-01"); err != nil {
		t.Fatalf("add: %v", err)
	}

	for i := 0; i < 3; i++ {
		reset, err := l.CheckAndResetIfNewDay(ctx, "2024-06-01")
		if err != nil || reset {
			t.Fatalf("same-day check %d should be a no-op: reset=%v err=%v", i, reset, err)
		}
	}
	if l.IntakeTotal() != 500 || len(l.Events()) != 1 {
		t.Fatalf("same-day checks must not touch state: total=%d events=%d", l.IntakeTotal(), len(l.Events()))
	}

	reset, err = l.CheckAndResetIfNewDay(ctx, "2024-06-02")
	if err != nil || !reset {
		t.Fatalf("new day should reset: reset=%v err=%v", reset, err)
	}
	if l.IntakeTotal() != 0 || len(l.Events()) != 0 {
		t.Fatalf("expected empty state after reset, got total=%d events=%d", l.IntakeTotal(), len(l.Events()))
	}
	if l.CurrentDate() != "2024-06-02" {
		t.Fatalf("expected current date 2024-06-02, got %s", l.CurrentDate())
	}
	last := p.saved[len(p.saved)-1]
	if last.CurrentDate != "2024-06-02" || last.IntakeTotal != 0 || p.total != 0 {
		t.Fatalf("reset not persisted: %+v total=%d", last, p.total)
	}
}

func TestCheckAndResetMalformedDate(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger()
	if _, err := l.AddIntake(ctx, 300, "08:00 AM", "2024-06-01"); err != nil {
		t.Fatalf("add: %v", err)
	}

	reset, err := l.CheckAndResetIfNewDay(ctx, "June 2nd")
	if !errors.Is(err, core.ErrMalformedDate) || reset {
		t.Fatalf("expected ErrMalformedDate without reset, got reset=%v err=%v", reset, err)
	}
	if l.IntakeTotal() != 300 || l.CurrentDate() != "2024-06-01" {
		t.Fatalf("malformed date must leave state untouched")
	}
}

func TestAddIntakeIncrementsTotal(t *testing.T) {
	ctx := context.Background()
	l, _, r := newTestLedger()
	if _, err := l.CheckAndResetIfNewDay(ctx, "2024-06-01"); err != nil {
		t.Fatal(err)
	}

	amounts := []int{1, 250, 500, 1000, 333}
	want := 0
	for _, amount := range amounts {
		before := len(l.Events())
		e, err := l.AddIntake(ctx, amount, "09:30 AM", "2024-06-01")
		if err != nil {
			t.Fatalf("add %d: %v", amount, err)
		}
		want += amount
		if l.IntakeTotal() != want {
			t.Fatalf("after adding %d expected total %d, got %d", amount, want, l.IntakeTotal())
		}
		events := l.Events()
		if len(events) != before+1 || events[len(events)-1].Amount != amount || events[len(events)-1].ID != e.ID {
			t.Fatalf("expected exactly one appended event carrying %d, got %+v", amount, events)
		}
		assertInvariant(t, l)
	}
	if len(r.events) != len(amounts) {
		t.Fatalf("expected %d mirrored events, got %d", len(amounts), len(r.events))
	}
}

func TestAddIntakeRejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	l, p, r := newTestLedger()
	if _, err := l.AddIntake(ctx, 200, "09:30 AM", "2024-06-01"); err != nil {
		t.Fatal(err)
	}
	savesBefore := len(p.saved)

	for _, amount := range []int{0, -1, -500, core.MaxIntakeAmount + 1, 100_000_000_000_000_000} {
		_, err := l.AddIntake(ctx, amount, "09:30 AM", "2024-06-01")
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if l.IntakeTotal() != 200 || len(l.Events()) != 1 {
		t.Fatalf("rejected amounts must not change state: total=%d events=%d", l.IntakeTotal(), len(l.Events()))
	}
	if len(p.saved) != savesBefore || len(r.events) != 1 {
		t.Fatalf("rejected amounts must not be persisted")
	}
}

func TestAddIntakeAcceptsMaxAmount(t *testing.T) {
	l, _, _ := newTestLedger()
	if _, err := l.AddIntake(context.Background(), core.MaxIntakeAmount, "09:30 AM", "2024-06-01"); err != nil {
		t.Fatalf("expected the largest single amount to be accepted, got %v", err)
	}
	if l.IntakeTotal() != core.MaxIntakeAmount {
		t.Fatalf("expected total %d, got %d", core.MaxIntakeAmount, l.IntakeTotal())
	}
	assertInvariant(t, l)
}

func TestAddIntakeRollsOverToLaterDate(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger()
	if _, err := l.AddIntake(ctx, 500, "11:00 PM", "2024-06-01"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.AddIntake(ctx, 200, "07:00 AM", "2024-06-02"); err != nil {
		t.Fatal(err)
	}
	if l.CurrentDate() != "2024-06-02" || l.IntakeTotal() != 200 || len(l.Events()) != 1 {
		t.Fatalf("expected rollover to 2024-06-02 with only the new event, got %+v", l.State())
	}
	assertInvariant(t, l)
}

func TestAddIntakeRejectsStaleDate(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger()
	if _, err := l.AddIntake(ctx, 500, "08:00 AM", "2024-06-02"); err != nil {
		t.Fatal(err)
	}
	_, err := l.AddIntake(ctx, 100, "08:00 AM", "2024-06-01")
	if !errors.Is(err, core.ErrStaleDate) {
		t.Fatalf("expected ErrStaleDate, got %v", err)
	}
	if l.IntakeTotal() != 500 {
		t.Fatalf("stale add must not change total, got %d", l.IntakeTotal())
	}
}

func TestAddIntakeSyncFailureKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	l, _, r := newTestLedger()
	r.err = errors.New("firestore offline")

	e, err := l.AddIntake(ctx, 400, "10:00 AM", "2024-06-01")
	if !errors.Is(err, core.ErrSyncFailure) {
		t.Fatalf("expected ErrSyncFailure, got %v", err)
	}
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Event.ID != e.ID {
		t.Fatalf("expected *SyncError carrying the event, got %v", err)
	}
	if !errors.Is(err, r.err) {
		t.Fatalf("expected the remote cause to be wrapped, got %v", err)
	}
	if l.IntakeTotal() != 400 || len(l.Events()) != 1 {
		t.Fatalf("sync failure must not roll back, got total=%d", l.IntakeTotal())
	}
}

func TestLocalPersistenceFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	l, p, _ := newTestLedger()
	p.failWrites = true

	if _, err := l.AddIntake(ctx, 250, "10:00 AM", "2024-06-01"); err != nil {
		t.Fatalf("local persistence failure should only be logged, got %v", err)
	}
	if l.IntakeTotal() != 250 {
		t.Fatalf("expected total 250, got %d", l.IntakeTotal())
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger()

	var got []Change
	cancel := l.Subscribe(func(c Change) { got = append(got, c) })

	if _, err := l.AddIntake(ctx, 300, "10:00 AM", "2024-06-01"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Kind != ChangeReset || got[1].Kind != ChangeIntakeAdded {
		t.Fatalf("expected reset then intake_added, got %+v", got)
	}
	if got[1].IntakeTotal != 300 || got[1].Event == nil || got[1].Event.Amount != 300 {
		t.Fatalf("unexpected intake change: %+v", got[1])
	}

	cancel()
	if _, err := l.AddIntake(ctx, 300, "10:05 AM", "2024-06-01"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("unsubscribed callback should not fire, got %d changes", len(got))
	}
}

func TestRestore(t *testing.T) {
	l, _, _ := newTestLedger()
	err := l.Restore(core.DailyState{
		CurrentDate: "2024-06-01",
		IntakeTotal: 9999,
		Events: []core.IntakeEvent{
			{ID: "a", Date: "2024-06-01", Amount: 500},
			{ID: "b", Date: "2024-05-31", Amount: 700},
			{ID: "c", Date: "2024-06-01", Amount: 250},
		},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if l.IntakeTotal() != 750 || len(l.Events()) != 2 {
		t.Fatalf("expected recomputed total 750 over 2 events, got %d/%d", l.IntakeTotal(), len(l.Events()))
	}
	assertInvariant(t, l)

	if reset, _ := l.CheckAndResetIfNewDay(context.Background(), "2024-06-01"); reset {
		t.Fatalf("restored day should not reset again")
	}
	if err := l.Restore(core.DailyState{CurrentDate: "bogus"}); !errors.Is(err, core.ErrMalformedDate) {
		t.Fatalf("expected ErrMalformedDate, got %v", err)
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger()
	if _, err := l.AddIntake(ctx, 300, "10:00 AM", "2024-06-01"); err != nil {
		t.Fatal(err)
	}
	events := l.Events()
	events[0].Amount = 1
	if l.Events()[0].Amount != 300 {
		t.Fatalf("Events must return a copy")
	}
}
