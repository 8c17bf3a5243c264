package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"waterwise/internal/core"
)

func TestMemoryStoreSaveAndSum(t *testing.T) {
	ctx := context.Background()
	s := New(core.DefaultProfile(), nil)

	for _, e := range []core.IntakeEvent{
		core.NewIntakeEvent(250, "08:00 AM", "2024-06-01"),
		core.NewIntakeEvent(500, "09:00 AM", "2024-06-01"),
		core.NewIntakeEvent(300, "08:00 AM", "2024-06-02"),
	} {
		if err := s.SaveIntakeEvent(ctx, e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	tests := []struct {
		date string
		want int
	}{
		{"2024-06-01", 750},
		{"2024-06-02", 300},
		{"2024-06-03", 0},
	}
	for _, tt := range tests {
		got, err := s.FetchIntakeSum(ctx, tt.date)
		if err != nil || got != tt.want {
			t.Fatalf("sum %s: got %d err=%v, want %d", tt.date, got, err, tt.want)
		}
	}
}

func TestMemoryStoreRejectsInvalidEvent(t *testing.T) {
	s := New(core.DefaultProfile(), nil)
	if err := s.SaveIntakeEvent(context.Background(), core.IntakeEvent{ID: "x", Date: "2024-06-01", Amount: 0}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMemoryStoreDedupesByID(t *testing.T) {
	ctx := context.Background()
	s := New(core.DefaultProfile(), nil)
	e := core.NewIntakeEvent(250, "08:00 AM", "2024-06-01")
	_ = s.SaveIntakeEvent(ctx, e)
	_ = s.SaveIntakeEvent(ctx, e)
	if got, _ := s.FetchIntakeSum(ctx, "2024-06-01"); got != 250 {
		t.Fatalf("duplicate save counted twice: %d", got)
	}
}

func TestMemoryStoreDailyState(t *testing.T) {
	ctx := context.Background()
	s := New(core.DefaultProfile(), nil)

	if _, ok, err := s.LoadDailyState(ctx); ok || err != nil {
		t.Fatalf("expected no saved state, ok=%v err=%v", ok, err)
	}
	st := core.DailyState{CurrentDate: "2024-06-01", IntakeTotal: 250, Events: []core.IntakeEvent{{ID: "a", Date: "2024-06-01", Amount: 250}}}
	if err := s.SaveDailyState(ctx, st); err != nil {
		t.Fatal(err)
	}
	st.Events[0].Amount = 1

	got, ok, err := s.LoadDailyState(ctx)
	if !ok || err != nil || got.IntakeTotal != 250 || got.Events[0].Amount != 250 {
		t.Fatalf("unexpected state: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestMemoryStoreProfile(t *testing.T) {
	ctx := context.Background()
	s := New(core.DefaultProfile(), nil)

	p := core.DefaultProfile()
	p.Goal = 1000
	if err := s.SaveProfile(ctx, p); err == nil {
		t.Fatal("expected out-of-range goal to be rejected")
	}
	p.Goal = 2500
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if g, _ := s.FetchGoal(ctx); g != 2500 {
		t.Fatalf("expected goal 2500, got %d", g)
	}
	if err := s.SaveGoal(ctx, 10000); !errors.Is(err, core.ErrInvalidGoal) {
		t.Fatalf("expected ErrInvalidGoal, got %v", err)
	}
	if err := s.SaveGoal(ctx, 3000); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.Profile(ctx); p.Goal != 3000 || p.Name != core.DefaultName {
		t.Fatalf("expected goal 3000 on an otherwise unchanged profile, got %+v", p)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	if len(s.Events()) != 0 {
		t.Fatalf("expected empty store when seed file is missing")
	}

	content := "# date amount\n2024-06-01 500\n2024-06-01,250\nnot-a-date 100\n2024-06-02 -5\n\n2024-06-02\t300\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_intake.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s = NewFromFiles(dir)
	if n := len(s.Events()); n != 3 {
		t.Fatalf("expected 3 valid seeds, got %d", n)
	}
	if got, _ := s.FetchIntakeSum(context.Background(), "2024-06-01"); got != 750 {
		t.Fatalf("expected 750 seeded for 2024-06-01, got %d", got)
	}
}
