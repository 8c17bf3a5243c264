package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	applog "waterwise/internal/log"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) ProcessPendingEvents(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	if got := DefaultSyncProcessorConfig().PollInterval; got != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", got)
	}
	p := NewSyncProcessor(&countingSweeper{}, SyncProcessorConfig{}, applog.Discard())
	if p.config.PollInterval != 10*time.Second {
		t.Errorf("zero interval should fall back to default, got %v", p.config.PollInterval)
	}
}

func TestSyncProcessorLifecycle(t *testing.T) {
	sweeper := &countingSweeper{}
	p := NewSyncProcessor(sweeper, SyncProcessorConfig{PollInterval: 5 * time.Millisecond}, applog.Discard())

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("expected error when starting already running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sweeper.calls.Load() < 2 {
		t.Fatalf("expected repeated sweeps, got %d", sweeper.calls.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatal("processor should be stopped")
	}
	after := sweeper.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if sweeper.calls.Load() != after {
		t.Fatal("sweeps continued after Stop")
	}
}

func TestSyncProcessorStopNotRunning(t *testing.T) {
	p := NewSyncProcessor(&countingSweeper{}, DefaultSyncProcessorConfig(), applog.Discard())
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop on idle processor: %v", err)
	}
}

func TestSyncProcessorSurvivesSweepErrors(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db locked")}
	p := NewSyncProcessor(sweeper, SyncProcessorConfig{PollInterval: 5 * time.Millisecond}, applog.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sweeper.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if sweeper.calls.Load() < 3 {
		t.Fatalf("loop should keep running after errors, got %d sweeps", sweeper.calls.Load())
	}
	_ = p.Stop(context.Background())
}
