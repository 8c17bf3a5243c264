package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"waterwise/internal/cli"
	"waterwise/internal/config"
	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/storage"
)

// sqliteOpener opens a fresh app per command over one database, the way
// separate CLI invocations share the local store.
func sqliteOpener(t *testing.T) opener {
	t.Helper()
	return sqliteOpenerAt(filepath.Join(t.TempDir(), "waterwise.db"))
}

func sqliteOpenerAt(path string) opener {
	cfg := &config.Config{
		UserID:              "cli",
		DataBackend:         "sqlite",
		SQLiteDBPath:        path,
		HistoryFetchTimeout: time.Second,
		HistoryConcurrency:  4,
		HistoryCacheTTL:     time.Minute,
		HistoryCacheSize:    16,
	}
	return func(ctx context.Context) (*cli.App, error) {
		return cli.InitApp(ctx, cfg, applog.Discard())
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddThenToday(t *testing.T) {
	open := sqliteOpener(t)

	if _, err := run(t, open, "add", "500"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := run(t, open, "add", "250"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := run(t, open, "today", "--json")
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	var view struct {
		IntakeTotal int                `json:"intake_total"`
		Events      []core.IntakeEvent `json:"events"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if view.IntakeTotal != 750 || len(view.Events) != 2 {
		t.Fatalf("expected restored tally of 750 over 2 events, got %+v", view)
	}
}

func TestAddRejectsBadAmount(t *testing.T) {
	open := sqliteOpener(t)
	if _, err := run(t, open, "add", "lots"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := run(t, open, "add", "0"); err == nil {
		t.Fatal("expected invalid amount error")
	}
}

func TestHistoryStartsAtFirstRun(t *testing.T) {
	open := sqliteOpener(t)
	if _, err := run(t, open, "add", "300"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, open, "history")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], core.FormatDate(time.Now())) {
		t.Fatalf("expected only today on a fresh install, got:\n%s", out)
	}
}

func TestHistoryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waterwise.db")
	repo, err := storage.NewSQLiteRepository(path, "cli", applog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	p := core.DefaultProfile()
	p.SignUpDate = core.FormatDate(time.Now().AddDate(0, 0, -9))
	if err := repo.SaveProfile(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	open := sqliteOpenerAt(path)
	if _, err := run(t, open, "add", "300"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, open, "history", "-n", "3")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), out)
	}
	today := core.FormatDate(time.Now())
	if !strings.HasPrefix(lines[0], today) || !strings.Contains(lines[0], "300 ml") {
		t.Fatalf("expected today's 300 ml first, got %q", lines[0])
	}
}

func TestProfileUpdate(t *testing.T) {
	open := sqliteOpener(t)
	out, err := run(t, open, "profile", "--goal", "2500", "--name", "Ada")
	if err != nil {
		t.Fatalf("profile update: %v", err)
	}
	if !strings.Contains(out, "Goal:     2500 ml") || !strings.Contains(out, "Name:     Ada") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	if _, err := run(t, open, "profile", "--goal", "100"); err == nil {
		t.Fatal("expected goal validation error")
	}
	out, _ = run(t, open, "profile")
	if !strings.Contains(out, "2500 ml") {
		t.Fatalf("rejected update must not be stored:\n%s", out)
	}
}
