package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"waterwise/internal/core"
	"waterwise/internal/sheets"
)

// Store keeps the profile, today's tally and every intake event in process
// memory. It serves as both the profile store and the remote mirror.
type Store struct {
	mu      sync.Mutex
	profile core.Profile
	total   int
	state   *core.DailyState
	events  []core.IntakeEvent
}

var (
	_ sheets.ProfileStore = (*Store)(nil)
	_ sheets.RemoteSync   = (*Store)(nil)
)

func New(profile core.Profile, events []core.IntakeEvent) *Store {
	return &Store{profile: profile, events: slices.Clone(events)}
}

// NewFromFiles seeds past intake from base/seed_intake.txt, one
// "YYYY-MM-DD amount" pair per line. Missing files yield an empty store with
// the default profile.
func NewFromFiles(base string) *Store {
	var events []core.IntakeEvent
	for _, line := range readLines(filepath.Join(base, "seed_intake.txt")) {
		e, ok := parseSeedLine(line)
		if !ok {
			continue
		}
		events = append(events, e)
	}
	return New(core.DefaultProfile(), events)
}

func (s *Store) Profile(_ context.Context) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	return nil
}

func (s *Store) Goal(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Goal, nil
}

func (s *Store) SetIntakeTotal(_ context.Context, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
	return nil
}

func (s *Store) SaveDailyState(_ context.Context, st core.DailyState) error {
	st.Events = slices.Clone(st.Events)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &st
	return nil
}

func (s *Store) LoadDailyState(_ context.Context) (core.DailyState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return core.DailyState{}, false, nil
	}
	st := *s.state
	st.Events = slices.Clone(st.Events)
	return st, true, nil
}

// SaveIntakeEvent appends the event. Saving the same ID twice keeps one copy.
func (s *Store) SaveIntakeEvent(_ context.Context, e core.IntakeEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.events, func(x core.IntakeEvent) bool { return x.ID == e.ID }) {
		return nil
	}
	s.events = append(s.events, e)
	return nil
}

func (s *Store) FetchIntakeSum(ctx context.Context, date string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := 0
	for _, e := range s.events {
		if e.Date == date {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (s *Store) FetchGoal(ctx context.Context) (int, error) {
	return s.Goal(ctx)
}

func (s *Store) SaveGoal(_ context.Context, goal int) error {
	if !core.ValidGoal(goal) {
		return core.ErrInvalidGoal
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.Goal = goal
	return nil
}

// Events returns a copy of every stored event.
func (s *Store) Events() []core.IntakeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func parseSeedLine(line string) (core.IntakeEvent, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 2 {
		return core.IntakeEvent{}, false
	}
	if _, err := core.ParseDate(fields[0]); err != nil {
		return core.IntakeEvent{}, false
	}
	amount, err := strconv.Atoi(fields[1])
	if err != nil || !core.ValidAmount(amount) {
		return core.IntakeEvent{}, false
	}
	e := core.NewIntakeEvent(amount, "12:00 PM", fields[0])
	return e, true
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
