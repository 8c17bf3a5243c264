package sheets

import (
	"context"

	"waterwise/internal/core"
)

// Ports for outbound adapters.
type (
	// ProfileStore is the local key-value persistence behind the profile and
	// today's running tally.
	ProfileStore interface {
		Profile(ctx context.Context) (core.Profile, error)
		SaveProfile(ctx context.Context, p core.Profile) error
		Goal(ctx context.Context) (int, error)
		SetIntakeTotal(ctx context.Context, total int) error
		SaveDailyState(ctx context.Context, s core.DailyState) error
		// LoadDailyState returns ok=false when nothing was saved yet.
		LoadDailyState(ctx context.Context) (s core.DailyState, ok bool, err error)
	}

	// EventSaver durably stores a single intake event.
	EventSaver interface {
		SaveIntakeEvent(ctx context.Context, e core.IntakeEvent) error
	}

	// IntakeSummer answers "sum of amounts for date D". Dates without events sum to 0.
	IntakeSummer interface {
		FetchIntakeSum(ctx context.Context, date string) (int, error)
	}

	// GoalSync reads and writes the goal as mirrored to the remote store.
	GoalSync interface {
		FetchGoal(ctx context.Context) (int, error)
		SaveGoal(ctx context.Context, goal int) error
	}

	// RemoteSync is the durable, eventually consistent mirror of intake events
	// and the daily goal.
	RemoteSync interface {
		EventSaver
		IntakeSummer
		GoalSync
	}
)
