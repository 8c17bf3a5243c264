package adapters

import (
	"context"
	"fmt"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets"
)

// Publisher announces a locally stored event to the sync worker.
type Publisher interface {
	PublishIntakeSync(ctx context.Context, eventID string) error
}

// SQLiteAdapter is the remote mirror used by the sqlite backend: events are
// saved to the local database first and a sync message is published for the
// worker that copies them to Google Sheets. Sums and the goal are answered
// from the local database, which always holds every event.
type SQLiteAdapter struct {
	store     sheets.RemoteSync
	publisher Publisher
	logger    *applog.Logger
}

var _ sheets.RemoteSync = (*SQLiteAdapter)(nil)

// NewSQLiteAdapter wires store and publisher. A nil publisher disables
// messaging; pending rows are then picked up by the worker's startup sweep.
func NewSQLiteAdapter(store sheets.RemoteSync, publisher Publisher, logger *applog.Logger) *SQLiteAdapter {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SQLiteAdapter{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentStorage),
	}
}

// SaveIntakeEvent implements sheets.EventSaver
func (a *SQLiteAdapter) SaveIntakeEvent(ctx context.Context, e core.IntakeEvent) error {
	// Save to SQLite first (fast, reliable)
	if err := a.store.SaveIntakeEvent(ctx, e); err != nil {
		return fmt.Errorf("save intake event: %w", err)
	}

	if a.publisher == nil {
		a.logger.WarnContext(ctx, "AMQP client not available, skipping sync message", applog.FieldEventID, e.ID)
		return nil
	}
	if err := a.publisher.PublishIntakeSync(ctx, e.ID); err != nil {
		// Don't fail the request - the event is saved locally
		a.logger.ErrorContext(ctx, "Failed to publish sync message", applog.FieldEventID, e.ID, applog.FieldError, err)
	}
	return nil
}

// FetchIntakeSum implements sheets.IntakeSummer
func (a *SQLiteAdapter) FetchIntakeSum(ctx context.Context, date string) (int, error) {
	return a.store.FetchIntakeSum(ctx, date)
}

// FetchGoal implements sheets.GoalSync
func (a *SQLiteAdapter) FetchGoal(ctx context.Context) (int, error) {
	return a.store.FetchGoal(ctx)
}

// SaveGoal implements sheets.GoalSync
func (a *SQLiteAdapter) SaveGoal(ctx context.Context, goal int) error {
	if err := a.store.SaveGoal(ctx, goal); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}
