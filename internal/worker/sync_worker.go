// Package worker copies locally stored intake events to Google Sheets.
package worker

import (
	"context"
	"errors"
	"fmt"

	"waterwise/internal/amqp"
	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets"
	"waterwise/internal/storage"
)

// Store is the local outbox the worker drains.
type Store interface {
	GetIntakeEvent(ctx context.Context, id string) (core.IntakeEvent, error)
	SyncStatus(ctx context.Context, id string) (string, error)
	GetPendingSyncEvents(ctx context.Context, limit int) ([]core.IntakeEvent, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker handles synchronization of intake events from SQLite to Google Sheets
type SyncWorker struct {
	store     Store
	sheets    sheets.EventSaver
	batchSize int
	logger    *applog.Logger
}

func NewSyncWorker(store Store, saver sheets.EventSaver, batchSize int, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		sheets:    saver,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleSyncMessage processes a single intake sync message from AMQP.
// Messages for unknown or already synced events are acknowledged without work.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.IntakeSyncMessage) error {
	status, err := w.store.SyncStatus(ctx, msg.EventID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Sync message for unknown event, dropping", applog.FieldEventID, msg.EventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync status: %w", err)
	}
	if status == storage.SyncDone {
		w.logger.DebugContext(ctx, "Event already synced", applog.FieldEventID, msg.EventID)
		return nil
	}

	e, err := w.store.GetIntakeEvent(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("get intake event from storage: %w", err)
	}
	return w.syncEvent(ctx, e)
}

// ProcessPendingEvents syncs one batch of events that haven't been synced
// yet. It backs up the message path in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingEvents(ctx context.Context) (synced int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck sweeps a larger batch at worker startup to recover from
// missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.GetPendingSyncEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending events", "count", len(pending))

	synced := 0
	for _, e := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.syncEvent(ctx, e); err != nil {
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) syncEvent(ctx context.Context, e core.IntakeEvent) error {
	if err := w.sheets.SaveIntakeEvent(ctx, e); err != nil {
		w.logger.ErrorContext(ctx, "Failed to sync intake event", applog.FieldEventID, e.ID, applog.FieldError, err)
		if markErr := w.store.MarkSyncError(ctx, e.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", applog.FieldEventID, e.ID, applog.FieldError, markErr)
		}
		return fmt.Errorf("sync intake event to sheets: %w", err)
	}

	if err := w.store.MarkSynced(ctx, e.ID); err != nil {
		// The row is already in Sheets; a later retry is deduplicated by ID.
		w.logger.WarnContext(ctx, "Failed to mark event as synced", applog.FieldEventID, e.ID, applog.FieldError, err)
	}
	w.logger.InfoContext(ctx, "Synced intake event to Google Sheets",
		applog.FieldEventID, e.ID, applog.FieldDate, e.Date, applog.FieldAmountML, e.Amount)
	return nil
}
