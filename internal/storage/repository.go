package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets"
)

// Sync states of a locally stored intake event.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// Profile keys stored in profile_kv.
const (
	keyName       = "name"
	keyGoal       = "goal"
	keyWeight     = "weight"
	keyGender     = "gender"
	keySignUpDate = "sign_up_date"
	keyIntake     = "intake"
	keyDailyState = "daily_state"
)

var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db     *sql.DB
	userID string
	logger *applog.Logger
}

var (
	_ sheets.ProfileStore = (*SQLiteRepository)(nil)
	_ sheets.RemoteSync   = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the database at dbPath,
// applies migrations and scopes every query to userID.
func NewSQLiteRepository(dbPath, userID string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if strings.TrimSpace(userID) == "" {
		userID = "local"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if err := migrateFile(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		userID: userID,
		logger: logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Profile returns the stored profile, filling unset fields with defaults.
func (r *SQLiteRepository) Profile(ctx context.Context) (core.Profile, error) {
	kv, err := r.getKeys(ctx, keyName, keyGoal, keyWeight, keyGender, keySignUpDate)
	if err != nil {
		return core.Profile{}, err
	}
	p := core.DefaultProfile()
	if v, ok := kv[keyName]; ok {
		p.Name = v
	}
	if v, ok := kv[keyGender]; ok {
		p.Gender = v
	}
	if v, ok := kv[keySignUpDate]; ok {
		p.SignUpDate = v
	}
	if v, ok := kv[keyGoal]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Goal = n
		}
	}
	if v, ok := kv[keyWeight]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Weight = n
		}
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		keyName:       p.Name,
		keyGoal:       strconv.Itoa(p.Goal),
		keyWeight:     strconv.Itoa(p.Weight),
		keyGender:     p.Gender,
		keySignUpDate: p.SignUpDate,
	} {
		if err := putKey(ctx, tx, r.userID, key, value); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile: %w", err)
	}
	r.logger.InfoContext(ctx, "Profile saved", applog.FieldGoal, p.Goal)
	return nil
}

func (r *SQLiteRepository) Goal(ctx context.Context) (int, error) {
	p, err := r.Profile(ctx)
	if err != nil {
		return 0, err
	}
	return p.Goal, nil
}

func (r *SQLiteRepository) SetIntakeTotal(ctx context.Context, total int) error {
	return putKey(ctx, r.db, r.userID, keyIntake, strconv.Itoa(total))
}

func (r *SQLiteRepository) SaveDailyState(ctx context.Context, s core.DailyState) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode daily state: %w", err)
	}
	return putKey(ctx, r.db, r.userID, keyDailyState, string(b))
}

func (r *SQLiteRepository) LoadDailyState(ctx context.Context) (core.DailyState, bool, error) {
	kv, err := r.getKeys(ctx, keyDailyState)
	if err != nil {
		return core.DailyState{}, false, err
	}
	raw, ok := kv[keyDailyState]
	if !ok {
		return core.DailyState{}, false, nil
	}
	var s core.DailyState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return core.DailyState{}, false, fmt.Errorf("decode daily state: %w", err)
	}
	return s, true, nil
}

// SaveIntakeEvent stores e as pending sync. Saving an existing ID is a no-op.
func (r *SQLiteRepository) SaveIntakeEvent(ctx context.Context, e core.IntakeEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO intake_events (id, user_id, date, time, amount, sync_status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		e.ID, r.userID, e.Date, e.Time, e.Amount, SyncPending)
	if err != nil {
		return fmt.Errorf("insert intake event: %w", err)
	}
	r.logger.DebugContext(ctx, "Intake event saved to SQLite",
		applog.FieldEventID, e.ID, applog.FieldDate, e.Date, applog.FieldAmountML, e.Amount)
	return nil
}

func (r *SQLiteRepository) FetchIntakeSum(ctx context.Context, date string) (int, error) {
	var sum int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM intake_events WHERE user_id = ? AND date = ?`,
		r.userID, date).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum intake for %s: %w", date, err)
	}
	return sum, nil
}

func (r *SQLiteRepository) FetchGoal(ctx context.Context) (int, error) {
	return r.Goal(ctx)
}

// SaveGoal updates only the goal key.
func (r *SQLiteRepository) SaveGoal(ctx context.Context, goal int) error {
	if !core.ValidGoal(goal) {
		return fmt.Errorf("%w: %d", core.ErrInvalidGoal, goal)
	}
	return putKey(ctx, r.db, r.userID, keyGoal, strconv.Itoa(goal))
}

// GetIntakeEvent returns the event with the given ID or ErrNotFound.
func (r *SQLiteRepository) GetIntakeEvent(ctx context.Context, id string) (core.IntakeEvent, error) {
	var e core.IntakeEvent
	err := r.db.QueryRowContext(ctx,
		`SELECT id, date, time, amount FROM intake_events WHERE id = ?`, id).
		Scan(&e.ID, &e.Date, &e.Time, &e.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.IntakeEvent{}, fmt.Errorf("intake event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.IntakeEvent{}, fmt.Errorf("get intake event %s: %w", id, err)
	}
	return e, nil
}

// GetPendingSyncEvents returns up to limit events not yet mirrored, oldest first.
// Events previously marked with a sync error are retried too.
func (r *SQLiteRepository) GetPendingSyncEvents(ctx context.Context, limit int) ([]core.IntakeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, time, amount FROM intake_events
		WHERE user_id = ? AND sync_status IN (?, ?)
		ORDER BY created_at, id
		LIMIT ?`, r.userID, SyncPending, SyncError, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync events: %w", err)
	}
	defer rows.Close()

	var out []core.IntakeEvent
	for rows.Next() {
		var e core.IntakeEvent
		if err := rows.Scan(&e.ID, &e.Date, &e.Time, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SyncStatus reports the sync state of one event.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM intake_events WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("intake event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get sync status %s: %w", id, err)
	}
	return status, nil
}

// MarkSynced marks an event as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, SyncDone); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "Intake event marked as synced", applog.FieldEventID, id)
	return nil
}

// MarkSyncError marks an event as failed so that the next sweep retries it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return err
	}
	r.logger.WarnContext(ctx, "Intake event marked with sync error", applog.FieldEventID, id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE intake_events
		SET sync_status = ?, synced_at = CASE WHEN ? = 'synced' THEN CURRENT_TIMESTAMP ELSE synced_at END
		WHERE id = ?`, status, status, id)
	if err != nil {
		return fmt.Errorf("mark intake event %s %s: %w", id, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("intake event %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) getKeys(ctx context.Context, keys ...string) (map[string]string, error) {
	args := make([]any, 0, len(keys)+1)
	args = append(args, r.userID)
	for _, k := range keys {
		args = append(args, k)
	}
	q := `SELECT key, value FROM profile_kv WHERE user_id = ? AND key IN (?` +
		strings.Repeat(", ?", len(keys)-1) + `)`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("read profile keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan profile key: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putKey(ctx context.Context, db execer, userID, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO profile_kv (user_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value)
	if err != nil {
		return fmt.Errorf("write profile key %s: %w", key, err)
	}
	return nil
}
