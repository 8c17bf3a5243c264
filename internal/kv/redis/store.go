// Package redis keeps the profile and today's tally in a Redis hash, one
// hash per user.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets"
)

const (
	fieldName       = "name"
	fieldGoal       = "goal"
	fieldWeight     = "weight"
	fieldGender     = "gender"
	fieldSignUpDate = "sign_up_date"
	fieldIntake     = "intake"
	fieldDailyState = "daily_state"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Store struct {
	rdb    goredis.UniversalClient
	key    string
	logger *applog.Logger
}

var _ sheets.ProfileStore = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options, userID string, logger *applog.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewWithClient(rdb, userID, logger), nil
}

func NewWithClient(rdb goredis.UniversalClient, userID string, logger *applog.Logger) *Store {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if userID == "" {
		userID = "local"
	}
	return &Store{
		rdb:    rdb,
		key:    "waterwise:user:" + userID,
		logger: logger.WithComponent(applog.ComponentKV),
	}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Profile(ctx context.Context) (core.Profile, error) {
	vals, err := s.rdb.HMGet(ctx, s.key, fieldName, fieldGoal, fieldWeight, fieldGender, fieldSignUpDate).Result()
	if err != nil {
		return core.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p := core.DefaultProfile()
	if v, ok := vals[0].(string); ok {
		p.Name = v
	}
	if v, ok := vals[1].(string); ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Goal = n
		}
	}
	if v, ok := vals[2].(string); ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Weight = n
		}
	}
	if v, ok := vals[3].(string); ok {
		p.Gender = v
	}
	if v, ok := vals[4].(string); ok {
		p.SignUpDate = v
	}
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := s.rdb.HSet(ctx, s.key, map[string]any{
		fieldName:       p.Name,
		fieldGoal:       p.Goal,
		fieldWeight:     p.Weight,
		fieldGender:     p.Gender,
		fieldSignUpDate: p.SignUpDate,
	}).Err()
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.logger.InfoContext(ctx, "Profile saved", applog.FieldGoal, p.Goal)
	return nil
}

func (s *Store) Goal(ctx context.Context) (int, error) {
	v, err := s.rdb.HGet(ctx, s.key, fieldGoal).Int()
	if errors.Is(err, goredis.Nil) {
		return core.DefaultGoal, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read goal: %w", err)
	}
	return v, nil
}

func (s *Store) SetIntakeTotal(ctx context.Context, total int) error {
	if err := s.rdb.HSet(ctx, s.key, fieldIntake, total).Err(); err != nil {
		return fmt.Errorf("save intake total: %w", err)
	}
	return nil
}

func (s *Store) SaveDailyState(ctx context.Context, st core.DailyState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode daily state: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.key, fieldDailyState, b).Err(); err != nil {
		return fmt.Errorf("save daily state: %w", err)
	}
	return nil
}

func (s *Store) LoadDailyState(ctx context.Context) (core.DailyState, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.key, fieldDailyState).Bytes()
	if errors.Is(err, goredis.Nil) {
		return core.DailyState{}, false, nil
	}
	if err != nil {
		return core.DailyState{}, false, fmt.Errorf("read daily state: %w", err)
	}
	var st core.DailyState
	if err := json.Unmarshal(raw, &st); err != nil {
		return core.DailyState{}, false, fmt.Errorf("decode daily state: %w", err)
	}
	return st, true, nil
}
