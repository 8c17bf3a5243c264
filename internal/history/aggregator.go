// Package history turns dated intake events into one HistoryRecord per day
// between the user's sign-up date and today.
package history

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/sheets"
)

// Options tunes the per-date fan-out.
type Options struct {
	// FetchTimeout bounds each per-date query (default: 5s).
	FetchTimeout time.Duration
	// Concurrency caps outstanding queries (default: 8).
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		FetchTimeout: 5 * time.Second,
		Concurrency:  8,
	}
}

type Aggregator struct {
	summer  sheets.IntakeSummer
	profile sheets.ProfileStore
	logger  *applog.Logger
	opts    Options
}

func NewAggregator(summer sheets.IntakeSummer, profile sheets.ProfileStore, logger *applog.Logger, opts Options) *Aggregator {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	def := DefaultOptions()
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	return &Aggregator{
		summer:  summer,
		profile: profile,
		logger:  logger.WithComponent(applog.ComponentHistory),
		opts:    opts,
	}
}

// Aggregate returns one record per date in [startDate, endDate], most recent
// first. A date whose query fails counts as zero intake. Unparseable bounds
// produce an empty history, never an error.
func (a *Aggregator) Aggregate(ctx context.Context, startDate, endDate string, goal int) []core.HistoryRecord {
	dates, err := ParseRange(startDate, endDate)
	if err != nil {
		a.logger.WarnContext(ctx, "No history available",
			applog.FieldError, err, "start_date", startDate, "end_date", endDate)
		return []core.HistoryRecord{}
	}

	days := slices.Collect(dates)
	records := make([]core.HistoryRecord, len(days))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, date := range days {
		g.Go(func() error {
			records[i] = core.NewHistoryRecord(date, a.fetchSum(ctx, date), goal)
			return nil
		})
	}
	// Every worker returns nil; Wait is the join point.
	_ = g.Wait()

	core.SortByDateDesc(records)
	a.logger.DebugContext(ctx, "History aggregated", "days", len(records), applog.FieldGoal, goal)
	return records
}

// History aggregates from the profile's sign-up date through today using the
// profile's goal.
func (a *Aggregator) History(ctx context.Context, today string) []core.HistoryRecord {
	if a.profile == nil {
		return []core.HistoryRecord{}
	}
	p, err := a.profile.Profile(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to load profile for history", applog.FieldError, err)
		return []core.HistoryRecord{}
	}
	return a.Aggregate(ctx, p.SignUpDate, today, p.Goal)
}

func (a *Aggregator) fetchSum(ctx context.Context, date string) int {
	fctx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	sum, err := a.summer.FetchIntakeSum(fctx, date)
	if err != nil {
		a.logger.WarnContext(ctx, "Intake query failed, counting day as zero",
			applog.FieldDate, date, applog.FieldError, err)
		return 0
	}
	if sum < 0 {
		a.logger.WarnContext(ctx, "Negative intake sum ignored", applog.FieldDate, date, "sum", sum)
		return 0
	}
	return sum
}
