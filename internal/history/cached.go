package history

import (
	"context"

	"waterwise/internal/cache"
	"waterwise/internal/sheets"
)

// CachedSummer keeps past days' sums in an LRU cache. Today's sum is always
// fetched since it still changes. Failed lookups are not cached.
type CachedSummer struct {
	next  sheets.IntakeSummer
	cache cache.Cache[int]
	today func() string
}

var _ sheets.IntakeSummer = (*CachedSummer)(nil)

func NewCachedSummer(next sheets.IntakeSummer, c cache.Cache[int], today func() string) *CachedSummer {
	return &CachedSummer{next: next, cache: c, today: today}
}

func (s *CachedSummer) FetchIntakeSum(ctx context.Context, date string) (int, error) {
	if date == s.today() {
		return s.next.FetchIntakeSum(ctx, date)
	}
	if v, ok := s.cache.Get(date); ok {
		return v, nil
	}
	v, err := s.next.FetchIntakeSum(ctx, date)
	if err != nil {
		return 0, err
	}
	s.cache.Set(date, v)
	return v, nil
}
