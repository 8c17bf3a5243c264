// Package ratelimit caps requests per client in fixed windows of one minute by default.
// Routes listed in Config.Routes get a budget of their own; every other
// request draws from the shared default budget.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const staleAfter = 10 * time.Minute

type Config struct {
	// RequestsPerMinute is the shared budget per client.
	RequestsPerMinute int
	// Routes maps "METHOD /path" to a separate per-client budget.
	Routes          map[string]int
	Window          time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		Routes: map[string]int{
			"POST /api/intake": 30,
		},
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type bucketKey struct {
	route, client string
}

type window struct {
	start time.Time
	count int
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*window
	cfg     Config
	now     func() time.Time
	hits    atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	rl := &Limiter{
		buckets: make(map[bucketKey]*window),
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow counts one request by client against route's budget. Routes without
// a dedicated budget share the default one.
func (rl *Limiter) Allow(route, client string) bool {
	key, limit := rl.bucket(route, client)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, exists := rl.buckets[key]
	if !exists || now.Sub(w.start) >= rl.cfg.Window {
		rl.buckets[key] = &window{start: now, count: 1}
		return true
	}
	if w.count >= limit {
		rl.hits.Add(1)
		return false
	}
	w.count++
	return true
}

// RetryAfter is how long until client's window for route resets.
func (rl *Limiter) RetryAfter(route, client string) time.Duration {
	key, _ := rl.bucket(route, client)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.buckets[key]
	if !ok {
		return 0
	}
	return max(w.start.Add(rl.cfg.Window).Sub(rl.now()), 0)
}

func (rl *Limiter) bucket(route, client string) (bucketKey, int) {
	if limit, ok := rl.cfg.Routes[route]; ok && limit > 0 {
		return bucketKey{route: route, client: client}, limit
	}
	return bucketKey{client: client}, rl.cfg.RequestsPerMinute
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.dropStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *Limiter) dropStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-staleAfter)
	for k, w := range rl.buckets {
		if w.start.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics reports rejected requests so far and the number of distinct
// clients currently tracked.
func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	clients := make(map[string]struct{}, len(rl.buckets))
	for k := range rl.buckets {
		clients[k.client] = struct{}{}
	}
	rl.mu.Unlock()
	return Metrics{TotalHits: rl.hits.Load(), ClientCount: int64(len(clients))}
}

// Middleware rejects over-budget requests with 429, or hands them to onLimit
// when set. Retry-After is always filled in.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.Method + " " + r.URL.Path
			client := extractIP(r)
			if rl.Allow(route, client) {
				next.ServeHTTP(w, r)
				return
			}
			secs := int(rl.RetryAfter(route, client).Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
