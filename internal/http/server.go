package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/middleware/ratelimit"
	"waterwise/internal/middleware/security"
	"waterwise/internal/middleware/trace"
	"waterwise/internal/services"
)

// IntakeAPI is the application surface the handlers drive.
type IntakeAPI interface {
	Today(ctx context.Context) (services.TodayView, error)
	AddIntake(ctx context.Context, amount int) (core.IntakeEvent, services.TodayView, error)
	History(ctx context.Context) []core.HistoryRecord
	Profile(ctx context.Context) (core.Profile, error)
	UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error)
}

// RealtimeFeed serves the websocket change stream.
type RealtimeFeed interface {
	http.Handler
	Clients() int
}

type Server struct {
	http.Server
	api      IntakeAPI
	feed     RealtimeFeed
	ready    func(ctx context.Context) error
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	metrics  appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	started       time.Time
	intakes       atomic.Int64
	syncFailures  atomic.Int64
	historyServed atomic.Int64
}

type ServerOption func(*Server)

// WithRealtime mounts feed at /ws.
func WithRealtime(feed RealtimeFeed) ServerOption {
	return func(s *Server) { s.feed = feed }
}

// WithReadiness makes /readyz report fn's result.
func WithReadiness(fn func(ctx context.Context) error) ServerOption {
	return func(s *Server) { s.ready = fn }
}

// WithRateLimit replaces the default per-client request budget.
func WithRateLimit(cfg ratelimit.Config) ServerOption {
	return func(s *Server) {
		s.limiter.Stop()
		s.limiter = ratelimit.NewLimiter(cfg)
	}
}

func NewServer(addr string, api IntakeAPI, logger *applog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &Server{
		api:      api,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
	}
	s.metrics.started = time.Now()
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/today", s.handleToday)
	apiMux.HandleFunc("POST /api/intake", s.handleAddIntake)
	apiMux.HandleFunc("GET /api/history", s.handleHistory)
	apiMux.HandleFunc("GET /api/profile", s.handleGetProfile)
	apiMux.HandleFunc("PUT /api/profile", s.handleUpdateProfile)
	mux.Handle("/api/", s.protect(apiMux))
	if s.feed != nil {
		mux.Handle("GET /ws", s.protect(s.feed))
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           trace.Middleware(s.logger, s.detector.ExtractClientIP)(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// protect applies the security headers, scanner filter and rate limit.
func (s *Server) protect(next http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, s.detector.ExtractClientIP(r))
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later").Write(w)
	}
	h := s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(next)
	h = s.detector.Middleware(s.logger)(h)
	return security.Headers(security.DefaultHeadersConfig())(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
