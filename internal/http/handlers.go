package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	"waterwise/internal/services"
)

type addIntakeResponse struct {
	Event  core.IntakeEvent   `json:"event"`
	Today  services.TodayView `json:"today"`
	Synced bool               `json:"synced"`
}

type historyResponse struct {
	Records []core.HistoryRecord `json:"records"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the backing stores
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			ServiceUnavailableError("backend not ready").Write(w)
			return
		}
	}
	NewJSONResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	clients := 0
	if s.feed != nil {
		clients = s.feed.Clients()
	}
	rl := s.limiter.GetMetrics()

	fmt.Fprintf(w, "waterwise_uptime_seconds %d\n", int64(time.Since(s.metrics.started).Seconds()))
	fmt.Fprintf(w, "waterwise_intakes_total %d\n", s.metrics.intakes.Load())
	fmt.Fprintf(w, "waterwise_sync_failures_total %d\n", s.metrics.syncFailures.Load())
	fmt.Fprintf(w, "waterwise_history_requests_total %d\n", s.metrics.historyServed.Load())
	fmt.Fprintf(w, "waterwise_websocket_clients %d\n", clients)
	fmt.Fprintf(w, "waterwise_rate_limit_hits_total %d\n", rl.TotalHits)
	fmt.Fprintf(w, "waterwise_rate_limit_clients %d\n", rl.ClientCount)
	fmt.Fprintf(w, "waterwise_suspicious_requests_total %d\n", s.detector.SuspiciousRequests())
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	view, err := s.api.Today(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(view).Write(w)
}

// handleAddIntake accepts {"amount": 250} or amount=250. The event is kept
// even when the remote mirror fails; synced=false reports that case.
func (s *Server) handleAddIntake(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	amount, err := p.Int("amount")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	event, view, err := s.api.AddIntake(r.Context(), amount)
	synced := true
	switch {
	case errors.Is(err, core.ErrSyncFailure):
		synced = false
		s.metrics.syncFailures.Add(1)
	case err != nil:
		s.writeError(w, r, err)
		return
	}
	s.metrics.intakes.Add(1)

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogIntakeRecorded(r.Context(), event.ID, event.Date, event.Amount, synced)

	NewJSONResponse().
		Status(http.StatusCreated).
		JSON(addIntakeResponse{Event: event, Today: view, Synced: synced}).
		Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records := s.api.History(r.Context())
	s.metrics.historyServed.Add(1)
	NewJSONResponse().JSON(historyResponse{Records: records}).Write(w)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.api.Profile(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(p).Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in core.Profile
	if err := NewRequestBodyParser(w, r).Decode(&in); err != nil {
		BadRequestError("invalid profile payload").Write(w)
		return
	}
	in.Name = sanitizeInput(in.Name)
	in.Gender = sanitizeInput(in.Gender)

	out, err := s.api.UpdateProfile(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(out).Write(w)
}

// writeError maps domain errors to status codes. Anything unknown is a 500
// and is logged with the request-scoped logger.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidGoal),
		errors.Is(err, core.ErrInvalidWeight),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrMalformedDate):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, core.ErrStaleDate):
		ConflictError(err.Error()).Write(w)
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, r.Method+" "+r.URL.Path)
		InternalServerError("internal error").Write(w)
	}
}
