// Package cli provides common initialization utilities shared by
// cmd/waterwise, cmd/waterwise-worker and cmd/waterwise-cli.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"waterwise/internal/backend"
	"waterwise/internal/cache"
	"waterwise/internal/config"
	"waterwise/internal/core"
	"waterwise/internal/history"
	applog "waterwise/internal/log"
	"waterwise/internal/services"
	"waterwise/internal/storage"
)

// SetupLogger builds the process logger for level and installs it as the
// slog default.
func SetupLogger(level string) *applog.Logger {
	logger := applog.New(applog.Config{Level: applog.ParseLevel(level)})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, sets up the logger at the
// configured level and validates. It exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes the SQLite repository from cfg.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, cfg *config.Config) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.UserID, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	return repo
}

// App bundles the service graph built from one configuration.
type App struct {
	Service *services.IntakeService
	Backend *backend.BackendResult
	Caches  *cache.Manager
}

// Close releases the caches and the backend.
func (a *App) Close() error {
	a.Caches.Stop()
	return a.Backend.Cleanup()
}

// InitApp wires backend, history cache, aggregator and intake service.
func InitApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	caches := cache.NewManager(logger)
	sums := cache.NewLRUCache[int](cfg.HistoryCacheSize, cfg.HistoryCacheTTL)
	caches.Register(sums)
	if cfg.HistoryCacheTTL > 0 {
		caches.StartCleanup(cfg.HistoryCacheTTL)
	}

	today := func() string { return core.FormatDate(time.Now()) }
	summer := history.NewCachedSummer(res.Remote, sums, today)
	agg := history.NewAggregator(summer, res.Profile, logger, history.Options{
		FetchTimeout: cfg.HistoryFetchTimeout,
		Concurrency:  cfg.HistoryConcurrency,
	})
	svc := services.NewIntakeService(ctx, res.Profile, res.Remote, agg, logger)

	return &App{Service: svc, Backend: res, Caches: caches}, nil
}

// GracefulShutdown cancels the returned context on SIGINT or SIGTERM and
// then runs cleanup within timeout. done is closed once cleanup returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup == nil {
			return
		}
		if err := cleanup(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Shutdown timeout reached")
				return
			}
			logger.Error("Shutdown error", applog.FieldError, err)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
