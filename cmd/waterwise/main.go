package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"waterwise/internal/cli"
	apphttp "waterwise/internal/http"
	applog "waterwise/internal/log"
	"waterwise/internal/realtime"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	app, err := cli.InitApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	hub := realtime.NewHub(logger)
	unsubscribe := app.Service.Subscribe(hub.Publish)

	srv := apphttp.NewServer(":"+cfg.Port, app.Service, logger,
		apphttp.WithRealtime(hub),
		apphttp.WithReadiness(app.Backend.Ping))
	srv.WriteTimeout = 30 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		unsubscribe()
		hub.Close()
		return errors.Join(srv.Shutdown(ctx), app.Close())
	})

	logger.Info("Starting waterwise server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend, applog.FieldUserID, cfg.UserID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
