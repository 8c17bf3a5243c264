package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"waterwise/internal/cli"
	"waterwise/internal/config"
	applog "waterwise/internal/log"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openFromEnv builds the application from the environment. Logs go to
// stderr at warn level so command output stays clean.
func openFromEnv(ctx context.Context) (*cli.App, error) {
	cfg := config.Load()
	level := applog.ParseLevel(cfg.LogLevel)
	if os.Getenv("LOG_LEVEL") == "" {
		level = slog.LevelWarn
	}
	logger := applog.NewText(os.Stderr, level).WithComponent(applog.ComponentCLI)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cli.InitApp(ctx, cfg, logger)
}
