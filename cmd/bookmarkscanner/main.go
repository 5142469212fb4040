package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"BookmarkScanner/internal/app"
	"BookmarkScanner/internal/config"
	"BookmarkScanner/internal/logging"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close application", "error", err)
		}
	}()

	cliApp := newCLIApp(application, os.Stdin, os.Stdout, os.Stderr)
	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
