// Package cli holds the startup and shutdown steps shared by cmd/budgetbot
// and cmd/budgetbot-worker.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetbot/internal/config"
	"budgetbot/internal/log"
)

// ShutdownTimeout bounds how long running tasks get to stop after a signal.
const ShutdownTimeout = 30 * time.Second

// Task is a long-running part of a process. It returns when ctx is done.
type Task func(ctx context.Context) error

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and sets
// it as the default logger.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Component = component
	lc.Output = os.Stdout
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// Exit logs the failure and terminates the process.
func Exit(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Supervise runs the tasks until one fails or ctx is done. After ctx is done
// the tasks get timeout to return. A clean shutdown returns nil.
func Supervise(ctx context.Context, logger *log.Logger, timeout time.Duration, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		if task == nil {
			continue
		}
		task := task
		g.Go(func() error { return task(gctx) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return ignoreCanceled(err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	select {
	case err := <-done:
		logger.Info("Shutdown complete")
		return ignoreCanceled(err)
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
		return nil
	}
}

func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
