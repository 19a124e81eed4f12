package main

import (
	"context"

	"budgetbot/internal/backend"
	"budgetbot/internal/bot"
	"budgetbot/internal/broker"
	"budgetbot/internal/cli"
	"budgetbot/internal/config"
	httpserver "budgetbot/internal/http"
	"budgetbot/internal/log"
	"budgetbot/internal/storage"
	"budgetbot/internal/telegram"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	logger.Info("Starting budgetbot", "data_backend", cfg.DataBackend, "events_backend", cfg.EventsBackend)

	if err := cfg.Validate(); err != nil {
		cli.Exit(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Exit(logger, "Invalid backend configuration", err)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		cli.Exit(logger, "Failed to open ledger store", err, "backend", cfg.DataBackend)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close ledger store", log.FieldError, err)
		}
	}()

	// The journal mirror is optional: a broker outage must not stop the bot.
	publisher, err := broker.NewPublisher(cfg)
	if err != nil {
		logger.Warn("Events publisher unavailable, journal events disabled", log.FieldError, err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	client, err := telegram.New(cfg.TelegramToken, logger.WithComponent(log.ComponentTelegram))
	if err != nil {
		cli.Exit(logger, "Failed to create Telegram client", err)
	}

	service := bot.NewService(result.Store, cfg.Threads, client, bot.Options{
		Events:   publisher,
		Location: cfg.Location,
		Logger:   logger.WithComponent(log.ComponentBot),
	})

	tasks := []cli.Task{
		func(ctx context.Context) error { return client.Run(ctx, service) },
	}
	if cfg.HealthAddr != "" {
		checks := map[string]httpserver.Check{}
		if p, ok := result.Store.(storage.Pinger); ok {
			checks["store"] = p.Ping
		}
		health := httpserver.NewServer(cfg.HealthAddr, checks, logger.WithComponent(log.ComponentHTTP))
		tasks = append(tasks, health.Run)
	}

	logger.Info("Bot started", "balance_thread", cfg.Threads.Balance)

	if err := cli.Supervise(ctx, logger, cli.ShutdownTimeout, tasks...); err != nil {
		cli.Exit(logger, "Bot stopped", err)
	}
	logger.Info("Bot shutdown complete")
}
