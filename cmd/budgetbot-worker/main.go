package main

import (
	"context"

	"budgetbot/internal/broker"
	"budgetbot/internal/cli"
	"budgetbot/internal/config"
	httpserver "budgetbot/internal/http"
	"budgetbot/internal/log"
	gsheet "budgetbot/internal/sheets/google"
	"budgetbot/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting budgetbot-worker", "events_backend", cfg.EventsBackend)

	if err := cfg.ValidateWorker(); err != nil {
		cli.Exit(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	sheet, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		cli.Exit(logger, "Failed to initialize Google Sheets client", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	consumer, err := broker.NewConsumer(cfg)
	if err != nil {
		cli.Exit(logger, "Failed to initialize events consumer", err)
	}
	defer consumer.Close()

	mirror := worker.NewMirrorWorker(sheet, logger.WithComponent(log.ComponentSheets))

	tasks := []cli.Task{
		func(ctx context.Context) error { return mirror.Run(ctx, consumer) },
	}
	if cfg.HealthAddr != "" {
		health := httpserver.NewServer(cfg.HealthAddr, nil, logger.WithComponent(log.ComponentHTTP))
		tasks = append(tasks, health.Run)
	}

	if err := cli.Supervise(ctx, logger, cli.ShutdownTimeout, tasks...); err != nil {
		cli.Exit(logger, "Message consumption failed", err)
	}
	logger.Info("Worker shutdown complete")
}
