package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
	"fintrack/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger, closer := cli.Bootstrap(applog.ComponentWorker)
	defer closer.Close()

	logger.Info("Starting fintrack-worker")
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker exited with error", "error", err)
		_ = closer.Close()
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required to consume ledger events")
	}

	ctx, stop := cli.ShutdownContext()
	defer stop()

	repo, err := openActivityRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	w := worker.NewActivityWorker(repo, exporter, logger.WithComponent(applog.ComponentWorker))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
		err := client.ConsumeLedgerEvents(gctx, w.HandleLedgerEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// openActivityRepository opens the SQL database holding the activity log.
func openActivityRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLiteDBPath, err)
		}
		return repo, nil
	case "postgres":
		repo, err := storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("the worker records activity in sqlite or postgres, DATA_BACKEND is %q", cfg.DataBackend)
	}
}

func newExporter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.RowAppender, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets export disabled, keeping rows in memory")
		return memory.New(), nil
	}
	creds, err := cfg.ServiceAccountCredentials()
	if err != nil {
		return nil, err
	}
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
	if err != nil {
		return nil, fmt.Errorf("create sheets exporter: %w", err)
	}
	logger.Info("Google Sheets export enabled",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}
