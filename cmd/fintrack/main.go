package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/graphql"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/seed"
	"fintrack/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger, closer := cli.Bootstrap(applog.ComponentApp)
	defer closer.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		_ = closer.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.ShutdownContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create %s backend: %w", cfg.DataBackend, err)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	// Ledger events are best effort: without a broker the server still runs.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		} else {
			publisher = client
			defer client.Close()
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reportCache := cache.NewLRUCache[core.ReportSummary](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "fintrack",
		Subsystem: "report_cache",
		Name:      "entries",
		Help:      "Report summaries currently cached.",
	}, func() float64 { return float64(reportCache.Size()) }))

	members := services.NewMembershipManager(be.Entities, publisher)
	directory := services.NewDirectory(be.Entities, publisher)
	ledger := services.NewExpenseLedger(be.Entities, members, publisher)
	aggregator := services.NewAggregator(be.Entities, be.Transactions, members, reportCache)
	transactions := services.NewTransactionService(be.Transactions, publisher)

	if cfg.SeedDemo {
		res, err := seed.Load(ctx, seed.Deps{
			Directory:    directory,
			Members:      members,
			Ledger:       ledger,
			Transactions: transactions,
		}, seed.Options{})
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info("Demo data seeded", "transactions", res.Transactions, "groups", res.Groups)
	}

	schema, err := graphql.NewSchema(&graphql.Resolver{
		Directory:  directory,
		Members:    members,
		Ledger:     ledger,
		Aggregator: aggregator,
	})
	if err != nil {
		return fmt.Errorf("build graphql schema: %w", err)
	}

	deps := apphttp.Deps{
		Directory:    directory,
		Members:      members,
		Ledger:       ledger,
		Aggregator:   aggregator,
		Transactions: transactions,
		Auth:         auth.NewPasswordAuthenticator(auth.NewMemoryUsers()),
		Tokens:       auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL),
		GraphQL:      graphql.NewHandler(schema),
	}
	if be.Durable() {
		deps.Activity = be.Repository
		deps.Ready = be.Repository.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		EnableH2C:          cfg.EnableH2C,
		Registry:           reg,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			"port", cfg.Port,
			"backend", be.Type.String(),
			"h2c", cfg.EnableH2C)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
