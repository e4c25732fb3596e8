package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-books/meridian-books/internal/app"
	jobmetrics "github.com/meridian-books/meridian-books/internal/jobs"
	"github.com/meridian-books/meridian-books/internal/ledger"
	ledgerhttp "github.com/meridian-books/meridian-books/internal/ledger/http"
	"github.com/meridian-books/meridian-books/internal/observability"
	"github.com/meridian-books/meridian-books/internal/periods"
	periodshttp "github.com/meridian-books/meridian-books/internal/periods/http"
	"github.com/meridian-books/meridian-books/internal/platform/cache"
	"github.com/meridian-books/meridian-books/internal/platform/db"
	"github.com/meridian-books/meridian-books/internal/sequence"
	"github.com/meridian-books/meridian-books/internal/summary"
	summaryhttp "github.com/meridian-books/meridian-books/internal/summary/http"
	"github.com/meridian-books/meridian-books/internal/tax"
	"github.com/meridian-books/meridian-books/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	prefixes, err := sequence.ParseOverrides(cfg.DocPrefixes)
	if err != nil {
		logger.Error("parse document prefixes", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	snapshots := summary.NewSnapshotCache(redisClient, cfg.SummaryTTL)

	periodsRepo := periods.NewRepository(dbpool)
	periodsService := periods.NewService(periodsRepo, snapshots, jobsClient, logger)

	calc := tax.NewCalculator(tax.Config{DefaultVATRate: cfg.DefaultVATRate})

	ledgerRepo := ledger.NewRepository(dbpool, &periods.Guard{}, prefixes)
	ledgerService := ledger.NewService(ledgerRepo, calc, logger)

	metrics := observability.NewMetrics()

	summaryService := summary.NewService(ledgerRepo, periodsService, snapshots, logger)
	summaryService.WithAlerts(jobmetrics.NewMetrics(metrics.Registerer()))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		PeriodsHandler: periodshttp.NewHandler(logger, periodsService),
		LedgerHandler:  ledgerhttp.NewHandler(logger, ledgerService),
		SummaryHandler: summaryhttp.NewHandler(logger, summaryService, periodsService),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
