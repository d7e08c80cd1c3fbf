package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/siteworks/procurement-backend/api/routes"
	"github.com/siteworks/procurement-backend/internal/creditnotes"
	"github.com/siteworks/procurement-backend/internal/debitnotes"
	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/config"
	"github.com/siteworks/procurement-backend/pkg/db"
	"github.com/siteworks/procurement-backend/pkg/logger"
	"github.com/siteworks/procurement-backend/pkg/metrics"
	"github.com/siteworks/procurement-backend/pkg/migrate"
	"github.com/siteworks/procurement-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	debitRepo := debitnotes.NewRepository(dbClient.DB())
	creditRepo := creditnotes.NewRepository(dbClient.DB())

	allocator, err := settlement.NewAllocator(settlement.AllocatorParams{
		Debits:      debitRepo,
		Credits:     creditRepo,
		Logger:      logg,
		Metrics:     metrics.NewSettlementMetrics(registry),
		MaxAttempts: cfg.Settlement.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement allocator", err)
		os.Exit(1)
	}

	debitNoteService, err := debitnotes.NewService(debitRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create debit notes service", err)
		os.Exit(1)
	}
	creditNoteService, err := creditnotes.NewService(creditRepo, allocator)
	if err != nil {
		logg.Error(context.Background(), "failed to create credit notes service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, debitNoteService, creditNoteService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
