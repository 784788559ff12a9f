package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/amortization"
	"github.com/boddenberg/budget-tracker-go/internal/config"
	"github.com/boddenberg/budget-tracker-go/internal/handler"
	"github.com/boddenberg/budget-tracker-go/internal/infra/cache"
	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"
	"github.com/boddenberg/budget-tracker-go/internal/infra/sqlitestore"
	"github.com/boddenberg/budget-tracker-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.Duration("db_open_timeout", cfg.DBOpenTimeout),
		zap.Int("db_open_retries", cfg.DBOpenRetries),
		zap.Bool("seed_demo_data", cfg.SeedDemoData),
		zap.Bool("run_jobs_on_start", cfg.RunJobsOnStart),
		zap.Duration("jobs_interval", cfg.JobsInterval),
		zap.Duration("schedule_cache_ttl", cfg.ScheduleCacheTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "budgetd")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	opener := sqlitestore.NewOpener(sqlitestore.Options{
		Path:         cfg.DBPath,
		OpenTimeout:  cfg.DBOpenTimeout,
		SeedDemoData: cfg.SeedDemoData,
	}, metrics, logger)
	defer opener.Close()

	store, err := opener.OpenWithRetry(context.Background(), cfg.DBOpenRetries, cfg.DBOpenBackoff)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	// --- Cache ---
	schedules := cache.New[[]amortization.Period](cfg.ScheduleCacheTTL)
	defer schedules.Close()

	// --- Services ---
	ledger := service.NewLedger(store, schedules, time.Now, metrics, logger)
	jobs := service.NewJobRunner(ledger, cfg.JobsCooldown, logger)

	if cfg.RunJobsOnStart {
		if _, err := jobs.RunOnce(context.Background()); err != nil {
			logger.Error("startup posting jobs failed", zap.Error(err))
		}
	}

	// --- Background jobs ---
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if cfg.JobsInterval > 0 {
		go jobs.Run(jobsCtx, cfg.JobsInterval)
	}

	// --- Router ---
	ready := func() bool { return opener.State() == sqlitestore.StateOpen }
	router := handler.NewRouter(ledger, jobs, ready, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopJobs()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
