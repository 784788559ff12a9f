package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/config"
	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"
	"github.com/boddenberg/budget-tracker-go/internal/infra/sqlitestore"
	"github.com/boddenberg/budget-tracker-go/internal/service"

	"github.com/google/subcommands"
	"go.uber.org/zap"
)

var commands = []subcommands.Command{
	&exportCmd{},
	&importCmd{},
	&clearCmd{},
	&runJobsCmd{},
	&payLoanCmd{},
	&scheduleCmd{},
	&markBillPaidCmd{},
	&seedCmd{},
}

// withLedger opens the configured store, runs fn against a ledger and
// closes everything again. Metrics are dumped to METRICS_TEXTFILE when set.
func withLedger(ctx context.Context, fn func(ctx context.Context, ledger *service.Ledger) error) subcommands.ExitStatus {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()
	metrics := observability.NewMetrics()

	opener := sqlitestore.NewOpener(sqlitestore.Options{
		Path:         cfg.DBPath,
		OpenTimeout:  cfg.DBOpenTimeout,
		SeedDemoData: cfg.SeedDemoData,
	}, metrics, logger)
	defer opener.Close()

	store, err := opener.OpenWithRetry(ctx, cfg.DBOpenRetries, cfg.DBOpenBackoff)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	ledger := service.NewLedger(store, nil, time.Now, metrics, logger)
	runErr := fn(ctx, ledger)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("failed to write metrics textfile", zap.String("path", cfg.MetricsTextfile), zap.Error(err))
		}
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
