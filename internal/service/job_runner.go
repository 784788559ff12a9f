package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// JobRunner runs the posting jobs one at a time, on demand and on a timer.
// After three failed runs in a row the jobs are suspended for the cooldown.
type JobRunner struct {
	ledger   *Ledger
	breaker  *gobreaker.CircuitBreaker
	bulkhead *resilience.Bulkhead
	logger   *zap.Logger
}

// NewJobRunner creates a runner for ledger's posting jobs.
func NewJobRunner(ledger *Ledger, cooldown time.Duration, logger *zap.Logger) *JobRunner {
	return &JobRunner{
		ledger:   ledger,
		breaker:  resilience.NewCircuitBreaker("posting-jobs", cooldown, logger),
		bulkhead: resilience.NewBulkhead(1),
		logger:   logger,
	}
}

// RunOnce runs the posting jobs, waiting for a run already in progress.
func (j *JobRunner) RunOnce(ctx context.Context) (*JobsReport, error) {
	ctx, span := ledgerTracer.Start(ctx, "JobRunner.RunOnce",
		trace.WithAttributes(attribute.String("breaker.state", j.breaker.State().String())))
	defer span.End()

	if err := j.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer j.bulkhead.Release()

	result, err := j.breaker.Execute(func() (any, error) {
		return j.ledger.RunJobs(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.ErrJobsSuspended{Err: err}
	}
	if err != nil {
		return nil, err
	}
	return result.(*JobsReport), nil
}

// Run calls RunOnce every interval until ctx is done.
func (j *JobRunner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("scheduled posting jobs failed", zap.Error(err))
			}
		}
	}
}
