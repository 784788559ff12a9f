package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/date"
	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// smallExpense is the amount below which expenses go to a credit account.
const smallExpense = 50

// RecurringReport lists what one ProcessRecurring run did.
type RecurringReport struct {
	// Posted holds the ids of the transactions created.
	Posted []string `json:"posted"`
	// Skipped holds the ids of templates whose dates could not be read.
	Skipped []string `json:"skipped"`
}

// JobsReport is the combined result of RunJobs.
type JobsReport struct {
	Recurring *RecurringReport `json:"recurring"`
	Bills     *BillsReport     `json:"bills"`
}

// RunJobs posts due recurring templates, then auto-pays due bills.
func (l *Ledger) RunJobs(ctx context.Context) (*JobsReport, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.RunJobs")
	defer span.End()
	defer l.observe("RunJobs", time.Now())

	rec, err := l.ProcessRecurring(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := l.ProcessDueBills(ctx)
	if err != nil {
		return nil, err
	}

	l.logger.Info("posting jobs finished",
		zap.Int("recurring_posted", len(rec.Posted)),
		zap.Int("recurring_skipped", len(rec.Skipped)),
		zap.Int("bills_paid", len(bills.Paid)),
		zap.Int("bills_skipped", len(bills.Skipped)),
	)
	return &JobsReport{Recurring: rec, Bills: bills}, nil
}

// ProcessRecurring posts at most one transaction per recurring template.
// A template is due once today reaches its watermark (or start date) plus one
// period. Posting advances the watermark by exactly one period, so missed
// periods are not caught up in the same run.
//
// The watermark is set to the due date just posted, never to today: after a
// long gap each later run posts the next missed period, one per run. This
// catch-up is intended.
func (l *Ledger) ProcessRecurring(ctx context.Context) (*RecurringReport, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ProcessRecurring")
	defer span.End()

	templates, err := loadAll[domain.RecurringTransaction](ctx, l.store, domain.CollRecurringTransactions)
	if err != nil {
		return nil, err
	}
	accounts, err := loadAll[domain.Account](ctx, l.store, domain.CollAccounts)
	if err != nil {
		return nil, err
	}

	today := l.today()
	report := &RecurringReport{Posted: []string{}, Skipped: []string{}}
	for _, t := range templates {
		txID, err := l.postRecurring(ctx, t, accounts, today)
		if err != nil {
			var invalid *domain.ErrValidation
			if errors.As(err, &invalid) {
				l.logger.Warn("recurring template skipped", zap.String("recurring_id", t.ID), zap.Error(err))
				report.Skipped = append(report.Skipped, t.ID)
				continue
			}
			return nil, err
		}
		if txID != "" {
			report.Posted = append(report.Posted, txID)
		}
	}

	span.SetAttributes(attribute.Int("posted", len(report.Posted)))
	return report, nil
}

// postRecurring posts one template when due and returns the new
// transaction id, or "" when the template is not due yet.
func (l *Ledger) postRecurring(ctx context.Context, t domain.RecurringTransaction, accounts []domain.Account, today date.Date) (string, error) {
	var txID string
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		mark, markRec, err := load[domain.Watermark](ctx, tx, domain.CollMeta, domain.WatermarkID(t.ID))
		if err != nil && !isNotFound(err) {
			return err
		}

		baseStr := t.StartDate
		if markRec != nil {
			baseStr = mark.Date
		}
		base, err := date.Parse(baseStr)
		if err != nil {
			return &domain.ErrValidation{Field: "startDate", Message: err.Error()}
		}

		nextDue := t.Frequency.Next(base)
		if today.Before(nextDue) {
			return nil
		}

		rec, err := insert(ctx, tx, domain.CollTransactions, domain.Transaction{
			Type:        t.Type,
			Amount:      t.Amount,
			Date:        today.String(),
			CategoryID:  t.CategoryID,
			AccountID:   pickAccount(t, accounts),
			Description: "Auto: " + t.Name,
			RecurringID: t.ID,
		})
		if err != nil {
			return err
		}

		next := domain.Watermark{
			Meta:        domain.Meta{ID: domain.WatermarkID(t.ID)},
			Kind:        domain.WatermarkKind,
			RecurringID: t.ID,
			Date:        nextDue.String(),
		}
		if markRec != nil {
			_, err = save(ctx, tx, domain.CollMeta, markRec, next)
		} else {
			_, err = insert(ctx, tx, domain.CollMeta, next)
		}
		if err != nil {
			return err
		}

		txID = rec.ID()
		return nil
	})
	if err != nil {
		return "", err
	}

	if txID != "" {
		l.metrics.IncrPosting("recurring")
		l.logger.Info("recurring transaction posted",
			zap.String("recurring_id", t.ID),
			zap.String("transaction_id", txID),
			zap.Float64("amount", t.Amount),
		)
	}
	return txID, nil
}

// pickAccount resolves the account a template posts to. Only bank accounts
// with a positive balance qualify as the default bank.
func pickAccount(t domain.RecurringTransaction, accounts []domain.Account) string {
	if t.AccountID != "" {
		return t.AccountID
	}

	var bank, credit, first string
	for _, a := range accounts {
		if first == "" {
			first = a.ID
		}
		if bank == "" && a.Type == domain.AccountBank && a.Balance > 0 {
			bank = a.ID
		}
		if credit == "" && a.Type == domain.AccountCredit {
			credit = a.ID
		}
	}

	switch {
	case t.Type == domain.TypeIncome:
		if bank != "" {
			return bank
		}
	case t.Amount < smallExpense && credit != "":
		return credit
	case t.Amount >= smallExpense && bank != "":
		return bank
	}
	return first
}
