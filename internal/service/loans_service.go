package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/amortization"
	"github.com/boddenberg/budget-tracker-go/internal/date"
	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentRequest is one real-world payment against a loan.
type PaymentRequest struct {
	Amount        float64 `json:"amount"`
	FromAccountID string  `json:"fromAccountId"`
	// PaymentDate defaults to today.
	PaymentDate string `json:"paymentDate,omitempty"`
}

// PaymentResult is the split applied by ProcessPayment.
type PaymentResult struct {
	Principal  float64 `json:"principal"`
	Interest   float64 `json:"interest"`
	NewBalance float64 `json:"newBalance"`
}

// LoanSchedule is a loan's amortization schedule with its totals.
type LoanSchedule struct {
	LoanID        string                `json:"loanId"`
	Payment       float64               `json:"payment"`
	TotalInterest float64               `json:"totalInterest"`
	TotalPaid     float64               `json:"totalPaid"`
	Periods       []amortization.Period `json:"periods"`
}

const (
	loanCategoryName = "Loan Interest"
	loanCategoryIcon = "🏦"
)

// ============================================================
// Payments
// ============================================================

// ProcessPayment applies a payment to a loan. Interest accrues on the loan's
// current balance; the rest repays principal. The loan, the source account,
// the loan transaction and the ledger transaction are written atomically.
func (l *Ledger) ProcessPayment(ctx context.Context, loanID string, req PaymentRequest) (*PaymentResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ProcessPayment")
	defer span.End()
	span.SetAttributes(attribute.String("loan.id", loanID), attribute.Float64("amount", req.Amount))
	defer l.observe("ProcessPayment", time.Now())

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	paidOn := l.today()
	if req.PaymentDate != "" {
		d, err := date.Parse(req.PaymentDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "paymentDate", Message: "invalid format, use YYYY-MM-DD"}
		}
		paidOn = d
	}

	var res PaymentResult
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		loan, loanRec, err := load[domain.Loan](ctx, tx, domain.CollLoans, loanID)
		if err != nil {
			return err
		}
		account, accountRec, err := load[domain.Account](ctx, tx, domain.CollAccounts, req.FromAccountID)
		if err != nil {
			return err
		}

		principal, interest := amortization.Split(loan, req.Amount)
		categoryID, err := l.loanCategoryID(ctx, tx)
		if err != nil {
			return err
		}

		loan.CurrentBalance -= principal
		account.Balance -= req.Amount
		if _, err := save(ctx, tx, domain.CollLoans, loanRec, loan); err != nil {
			return err
		}
		if _, err := save(ctx, tx, domain.CollAccounts, accountRec, account); err != nil {
			return err
		}

		description := "Loan payment - " + loan.Name
		if _, err := insert(ctx, tx, domain.CollLoanTransactions, domain.LoanTransaction{
			LoanID:        loanID,
			Type:          domain.LoanTxPayment,
			Amount:        req.Amount,
			Principal:     principal,
			Interest:      interest,
			Date:          paidOn.String(),
			FromAccountID: req.FromAccountID,
			Description:   description,
		}); err != nil {
			return err
		}
		if _, err := insert(ctx, tx, domain.CollTransactions, domain.Transaction{
			Type:        domain.TypeExpense,
			Amount:      req.Amount,
			Date:        paidOn.String(),
			CategoryID:  categoryID,
			AccountID:   req.FromAccountID,
			Description: description,
		}); err != nil {
			return err
		}

		res = PaymentResult{Principal: principal, Interest: interest, NewBalance: loan.CurrentBalance}
		return nil
	})
	if err != nil {
		l.logger.Warn("loan payment failed",
			zap.String("loan_id", loanID),
			zap.String("account_id", req.FromAccountID),
			zap.Error(err),
		)
		return nil, err
	}

	l.metrics.IncrPosting("loan")
	l.metrics.RecordLoanPayment(res.Principal, res.Interest)
	l.logger.Info("loan payment processed",
		zap.String("loan_id", loanID),
		zap.Float64("amount", req.Amount),
		zap.Float64("principal", res.Principal),
		zap.Float64("interest", res.Interest),
		zap.Float64("new_balance", res.NewBalance),
	)
	return &res, nil
}

// loanCategoryID finds an expense category mentioning "loan", creating
// "Loan Interest" when none exists.
func (l *Ledger) loanCategoryID(ctx context.Context, tx port.RecordTx) (string, error) {
	cats, err := loadAll[domain.Category](ctx, tx, domain.CollCategories)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if c.Type == domain.TypeExpense && strings.Contains(strings.ToLower(c.Name), "loan") {
			return c.ID, nil
		}
	}

	rec, err := insert(ctx, tx, domain.CollCategories, domain.Category{
		Name: loanCategoryName,
		Type: domain.TypeExpense,
		Icon: loanCategoryIcon,
	})
	if err != nil {
		return "", err
	}
	l.logger.Info("loan category created", zap.String("category_id", rec.ID()))
	return rec.ID(), nil
}

// ============================================================
// Calculators
// ============================================================

// LoanSchedule returns the amortization schedule of a stored loan. Schedules
// are cached per loan revision.
func (l *Ledger) LoanSchedule(ctx context.Context, loanID string) (*LoanSchedule, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.LoanSchedule")
	defer span.End()
	span.SetAttributes(attribute.String("loan.id", loanID))

	loan, rec, err := load[domain.Loan](ctx, l.store, domain.CollLoans, loanID)
	if err != nil {
		return nil, err
	}

	key := loanID + "@" + rec.String("updatedAt")
	periods, ok := l.cachedSchedule(key)
	if !ok {
		periods = amortization.Schedule(loan)
		if l.schedules != nil {
			l.schedules.Set(key, periods)
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", ok))

	out := &LoanSchedule{
		LoanID:  loanID,
		Payment: amortization.PaymentAmount(loan),
		Periods: make([]amortization.Period, len(periods)),
	}
	for i, p := range periods {
		out.TotalInterest += p.Interest
		out.TotalPaid += p.Payment
		out.Periods[i] = p.Rounded()
	}
	out.Payment = domain.RoundCents(out.Payment)
	out.TotalInterest = domain.RoundCents(out.TotalInterest)
	out.TotalPaid = domain.RoundCents(out.TotalPaid)
	return out, nil
}

func (l *Ledger) cachedSchedule(key string) ([]amortization.Period, bool) {
	if l.schedules == nil {
		return nil, false
	}
	return l.schedules.Get(key)
}

// NextPayment returns the next scheduled payment of a loan.
func (l *Ledger) NextPayment(ctx context.Context, loanID string) (amortization.NextPayment, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.NextPayment")
	defer span.End()

	loan, _, err := load[domain.Loan](ctx, l.store, domain.CollLoans, loanID)
	if err != nil {
		return amortization.NextPayment{}, err
	}
	return amortization.Next(loan), nil
}

// OffsetSaving returns the monthly interest saved by the loan's linked
// offset account, or 0 when it has none.
func (l *Ledger) OffsetSaving(ctx context.Context, loanID string) (float64, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.OffsetSaving")
	defer span.End()

	loan, _, err := load[domain.Loan](ctx, l.store, domain.CollLoans, loanID)
	if err != nil {
		return 0, err
	}
	if loan.LinkedOffsetID == "" {
		return 0, nil
	}
	offset, _, err := load[domain.Account](ctx, l.store, domain.CollAccounts, loan.LinkedOffsetID)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amortization.OffsetSaving(loan, offset.Balance), nil
}

// ============================================================
// Demo data
// ============================================================

func defaultLoans(start date.Date) []domain.Loan {
	mk := func(id, name, typ string, amount, rate float64, months int) domain.Loan {
		return domain.Loan{
			Meta:             domain.Meta{ID: id},
			Name:             name,
			Type:             typ,
			OriginalAmount:   amount,
			CurrentBalance:   amount,
			InterestRate:     rate,
			TermMonths:       months,
			StartDate:        start.String(),
			PaymentFrequency: domain.Monthly,
			Currency:         "AUD",
		}
	}
	return []domain.Loan{
		mk("loan1", "Home Mortgage", "mortgage", 300000, 4.5, 360),
		mk("loan2", "Car Loan", "vehicle", 25000, 6.2, 60),
		mk("loan3", "Personal Loan", "personal", 10000, 8.0, 36),
		mk("loan4", "Student Loan", "education", 15000, 3.5, 120),
	}
}

// SeedDefaultLoans adds the demo loans whose ids are not present yet and
// returns how many were added.
func (l *Ledger) SeedDefaultLoans(ctx context.Context) (int, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.SeedDefaultLoans")
	defer span.End()

	added := 0
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		added = 0
		for _, loan := range defaultLoans(l.today()) {
			_, err := tx.Get(ctx, domain.CollLoans, loan.ID)
			if err == nil {
				continue
			}
			if !isNotFound(err) {
				return err
			}
			if _, err := insert(ctx, tx, domain.CollLoans, loan); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	l.logger.Info("default loans seeded", zap.Int("added", added))
	return added, nil
}
