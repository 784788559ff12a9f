package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/date"
	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BillsReport lists what one ProcessDueBills run did.
type BillsReport struct {
	Paid    []string `json:"paid"`
	Skipped []string `json:"skipped"`
}

// MarkPaidResult describes a manual bill payment.
type MarkPaidResult struct {
	BillID string `json:"billId"`
	// TransactionID is empty when the bill has no account.
	TransactionID string   `json:"transactionId,omitempty"`
	NextBills     []string `json:"nextBills"`
}

// Reasons a due bill stays unpaid.
const (
	skipMissingAccount    = "missing_account"
	skipInsufficientFunds = "insufficient_funds"
	skipInvalidDueDate    = "invalid_due_date"
)

// nextOccurrences is how many future bills paying a recurring bill creates.
const nextOccurrences = 2

var billCategoryRules = []struct {
	keywords []string
	category string
}{
	{[]string{"electric", "gas", "water", "power", "utility", "internet", "phone", "mobile"}, "Utilities"},
	{[]string{"rent", "mortgage"}, "Rent"},
}

// guessBillCategory maps a bill name onto a category by keyword. Bills that
// match nothing go to "Other Expenses". Returns "" when the category does not
// exist.
func guessBillCategory(billName string, cats []domain.Category) string {
	name := strings.ToLower(billName)
	target := "Other Expenses"
rules:
	for _, rule := range billCategoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				target = rule.category
				break rules
			}
		}
	}
	for _, c := range cats {
		if c.Name == target {
			return c.ID
		}
	}
	return ""
}

// ============================================================
// Auto-pay
// ============================================================

// ProcessDueBills pays every unpaid bill with an account whose due date has
// passed, when the account balance covers it. Bills that cannot be paid are
// left for the next run.
func (l *Ledger) ProcessDueBills(ctx context.Context) (*BillsReport, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ProcessDueBills")
	defer span.End()

	bills, err := loadAll[domain.Bill](ctx, l.store, domain.CollBills)
	if err != nil {
		return nil, err
	}

	today := l.today()
	report := &BillsReport{Paid: []string{}, Skipped: []string{}}
	for _, bill := range bills {
		if bill.Paid || bill.AccountID == "" {
			continue
		}
		due, err := date.Parse(bill.DueDate)
		if err != nil {
			l.skipBill(report, bill, skipInvalidDueDate, err)
			continue
		}
		if due.After(today) {
			continue
		}

		paid, err := l.autoPay(ctx, bill, today)
		var short *domain.ErrInsufficientFunds
		switch {
		case err == nil:
			if paid {
				report.Paid = append(report.Paid, bill.ID)
			}
		case errors.As(err, &short):
			l.skipBill(report, bill, skipInsufficientFunds, err)
		case isNotFound(err):
			l.skipBill(report, bill, skipMissingAccount, err)
		default:
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("paid", len(report.Paid)), attribute.Int("skipped", len(report.Skipped)))
	return report, nil
}

func (l *Ledger) skipBill(report *BillsReport, bill domain.Bill, reason string, err error) {
	report.Skipped = append(report.Skipped, bill.ID)
	l.metrics.IncrBillSkipped(reason)
	l.logger.Info("due bill left unpaid",
		zap.String("bill_id", bill.ID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

// autoPay posts the bill, marks it paid and debits its account in one
// transaction. It reports false when the bill turned out to be paid already.
func (l *Ledger) autoPay(ctx context.Context, bill domain.Bill, today date.Date) (bool, error) {
	paid := false
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		// Re-read inside the transaction: the bill may have been paid since.
		current, billRec, err := load[domain.Bill](ctx, tx, domain.CollBills, bill.ID)
		if err != nil {
			return err
		}
		if current.Paid {
			return nil
		}
		account, accountRec, err := load[domain.Account](ctx, tx, domain.CollAccounts, current.AccountID)
		if err != nil {
			return err
		}
		if account.Balance < current.Amount {
			return &domain.ErrInsufficientFunds{AccountID: account.ID, Available: account.Balance, Required: current.Amount}
		}

		cats, err := loadAll[domain.Category](ctx, tx, domain.CollCategories)
		if err != nil {
			return err
		}
		if _, err := insert(ctx, tx, domain.CollTransactions, domain.Transaction{
			Type:        domain.TypeExpense,
			Amount:      current.Amount,
			Date:        today.String(),
			CategoryID:  guessBillCategory(current.Name, cats),
			AccountID:   current.AccountID,
			Description: "Bill: " + current.Name,
			BillID:      current.ID,
		}); err != nil {
			return err
		}

		current.Paid = true
		if _, err := save(ctx, tx, domain.CollBills, billRec, current); err != nil {
			return err
		}
		account.Balance -= current.Amount
		if _, err := save(ctx, tx, domain.CollAccounts, accountRec, account); err != nil {
			return err
		}
		paid = true
		return nil
	})
	if err != nil || !paid {
		return false, err
	}

	l.metrics.IncrPosting("bill")
	l.logger.Info("bill auto-paid",
		zap.String("bill_id", bill.ID),
		zap.String("account_id", bill.AccountID),
		zap.Float64("amount", bill.Amount),
	)
	return true, nil
}

// ============================================================
// Manual payment
// ============================================================

// MarkBillPaid marks a bill paid on the user's behalf. A transaction is
// posted when the bill has an account, without a balance check or debit.
// Paying a recurring bill creates its next two occurrences.
func (l *Ledger) MarkBillPaid(ctx context.Context, billID string) (*MarkPaidResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.MarkBillPaid")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", billID))
	defer l.observe("MarkBillPaid", time.Now())

	res := &MarkPaidResult{BillID: billID}
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		res.TransactionID, res.NextBills = "", []string{}

		bill, billRec, err := load[domain.Bill](ctx, tx, domain.CollBills, billID)
		if err != nil {
			return err
		}
		if bill.Paid {
			return &domain.ErrValidation{Field: "paid", Message: "bill is already paid"}
		}

		bill.Paid = true
		if _, err := save(ctx, tx, domain.CollBills, billRec, bill); err != nil {
			return err
		}

		if bill.AccountID != "" {
			cats, err := loadAll[domain.Category](ctx, tx, domain.CollCategories)
			if err != nil {
				return err
			}
			rec, err := insert(ctx, tx, domain.CollTransactions, domain.Transaction{
				Type:        domain.TypeExpense,
				Amount:      bill.Amount,
				Date:        l.today().String(),
				CategoryID:  guessBillCategory(bill.Name, cats),
				AccountID:   bill.AccountID,
				Description: "Bill: " + bill.Name,
				BillID:      bill.ID,
			})
			if err != nil {
				return err
			}
			res.TransactionID = rec.ID()
		}

		if bill.Recurring == domain.None {
			return nil
		}
		due, err := date.Parse(bill.DueDate)
		if err != nil {
			return &domain.ErrValidation{Field: "dueDate", Message: err.Error()}
		}
		for i := 0; i < nextOccurrences; i++ {
			due = bill.Recurring.Next(due)
			rec, err := insert(ctx, tx, domain.CollBills, domain.Bill{
				Name:      bill.Name,
				Amount:    bill.Amount,
				DueDate:   due.String(),
				AccountID: bill.AccountID,
				Recurring: bill.Recurring,
				Paid:      false,
			})
			if err != nil {
				return err
			}
			res.NextBills = append(res.NextBills, rec.ID())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.TransactionID != "" {
		l.metrics.IncrPosting("bill_manual")
	}
	l.logger.Info("bill marked paid",
		zap.String("bill_id", billID),
		zap.String("transaction_id", res.TransactionID),
		zap.Int("next_bills", len(res.NextBills)),
	)
	return res, nil
}
