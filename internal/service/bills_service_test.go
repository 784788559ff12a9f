package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
)

func TestProcessDueBills_InsufficientFundsLeavesBillUnpaid(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.CollAccounts, domain.Record{"id": "A1", "type": "bank", "balance": 50.0})
	f.add(t, domain.CollBills, domain.Record{"id": "B1", "name": "Water", "amount": 100.0, "dueDate": "2025-06-01", "accountId": "A1"})

	report, err := f.ledger.ProcessDueBills(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(report.Paid) != 0 || len(report.Skipped) != 1 {
		t.Errorf("expected the bill skipped, got %+v", report)
	}
	if f.get(t, domain.CollBills, "B1")["paid"] == true {
		t.Error("bill must stay unpaid")
	}
	if got := num(t, f.get(t, domain.CollAccounts, "A1"), "balance"); got != 50 {
		t.Errorf("balance must be unchanged, got %v", got)
	}
	if n := len(f.all(t, domain.CollTransactions)); n != 0 {
		t.Errorf("expected no transaction, got %d", n)
	}
	if got := f.metrics.BillsSkipped("insufficient_funds"); got != 1 {
		t.Errorf("expected skip metric 1, got %v", got)
	}
}

func TestProcessDueBills_PaysDueBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, domain.CollCategories, domain.Record{"id": "u", "name": "Utilities", "type": "expense"})
	f.add(t, domain.CollCategories, domain.Record{"id": "o", "name": "Other Expenses", "type": "expense"})
	f.add(t, domain.CollAccounts, domain.Record{"id": "A1", "type": "bank", "balance": 500.0})
	f.add(t, domain.CollBills, domain.Record{"id": "power", "name": "Power bill", "amount": 120.0, "dueDate": "2025-06-15", "accountId": "A1"})
	f.add(t, domain.CollBills, domain.Record{"id": "gym", "name": "Gym", "amount": 30.0, "dueDate": "2025-06-10", "accountId": "A1"})
	f.add(t, domain.CollBills, domain.Record{"id": "later", "name": "Insurance", "amount": 90.0, "dueDate": "2025-06-16", "accountId": "A1"})
	f.add(t, domain.CollBills, domain.Record{"id": "manual", "name": "Rent", "amount": 900.0, "dueDate": "2025-06-01"})
	f.add(t, domain.CollBills, domain.Record{"id": "done", "name": "Phone", "amount": 40.0, "dueDate": "2025-06-01", "accountId": "A1", "paid": true})

	report, err := f.ledger.ProcessDueBills(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(report.Paid) != 2 || len(report.Skipped) != 0 {
		t.Fatalf("expected power and gym paid, got %+v", report)
	}
	if got := num(t, f.get(t, domain.CollAccounts, "A1"), "balance"); got != 350 {
		t.Errorf("expected balance 350, got %v", got)
	}
	if f.get(t, domain.CollBills, "power")["paid"] != true || f.get(t, domain.CollBills, "gym")["paid"] != true {
		t.Error("paid bills must be marked paid")
	}
	if f.get(t, domain.CollBills, "later")["paid"] == true {
		t.Error("bills not yet due must stay unpaid")
	}

	byBill := map[string]domain.Record{}
	for _, tx := range f.all(t, domain.CollTransactions) {
		byBill[tx.String("billId")] = tx
	}
	if byBill["power"]["categoryId"] != "u" {
		t.Errorf("expected power bill in Utilities, got %v", byBill["power"]["categoryId"])
	}
	if byBill["gym"]["categoryId"] != "o" {
		t.Errorf("expected gym in Other Expenses, got %v", byBill["gym"]["categoryId"])
	}
	if byBill["gym"]["description"] != "Bill: Gym" || byBill["gym"]["date"] != "2025-06-15" {
		t.Errorf("unexpected transaction %v", byBill["gym"])
	}
	if got := f.metrics.Postings("bill"); got != 2 {
		t.Errorf("expected 2 bill postings, got %v", got)
	}

	// Paid bills are not paid twice.
	report, err = f.ledger.ProcessDueBills(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(report.Paid) != 0 {
		t.Errorf("expected nothing paid on rerun, got %+v", report)
	}
}

func TestProcessDueBills_SkipsUnusableBills(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.CollBills, domain.Record{"id": "ghost", "name": "Ghost", "amount": 10.0, "dueDate": "2025-06-01", "accountId": "gone"})
	f.add(t, domain.CollBills, domain.Record{"id": "bad", "name": "Bad", "amount": 10.0, "dueDate": "01/06/2025", "accountId": "gone"})

	report, err := f.ledger.ProcessDueBills(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(report.Skipped) != 2 {
		t.Errorf("expected both bills skipped, got %+v", report)
	}
	if got := f.metrics.BillsSkipped("missing_account"); got != 1 {
		t.Errorf("expected missing_account 1, got %v", got)
	}
	if got := f.metrics.BillsSkipped("invalid_due_date"); got != 1 {
		t.Errorf("expected invalid_due_date 1, got %v", got)
	}
}

func TestRunJobs_PostsRecurringBeforeBills(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.CollAccounts, domain.Record{"id": "A1", "type": "bank", "balance": 10.0})
	f.add(t, domain.CollRecurringTransactions, domain.Record{
		"id": "salary", "name": "Salary", "type": "income", "amount": 1000.0,
		"startDate": "2025-05-15", "frequency": "monthly", "categoryId": "inc",
	})
	f.add(t, domain.CollBills, domain.Record{"id": "B1", "name": "Water", "amount": 8.0, "dueDate": "2025-06-14", "accountId": "A1"})

	report, err := f.ledger.RunJobs(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(report.Recurring.Posted) != 1 || len(report.Bills.Paid) != 1 {
		t.Errorf("unexpected report %+v %+v", report.Recurring, report.Bills)
	}
	// Recurring postings record a transaction without moving balances.
	if got := num(t, f.get(t, domain.CollAccounts, "A1"), "balance"); got != 2 {
		t.Errorf("expected balance 2, got %v", got)
	}
}

func TestMarkBillPaid_RecurringCreatesNextBills(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.CollAccounts, domain.Record{"id": "A1", "type": "bank", "balance": 0.0})
	f.add(t, domain.CollBills, domain.Record{
		"id": "rent", "name": "Rent", "amount": 900.0, "dueDate": "2025-01-31",
		"accountId": "A1", "recurring": "monthly", "notes": "keep me",
	})

	res, err := f.ledger.MarkBillPaid(context.Background(), "rent")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.TransactionID == "" {
		t.Error("expected a transaction for a bill with an account")
	}
	if len(res.NextBills) != 2 {
		t.Fatalf("expected 2 next bills, got %v", res.NextBills)
	}

	paid := f.get(t, domain.CollBills, "rent")
	if paid["paid"] != true || paid["notes"] != "keep me" {
		t.Errorf("unexpected paid bill %v", paid)
	}
	wantDue := []string{"2025-03-03", "2025-04-03"}
	for i, id := range res.NextBills {
		next := f.get(t, domain.CollBills, id)
		if next["paid"] != false || next["dueDate"] != wantDue[i] || next["recurring"] != "monthly" {
			t.Errorf("unexpected next bill %d: %v", i, next)
		}
	}
	if got := num(t, f.get(t, domain.CollAccounts, "A1"), "balance"); got != 0 {
		t.Errorf("manual payment must not debit, got %v", got)
	}
}

func TestMarkBillPaid_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, domain.CollBills, domain.Record{"id": "paid", "name": "x", "amount": 1.0, "dueDate": "2025-06-01", "paid": true})
	f.add(t, domain.CollBills, domain.Record{"id": "once", "name": "y", "amount": 1.0, "dueDate": "2025-06-01"})

	var validation *domain.ErrValidation
	if _, err := f.ledger.MarkBillPaid(ctx, "paid"); !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation for a paid bill, got %v", err)
	}
	var notFound *domain.ErrNotFound
	if _, err := f.ledger.MarkBillPaid(ctx, "nope"); !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	res, err := f.ledger.MarkBillPaid(ctx, "once")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.TransactionID != "" || len(res.NextBills) != 0 {
		t.Errorf("one-off bill without account posts nothing, got %+v", res)
	}
}
