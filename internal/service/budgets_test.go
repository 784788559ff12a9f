package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/service"
)

func TestConvertAmount(t *testing.T) {
	tests := []struct {
		from, to domain.Frequency
		amount   float64
		want     float64
	}{
		{domain.Weekly, domain.Monthly, 100, 433},
		{domain.Monthly, domain.Weekly, 433, 100},
		{domain.Monthly, domain.Yearly, 100, 1200},
		{domain.Monthly, domain.Annually, 100, 1200},
		{domain.Yearly, domain.Quarterly, 400, 100},
		{domain.Fortnightly, domain.Monthly, 100, 217},
		{domain.Monthly, domain.Monthly, 42, 42},
		{domain.Frequency("daily"), domain.Monthly, 42, 42},
	}
	for _, tt := range tests {
		got := service.ConvertAmount(tt.amount, tt.from, tt.to)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s->%s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestConvertAmount_RoundTrip(t *testing.T) {
	freqs := []domain.Frequency{domain.Weekly, domain.Fortnightly, domain.Monthly, domain.Quarterly, domain.Yearly}
	for _, from := range freqs {
		for _, to := range freqs {
			back := service.ConvertAmount(service.ConvertAmount(123.45, from, to), to, from)
			if math.Abs(back-123.45) > 1e-9 {
				t.Errorf("%s->%s->%s: got %v", from, to, from, back)
			}
		}
	}
}

func TestBudgetGoals(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.CollBudgets, domain.Record{"id": "b1", "categoryId": "food", "amount": 100.0, "frequency": "weekly"})
	f.add(t, domain.CollBudgets, domain.Record{"id": "b2", "categoryId": "rent", "amount": 1200.0})

	goals, err := f.ledger.BudgetGoals(context.Background(), domain.Monthly)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(goals))
	}
	if goals[0].Goal != 433 || goals[0].View != "monthly" {
		t.Errorf("unexpected weekly goal %+v", goals[0])
	}
	if goals[1].Goal != 1200 {
		t.Errorf("budgets without frequency are monthly, got %+v", goals[1])
	}
}
