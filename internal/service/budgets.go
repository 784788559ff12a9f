package service

import (
	"context"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
)

// budgetMultipliers converts a goal from the outer frequency to the inner
// one. The reverse direction is the exact reciprocal, so converting there
// and back returns the original amount.
var budgetMultipliers = map[domain.Frequency]map[domain.Frequency]float64{
	domain.Weekly: {
		domain.Fortnightly: 2,
		domain.Monthly:     4.33,
		domain.Quarterly:   13,
		domain.Yearly:      52,
	},
	domain.Fortnightly: {
		domain.Monthly:   2.17,
		domain.Quarterly: 6.5,
		domain.Yearly:    26,
	},
	domain.Monthly: {
		domain.Quarterly: 3,
		domain.Yearly:    12,
	},
	domain.Quarterly: {
		domain.Yearly: 4,
	},
}

// ConvertAmount restates an amount budgeted at one frequency at another.
// Unknown frequencies convert 1:1.
func ConvertAmount(amount float64, from, to domain.Frequency) float64 {
	from, to = canonical(from), canonical(to)
	if from == to {
		return amount
	}
	if m, ok := budgetMultipliers[from][to]; ok {
		return amount * m
	}
	if m, ok := budgetMultipliers[to][from]; ok {
		return amount / m
	}
	return amount
}

func canonical(f domain.Frequency) domain.Frequency {
	if f == domain.Annually {
		return domain.Yearly
	}
	return f
}

// BudgetGoal is a budget with its goal restated at a viewing frequency.
type BudgetGoal struct {
	domain.Budget
	Goal float64 `json:"goal"`
	View string  `json:"view"`
}

// BudgetGoals lists every budget converted to the view frequency. Budgets
// without a frequency are treated as monthly.
func (l *Ledger) BudgetGoals(ctx context.Context, view domain.Frequency) ([]BudgetGoal, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.BudgetGoals")
	defer span.End()

	budgets, err := loadAll[domain.Budget](ctx, l.store, domain.CollBudgets)
	if err != nil {
		return nil, err
	}
	out := make([]BudgetGoal, 0, len(budgets))
	for _, b := range budgets {
		from := b.Frequency
		if from == domain.None {
			from = domain.Monthly
		}
		out = append(out, BudgetGoal{
			Budget: b,
			Goal:   domain.RoundCents(ConvertAmount(b.Amount, from, view)),
			View:   string(view),
		})
	}
	return out, nil
}
