package domain

import "github.com/boddenberg/budget-tracker-go/internal/date"

// Frequency is how often a budget, bill, recurring template or loan repeats.
type Frequency string

const (
	None        Frequency = ""
	Weekly      Frequency = "weekly"
	Fortnightly Frequency = "fortnightly"
	Monthly     Frequency = "monthly"
	Quarterly   Frequency = "quarterly"
	Yearly      Frequency = "yearly"
	Annually    Frequency = "annually"
)

// Next returns d advanced by one period. Unknown frequencies step one month.
func (f Frequency) Next(d date.Date) date.Date {
	switch f {
	case Weekly:
		return d.AddDays(7)
	case Fortnightly:
		return d.AddDays(14)
	case Monthly:
		return d.AddMonths(1)
	case Quarterly:
		return d.AddMonths(3)
	case Yearly, Annually:
		return d.AddYears(1)
	default:
		return d.AddMonths(1)
	}
}
