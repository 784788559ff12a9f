// Package amortization computes fixed-payment loan schedules. Every function
// is pure: the same loan always yields the same result.
package amortization

import (
	"math"

	"github.com/boddenberg/budget-tracker-go/internal/date"
	"github.com/boddenberg/budget-tracker-go/internal/domain"

	"github.com/shopspring/decimal"
)

// PaidOff is the due date reported once no scheduled balance remains.
const PaidOff = "Paid off"

// Period is one scheduled payment.
type Period struct {
	Period    int       `json:"period"`
	Date      date.Date `json:"date"`
	Payment   float64   `json:"payment"`
	Principal float64   `json:"principal"`
	Interest  float64   `json:"interest"`
	Balance   float64   `json:"balance"`
}

// Rounded returns a copy with every amount rounded to cents. Accumulation
// happens on the unrounded values.
func (p Period) Rounded() Period {
	p.Payment = domain.RoundCents(p.Payment)
	p.Principal = domain.RoundCents(p.Principal)
	p.Interest = domain.RoundCents(p.Interest)
	p.Balance = domain.RoundCents(p.Balance)
	return p
}

// NextPayment is the first scheduled payment still outstanding.
type NextPayment struct {
	Amount  float64 `json:"amount"`
	DueDate string  `json:"dueDate"`
}

// MonthlyRate converts the annual percentage rate into a monthly fraction.
func MonthlyRate(loan domain.Loan) float64 {
	return loan.InterestRate / 100 / 12
}

// PaymentAmount is the fixed annuity payment over the loan's term. It is
// computed from the original amount, never the current balance.
func PaymentAmount(loan domain.Loan) float64 {
	n := float64(loan.TermMonths)
	if loan.TermMonths <= 0 {
		return 0
	}
	r := MonthlyRate(loan)
	if r == 0 {
		return loan.OriginalAmount / n
	}
	f := math.Pow(1+r, n)
	return loan.OriginalAmount * r * f / (f - 1)
}

// Schedule simulates the loan month by month from its start date, starting
// at the original amount. It stops early once the balance reaches zero.
// The payment frequency is not taken into account.
func Schedule(loan domain.Loan) []Period {
	if loan.TermMonths <= 0 {
		return nil
	}

	payment := PaymentAmount(loan)
	r := MonthlyRate(loan)
	due, _ := date.Parse(loan.StartDate)

	schedule := make([]Period, 0, loan.TermMonths)
	balance := loan.OriginalAmount
	for i := 1; i <= loan.TermMonths; i++ {
		if balance <= 0 {
			break
		}
		interest := balance * r
		principal := math.Min(payment-interest, balance)
		balance = math.Max(0, balance-principal)
		// Floating point leaves a sub-cent residue after the last annuity
		// payment.
		if i == loan.TermMonths && balance < 1e-6 {
			balance = 0
		}

		schedule = append(schedule, Period{
			Period:    i,
			Date:      due,
			Payment:   payment,
			Principal: principal,
			Interest:  interest,
			Balance:   balance,
		})
		// Steps accumulate, so a month-end start drifts once it overflows.
		if !due.IsZero() {
			due = due.AddMonths(1)
		}
	}
	return schedule
}

// Next returns the first schedule entry with a remaining balance.
func Next(loan domain.Loan) NextPayment {
	for _, p := range Schedule(loan) {
		if p.Balance > 0 {
			due := ""
			if !p.Date.IsZero() {
				due = p.Date.Display()
			}
			return NextPayment{Amount: p.Payment, DueDate: due}
		}
	}
	return NextPayment{Amount: 0, DueDate: PaidOff}
}

// TotalInterest sums the interest over the whole schedule.
func TotalInterest(loan domain.Loan) float64 {
	total := decimal.Zero
	for _, p := range Schedule(loan) {
		total = total.Add(decimal.NewFromFloat(p.Interest))
	}
	f, _ := total.Float64()
	return f
}

// Split divides a payment into interest on the current balance and the
// principal it repays. The principal may be negative when the payment does
// not cover the interest.
func Split(loan domain.Loan, amount float64) (principal, interest float64) {
	interest = loan.CurrentBalance * MonthlyRate(loan)
	principal = math.Min(amount-interest, loan.CurrentBalance)
	return principal, interest
}

// OffsetSaving is the monthly interest a linked offset balance saves.
func OffsetSaving(loan domain.Loan, offsetBalance float64) float64 {
	effective := math.Max(loan.CurrentBalance-offsetBalance, 0)
	return (loan.CurrentBalance - effective) * MonthlyRate(loan)
}
