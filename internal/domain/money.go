package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when an account or loan has no currency set.
const DefaultCurrency = "USD"

// RoundCents rounds a monetary value to two decimals for display.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatMoney renders an amount in its currency, e.g. "$1,234.50".
func FormatMoney(amount float64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	cur := money.New(0, currency).Currency()
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
