// Package domain contains the persisted entities of the budget tracker and
// the error taxonomy shared by the store and the services.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Collection names a keyed table of records.
type Collection string

const (
	CollAccounts              Collection = "accounts"
	CollCategories            Collection = "categories"
	CollTransactions          Collection = "transactions"
	CollBudgets               Collection = "budgets"
	CollBills                 Collection = "bills"
	CollRecurringTransactions Collection = "recurringTransactions"
	CollMeta                  Collection = "meta"
	CollLoans                 Collection = "loans"
	CollLoanTransactions      Collection = "loanTransactions"
	CollProperties            Collection = "properties"
	CollTenants               Collection = "tenants"
	CollExpenses              Collection = "expenses"
	CollMaintenance           Collection = "maintenance"
	CollCostBase              Collection = "costbase"
)

// Collections lists every collection in schema order.
var Collections = []Collection{
	CollAccounts,
	CollCategories,
	CollTransactions,
	CollBudgets,
	CollBills,
	CollRecurringTransactions,
	CollMeta,
	CollLoans,
	CollLoanTransactions,
	CollProperties,
	CollTenants,
	CollExpenses,
	CollMaintenance,
	CollCostBase,
}

// ParseCollection validates a collection name.
func ParseCollection(name string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == name {
			return c, nil
		}
	}
	return "", &ErrUnknownCollection{Name: name}
}

// Meta holds the fields the store maintains on every record.
type Meta struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// ============================================================
// Accounts & categories
// ============================================================

const (
	AccountBank       = "bank"
	AccountCredit     = "credit"
	AccountCash       = "cash"
	AccountSavings    = "savings"
	AccountInvestment = "investment"
	AccountOffset     = "offset"
	AccountOther      = "other"
)

type Account struct {
	Meta
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Balance     float64  `json:"balance"`
	Currency    string   `json:"currency,omitempty"`
	CreditLimit *float64 `json:"creditLimit,omitempty"`
}

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

type Category struct {
	Meta
	Name     string `json:"name"`
	Type     string `json:"type"`
	Icon     string `json:"icon,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

// ============================================================
// Ledger
// ============================================================

type Transaction struct {
	Meta
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	CategoryID    string  `json:"categoryId"`
	AccountID     string  `json:"accountId,omitempty"`
	Description   string  `json:"description,omitempty"`
	PropertyID    string  `json:"propertyId,omitempty"`
	BillID        string  `json:"billId,omitempty"`
	MaintenanceID string  `json:"maintenanceId,omitempty"`
	RecurringID   string  `json:"recurringId,omitempty"`
}

type Budget struct {
	Meta
	CategoryID string    `json:"categoryId"`
	Amount     float64   `json:"amount"`
	Frequency  Frequency `json:"frequency"`
	Icon       string    `json:"icon,omitempty"`
}

type Bill struct {
	Meta
	Name      string    `json:"name"`
	Amount    float64   `json:"amount"`
	DueDate   string    `json:"dueDate"`
	AccountID string    `json:"accountId,omitempty"`
	Recurring Frequency `json:"recurring"`
	Paid      bool      `json:"paid"`
}

type RecurringTransaction struct {
	Meta
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Amount     float64   `json:"amount"`
	AccountID  string    `json:"accountId,omitempty"`
	CategoryID string    `json:"categoryId"`
	StartDate  string    `json:"startDate"`
	Frequency  Frequency `json:"frequency"`
}

// Watermark records the last period a recurring template was posted for.
// Stored in the meta collection under WatermarkID(recurringID).
type Watermark struct {
	Meta
	Kind        string `json:"kind"`
	RecurringID string `json:"recurringId"`
	Date        string `json:"date"`
}

const WatermarkKind = "recurringWatermark"

// WatermarkID is the meta key holding the watermark of a recurring template.
func WatermarkID(recurringID string) string { return "rec_last_" + recurringID }

// ============================================================
// Loans
// ============================================================

type Loan struct {
	Meta
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	OriginalAmount   float64   `json:"originalAmount"`
	CurrentBalance   float64   `json:"currentBalance"`
	InterestRate     float64   `json:"interestRate"`
	TermMonths       int       `json:"termMonths"`
	StartDate        string    `json:"startDate"`
	PaymentFrequency Frequency `json:"paymentFrequency"`
	Currency         string    `json:"currency,omitempty"`
	LinkedOffsetID   string    `json:"linkedOffsetId,omitempty"`
}

const LoanTxPayment = "payment"

type LoanTransaction struct {
	Meta
	LoanID        string  `json:"loanId"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Principal     float64 `json:"principal"`
	Interest      float64 `json:"interest"`
	Date          string  `json:"date"`
	FromAccountID string  `json:"fromAccountId"`
	Description   string  `json:"description,omitempty"`
}

// ============================================================
// Property management
// ============================================================

type Property struct {
	Meta
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type Tenant struct {
	Meta
	PropertyID string  `json:"propertyId"`
	Name       string  `json:"name"`
	Rent       float64 `json:"rent,omitempty"`
}

// Amount is a number that also accepts numeric strings, as hand-entered
// form values were persisted either way.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*a = Amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if s == "" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparsable form input counts as zero.
		*a = 0
		return nil
	}
	*a = Amount(f)
	return nil
}

// Maintenance is a property job mirrored into one expense transaction.
type Maintenance struct {
	Meta
	PropertyID string `json:"propertyId"`
	Title      string `json:"title,omitempty"`
	Category   string `json:"category,omitempty"`
	Cost       Amount `json:"cost"`
	Date       string `json:"date"`
}
