package autojournal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MappingPurpose names a configured account slot consulted by generators.
type MappingPurpose string

const (
	PurposeTaxInput       MappingPurpose = "tax_input"
	PurposeDefaultPayable MappingPurpose = "default_payable"
	PurposeBankClearing   MappingPurpose = "bank_clearing"
)

// AccountMapping binds a purpose to a ledger account.
type AccountMapping struct {
	ID        int64
	Purpose   MappingPurpose
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpenseSource carries the mapped fields of an approved expense record.
// The caller supplies every field; the generator never fetches master data.
type ExpenseSource struct {
	ID               uuid.UUID
	Number           string
	Date             time.Time
	Amount           decimal.Decimal
	TaxAmount        decimal.Decimal
	Currency         string
	ExchangeRate     decimal.Decimal
	ExpenseAccountID int64
	PaymentAccountID *int64
	ExpenseRecordID  *int64
	SupplierID       *int64
	CreatedBy        int64
}

// Total returns amount plus tax.
func (s ExpenseSource) Total() decimal.Decimal {
	return s.Amount.Add(s.TaxAmount)
}

// BankAdjustmentSource carries a reconciliation adjustment to be journaled.
// Amount is signed: positive means the bank account gains value.
type BankAdjustmentSource struct {
	ID              uuid.UUID
	Date            time.Time
	Amount          decimal.Decimal
	Currency        string
	BankGLAccountID int64
	Description     string
	CreatedBy       int64
}
