package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// LineInput describes one journal line for entry creation. Amounts are
// decimals; monetary strings are parsed at the handler boundary.
type LineInput struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	CustomerID  *int64
	SupplierID  *int64
	ProductID   *int64
	ExpenseID   *int64
}

// CreateEntryInput groups fields required to create a journal entry.
type CreateEntryInput struct {
	Date         time.Time
	Type         EntryType
	Reference    *Reference
	Memo         string
	Currency     string
	ExchangeRate decimal.Decimal
	CreatedBy    int64
	AutoPost     bool
	Lines        []LineInput
}

// Validate ensures the entry balances exactly at two decimals and each line
// carries value on exactly one side.
func (in CreateEntryInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("journals: entry date required")
	}
	if in.Currency == "" {
		return errors.New("journals: currency required")
	}
	if in.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		return errors.New("journals: exchange rate must be positive")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journals: line %d missing account", idx+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journals: line %d negative amount", idx+1)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("journals: line %d must be either debit or credit", idx+1)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Round(2).Equal(credit.Round(2)) {
		return shared.ErrUnbalanced
	}
	return nil
}

// Totals returns the summed debit and credit of the input lines.
func (in CreateEntryInput) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}
