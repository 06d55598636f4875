package reports

import (
	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/accounts"
)

// AccountBalance aggregates posted line totals for one postable account.
// Voided and draft entries never reach these sums: the repository filters on
// entry status = posted.
type AccountBalance struct {
	AccountID     int64
	Code          string
	Name          string
	Type          accounts.AccountType
	NormalBalance accounts.NormalBalance
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// Net returns debit minus credit.
func (a AccountBalance) Net() decimal.Decimal {
	return a.Debit.Sub(a.Credit)
}

// NormalSide returns the balance expressed on the account's normal side, so
// a liability with more credits than debits reads as a positive number.
func (a AccountBalance) NormalSide() decimal.Decimal {
	if a.NormalBalance == accounts.NormalCredit {
		return a.Credit.Sub(a.Debit)
	}
	return a.Debit.Sub(a.Credit)
}
