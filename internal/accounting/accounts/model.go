package accounts

import "time"

// AccountType classifies an account for reporting.
type AccountType string

const (
	TypeAsset        AccountType = "asset"
	TypeLiability    AccountType = "liability"
	TypeEquity       AccountType = "equity"
	TypeRevenue      AccountType = "revenue"
	TypeCOGS         AccountType = "cogs"
	TypeExpense      AccountType = "expense"
	TypeOtherIncome  AccountType = "other_income"
	TypeOtherExpense AccountType = "other_expense"
)

// NormalBalance is the side on which an account type naturally increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// DefaultNormalBalance returns the conventional side for an account type.
func DefaultNormalBalance(t AccountType) NormalBalance {
	switch t {
	case TypeAsset, TypeCOGS, TypeExpense, TypeOtherExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// ChartOfAccount is a node in the account hierarchy. Header accounts only
// aggregate children and are not postable.
type ChartOfAccount struct {
	ID            int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	ParentID      *int64
	IsHeader      bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPostable reports whether journal lines may target the account.
func (a ChartOfAccount) IsPostable() bool {
	return a.IsActive && !a.IsHeader
}
