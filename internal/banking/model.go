// Package banking maintains bank transaction ledgers with order-dependent
// running balances and drives statement reconciliation.
package banking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType implies the direction of a bank transaction. Amounts are
// stored positive for every type except adjustment, which carries the signed
// difference it absorbs.
type TransactionType string

const (
	TxnDeposit     TransactionType = "deposit"
	TxnWithdrawal  TransactionType = "withdrawal"
	TxnTransferIn  TransactionType = "transfer_in"
	TxnTransferOut TransactionType = "transfer_out"
	TxnInterest    TransactionType = "interest"
	TxnFee         TransactionType = "fee"
	TxnAdjustment  TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxnDeposit, TxnWithdrawal, TxnTransferIn, TxnTransferOut, TxnInterest, TxnFee, TxnAdjustment:
		return true
	}
	return false
}

// IsInflow reports whether the type increases the account balance.
// Adjustment direction comes from the stored amount's sign instead.
func (t TransactionType) IsInflow() bool {
	switch t {
	case TxnDeposit, TxnTransferIn, TxnInterest:
		return true
	}
	return false
}

// ReconciliationStatus of a single transaction.
type ReconciliationStatus string

const (
	ReconUnreconciled ReconciliationStatus = "unreconciled"
	ReconMatched      ReconciliationStatus = "matched"
)

// BankAccount mirrors one real-world bank account. GLAccountID links it to
// the chart of accounts for adjustment journal entries.
type BankAccount struct {
	ID                    int64
	Name                  string
	AccountNumber         string
	Currency              string
	GLAccountID           int64
	CurrentBalance        decimal.Decimal
	LastReconciledDate    *time.Time
	LastReconciledBalance decimal.Decimal
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BankTransaction is one movement on a bank account. RunningBalance is
// derived sequentially and restated whenever earlier rows change.
type BankTransaction struct {
	ID                   int64
	BankAccountID        int64
	Date                 time.Time
	Type                 TransactionType
	Amount               decimal.Decimal
	Description          string
	RunningBalance       decimal.Decimal
	ReconciliationID     *int64
	ReconciliationStatus ReconciliationStatus
	SourceKind           *string
	SourceID             *uuid.UUID
	JournalEntryID       *int64
	CreatedAt            time.Time
}

// SignedAmount returns the balance effect of the transaction.
func (t BankTransaction) SignedAmount() decimal.Decimal {
	if t.Type == TxnAdjustment {
		return t.Amount
	}
	if t.Type.IsInflow() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// ReconciliationState is the lifecycle of a reconciliation session.
type ReconciliationState string

const (
	StateInProgress ReconciliationState = "in_progress"
	StateCompleted  ReconciliationState = "completed"
	StateCancelled  ReconciliationState = "cancelled"
)

// BankReconciliation tracks one statement reconciliation session. Only one
// in_progress session may exist per account.
type BankReconciliation struct {
	ID                      int64
	BankAccountID           int64
	StatementDate           time.Time
	StatementEndingBalance  decimal.Decimal
	BookBalance             decimal.Decimal
	ReconciledBalance       decimal.Decimal
	Difference              decimal.Decimal
	Status                  ReconciliationState
	CompletedBy             *int64
	CompletedAt             *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// balanceEpsilon is the tolerance for 2-decimal equality checks. Comparing
// with an epsilon instead of exact equality avoids false negatives from
// upstream rounding.
var balanceEpsilon = decimal.New(1, -2)

// IsBalanced reports whether the session can complete.
func (r BankReconciliation) IsBalanced() bool {
	return r.Difference.Abs().LessThan(balanceEpsilon)
}

// StatementItem is one line of an external bank statement fed to AutoMatch.
type StatementItem struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Reference   string
}
