package banking

import "errors"

var (
	ErrAccountNotFound          = errors.New("banking: bank account not found")
	ErrTransactionNotFound      = errors.New("banking: bank transaction not found")
	ErrReconciliationNotFound   = errors.New("banking: reconciliation not found")
	ErrReconciliationExists     = errors.New("banking: account already has a reconciliation in progress")
	ErrReconciliationClosed     = errors.New("banking: reconciliation is not in progress")
	ErrReconciliationUnbalanced = errors.New("banking: reconciliation difference exceeds tolerance")
	ErrTransactionMatched       = errors.New("banking: transaction is matched to a reconciliation")
	ErrNotInReconciliation      = errors.New("banking: transaction does not belong to this reconciliation")
	ErrInvalidTransaction       = errors.New("banking: invalid transaction input")
)
