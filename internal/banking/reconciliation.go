package banking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalShared "github.com/ak-rocksdev/hyperbiz-core/internal/shared"
)

// StartReconciliation opens a reconciliation session for the account. When
// one is already in progress it is returned instead of creating a duplicate.
func (s *Service) StartReconciliation(ctx context.Context, accountID int64, statementDate time.Time, statementEndingBalance decimal.Decimal) (BankReconciliation, error) {
	if existing, err := s.repo.FindInProgress(ctx, accountID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrReconciliationNotFound) {
		return BankReconciliation{}, err
	}

	var recon BankReconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		recon, err = tx.InsertReconciliation(ctx, BankReconciliation{
			BankAccountID:          accountID,
			StatementDate:          statementDate,
			StatementEndingBalance: statementEndingBalance.Round(2),
			BookBalance:            account.CurrentBalance,
			ReconciledBalance:      account.LastReconciledBalance,
			Difference:             statementEndingBalance.Sub(account.CurrentBalance).Round(2),
		})
		return err
	})
	if errors.Is(err, ErrReconciliationExists) {
		// Lost the race to a concurrent start; the unique index on active
		// sessions guarantees the winner is the one to return.
		return s.repo.FindInProgress(ctx, accountID)
	}
	return recon, err
}

func (s *Service) Reconciliation(ctx context.Context, reconID int64) (BankReconciliation, error) {
	return s.repo.GetReconciliation(ctx, reconID)
}

// UnreconciledTransactions lists the account's matching candidates.
func (s *Service) UnreconciledTransactions(ctx context.Context, accountID int64) ([]BankTransaction, error) {
	return s.repo.ListUnreconciled(ctx, accountID)
}

// MatchTransactions marks the given transactions as matched to the session
// and recomputes the reconciled balance and difference.
func (s *Service) MatchTransactions(ctx context.Context, reconID int64, txnIDs []int64) (BankReconciliation, error) {
	var recon BankReconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if recon, err = s.openSession(ctx, tx, reconID); err != nil {
			return err
		}
		if len(txnIDs) > 0 {
			if _, err := tx.MarkMatched(ctx, reconID, recon.BankAccountID, txnIDs); err != nil {
				return err
			}
		}
		recon, err = s.recompute(ctx, tx, recon)
		return err
	})
	return recon, err
}

// UnmatchTransaction reverts a matched transaction to unreconciled and
// recomputes the session.
func (s *Service) UnmatchTransaction(ctx context.Context, reconID, txnID int64) (BankReconciliation, error) {
	var recon BankReconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if recon, err = s.openSession(ctx, tx, reconID); err != nil {
			return err
		}
		affected, err := tx.MarkUnmatched(ctx, reconID, txnID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotInReconciliation
		}
		recon, err = s.recompute(ctx, tx, recon)
		return err
	})
	return recon, err
}

// AutoMatchResult reports what AutoMatch did with a statement.
type AutoMatchResult struct {
	Reconciliation BankReconciliation
	MatchedIDs     []int64
	Unmatched      []StatementItem
}

// AutoMatch pairs statement lines with unreconciled transactions: first an
// exact amount on the same day, then the closest amount match within a
// three-day window. Each transaction is consumed by at most one line; lines
// with no candidate are returned for manual review.
func (s *Service) AutoMatch(ctx context.Context, reconID int64, items []StatementItem) (AutoMatchResult, error) {
	recon, err := s.repo.GetReconciliation(ctx, reconID)
	if err != nil {
		return AutoMatchResult{}, err
	}
	if recon.Status != StateInProgress {
		return AutoMatchResult{}, ErrReconciliationClosed
	}

	candidates, err := s.repo.ListUnreconciled(ctx, recon.BankAccountID)
	if err != nil {
		return AutoMatchResult{}, err
	}

	result := AutoMatchResult{}
	taken := make(map[int64]bool, len(candidates))
	for _, item := range items {
		id, ok := findCandidate(candidates, taken, item, 0)
		if !ok {
			id, ok = findCandidate(candidates, taken, item, 3)
		}
		if !ok {
			result.Unmatched = append(result.Unmatched, item)
			continue
		}
		taken[id] = true
		result.MatchedIDs = append(result.MatchedIDs, id)
	}

	if result.Reconciliation, err = s.MatchTransactions(ctx, reconID, result.MatchedIDs); err != nil {
		return AutoMatchResult{}, err
	}
	return result, nil
}

// findCandidate scans in (date, id) order so the earliest candidate wins.
func findCandidate(candidates []BankTransaction, taken map[int64]bool, item StatementItem, windowDays int) (int64, bool) {
	for _, txn := range candidates {
		if taken[txn.ID] {
			continue
		}
		if txn.SignedAmount().Sub(item.Amount).Abs().GreaterThanOrEqual(balanceEpsilon) {
			continue
		}
		delta := dayDelta(txn.Date, item.Date)
		if delta < 0 {
			delta = -delta
		}
		if delta <= windowDays {
			return txn.ID, true
		}
	}
	return 0, false
}

func dayDelta(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ad.Sub(bd).Hours() / 24)
}

// Complete closes a balanced session and stamps the account's reconciliation
// watermark. An unbalanced session is refused; absorb the difference with
// CreateAdjustment first.
func (s *Service) Complete(ctx context.Context, reconID, actorID int64) (BankReconciliation, error) {
	var recon BankReconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if recon, err = s.openSession(ctx, tx, reconID); err != nil {
			return err
		}
		if recon, err = s.recompute(ctx, tx, recon); err != nil {
			return err
		}
		if !recon.IsBalanced() {
			return ErrReconciliationUnbalanced
		}
		now := s.now()
		if err := tx.SetReconciliationStatus(ctx, reconID, StateCompleted, &actorID, now); err != nil {
			return err
		}
		if err := tx.StampAccountReconciled(ctx, recon.BankAccountID, recon.StatementDate, recon.StatementEndingBalance); err != nil {
			return err
		}
		recon.Status = StateCompleted
		recon.CompletedBy = &actorID
		recon.CompletedAt = &now
		return nil
	})
	if err != nil {
		return BankReconciliation{}, err
	}

	s.record(ctx, actorID, "bank_reconciliation.complete", "bank_reconciliation", reconID, map[string]any{
		"account_id":        recon.BankAccountID,
		"statement_balance": recon.StatementEndingBalance.StringFixed(2),
	})
	return recon, nil
}

// Cancel abandons the session, releasing every transaction matched to it.
func (s *Service) Cancel(ctx context.Context, reconID, actorID int64) (BankReconciliation, error) {
	var recon BankReconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if recon, err = s.openSession(ctx, tx, reconID); err != nil {
			return err
		}
		if err := tx.UnmatchAll(ctx, reconID); err != nil {
			return err
		}
		if err := tx.SetReconciliationStatus(ctx, reconID, StateCancelled, nil, s.now()); err != nil {
			return err
		}
		recon.Status = StateCancelled
		return nil
	})
	if err != nil {
		return BankReconciliation{}, err
	}

	s.record(ctx, actorID, "bank_reconciliation.cancel", "bank_reconciliation", reconID, nil)
	return recon, nil
}

// CreateAdjustment absorbs the session's remaining difference into a signed
// adjustment transaction, pre-matched to the session, and recomputes. When a
// ledger journal port is configured the adjustment is mirrored as a posted
// journal entry against the bank clearing account.
func (s *Service) CreateAdjustment(ctx context.Context, reconID int64, description string, actorID int64) (BankTransaction, error) {
	recon, err := s.repo.GetReconciliation(ctx, reconID)
	if err != nil {
		return BankTransaction{}, err
	}
	if recon.Status != StateInProgress {
		return BankTransaction{}, ErrReconciliationClosed
	}
	if recon.IsBalanced() {
		return BankTransaction{}, ErrReconciliationUnbalanced
	}
	account, err := s.repo.GetAccount(ctx, recon.BankAccountID)
	if err != nil {
		return BankTransaction{}, err
	}

	release, err := s.locker.AcquireWait(ctx, internalShared.BankAccountLockKey(recon.BankAccountID))
	if err != nil {
		return BankTransaction{}, err
	}
	defer func() { _ = release(ctx) }()

	adjustmentID := adjustmentUUID(reconID, recon.Difference)
	var journalEntryID *int64
	if s.journal != nil {
		entryID, err := s.journal.PostBankAdjustment(ctx, adjustmentID, recon.StatementDate,
			recon.Difference, account.Currency, account.GLAccountID, description, actorID)
		if err != nil {
			return BankTransaction{}, err
		}
		journalEntryID = &entryID
	}

	sourceKind := "bank_reconciliation"
	var txn BankTransaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, recon.BankAccountID); err != nil {
			return err
		}
		locked, err := tx.GetReconciliationForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		if locked.Status != StateInProgress {
			return ErrReconciliationClosed
		}
		txn, err = tx.InsertTransaction(ctx, BankTransaction{
			BankAccountID:        recon.BankAccountID,
			Date:                 locked.StatementDate,
			Type:                 TxnAdjustment,
			Amount:               locked.Difference,
			Description:          description,
			RunningBalance:       decimal.Zero,
			ReconciliationID:     &reconID,
			ReconciliationStatus: ReconMatched,
			SourceKind:           &sourceKind,
			SourceID:             &adjustmentID,
			JournalEntryID:       journalEntryID,
		})
		if err != nil {
			return err
		}
		restated, err := s.restateFrom(ctx, tx, recon.BankAccountID, txn.Date, txn.ID)
		if err != nil {
			return err
		}
		if updated, ok := restated[txn.ID]; ok {
			txn.RunningBalance = updated
		}
		_, err = s.recompute(ctx, tx, locked)
		return err
	})
	if err != nil {
		return BankTransaction{}, err
	}

	s.record(ctx, actorID, "bank_reconciliation.adjust", "bank_transaction", txn.ID, map[string]any{
		"reconciliation_id": reconID,
		"amount":            txn.Amount.StringFixed(2),
	})
	return txn, nil
}

func (s *Service) openSession(ctx context.Context, tx TxRepository, reconID int64) (BankReconciliation, error) {
	recon, err := tx.GetReconciliationForUpdate(ctx, reconID)
	if err != nil {
		return BankReconciliation{}, err
	}
	if recon.Status != StateInProgress {
		return BankReconciliation{}, ErrReconciliationClosed
	}
	return recon, nil
}

// recompute re-derives the session's reconciled balance from its matched
// transactions: the account's last reconciled balance plus matched inflows
// minus matched outflows.
func (s *Service) recompute(ctx context.Context, tx TxRepository, recon BankReconciliation) (BankReconciliation, error) {
	account, err := tx.GetAccountForUpdate(ctx, recon.BankAccountID)
	if err != nil {
		return BankReconciliation{}, err
	}
	matched, err := tx.ListMatched(ctx, recon.ID)
	if err != nil {
		return BankReconciliation{}, err
	}

	reconciled := account.LastReconciledBalance
	for _, txn := range matched {
		reconciled = reconciled.Add(txn.SignedAmount())
	}
	recon.ReconciledBalance = reconciled.Round(2)
	recon.Difference = recon.StatementEndingBalance.Sub(recon.ReconciledBalance).Round(2)
	return recon, tx.SetReconciliationComputed(ctx, recon.ID, recon.ReconciledBalance, recon.Difference)
}

// adjustmentNamespace seeds deterministic adjustment ids.
var adjustmentNamespace = uuid.MustParse("7b0f4a52-1c6f-4c9e-a1d5-3d2f8e6b9c01")

// adjustmentUUID derives a stable id from the session and the difference being
// absorbed. The journal is posted before the bank row commits, so a retry
// after a failed insert reuses the id and lands on the ledger's reference
// guard instead of posting a second entry.
func adjustmentUUID(reconID int64, difference decimal.Decimal) uuid.UUID {
	return uuid.NewSHA1(adjustmentNamespace,
		[]byte(fmt.Sprintf("bank_reconciliation:%d:%s", reconID, difference.StringFixed(2))))
}
