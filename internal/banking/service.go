package banking

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalShared "github.com/ak-rocksdev/hyperbiz-core/internal/shared"
)

// AuditPort records audit trail rows for mutating operations.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service owns bank transaction recording and reconciliation. Running-balance
// restatement on an account is serialized through the redis lock: the
// restated chain depends on a full ordered scan and two racing writers would
// leave interleaved balances behind.
type Service struct {
	repo    Repository
	locker  *internalShared.Locker
	audit   AuditPort
	journal AdjustmentJournal
	logger  *slog.Logger
	now     func() time.Time
}

// AdjustmentJournal posts the ledger side of a reconciliation adjustment.
// Nil means adjustments stay bank-side only.
type AdjustmentJournal interface {
	PostBankAdjustment(ctx context.Context, id uuid.UUID, date time.Time, amount decimal.Decimal, currency string, glAccountID int64, description string, actorID int64) (int64, error)
}

func NewService(logger *slog.Logger, repo Repository, locker *internalShared.Locker, audit AuditPort, journal AdjustmentJournal) *Service {
	return &Service{repo: repo, locker: locker, audit: audit, journal: journal, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Account(ctx context.Context, accountID int64) (BankAccount, error) {
	return s.repo.GetAccount(ctx, accountID)
}

func (s *Service) Accounts(ctx context.Context) ([]BankAccount, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *Service) Transactions(ctx context.Context, accountID int64, limit, offset int) ([]BankTransaction, error) {
	return s.repo.ListTransactions(ctx, accountID, limit, offset)
}

// RecordTransactionInput carries a new bank transaction.
type RecordTransactionInput struct {
	BankAccountID int64
	Date          time.Time
	Type          TransactionType
	Amount        decimal.Decimal
	Description   string
	SourceKind    *string
	SourceID      *uuid.UUID
	ActorID       int64
}

func (in RecordTransactionInput) validate() error {
	if in.BankAccountID == 0 {
		return fmt.Errorf("%w: bank account required", ErrInvalidTransaction)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, in.Type)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidTransaction)
	}
	// Adjustments absorb a signed difference; every other type is positive.
	if in.Type == TxnAdjustment {
		if in.Amount.IsZero() {
			return fmt.Errorf("%w: adjustment amount must be nonzero", ErrInvalidTransaction)
		}
		return nil
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	return nil
}

// RecordTransaction inserts the transaction and restates running balances
// for every row at or after its position, all in one transaction under the
// per-account lock.
func (s *Service) RecordTransaction(ctx context.Context, in RecordTransactionInput) (BankTransaction, error) {
	if err := in.validate(); err != nil {
		return BankTransaction{}, err
	}

	release, err := s.locker.AcquireWait(ctx, internalShared.BankAccountLockKey(in.BankAccountID))
	if err != nil {
		return BankTransaction{}, err
	}
	defer func() { _ = release(ctx) }()

	var txn BankTransaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, in.BankAccountID); err != nil {
			return err
		}
		txn, err = tx.InsertTransaction(ctx, BankTransaction{
			BankAccountID:        in.BankAccountID,
			Date:                 in.Date,
			Type:                 in.Type,
			Amount:               in.Amount.Round(2),
			Description:          in.Description,
			RunningBalance:       decimal.Zero, // restated below
			ReconciliationStatus: ReconUnreconciled,
			SourceKind:           in.SourceKind,
			SourceID:             in.SourceID,
		})
		if err != nil {
			return err
		}
		restated, err := s.restateFrom(ctx, tx, in.BankAccountID, txn.Date, txn.ID)
		if err != nil {
			return err
		}
		if updated, ok := restated[txn.ID]; ok {
			txn.RunningBalance = updated
		}
		return nil
	})
	if err != nil {
		return BankTransaction{}, err
	}

	s.record(ctx, in.ActorID, "bank_transaction.record", "bank_transaction", txn.ID, map[string]any{
		"account_id": in.BankAccountID,
		"type":       string(in.Type),
		"amount":     in.Amount.StringFixed(2),
	})
	return txn, nil
}

// DeleteTransaction removes an unreconciled transaction and restates the
// rows that followed it. Matched transactions cannot be deleted; unmatch
// them through their reconciliation first.
func (s *Service) DeleteTransaction(ctx context.Context, txnID, actorID int64) error {
	txn, err := s.repo.GetTransaction(ctx, txnID)
	if err != nil {
		return err
	}
	if txn.ReconciliationStatus == ReconMatched {
		return ErrTransactionMatched
	}

	release, err := s.locker.AcquireWait(ctx, internalShared.BankAccountLockKey(txn.BankAccountID))
	if err != nil {
		return err
	}
	defer func() { _ = release(ctx) }()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, txn.BankAccountID); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, txnID); err != nil {
			return err
		}
		_, err := s.restateFrom(ctx, tx, txn.BankAccountID, txn.Date, txn.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.record(ctx, actorID, "bank_transaction.delete", "bank_transaction", txnID, map[string]any{
		"account_id": txn.BankAccountID,
	})
	return nil
}

// RestateAccount re-derives the whole running-balance chain of an account.
// Recovery entry point used by the background job.
func (s *Service) RestateAccount(ctx context.Context, accountID int64) error {
	release, err := s.locker.AcquireWait(ctx, internalShared.BankAccountLockKey(accountID))
	if err != nil {
		return err
	}
	defer func() { _ = release(ctx) }()

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, accountID); err != nil {
			return err
		}
		_, err := s.restateFrom(ctx, tx, accountID, time.Time{}, 0)
		return err
	})
}

// restateFrom walks the account's transactions at or after (date, id) in
// chronological then insertion order, carrying the balance forward from the
// nearest earlier row. The account's current balance follows the last row.
// Returns the balances it wrote, keyed by transaction id.
func (s *Service) restateFrom(ctx context.Context, tx TxRepository, accountID int64, date time.Time, txnID int64) (map[int64]decimal.Decimal, error) {
	balance, err := tx.BalanceBefore(ctx, accountID, date, txnID)
	if err != nil {
		return nil, err
	}
	txns, err := tx.TransactionsFrom(ctx, accountID, date, txnID)
	if err != nil {
		return nil, err
	}

	written := make(map[int64]decimal.Decimal, len(txns))
	for _, t := range txns {
		balance = balance.Add(t.SignedAmount())
		if !balance.Equal(t.RunningBalance) {
			if err := tx.SetRunningBalance(ctx, t.ID, balance); err != nil {
				return nil, err
			}
		}
		written[t.ID] = balance
	}
	return written, tx.SetAccountBalance(ctx, accountID, balance)
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}
