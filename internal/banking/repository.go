package banking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository encapsulates DB operations for bank accounts, transactions, and
// reconciliations.
type Repository interface {
	GetAccount(ctx context.Context, accountID int64) (BankAccount, error)
	ListAccounts(ctx context.Context) ([]BankAccount, error)
	GetTransaction(ctx context.Context, txnID int64) (BankTransaction, error)
	ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]BankTransaction, error)
	ListUnreconciled(ctx context.Context, accountID int64) ([]BankTransaction, error)
	GetReconciliation(ctx context.Context, reconID int64) (BankReconciliation, error)
	FindInProgress(ctx context.Context, accountID int64) (BankReconciliation, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, accountID int64) (BankAccount, error)
	InsertTransaction(ctx context.Context, txn BankTransaction) (BankTransaction, error)
	DeleteTransaction(ctx context.Context, txnID int64) error
	// BalanceBefore returns the running balance of the latest transaction
	// ordered strictly before (date, id) on the account, or zero when none.
	BalanceBefore(ctx context.Context, accountID int64, date time.Time, txnID int64) (decimal.Decimal, error)
	// TransactionsFrom returns account rows at or after (date, id) in
	// (date, id) order, the restatement scan window.
	TransactionsFrom(ctx context.Context, accountID int64, date time.Time, txnID int64) ([]BankTransaction, error)
	SetRunningBalance(ctx context.Context, txnID int64, balance decimal.Decimal) error
	SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error

	InsertReconciliation(ctx context.Context, recon BankReconciliation) (BankReconciliation, error)
	GetReconciliationForUpdate(ctx context.Context, reconID int64) (BankReconciliation, error)
	MarkMatched(ctx context.Context, reconID int64, accountID int64, txnIDs []int64) (int64, error)
	MarkUnmatched(ctx context.Context, reconID, txnID int64) (int64, error)
	UnmatchAll(ctx context.Context, reconID int64) error
	ListMatched(ctx context.Context, reconID int64) ([]BankTransaction, error)
	SetReconciliationComputed(ctx context.Context, reconID int64, reconciled, difference decimal.Decimal) error
	SetReconciliationStatus(ctx context.Context, reconID int64, status ReconciliationState, actorID *int64, at time.Time) error
	StampAccountReconciled(ctx context.Context, accountID int64, date time.Time, balance decimal.Decimal) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, account_name, account_number, currency_code, gl_account_id,
current_balance::text, last_reconciled_date, COALESCE(last_reconciled_balance, 0)::text, created_at, updated_at`

func scanAccount(row pgx.Row) (BankAccount, error) {
	var (
		a            BankAccount
		current, rec string
	)
	err := row.Scan(&a.ID, &a.Name, &a.AccountNumber, &a.Currency, &a.GLAccountID,
		&current, &a.LastReconciledDate, &rec, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return BankAccount{}, err
	}
	if a.CurrentBalance, err = decimal.NewFromString(current); err != nil {
		return BankAccount{}, err
	}
	if a.LastReconciledBalance, err = decimal.NewFromString(rec); err != nil {
		return BankAccount{}, err
	}
	return a, nil
}

const txnColumns = `id, bank_account_id, transaction_date, transaction_type, amount::text, description,
running_balance::text, reconciliation_id, reconciliation_status, source_kind, source_id, journal_entry_id, created_at`

func scanTransaction(row pgx.Row) (BankTransaction, error) {
	var (
		t            BankTransaction
		amt, running string
	)
	err := row.Scan(&t.ID, &t.BankAccountID, &t.Date, &t.Type, &amt, &t.Description,
		&running, &t.ReconciliationID, &t.ReconciliationStatus, &t.SourceKind, &t.SourceID, &t.JournalEntryID, &t.CreatedAt)
	if err != nil {
		return BankTransaction{}, err
	}
	if t.Amount, err = decimal.NewFromString(amt); err != nil {
		return BankTransaction{}, err
	}
	if t.RunningBalance, err = decimal.NewFromString(running); err != nil {
		return BankTransaction{}, err
	}
	return t, nil
}

const reconColumns = `id, bank_account_id, statement_date, statement_ending_balance::text,
book_balance::text, reconciled_balance::text, difference::text, status, completed_by, completed_at, created_at, updated_at`

func scanReconciliation(row pgx.Row) (BankReconciliation, error) {
	var (
		r                      BankReconciliation
		stmt, book, recon, dif string
	)
	err := row.Scan(&r.ID, &r.BankAccountID, &r.StatementDate, &stmt,
		&book, &recon, &dif, &r.Status, &r.CompletedBy, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return BankReconciliation{}, err
	}
	if r.StatementEndingBalance, err = decimal.NewFromString(stmt); err != nil {
		return BankReconciliation{}, err
	}
	if r.BookBalance, err = decimal.NewFromString(book); err != nil {
		return BankReconciliation{}, err
	}
	if r.ReconciledBalance, err = decimal.NewFromString(recon); err != nil {
		return BankReconciliation{}, err
	}
	if r.Difference, err = decimal.NewFromString(dif); err != nil {
		return BankReconciliation{}, err
	}
	return r, nil
}

func (r *repository) GetAccount(ctx context.Context, accountID int64) (BankAccount, error) {
	account, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id=$1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return BankAccount{}, ErrAccountNotFound
	}
	return account, err
}

func (r *repository) ListAccounts(ctx context.Context) ([]BankAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM bank_accounts ORDER BY account_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []BankAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetTransaction(ctx context.Context, txnID int64) (BankTransaction, error) {
	txn, err := scanTransaction(r.db.QueryRow(ctx, `SELECT `+txnColumns+` FROM bank_transactions WHERE id=$1`, txnID))
	if errors.Is(err, pgx.ErrNoRows) {
		return BankTransaction{}, ErrTransactionNotFound
	}
	return txn, err
}

func (r *repository) ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]BankTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+txnColumns+` FROM bank_transactions
WHERE bank_account_id=$1 ORDER BY transaction_date DESC, id DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *repository) ListUnreconciled(ctx context.Context, accountID int64) ([]BankTransaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+txnColumns+` FROM bank_transactions
WHERE bank_account_id=$1 AND reconciliation_status='unreconciled' ORDER BY transaction_date, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]BankTransaction, error) {
	var txns []BankTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *repository) GetReconciliation(ctx context.Context, reconID int64) (BankReconciliation, error) {
	recon, err := scanReconciliation(r.db.QueryRow(ctx, `SELECT `+reconColumns+` FROM bank_reconciliations WHERE id=$1`, reconID))
	if errors.Is(err, pgx.ErrNoRows) {
		return BankReconciliation{}, ErrReconciliationNotFound
	}
	return recon, err
}

func (r *repository) FindInProgress(ctx context.Context, accountID int64) (BankReconciliation, error) {
	recon, err := scanReconciliation(r.db.QueryRow(ctx, `SELECT `+reconColumns+` FROM bank_reconciliations
WHERE bank_account_id=$1 AND status='in_progress' LIMIT 1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return BankReconciliation{}, ErrReconciliationNotFound
	}
	return recon, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, accountID int64) (BankAccount, error) {
	account, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id=$1 FOR UPDATE`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return BankAccount{}, ErrAccountNotFound
	}
	return account, err
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn BankTransaction) (BankTransaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO bank_transactions
(bank_account_id, transaction_date, transaction_type, amount, description, running_balance, reconciliation_id, reconciliation_status, source_kind, source_id, journal_entry_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at`,
		txn.BankAccountID, txn.Date, txn.Type, txn.Amount.StringFixed(2), txn.Description,
		txn.RunningBalance.StringFixed(2), txn.ReconciliationID, txn.ReconciliationStatus,
		txn.SourceKind, txn.SourceID, txn.JournalEntryID).
		Scan(&txn.ID, &txn.CreatedAt)
	return txn, err
}

func (r *txRepository) DeleteTransaction(ctx context.Context, txnID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM bank_transactions WHERE id=$1 AND reconciliation_status='unreconciled'`, txnID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionMatched
	}
	return nil
}

func (r *txRepository) BalanceBefore(ctx context.Context, accountID int64, date time.Time, txnID int64) (decimal.Decimal, error) {
	var raw string
	err := r.tx.QueryRow(ctx, `SELECT running_balance::text FROM bank_transactions
WHERE bank_account_id=$1 AND (transaction_date, id) < ($2, $3)
ORDER BY transaction_date DESC, id DESC LIMIT 1`, accountID, date, txnID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (r *txRepository) TransactionsFrom(ctx context.Context, accountID int64, date time.Time, txnID int64) ([]BankTransaction, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+txnColumns+` FROM bank_transactions
WHERE bank_account_id=$1 AND (transaction_date, id) >= ($2, $3)
ORDER BY transaction_date, id`, accountID, date, txnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *txRepository) SetRunningBalance(ctx context.Context, txnID int64, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_transactions SET running_balance=$2 WHERE id=$1`, txnID, balance.StringFixed(2))
	return err
}

func (r *txRepository) SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, accountID, balance.StringFixed(2))
	return err
}

func (r *txRepository) InsertReconciliation(ctx context.Context, recon BankReconciliation) (BankReconciliation, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO bank_reconciliations
(bank_account_id, statement_date, statement_ending_balance, book_balance, reconciled_balance, difference, status)
VALUES ($1,$2,$3,$4,$5,$6,'in_progress') RETURNING id, created_at, updated_at`,
		recon.BankAccountID, recon.StatementDate, recon.StatementEndingBalance.StringFixed(2),
		recon.BookBalance.StringFixed(2), recon.ReconciledBalance.StringFixed(2), recon.Difference.StringFixed(2)).
		Scan(&recon.ID, &recon.CreatedAt, &recon.UpdatedAt)
	if err != nil {
		// Partial unique index on (bank_account_id) WHERE status='in_progress'.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return BankReconciliation{}, ErrReconciliationExists
		}
		return BankReconciliation{}, err
	}
	recon.Status = StateInProgress
	return recon, nil
}

func (r *txRepository) GetReconciliationForUpdate(ctx context.Context, reconID int64) (BankReconciliation, error) {
	recon, err := scanReconciliation(r.tx.QueryRow(ctx, `SELECT `+reconColumns+` FROM bank_reconciliations WHERE id=$1 FOR UPDATE`, reconID))
	if errors.Is(err, pgx.ErrNoRows) {
		return BankReconciliation{}, ErrReconciliationNotFound
	}
	return recon, err
}

// MarkMatched flips only unreconciled rows of the session's account; rows
// already matched elsewhere are skipped, and the affected count is returned
// so the caller can detect ineffective ids.
func (r *txRepository) MarkMatched(ctx context.Context, reconID int64, accountID int64, txnIDs []int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE bank_transactions
SET reconciliation_id=$1, reconciliation_status='matched'
WHERE bank_account_id=$2 AND id = ANY($3) AND reconciliation_status='unreconciled'`, reconID, accountID, txnIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) MarkUnmatched(ctx context.Context, reconID, txnID int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE bank_transactions
SET reconciliation_id=NULL, reconciliation_status='unreconciled'
WHERE id=$1 AND reconciliation_id=$2`, txnID, reconID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) UnmatchAll(ctx context.Context, reconID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_transactions
SET reconciliation_id=NULL, reconciliation_status='unreconciled' WHERE reconciliation_id=$1`, reconID)
	return err
}

func (r *txRepository) ListMatched(ctx context.Context, reconID int64) ([]BankTransaction, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+txnColumns+` FROM bank_transactions
WHERE reconciliation_id=$1 ORDER BY transaction_date, id`, reconID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *txRepository) SetReconciliationComputed(ctx context.Context, reconID int64, reconciled, difference decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_reconciliations
SET reconciled_balance=$2, difference=$3, updated_at=NOW() WHERE id=$1`,
		reconID, reconciled.StringFixed(2), difference.StringFixed(2))
	return err
}

func (r *txRepository) SetReconciliationStatus(ctx context.Context, reconID int64, status ReconciliationState, actorID *int64, at time.Time) error {
	if status == StateCompleted {
		_, err := r.tx.Exec(ctx, `UPDATE bank_reconciliations
SET status=$2, completed_by=$3, completed_at=$4, updated_at=NOW() WHERE id=$1`, reconID, status, actorID, at)
		return err
	}
	_, err := r.tx.Exec(ctx, `UPDATE bank_reconciliations SET status=$2, updated_at=NOW() WHERE id=$1`, reconID, status)
	return err
}

func (r *txRepository) StampAccountReconciled(ctx context.Context, accountID int64, date time.Time, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_accounts
SET last_reconciled_date=$2, last_reconciled_balance=$3, updated_at=NOW() WHERE id=$1`,
		accountID, date, balance.StringFixed(2))
	return err
}
