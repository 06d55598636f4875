package banking

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	internalShared "github.com/ak-rocksdev/hyperbiz-core/internal/shared"
)

type memoryBankRepo struct {
	accounts       map[int64]*BankAccount
	txns           map[int64]*BankTransaction
	recons         map[int64]*BankReconciliation
	nextTxnID      int64
	nextReconID    int64
	failNextInsert bool
	missNextFind   bool
}

func newMemoryBankRepo() *memoryBankRepo {
	return &memoryBankRepo{
		accounts: map[int64]*BankAccount{},
		txns:     map[int64]*BankTransaction{},
		recons:   map[int64]*BankReconciliation{},
	}
}

func (m *memoryBankRepo) addAccount(id int64, currency string, glAccountID int64) *BankAccount {
	a := &BankAccount{
		ID:                    id,
		Name:                  "Operating",
		Currency:              currency,
		GLAccountID:           glAccountID,
		CurrentBalance:        decimal.Zero,
		LastReconciledBalance: decimal.Zero,
	}
	m.accounts[id] = a
	return a
}

func (m *memoryBankRepo) sortedTxns(accountID int64) []*BankTransaction {
	var out []*BankTransaction
	for _, t := range m.txns {
		if t.BankAccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memoryBankRepo) GetAccount(_ context.Context, id int64) (BankAccount, error) {
	a, ok := m.accounts[id]
	if !ok {
		return BankAccount{}, ErrAccountNotFound
	}
	return *a, nil
}

func (m *memoryBankRepo) ListAccounts(context.Context) ([]BankAccount, error) {
	var out []BankAccount
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memoryBankRepo) GetTransaction(_ context.Context, id int64) (BankTransaction, error) {
	t, ok := m.txns[id]
	if !ok {
		return BankTransaction{}, ErrTransactionNotFound
	}
	return *t, nil
}

func (m *memoryBankRepo) ListTransactions(_ context.Context, accountID int64, _, _ int) ([]BankTransaction, error) {
	var out []BankTransaction
	for _, t := range m.sortedTxns(accountID) {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memoryBankRepo) ListUnreconciled(_ context.Context, accountID int64) ([]BankTransaction, error) {
	var out []BankTransaction
	for _, t := range m.sortedTxns(accountID) {
		if t.ReconciliationStatus == ReconUnreconciled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryBankRepo) GetReconciliation(_ context.Context, id int64) (BankReconciliation, error) {
	r, ok := m.recons[id]
	if !ok {
		return BankReconciliation{}, ErrReconciliationNotFound
	}
	return *r, nil
}

func (m *memoryBankRepo) FindInProgress(_ context.Context, accountID int64) (BankReconciliation, error) {
	if m.missNextFind {
		m.missNextFind = false
		return BankReconciliation{}, ErrReconciliationNotFound
	}
	for _, r := range m.recons {
		if r.BankAccountID == accountID && r.Status == StateInProgress {
			return *r, nil
		}
	}
	return BankReconciliation{}, ErrReconciliationNotFound
}

func (m *memoryBankRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryBankTx{repo: m})
}

type memoryBankTx struct {
	repo *memoryBankRepo
}

func (t *memoryBankTx) GetAccountForUpdate(ctx context.Context, id int64) (BankAccount, error) {
	return t.repo.GetAccount(ctx, id)
}

func (t *memoryBankTx) InsertTransaction(_ context.Context, txn BankTransaction) (BankTransaction, error) {
	if t.repo.failNextInsert {
		t.repo.failNextInsert = false
		return BankTransaction{}, errDBDown
	}
	t.repo.nextTxnID++
	txn.ID = t.repo.nextTxnID
	txn.CreatedAt = time.Now()
	t.repo.txns[txn.ID] = &txn
	stored := txn
	return stored, nil
}

func (t *memoryBankTx) DeleteTransaction(_ context.Context, id int64) error {
	txn, ok := t.repo.txns[id]
	if !ok || txn.ReconciliationStatus != ReconUnreconciled {
		return ErrTransactionMatched
	}
	delete(t.repo.txns, id)
	return nil
}

func (t *memoryBankTx) before(a *BankTransaction, date time.Time, id int64) bool {
	if !a.Date.Equal(date) {
		return a.Date.Before(date)
	}
	return a.ID < id
}

func (t *memoryBankTx) BalanceBefore(_ context.Context, accountID int64, date time.Time, id int64) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, txn := range t.repo.sortedTxns(accountID) {
		if t.before(txn, date, id) {
			balance = txn.RunningBalance
		}
	}
	return balance, nil
}

func (t *memoryBankTx) TransactionsFrom(_ context.Context, accountID int64, date time.Time, id int64) ([]BankTransaction, error) {
	var out []BankTransaction
	for _, txn := range t.repo.sortedTxns(accountID) {
		if !t.before(txn, date, id) {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (t *memoryBankTx) SetRunningBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	t.repo.txns[id].RunningBalance = balance
	return nil
}

func (t *memoryBankTx) SetAccountBalance(_ context.Context, accountID int64, balance decimal.Decimal) error {
	t.repo.accounts[accountID].CurrentBalance = balance
	return nil
}

func (t *memoryBankTx) InsertReconciliation(_ context.Context, recon BankReconciliation) (BankReconciliation, error) {
	// One active session per account, like the partial unique index.
	for _, r := range t.repo.recons {
		if r.BankAccountID == recon.BankAccountID && r.Status == StateInProgress {
			return BankReconciliation{}, ErrReconciliationExists
		}
	}
	t.repo.nextReconID++
	recon.ID = t.repo.nextReconID
	recon.Status = StateInProgress
	t.repo.recons[recon.ID] = &recon
	stored := recon
	return stored, nil
}

func (t *memoryBankTx) GetReconciliationForUpdate(ctx context.Context, id int64) (BankReconciliation, error) {
	return t.repo.GetReconciliation(ctx, id)
}

func (t *memoryBankTx) MarkMatched(_ context.Context, reconID, accountID int64, ids []int64) (int64, error) {
	var affected int64
	for _, id := range ids {
		txn, ok := t.repo.txns[id]
		if !ok || txn.BankAccountID != accountID || txn.ReconciliationStatus != ReconUnreconciled {
			continue
		}
		txn.ReconciliationID = &reconID
		txn.ReconciliationStatus = ReconMatched
		affected++
	}
	return affected, nil
}

func (t *memoryBankTx) MarkUnmatched(_ context.Context, reconID, txnID int64) (int64, error) {
	txn, ok := t.repo.txns[txnID]
	if !ok || txn.ReconciliationID == nil || *txn.ReconciliationID != reconID {
		return 0, nil
	}
	txn.ReconciliationID = nil
	txn.ReconciliationStatus = ReconUnreconciled
	return 1, nil
}

func (t *memoryBankTx) UnmatchAll(_ context.Context, reconID int64) error {
	for _, txn := range t.repo.txns {
		if txn.ReconciliationID != nil && *txn.ReconciliationID == reconID {
			txn.ReconciliationID = nil
			txn.ReconciliationStatus = ReconUnreconciled
		}
	}
	return nil
}

func (t *memoryBankTx) ListMatched(_ context.Context, reconID int64) ([]BankTransaction, error) {
	var out []BankTransaction
	for _, txn := range t.repo.txns {
		if txn.ReconciliationID != nil && *txn.ReconciliationID == reconID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (t *memoryBankTx) SetReconciliationComputed(_ context.Context, reconID int64, reconciled, difference decimal.Decimal) error {
	r := t.repo.recons[reconID]
	r.ReconciledBalance = reconciled
	r.Difference = difference
	return nil
}

func (t *memoryBankTx) SetReconciliationStatus(_ context.Context, reconID int64, status ReconciliationState, actorID *int64, at time.Time) error {
	r := t.repo.recons[reconID]
	r.Status = status
	if status == StateCompleted {
		r.CompletedBy = actorID
		r.CompletedAt = &at
	}
	return nil
}

func (t *memoryBankTx) StampAccountReconciled(_ context.Context, accountID int64, date time.Time, balance decimal.Decimal) error {
	a := t.repo.accounts[accountID]
	a.LastReconciledDate = &date
	a.LastReconciledBalance = balance
	return nil
}

var errDBDown = errors.New("insert failed")

// stubAdjustmentJournal mimics the ledger's per-source idempotency: repeated
// posts for the same adjustment id return the entry created the first time.
type stubAdjustmentJournal struct {
	calls   int
	entries map[uuid.UUID]int64
}

func (j *stubAdjustmentJournal) PostBankAdjustment(_ context.Context, id uuid.UUID, _ time.Time, _ decimal.Decimal, _ string, _ int64, _ string, _ int64) (int64, error) {
	if j.entries == nil {
		j.entries = map[uuid.UUID]int64{}
	}
	if existing, ok := j.entries[id]; ok {
		return existing, nil
	}
	j.calls++
	j.entries[id] = int64(41 + j.calls)
	return j.entries[id], nil
}

func newBankService(repo Repository, journal AdjustmentJournal) *Service {
	logger := slog.New(slog.DiscardHandler)
	return NewService(logger, repo, internalShared.NewLocker(nil, 0), nil, journal)
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func record(t *testing.T, svc *Service, accountID int64, d int, typ TransactionType, amount string) BankTransaction {
	t.Helper()
	txn, err := svc.RecordTransaction(context.Background(), RecordTransactionInput{
		BankAccountID: accountID,
		Date:          day(d),
		Type:          typ,
		Amount:        decimal.RequireFromString(amount),
		ActorID:       1,
	})
	require.NoError(t, err)
	return txn
}

func TestRecordTransactionRunningBalances(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	first := record(t, svc, 1, 1, TxnDeposit, "1000.00")
	require.Equal(t, "1000.00", first.RunningBalance.StringFixed(2))

	second := record(t, svc, 1, 2, TxnWithdrawal, "300.00")
	require.Equal(t, "700.00", second.RunningBalance.StringFixed(2))

	third := record(t, svc, 1, 3, TxnFee, "25.00")
	require.Equal(t, "675.00", third.RunningBalance.StringFixed(2))

	account, err := svc.Account(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "675.00", account.CurrentBalance.StringFixed(2))
}

func TestRecordBackdatedTransactionRestatesChain(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	record(t, svc, 1, 1, TxnDeposit, "1000.00")
	tail := record(t, svc, 1, 10, TxnWithdrawal, "400.00")
	require.Equal(t, "600.00", tail.RunningBalance.StringFixed(2))

	// A transaction inserted between the two shifts every later balance.
	mid := record(t, svc, 1, 5, TxnDeposit, "200.00")
	require.Equal(t, "1200.00", mid.RunningBalance.StringFixed(2))

	restatedTail, err := svc.repo.GetTransaction(context.Background(), tail.ID)
	require.NoError(t, err)
	require.Equal(t, "800.00", restatedTail.RunningBalance.StringFixed(2))

	account, err := svc.Account(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "800.00", account.CurrentBalance.StringFixed(2))
}

func TestDeleteTransactionRestatesChain(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	record(t, svc, 1, 1, TxnDeposit, "1000.00")
	victim := record(t, svc, 1, 2, TxnWithdrawal, "300.00")
	tail := record(t, svc, 1, 3, TxnDeposit, "50.00")
	require.Equal(t, "750.00", tail.RunningBalance.StringFixed(2))

	require.NoError(t, svc.DeleteTransaction(context.Background(), victim.ID, 1))

	restatedTail, err := svc.repo.GetTransaction(context.Background(), tail.ID)
	require.NoError(t, err)
	require.Equal(t, "1050.00", restatedTail.RunningBalance.StringFixed(2))

	account, err := svc.Account(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "1050.00", account.CurrentBalance.StringFixed(2))
}

func TestDeleteMatchedTransactionRefused(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	txn := record(t, svc, 1, 1, TxnDeposit, "100.00")
	reconID := int64(7)
	repo.txns[txn.ID].ReconciliationID = &reconID
	repo.txns[txn.ID].ReconciliationStatus = ReconMatched

	err := svc.DeleteTransaction(context.Background(), txn.ID, 1)
	require.ErrorIs(t, err, ErrTransactionMatched)
}

func TestRecordTransactionValidation(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	_, err := svc.RecordTransaction(context.Background(), RecordTransactionInput{
		BankAccountID: 1, Date: day(1), Type: TxnDeposit, Amount: decimal.RequireFromString("-5"),
	})
	require.ErrorIs(t, err, ErrInvalidTransaction)

	_, err = svc.RecordTransaction(context.Background(), RecordTransactionInput{
		BankAccountID: 1, Date: day(1), Type: "wire", Amount: decimal.RequireFromString("5"),
	})
	require.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestRestateAccountRebuildsWholeChain(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	a := record(t, svc, 1, 1, TxnDeposit, "500.00")
	b := record(t, svc, 1, 2, TxnFee, "10.00")

	// Corrupt the chain, then recover.
	repo.txns[a.ID].RunningBalance = decimal.RequireFromString("999.99")
	repo.txns[b.ID].RunningBalance = decimal.RequireFromString("999.99")

	require.NoError(t, svc.RestateAccount(context.Background(), 1))
	require.Equal(t, "500.00", repo.txns[a.ID].RunningBalance.StringFixed(2))
	require.Equal(t, "490.00", repo.txns[b.ID].RunningBalance.StringFixed(2))
	require.Equal(t, "490.00", repo.accounts[1].CurrentBalance.StringFixed(2))
}
