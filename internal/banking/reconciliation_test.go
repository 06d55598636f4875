package banking

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func startRecon(t *testing.T, svc *Service, accountID int64, stmtDay int, ending string) BankReconciliation {
	t.Helper()
	recon, err := svc.StartReconciliation(context.Background(), accountID, day(stmtDay), decimal.RequireFromString(ending))
	require.NoError(t, err)
	return recon
}

func TestStartReconciliationSnapshotsBookBalance(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)
	record(t, svc, 1, 1, TxnDeposit, "1000.00")

	recon := startRecon(t, svc, 1, 31, "950.00")
	require.Equal(t, StateInProgress, recon.Status)
	require.Equal(t, "1000.00", recon.BookBalance.StringFixed(2))
	require.Equal(t, "-50.00", recon.Difference.StringFixed(2))
}

func TestStartReconciliationReturnsExistingInProgress(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	first := startRecon(t, svc, 1, 31, "500.00")
	second := startRecon(t, svc, 1, 28, "999.00")
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "500.00", second.StatementEndingBalance.StringFixed(2))
	require.Len(t, repo.recons, 1)
}

func TestMatchRecomputesReconciledBalance(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	dep := record(t, svc, 1, 5, TxnDeposit, "800.00")
	fee := record(t, svc, 1, 6, TxnFee, "50.00")
	record(t, svc, 1, 7, TxnDeposit, "123.00") // stays unmatched

	recon := startRecon(t, svc, 1, 31, "750.00")
	recon, err := svc.MatchTransactions(context.Background(), recon.ID, []int64{dep.ID, fee.ID})
	require.NoError(t, err)

	// last_reconciled (0) + 800 inflow - 50 outflow.
	require.Equal(t, "750.00", recon.ReconciledBalance.StringFixed(2))
	require.Equal(t, "0.00", recon.Difference.StringFixed(2))
	require.True(t, recon.IsBalanced())
	require.Equal(t, ReconMatched, repo.txns[dep.ID].ReconciliationStatus)
}

func TestUnmatchRevertsTransaction(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	dep := record(t, svc, 1, 5, TxnDeposit, "800.00")
	recon := startRecon(t, svc, 1, 31, "800.00")
	recon, err := svc.MatchTransactions(context.Background(), recon.ID, []int64{dep.ID})
	require.NoError(t, err)
	require.True(t, recon.IsBalanced())

	recon, err = svc.UnmatchTransaction(context.Background(), recon.ID, dep.ID)
	require.NoError(t, err)
	require.Equal(t, "0.00", recon.ReconciledBalance.StringFixed(2))
	require.Equal(t, "800.00", recon.Difference.StringFixed(2))
	require.Equal(t, ReconUnreconciled, repo.txns[dep.ID].ReconciliationStatus)

	_, err = svc.UnmatchTransaction(context.Background(), recon.ID, 9999)
	require.ErrorIs(t, err, ErrNotInReconciliation)
}

func TestCompleteRefusesUnbalanced(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)
	record(t, svc, 1, 5, TxnDeposit, "100.00")

	recon := startRecon(t, svc, 1, 31, "550.00")
	_, err := svc.Complete(context.Background(), recon.ID, 1)
	require.ErrorIs(t, err, ErrReconciliationUnbalanced)

	stored, err := svc.Reconciliation(context.Background(), recon.ID)
	require.NoError(t, err)
	require.Equal(t, StateInProgress, stored.Status)
}

func TestAdjustmentAbsorbsDifferenceAndCompletes(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	journal := &stubAdjustmentJournal{}
	svc := newBankService(repo, journal)
	svc.WithNow(func() time.Time { return day(31) })

	dep := record(t, svc, 1, 5, TxnDeposit, "550.00")
	recon := startRecon(t, svc, 1, 31, "1000.00")
	recon, err := svc.MatchTransactions(context.Background(), recon.ID, []int64{dep.ID})
	require.NoError(t, err)
	require.Equal(t, "450.00", recon.Difference.StringFixed(2))
	require.False(t, recon.IsBalanced())

	adj, err := svc.CreateAdjustment(context.Background(), recon.ID, "Unrecorded interest", 1)
	require.NoError(t, err)
	require.Equal(t, TxnAdjustment, adj.Type)
	require.Equal(t, "450.00", adj.Amount.StringFixed(2))
	require.Equal(t, ReconMatched, adj.ReconciliationStatus)
	require.Equal(t, 1, journal.calls)
	require.NotNil(t, adj.JournalEntryID)
	require.Equal(t, int64(42), *adj.JournalEntryID)

	recon, err = svc.Reconciliation(context.Background(), recon.ID)
	require.NoError(t, err)
	require.Equal(t, "0.00", recon.Difference.StringFixed(2))

	completed, err := svc.Complete(context.Background(), recon.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, completed.Status)

	account, err := svc.Account(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, account.LastReconciledDate)
	require.Equal(t, day(31), *account.LastReconciledDate)
	require.Equal(t, "1000.00", account.LastReconciledBalance.StringFixed(2))

	// Closed sessions refuse further mutation.
	_, err = svc.MatchTransactions(context.Background(), recon.ID, []int64{dep.ID})
	require.ErrorIs(t, err, ErrReconciliationClosed)
}

func TestAdjustmentForNegativeDifference(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	dep := record(t, svc, 1, 5, TxnDeposit, "1000.00")
	recon := startRecon(t, svc, 1, 31, "925.00")
	recon, err := svc.MatchTransactions(context.Background(), recon.ID, []int64{dep.ID})
	require.NoError(t, err)
	require.Equal(t, "-75.00", recon.Difference.StringFixed(2))

	adj, err := svc.CreateAdjustment(context.Background(), recon.ID, "Bank charge", 1)
	require.NoError(t, err)
	require.Equal(t, "-75.00", adj.Amount.StringFixed(2))
	require.Equal(t, "-75.00", adj.SignedAmount().StringFixed(2))

	recon, err = svc.Reconciliation(context.Background(), recon.ID)
	require.NoError(t, err)
	require.True(t, recon.IsBalanced())

	account, err := svc.Account(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "925.00", account.CurrentBalance.StringFixed(2))
}

func TestAdjustmentRefusedWhenAlreadyBalanced(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	dep := record(t, svc, 1, 5, TxnDeposit, "300.00")
	recon := startRecon(t, svc, 1, 31, "300.00")
	_, err := svc.MatchTransactions(context.Background(), recon.ID, []int64{dep.ID})
	require.NoError(t, err)

	_, err = svc.CreateAdjustment(context.Background(), recon.ID, "noop", 1)
	require.ErrorIs(t, err, ErrReconciliationUnbalanced)
}

func TestCancelReleasesMatchedTransactions(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	dep := record(t, svc, 1, 5, TxnDeposit, "300.00")
	recon := startRecon(t, svc, 1, 31, "300.00")
	_, err := svc.MatchTransactions(context.Background(), recon.ID, []int64{dep.ID})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), recon.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StateCancelled, cancelled.Status)
	require.Equal(t, ReconUnreconciled, repo.txns[dep.ID].ReconciliationStatus)
	require.Nil(t, repo.txns[dep.ID].ReconciliationID)
}

func TestAutoMatchExactThenWindow(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	exact := record(t, svc, 1, 10, TxnDeposit, "150.00")
	windowed := record(t, svc, 1, 10, TxnWithdrawal, "80.00")
	record(t, svc, 1, 20, TxnDeposit, "999.00")

	recon := startRecon(t, svc, 1, 31, "70.00")
	result, err := svc.AutoMatch(context.Background(), recon.ID, []StatementItem{
		{Date: day(10), Amount: decimal.RequireFromString("150.00"), Reference: "DEP-1"},
		// No same-day candidate: -80.00 on the 12th matches the 10th within 3 days.
		{Date: day(12), Amount: decimal.RequireFromString("-80.00"), Reference: "WD-1"},
		{Date: day(12), Amount: decimal.RequireFromString("55.55"), Reference: "UNKNOWN"},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{exact.ID, windowed.ID}, result.MatchedIDs)
	require.Len(t, result.Unmatched, 1)
	require.Equal(t, "UNKNOWN", result.Unmatched[0].Reference)
	require.Equal(t, "0.00", result.Reconciliation.Difference.StringFixed(2))
}

func TestAutoMatchNeverReusesATransaction(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	record(t, svc, 1, 10, TxnDeposit, "150.00")
	recon := startRecon(t, svc, 1, 31, "150.00")

	result, err := svc.AutoMatch(context.Background(), recon.ID, []StatementItem{
		{Date: day(10), Amount: decimal.RequireFromString("150.00")},
		{Date: day(10), Amount: decimal.RequireFromString("150.00")},
	})
	require.NoError(t, err)
	require.Len(t, result.MatchedIDs, 1)
	require.Len(t, result.Unmatched, 1)
}

func TestAutoMatchOutsideWindowStaysUnmatched(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	record(t, svc, 1, 10, TxnDeposit, "150.00")
	recon := startRecon(t, svc, 1, 31, "150.00")

	result, err := svc.AutoMatch(context.Background(), recon.ID, []StatementItem{
		{Date: day(14), Amount: decimal.RequireFromString("150.00")},
	})
	require.NoError(t, err)
	require.Empty(t, result.MatchedIDs)
	require.Len(t, result.Unmatched, 1)
}

func TestCreateAdjustmentRetryReusesJournalEntry(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	journal := &stubAdjustmentJournal{}
	svc := newBankService(repo, journal)
	svc.WithNow(func() time.Time { return day(31) })

	record(t, svc, 1, 5, TxnDeposit, "550.00")
	recon := startRecon(t, svc, 1, 31, "1000.00")

	repo.failNextInsert = true
	_, err := svc.CreateAdjustment(context.Background(), recon.ID, "Unrecorded interest", 1)
	require.ErrorIs(t, err, errDBDown)

	adj, err := svc.CreateAdjustment(context.Background(), recon.ID, "Unrecorded interest", 1)
	require.NoError(t, err)

	// The retry derives the same adjustment id, so the ledger's reference
	// guard returns the entry posted before the failed insert.
	require.Equal(t, 1, journal.calls)
	require.Equal(t, int64(42), *adj.JournalEntryID)

	var adjustments int
	for _, txn := range repo.txns {
		if txn.Type == TxnAdjustment {
			adjustments++
		}
	}
	require.Equal(t, 1, adjustments)
}

func TestStartReconciliationRaceReturnsWinner(t *testing.T) {
	repo := newMemoryBankRepo()
	repo.addAccount(1, "IDR", 110)
	svc := newBankService(repo, nil)

	winner := startRecon(t, svc, 1, 31, "950.00")

	// A concurrent starter whose existence check ran before the winner
	// committed: the insert trips the active-session uniqueness and the
	// winner is returned instead.
	repo.missNextFind = true
	loser, err := svc.StartReconciliation(context.Background(), 1, day(31), decimal.RequireFromString("975.00"))
	require.NoError(t, err)
	require.Equal(t, winner.ID, loser.ID)
	require.Len(t, repo.recons, 1)
}
