package autojournal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/journals"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

type memoryLedger struct {
	entries map[int64]journals.JournalEntry
	nextID  int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: make(map[int64]journals.JournalEntry)}
}

func (l *memoryLedger) CreateEntry(ctx context.Context, input journals.CreateEntryInput) (journals.JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return journals.JournalEntry{}, err
	}
	if input.Reference != nil {
		if _, err := l.FindByReference(ctx, input.Reference.Kind, input.Reference.ID); err == nil {
			return journals.JournalEntry{}, shared.ErrDuplicateReference
		}
	}
	l.nextID++
	debit, credit := input.Totals()
	status := journals.StatusDraft
	if input.AutoPost {
		status = journals.StatusPosted
	}
	entry := journals.JournalEntry{
		ID:           l.nextID,
		Date:         input.Date,
		Type:         input.Type,
		Reference:    input.Reference,
		Memo:         input.Memo,
		Currency:     input.Currency,
		ExchangeRate: input.ExchangeRate,
		TotalDebit:   debit.Round(2),
		TotalCredit:  credit.Round(2),
		Status:       status,
	}
	for idx, line := range input.Lines {
		entry.Lines = append(entry.Lines, journals.JournalEntryLine{
			EntryID:    entry.ID,
			AccountID:  line.AccountID,
			LineNumber: idx + 1,
			Debit:      line.Debit.Round(2),
			Credit:     line.Credit.Round(2),
			DebitBase:  line.Debit.Mul(input.ExchangeRate).Round(2),
			CreditBase: line.Credit.Mul(input.ExchangeRate).Round(2),
		})
	}
	l.entries[entry.ID] = entry
	return entry, nil
}

func (l *memoryLedger) FindByReference(ctx context.Context, kind journals.ReferenceKind, refID uuid.UUID) (journals.JournalEntry, error) {
	for _, e := range l.entries {
		if e.Status == journals.StatusVoided || e.Reference == nil {
			continue
		}
		if e.Reference.Kind == kind && e.Reference.ID == refID {
			return e, nil
		}
	}
	return journals.JournalEntry{}, shared.ErrJournalNotFound
}

func (l *memoryLedger) HasJournalEntry(ctx context.Context, kind journals.ReferenceKind, refID uuid.UUID) (bool, error) {
	_, err := l.FindByReference(ctx, kind, refID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (l *memoryLedger) Void(ctx context.Context, input journals.VoidInput) (journals.JournalEntry, error) {
	e, ok := l.entries[input.EntryID]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	e.Status = journals.StatusVoided
	e.VoidReason = &input.Reason
	l.entries[input.EntryID] = e
	return e, nil
}

type stubMappings struct {
	byPurpose map[MappingPurpose]int64
}

func (s stubMappings) FindByPurpose(ctx context.Context, purpose MappingPurpose) (AccountMapping, error) {
	accountID, ok := s.byPurpose[purpose]
	if !ok {
		return AccountMapping{}, shared.ErrMappingNotFound
	}
	return AccountMapping{Purpose: purpose, AccountID: accountID}, nil
}

func cashAccount() *int64 {
	id := int64(101)
	return &id
}

func expenseSource(amount, tax string) ExpenseSource {
	return ExpenseSource{
		ID:               uuid.New(),
		Number:           "EXP-0042",
		Date:             time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.RequireFromString(amount),
		TaxAmount:        decimal.RequireFromString(tax),
		Currency:         "IDR",
		ExchangeRate:     decimal.NewFromInt(1),
		ExpenseAccountID: 601,
		PaymentAccountID: cashAccount(),
		CreatedBy:        3,
	}
}

func TestPostExpenseNoTaxAccountConfigured(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	svc := NewService(ledger, stubMappings{byPurpose: map[MappingPurpose]int64{}})

	// amount=100.00 tax=11.00 with no tax-input account: full 111.00 lands on
	// the expense account against cash.
	entry, err := svc.PostExpense(ctx, expenseSource("100.00", "11.00"))
	require.NoError(t, err)
	require.Equal(t, journals.StatusPosted, entry.Status)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, int64(601), entry.Lines[0].AccountID)
	require.Equal(t, "111.00", entry.Lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(101), entry.Lines[1].AccountID)
	require.Equal(t, "111.00", entry.Lines[1].Credit.StringFixed(2))
	require.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
}

func TestPostExpenseWithTaxAccount(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	svc := NewService(ledger, stubMappings{byPurpose: map[MappingPurpose]int64{PurposeTaxInput: 205}})

	entry, err := svc.PostExpense(ctx, expenseSource("100.00", "11.00"))
	require.NoError(t, err)
	require.Len(t, entry.Lines, 3)
	require.Equal(t, "100.00", entry.Lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(205), entry.Lines[1].AccountID)
	require.Equal(t, "11.00", entry.Lines[1].Debit.StringFixed(2))
	require.Equal(t, "111.00", entry.Lines[2].Credit.StringFixed(2))
}

func TestPostExpenseFallsBackToDefaultPayable(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	svc := NewService(ledger, stubMappings{byPurpose: map[MappingPurpose]int64{PurposeDefaultPayable: 210}})

	src := expenseSource("50.00", "0.00")
	src.PaymentAccountID = nil
	entry, err := svc.PostExpense(ctx, src)
	require.NoError(t, err)
	require.Equal(t, int64(210), entry.Lines[len(entry.Lines)-1].AccountID)
}

func TestPostExpenseNoCreditAccount(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	svc := NewService(ledger, stubMappings{byPurpose: map[MappingPurpose]int64{}})

	src := expenseSource("50.00", "0.00")
	src.PaymentAccountID = nil
	_, err := svc.PostExpense(ctx, src)
	require.ErrorIs(t, err, shared.ErrMissingAccount)
	require.Empty(t, ledger.entries)
}

func TestPostExpenseIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	svc := NewService(ledger, stubMappings{byPurpose: map[MappingPurpose]int64{}})

	src := expenseSource("75.00", "0.00")
	first, err := svc.PostExpense(ctx, src)
	require.NoError(t, err)
	second, err := svc.PostExpense(ctx, src)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, ledger.entries, 1)
}

func TestReverseVoidsLinkedEntry(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	svc := NewService(ledger, stubMappings{byPurpose: map[MappingPurpose]int64{}})

	src := expenseSource("75.00", "0.00")
	entry, err := svc.PostExpense(ctx, src)
	require.NoError(t, err)

	voided, err := svc.Reverse(ctx, journals.RefExpense, src.ID, 9, "expense rejected")
	require.NoError(t, err)
	require.Equal(t, entry.ID, voided.ID)
	require.Equal(t, journals.StatusVoided, voided.Status)

	// A re-approval may post again after the reversal.
	again, err := svc.PostExpense(ctx, src)
	require.NoError(t, err)
	require.NotEqual(t, entry.ID, again.ID)
}
