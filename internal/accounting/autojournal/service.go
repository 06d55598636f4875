package autojournal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/journals"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// LedgerPort is the slice of the ledger engine the generators use.
type LedgerPort interface {
	CreateEntry(ctx context.Context, input journals.CreateEntryInput) (journals.JournalEntry, error)
	FindByReference(ctx context.Context, kind journals.ReferenceKind, refID uuid.UUID) (journals.JournalEntry, error)
	HasJournalEntry(ctx context.Context, kind journals.ReferenceKind, refID uuid.UUID) (bool, error)
	Void(ctx context.Context, input journals.VoidInput) (journals.JournalEntry, error)
}

// Service turns business events into balanced journal entries through the
// ledger engine.
type Service struct {
	ledger   LedgerPort
	mappings MappingRepository
}

func NewService(ledger LedgerPort, mappings MappingRepository) *Service {
	return &Service{ledger: ledger, mappings: mappings}
}

// PostExpense journals an approved expense: debit the expense account (plus a
// tax-input debit when configured), credit the payment account or the default
// payable. Returns shared.ErrMissingAccount when no credit-side account can be
// resolved so the caller can report "cannot auto-journal" instead of failing
// silently. Idempotent per source: an existing non-voided entry is returned
// unchanged.
func (s *Service) PostExpense(ctx context.Context, src ExpenseSource) (journals.JournalEntry, error) {
	if src.ID == uuid.Nil {
		return journals.JournalEntry{}, errors.New("autojournal: expense id required")
	}
	if src.ExpenseAccountID == 0 {
		return journals.JournalEntry{}, shared.ErrMissingAccount
	}
	if !src.Total().IsPositive() {
		return journals.JournalEntry{}, errors.New("autojournal: expense total must be positive")
	}

	if existing, err := s.ledger.FindByReference(ctx, journals.RefExpense, src.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, shared.ErrJournalNotFound) {
		return journals.JournalEntry{}, err
	}

	creditAccountID, err := s.resolveCreditAccount(ctx, src)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	lines, err := s.buildExpenseLines(ctx, src, creditAccountID)
	if err != nil {
		return journals.JournalEntry{}, err
	}

	entry, err := s.ledger.CreateEntry(ctx, journals.CreateEntryInput{
		Date:         src.Date,
		Type:         journals.TypeAutoExpense,
		Reference:    &journals.Reference{Kind: journals.RefExpense, ID: src.ID},
		Memo:         fmt.Sprintf("Expense %s", src.Number),
		Currency:     src.Currency,
		ExchangeRate: src.ExchangeRate,
		CreatedBy:    src.CreatedBy,
		AutoPost:     true,
		Lines:        lines,
	})
	if err != nil {
		// Lost the race against a concurrent generator run: surface the
		// winner's entry, the outcome is the same.
		if errors.Is(err, shared.ErrDuplicateReference) {
			return s.ledger.FindByReference(ctx, journals.RefExpense, src.ID)
		}
		return journals.JournalEntry{}, err
	}
	return entry, nil
}

func (s *Service) resolveCreditAccount(ctx context.Context, src ExpenseSource) (int64, error) {
	if src.PaymentAccountID != nil && *src.PaymentAccountID != 0 {
		return *src.PaymentAccountID, nil
	}
	mapping, err := s.mappings.FindByPurpose(ctx, PurposeDefaultPayable)
	if err != nil {
		if errors.Is(err, shared.ErrMappingNotFound) {
			return 0, shared.ErrMissingAccount
		}
		return 0, err
	}
	return mapping.AccountID, nil
}

func (s *Service) buildExpenseLines(ctx context.Context, src ExpenseSource, creditAccountID int64) ([]journals.LineInput, error) {
	total := src.Total()
	lines := make([]journals.LineInput, 0, 3)

	expenseDebit := total
	if src.TaxAmount.IsPositive() {
		taxMapping, err := s.mappings.FindByPurpose(ctx, PurposeTaxInput)
		switch {
		case err == nil:
			// Separate tax-input account configured: split the debit.
			expenseDebit = src.Amount
			lines = append(lines, journals.LineInput{
				AccountID:   src.ExpenseAccountID,
				Description: fmt.Sprintf("Expense %s", src.Number),
				Debit:       expenseDebit,
				SupplierID:  src.SupplierID,
				ExpenseID:   src.ExpenseRecordID,
			}, journals.LineInput{
				AccountID:   taxMapping.AccountID,
				Description: fmt.Sprintf("Input tax %s", src.Number),
				Debit:       src.TaxAmount,
				ExpenseID:   src.ExpenseRecordID,
			})
		case errors.Is(err, shared.ErrMappingNotFound):
			// No tax account configured: the full total lands on the expense.
			lines = append(lines, journals.LineInput{
				AccountID:   src.ExpenseAccountID,
				Description: fmt.Sprintf("Expense %s", src.Number),
				Debit:       total,
				SupplierID:  src.SupplierID,
				ExpenseID:   src.ExpenseRecordID,
			})
		default:
			return nil, err
		}
	} else {
		lines = append(lines, journals.LineInput{
			AccountID:   src.ExpenseAccountID,
			Description: fmt.Sprintf("Expense %s", src.Number),
			Debit:       expenseDebit,
			SupplierID:  src.SupplierID,
			ExpenseID:   src.ExpenseRecordID,
		})
	}

	lines = append(lines, journals.LineInput{
		AccountID:   creditAccountID,
		Description: fmt.Sprintf("Payment for %s", src.Number),
		Credit:      total,
		SupplierID:  src.SupplierID,
		ExpenseID:   src.ExpenseRecordID,
	})
	return lines, nil
}

// PostBankAdjustment journals a reconciliation adjustment between the bank's
// ledger account and the configured bank clearing account. A positive amount
// debits the bank account; a negative amount credits it. Idempotent per
// adjustment id.
func (s *Service) PostBankAdjustment(ctx context.Context, src BankAdjustmentSource) (journals.JournalEntry, error) {
	if src.ID == uuid.Nil {
		return journals.JournalEntry{}, errors.New("autojournal: adjustment id required")
	}
	if src.BankGLAccountID == 0 {
		return journals.JournalEntry{}, shared.ErrMissingAccount
	}
	if src.Amount.IsZero() {
		return journals.JournalEntry{}, errors.New("autojournal: adjustment amount must be nonzero")
	}

	if existing, err := s.ledger.FindByReference(ctx, journals.RefBankAdjustment, src.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, shared.ErrJournalNotFound) {
		return journals.JournalEntry{}, err
	}

	mapping, err := s.mappings.FindByPurpose(ctx, PurposeBankClearing)
	if err != nil {
		if errors.Is(err, shared.ErrMappingNotFound) {
			return journals.JournalEntry{}, shared.ErrMissingAccount
		}
		return journals.JournalEntry{}, err
	}

	magnitude := src.Amount.Abs()
	bankLine := journals.LineInput{AccountID: src.BankGLAccountID, Description: src.Description}
	clearingLine := journals.LineInput{AccountID: mapping.AccountID, Description: src.Description}
	if src.Amount.IsPositive() {
		bankLine.Debit = magnitude
		clearingLine.Credit = magnitude
	} else {
		bankLine.Credit = magnitude
		clearingLine.Debit = magnitude
	}

	entry, err := s.ledger.CreateEntry(ctx, journals.CreateEntryInput{
		Date:         src.Date,
		Type:         journals.TypeAdjustment,
		Reference:    &journals.Reference{Kind: journals.RefBankAdjustment, ID: src.ID},
		Memo:         src.Description,
		Currency:     src.Currency,
		ExchangeRate: decimal.NewFromInt(1),
		CreatedBy:    src.CreatedBy,
		AutoPost:     true,
		Lines:        []journals.LineInput{bankLine, clearingLine},
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateReference) {
			return s.ledger.FindByReference(ctx, journals.RefBankAdjustment, src.ID)
		}
		return journals.JournalEntry{}, err
	}
	return entry, nil
}

// Reverse voids the entry linked to a source record so the originating
// workflow can step back. The voided entry is returned for the caller to
// mirror the status change on the source.
func (s *Service) Reverse(ctx context.Context, kind journals.ReferenceKind, sourceID uuid.UUID, actorID int64, reason string) (journals.JournalEntry, error) {
	entry, err := s.ledger.FindByReference(ctx, kind, sourceID)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	return s.ledger.Void(ctx, journals.VoidInput{EntryID: entry.ID, ActorID: actorID, Reason: reason})
}
