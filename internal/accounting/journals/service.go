package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/accounts"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/fiscal"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
	internalShared "github.com/ak-rocksdev/hyperbiz-core/internal/shared"
)

// AuditPort records audit trail rows for mutating operations.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// PeriodResolver maps a posting date to a postable fiscal period.
type PeriodResolver interface {
	EnsurePostable(ctx context.Context, date time.Time) (fiscal.FiscalPeriod, error)
}

// AccountResolver rejects lines that reference header or inactive accounts.
type AccountResolver interface {
	ResolvePostable(ctx context.Context, accountID int64) (accounts.ChartOfAccount, error)
}

// Service is the ledger engine: it creates, posts and voids journal entries
// while holding the balance and period invariants.
type Service struct {
	repo     Repository
	periods  PeriodResolver
	accounts AccountResolver
	audit    AuditPort
	now      func() time.Time
}

func NewService(repo Repository, periods PeriodResolver, audit AuditPort) *Service {
	return &Service{repo: repo, periods: periods, audit: audit, now: time.Now}
}

// WithAccounts enables per-line account postability checks.
func (s *Service) WithAccounts(resolver AccountResolver) *Service {
	s.accounts = resolver
	return s
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.Get(ctx, entryID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	return s.repo.List(ctx, limit, offset)
}

// CreateEntry validates and persists a journal entry atomically, optionally
// posting it in the same transaction. Nothing is persisted when any step
// fails: header, lines and the status change commit or roll back together.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	period, err := s.periods.EnsurePostable(ctx, input.Date)
	if err != nil {
		return JournalEntry{}, err
	}
	if s.accounts != nil {
		for _, line := range input.Lines {
			if _, err := s.accounts.ResolvePostable(ctx, line.AccountID); err != nil {
				return JournalEntry{}, fmt.Errorf("line account %d: %w", line.AccountID, err)
			}
		}
	}
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetPeriodForUpdate(ctx, period.ID)
		if err != nil {
			return err
		}
		if !locked.IsPostable() {
			return shared.ErrPeriodClosed
		}
		if !locked.Contains(input.Date) {
			return shared.ErrDateOutOfRange
		}
		inserted, err := tx.InsertEntry(ctx, input, locked.ID)
		if err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, inserted.ID, input.ExchangeRate, input.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		if input.AutoPost {
			now := s.now()
			if err := tx.MarkPosted(ctx, inserted.ID, input.CreatedBy, now); err != nil {
				return err
			}
			inserted.Status = StatusPosted
			inserted.PostedBy = &input.CreatedBy
			inserted.PostedAt = &now
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.CreatedBy, "journal.create", entry, map[string]any{
		"number":    entry.Number,
		"status":    string(entry.Status),
		"reference": referenceMeta(entry.Reference),
	})
	return entry, nil
}

// Post transitions a draft entry to posted. The balance invariant and period
// postability are re-checked under lock; posted entries become immutable.
func (s *Service) Post(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("journals: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrInvalidStatus
		}
		if !current.TotalDebit.Equal(current.TotalCredit) {
			return shared.ErrUnbalanced
		}
		period, err := tx.GetPeriodForUpdate(ctx, current.FiscalPeriodID)
		if err != nil {
			return err
		}
		if !period.IsPostable() {
			return shared.ErrPeriodClosed
		}
		now := s.now()
		if err := tx.MarkPosted(ctx, current.ID, actorID, now); err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		current.Status = StatusPosted
		current.PostedBy = &actorID
		current.PostedAt = &now
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, actorID, "journal.post", entry, map[string]any{"number": entry.Number})
	return entry, nil
}

// Void marks a draft or posted entry voided. Lines are retained for audit;
// report queries exclude the entry by filtering on status=posted.
func (s *Service) Void(ctx context.Context, input VoidInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("journals: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if current.Status == StatusVoided {
			return shared.ErrInvalidStatus
		}
		now := s.now()
		if err := tx.MarkVoided(ctx, current.ID, input.ActorID, input.Reason, now); err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		current.Status = StatusVoided
		current.VoidedBy = &input.ActorID
		current.VoidedAt = &now
		current.VoidReason = &input.Reason
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.ActorID, "journal.void", entry, map[string]any{"reason": input.Reason})
	return entry, nil
}

// FindByReference returns the non-voided entry linked to the source record.
func (s *Service) FindByReference(ctx context.Context, kind ReferenceKind, refID uuid.UUID) (JournalEntry, error) {
	return s.repo.FindByReference(ctx, kind, refID)
}

// HasJournalEntry reports whether a non-voided entry exists for the source.
// Auto-journal generators call this before creating, so the same business
// event never double-posts.
func (s *Service) HasJournalEntry(ctx context.Context, kind ReferenceKind, refID uuid.UUID) (bool, error) {
	_, err := s.repo.FindByReference(ctx, kind, refID)
	if err != nil {
		if errors.Is(err, shared.ErrJournalNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entry JournalEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	})
}

func referenceMeta(ref *Reference) string {
	if ref == nil {
		return ""
	}
	return string(ref.Kind) + ":" + ref.ID.String()
}
