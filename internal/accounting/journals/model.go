package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus enumerates journal lifecycle values.
// draft -> posted, draft -> voided, posted -> voided; voided is terminal.
type EntryStatus string

const (
	StatusDraft  EntryStatus = "draft"
	StatusPosted EntryStatus = "posted"
	StatusVoided EntryStatus = "voided"
)

// EntryType records how an entry originated.
type EntryType string

const (
	TypeManual      EntryType = "manual"
	TypeAutoExpense EntryType = "auto_expense"
	TypeAutoIncome  EntryType = "auto_income"
	TypeAdjustment  EntryType = "adjustment"
)

// ReferenceKind discriminates the originating business record of an entry.
type ReferenceKind string

const (
	RefExpense        ReferenceKind = "expense"
	RefInvoice        ReferenceKind = "invoice"
	RefPayment        ReferenceKind = "payment"
	RefBankAdjustment ReferenceKind = "bank_adjustment"
)

// Reference links an entry to its source record. At most one non-voided entry
// may exist per reference, enforced by a partial unique index.
type Reference struct {
	Kind ReferenceKind
	ID   uuid.UUID
}

// JournalEntry captures posting metadata and its lines.
type JournalEntry struct {
	ID             int64
	Number         string
	Date           time.Time
	FiscalPeriodID int64
	Type           EntryType
	Reference      *Reference
	Memo           string
	Currency       string
	ExchangeRate   decimal.Decimal
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	Status         EntryStatus
	CreatedBy      int64
	PostedBy       *int64
	PostedAt       *time.Time
	VoidedBy       *int64
	VoidedAt       *time.Time
	VoidReason     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []JournalEntryLine
}

// CanPost reports whether the entry may move to posted. The period check
// happens transactionally in the service.
func (e JournalEntry) CanPost() bool {
	return e.Status == StatusDraft && e.TotalDebit.Equal(e.TotalCredit)
}

// JournalEntryLine stores a debit or credit amount for one account. Exactly
// one of Debit/Credit is nonzero. Base amounts carry the company-currency
// value at the entry's exchange rate.
type JournalEntryLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	LineNumber  int
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	DebitBase   decimal.Decimal
	CreditBase  decimal.Decimal
	CustomerID  *int64
	SupplierID  *int64
	ProductID   *int64
	ExpenseID   *int64
	CreatedAt   time.Time
}
