package journals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/fiscal"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	Get(ctx context.Context, entryID int64) (JournalEntry, error)
	List(ctx context.Context, limit, offset int) ([]JournalEntry, error)
	FindByReference(ctx context.Context, kind ReferenceKind, refID uuid.UUID) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertEntry(ctx context.Context, in CreateEntryInput, periodID int64) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, rate decimal.Decimal, lines []LineInput) ([]JournalEntryLine, error)
	GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalEntryLine, error)
	MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time) error
	MarkVoided(ctx context.Context, entryID, actorID int64, reason string, at time.Time) error

	// Period re-check under lock, needed inside posting transactions.
	GetPeriodForUpdate(ctx context.Context, periodID int64) (fiscal.FiscalPeriod, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, entry_number, entry_date, fiscal_period_id, entry_type, reference_kind, reference_id, memo,
currency_code, exchange_rate::text, total_debit::text, total_credit::text, status, created_by,
posted_by, posted_at, voided_by, voided_at, void_reason, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e                        JournalEntry
		refKind                  *string
		refID                    *uuid.UUID
		rate, totalDr, totalCr   string
	)
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.FiscalPeriodID, &e.Type, &refKind, &refID, &e.Memo,
		&e.Currency, &rate, &totalDr, &totalCr, &e.Status, &e.CreatedBy,
		&e.PostedBy, &e.PostedAt, &e.VoidedBy, &e.VoidedAt, &e.VoidReason, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	if refKind != nil && refID != nil {
		e.Reference = &Reference{Kind: ReferenceKind(*refKind), ID: *refID}
	}
	if e.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return JournalEntry{}, err
	}
	if e.TotalDebit, err = decimal.NewFromString(totalDr); err != nil {
		return JournalEntry{}, err
	}
	if e.TotalCredit, err = decimal.NewFromString(totalCr); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

const lineColumns = `id, journal_entry_id, account_id, line_number, description,
debit_amount::text, credit_amount::text, debit_amount_base::text, credit_amount_base::text,
customer_id, supplier_id, product_id, expense_id, created_at`

func scanLine(row pgx.Row) (JournalEntryLine, error) {
	var (
		l                      JournalEntryLine
		dr, cr, drBase, crBase string
	)
	err := row.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.LineNumber, &l.Description,
		&dr, &cr, &drBase, &crBase,
		&l.CustomerID, &l.SupplierID, &l.ProductID, &l.ExpenseID, &l.CreatedAt)
	if err != nil {
		return JournalEntryLine{}, err
	}
	if l.Debit, err = decimal.NewFromString(dr); err != nil {
		return JournalEntryLine{}, err
	}
	if l.Credit, err = decimal.NewFromString(cr); err != nil {
		return JournalEntryLine{}, err
	}
	if l.DebitBase, err = decimal.NewFromString(drBase); err != nil {
		return JournalEntryLine{}, err
	}
	if l.CreditBase, err = decimal.NewFromString(crBase); err != nil {
		return JournalEntryLine{}, err
	}
	return l, nil
}

func (r *repository) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM journal_entry_lines WHERE journal_entry_id=$1 ORDER BY line_number`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY entry_number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) FindByReference(ctx context.Context, kind ReferenceKind, refID uuid.UUID) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE reference_kind=$1 AND reference_id=$2 AND status <> 'voided' LIMIT 1`, kind, refID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return entry, nil
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

func (r *txRepository) InsertEntry(ctx context.Context, in CreateEntryInput, periodID int64) (JournalEntry, error) {
	debit, credit := in.Totals()
	var refKind, refID any
	if in.Reference != nil {
		refKind = string(in.Reference.Kind)
		refID = in.Reference.ID
	}
	entry := JournalEntry{
		Date:           in.Date,
		FiscalPeriodID: periodID,
		Type:           in.Type,
		Reference:      in.Reference,
		Memo:           in.Memo,
		Currency:       in.Currency,
		ExchangeRate:   in.ExchangeRate,
		TotalDebit:     debit.Round(2),
		TotalCredit:    credit.Round(2),
		Status:         StatusDraft,
		CreatedBy:      in.CreatedBy,
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(entry_number, entry_date, fiscal_period_id, entry_type, reference_kind, reference_id, memo, currency_code, exchange_rate, total_debit, total_credit, status, created_by)
VALUES ('JE-' || lpad(nextval('journal_entry_number_seq')::text, 6, '0'), $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'draft',$11)
RETURNING id, entry_number, created_at, updated_at`,
		in.Date, periodID, in.Type, refKind, refID, in.Memo, in.Currency,
		in.ExchangeRate.String(), entry.TotalDebit.StringFixed(2), entry.TotalCredit.StringFixed(2), in.CreatedBy).
		Scan(&entry.ID, &entry.Number, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return JournalEntry{}, shared.ErrDuplicateReference
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, rate decimal.Decimal, lines []LineInput) ([]JournalEntryLine, error) {
	out := make([]JournalEntryLine, 0, len(lines))
	for idx, line := range lines {
		debitBase := line.Debit.Mul(rate).Round(2)
		creditBase := line.Credit.Mul(rate).Round(2)
		inserted := JournalEntryLine{
			EntryID:     entryID,
			AccountID:   line.AccountID,
			LineNumber:  idx + 1,
			Description: line.Description,
			Debit:       line.Debit.Round(2),
			Credit:      line.Credit.Round(2),
			DebitBase:   debitBase,
			CreditBase:  creditBase,
			CustomerID:  line.CustomerID,
			SupplierID:  line.SupplierID,
			ProductID:   line.ProductID,
			ExpenseID:   line.ExpenseID,
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_lines
(journal_entry_id, account_id, line_number, description, debit_amount, credit_amount, debit_amount_base, credit_amount_base, customer_id, supplier_id, product_id, expense_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, created_at`,
			entryID, line.AccountID, idx+1, line.Description,
			inserted.Debit.StringFixed(2), inserted.Credit.StringFixed(2),
			debitBase.StringFixed(2), creditBase.StringFixed(2),
			line.CustomerID, line.SupplierID, line.ProductID, line.ExpenseID).
			Scan(&inserted.ID, &inserted.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalEntryLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM journal_entry_lines WHERE journal_entry_id=$1 ORDER BY line_number`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalEntryLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='posted', posted_by=$2, posted_at=$3, updated_at=NOW()
WHERE id=$1 AND status='draft'`, entryID, actorID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) MarkVoided(ctx context.Context, entryID, actorID int64, reason string, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='voided', voided_by=$2, voided_at=$3, void_reason=$4, updated_at=NOW()
WHERE id=$1 AND status IN ('draft','posted')`, entryID, actorID, at, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, periodID int64) (fiscal.FiscalPeriod, error) {
	var p fiscal.FiscalPeriod
	err := r.tx.QueryRow(ctx, `SELECT id, fiscal_year_id, name, period_number, start_date, end_date, status, is_adjusting, created_at, updated_at
FROM fiscal_periods WHERE id=$1 FOR UPDATE`, periodID).
		Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.PeriodNumber, &p.StartDate, &p.EndDate, &p.Status, &p.IsAdjusting, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fiscal.FiscalPeriod{}, shared.ErrPeriodNotFound
		}
		return fiscal.FiscalPeriod{}, err
	}
	return p, nil
}
