package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// Repository aggregates posted journal lines for reporting. Only lines of
// entries with status='posted' count; draft and voided entries are invisible
// to every report.
type Repository interface {
	AccountBalancesAsOf(ctx context.Context, cutoff time.Time) ([]AccountBalance, error)
	AccountBalancesRange(ctx context.Context, start, end time.Time) ([]AccountBalance, error)
	FiscalYearStart(ctx context.Context, asOf time.Time) (time.Time, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const balanceQuery = `SELECT a.id, a.account_code, a.account_name, a.account_type, a.normal_balance,
COALESCE(SUM(l.debit_amount_base), 0)::text, COALESCE(SUM(l.credit_amount_base), 0)::text
FROM chart_of_accounts a
JOIN journal_entry_lines l ON l.account_id = a.id
JOIN journal_entries e ON e.id = l.journal_entry_id AND e.status = 'posted'
WHERE a.is_active = TRUE AND a.is_header = FALSE AND e.entry_date BETWEEN $1 AND $2
GROUP BY a.id, a.account_code, a.account_name, a.account_type, a.normal_balance
ORDER BY a.account_code`

func (r *repository) AccountBalancesAsOf(ctx context.Context, cutoff time.Time) ([]AccountBalance, error) {
	// The epoch floor keeps the query shape identical between the as-of and
	// range variants.
	return r.balances(ctx, time.Unix(0, 0).UTC(), cutoff)
}

func (r *repository) AccountBalancesRange(ctx context.Context, start, end time.Time) ([]AccountBalance, error) {
	return r.balances(ctx, start, end)
}

func (r *repository) balances(ctx context.Context, start, end time.Time) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, balanceQuery, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var (
			b      AccountBalance
			dr, cr string
		)
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.NormalBalance, &dr, &cr); err != nil {
			return nil, err
		}
		if b.Debit, err = decimal.NewFromString(dr); err != nil {
			return nil, err
		}
		if b.Credit, err = decimal.NewFromString(cr); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) FiscalYearStart(ctx context.Context, asOf time.Time) (time.Time, error) {
	var start time.Time
	err := r.db.QueryRow(ctx, `SELECT start_date FROM fiscal_years WHERE $1 BETWEEN start_date AND end_date LIMIT 1`, asOf).
		Scan(&start)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, shared.ErrPeriodNotFound
		}
		return time.Time{}, err
	}
	return start, nil
}
