package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// Repository encapsulates DB operations for fiscal years and periods.
type Repository interface {
	FindPeriodByDate(ctx context.Context, date time.Time) (FiscalPeriod, error)
	GetPeriod(ctx context.Context, id int64) (FiscalPeriod, error)
	ListPeriods(ctx context.Context, fiscalYearID int64) ([]FiscalPeriod, error)
	GetCurrentYear(ctx context.Context) (FiscalYear, error)
	GetYear(ctx context.Context, id int64) (FiscalYear, error)
	InsertYear(ctx context.Context, year FiscalYear, periods []FiscalPeriod) (FiscalYear, error)
	UpdatePeriodStatus(ctx context.Context, periodID int64, status PeriodStatus) error
	UpdateYearStatus(ctx context.Context, yearID int64, status YearStatus) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, fiscal_year_id, name, period_number, start_date, end_date, status, is_adjusting, created_at, updated_at`

func scanPeriod(row pgx.Row) (FiscalPeriod, error) {
	var p FiscalPeriod
	err := row.Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.PeriodNumber, &p.StartDate, &p.EndDate, &p.Status, &p.IsAdjusting, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// FindPeriodByDate returns the period covering the supplied date. Adjusting
// periods share the year-end date with the last regular period; the regular
// period wins so adjusting entries must name their period explicitly.
func (r *repository) FindPeriodByDate(ctx context.Context, date time.Time) (FiscalPeriod, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM fiscal_periods WHERE $1 BETWEEN start_date AND end_date AND is_adjusting = FALSE
ORDER BY start_date LIMIT 1`, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalPeriod{}, shared.ErrPeriodNotFound
		}
		return FiscalPeriod{}, err
	}
	return p, nil
}

func (r *repository) GetPeriod(ctx context.Context, id int64) (FiscalPeriod, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalPeriod{}, shared.ErrPeriodNotFound
		}
		return FiscalPeriod{}, err
	}
	return p, nil
}

func (r *repository) ListPeriods(ctx context.Context, fiscalYearID int64) ([]FiscalPeriod, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE fiscal_year_id=$1 ORDER BY period_number`, fiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []FiscalPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *repository) GetCurrentYear(ctx context.Context) (FiscalYear, error) {
	var y FiscalYear
	err := r.db.QueryRow(ctx, `SELECT id, name, start_date, end_date, status, is_current, created_at, updated_at
FROM fiscal_years WHERE is_current = TRUE LIMIT 1`).
		Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.Status, &y.IsCurrent, &y.CreatedAt, &y.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, shared.ErrPeriodNotFound
		}
		return FiscalYear{}, err
	}
	return y, nil
}

func (r *repository) GetYear(ctx context.Context, id int64) (FiscalYear, error) {
	var y FiscalYear
	err := r.db.QueryRow(ctx, `SELECT id, name, start_date, end_date, status, is_current, created_at, updated_at
FROM fiscal_years WHERE id = $1`, id).
		Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.Status, &y.IsCurrent, &y.CreatedAt, &y.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, shared.ErrPeriodNotFound
		}
		return FiscalYear{}, err
	}
	return y, nil
}

func (r *repository) InsertYear(ctx context.Context, year FiscalYear, periods []FiscalPeriod) (FiscalYear, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return FiscalYear{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO fiscal_years (name, start_date, end_date, status, is_current)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		year.Name, year.StartDate, year.EndDate, year.Status, year.IsCurrent).
		Scan(&year.ID, &year.CreatedAt, &year.UpdatedAt)
	if err != nil {
		return FiscalYear{}, err
	}
	for _, p := range periods {
		if _, err := tx.Exec(ctx, `INSERT INTO fiscal_periods (fiscal_year_id, name, period_number, start_date, end_date, status, is_adjusting)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, year.ID, p.Name, p.PeriodNumber, p.StartDate, p.EndDate, p.Status, p.IsAdjusting); err != nil {
			return FiscalYear{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return FiscalYear{}, err
	}
	return year, nil
}

func (r *repository) UpdatePeriodStatus(ctx context.Context, periodID int64, status PeriodStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE fiscal_periods SET status=$2, updated_at=NOW() WHERE id=$1`, periodID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func (r *repository) UpdateYearStatus(ctx context.Context, yearID int64, status YearStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE fiscal_years SET status=$2, updated_at=NOW() WHERE id=$1`, yearID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}
