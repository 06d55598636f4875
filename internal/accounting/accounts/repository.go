package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	Get(ctx context.Context, id int64) (ChartOfAccount, error)
	GetByCode(ctx context.Context, code string) (ChartOfAccount, error)
	ListActive(ctx context.Context) ([]ChartOfAccount, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, account_code, account_name, account_type, normal_balance, parent_id, is_header, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (ChartOfAccount, error) {
	var a ChartOfAccount
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.ParentID, &a.IsHeader, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) Get(ctx context.Context, id int64) (ChartOfAccount, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChartOfAccount{}, shared.ErrMissingAccount
		}
		return ChartOfAccount{}, err
	}
	return a, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (ChartOfAccount, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE account_code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChartOfAccount{}, shared.ErrMissingAccount
		}
		return ChartOfAccount{}, err
	}
	return a, nil
}

func (r *repository) ListActive(ctx context.Context) ([]ChartOfAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE is_active = TRUE ORDER BY account_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChartOfAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
