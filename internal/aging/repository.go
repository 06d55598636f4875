package aging

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/platform/db"
)

// Repository reads open documents and writes balance snapshots.
type Repository interface {
	OpenItems(ctx context.Context, side Side, currency string, counterpartyID *int64) ([]OpenItem, error)
	CreditLimits(ctx context.Context, customerIDs []int64) (map[int64]decimal.Decimal, error)
	// ReplaceSnapshots zeroes every stored row for the currency, then writes
	// the given snapshots, all inside one transaction.
	ReplaceSnapshots(ctx context.Context, side Side, currency string, snapshots []BalanceSnapshot) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Orders in draft or cancelled never age; everything else in the workflow is
// live exposure.
const openReceivablesQuery = `SELECT o.customer_id, c.name, o.id, o.order_number, o.order_date, o.due_date, o.balance_due::text
FROM sales_orders o
JOIN customers c ON c.id = o.customer_id
WHERE o.currency_code = $1 AND o.balance_due > 0 AND o.status NOT IN ('draft', 'cancelled')`

const openPayablesQuery = `SELECT o.supplier_id, s.name, o.id, o.order_number, o.order_date, o.due_date, o.balance_due::text
FROM purchase_orders o
JOIN suppliers s ON s.id = o.supplier_id
WHERE o.currency_code = $1 AND o.balance_due > 0 AND o.status NOT IN ('draft', 'cancelled')`

func (r *repository) OpenItems(ctx context.Context, side Side, currency string, counterpartyID *int64) ([]OpenItem, error) {
	query := openReceivablesQuery
	filter := " AND o.customer_id = $2"
	if side == SidePayable {
		query = openPayablesQuery
		filter = " AND o.supplier_id = $2"
	}

	var (
		rows pgx.Rows
		err  error
	)
	if counterpartyID != nil {
		rows, err = r.pool.Query(ctx, query+filter, currency, *counterpartyID)
	} else {
		rows, err = r.pool.Query(ctx, query, currency)
	}
	if err != nil {
		return nil, fmt.Errorf("aging: query open items: %w", err)
	}
	defer rows.Close()

	var items []OpenItem
	for rows.Next() {
		var (
			item OpenItem
			due  string
		)
		if err := rows.Scan(&item.CounterpartyID, &item.CounterpartyName, &item.DocumentID,
			&item.DocumentNumber, &item.Date, &item.DueDate, &due); err != nil {
			return nil, fmt.Errorf("aging: scan open item: %w", err)
		}
		if item.BalanceDue, err = decimal.NewFromString(due); err != nil {
			return nil, fmt.Errorf("aging: parse balance due: %w", err)
		}
		item.Currency = currency
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) CreditLimits(ctx context.Context, customerIDs []int64) (map[int64]decimal.Decimal, error) {
	limits := make(map[int64]decimal.Decimal, len(customerIDs))
	if len(customerIDs) == 0 {
		return limits, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, COALESCE(credit_limit, 0)::text FROM customers WHERE id = ANY($1)`, customerIDs)
	if err != nil {
		return nil, fmt.Errorf("aging: query credit limits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("aging: scan credit limit: %w", err)
		}
		limit, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("aging: parse credit limit: %w", err)
		}
		limits[id] = limit
	}
	return limits, rows.Err()
}

func (r *repository) ReplaceSnapshots(ctx context.Context, side Side, currency string, snapshots []BalanceSnapshot) error {
	table, idColumn := "customer_balances", "customer_id"
	if side == SidePayable {
		table, idColumn = "supplier_balances", "supplier_id"
	}

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Zero first so counterparties with no remaining open items keep a
		// row reading zero instead of stale buckets. A zero receivable
		// balance restores the full credit limit.
		zeroSQL := fmt.Sprintf(`UPDATE %s SET current_0_30 = 0, current_31_60 = 0, current_61_90 = 0,
current_over_90 = 0, current_balance = 0, updated_at = NOW() WHERE currency_code = $1`, table)
		if side == SideReceivable {
			zeroSQL = `UPDATE customer_balances cb SET current_0_30 = 0, current_31_60 = 0,
current_61_90 = 0, current_over_90 = 0, current_balance = 0,
available_credit = c.credit_limit, updated_at = NOW()
FROM customers c WHERE c.id = cb.customer_id AND cb.currency_code = $1`
		}
		if _, err := tx.Exec(ctx, zeroSQL, currency); err != nil {
			return fmt.Errorf("aging: zero snapshots: %w", err)
		}

		upsertSQL := fmt.Sprintf(`INSERT INTO %s (%s, currency_code, current_0_30, current_31_60, current_61_90,
current_over_90, current_balance, available_credit, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
ON CONFLICT (%s, currency_code) DO UPDATE SET
current_0_30 = EXCLUDED.current_0_30, current_31_60 = EXCLUDED.current_31_60,
current_61_90 = EXCLUDED.current_61_90, current_over_90 = EXCLUDED.current_over_90,
current_balance = EXCLUDED.current_balance, available_credit = EXCLUDED.available_credit,
updated_at = NOW()`, table, idColumn, idColumn)

		for _, snap := range snapshots {
			var available *string
			if snap.AvailableCredit != nil {
				v := snap.AvailableCredit.StringFixed(2)
				available = &v
			}
			if _, err := tx.Exec(ctx, upsertSQL,
				snap.CounterpartyID, currency,
				snap.Buckets.Current0To30.StringFixed(2),
				snap.Buckets.Current31To60.StringFixed(2),
				snap.Buckets.Current61To90.StringFixed(2),
				snap.Buckets.CurrentOver90.StringFixed(2),
				snap.CurrentBalance.StringFixed(2),
				available,
			); err != nil {
				return fmt.Errorf("aging: upsert snapshot counterparty=%d: %w", snap.CounterpartyID, err)
			}
		}
		return nil
	})
}
