package autojournal

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// MappingRepository resolves configured account slots.
type MappingRepository interface {
	FindByPurpose(ctx context.Context, purpose MappingPurpose) (AccountMapping, error)
}

type mappingRepository struct {
	db *pgxpool.Pool
}

func NewMappingRepository(db *pgxpool.Pool) MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) FindByPurpose(ctx context.Context, purpose MappingPurpose) (AccountMapping, error) {
	var m AccountMapping
	err := r.db.QueryRow(ctx, `SELECT id, purpose, account_id, created_at, updated_at
FROM account_mappings WHERE purpose=$1`, purpose).
		Scan(&m.ID, &m.Purpose, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return m, nil
}
