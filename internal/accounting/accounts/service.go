package accounts

import (
	"context"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (ChartOfAccount, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListActive(ctx context.Context) ([]ChartOfAccount, error) {
	return s.repo.ListActive(ctx)
}

// ResolvePostable fetches an account and rejects headers and inactive rows.
func (s *Service) ResolvePostable(ctx context.Context, id int64) (ChartOfAccount, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return ChartOfAccount{}, err
	}
	if !account.IsPostable() {
		return ChartOfAccount{}, shared.ErrMissingAccount
	}
	return account, nil
}
