package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/fiscal"
)

// PeriodGetter resolves report cutoffs from fiscal period ids.
type PeriodGetter interface {
	Period(ctx context.Context, id int64) (fiscal.FiscalPeriod, error)
}

// Service builds financial reports over posted ledger data. Identical
// concurrent report requests are collapsed through singleflight; reports are
// read-only and tolerate entries committed while they run.
type Service struct {
	repo    Repository
	periods PeriodGetter
	group   singleflight.Group
}

func NewService(repo Repository, periods PeriodGetter) *Service {
	return &Service{repo: repo, periods: periods}
}

// TrialBalance builds the trial balance of posted activity up to asOf.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	key := "tb:" + asOf.Format("2006-01-02")
	v, err, _ := s.do(ctx, key, func(ctx context.Context) (any, error) {
		balances, err := s.repo.AccountBalancesAsOf(ctx, asOf)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(balances), nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return v.(TrialBalance), nil
}

// TrialBalanceForPeriod builds the trial balance as of a fiscal period's end.
func (s *Service) TrialBalanceForPeriod(ctx context.Context, periodID int64) (TrialBalance, error) {
	period, err := s.periods.Period(ctx, periodID)
	if err != nil {
		return TrialBalance{}, err
	}
	return s.TrialBalance(ctx, period.EndDate)
}

// ProfitAndLoss builds the income statement for the date range.
func (s *Service) ProfitAndLoss(ctx context.Context, start, end time.Time) (ProfitAndLoss, error) {
	key := fmt.Sprintf("pl:%s:%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	v, err, _ := s.do(ctx, key, func(ctx context.Context) (any, error) {
		balances, err := s.repo.AccountBalancesRange(ctx, start, end)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(balances), nil
	})
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return v.(ProfitAndLoss), nil
}

// BalanceSheet builds the statement of financial position as of the date,
// folding the current fiscal year's net income into equity.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	key := "bs:" + asOf.Format("2006-01-02")
	v, err, _ := s.do(ctx, key, func(ctx context.Context) (any, error) {
		balances, err := s.repo.AccountBalancesAsOf(ctx, asOf)
		if err != nil {
			return nil, err
		}
		yearStart, err := s.repo.FiscalYearStart(ctx, asOf)
		if err != nil {
			return nil, err
		}
		ytd, err := s.repo.AccountBalancesRange(ctx, yearStart, asOf)
		if err != nil {
			return nil, err
		}
		netIncome := BuildProfitAndLoss(ytd).NetIncome
		return BuildBalanceSheet(balances, netIncome), nil
	})
	if err != nil {
		return BalanceSheet{}, err
	}
	return v.(BalanceSheet), nil
}

func (s *Service) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
