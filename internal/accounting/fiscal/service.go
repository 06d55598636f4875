package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

// Service answers period lookups for the ledger engine and manages the
// open/adjusting/closed lifecycle.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// PeriodForDate finds the period whose window contains the date.
func (s *Service) PeriodForDate(ctx context.Context, date time.Time) (FiscalPeriod, error) {
	return s.repo.FindPeriodByDate(ctx, date)
}

// EnsurePostable resolves the period for the date and rejects postings into
// closed or missing periods.
func (s *Service) EnsurePostable(ctx context.Context, date time.Time) (FiscalPeriod, error) {
	period, err := s.repo.FindPeriodByDate(ctx, date)
	if err != nil {
		return FiscalPeriod{}, err
	}
	if !period.IsPostable() {
		return FiscalPeriod{}, shared.ErrPeriodClosed
	}
	return period, nil
}

// Period returns a period by id.
func (s *Service) Period(ctx context.Context, id int64) (FiscalPeriod, error) {
	return s.repo.GetPeriod(ctx, id)
}

// Periods lists the periods of a fiscal year ordered by number.
func (s *Service) Periods(ctx context.Context, fiscalYearID int64) ([]FiscalPeriod, error) {
	return s.repo.ListPeriods(ctx, fiscalYearID)
}

// CurrentYear returns the fiscal year flagged current.
func (s *Service) CurrentYear(ctx context.Context) (FiscalYear, error) {
	return s.repo.GetCurrentYear(ctx)
}

// ClosePeriod marks a period closed. Closed periods reject further postings.
func (s *Service) ClosePeriod(ctx context.Context, periodID int64) error {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status == PeriodStatusClosed {
		return shared.ErrInvalidStatus
	}
	return s.repo.UpdatePeriodStatus(ctx, periodID, PeriodStatusClosed)
}

// ReopenPeriod moves a closed period back to adjusting so late entries can
// post. Periods of a closed fiscal year stay closed.
func (s *Service) ReopenPeriod(ctx context.Context, periodID int64) error {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status != PeriodStatusClosed {
		return shared.ErrInvalidStatus
	}
	year, err := s.repo.GetYear(ctx, period.FiscalYearID)
	if err != nil {
		return err
	}
	if year.Status == YearStatusClosed {
		return shared.ErrInvalidStatus
	}
	return s.repo.UpdatePeriodStatus(ctx, periodID, PeriodStatusAdjusting)
}

// MarkAdjusting puts an open period into year-end adjusting mode.
func (s *Service) MarkAdjusting(ctx context.Context, periodID int64) error {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status != PeriodStatusOpen {
		return shared.ErrInvalidStatus
	}
	return s.repo.UpdatePeriodStatus(ctx, periodID, PeriodStatusAdjusting)
}

// CloseYear closes the fiscal year permanently. All of its periods must
// already be closed.
func (s *Service) CloseYear(ctx context.Context, yearID int64) error {
	periods, err := s.repo.ListPeriods(ctx, yearID)
	if err != nil {
		return err
	}
	for _, p := range periods {
		if p.Status != PeriodStatusClosed {
			return shared.ErrInvalidStatus
		}
	}
	return s.repo.UpdateYearStatus(ctx, yearID, YearStatusClosed)
}

// GenerateYear creates a fiscal year with twelve monthly periods and an
// optional thirteenth adjusting period sharing the year-end date.
func (s *Service) GenerateYear(ctx context.Context, name string, start time.Time, withAdjusting bool) (FiscalYear, error) {
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, -1)
	year := FiscalYear{
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Status:    YearStatusOpen,
	}
	periods := make([]FiscalPeriod, 0, 13)
	for i := 0; i < 12; i++ {
		pStart := start.AddDate(0, i, 0)
		pEnd := pStart.AddDate(0, 1, -1)
		periods = append(periods, FiscalPeriod{
			Name:         fmt.Sprintf("%s %s", pStart.Month().String(), name),
			PeriodNumber: i + 1,
			StartDate:    pStart,
			EndDate:      pEnd,
			Status:       PeriodStatusOpen,
		})
	}
	if withAdjusting {
		periods = append(periods, FiscalPeriod{
			Name:         fmt.Sprintf("Adjusting %s", name),
			PeriodNumber: 13,
			StartDate:    end,
			EndDate:      end,
			Status:       PeriodStatusAdjusting,
			IsAdjusting:  true,
		})
	}
	return s.repo.InsertYear(ctx, year, periods)
}
