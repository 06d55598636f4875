package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
)

type memoryFiscalRepo struct {
	years    map[int64]*FiscalYear
	periods  map[int64]*FiscalPeriod
	nextYear int64
	nextPer  int64
}

func newMemoryFiscalRepo() *memoryFiscalRepo {
	return &memoryFiscalRepo{years: map[int64]*FiscalYear{}, periods: map[int64]*FiscalPeriod{}}
}

func (m *memoryFiscalRepo) FindPeriodByDate(_ context.Context, date time.Time) (FiscalPeriod, error) {
	var best *FiscalPeriod
	for _, p := range m.periods {
		if p.IsAdjusting || !p.Contains(date) {
			continue
		}
		if best == nil || p.StartDate.Before(best.StartDate) {
			best = p
		}
	}
	if best == nil {
		return FiscalPeriod{}, shared.ErrPeriodNotFound
	}
	return *best, nil
}

func (m *memoryFiscalRepo) GetPeriod(_ context.Context, id int64) (FiscalPeriod, error) {
	p, ok := m.periods[id]
	if !ok {
		return FiscalPeriod{}, shared.ErrPeriodNotFound
	}
	return *p, nil
}

func (m *memoryFiscalRepo) ListPeriods(_ context.Context, yearID int64) ([]FiscalPeriod, error) {
	var out []FiscalPeriod
	for num := 1; num <= 13; num++ {
		for _, p := range m.periods {
			if p.FiscalYearID == yearID && p.PeriodNumber == num {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

func (m *memoryFiscalRepo) GetCurrentYear(_ context.Context) (FiscalYear, error) {
	for _, y := range m.years {
		if y.IsCurrent {
			return *y, nil
		}
	}
	return FiscalYear{}, shared.ErrPeriodNotFound
}

func (m *memoryFiscalRepo) GetYear(_ context.Context, id int64) (FiscalYear, error) {
	y, ok := m.years[id]
	if !ok {
		return FiscalYear{}, shared.ErrPeriodNotFound
	}
	return *y, nil
}

func (m *memoryFiscalRepo) InsertYear(_ context.Context, year FiscalYear, periods []FiscalPeriod) (FiscalYear, error) {
	m.nextYear++
	year.ID = m.nextYear
	m.years[year.ID] = &year
	for _, p := range periods {
		m.nextPer++
		p.ID = m.nextPer
		p.FiscalYearID = year.ID
		stored := p
		m.periods[p.ID] = &stored
	}
	return year, nil
}

func (m *memoryFiscalRepo) UpdatePeriodStatus(_ context.Context, id int64, status PeriodStatus) error {
	p, ok := m.periods[id]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	p.Status = status
	return nil
}

func (m *memoryFiscalRepo) UpdateYearStatus(_ context.Context, id int64, status YearStatus) error {
	y, ok := m.years[id]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	y.Status = status
	return nil
}

func generateYear(t *testing.T, svc *Service, withAdjusting bool) FiscalYear {
	t.Helper()
	year, err := svc.GenerateYear(context.Background(),
		"FY2024", time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), withAdjusting)
	require.NoError(t, err)
	return year
}

func TestGenerateYearTwelveMonthlyPeriods(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)

	year := generateYear(t, svc, false)
	// Start snaps to the first of the month.
	require.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), year.StartDate)
	require.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), year.EndDate)

	periods, err := svc.Periods(context.Background(), year.ID)
	require.NoError(t, err)
	require.Len(t, periods, 12)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), periods[1].StartDate)
	require.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), periods[1].EndDate)
	require.Equal(t, PeriodStatusOpen, periods[0].Status)
}

func TestGenerateYearWithAdjustingPeriod(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)

	year := generateYear(t, svc, true)
	periods, err := svc.Periods(context.Background(), year.ID)
	require.NoError(t, err)
	require.Len(t, periods, 13)

	adj := periods[12]
	require.True(t, adj.IsAdjusting)
	require.Equal(t, year.EndDate, adj.StartDate)
	require.Equal(t, year.EndDate, adj.EndDate)
}

func TestPeriodForDateSkipsAdjustingPeriod(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	generateYear(t, svc, true)

	// December 31 falls in both December and the adjusting period; normal
	// resolution picks the regular month.
	period, err := svc.PeriodForDate(context.Background(), time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, period.IsAdjusting)
	require.Equal(t, 12, period.PeriodNumber)
}

func TestEnsurePostableRejectsClosedPeriod(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	year := generateYear(t, svc, false)

	periods, err := svc.Periods(context.Background(), year.ID)
	require.NoError(t, err)
	require.NoError(t, svc.ClosePeriod(context.Background(), periods[2].ID))

	_, err = svc.EnsurePostable(context.Background(), time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	_, err = svc.EnsurePostable(context.Background(), time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func TestEnsurePostableNoPeriod(t *testing.T) {
	svc := NewService(newMemoryFiscalRepo())
	_, err := svc.EnsurePostable(context.Background(), time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrPeriodNotFound)
}

func TestClosePeriodTwiceFails(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	year := generateYear(t, svc, false)
	periods, _ := svc.Periods(context.Background(), year.ID)

	require.NoError(t, svc.ClosePeriod(context.Background(), periods[0].ID))
	require.ErrorIs(t, svc.ClosePeriod(context.Background(), periods[0].ID), shared.ErrInvalidStatus)
}

func TestMarkAdjustingRequiresOpenPeriod(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	year := generateYear(t, svc, false)
	periods, _ := svc.Periods(context.Background(), year.ID)

	require.NoError(t, svc.MarkAdjusting(context.Background(), periods[0].ID))
	require.ErrorIs(t, svc.MarkAdjusting(context.Background(), periods[0].ID), shared.ErrInvalidStatus)

	// Adjusting periods still accept postings.
	period, err := svc.Period(context.Background(), periods[0].ID)
	require.NoError(t, err)
	require.True(t, period.IsPostable())
}

func TestCloseYearRequiresAllPeriodsClosed(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	year := generateYear(t, svc, false)
	periods, _ := svc.Periods(context.Background(), year.ID)

	require.ErrorIs(t, svc.CloseYear(context.Background(), year.ID), shared.ErrInvalidStatus)

	for _, p := range periods {
		require.NoError(t, svc.ClosePeriod(context.Background(), p.ID))
	}
	require.NoError(t, svc.CloseYear(context.Background(), year.ID))
	require.Equal(t, YearStatusClosed, repo.years[year.ID].Status)
}

func TestReopenPeriodBackToAdjusting(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	year := generateYear(t, svc, false)
	periods, _ := svc.Periods(context.Background(), year.ID)

	require.NoError(t, svc.ClosePeriod(context.Background(), periods[2].ID))
	require.NoError(t, svc.ReopenPeriod(context.Background(), periods[2].ID))

	reopened, err := svc.Period(context.Background(), periods[2].ID)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusAdjusting, reopened.Status)
	require.True(t, reopened.IsPostable())
}

func TestReopenPeriodRequiresClosedPeriod(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	year := generateYear(t, svc, false)
	periods, _ := svc.Periods(context.Background(), year.ID)

	require.ErrorIs(t, svc.ReopenPeriod(context.Background(), periods[0].ID), shared.ErrInvalidStatus)
}

func TestReopenPeriodRefusedForClosedYear(t *testing.T) {
	repo := newMemoryFiscalRepo()
	svc := NewService(repo)
	year := generateYear(t, svc, false)
	periods, _ := svc.Periods(context.Background(), year.ID)

	for _, p := range periods {
		require.NoError(t, svc.ClosePeriod(context.Background(), p.ID))
	}
	require.NoError(t, svc.CloseYear(context.Background(), year.ID))

	require.ErrorIs(t, svc.ReopenPeriod(context.Background(), periods[0].ID), shared.ErrInvalidStatus)
}
