package aging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidSide = errors.New("aging: side must be receivable or payable")

// Query filters an aging report.
type Query struct {
	Side           Side
	AsOf           time.Time
	Currency       string
	CounterpartyID *int64
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Report builds the aging report for one side and currency. Rows are sorted
// by total outstanding descending.
func (s *Service) Report(ctx context.Context, q Query) (Report, error) {
	if !q.Side.Valid() {
		return Report{}, ErrInvalidSide
	}
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}

	items, err := s.repo.OpenItems(ctx, q.Side, q.Currency, q.CounterpartyID)
	if err != nil {
		return Report{}, err
	}

	byCounterparty := make(map[int64]*CounterpartyAging)
	report := Report{Side: q.Side, AsOf: asOf, Currency: q.Currency, Totals: zeroBuckets()}
	for _, item := range items {
		if !item.BalanceDue.IsPositive() {
			continue
		}
		days := daysPastDue(asOf, item.ReferenceDate())
		row, ok := byCounterparty[item.CounterpartyID]
		if !ok {
			row = &CounterpartyAging{
				CounterpartyID:   item.CounterpartyID,
				CounterpartyName: item.CounterpartyName,
				Buckets:          zeroBuckets(),
			}
			byCounterparty[item.CounterpartyID] = row
		}
		row.Buckets.add(days, item.BalanceDue)
		report.Totals.add(days, item.BalanceDue)
	}

	report.Rows = make([]CounterpartyAging, 0, len(byCounterparty))
	for _, row := range byCounterparty {
		row.Total = row.Buckets.Total()
		report.Rows = append(report.Rows, *row)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		if c := report.Rows[i].Total.Cmp(report.Rows[j].Total); c != 0 {
			return c > 0
		}
		return report.Rows[i].CounterpartyID < report.Rows[j].CounterpartyID
	})
	return report, nil
}

// RecalculateAll rebuilds every stored balance snapshot for the currency from
// a fresh aging run. The write is a full replace: rows without open items are
// zeroed, never deleted, so repeated runs converge on the same state.
func (s *Service) RecalculateAll(ctx context.Context, side Side, currency string) error {
	report, err := s.Report(ctx, Query{Side: side, Currency: currency})
	if err != nil {
		return err
	}

	var limits map[int64]decimal.Decimal
	if side == SideReceivable {
		ids := make([]int64, 0, len(report.Rows))
		for _, row := range report.Rows {
			ids = append(ids, row.CounterpartyID)
		}
		if limits, err = s.repo.CreditLimits(ctx, ids); err != nil {
			return err
		}
	}

	snapshots := make([]BalanceSnapshot, 0, len(report.Rows))
	for _, row := range report.Rows {
		snap := BalanceSnapshot{
			CounterpartyID: row.CounterpartyID,
			Currency:       currency,
			Buckets:        row.Buckets,
			CurrentBalance: row.Total,
		}
		if side == SideReceivable {
			available := limits[row.CounterpartyID].Sub(row.Total)
			snap.AvailableCredit = &available
		}
		snapshots = append(snapshots, snap)
	}

	if err := s.repo.ReplaceSnapshots(ctx, side, currency, snapshots); err != nil {
		return fmt.Errorf("aging: replace snapshots: %w", err)
	}
	s.logger.Info("aging snapshots recalculated",
		slog.String("side", string(side)),
		slog.String("currency", currency),
		slog.Int("counterparties", len(snapshots)))
	return nil
}

// daysPastDue measures whole calendar days between the reference date and
// asOf, ignoring time-of-day. Negative means not yet due.
func daysPastDue(asOf, ref time.Time) int {
	a := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	r := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(r).Hours() / 24)
}
