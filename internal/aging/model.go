// Package aging computes AR and AP outstanding-balance buckets over open
// documents and maintains the denormalized per-counterparty snapshots.
package aging

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side selects the receivable (customer) or payable (supplier) mirror of the
// engine. The two sides share every algorithm and differ only in the tables
// they read and write.
type Side string

const (
	SideReceivable Side = "receivable"
	SidePayable    Side = "payable"
)

func (s Side) Valid() bool {
	return s == SideReceivable || s == SidePayable
}

// OpenItem is one unpaid or partially paid document owed by or to a
// counterparty. BalanceDue is what remains outstanding.
type OpenItem struct {
	CounterpartyID   int64
	CounterpartyName string
	DocumentID       int64
	DocumentNumber   string
	Date             time.Time
	DueDate          *time.Time
	BalanceDue       decimal.Decimal
	Currency         string
}

// ReferenceDate is the date aging is measured from: the due date when one is
// set, otherwise the document date.
func (i OpenItem) ReferenceDate() time.Time {
	if i.DueDate != nil {
		return *i.DueDate
	}
	return i.Date
}

// Buckets holds outstanding amounts grouped by days past due. Upper bounds
// are inclusive: day 30 is still current, day 31 opens the next bucket.
type Buckets struct {
	Current0To30  decimal.Decimal
	Current31To60 decimal.Decimal
	Current61To90 decimal.Decimal
	CurrentOver90 decimal.Decimal
}

func zeroBuckets() Buckets {
	return Buckets{
		Current0To30:  decimal.Zero,
		Current31To60: decimal.Zero,
		Current61To90: decimal.Zero,
		CurrentOver90: decimal.Zero,
	}
}

// Total sums all four buckets.
func (b Buckets) Total() decimal.Decimal {
	return b.Current0To30.Add(b.Current31To60).Add(b.Current61To90).Add(b.CurrentOver90)
}

func (b *Buckets) add(daysPastDue int, amount decimal.Decimal) {
	switch {
	case daysPastDue <= 30:
		b.Current0To30 = b.Current0To30.Add(amount)
	case daysPastDue <= 60:
		b.Current31To60 = b.Current31To60.Add(amount)
	case daysPastDue <= 90:
		b.Current61To90 = b.Current61To90.Add(amount)
	default:
		b.CurrentOver90 = b.CurrentOver90.Add(amount)
	}
}

// CounterpartyAging is one report row.
type CounterpartyAging struct {
	CounterpartyID   int64
	CounterpartyName string
	Buckets          Buckets
	Total            decimal.Decimal
}

// Report is the aging report for one side and currency.
type Report struct {
	Side     Side
	AsOf     time.Time
	Currency string
	Rows     []CounterpartyAging
	Totals   Buckets
}

// BalanceSnapshot is the denormalized row persisted per (counterparty,
// currency). AvailableCredit is populated on the receivable side only.
type BalanceSnapshot struct {
	CounterpartyID  int64
	Currency        string
	Buckets         Buckets
	CurrentBalance  decimal.Decimal
	AvailableCredit *decimal.Decimal
}
