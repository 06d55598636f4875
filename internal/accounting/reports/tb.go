package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow presents one account with its balance on a single side.
type TrialBalanceRow struct {
	Code    string
	Name    string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// TrialBalance is the structured report output.
type TrialBalance struct {
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports the ledger self-check: total debits equal total credits.
// A false value means posted data violates the balance invariant and must be
// surfaced, not silently rendered.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Round(2).Equal(tb.TotalCredit.Round(2))
}

// BuildTrialBalance converts account balances into trial balance rows. Each
// account appears with a single debit-or-credit balance; accounts with no
// movement are skipped.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	tb := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, acc := range balances {
		net := acc.Net()
		if net.IsZero() && acc.Debit.IsZero() && acc.Credit.IsZero() {
			continue
		}
		row := TrialBalanceRow{Code: acc.Code, Name: acc.Name, Debit: decimal.Zero, Credit: decimal.Zero}
		if net.IsNegative() {
			row.Credit = net.Neg()
		} else {
			row.Debit = net
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	return tb
}
