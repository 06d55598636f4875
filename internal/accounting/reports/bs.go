package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/accounts"
)

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code    string
	Name    string
	Balance decimal.Decimal
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string
	Accounts []BalanceSheetAccount
	Total    decimal.Decimal
}

// BalanceSheet is the structured response for the balance sheet report.
// CurrentEarnings is the fiscal-year-to-date net income folded into equity.
type BalanceSheet struct {
	Assets                    BalanceSheetSection
	Liabilities               BalanceSheetSection
	Equity                    BalanceSheetSection
	CurrentEarnings           decimal.Decimal
	TotalLiabilitiesAndEquity decimal.Decimal
}

// Balanced reports the accounting-equation self-check.
func (bs BalanceSheet) Balanced() bool {
	return bs.Assets.Total.Round(2).Equal(bs.TotalLiabilitiesAndEquity.Round(2))
}

// BuildBalanceSheet aggregates balances into assets, liabilities, and equity,
// with the year-to-date net income added to equity as current earnings.
func BuildBalanceSheet(balances []AccountBalance, netIncomeYTD decimal.Decimal) BalanceSheet {
	bs := BalanceSheet{
		Assets:          BalanceSheetSection{Label: "Assets", Total: decimal.Zero},
		Liabilities:     BalanceSheetSection{Label: "Liabilities", Total: decimal.Zero},
		Equity:          BalanceSheetSection{Label: "Equity", Total: decimal.Zero},
		CurrentEarnings: netIncomeYTD,
	}

	for _, acc := range balances {
		balance := acc.NormalSide()
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: balance}
		switch acc.Type {
		case accounts.TypeAsset:
			bs.Assets.Accounts = append(bs.Assets.Accounts, row)
			bs.Assets.Total = bs.Assets.Total.Add(balance)
		case accounts.TypeLiability:
			bs.Liabilities.Accounts = append(bs.Liabilities.Accounts, row)
			bs.Liabilities.Total = bs.Liabilities.Total.Add(balance)
		case accounts.TypeEquity:
			bs.Equity.Accounts = append(bs.Equity.Accounts, row)
			bs.Equity.Total = bs.Equity.Total.Add(balance)
		}
	}

	for _, section := range []*BalanceSheetSection{&bs.Assets, &bs.Liabilities, &bs.Equity} {
		rows := section.Accounts
		sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	}

	bs.Equity.Total = bs.Equity.Total.Add(netIncomeYTD)
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.Equity.Total)
	return bs
}
