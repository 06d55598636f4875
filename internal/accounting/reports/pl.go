package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/accounts"
)

// ProfitAndLossAccount represents one account summary inside a section.
type ProfitAndLossAccount struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string
	Accounts []ProfitAndLossAccount
	Total    decimal.Decimal
}

// ProfitAndLoss contains the structured output for the report.
// Revenue and other income carry credit-minus-debit sign; every other
// section carries debit-minus-credit.
type ProfitAndLoss struct {
	Revenue         ProfitAndLossSection
	COGS            ProfitAndLossSection
	Expense         ProfitAndLossSection
	OtherIncome     ProfitAndLossSection
	OtherExpense    ProfitAndLossSection
	GrossProfit     decimal.Decimal
	OperatingIncome decimal.Decimal
	NetIncome       decimal.Decimal
}

func newSection(label string) ProfitAndLossSection {
	return ProfitAndLossSection{Label: label, Total: decimal.Zero}
}

func (s *ProfitAndLossSection) add(acc AccountBalance, amount decimal.Decimal) {
	s.Accounts = append(s.Accounts, ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

// BuildProfitAndLoss aggregates period balances into the P&L structure.
func BuildProfitAndLoss(balances []AccountBalance) ProfitAndLoss {
	pl := ProfitAndLoss{
		Revenue:      newSection("Revenue"),
		COGS:         newSection("Cost of Goods Sold"),
		Expense:      newSection("Operating Expenses"),
		OtherIncome:  newSection("Other Income"),
		OtherExpense: newSection("Other Expenses"),
	}

	for _, acc := range balances {
		switch acc.Type {
		case accounts.TypeRevenue:
			pl.Revenue.add(acc, acc.Credit.Sub(acc.Debit))
		case accounts.TypeCOGS:
			pl.COGS.add(acc, acc.Debit.Sub(acc.Credit))
		case accounts.TypeExpense:
			pl.Expense.add(acc, acc.Debit.Sub(acc.Credit))
		case accounts.TypeOtherIncome:
			pl.OtherIncome.add(acc, acc.Credit.Sub(acc.Debit))
		case accounts.TypeOtherExpense:
			pl.OtherExpense.add(acc, acc.Debit.Sub(acc.Credit))
		}
	}

	for _, section := range []*ProfitAndLossSection{&pl.Revenue, &pl.COGS, &pl.Expense, &pl.OtherIncome, &pl.OtherExpense} {
		accountsCopy := section.Accounts
		sort.Slice(accountsCopy, func(i, j int) bool { return accountsCopy[i].Code < accountsCopy[j].Code })
	}

	pl.GrossProfit = pl.Revenue.Total.Sub(pl.COGS.Total)
	pl.OperatingIncome = pl.GrossProfit.Sub(pl.Expense.Total)
	pl.NetIncome = pl.OperatingIncome.Add(pl.OtherIncome.Total).Sub(pl.OtherExpense.Total)
	return pl
}
