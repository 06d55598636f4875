package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/accounts"
)

func bal(code, name string, accType accounts.AccountType, debit, credit string) AccountBalance {
	return AccountBalance{
		Code:          code,
		Name:          name,
		Type:          accType,
		NormalBalance: accounts.DefaultNormalBalance(accType),
		Debit:         decimal.RequireFromString(debit),
		Credit:        decimal.RequireFromString(credit),
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := BuildTrialBalance([]AccountBalance{
		bal("4000", "Sales", accounts.TypeRevenue, "0", "500.00"),
		bal("1100", "Cash", accounts.TypeAsset, "500.00", "200.00"),
		bal("5000", "Rent", accounts.TypeExpense, "200.00", "0"),
		bal("1200", "Dormant", accounts.TypeAsset, "0", "0"),
	})

	require.Len(t, tb.Rows, 3)
	require.Equal(t, "1100", tb.Rows[0].Code)
	require.Equal(t, "4000", tb.Rows[1].Code)
	require.Equal(t, "5000", tb.Rows[2].Code)

	require.Equal(t, "300.00", tb.Rows[0].Debit.StringFixed(2))
	require.True(t, tb.Rows[0].Credit.IsZero())
	require.Equal(t, "500.00", tb.Rows[1].Credit.StringFixed(2))
	require.True(t, tb.Rows[1].Debit.IsZero())

	require.Equal(t, "500.00", tb.TotalDebit.StringFixed(2))
	require.Equal(t, "500.00", tb.TotalCredit.StringFixed(2))
	require.True(t, tb.Balanced())
}

func TestTrialBalanceSelfCheckDetectsImbalance(t *testing.T) {
	tb := BuildTrialBalance([]AccountBalance{
		bal("1100", "Cash", accounts.TypeAsset, "100.00", "0"),
		bal("4000", "Sales", accounts.TypeRevenue, "0", "99.00"),
	})
	require.False(t, tb.Balanced())
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss([]AccountBalance{
		bal("4000", "Sales", accounts.TypeRevenue, "50.00", "1050.00"),
		bal("5000", "COGS", accounts.TypeCOGS, "400.00", "0"),
		bal("6000", "Rent", accounts.TypeExpense, "150.00", "0"),
		bal("6100", "Salaries", accounts.TypeExpense, "250.00", "0"),
		bal("7000", "Interest Income", accounts.TypeOtherIncome, "0", "30.00"),
		bal("8000", "Bank Fees", accounts.TypeOtherExpense, "10.00", "0"),
		bal("1100", "Cash", accounts.TypeAsset, "9999.00", "0"),
	})

	// Revenue is credit minus debit; expense sections are debit minus credit.
	require.Equal(t, "1000.00", pl.Revenue.Total.StringFixed(2))
	require.Equal(t, "400.00", pl.COGS.Total.StringFixed(2))
	require.Equal(t, "400.00", pl.Expense.Total.StringFixed(2))
	require.Equal(t, "30.00", pl.OtherIncome.Total.StringFixed(2))
	require.Equal(t, "10.00", pl.OtherExpense.Total.StringFixed(2))

	require.Equal(t, "600.00", pl.GrossProfit.StringFixed(2))
	require.Equal(t, "200.00", pl.OperatingIncome.StringFixed(2))
	require.Equal(t, "220.00", pl.NetIncome.StringFixed(2))

	// Balance-sheet accounts never leak into the income statement.
	for _, section := range []ProfitAndLossSection{pl.Revenue, pl.COGS, pl.Expense, pl.OtherIncome, pl.OtherExpense} {
		for _, acc := range section.Accounts {
			require.NotEqual(t, "1100", acc.Code)
		}
	}
}

func TestBuildProfitAndLossContraRevenue(t *testing.T) {
	pl := BuildProfitAndLoss([]AccountBalance{
		bal("4900", "Sales Returns", accounts.TypeRevenue, "80.00", "0"),
	})
	require.Equal(t, "-80.00", pl.Revenue.Total.StringFixed(2))
	require.Equal(t, "-80.00", pl.NetIncome.StringFixed(2))
}

func TestBuildBalanceSheet(t *testing.T) {
	netIncome := decimal.RequireFromString("220.00")
	bs := BuildBalanceSheet([]AccountBalance{
		bal("1100", "Cash", accounts.TypeAsset, "1500.00", "280.00"),
		bal("2100", "Payables", accounts.TypeLiability, "0", "600.00"),
		bal("3100", "Capital", accounts.TypeEquity, "0", "400.00"),
		bal("4000", "Sales", accounts.TypeRevenue, "0", "1000.00"),
	}, netIncome)

	require.Equal(t, "1220.00", bs.Assets.Total.StringFixed(2))
	require.Equal(t, "600.00", bs.Liabilities.Total.StringFixed(2))
	// Equity total includes current earnings.
	require.Equal(t, "620.00", bs.Equity.Total.StringFixed(2))
	require.Equal(t, "220.00", bs.CurrentEarnings.StringFixed(2))
	require.Equal(t, "1220.00", bs.TotalLiabilitiesAndEquity.StringFixed(2))
	require.True(t, bs.Balanced())

	// Revenue accounts appear only through current earnings, not as rows.
	require.Len(t, bs.Equity.Accounts, 1)
}

func TestBalanceSheetSelfCheckDetectsImbalance(t *testing.T) {
	bs := BuildBalanceSheet([]AccountBalance{
		bal("1100", "Cash", accounts.TypeAsset, "100.00", "0"),
	}, decimal.Zero)
	require.False(t, bs.Balanced())
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1,550,050.00", FormatAmount(decimal.RequireFromString("1550050")))
	require.Equal(t, "0.00", FormatAmount(decimal.Zero))
	require.Equal(t, "-42.50", FormatAmount(decimal.RequireFromString("-42.5")))
}

func TestFormatAmountStaysExactBeyondFloatPrecision(t *testing.T) {
	// 9.0e16 is past float64's 53-bit integer range; a float round-trip
	// would corrupt the trailing digits.
	require.Equal(t, "90,071,992,547,409,921.55",
		FormatAmount(decimal.RequireFromString("90071992547409921.55")))
	require.Equal(t, "-90,071,992,547,409,921.55",
		FormatAmount(decimal.RequireFromString("-90071992547409921.55")))
	// Integer parts past int64 still group correctly.
	require.Equal(t, "12,345,678,901,234,567,890.10",
		FormatAmount(decimal.RequireFromString("12345678901234567890.10")))
}
