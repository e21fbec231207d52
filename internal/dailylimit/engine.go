// Package dailylimit derives the daily spending allowance of a budget and its
// day-by-day breakdown.
//
// Every function here is a pure computation over already loaded data. "Today"
// is always an explicit argument: it is the caller's local midnight, so day
// boundaries follow the user's timezone rather than the server clock.
package dailylimit

import (
	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
)

// Input is the full snapshot of a budget the engine works on.
type Input struct {
	Budget     core.Budget
	Currencies []core.CurrencyRate
	Assets     []core.Asset
	Expenses   []core.Expense
	Income     []core.Income
	Today      core.Day
}

// Metrics is today's view of a budget, amounts in the main currency.
type Metrics struct {
	BaseDailyLimit          decimal.Decimal `json:"baseDailyLimit"`
	AdjustedDailyLimit      decimal.Decimal `json:"adjustedDailyLimit"`
	SpentToday              decimal.Decimal `json:"spentToday"`
	RemainingToday          decimal.Decimal `json:"remainingToday"`
	TotalSpent              decimal.Decimal `json:"totalSpent"`
	TotalIncome             decimal.Decimal `json:"totalIncome"`
	EffectiveTotalBudget    decimal.Decimal `json:"effectiveTotalBudget"`
	RemainingBudget         decimal.Decimal `json:"remainingBudget"`
	SavingsFromPreviousDays decimal.Decimal `json:"savingsFromPreviousDays"`
	DaysLeft                int64           `json:"daysLeft"`
	TotalDays               int64           `json:"totalDays"`
	MainCurrency            string          `json:"mainCurrency"`
}

// TotalDays is the inclusive length of the budget window.
func TotalDays(b core.Budget) int64 {
	n := core.DaysBetween(b.StartDate, b.EndDate) + 1
	if n < 1 {
		return 1
	}
	return n
}

// DaysLeft counts today and every remaining day, never less than one.
func DaysLeft(b core.Budget, today core.Day) int64 {
	n := core.DaysBetween(today, b.EndDate) + 1
	if n < 1 {
		return 1
	}
	return n
}

// RemainingBudget is the current wealth of the budget in main currency.
func RemainingBudget(rates core.Rates, assets []core.Asset) decimal.Decimal {
	return core.SumToMain(rates, assets, func(a core.Asset) (decimal.Decimal, string) {
		return a.Amount, a.Currency
	})
}

func expenseAmount(e core.Expense) (decimal.Decimal, string) { return e.Amount, e.Currency }
func incomeAmount(i core.Income) (decimal.Decimal, string)   { return i.Amount, i.Currency }

// Compute returns today's metrics.
func Compute(in Input) Metrics {
	rates := core.NewRates(in.Currencies)
	b := in.Budget

	remaining := RemainingBudget(rates, in.Assets)
	totalSpent := core.SumToMain(rates, in.Expenses, expenseAmount)
	totalIncome := core.SumToMain(rates, in.Income, incomeAmount)
	effective := remaining.Add(totalSpent)

	totalDays := TotalDays(b)
	base := effective.Div(decimal.NewFromInt(totalDays))

	daysLeft := DaysLeft(b, in.Today)
	adjusted := decimal.Max(decimal.Zero, remaining).Div(decimal.NewFromInt(daysLeft))

	spentToday, spentBefore := decimal.Zero, decimal.Zero
	for _, e := range in.Expenses {
		v := rates.ToMain(e.Amount, e.Currency)
		switch {
		case e.Date == in.Today:
			spentToday = spentToday.Add(v)
		case e.Date < in.Today:
			spentBefore = spentBefore.Add(v)
		}
	}

	elapsed := core.DaysBetween(b.StartDate, in.Today)
	if elapsed < 0 {
		elapsed = 0
	}
	savings := base.Mul(decimal.NewFromInt(elapsed)).Sub(spentBefore)

	return Metrics{
		BaseDailyLimit:          base,
		AdjustedDailyLimit:      adjusted,
		SpentToday:              spentToday,
		RemainingToday:          adjusted.Sub(spentToday),
		TotalSpent:              totalSpent,
		TotalIncome:             totalIncome,
		EffectiveTotalBudget:    effective,
		RemainingBudget:         remaining,
		SavingsFromPreviousDays: savings,
		DaysLeft:                daysLeft,
		TotalDays:               totalDays,
		MainCurrency:            b.MainCurrency,
	}
}
