package dailylimit

import (
	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
)

// DayRow is one calendar day of the breakdown.
type DayRow struct {
	Date                core.Day            `json:"date"`
	DayNumber           int64               `json:"dayNumber"`
	DailyLimit          decimal.Decimal     `json:"dailyLimit"`
	DailyLimitSecondary decimal.NullDecimal `json:"dailyLimitSecondary"`
	Spent               decimal.Decimal     `json:"spent"`
	Income              decimal.Decimal     `json:"income"`
	Remaining           decimal.Decimal     `json:"remaining"`
	Rollover            decimal.Decimal     `json:"rollover"`
	IsPast              bool                `json:"isPast"`
	IsToday             bool                `json:"isToday"`
	IsFuture            bool                `json:"isFuture"`
}

// Breakdown is the per-day table of a budget window, amounts in main currency.
type Breakdown struct {
	Days              []DayRow        `json:"days"`
	MainCurrency      string          `json:"mainCurrency"`
	SecondaryCurrency string          `json:"secondaryCurrency,omitempty"`
	TotalDays         int64           `json:"totalDays"`
	BaseDailyLimit    decimal.Decimal `json:"baseDailyLimit"`
	RemainingBudget   decimal.Decimal `json:"remainingBudget"`
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	// CarryOver is the rollover accumulated over the past days.
	CarryOver decimal.Decimal `json:"carryOver"`
}

// secondaryCurrency is the first registered currency that is not the main one.
func secondaryCurrency(b core.Budget, currencies []core.CurrencyRate) (core.CurrencyRate, bool) {
	for _, c := range currencies {
		if c.Code != b.MainCurrency {
			return c, true
		}
	}
	return core.CurrencyRate{}, false
}

// ComputeBreakdown builds one row per day of [StartDate, EndDate].
//
// Past days redistribute the accumulated rollover over the days remaining
// from that point; today and future days show the flat projection of what
// is actually left.
func ComputeBreakdown(in Input) Breakdown {
	m := Compute(in)
	rates := core.NewRates(in.Currencies)
	b := in.Budget

	spentByDay := make(map[core.Day]decimal.Decimal)
	for _, e := range in.Expenses {
		spentByDay[e.Date] = spentByDay[e.Date].Add(rates.ToMain(e.Amount, e.Currency))
	}
	incomeByDay := make(map[core.Day]decimal.Decimal)
	for _, i := range in.Income {
		incomeByDay[i.Date] = incomeByDay[i.Date].Add(rates.ToMain(i.Amount, i.Currency))
	}

	secondary, hasSecondary := secondaryCurrency(b, in.Currencies)
	projected := m.AdjustedDailyLimit

	// Windows are validated on write; rows stay bounded for older data.
	rows := m.TotalDays
	if rows > core.MaxBudgetDays {
		rows = core.MaxBudgetDays
	}

	out := Breakdown{
		Days:            make([]DayRow, 0, rows),
		MainCurrency:    b.MainCurrency,
		TotalDays:       m.TotalDays,
		BaseDailyLimit:  m.BaseDailyLimit,
		RemainingBudget: m.RemainingBudget,
		TotalIncome:     m.TotalIncome,
	}
	if hasSecondary {
		out.SecondaryCurrency = secondary.Code
	}

	carry := decimal.Zero
	for i := int64(0); i < rows; i++ {
		day := b.StartDate.AddDays(i)
		row := DayRow{
			Date:      day,
			DayNumber: i + 1,
			Spent:     spentByDay[day],
			Income:    incomeByDay[day],
			Rollover:  decimal.Zero,
			IsPast:    day < in.Today,
			IsToday:   day == in.Today,
			IsFuture:  day > in.Today,
		}

		if row.IsPast {
			daysRemaining := decimal.NewFromInt(m.TotalDays - i)
			row.DailyLimit = m.BaseDailyLimit.Add(carry.Div(daysRemaining))
		} else {
			row.DailyLimit = projected
		}
		row.Remaining = row.DailyLimit.Sub(row.Spent)
		if row.IsPast {
			row.Rollover = row.Remaining
			carry = carry.Add(row.Remaining)
		}
		if hasSecondary && secondary.RateToMain.IsPositive() {
			row.DailyLimitSecondary = decimal.NewNullDecimal(row.DailyLimit.Div(secondary.RateToMain))
		}
		out.Days = append(out.Days, row)
	}
	out.CarryOver = carry
	return out
}
