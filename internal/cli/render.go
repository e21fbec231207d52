package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dailybudget/internal/dailylimit"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

var (
	ColorBorder = lipgloss.Color("#575653")
	ColorText   = lipgloss.Color("#FFFCF0")
	ColorMuted  = lipgloss.Color("#6F6E69")
	ColorAccent = lipgloss.Color("#3AA99F")
	ColorGreen  = lipgloss.Color("#879A39")
	ColorRed    = lipgloss.Color("#D14D41")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted).Padding(0, 1)
	todayStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen).Padding(0, 1)
	overStyle   = lipgloss.NewStyle().Foreground(ColorRed).Padding(0, 1)
)

// Money formats an amount with two decimals and its currency code.
func Money(d decimal.Decimal, currency string) string {
	return d.StringFixed(2) + " " + currency
}

// RenderKeyValues renders a two-column table under title.
func RenderKeyValues(title string, pairs [][2]string) string {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return mutedStyle
			}
			return cellStyle.Align(lipgloss.Right)
		}).
		Rows(rows...)
	return titleStyle.Render(title) + "\n" + t.String() + "\n"
}

// RenderMetrics renders today's view of a budget.
func RenderMetrics(name string, m dailylimit.Metrics) string {
	cur := m.MainCurrency
	return RenderKeyValues(name, [][2]string{
		{"Daily limit", Money(m.AdjustedDailyLimit, cur)},
		{"Base daily limit", Money(m.BaseDailyLimit, cur)},
		{"Spent today", Money(m.SpentToday, cur)},
		{"Remaining today", Money(m.RemainingToday, cur)},
		{"Remaining budget", Money(m.RemainingBudget, cur)},
		{"Total spent", Money(m.TotalSpent, cur)},
		{"Total income", Money(m.TotalIncome, cur)},
		{"Savings", Money(m.SavingsFromPreviousDays, cur)},
		{"Days left", fmt.Sprintf("%d / %d", m.DaysLeft, m.TotalDays)},
	})
}

// RenderBreakdown renders one line per budget day. Today is highlighted and
// days that went over their limit are red.
func RenderBreakdown(name string, b dailylimit.Breakdown, loc *time.Location) string {
	headers := []string{"#", "Date", "Limit " + b.MainCurrency}
	if b.SecondaryCurrency != "" {
		headers = append(headers, "Limit "+b.SecondaryCurrency)
	}
	headers = append(headers, "Spent", "Income", "Remaining", "Rollover")

	rows := make([][]string, 0, len(b.Days))
	for _, d := range b.Days {
		row := []string{strconv.FormatInt(d.DayNumber, 10), d.Date.Format(loc), d.DailyLimit.StringFixed(2)}
		if b.SecondaryCurrency != "" {
			secondary := "-"
			if d.DailyLimitSecondary.Valid {
				secondary = d.DailyLimitSecondary.Decimal.StringFixed(2)
			}
			row = append(row, secondary)
		}
		row = append(row,
			d.Spent.StringFixed(2),
			d.Income.StringFixed(2),
			d.Remaining.StringFixed(2),
			d.Rollover.StringFixed(2),
		)
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			day := b.Days[row]
			style := cellStyle
			switch {
			case day.IsToday:
				style = todayStyle
			case day.IsPast && day.Remaining.IsNegative():
				style = overStyle
			case day.IsFuture:
				style = mutedStyle
			}
			if col >= 2 {
				style = style.Align(lipgloss.Right)
			}
			return style
		}).
		Headers(headers...).
		Rows(rows...)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(name))
	sb.WriteString("\n")
	sb.WriteString(t.String())
	sb.WriteString("\n")
	sb.WriteString(RenderKeyValues("Totals", [][2]string{
		{"Base daily limit", Money(b.BaseDailyLimit, b.MainCurrency)},
		{"Remaining budget", Money(b.RemainingBudget, b.MainCurrency)},
		{"Total income", Money(b.TotalIncome, b.MainCurrency)},
		{"Carry over", Money(b.CarryOver, b.MainCurrency)},
	}))
	return sb.String()
}
