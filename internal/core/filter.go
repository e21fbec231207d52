package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// EntryFilter narrows expense and income listings. Zero fields are ignored.
type EntryFilter struct {
	Date      Day
	From      Day
	To        Day
	Category  Optional[string] // empty value selects uncategorized entries
	MinAmount decimal.NullDecimal
	MaxAmount decimal.NullDecimal
	Search    string
}

func (f EntryFilter) matches(date Day, amount decimal.Decimal, texts ...string) bool {
	if f.Date.IsSet() && date != f.Date {
		return false
	}
	if f.From.IsSet() && date < f.From {
		return false
	}
	if f.To.IsSet() && date > f.To {
		return false
	}
	if f.MinAmount.Valid && amount.LessThan(f.MinAmount.Decimal) {
		return false
	}
	if f.MaxAmount.Valid && amount.GreaterThan(f.MaxAmount.Decimal) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		for _, t := range texts {
			if strings.Contains(strings.ToLower(t), q) {
				return true
			}
		}
		return false
	}
	return true
}

// FilterExpenses applies f and sorts the result by date, newest first.
func FilterExpenses(expenses []Expense, f EntryFilter) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category.Set && e.Category != f.Category.Value {
			continue
		}
		if f.matches(e.Date, e.Amount, e.Description, e.Category) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// FilterIncome applies f (category is ignored) and sorts newest first.
func FilterIncome(income []Income, f EntryFilter) []Income {
	out := make([]Income, 0, len(income))
	for _, i := range income {
		if f.matches(i.Date, i.Amount, i.Description) {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date > out[b].Date })
	return out
}
