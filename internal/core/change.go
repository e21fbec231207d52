package core

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Optional carries a value together with whether it was supplied.
// Unset fields leave the target untouched when a change is applied.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a set Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{Value: v, Set: true} }

// Or returns the value when set, def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.Set {
		return o.Value
	}
	return def
}

// UnmarshalJSON marks the field as set whenever it appears in the payload.
// An explicit null sets the zero value, which clears optional fields such as
// a recurring item's end date. Absent fields stay unset.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		var zero T
		o.Value, o.Set = zero, true
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

type BudgetChange struct {
	Name      Optional[string] `json:"name"`
	StartDate Optional[Day]    `json:"startDate"`
	EndDate   Optional[Day]    `json:"endDate"`
}

func (c BudgetChange) Apply(b Budget) Budget {
	b.Name = c.Name.Or(b.Name)
	b.StartDate = c.StartDate.Or(b.StartDate)
	b.EndDate = c.EndDate.Or(b.EndDate)
	return b
}

type ExpenseChange struct {
	Amount      Optional[decimal.Decimal] `json:"amount"`
	Currency    Optional[string]          `json:"currencyCode"`
	Date        Optional[Day]             `json:"date"`
	Description Optional[string]          `json:"description"`
	Category    Optional[string]          `json:"category"`
}

func (c ExpenseChange) Apply(e Expense) Expense {
	e.Amount = c.Amount.Or(e.Amount)
	if c.Currency.Set {
		e.Currency = NormalizeCurrency(c.Currency.Value)
	}
	e.Date = c.Date.Or(e.Date)
	e.Description = c.Description.Or(e.Description)
	e.Category = c.Category.Or(e.Category)
	return e
}

type IncomeChange struct {
	Amount      Optional[decimal.Decimal] `json:"amount"`
	Currency    Optional[string]          `json:"currencyCode"`
	Date        Optional[Day]             `json:"date"`
	Description Optional[string]          `json:"description"`
}

func (c IncomeChange) Apply(i Income) Income {
	i.Amount = c.Amount.Or(i.Amount)
	if c.Currency.Set {
		i.Currency = NormalizeCurrency(c.Currency.Value)
	}
	i.Date = c.Date.Or(i.Date)
	i.Description = c.Description.Or(i.Description)
	return i
}

type RecurringChange struct {
	Amount      Optional[decimal.Decimal] `json:"amount"`
	Currency    Optional[string]          `json:"currencyCode"`
	Description Optional[string]          `json:"description"`
	Category    Optional[string]          `json:"category"`
	Frequency   Optional[Frequency]       `json:"frequency"`
	StartDate   Optional[Day]             `json:"startDate"`
	EndDate     Optional[Day]             `json:"endDate"`
	Paused      Optional[bool]            `json:"paused"`
}

func (c RecurringChange) Apply(r RecurringItem) RecurringItem {
	r.Amount = c.Amount.Or(r.Amount)
	if c.Currency.Set {
		r.Currency = NormalizeCurrency(c.Currency.Value)
	}
	r.Description = c.Description.Or(r.Description)
	r.Category = c.Category.Or(r.Category)
	r.Frequency = c.Frequency.Or(r.Frequency)
	r.StartDate = c.StartDate.Or(r.StartDate)
	r.EndDate = c.EndDate.Or(r.EndDate)
	r.Paused = c.Paused.Or(r.Paused)
	return r
}
