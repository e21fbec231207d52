package core

import "github.com/shopspring/decimal"

// Rates maps a currency code to its rate-to-main: one unit of the currency
// is worth RateToMain units of the budget's main currency.
type Rates map[string]decimal.Decimal

// NewRates indexes a budget's currency rates by code.
func NewRates(currencies []CurrencyRate) Rates {
	r := make(Rates, len(currencies))
	for _, c := range currencies {
		r[c.Code] = c.RateToMain
	}
	return r
}

// RateToMain returns the stored rate, or 1 for unknown codes.
func (r Rates) RateToMain(code string) decimal.Decimal {
	if rate, ok := r[code]; ok {
		return rate
	}
	return decimal.NewFromInt(1)
}

// ToMain converts amount of currency code into the main currency.
func (r Rates) ToMain(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Mul(r.RateToMain(code))
}

// CrossRate returns rateToMain(from) / rateToMain(to).
func (r Rates) CrossRate(from, to string) decimal.Decimal {
	return r.RateToMain(from).Div(r.RateToMain(to))
}

// Convert converts amount from one budget currency into another.
func (r Rates) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	return amount.Mul(r.CrossRate(from, to))
}
