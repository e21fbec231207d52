package services

import (
	"context"
	"errors"
	"log/slog"

	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
)

// requireCurrency returns the budget's rate entry for code.
func requireCurrency(ctx context.Context, q *storage.Queries, budgetID, code string) (core.CurrencyRate, error) {
	if err := core.ValidateCurrencyCode(code); err != nil {
		return core.CurrencyRate{}, err
	}
	c, err := q.GetCurrency(ctx, budgetID, code)
	if errors.Is(err, core.ErrNotFound) {
		return c, core.Invalid("currencyCode", "Currency %s is not configured for this budget", code)
	}
	return c, err
}

// getOrCreateAsset returns the asset row for code, inserting a zero balance on
// first use.
func getOrCreateAsset(ctx context.Context, q *storage.Queries, budgetID, code string) (core.Asset, error) {
	a, err := q.GetAsset(ctx, budgetID, code)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return a, err
	}
	return q.InsertAsset(ctx, core.Asset{BudgetID: budgetID, Currency: code, Amount: decimal.Zero})
}

type leg struct {
	currency string
	delta    decimal.Decimal
	floor    bool
}

// balancePlan collects the net effect of one operation on the asset ledger.
// Balances are computed and validated for every currency before the first
// write, so a rejected plan leaves the ledger untouched even outside a
// transaction.
type balancePlan struct {
	budgetID string
	legs     []leg
}

func newPlan(budgetID string) *balancePlan {
	return &balancePlan{budgetID: budgetID}
}

// credit adds amount to the currency's asset, creating it when missing.
func (p *balancePlan) credit(code string, amount decimal.Decimal) *balancePlan {
	p.legs = append(p.legs, leg{currency: code, delta: amount})
	return p
}

// debit removes amount. The asset must exist and must not go negative.
func (p *balancePlan) debit(code string, amount decimal.Decimal) *balancePlan {
	p.legs = append(p.legs, leg{currency: code, delta: amount.Neg(), floor: true})
	return p
}

// reverse removes amount without a floor check. Used to undo income.
func (p *balancePlan) reverse(code string, amount decimal.Decimal) *balancePlan {
	p.legs = append(p.legs, leg{currency: code, delta: amount.Neg()})
	return p
}

type settlement struct {
	asset    core.Asset
	exists   bool
	floor    bool
	balance  decimal.Decimal
	required decimal.Decimal
}

func (p *balancePlan) apply(ctx context.Context, q *storage.Queries) error {
	var order []string
	byCode := map[string]*settlement{}

	for _, l := range p.legs {
		st, ok := byCode[l.currency]
		if !ok {
			st = &settlement{}
			a, err := q.GetAsset(ctx, p.budgetID, l.currency)
			switch {
			case err == nil:
				st.asset, st.exists, st.balance = a, true, a.Amount
			case errors.Is(err, core.ErrNotFound):
				st.balance = decimal.Zero
			default:
				return err
			}
			byCode[l.currency] = st
			order = append(order, l.currency)
		}
		st.balance = st.balance.Add(l.delta)
		if l.floor {
			st.floor = true
			st.required = st.required.Add(l.delta.Neg())
		}
	}

	for _, code := range order {
		st := byCode[code]
		if !st.floor {
			continue
		}
		if !st.exists {
			return &core.NoAssetError{Currency: code}
		}
		if st.balance.IsNegative() {
			return &core.InsufficientBalanceError{
				Currency:  code,
				Available: st.balance.Add(st.required),
				Required:  st.required,
			}
		}
	}

	for _, code := range order {
		st := byCode[code]
		if st.exists {
			if err := q.SetAssetAmount(ctx, st.asset.ID, st.balance); err != nil {
				return err
			}
		} else if _, err := q.InsertAsset(ctx, core.Asset{BudgetID: p.budgetID, Currency: code, Amount: st.balance}); err != nil {
			return err
		}
		if st.balance.IsNegative() {
			slog.WarnContext(ctx, "Asset balance went negative",
				"budget_id", p.budgetID,
				"currency", code,
				"balance", st.balance.String())
		}
	}
	return nil
}
