package storage

import (
	"context"
	"fmt"
	"time"

	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
)

// Currency rates

func scanCurrency(s scanner) (core.CurrencyRate, error) {
	var c core.CurrencyRate
	err := s.Scan(&c.ID, &c.BudgetID, &c.Code, &c.RateToMain)
	return c, err
}

// ListCurrencies returns currencies in registration order.
func (q *Queries) ListCurrencies(ctx context.Context, budgetID string) ([]core.CurrencyRate, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, budget_id, currency_code, rate_to_main FROM budget_currencies WHERE budget_id = ? ORDER BY rowid`,
		budgetID)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return collect(rows, scanCurrency)
}

func (q *Queries) GetCurrency(ctx context.Context, budgetID, code string) (core.CurrencyRate, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, budget_id, currency_code, rate_to_main FROM budget_currencies WHERE budget_id = ? AND currency_code = ?`,
		budgetID, code)
	c, err := scanCurrency(row)
	if err != nil {
		return c, notFound("get currency "+code, err)
	}
	return c, nil
}

func (q *Queries) InsertCurrency(ctx context.Context, c core.CurrencyRate) (core.CurrencyRate, error) {
	c.ID = newID(c.ID)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budget_currencies (id, budget_id, currency_code, rate_to_main) VALUES (?, ?, ?, ?)`,
		c.ID, c.BudgetID, c.Code, c.RateToMain)
	if err != nil {
		return c, fmt.Errorf("insert currency %s: %w", c.Code, err)
	}
	return c, nil
}

func (q *Queries) UpdateCurrencyRate(ctx context.Context, budgetID, code string, rate decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budget_currencies SET rate_to_main = ? WHERE budget_id = ? AND currency_code = ?`,
		rate, budgetID, code)
	return mustAffect("update rate "+code, res, err)
}

func (q *Queries) DeleteCurrency(ctx context.Context, budgetID, code string) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM budget_currencies WHERE budget_id = ? AND currency_code = ?`, budgetID, code)
	return mustAffect("delete currency "+code, res, err)
}

// Assets

func scanAsset(s scanner) (core.Asset, error) {
	var a core.Asset
	err := s.Scan(&a.ID, &a.BudgetID, &a.Currency, &a.Amount)
	return a, err
}

func (q *Queries) ListAssets(ctx context.Context, budgetID string) ([]core.Asset, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, budget_id, currency_code, amount FROM budget_assets WHERE budget_id = ? ORDER BY rowid`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return collect(rows, scanAsset)
}

func (q *Queries) GetAsset(ctx context.Context, budgetID, code string) (core.Asset, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, budget_id, currency_code, amount FROM budget_assets WHERE budget_id = ? AND currency_code = ?`,
		budgetID, code)
	a, err := scanAsset(row)
	if err != nil {
		return a, notFound("get asset "+code, err)
	}
	return a, nil
}

func (q *Queries) InsertAsset(ctx context.Context, a core.Asset) (core.Asset, error) {
	a.ID = newID(a.ID)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budget_assets (id, budget_id, currency_code, amount, updated_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.BudgetID, a.Currency, a.Amount, millis(time.Now()))
	if err != nil {
		return a, fmt.Errorf("insert asset %s: %w", a.Currency, err)
	}
	return a, nil
}

func (q *Queries) SetAssetAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budget_assets SET amount = ?, updated_at = ? WHERE id = ?`, amount, millis(time.Now()), id)
	return mustAffect("update asset", res, err)
}

func (q *Queries) DeleteAsset(ctx context.Context, budgetID, code string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM budget_assets WHERE budget_id = ? AND currency_code = ?`, budgetID, code)
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", code, err)
	}
	return nil
}

// Transfers

func (q *Queries) InsertTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	t.ID = newID(t.ID)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO asset_transfers (id, budget_id, user_id, from_currency, to_currency, from_amount, to_amount, rate_used, date, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BudgetID, t.UserID, t.FromCurrency, t.ToCurrency, t.FromAmount, t.ToAmount, t.RateUsed, t.Date, t.Description)
	if err != nil {
		return t, fmt.Errorf("insert transfer: %w", err)
	}
	return t, nil
}

func (q *Queries) ListTransfers(ctx context.Context, budgetID string) ([]core.Transfer, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, budget_id, user_id, from_currency, to_currency, from_amount, to_amount, rate_used, date, description
		 FROM asset_transfers WHERE budget_id = ? ORDER BY date DESC, rowid DESC`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return collect(rows, func(s scanner) (core.Transfer, error) {
		var t core.Transfer
		err := s.Scan(&t.ID, &t.BudgetID, &t.UserID, &t.FromCurrency, &t.ToCurrency,
			&t.FromAmount, &t.ToAmount, &t.RateUsed, &t.Date, &t.Description)
		return t, err
	})
}
