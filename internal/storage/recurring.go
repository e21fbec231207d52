package storage

import (
	"context"
	"fmt"

	"dailybudget/internal/core"
)

const recurringColumns = `id, budget_id, user_id, type, amount, currency_code, description, category,
	frequency, start_date, end_date, last_generated_date, paused`

func scanRecurring(s scanner) (core.RecurringItem, error) {
	var r core.RecurringItem
	err := s.Scan(&r.ID, &r.BudgetID, &r.UserID, &r.Type, &r.Amount, &r.Currency, &r.Description, &r.Category,
		&r.Frequency, &r.StartDate, &r.EndDate, &r.LastGenerated, &r.Paused)
	return r, err
}

func (q *Queries) InsertRecurring(ctx context.Context, r core.RecurringItem) (core.RecurringItem, error) {
	r.ID = newID(r.ID)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO recurring_items (`+recurringColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BudgetID, r.UserID, r.Type, r.Amount, r.Currency, r.Description, r.Category,
		r.Frequency, r.StartDate, r.EndDate, r.LastGenerated, r.Paused)
	if err != nil {
		return r, fmt.Errorf("insert recurring item: %w", err)
	}
	return r, nil
}

func (q *Queries) GetRecurring(ctx context.Context, id string) (core.RecurringItem, error) {
	r, err := scanRecurring(q.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_items WHERE id = ?`, id))
	if err != nil {
		return r, notFound("get recurring item", err)
	}
	return r, nil
}

// UpdateRecurring writes the editable fields. The watermark is only moved by
// SetWatermark.
func (q *Queries) UpdateRecurring(ctx context.Context, r core.RecurringItem) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurring_items SET amount = ?, currency_code = ?, description = ?, category = ?,
		 frequency = ?, start_date = ?, end_date = ?, paused = ? WHERE id = ?`,
		r.Amount, r.Currency, r.Description, r.Category, r.Frequency, r.StartDate, r.EndDate, r.Paused, r.ID)
	return mustAffect("update recurring item", res, err)
}

func (q *Queries) SetWatermark(ctx context.Context, id string, day core.Day) error {
	res, err := q.db.ExecContext(ctx, `UPDATE recurring_items SET last_generated_date = ? WHERE id = ?`, day, id)
	return mustAffect("set watermark", res, err)
}

func (q *Queries) DeleteRecurring(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_items WHERE id = ?`, id)
	return mustAffect("delete recurring item", res, err)
}

func (q *Queries) ListRecurring(ctx context.Context, budgetID string) ([]core.RecurringItem, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_items WHERE budget_id = ? ORDER BY start_date DESC, rowid`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list recurring items: %w", err)
	}
	return collect(rows, scanRecurring)
}

// ListActiveRecurring returns every non-paused item across all budgets.
func (q *Queries) ListActiveRecurring(ctx context.Context) ([]core.RecurringItem, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_items WHERE paused = 0 ORDER BY budget_id, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list active recurring items: %w", err)
	}
	return collect(rows, scanRecurring)
}
