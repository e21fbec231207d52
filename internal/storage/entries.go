package storage

import (
	"context"
	"fmt"
	"time"

	"dailybudget/internal/core"
)

const expenseColumns = `id, budget_id, user_id, amount, currency_code, date, description, category, created_at`

func scanExpense(s scanner) (core.Expense, error) {
	var e core.Expense
	var created int64
	err := s.Scan(&e.ID, &e.BudgetID, &e.UserID, &e.Amount, &e.Currency, &e.Date, &e.Description, &e.Category, &created)
	e.CreatedAt = fromMillis(created)
	return e, err
}

func (q *Queries) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = newID(e.ID)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BudgetID, e.UserID, e.Amount, e.Currency, e.Date, e.Description, e.Category, millis(e.CreatedAt))
	if err != nil {
		return e, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (q *Queries) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(q.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if err != nil {
		return e, notFound("get expense", err)
	}
	return e, nil
}

func (q *Queries) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, currency_code = ?, date = ?, description = ?, category = ? WHERE id = ?`,
		e.Amount, e.Currency, e.Date, e.Description, e.Category, e.ID)
	return mustAffect("update expense", res, err)
}

func (q *Queries) DeleteExpense(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	return mustAffect("delete expense", res, err)
}

// ListExpenses returns every expense of a budget, newest first.
func (q *Queries) ListExpenses(ctx context.Context, budgetID string) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE budget_id = ? ORDER BY date DESC, created_at DESC`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return collect(rows, scanExpense)
}

const incomeColumns = `id, budget_id, user_id, amount, currency_code, date, description, created_at`

func scanIncome(s scanner) (core.Income, error) {
	var i core.Income
	var created int64
	err := s.Scan(&i.ID, &i.BudgetID, &i.UserID, &i.Amount, &i.Currency, &i.Date, &i.Description, &created)
	i.CreatedAt = fromMillis(created)
	return i, err
}

func (q *Queries) InsertIncome(ctx context.Context, i core.Income) (core.Income, error) {
	i.ID = newID(i.ID)
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO income (`+incomeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.BudgetID, i.UserID, i.Amount, i.Currency, i.Date, i.Description, millis(i.CreatedAt))
	if err != nil {
		return i, fmt.Errorf("insert income: %w", err)
	}
	return i, nil
}

func (q *Queries) GetIncome(ctx context.Context, id string) (core.Income, error) {
	i, err := scanIncome(q.db.QueryRowContext(ctx, `SELECT `+incomeColumns+` FROM income WHERE id = ?`, id))
	if err != nil {
		return i, notFound("get income", err)
	}
	return i, nil
}

func (q *Queries) UpdateIncome(ctx context.Context, i core.Income) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE income SET amount = ?, currency_code = ?, date = ?, description = ? WHERE id = ?`,
		i.Amount, i.Currency, i.Date, i.Description, i.ID)
	return mustAffect("update income", res, err)
}

func (q *Queries) DeleteIncome(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM income WHERE id = ?`, id)
	return mustAffect("delete income", res, err)
}

func (q *Queries) ListIncome(ctx context.Context, budgetID string) ([]core.Income, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+incomeColumns+` FROM income WHERE budget_id = ? ORDER BY date DESC, created_at DESC`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	return collect(rows, scanIncome)
}
