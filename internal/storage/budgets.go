package storage

import (
	"context"
	"fmt"
	"time"

	"dailybudget/internal/core"
)

const budgetColumns = `id, user_id, name, start_date, end_date, main_currency, legacy_total_amount, created_at`

func scanBudget(s scanner) (core.Budget, error) {
	var b core.Budget
	var created int64
	err := s.Scan(&b.ID, &b.UserID, &b.Name, &b.StartDate, &b.EndDate, &b.MainCurrency, &b.LegacyTotal, &created)
	b.CreatedAt = fromMillis(created)
	return b, err
}

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = newID(b.ID)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.StartDate, b.EndDate, b.MainCurrency, b.LegacyTotal, millis(b.CreatedAt))
	if err != nil {
		return b, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (q *Queries) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if err != nil {
		return b, notFound("get budget", err)
	}
	return b, nil
}

func (q *Queries) ListBudgetsByUser(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return collect(rows, scanBudget)
}

// ListAllBudgets is used by background sweeps.
func (q *Queries) ListAllBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list all budgets: %w", err)
	}
	return collect(rows, scanBudget)
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET name = ?, start_date = ?, end_date = ?, main_currency = ?, legacy_total_amount = ?
		 WHERE id = ?`,
		b.Name, b.StartDate, b.EndDate, b.MainCurrency, b.LegacyTotal, b.ID)
	return mustAffect("update budget", res, err)
}

// DeleteBudget removes the budget; foreign keys cascade to every owned row.
func (q *Queries) DeleteBudget(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	return mustAffect("delete budget", res, err)
}
