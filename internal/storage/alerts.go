package storage

import (
	"context"
	"fmt"
	"time"

	"dailybudget/internal/core"
)

const alertColumns = `id, user_id, budget_id, type, message, is_read, created_at`

func scanAlert(s scanner) (core.Alert, error) {
	var a core.Alert
	var created int64
	err := s.Scan(&a.ID, &a.UserID, &a.BudgetID, &a.Type, &a.Message, &a.IsRead, &created)
	a.CreatedAt = fromMillis(created)
	return a, err
}

func (q *Queries) InsertAlert(ctx context.Context, a core.Alert) (core.Alert, error) {
	a.ID = newID(a.ID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.BudgetID, a.Type, a.Message, a.IsRead, millis(a.CreatedAt))
	if err != nil {
		return a, fmt.Errorf("insert alert: %w", err)
	}
	return a, nil
}

func (q *Queries) GetAlert(ctx context.Context, id string) (core.Alert, error) {
	a, err := scanAlert(q.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if err != nil {
		return a, notFound("get alert", err)
	}
	return a, nil
}

// ListAlerts returns a user's alerts, newest first.
func (q *Queries) ListAlerts(ctx context.Context, userID string, unreadOnly bool) ([]core.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return collect(rows, scanAlert)
}

// AlertTypes returns the set of alert types that exist for a budget.
func (q *Queries) AlertTypes(ctx context.Context, budgetID string) (map[core.AlertType]bool, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT DISTINCT type FROM alerts WHERE budget_id = ?`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list alert types: %w", err)
	}
	types, err := collect(rows, func(s scanner) (core.AlertType, error) {
		var t core.AlertType
		err := s.Scan(&t)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan alert types: %w", err)
	}
	set := make(map[core.AlertType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set, nil
}

func (q *Queries) MarkAlertRead(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE id = ?`, id)
	return mustAffect("mark alert read", res, err)
}

func (q *Queries) MarkAllAlertsRead(ctx context.Context, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteAlert(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	return mustAffect("delete alert", res, err)
}
