package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"dailybudget/internal/core"
	"dailybudget/internal/dailylimit"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const endingSoonDays = 7

var thresholdShare = decimal.RequireFromString("0.2")

// AlertService generates and manages budget alerts.
//
// An alert of a given type blocks new alerts of the same type for its budget
// until it is deleted. Marking it read does not clear it.
type AlertService struct {
	deps
	concurrency int
}

func NewAlertService(repo *storage.SQLiteRepository, concurrency int, opts ...Option) *AlertService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AlertService{deps: newDeps(repo, opts), concurrency: concurrency}
}

// evaluateAlerts returns the alerts whose condition holds for the budget today.
func evaluateAlerts(b core.Budget, m dailylimit.Metrics, today core.Day) []core.Alert {
	name := b.DisplayName()
	var alerts []core.Alert
	add := func(t core.AlertType, msg string) {
		alerts = append(alerts, core.Alert{UserID: b.UserID, BudgetID: b.ID, Type: t, Message: msg})
	}

	if m.RemainingToday.IsNegative() {
		add(core.AlertOverBudgetToday, fmt.Sprintf("%s: Over daily limit by %s %s",
			name, m.RemainingToday.Abs().StringFixed(2), b.MainCurrency))
	}
	if m.RemainingToday.IsPositive() && m.RemainingToday.LessThan(m.AdjustedDailyLimit.Mul(thresholdShare)) {
		add(core.AlertOverBudgetThreshold, fmt.Sprintf("%s: Only %s %s remaining today (less than 20%%)",
			name, m.RemainingToday.StringFixed(2), b.MainCurrency))
	}
	if b.EndDate >= today && b.EndDate <= today.AddDays(endingSoonDays) {
		n := core.DaysBetweenCeil(today, b.EndDate)
		suffix := ""
		if n > 1 {
			suffix = "s"
		}
		add(core.AlertBudgetEndingSoon, fmt.Sprintf("%s: Ends in %d day%s", name, n, suffix))
	}
	return alerts
}

// generateForBudget inserts the alerts whose type is not yet present.
func (s *AlertService) generateForBudget(ctx context.Context, b core.Budget, today core.Day) (int, error) {
	created := 0
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		in, err := loadInput(ctx, q, b, today)
		if err != nil {
			return err
		}
		candidates := evaluateAlerts(b, dailylimit.Compute(in), today)
		if len(candidates) == 0 {
			return nil
		}
		existing, err := q.AlertTypes(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, a := range candidates {
			if existing[a.Type] {
				continue
			}
			a.CreatedAt = s.now().UTC()
			if _, err := q.InsertAlert(ctx, a); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// GenerateForUser evaluates every budget of one user against the caller's today.
func (s *AlertService) GenerateForUser(ctx context.Context, userID string, today core.Day) (int, error) {
	if userID == "" {
		return 0, core.ErrNotAuthenticated
	}
	budgets, err := s.repo.Queries().ListBudgetsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list budgets: %w", err)
	}
	total := 0
	for _, b := range budgets {
		n, err := s.generateForBudget(ctx, b, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to generate alerts", "budget_id", b.ID, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

// AlertSweepResult summarizes a sweep over every budget.
type AlertSweepResult struct {
	Budgets int `json:"budgets"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// GenerateForAllBudgets is the background sweep. Budget failures are logged
// and never stop the sweep.
func (s *AlertService) GenerateForAllBudgets(ctx context.Context, today core.Day) (AlertSweepResult, error) {
	budgets, err := s.repo.Queries().ListAllBudgets(ctx)
	if err != nil {
		return AlertSweepResult{}, fmt.Errorf("list budgets: %w", err)
	}

	var created, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, b := range budgets {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := s.generateForBudget(gctx, b, today)
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(gctx, "Failed to generate alerts", "budget_id", b.ID, "error", err)
				return nil
			}
			created.Add(int64(n))
			return nil
		})
	}
	err = g.Wait()

	res := AlertSweepResult{Budgets: len(budgets), Created: int(created.Load()), Failed: int(failed.Load())}
	slog.InfoContext(ctx, "Alert sweep complete",
		"budgets", res.Budgets,
		"created", res.Created,
		"failed", res.Failed)
	return res, err
}

func (s *AlertService) ListUnread(ctx context.Context, userID string) ([]core.Alert, error) {
	if userID == "" {
		return []core.Alert{}, nil
	}
	return s.repo.Queries().ListAlerts(ctx, userID, true)
}

func (s *AlertService) ListAll(ctx context.Context, userID string) ([]core.Alert, error) {
	if userID == "" {
		return []core.Alert{}, nil
	}
	return s.repo.Queries().ListAlerts(ctx, userID, false)
}

func (s *AlertService) ownedAlert(ctx context.Context, q *storage.Queries, userID, id string) (core.Alert, error) {
	if userID == "" {
		return core.Alert{}, core.ErrNotAuthenticated
	}
	a, err := q.GetAlert(ctx, id)
	if err != nil {
		return a, err
	}
	if a.UserID != userID {
		return core.Alert{}, fmt.Errorf("alert %s: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (s *AlertService) MarkRead(ctx context.Context, userID, id string) error {
	q := s.repo.Queries()
	if _, err := s.ownedAlert(ctx, q, userID, id); err != nil {
		return err
	}
	return q.MarkAlertRead(ctx, id)
}

func (s *AlertService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, core.ErrNotAuthenticated
	}
	return s.repo.Queries().MarkAllAlertsRead(ctx, userID)
}

// Remove deletes an alert, which lets its type fire again for the budget.
func (s *AlertService) Remove(ctx context.Context, userID, id string) error {
	q := s.repo.Queries()
	if _, err := s.ownedAlert(ctx, q, userID, id); err != nil {
		return err
	}
	return q.DeleteAlert(ctx, id)
}
