package services

import (
	"context"
	"fmt"

	"dailybudget/internal/core"
	"dailybudget/internal/dailylimit"
	"dailybudget/internal/storage"
)

// LimitService serves the daily limit engine. Nothing derived is cached: each
// call reloads the budget snapshot.
type LimitService struct {
	deps
}

func NewLimitService(repo *storage.SQLiteRepository, opts ...Option) *LimitService {
	return &LimitService{deps: newDeps(repo, opts)}
}

func loadInput(ctx context.Context, q *storage.Queries, b core.Budget, today core.Day) (dailylimit.Input, error) {
	in := dailylimit.Input{Budget: b, Today: today}
	var err error
	if in.Currencies, err = q.ListCurrencies(ctx, b.ID); err != nil {
		return in, fmt.Errorf("load currencies: %w", err)
	}
	if in.Assets, err = q.ListAssets(ctx, b.ID); err != nil {
		return in, fmt.Errorf("load assets: %w", err)
	}
	if in.Expenses, err = q.ListExpenses(ctx, b.ID); err != nil {
		return in, fmt.Errorf("load expenses: %w", err)
	}
	if in.Income, err = q.ListIncome(ctx, b.ID); err != nil {
		return in, fmt.Errorf("load income: %w", err)
	}
	return in, nil
}

// DailyLimit computes today's metrics. today is the caller's local midnight.
// It returns nil when the caller cannot see the budget.
func (s *LimitService) DailyLimit(ctx context.Context, userID, budgetID string, today core.Day) (*dailylimit.Metrics, error) {
	q := s.repo.Queries()
	b, err := ownedBudget(ctx, q, userID, budgetID)
	if err != nil {
		if degraded(err) {
			return nil, nil
		}
		return nil, err
	}
	in, err := loadInput(ctx, q, b, today)
	if err != nil {
		return nil, err
	}
	m := dailylimit.Compute(in)
	return &m, nil
}

// Breakdown returns one row per day of the budget window.
func (s *LimitService) Breakdown(ctx context.Context, userID, budgetID string, today core.Day) (*dailylimit.Breakdown, error) {
	q := s.repo.Queries()
	b, err := ownedBudget(ctx, q, userID, budgetID)
	if err != nil {
		if degraded(err) {
			return nil, nil
		}
		return nil, err
	}
	in, err := loadInput(ctx, q, b, today)
	if err != nil {
		return nil, err
	}
	bd := dailylimit.ComputeBreakdown(in)
	return &bd, nil
}
