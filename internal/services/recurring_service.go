package services

import (
	"context"
	"fmt"

	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
)

// RecurringService manages recurring templates. Occurrences are produced by
// RecurringProcessor.
type RecurringService struct {
	deps
}

func NewRecurringService(repo *storage.SQLiteRepository, opts ...Option) *RecurringService {
	return &RecurringService{deps: newDeps(repo, opts)}
}

type RecurringInput struct {
	BudgetID    string          `json:"budgetId"`
	Type        core.EntryType  `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currencyCode"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Frequency   core.Frequency  `json:"frequency"`
	StartDate   core.Day        `json:"startDate"`
	EndDate     core.Day        `json:"endDate"`
}

func (s *RecurringService) ListRecurring(ctx context.Context, userID, budgetID string) ([]core.RecurringItem, error) {
	q := s.repo.Queries()
	if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
		if degraded(err) {
			return []core.RecurringItem{}, nil
		}
		return nil, err
	}
	return q.ListRecurring(ctx, budgetID)
}

func (s *RecurringService) AddRecurring(ctx context.Context, userID string, in RecurringInput) (core.RecurringItem, error) {
	r := core.RecurringItem{
		BudgetID:    in.BudgetID,
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		Currency:    core.NormalizeCurrency(in.Currency),
		Description: clean(in.Description),
		Category:    clean(in.Category),
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if r.Type == core.EntryIncome {
		r.Category = ""
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, in.BudgetID); err != nil {
			return err
		}
		if err := r.Validate(); err != nil {
			return err
		}
		if _, err := requireCurrency(ctx, q, r.BudgetID, r.Currency); err != nil {
			return err
		}
		var err error
		r, err = q.InsertRecurring(ctx, r)
		return err
	})
	if err != nil {
		return core.RecurringItem{}, fmt.Errorf("add recurring item: %w", err)
	}
	return r, nil
}

// UpdateRecurring edits, pauses or resumes a template. The watermark is kept,
// so already generated occurrences are never repeated.
func (s *RecurringService) UpdateRecurring(ctx context.Context, userID, id string, ch core.RecurringChange) (core.RecurringItem, error) {
	if userID == "" {
		return core.RecurringItem{}, core.ErrNotAuthenticated
	}
	var r core.RecurringItem
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetRecurring(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedBudget(ctx, q, userID, old.BudgetID); err != nil {
			return err
		}
		r = ch.Apply(old)
		r.Description = clean(r.Description)
		r.Category = clean(r.Category)
		if err := r.Validate(); err != nil {
			return err
		}
		if _, err := requireCurrency(ctx, q, r.BudgetID, r.Currency); err != nil {
			return err
		}
		return q.UpdateRecurring(ctx, r)
	})
	if err != nil {
		return core.RecurringItem{}, fmt.Errorf("update recurring item: %w", err)
	}
	return r, nil
}

func (s *RecurringService) RemoveRecurring(ctx context.Context, userID, id string) error {
	if userID == "" {
		return core.ErrNotAuthenticated
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		r, err := q.GetRecurring(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedBudget(ctx, q, userID, r.BudgetID); err != nil {
			return err
		}
		return q.DeleteRecurring(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("remove recurring item: %w", err)
	}
	return nil
}
