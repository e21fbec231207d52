package services

import (
	"context"
	"fmt"
	"log/slog"

	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
)

// MigrationService converts budgets created before per-currency assets
// existed.
type MigrationService struct {
	deps
}

func NewMigrationService(repo *storage.SQLiteRepository, opts ...Option) *MigrationService {
	return &MigrationService{deps: newDeps(repo, opts)}
}

type MigrationResult struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
}

type MigrationStatus struct {
	Total         int `json:"total"`
	WithAssets    int `json:"withAssets"`
	WithoutAssets int `json:"withoutAssets"`
}

// MigrateBudgetsToAssets seeds the main-currency asset of every budget without
// assets from its legacy total plus income minus expenses, and opens empty
// assets for its other currencies. Budgets that have assets are skipped, so
// the migration can be re-run.
func (s *MigrationService) MigrateBudgetsToAssets(ctx context.Context) (MigrationResult, error) {
	budgets, err := s.repo.Queries().ListAllBudgets(ctx)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("list budgets: %w", err)
	}

	var res MigrationResult
	for _, b := range budgets {
		migrated := false
		err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
			assets, err := q.ListAssets(ctx, b.ID)
			if err != nil {
				return err
			}
			if len(assets) > 0 {
				return nil
			}

			in, err := loadInput(ctx, q, b, core.NoDay)
			if err != nil {
				return err
			}
			rates := core.NewRates(in.Currencies)
			balance := decimal.Zero
			if b.LegacyTotal.Valid {
				balance = b.LegacyTotal.Decimal
			}
			balance = balance.
				Add(core.SumToMain(rates, in.Income, func(i core.Income) (decimal.Decimal, string) { return i.Amount, i.Currency })).
				Sub(core.SumToMain(rates, in.Expenses, func(e core.Expense) (decimal.Decimal, string) { return e.Amount, e.Currency }))

			if _, err := q.InsertAsset(ctx, core.Asset{BudgetID: b.ID, Currency: b.MainCurrency, Amount: balance}); err != nil {
				return err
			}
			for _, c := range in.Currencies {
				if c.Code == b.MainCurrency {
					continue
				}
				if _, err := getOrCreateAsset(ctx, q, b.ID, c.Code); err != nil {
					return err
				}
			}
			migrated = true
			return nil
		})
		if err != nil {
			return res, fmt.Errorf("migrate budget %s: %w", b.ID, err)
		}
		if migrated {
			res.Migrated++
			slog.InfoContext(ctx, "Budget migrated to assets", "budget_id", b.ID)
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func (s *MigrationService) Status(ctx context.Context) (MigrationStatus, error) {
	q := s.repo.Queries()
	budgets, err := q.ListAllBudgets(ctx)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("list budgets: %w", err)
	}
	st := MigrationStatus{Total: len(budgets)}
	for _, b := range budgets {
		assets, err := q.ListAssets(ctx, b.ID)
		if err != nil {
			return st, err
		}
		if len(assets) > 0 {
			st.WithAssets++
		} else {
			st.WithoutAssets++
		}
	}
	return st, nil
}
