package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
)

// BudgetService manages budgets and their registered currencies.
type BudgetService struct {
	deps
}

func NewBudgetService(repo *storage.SQLiteRepository, opts ...Option) *BudgetService {
	return &BudgetService{deps: newDeps(repo, opts)}
}

// AssetSeed is an initial holding of a new budget. Rate is ignored for the
// main currency.
type AssetSeed struct {
	Currency string          `json:"currencyCode"`
	Amount   decimal.Decimal `json:"amount"`
	Rate     decimal.Decimal `json:"rateToMain"`
}

type NewBudget struct {
	Name         string      `json:"name"`
	StartDate    core.Day    `json:"startDate"`
	EndDate      core.Day    `json:"endDate"`
	MainCurrency string      `json:"mainCurrency"`
	Assets       []AssetSeed `json:"assets"`
}

type DuplicateOptions struct {
	Name               core.Optional[string]   `json:"name"`
	StartDate          core.Optional[core.Day] `json:"startDate"`
	EndDate            core.Optional[core.Day] `json:"endDate"`
	CopyExpenses       bool                    `json:"copyExpenses"`
	CopyIncome         bool                    `json:"copyIncome"`
	CopyRecurringItems bool                    `json:"copyRecurringItems"`
}

var one = decimal.NewFromInt(1)

func (s *BudgetService) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	if userID == "" {
		return []core.Budget{}, nil
	}
	return s.repo.Queries().ListBudgetsByUser(ctx, userID)
}

func (s *BudgetService) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	return ownedBudget(ctx, s.repo.Queries(), userID, id)
}

// CreateBudget registers the main currency at rate 1 plus every seeded
// currency, and opens one asset per currency.
func (s *BudgetService) CreateBudget(ctx context.Context, userID string, nb NewBudget) (core.Budget, error) {
	if userID == "" {
		return core.Budget{}, core.ErrNotAuthenticated
	}
	b := core.Budget{
		UserID:       userID,
		Name:         clean(nb.Name),
		StartDate:    nb.StartDate,
		EndDate:      nb.EndDate,
		MainCurrency: core.NormalizeCurrency(nb.MainCurrency),
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	seeds := []AssetSeed{{Currency: b.MainCurrency, Amount: decimal.Zero, Rate: one}}
	seen := map[string]bool{b.MainCurrency: true}
	for _, seed := range nb.Assets {
		seed.Currency = core.NormalizeCurrency(seed.Currency)
		if err := core.ValidateCurrencyCode(seed.Currency); err != nil {
			return core.Budget{}, err
		}
		if seed.Amount.IsNegative() {
			return core.Budget{}, core.Invalid("amount", "Amount cannot be negative")
		}
		if seed.Currency == b.MainCurrency {
			seeds[0].Amount = seeds[0].Amount.Add(seed.Amount)
			continue
		}
		if seen[seed.Currency] {
			return core.Budget{}, core.Invalid("currencyCode", "Currency %s listed twice", seed.Currency)
		}
		if !seed.Rate.IsPositive() {
			return core.Budget{}, core.Invalid("rateToMain", "Rate must be greater than 0")
		}
		seen[seed.Currency] = true
		seeds = append(seeds, seed)
	}

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		if b, err = q.CreateBudget(ctx, b); err != nil {
			return err
		}
		for _, seed := range seeds {
			if _, err := q.InsertCurrency(ctx, core.CurrencyRate{BudgetID: b.ID, Code: seed.Currency, RateToMain: seed.Rate}); err != nil {
				return err
			}
			if _, err := q.InsertAsset(ctx, core.Asset{BudgetID: b.ID, Currency: seed.Currency, Amount: seed.Amount}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created",
		"budget_id", b.ID,
		"user_id", userID,
		"main_currency", b.MainCurrency,
		"currencies", len(seeds))
	return b, nil
}

func (s *BudgetService) UpdateBudget(ctx context.Context, userID, id string, ch core.BudgetChange) (core.Budget, error) {
	var b core.Budget
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := ownedBudget(ctx, q, userID, id)
		if err != nil {
			return err
		}
		b = ch.Apply(old)
		b.Name = clean(b.Name)
		if err := b.Validate(); err != nil {
			return err
		}
		return q.UpdateBudget(ctx, b)
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

// RemoveBudget deletes the budget and, through the schema's cascades, every
// currency, asset, entry, transfer, recurring item and alert it owns.
func (s *BudgetService) RemoveBudget(ctx context.Context, userID, id string) error {
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, id); err != nil {
			return err
		}
		return q.DeleteBudget(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("remove budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget removed", "budget_id", id, "user_id", userID)
	return nil
}

// DuplicateBudget copies a budget with its currencies and current balances.
// Copied entries are history only: their effect is already in the balances.
func (s *BudgetService) DuplicateBudget(ctx context.Context, userID, id string, opts DuplicateOptions) (core.Budget, error) {
	var dup core.Budget
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		src, err := ownedBudget(ctx, q, userID, id)
		if err != nil {
			return err
		}
		dup = core.Budget{
			UserID:       userID,
			Name:         clean(opts.Name.Or(src.DisplayName() + " (Copy)")),
			StartDate:    opts.StartDate.Or(src.StartDate),
			EndDate:      opts.EndDate.Or(src.EndDate),
			MainCurrency: src.MainCurrency,
			LegacyTotal:  src.LegacyTotal,
		}
		if err := dup.Validate(); err != nil {
			return err
		}
		if dup, err = q.CreateBudget(ctx, dup); err != nil {
			return err
		}

		currencies, err := q.ListCurrencies(ctx, src.ID)
		if err != nil {
			return err
		}
		for _, c := range currencies {
			if _, err := q.InsertCurrency(ctx, core.CurrencyRate{BudgetID: dup.ID, Code: c.Code, RateToMain: c.RateToMain}); err != nil {
				return err
			}
		}
		assets, err := q.ListAssets(ctx, src.ID)
		if err != nil {
			return err
		}
		for _, a := range assets {
			if _, err := q.InsertAsset(ctx, core.Asset{BudgetID: dup.ID, Currency: a.Currency, Amount: a.Amount}); err != nil {
				return err
			}
		}

		if opts.CopyExpenses {
			expenses, err := q.ListExpenses(ctx, src.ID)
			if err != nil {
				return err
			}
			for _, e := range expenses {
				e.ID, e.BudgetID = "", dup.ID
				if _, err := q.InsertExpense(ctx, e); err != nil {
					return err
				}
			}
		}
		if opts.CopyIncome {
			income, err := q.ListIncome(ctx, src.ID)
			if err != nil {
				return err
			}
			for _, i := range income {
				i.ID, i.BudgetID = "", dup.ID
				if _, err := q.InsertIncome(ctx, i); err != nil {
					return err
				}
			}
		}
		if opts.CopyRecurringItems {
			items, err := q.ListRecurring(ctx, src.ID)
			if err != nil {
				return err
			}
			for _, r := range items {
				r.ID, r.BudgetID, r.LastGenerated = "", dup.ID, core.NoDay
				if _, err := q.InsertRecurring(ctx, r); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("duplicate budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget duplicated", "source_id", id, "budget_id", dup.ID)
	return dup, nil
}

// SwitchMainCurrency re-expresses every rate against the new main currency.
// Asset balances are left as they are.
func (s *BudgetService) SwitchMainCurrency(ctx context.Context, userID, id, code string) (core.Budget, error) {
	code = core.NormalizeCurrency(code)
	var b core.Budget
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		if b, err = ownedBudget(ctx, q, userID, id); err != nil {
			return err
		}
		target, err := q.GetCurrency(ctx, id, code)
		if errors.Is(err, core.ErrNotFound) {
			return core.Invalid("currencyCode", "Currency not found in this budget")
		}
		if err != nil {
			return err
		}
		if code == b.MainCurrency {
			return nil
		}

		conversion := target.RateToMain
		currencies, err := q.ListCurrencies(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range currencies {
			rate := c.RateToMain.Div(conversion)
			if c.Code == code {
				rate = one
			}
			if err := q.UpdateCurrencyRate(ctx, id, c.Code, rate); err != nil {
				return err
			}
		}

		if b.LegacyTotal.Valid {
			b.LegacyTotal.Decimal = b.LegacyTotal.Decimal.Div(conversion)
		}
		b.MainCurrency = code
		return q.UpdateBudget(ctx, b)
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("switch main currency: %w", err)
	}
	return b, nil
}

func (s *BudgetService) ListCurrencies(ctx context.Context, userID, budgetID string) ([]core.CurrencyRate, error) {
	q := s.repo.Queries()
	if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
		if degraded(err) {
			return []core.CurrencyRate{}, nil
		}
		return nil, err
	}
	return q.ListCurrencies(ctx, budgetID)
}

func (s *BudgetService) AddCurrency(ctx context.Context, userID, budgetID, code string, rate decimal.Decimal) (core.CurrencyRate, error) {
	code = core.NormalizeCurrency(code)
	var c core.CurrencyRate
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
			return err
		}
		if err := core.ValidateCurrencyCode(code); err != nil {
			return err
		}
		if !rate.IsPositive() {
			return core.Invalid("rateToMain", "Rate must be greater than 0")
		}
		if _, err := q.GetCurrency(ctx, budgetID, code); err == nil {
			return core.Invalid("currencyCode", "Currency %s already exists in this budget", code)
		} else if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		var err error
		c, err = q.InsertCurrency(ctx, core.CurrencyRate{BudgetID: budgetID, Code: code, RateToMain: rate})
		return err
	})
	if err != nil {
		return core.CurrencyRate{}, fmt.Errorf("add currency: %w", err)
	}
	return c, nil
}

func (s *BudgetService) UpdateRate(ctx context.Context, userID, budgetID, code string, rate decimal.Decimal) error {
	code = core.NormalizeCurrency(code)
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		b, err := ownedBudget(ctx, q, userID, budgetID)
		if err != nil {
			return err
		}
		if !rate.IsPositive() {
			return core.Invalid("rateToMain", "Rate must be greater than 0")
		}
		if code == b.MainCurrency && !rate.Equal(one) {
			return core.Invalid("rateToMain", "Main currency rate is always 1")
		}
		return q.UpdateCurrencyRate(ctx, budgetID, code, rate)
	})
	if err != nil {
		return fmt.Errorf("update rate: %w", err)
	}
	return nil
}

// RemoveCurrency unregisters a currency whose asset is empty.
func (s *BudgetService) RemoveCurrency(ctx context.Context, userID, budgetID, code string) error {
	code = core.NormalizeCurrency(code)
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		b, err := ownedBudget(ctx, q, userID, budgetID)
		if err != nil {
			return err
		}
		if code == b.MainCurrency {
			return core.Invalid("currencyCode", "Cannot remove main currency")
		}
		currencies, err := q.ListCurrencies(ctx, budgetID)
		if err != nil {
			return err
		}
		if len(currencies) <= 1 {
			return core.Invalid("currencyCode", "Cannot remove the only currency")
		}
		asset, err := q.GetAsset(ctx, budgetID, code)
		switch {
		case err == nil && !asset.Amount.IsZero():
			return core.Invalid("currencyCode", "Cannot remove %s while its asset holds %s", code, asset.Amount.StringFixed(2))
		case err != nil && !errors.Is(err, core.ErrNotFound):
			return err
		}
		if err := q.DeleteAsset(ctx, budgetID, code); err != nil {
			return err
		}
		return q.DeleteCurrency(ctx, budgetID, code)
	})
	if err != nil {
		return fmt.Errorf("remove currency: %w", err)
	}
	return nil
}
