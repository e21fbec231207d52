package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
)

// LedgerService records money movements. Every operation touches the asset
// ledger and the transaction log in one SQLite transaction.
type LedgerService struct {
	deps
}

func NewLedgerService(repo *storage.SQLiteRepository, opts ...Option) *LedgerService {
	return &LedgerService{deps: newDeps(repo, opts)}
}

type ExpenseInput struct {
	BudgetID    string          `json:"budgetId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currencyCode"`
	Date        core.Day        `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

type IncomeInput struct {
	BudgetID    string          `json:"budgetId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currencyCode"`
	Date        core.Day        `json:"date"`
	Description string          `json:"description"`
}

type TransferInput struct {
	BudgetID     string          `json:"budgetId"`
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	FromAmount   decimal.Decimal `json:"fromAmount"`
	Description  string          `json:"description"`
}

// Categories lists the default expense categories.
func Categories() []string {
	return append([]string(nil), core.DefaultCategories...)
}

func validateEntry(amount decimal.Decimal, date core.Day, now func() time.Time) error {
	if err := core.ValidatePositive("amount", amount); err != nil {
		return err
	}
	return core.ValidateNotFuture(date, now())
}

// insertExpense debits the asset and stores the expense. Callers own the
// transaction and the ownership check.
func insertExpense(ctx context.Context, q *storage.Queries, e core.Expense) (core.Expense, error) {
	if _, err := requireCurrency(ctx, q, e.BudgetID, e.Currency); err != nil {
		return e, err
	}
	if err := newPlan(e.BudgetID).debit(e.Currency, e.Amount).apply(ctx, q); err != nil {
		return e, err
	}
	return q.InsertExpense(ctx, e)
}

// insertIncome credits the asset and stores the income.
func insertIncome(ctx context.Context, q *storage.Queries, i core.Income) (core.Income, error) {
	if _, err := requireCurrency(ctx, q, i.BudgetID, i.Currency); err != nil {
		return i, err
	}
	if err := newPlan(i.BudgetID).credit(i.Currency, i.Amount).apply(ctx, q); err != nil {
		return i, err
	}
	return q.InsertIncome(ctx, i)
}

func (s *LedgerService) RecordExpense(ctx context.Context, userID string, in ExpenseInput) (core.Expense, error) {
	e := core.Expense{
		BudgetID:    in.BudgetID,
		UserID:      userID,
		Amount:      in.Amount,
		Currency:    core.NormalizeCurrency(in.Currency),
		Date:        in.Date,
		Description: clean(in.Description),
		Category:    clean(in.Category),
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, in.BudgetID); err != nil {
			return err
		}
		if err := validateEntry(e.Amount, e.Date, s.now); err != nil {
			return err
		}
		var err error
		e, err = insertExpense(ctx, q, e)
		return err
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("record expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense recorded",
		"budget_id", e.BudgetID,
		"expense_id", e.ID,
		"amount", e.Amount.String(),
		"currency", e.Currency)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseRecorded, amqp.SourceUser, e))
	return e, nil
}

// UpdateExpense applies a partial change. A new amount or currency reverses
// the old debit and applies the new one; if the new asset cannot cover it
// nothing is written.
func (s *LedgerService) UpdateExpense(ctx context.Context, userID, id string, ch core.ExpenseChange) (core.Expense, error) {
	if userID == "" {
		return core.Expense{}, core.ErrNotAuthenticated
	}
	var updated core.Expense
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedBudget(ctx, q, userID, old.BudgetID); err != nil {
			return err
		}

		updated = ch.Apply(old)
		updated.Description = clean(updated.Description)
		updated.Category = clean(updated.Category)
		if err := validateEntry(updated.Amount, updated.Date, s.now); err != nil {
			return err
		}

		if !updated.Amount.Equal(old.Amount) || updated.Currency != old.Currency {
			if _, err := requireCurrency(ctx, q, old.BudgetID, updated.Currency); err != nil {
				return err
			}
			plan := newPlan(old.BudgetID).
				credit(old.Currency, old.Amount).
				debit(updated.Currency, updated.Amount)
			if err := plan.apply(ctx, q); err != nil {
				return err
			}
		}
		return q.UpdateExpense(ctx, updated)
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseUpdated, amqp.SourceUser, updated))
	return updated, nil
}

// RemoveExpense gives the amount back to its asset and deletes the record.
func (s *LedgerService) RemoveExpense(ctx context.Context, userID, id string) error {
	if userID == "" {
		return core.ErrNotAuthenticated
	}
	var removed core.Expense
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		e, err := q.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedBudget(ctx, q, userID, e.BudgetID); err != nil {
			return err
		}
		if err := newPlan(e.BudgetID).credit(e.Currency, e.Amount).apply(ctx, q); err != nil {
			return err
		}
		removed = e
		return q.DeleteExpense(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("remove expense: %w", err)
	}
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseRemoved, amqp.SourceUser, removed))
	return nil
}

func (s *LedgerService) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	if userID == "" {
		return core.Expense{}, core.ErrNotAuthenticated
	}
	q := s.repo.Queries()
	e, err := q.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if _, err := ownedBudget(ctx, q, userID, e.BudgetID); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ListExpenses returns the filtered expenses of a budget, newest first.
// Callers that cannot see the budget get an empty list.
func (s *LedgerService) ListExpenses(ctx context.Context, userID, budgetID string, f core.EntryFilter) ([]core.Expense, error) {
	q := s.repo.Queries()
	if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
		if degraded(err) {
			return []core.Expense{}, nil
		}
		return nil, err
	}
	expenses, err := q.ListExpenses(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	return core.FilterExpenses(expenses, f), nil
}

func (s *LedgerService) RecordIncome(ctx context.Context, userID string, in IncomeInput) (core.Income, error) {
	i := core.Income{
		BudgetID:    in.BudgetID,
		UserID:      userID,
		Amount:      in.Amount,
		Currency:    core.NormalizeCurrency(in.Currency),
		Date:        in.Date,
		Description: clean(in.Description),
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, in.BudgetID); err != nil {
			return err
		}
		if err := validateEntry(i.Amount, i.Date, s.now); err != nil {
			return err
		}
		var err error
		i, err = insertIncome(ctx, q, i)
		return err
	})
	if err != nil {
		return core.Income{}, fmt.Errorf("record income: %w", err)
	}

	slog.InfoContext(ctx, "Income recorded",
		"budget_id", i.BudgetID,
		"income_id", i.ID,
		"amount", i.Amount.String(),
		"currency", i.Currency)
	s.publish(ctx, amqp.NewIncomeEvent(amqp.EventIncomeRecorded, amqp.SourceUser, i))
	return i, nil
}

// UpdateIncome reverses the old credit and applies the new one. Income has no
// balance floor, so reversing it may leave an asset negative.
func (s *LedgerService) UpdateIncome(ctx context.Context, userID, id string, ch core.IncomeChange) (core.Income, error) {
	if userID == "" {
		return core.Income{}, core.ErrNotAuthenticated
	}
	var updated core.Income
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetIncome(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedBudget(ctx, q, userID, old.BudgetID); err != nil {
			return err
		}

		updated = ch.Apply(old)
		updated.Description = clean(updated.Description)
		if err := validateEntry(updated.Amount, updated.Date, s.now); err != nil {
			return err
		}

		if !updated.Amount.Equal(old.Amount) || updated.Currency != old.Currency {
			if _, err := requireCurrency(ctx, q, old.BudgetID, updated.Currency); err != nil {
				return err
			}
			plan := newPlan(old.BudgetID).
				reverse(old.Currency, old.Amount).
				credit(updated.Currency, updated.Amount)
			if err := plan.apply(ctx, q); err != nil {
				return err
			}
		}
		return q.UpdateIncome(ctx, updated)
	})
	if err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.publish(ctx, amqp.NewIncomeEvent(amqp.EventIncomeUpdated, amqp.SourceUser, updated))
	return updated, nil
}

func (s *LedgerService) RemoveIncome(ctx context.Context, userID, id string) error {
	if userID == "" {
		return core.ErrNotAuthenticated
	}
	var removed core.Income
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		i, err := q.GetIncome(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedBudget(ctx, q, userID, i.BudgetID); err != nil {
			return err
		}
		if err := newPlan(i.BudgetID).reverse(i.Currency, i.Amount).apply(ctx, q); err != nil {
			return err
		}
		removed = i
		return q.DeleteIncome(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("remove income: %w", err)
	}
	s.publish(ctx, amqp.NewIncomeEvent(amqp.EventIncomeRemoved, amqp.SourceUser, removed))
	return nil
}

func (s *LedgerService) GetIncome(ctx context.Context, userID, id string) (core.Income, error) {
	if userID == "" {
		return core.Income{}, core.ErrNotAuthenticated
	}
	q := s.repo.Queries()
	i, err := q.GetIncome(ctx, id)
	if err != nil {
		return core.Income{}, err
	}
	if _, err := ownedBudget(ctx, q, userID, i.BudgetID); err != nil {
		return core.Income{}, err
	}
	return i, nil
}

func (s *LedgerService) ListIncome(ctx context.Context, userID, budgetID string, f core.EntryFilter) ([]core.Income, error) {
	q := s.repo.Queries()
	if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
		if degraded(err) {
			return []core.Income{}, nil
		}
		return nil, err
	}
	income, err := q.ListIncome(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	return core.FilterIncome(income, f), nil
}

// Transfer exchanges fromAmount of one asset into another at the stored
// cross rate and appends an audit record.
func (s *LedgerService) Transfer(ctx context.Context, userID string, in TransferInput) (core.Transfer, error) {
	from := core.NormalizeCurrency(in.FromCurrency)
	to := core.NormalizeCurrency(in.ToCurrency)

	var t core.Transfer
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, in.BudgetID); err != nil {
			return err
		}
		if from == to {
			return core.Invalid("toCurrency", "Cannot transfer to the same currency")
		}
		if !in.FromAmount.IsPositive() {
			return core.Invalid("fromAmount", "Transfer amount must be positive")
		}
		fromRate, err := requireCurrency(ctx, q, in.BudgetID, from)
		if err != nil {
			return err
		}
		toRate, err := requireCurrency(ctx, q, in.BudgetID, to)
		if err != nil {
			return err
		}

		rateUsed := fromRate.RateToMain.Div(toRate.RateToMain)
		toAmount := in.FromAmount.Mul(rateUsed)
		if err := newPlan(in.BudgetID).debit(from, in.FromAmount).credit(to, toAmount).apply(ctx, q); err != nil {
			return err
		}

		t, err = q.InsertTransfer(ctx, core.Transfer{
			BudgetID:     in.BudgetID,
			UserID:       userID,
			FromCurrency: from,
			ToCurrency:   to,
			FromAmount:   in.FromAmount,
			ToAmount:     toAmount,
			RateUsed:     rateUsed,
			Date:         s.now().UnixMilli(),
			Description:  clean(in.Description),
		})
		return err
	})
	if err != nil {
		return core.Transfer{}, fmt.Errorf("transfer: %w", err)
	}

	slog.InfoContext(ctx, "Transfer recorded",
		"budget_id", t.BudgetID,
		"from", t.FromCurrency,
		"to", t.ToCurrency,
		"from_amount", t.FromAmount.String(),
		"to_amount", t.ToAmount.String())
	s.publish(ctx, amqp.NewTransferEvent(t))
	return t, nil
}

func (s *LedgerService) ListTransfers(ctx context.Context, userID, budgetID string) ([]core.Transfer, error) {
	q := s.repo.Queries()
	if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
		if degraded(err) {
			return []core.Transfer{}, nil
		}
		return nil, err
	}
	return q.ListTransfers(ctx, budgetID)
}

func (s *LedgerService) ListAssets(ctx context.Context, userID, budgetID string) ([]core.Asset, error) {
	q := s.repo.Queries()
	if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
		if degraded(err) {
			return []core.Asset{}, nil
		}
		return nil, err
	}
	return q.ListAssets(ctx, budgetID)
}

// AssetsTotal sums every asset in the budget's main currency.
func (s *LedgerService) AssetsTotal(ctx context.Context, userID, budgetID string) (decimal.Decimal, error) {
	q := s.repo.Queries()
	if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
		if degraded(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	currencies, err := q.ListCurrencies(ctx, budgetID)
	if err != nil {
		return decimal.Zero, err
	}
	assets, err := q.ListAssets(ctx, budgetID)
	if err != nil {
		return decimal.Zero, err
	}
	return core.SumToMain(core.NewRates(currencies), assets, func(a core.Asset) (decimal.Decimal, string) {
		return a.Amount, a.Currency
	}), nil
}

// SetAsset overwrites a balance, creating the asset when needed.
func (s *LedgerService) SetAsset(ctx context.Context, userID, budgetID, code string, amount decimal.Decimal) (core.Asset, error) {
	code = core.NormalizeCurrency(code)
	var a core.Asset
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
			return err
		}
		if amount.IsNegative() {
			return core.Invalid("amount", "Amount cannot be negative")
		}
		if _, err := requireCurrency(ctx, q, budgetID, code); err != nil {
			return err
		}
		var err error
		if a, err = getOrCreateAsset(ctx, q, budgetID, code); err != nil {
			return err
		}
		a.Amount = amount
		return q.SetAssetAmount(ctx, a.ID, amount)
	})
	if err != nil {
		return core.Asset{}, fmt.Errorf("set asset: %w", err)
	}
	return a, nil
}

func (s *LedgerService) AddToAsset(ctx context.Context, userID, budgetID, code string, amount decimal.Decimal) (core.Asset, error) {
	return s.adjustAsset(ctx, userID, budgetID, code, amount, false)
}

// SubtractFromAsset fails with an insufficient balance error rather than
// leaving the asset negative.
func (s *LedgerService) SubtractFromAsset(ctx context.Context, userID, budgetID, code string, amount decimal.Decimal) (core.Asset, error) {
	return s.adjustAsset(ctx, userID, budgetID, code, amount, true)
}

func (s *LedgerService) adjustAsset(ctx context.Context, userID, budgetID, code string, amount decimal.Decimal, subtract bool) (core.Asset, error) {
	code = core.NormalizeCurrency(code)
	var a core.Asset
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := ownedBudget(ctx, q, userID, budgetID); err != nil {
			return err
		}
		if err := core.ValidatePositive("amount", amount); err != nil {
			return err
		}
		if _, err := requireCurrency(ctx, q, budgetID, code); err != nil {
			return err
		}
		plan := newPlan(budgetID)
		if subtract {
			plan.debit(code, amount)
		} else {
			plan.credit(code, amount)
		}
		if err := plan.apply(ctx, q); err != nil {
			return err
		}
		var err error
		a, err = q.GetAsset(ctx, budgetID, code)
		return err
	})
	if err != nil {
		return core.Asset{}, fmt.Errorf("adjust asset: %w", err)
	}
	return a, nil
}
