package services

import (
	"context"
	"testing"

	"dailybudget/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBudgetRegistersCurrenciesAndAssets(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	b, err := f.budgets.CreateBudget(ctx, owner, NewBudget{
		Name: "Japan", StartDate: day(1), EndDate: day(20), MainCurrency: "eur",
		Assets: []AssetSeed{
			{Currency: "EUR", Amount: dec("500"), Rate: dec("3")},
			{Currency: "JPY", Amount: dec("20000"), Rate: dec("0.0062")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", b.MainCurrency)

	currencies, err := f.budgets.ListCurrencies(ctx, owner, b.ID)
	require.NoError(t, err)
	require.Len(t, currencies, 2)
	assert.Equal(t, "EUR", currencies[0].Code)
	requireDecimal(t, "1", currencies[0].RateToMain)
	requireDecimal(t, "0.0062", currencies[1].RateToMain)

	requireDecimal(t, "500", f.balance(t, b.ID, "EUR"))
	requireDecimal(t, "20000", f.balance(t, b.ID, "JPY"))

	budgets, err := f.budgets.ListBudgets(ctx, owner)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	others, err := f.budgets.ListBudgets(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestCreateBudgetValidation(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tests := []struct {
		name string
		nb   NewBudget
	}{
		{"end before start", NewBudget{StartDate: day(5), EndDate: day(4), MainCurrency: "USD"}},
		{"bad currency", NewBudget{StartDate: day(1), EndDate: day(4), MainCurrency: "US"}},
		{"end out of range", NewBudget{StartDate: day(1), EndDate: core.Day(9e15), MainCurrency: "USD"}},
		{"window too long", NewBudget{StartDate: day(1), EndDate: day(1).AddDays(core.MaxBudgetDays), MainCurrency: "USD"}},
		{"negative seed", NewBudget{StartDate: day(1), EndDate: day(4), MainCurrency: "USD",
			Assets: []AssetSeed{{Currency: "USD", Amount: dec("-1")}}}},
		{"missing rate", NewBudget{StartDate: day(1), EndDate: day(4), MainCurrency: "USD",
			Assets: []AssetSeed{{Currency: "EUR", Amount: dec("1")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.budgets.CreateBudget(ctx, owner, tt.nb)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	_, err := f.budgets.CreateBudget(ctx, "", NewBudget{StartDate: day(1), EndDate: day(4), MainCurrency: "USD"})
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestUpdateBudgetMergesChange(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	updated, err := f.budgets.UpdateBudget(ctx, owner, b.ID, core.BudgetChange{EndDate: core.Some(day(12))})
	require.NoError(t, err)
	assert.Equal(t, "Trip", updated.Name)
	assert.Equal(t, day(12), updated.EndDate)

	_, err = f.budgets.UpdateBudget(ctx, owner, b.ID, core.BudgetChange{StartDate: core.Some(day(13))})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSwitchMainCurrencyRebasesRates(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	switched, err := f.budgets.SwitchMainCurrency(ctx, owner, b.ID, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "EUR", switched.MainCurrency)

	rates := map[string]string{}
	currencies, err := f.budgets.ListCurrencies(ctx, owner, b.ID)
	require.NoError(t, err)
	for _, c := range currencies {
		rates[c.Code] = c.RateToMain.StringFixed(4)
	}
	assert.Equal(t, map[string]string{"EUR": "1.0000", "USD": "1.1111"}, rates)
	requireDecimal(t, "1000", f.balance(t, b.ID, "USD"))

	_, err = f.budgets.SwitchMainCurrency(ctx, owner, b.ID, "JPY")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCurrencyRules(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	_, err := f.budgets.AddCurrency(ctx, owner, b.ID, "eur", dec("0.8"))
	assert.ErrorIs(t, err, core.ErrValidation, "duplicate")
	_, err = f.budgets.AddCurrency(ctx, owner, b.ID, "GBP", dec("0"))
	assert.ErrorIs(t, err, core.ErrValidation, "zero rate")

	assert.ErrorIs(t, f.budgets.UpdateRate(ctx, owner, b.ID, "USD", dec("2")), core.ErrValidation)
	require.NoError(t, f.budgets.UpdateRate(ctx, owner, b.ID, "EUR", dec("0.95")))

	assert.ErrorIs(t, f.budgets.RemoveCurrency(ctx, owner, b.ID, "USD"), core.ErrValidation)

	_, err = f.ledger.AddToAsset(ctx, owner, b.ID, "EUR", dec("3"))
	require.NoError(t, err)
	assert.ErrorIs(t, f.budgets.RemoveCurrency(ctx, owner, b.ID, "EUR"), core.ErrValidation, "non-zero asset")

	_, err = f.ledger.SubtractFromAsset(ctx, owner, b.ID, "EUR", dec("3"))
	require.NoError(t, err)
	require.NoError(t, f.budgets.RemoveCurrency(ctx, owner, b.ID, "EUR"))

	currencies, err := f.budgets.ListCurrencies(ctx, owner, b.ID)
	require.NoError(t, err)
	require.Len(t, currencies, 1)
	_, err = f.repo.Queries().GetAsset(ctx, b.ID, "EUR")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDuplicateBudget(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	_, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("100"), Currency: "USD", Date: day(2)})
	require.NoError(t, err)
	_, err = f.recurring.AddRecurring(ctx, owner, RecurringInput{
		BudgetID: b.ID, Type: core.EntryExpense, Amount: dec("5"), Currency: "USD",
		Frequency: core.Daily, StartDate: day(1),
	})
	require.NoError(t, err)
	_, err = f.processor.ProcessDue(ctx, f.now)
	require.NoError(t, err)

	dup, err := f.budgets.DuplicateBudget(ctx, owner, b.ID, DuplicateOptions{CopyExpenses: true, CopyRecurringItems: true})
	require.NoError(t, err)
	assert.Equal(t, "Trip (Copy)", dup.Name)
	assert.NotEqual(t, b.ID, dup.ID)

	requireDecimal(t, f.balance(t, b.ID, "USD").String(), f.balance(t, dup.ID, "USD"))

	expenses, err := f.ledger.ListExpenses(ctx, owner, dup.ID, core.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, expenses, 6)

	items, err := f.recurring.ListRecurring(ctx, owner, dup.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, core.NoDay, items[0].LastGenerated)
}

func TestRemoveBudgetCascades(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	_, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("1"), Currency: "USD", Date: day(2)})
	require.NoError(t, err)

	assert.ErrorIs(t, f.budgets.RemoveBudget(ctx, "intruder", b.ID), core.ErrNotFound)
	require.NoError(t, f.budgets.RemoveBudget(ctx, owner, b.ID))

	_, err = f.budgets.GetBudget(ctx, owner, b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	expenses, err := f.repo.Queries().ListExpenses(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, expenses)
}
