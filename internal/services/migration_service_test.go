package services

import (
	"context"
	"testing"

	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legacyBudget inserts a budget the way it looked before assets existed.
func (f *fixture) legacyBudget(t *testing.T, total string) core.Budget {
	t.Helper()
	ctx := context.Background()
	q := f.repo.Queries()
	b, err := q.CreateBudget(ctx, core.Budget{
		UserID: owner, Name: "Old", StartDate: day(1), EndDate: day(10), MainCurrency: "USD",
		LegacyTotal: decimal.NewNullDecimal(dec(total)),
	})
	require.NoError(t, err)
	for code, rate := range map[string]string{"USD": "1", "EUR": "0.9"} {
		_, err := q.InsertCurrency(ctx, core.CurrencyRate{BudgetID: b.ID, Code: code, RateToMain: dec(rate)})
		require.NoError(t, err)
	}
	_, err = q.InsertExpense(ctx, core.Expense{BudgetID: b.ID, UserID: owner, Amount: dec("100"), Currency: "EUR", Date: day(2)})
	require.NoError(t, err)
	_, err = q.InsertIncome(ctx, core.Income{BudgetID: b.ID, UserID: owner, Amount: dec("50"), Currency: "USD", Date: day(3)})
	require.NoError(t, err)
	return b
}

func TestMigrateBudgetsToAssets(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	migrations := NewMigrationService(f.repo)

	legacy := f.legacyBudget(t, "1000")
	f.tripBudget(t)

	st, err := migrations.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{Total: 2, WithAssets: 1, WithoutAssets: 1}, st)

	res, err := migrations.MigrateBudgetsToAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Migrated: 1, Skipped: 1}, res)

	// 1000 + 50 - 100 * 0.9
	requireDecimal(t, "960", f.balance(t, legacy.ID, "USD"))
	requireDecimal(t, "0", f.balance(t, legacy.ID, "EUR"))

	res, err = migrations.MigrateBudgetsToAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Skipped: 2}, res)

	st, err = migrations.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.WithAssets)
}
