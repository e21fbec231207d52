package services

import (
	"context"
	"errors"
	"testing"

	"dailybudget/internal/amqp"
	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExpenseDebitsAsset(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	e, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{
		BudgetID: b.ID, Amount: dec("80"), Currency: "usd", Date: day(5),
		Description: "<b>Dinner</b>", Category: "Food",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", e.Currency)
	assert.Equal(t, "Dinner", e.Description)
	requireDecimal(t, "920", f.balance(t, b.ID, "USD"))
	assert.Equal(t, []string{amqp.EventExpenseRecorded}, f.events.names())
}

func TestRecordExpenseRejections(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)
	_, err := f.budgets.AddCurrency(ctx, owner, b.ID, "GBP", dec("1.25"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		in     ExpenseInput
		target error
	}{
		{"zero amount", ExpenseInput{Amount: decimal.Zero, Currency: "USD", Date: day(5)}, core.ErrValidation},
		{"future date", ExpenseInput{Amount: dec("1"), Currency: "USD", Date: day(6)}, core.ErrValidation},
		{"unregistered currency", ExpenseInput{Amount: dec("1"), Currency: "JPY", Date: day(5)}, core.ErrValidation},
		{"no asset for currency", ExpenseInput{Amount: dec("1"), Currency: "GBP", Date: day(5)}, core.ErrNoAsset},
		{"insufficient balance", ExpenseInput{Amount: dec("1000.01"), Currency: "USD", Date: day(5)}, core.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.BudgetID = b.ID
			_, err := f.ledger.RecordExpense(ctx, owner, tt.in)
			require.ErrorIs(t, err, tt.target)
		})
	}

	requireDecimal(t, "1000", f.balance(t, b.ID, "USD"))
	expenses, err := f.ledger.ListExpenses(ctx, owner, b.ID, core.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, expenses)
	assert.Empty(t, f.events.names())
}

func TestNoAssetIsDistinctValidationError(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)
	_, err := f.budgets.AddCurrency(ctx, owner, b.ID, "GBP", dec("1.25"))
	require.NoError(t, err)

	_, err = f.ledger.RecordExpense(ctx, owner, ExpenseInput{
		BudgetID: b.ID, Amount: dec("1"), Currency: "GBP", Date: day(5),
	})
	var na *core.NoAssetError
	require.True(t, errors.As(err, &na))
	assert.Equal(t, "GBP", na.Currency)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.NotErrorIs(t, err, core.ErrInsufficientBalance)
}

func TestInsufficientBalanceMessage(t *testing.T) {
	f := newFixture(t, 5)
	b := f.tripBudget(t)

	_, err := f.ledger.RecordExpense(context.Background(), owner, ExpenseInput{
		BudgetID: b.ID, Amount: dec("1500"), Currency: "USD", Date: day(5),
	})
	var ib *core.InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, "Insufficient balance. Available: 1000.00 USD, Required: 1500.00 USD", ib.Error())
}

func TestOwnershipChecks(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)
	in := ExpenseInput{BudgetID: b.ID, Amount: dec("1"), Currency: "USD", Date: day(5)}

	_, err := f.ledger.RecordExpense(ctx, "", in)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
	_, err = f.ledger.RecordExpense(ctx, "intruder", in)
	assert.ErrorIs(t, err, core.ErrNotFound)

	e, err := f.ledger.RecordExpense(ctx, owner, in)
	require.NoError(t, err)
	_, err = f.ledger.GetExpense(ctx, "intruder", e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, f.ledger.RemoveExpense(ctx, "intruder", e.ID), core.ErrNotFound)

	list, err := f.ledger.ListExpenses(ctx, "intruder", b.ID, core.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assets, err := f.ledger.ListAssets(ctx, "", b.ID)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestUpdateExpenseIsAtomic(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)
	_, err := f.ledger.SetAsset(ctx, owner, b.ID, "EUR", dec("10"))
	require.NoError(t, err)

	e, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("50"), Currency: "USD", Date: day(5)})
	require.NoError(t, err)

	_, err = f.ledger.UpdateExpense(ctx, owner, e.ID, core.ExpenseChange{
		Amount: core.Some(dec("20")), Currency: core.Some("EUR"),
	})
	require.ErrorIs(t, err, core.ErrInsufficientBalance)

	requireDecimal(t, "950", f.balance(t, b.ID, "USD"))
	requireDecimal(t, "10", f.balance(t, b.ID, "EUR"))
	got, err := f.ledger.GetExpense(ctx, owner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
	requireDecimal(t, "50", got.Amount)
}

func TestUpdateExpenseMovesBetweenAssets(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)
	_, err := f.ledger.SetAsset(ctx, owner, b.ID, "EUR", dec("100"))
	require.NoError(t, err)

	e, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("50"), Currency: "USD", Date: day(5)})
	require.NoError(t, err)
	updated, err := f.ledger.UpdateExpense(ctx, owner, e.ID, core.ExpenseChange{
		Amount: core.Some(dec("30")), Currency: core.Some("EUR"), Description: core.Some("Museum"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Museum", updated.Description)
	assert.Equal(t, day(5), updated.Date)

	requireDecimal(t, "1000", f.balance(t, b.ID, "USD"))
	requireDecimal(t, "70", f.balance(t, b.ID, "EUR"))
}

func TestUpdateExpenseCountsReversedAmount(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	e, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("900"), Currency: "USD", Date: day(5)})
	require.NoError(t, err)
	_, err = f.ledger.UpdateExpense(ctx, owner, e.ID, core.ExpenseChange{Amount: core.Some(dec("950"))})
	require.NoError(t, err)
	requireDecimal(t, "50", f.balance(t, b.ID, "USD"))

	_, err = f.ledger.UpdateExpense(ctx, owner, e.ID, core.ExpenseChange{Amount: core.Some(dec("1000.5"))})
	var ib *core.InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	requireDecimal(t, "1000", ib.Available)
	requireDecimal(t, "50", f.balance(t, b.ID, "USD"))
}

func TestRemoveExpenseRestoresBalance(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	e, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("80"), Currency: "USD", Date: day(4)})
	require.NoError(t, err)
	require.NoError(t, f.ledger.RemoveExpense(ctx, owner, e.ID))
	requireDecimal(t, "1000", f.balance(t, b.ID, "USD"))

	_, err = f.ledger.GetExpense(ctx, owner, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, []string{amqp.EventExpenseRecorded, amqp.EventExpenseRemoved}, f.events.names())
}

func TestIncomeCreatesAssetLazily(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	_, err := f.repo.Queries().GetAsset(ctx, b.ID, "EUR")
	require.ErrorIs(t, err, core.ErrNotFound)

	i, err := f.ledger.RecordIncome(ctx, owner, IncomeInput{BudgetID: b.ID, Amount: dec("200"), Currency: "EUR", Date: day(2)})
	require.NoError(t, err)
	requireDecimal(t, "200", f.balance(t, b.ID, "EUR"))

	_, err = f.ledger.UpdateIncome(ctx, owner, i.ID, core.IncomeChange{Amount: core.Some(dec("150")), Currency: core.Some("USD")})
	require.NoError(t, err)
	requireDecimal(t, "0", f.balance(t, b.ID, "EUR"))
	requireDecimal(t, "1150", f.balance(t, b.ID, "USD"))

	require.NoError(t, f.ledger.RemoveIncome(ctx, owner, i.ID))
	requireDecimal(t, "1000", f.balance(t, b.ID, "USD"))
}

func TestRemovingSpentIncomeMayGoNegative(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	i, err := f.ledger.RecordIncome(ctx, owner, IncomeInput{BudgetID: b.ID, Amount: dec("100"), Currency: "USD", Date: day(5)})
	require.NoError(t, err)
	_, err = f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("1050"), Currency: "USD", Date: day(5)})
	require.NoError(t, err)

	require.NoError(t, f.ledger.RemoveIncome(ctx, owner, i.ID))
	requireDecimal(t, "-50", f.balance(t, b.ID, "USD"))
}

func TestTransferScenario(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	tr, err := f.ledger.Transfer(ctx, owner, TransferInput{BudgetID: b.ID, FromCurrency: "USD", ToCurrency: "EUR", FromAmount: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "1.11", tr.RateUsed.StringFixed(2))
	assert.Equal(t, "111.11", tr.ToAmount.StringFixed(2))
	assert.Equal(t, f.now.UnixMilli(), tr.Date)

	requireDecimal(t, "900", f.balance(t, b.ID, "USD"))
	assert.Equal(t, "111.11", f.balance(t, b.ID, "EUR").StringFixed(2))

	transfers, err := f.ledger.ListTransfers(ctx, owner, b.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, tr.ID, transfers[0].ID)
}

func TestTransferRejections(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	_, err := f.ledger.Transfer(ctx, owner, TransferInput{BudgetID: b.ID, FromCurrency: "USD", ToCurrency: "USD", FromAmount: dec("1")})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.ledger.Transfer(ctx, owner, TransferInput{BudgetID: b.ID, FromCurrency: "USD", ToCurrency: "EUR", FromAmount: dec("-1")})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.ledger.Transfer(ctx, owner, TransferInput{BudgetID: b.ID, FromCurrency: "USD", ToCurrency: "EUR", FromAmount: dec("1001")})
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)

	requireDecimal(t, "1000", f.balance(t, b.ID, "USD"))
	_, err = f.repo.Queries().GetAsset(ctx, b.ID, "EUR")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBalanceConservation(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	_, err := f.ledger.RecordIncome(ctx, owner, IncomeInput{BudgetID: b.ID, Amount: dec("50"), Currency: "EUR", Date: day(1)})
	require.NoError(t, err)
	e, err := f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("120"), Currency: "USD", Date: day(2)})
	require.NoError(t, err)
	_, err = f.ledger.Transfer(ctx, owner, TransferInput{BudgetID: b.ID, FromCurrency: "USD", ToCurrency: "EUR", FromAmount: dec("300")})
	require.NoError(t, err)
	_, err = f.ledger.RecordExpense(ctx, owner, ExpenseInput{BudgetID: b.ID, Amount: dec("40"), Currency: "EUR", Date: day(3)})
	require.NoError(t, err)
	_, err = f.ledger.UpdateExpense(ctx, owner, e.ID, core.ExpenseChange{Amount: core.Some(dec("100"))})
	require.NoError(t, err)

	// 1000 + 50*0.9 - 100 - 40*0.9
	want := dec("909")
	total, err := f.ledger.AssetsTotal(ctx, owner, b.ID)
	require.NoError(t, err)
	assert.True(t, total.Sub(want).Abs().LessThan(dec("0.000000001")), "total %s, want %s", total, want)
}

func TestSubtractFromAssetNeverOverdraws(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	_, err := f.ledger.SubtractFromAsset(ctx, owner, b.ID, "USD", dec("1000.01"))
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	requireDecimal(t, "1000", f.balance(t, b.ID, "USD"))

	a, err := f.ledger.SubtractFromAsset(ctx, owner, b.ID, "USD", dec("1000"))
	require.NoError(t, err)
	requireDecimal(t, "0", a.Amount)

	a, err = f.ledger.AddToAsset(ctx, owner, b.ID, "EUR", dec("5"))
	require.NoError(t, err)
	requireDecimal(t, "5", a.Amount)

	_, err = f.ledger.SetAsset(ctx, owner, b.ID, "JPY", dec("5"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestListExpensesFilters(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	for _, in := range []ExpenseInput{
		{Amount: dec("10"), Currency: "USD", Date: day(1), Description: "Coffee", Category: "Food"},
		{Amount: dec("25"), Currency: "USD", Date: day(2), Description: "Bus pass", Category: "Transport"},
		{Amount: dec("5"), Currency: "USD", Date: day(3), Description: "Snack"},
	} {
		in.BudgetID = b.ID
		_, err := f.ledger.RecordExpense(ctx, owner, in)
		require.NoError(t, err)
	}

	all, err := f.ledger.ListExpenses(ctx, owner, b.ID, core.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(3), all[0].Date)

	food, err := f.ledger.ListExpenses(ctx, owner, b.ID, core.EntryFilter{Category: core.Some("Food")})
	require.NoError(t, err)
	require.Len(t, food, 1)

	uncategorized, err := f.ledger.ListExpenses(ctx, owner, b.ID, core.EntryFilter{Category: core.Some("")})
	require.NoError(t, err)
	require.Len(t, uncategorized, 1)
	assert.Equal(t, "Snack", uncategorized[0].Description)

	search, err := f.ledger.ListExpenses(ctx, owner, b.ID, core.EntryFilter{Search: "BUS"})
	require.NoError(t, err)
	require.Len(t, search, 1)

	ranged, err := f.ledger.ListExpenses(ctx, owner, b.ID, core.EntryFilter{
		From: day(2), To: day(3), MinAmount: decimal.NewNullDecimal(dec("6")),
	})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "Bus pass", ranged[0].Description)
}
