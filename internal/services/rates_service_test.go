package services

import (
	"context"
	"errors"
	"testing"

	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	quotes map[string]decimal.Decimal
	err    error
}

func (p *stubProvider) Latest(_ context.Context, _ string) (map[string]decimal.Decimal, error) {
	return p.quotes, p.err
}

func TestRefreshRates(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)
	_, err := f.budgets.AddCurrency(ctx, owner, b.ID, "JPY", dec("0.0065"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		quotes  map[string]decimal.Decimal
		code    string
		want    RefreshResult
		wantEUR string
	}{
		{
			name:    "all priced",
			quotes:  map[string]decimal.Decimal{"EUR": dec("0.8"), "JPY": dec("160")},
			want:    RefreshResult{Success: true, Message: "Successfully updated 2 currency rates", Updated: 2, Total: 2},
			wantEUR: "1.25",
		},
		{
			name:    "partial",
			quotes:  map[string]decimal.Decimal{"EUR": dec("0.5"), "JPY": dec("0")},
			want:    RefreshResult{Success: true, Message: "Updated 1 of 2 currencies. Note: Invalid rate for JPY", Updated: 1, Total: 2},
			wantEUR: "2",
		},
		{
			name:    "nothing priced",
			quotes:  map[string]decimal.Decimal{"GBP": dec("0.7")},
			want:    RefreshResult{Message: "Could not update any currency rates: No rate available for EUR, No rate available for JPY", Total: 2},
			wantEUR: "2",
		},
		{
			name:    "single code",
			quotes:  map[string]decimal.Decimal{"EUR": dec("0.9"), "JPY": dec("100")},
			code:    "jpy",
			want:    RefreshResult{Success: true, Message: "Successfully updated 1 currency rate", Updated: 1, Total: 1},
			wantEUR: "2",
		},
		{
			name:    "main currency",
			code:    "USD",
			want:    RefreshResult{Success: true, Message: "Main currency rate is always 1"},
			wantEUR: "2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRatesService(f.repo, &stubProvider{quotes: tt.quotes}, 1)
			got, err := svc.RefreshRates(ctx, owner, b.ID, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			eur, err := f.repo.Queries().GetCurrency(ctx, b.ID, "EUR")
			require.NoError(t, err)
			requireDecimal(t, tt.wantEUR, eur.RateToMain)
		})
	}

	jpy, err := f.repo.Queries().GetCurrency(ctx, b.ID, "JPY")
	require.NoError(t, err)
	requireDecimal(t, "0.01", jpy.RateToMain)
}

func TestRefreshRatesErrors(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	b := f.tripBudget(t)

	svc := NewRatesService(f.repo, &stubProvider{}, 1)
	_, err := svc.RefreshRates(ctx, owner, b.ID, "GBP")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.RefreshRates(ctx, "intruder", b.ID, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = NewRatesService(f.repo, nil, 1).RefreshRates(ctx, owner, b.ID, "")
	var ext *core.ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, core.ExternalMissingKey, ext.Kind)

	failing := &stubProvider{err: &core.ExternalServiceError{Kind: core.ExternalUnreachable, Message: "down"}}
	_, err = NewRatesService(f.repo, failing, 1).RefreshRates(ctx, owner, b.ID, "")
	assert.ErrorIs(t, err, core.ErrExternalService)

	lonely, err := f.budgets.CreateBudget(ctx, owner, NewBudget{StartDate: day(1), EndDate: day(2), MainCurrency: "USD"})
	require.NoError(t, err)
	res, err := svc.RefreshRates(ctx, owner, lonely.ID, "")
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{Success: true, Message: "No currencies to update"}, res)
}

func TestRefreshAllRatesSkipsFailures(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	f.tripBudget(t)
	f.tripBudget(t)

	provider := &stubProvider{quotes: map[string]decimal.Decimal{"EUR": dec("0.8")}}
	res, err := NewRatesService(f.repo, provider, 2).RefreshAllRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, RatesSweepResult{Budgets: 2, Updated: 2}, res)
}
