package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const owner = "user-1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Event
	}
	return out
}

type fixture struct {
	repo      *storage.SQLiteRepository
	events    *recordingPublisher
	budgets   *BudgetService
	ledger    *LedgerService
	recurring *RecurringService
	processor *RecurringProcessor
	limits    *LimitService
	alerts    *AlertService
	exports   *ExportService
	now       time.Time
}

func day(n int) core.Day { return core.NewDay(2025, time.January, n, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newFixture wires every service against a fresh database with the clock
// stopped at noon of the given January 2025 day.
func newFixture(t *testing.T, today int) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Date(2025, time.January, today, 12, 0, 0, 0, time.UTC)
	events := &recordingPublisher{}
	opts := []Option{
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
		WithPublisher(events),
	}
	return &fixture{
		repo:      repo,
		events:    events,
		budgets:   NewBudgetService(repo, opts...),
		ledger:    NewLedgerService(repo, opts...),
		recurring: NewRecurringService(repo, opts...),
		processor: NewRecurringProcessor(repo, 2, opts...),
		limits:    NewLimitService(repo, opts...),
		alerts:    NewAlertService(repo, 2, opts...),
		exports:   NewExportService(repo, opts...),
		now:       now,
	}
}

// tripBudget is a ten day USD budget (Jan 1-10) holding 1000 USD, with EUR
// registered at 0.9 and no EUR asset.
func (f *fixture) tripBudget(t *testing.T) core.Budget {
	t.Helper()
	ctx := context.Background()
	b, err := f.budgets.CreateBudget(ctx, owner, NewBudget{
		Name: "Trip", StartDate: day(1), EndDate: day(10), MainCurrency: "USD",
		Assets: []AssetSeed{{Currency: "USD", Amount: dec("1000")}},
	})
	require.NoError(t, err)
	_, err = f.budgets.AddCurrency(ctx, owner, b.ID, "EUR", dec("0.9"))
	require.NoError(t, err)
	return b
}

func (f *fixture) balance(t *testing.T, budgetID, code string) decimal.Decimal {
	t.Helper()
	a, err := f.repo.Queries().GetAsset(context.Background(), budgetID, code)
	require.NoError(t, err)
	return a.Amount
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
