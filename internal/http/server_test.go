package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dailybudget/internal/auth"
	"dailybudget/internal/core"
	"dailybudget/internal/dailylimit"
	"dailybudget/internal/middleware/ratelimit"
	"dailybudget/internal/services"
	"dailybudget/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789"

type api struct {
	server *Server
	tokens *auth.Tokens
	alice  string
	bob    string
}

func day(n int) core.Day { return core.NewDay(2025, time.January, n, time.UTC) }

// newAPI serves every service over a fresh database with the clock stopped
// at noon on January 5th 2025.
func newAPI(t *testing.T, limits ratelimit.Config) *api {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	now := func() time.Time { return time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC) }
	opts := []services.Option{services.WithClock(now), services.WithLocation(time.UTC)}
	tokens := auth.NewTokens(testSecret, "dailybudget")

	s := NewServer(Options{
		Tokens:    tokens,
		RateLimit: limits,
		Location:  time.UTC,
		Now:       now,
		Ready:     func(ctx context.Context) error { return repo.Ping(ctx) },
	}, Services{
		Budgets:   services.NewBudgetService(repo, opts...),
		Ledger:    services.NewLedgerService(repo, opts...),
		Recurring: services.NewRecurringService(repo, opts...),
		Limits:    services.NewLimitService(repo, opts...),
		Alerts:    services.NewAlertService(repo, 2, opts...),
		Rates:     services.NewRatesService(repo, nil, 2, opts...),
		Export:    services.NewExportService(repo, opts...),
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	alice, err := tokens.Issue("alice", time.Hour)
	require.NoError(t, err)
	bob, err := tokens.Issue("bob", time.Hour)
	require.NoError(t, err)
	return &api{server: s, tokens: tokens, alice: alice, bob: bob}
}

func generousLimits() ratelimit.Config {
	return ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000}
}

func (a *api) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = strings.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

func (a *api) createTrip(t *testing.T) core.Budget {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/budgets", a.alice, map[string]any{
		"name":         "Trip",
		"startDate":    day(1),
		"endDate":      day(10),
		"mainCurrency": "usd",
		"assets":       []map[string]any{{"currencyCode": "USD", "amount": "1000"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[core.Budget](t, rec)
}

func TestHealthReadyAndHeaders(t *testing.T) {
	a := newAPI(t, generousLimits())

	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = a.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	a.server.ready = func(context.Context) error { return errors.New("db down") }
	rec = a.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/nowhere", a.alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestBudgetLedgerFlow(t *testing.T) {
	a := newAPI(t, generousLimits())
	b := a.createTrip(t)
	assert.Equal(t, "USD", b.MainCurrency)

	rec := a.do(t, http.MethodPost, "/api/v1/expenses", a.alice, map[string]any{
		"budgetId": b.ID, "amount": 50, "currencyCode": "USD", "date": day(5), "category": "Food",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	expense := decode[core.Expense](t, rec)

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/assets", a.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assets := decode[[]core.Asset](t, rec)
	require.Len(t, assets, 1)
	assert.True(t, assets[0].Amount.Equal(decimal.NewFromInt(950)), "balance %s", assets[0].Amount)

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/daily-limit?today=2025-01-05", a.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[dailylimit.Metrics](t, rec)
	assert.True(t, m.SpentToday.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "USD", m.MainCurrency)

	rec = a.do(t, http.MethodPatch, "/api/v1/expenses/"+expense.ID, a.alice, map[string]any{"amount": "80"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/expenses?category=Food&minAmount=60", a.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Expense](t, rec), 1)

	rec = a.do(t, http.MethodDelete, "/api/v1/expenses/"+expense.ID, a.alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/assets/total", a.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	total := decode[map[string]decimal.Decimal](t, rec)
	assert.True(t, total["total"].Equal(decimal.NewFromInt(1000)))
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t, generousLimits())
	b := a.createTrip(t)
	rec := a.do(t, http.MethodPost, "/api/v1/budgets/"+b.ID+"/currencies", a.alice,
		map[string]any{"currencyCode": "eur", "rateToMain": "1.1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		check  func(t *testing.T, body ErrorBody)
	}{
		{
			name: "anonymous mutation", method: http.MethodPost, path: "/api/v1/budgets",
			body: map[string]any{"startDate": day(1), "endDate": day(2), "mainCurrency": "USD"}, status: http.StatusUnauthorized,
		},
		{
			name: "bad token", method: http.MethodGet, path: "/api/v1/budgets", token: "garbage", status: http.StatusUnauthorized,
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/api/v1/expenses", token: a.alice,
			body: `{"amount":`, status: http.StatusBadRequest,
		},
		{
			name: "validation", method: http.MethodPost, path: "/api/v1/expenses", token: a.alice,
			body:   map[string]any{"budgetId": b.ID, "amount": 0, "currencyCode": "USD", "date": day(5)},
			status: http.StatusBadRequest,
			check: func(t *testing.T, body ErrorBody) {
				assert.Equal(t, "amount", body.Field)
				assert.Equal(t, "Amount must be greater than 0", body.Error)
			},
		},
		{
			name: "insufficient balance", method: http.MethodPost, path: "/api/v1/expenses", token: a.alice,
			body:   map[string]any{"budgetId": b.ID, "amount": 2000, "currencyCode": "USD", "date": day(5)},
			status: http.StatusConflict,
			check: func(t *testing.T, body ErrorBody) {
				assert.Equal(t, "Insufficient balance. Available: 1000.00 USD, Required: 2000.00 USD", body.Error)
				assert.Equal(t, "1000.00", body.Available)
				assert.Equal(t, "USD", body.Currency)
			},
		},
		{
			name: "someone else's budget", method: http.MethodGet, path: "/api/v1/budgets/" + b.ID, token: a.bob,
			status: http.StatusNotFound,
		},
		{
			name: "missing expense", method: http.MethodDelete, path: "/api/v1/expenses/nope", token: a.alice,
			status: http.StatusNotFound,
		},
		{
			name: "provider not configured", method: http.MethodPost, path: "/api/v1/budgets/" + b.ID + "/rates/refresh", token: a.alice,
			status: http.StatusBadGateway,
			check: func(t *testing.T, body ErrorBody) {
				assert.Equal(t, string(core.ExternalMissingKey), body.Kind)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[ErrorBody](t, rec)
			assert.NotEmpty(t, body.Error)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestQueriesDegradeToEmpty(t *testing.T) {
	a := newAPI(t, generousLimits())
	b := a.createTrip(t)

	rec := a.do(t, http.MethodGet, "/api/v1/budgets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/expenses", a.bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/daily-limit", a.bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestExportDownloadWithQueryToken(t *testing.T) {
	a := newAPI(t, generousLimits())
	b := a.createTrip(t)
	rec := a.do(t, http.MethodPost, "/api/v1/income", a.alice, map[string]any{
		"budgetId": b.ID, "amount": "25.5", "currencyCode": "USD", "date": day(2), "description": "Refund",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/export?token="+a.alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Trip_export.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Type,Date,Amount,Currency,Description,Category\nIncome,2025-01-02,25.50,USD,Refund,\n", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID+"/export?from=yesterday", a.alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertsOverAPI(t *testing.T) {
	a := newAPI(t, generousLimits())
	a.createTrip(t)

	rec := a.do(t, http.MethodPost, "/api/v1/alerts/generate?today=2025-01-09", a.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[map[string]int](t, rec)["created"])

	rec = a.do(t, http.MethodGet, "/api/v1/alerts?unread=true", a.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[[]core.Alert](t, rec)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Trip: Ends in 1 day", alerts[0].Message)

	rec = a.do(t, http.MethodPost, "/api/v1/alerts/read-all", a.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, rec)["updated"])

	rec = a.do(t, http.MethodDelete, "/api/v1/alerts/"+alerts[0].ID, a.bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodDelete, "/api/v1/alerts/"+alerts[0].ID, a.alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitedClientsGet429(t *testing.T) {
	a := newAPI(t, ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1})

	rec := a.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]string](t, rec), len(core.DefaultCategories))

	rec = a.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, int64(1), a.server.RateLimitMetrics().Rejected)

	rec = a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health checks are not rate limited")
}
