package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"dailybudget/internal/core"
	"dailybudget/internal/fx"
	"dailybudget/internal/storage"

	"golang.org/x/sync/errgroup"
)

// RatesService refreshes stored rates from an external FX provider.
type RatesService struct {
	deps
	provider    fx.Provider
	concurrency int
}

func NewRatesService(repo *storage.SQLiteRepository, provider fx.Provider, concurrency int, opts ...Option) *RatesService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RatesService{deps: newDeps(repo, opts), provider: provider, concurrency: concurrency}
}

type RefreshResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Updated int    `json:"updated"`
	Total   int    `json:"total"`
}

// RefreshRates updates every non-main currency of a budget, or only code when
// it is not empty. Codes the provider cannot price keep their current rate.
func (s *RatesService) RefreshRates(ctx context.Context, userID, budgetID, code string) (RefreshResult, error) {
	b, err := ownedBudget(ctx, s.repo.Queries(), userID, budgetID)
	if err != nil {
		return RefreshResult{}, err
	}
	return s.refreshBudget(ctx, b, core.NormalizeCurrency(code))
}

func (s *RatesService) refreshBudget(ctx context.Context, b core.Budget, code string) (RefreshResult, error) {
	q := s.repo.Queries()
	currencies, err := q.ListCurrencies(ctx, b.ID)
	if err != nil {
		return RefreshResult{}, err
	}

	var targets []core.CurrencyRate
	for _, c := range currencies {
		if c.Code != b.MainCurrency {
			targets = append(targets, c)
		}
	}
	if code != "" {
		if code == b.MainCurrency {
			return RefreshResult{Success: true, Message: "Main currency rate is always 1"}, nil
		}
		var only []core.CurrencyRate
		for _, c := range targets {
			if c.Code == code {
				only = append(only, c)
			}
		}
		if len(only) == 0 {
			return RefreshResult{}, fmt.Errorf("currency %s in budget %s: %w", code, b.ID, core.ErrNotFound)
		}
		targets = only
	}
	if len(targets) == 0 {
		return RefreshResult{Success: true, Message: "No currencies to update"}, nil
	}

	if s.provider == nil {
		return RefreshResult{}, &core.ExternalServiceError{
			Kind:    core.ExternalMissingKey,
			Message: "Exchange rate API key not configured. Set EXCHANGE_RATE_API_KEY.",
		}
	}
	quotes, err := s.provider.Latest(ctx, b.MainCurrency)
	if err != nil {
		return RefreshResult{}, err
	}

	updated := 0
	var problems []string
	for _, c := range targets {
		apiRate, ok := quotes[c.Code]
		if !ok {
			problems = append(problems, "No rate available for "+c.Code)
			continue
		}
		if !apiRate.IsPositive() {
			problems = append(problems, "Invalid rate for "+c.Code)
			continue
		}
		if err := q.UpdateCurrencyRate(ctx, b.ID, c.Code, one.Div(apiRate)); err != nil {
			slog.ErrorContext(ctx, "Failed to store refreshed rate", "budget_id", b.ID, "currency", c.Code, "error", err)
			problems = append(problems, "Failed to update "+c.Code)
			continue
		}
		updated++
	}

	return RefreshResult{
		Success: updated > 0,
		Message: refreshMessage(updated, len(targets), problems),
		Updated: updated,
		Total:   len(targets),
	}, nil
}

func refreshMessage(updated, total int, problems []string) string {
	switch {
	case updated == total:
		plural := "s"
		if updated == 1 {
			plural = ""
		}
		return fmt.Sprintf("Successfully updated %d currency rate%s", updated, plural)
	case updated > 0:
		msg := fmt.Sprintf("Updated %d of %d currencies", updated, total)
		if len(problems) > 0 {
			msg += ". Note: " + strings.Join(problems, ", ")
		}
		return msg
	default:
		msg := "Could not update any currency rates"
		if len(problems) > 0 {
			msg += ": " + strings.Join(problems, ", ")
		}
		return msg
	}
}

// RatesSweepResult summarizes a refresh over every budget.
type RatesSweepResult struct {
	Budgets int `json:"budgets"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// RefreshAllRates is the background variant. A failing budget is logged and
// skipped.
func (s *RatesService) RefreshAllRates(ctx context.Context) (RatesSweepResult, error) {
	budgets, err := s.repo.Queries().ListAllBudgets(ctx)
	if err != nil {
		return RatesSweepResult{}, fmt.Errorf("list budgets: %w", err)
	}

	var updated, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, b := range budgets {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.refreshBudget(gctx, b, "")
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(gctx, "Failed to refresh rates", "budget_id", b.ID, "error", err)
				return nil
			}
			updated.Add(int64(res.Updated))
			if !res.Success {
				slog.WarnContext(gctx, "Rate refresh incomplete", "budget_id", b.ID, "message", res.Message)
			}
			return nil
		})
	}
	err = g.Wait()

	res := RatesSweepResult{Budgets: len(budgets), Updated: int(updated.Load()), Failed: int(failed.Load())}
	slog.InfoContext(ctx, "Rate refresh complete",
		"budgets", res.Budgets,
		"updated", res.Updated,
		"failed", res.Failed)
	return res, err
}
