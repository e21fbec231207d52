package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"golang.org/x/sync/errgroup"
)

// RecurringProcessor materializes recurring templates into expenses and
// income up to today.
type RecurringProcessor struct {
	deps
	concurrency int
}

// NewRecurringProcessor creates a processor that works on up to concurrency
// budgets at once. Items of one budget are always processed in order.
func NewRecurringProcessor(repo *storage.SQLiteRepository, concurrency int, opts ...Option) *RecurringProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RecurringProcessor{deps: newDeps(repo, opts), concurrency: concurrency}
}

// MaterializeResult summarizes one sweep.
type MaterializeResult struct {
	Items   int `json:"items"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// ProcessDue walks every active template from its watermark up to now.
// Occurrences step in whole days from the template's start date, so they
// stay on the day grid of the client that created it; a day is due once
// its midnight has passed. A failing occurrence stops that template's walk
// and is retried on the next run; other templates are unaffected.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (MaterializeResult, error) {
	cutoff := core.Day(now.UnixMilli())

	items, err := p.repo.Queries().ListActiveRecurring(ctx)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("list active recurring items: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring items",
		"total_active", len(items),
		"processing_date", now.In(p.loc).Format(time.RFC3339))

	byBudget := map[string][]core.RecurringItem{}
	var order []string
	for _, it := range items {
		if _, ok := byBudget[it.BudgetID]; !ok {
			order = append(order, it.BudgetID)
		}
		byBudget[it.BudgetID] = append(byBudget[it.BudgetID], it)
	}

	var (
		mu     sync.Mutex
		result = MaterializeResult{Items: len(items)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, budgetID := range order {
		budgetItems := byBudget[budgetID]
		g.Go(func() error {
			for _, it := range budgetItems {
				if err := gctx.Err(); err != nil {
					return err
				}
				created, err := p.processItem(gctx, it, cutoff)
				mu.Lock()
				result.Created += created
				if err != nil {
					result.Failed++
				}
				mu.Unlock()
				if err != nil {
					slog.ErrorContext(gctx, "Failed to materialize recurring item",
						"recurring_id", it.ID,
						"budget_id", it.BudgetID,
						"error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"created", result.Created,
		"failed", result.Failed,
		"total_checked", result.Items)
	return result, nil
}

func (p *RecurringProcessor) processItem(ctx context.Context, it core.RecurringItem, cutoff core.Day) (int, error) {
	checker, err := GetDuenessChecker(it.Frequency)
	if err != nil {
		return 0, err
	}

	next := it.StartDate
	if it.LastGenerated.IsSet() {
		next = it.LastGenerated.AddDays(1)
	}

	created := 0
	for ; next <= cutoff && (!it.EndDate.IsSet() || next <= it.EndDate); next = next.AddDays(1) {
		if !checker.OccursOn(next, it.StartDate) {
			continue
		}
		if err := p.materialize(ctx, it, next); err != nil {
			return created, fmt.Errorf("occurrence %s: %w", next.Time(time.UTC).Format(time.RFC3339), err)
		}
		created++
	}
	return created, nil
}

// materialize stores one occurrence and moves the watermark in the same
// transaction.
func (p *RecurringProcessor) materialize(ctx context.Context, it core.RecurringItem, day core.Day) error {
	var ev *amqp.LedgerEvent
	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		switch it.Type {
		case core.EntryExpense:
			e, err := insertExpense(ctx, q, core.Expense{
				BudgetID:    it.BudgetID,
				UserID:      it.UserID,
				Amount:      it.Amount,
				Currency:    it.Currency,
				Date:        day,
				Description: it.Description,
				Category:    it.Category,
			})
			if err != nil {
				return err
			}
			ev = amqp.NewExpenseEvent(amqp.EventExpenseRecorded, amqp.SourceRecurring, e)
		case core.EntryIncome:
			i, err := insertIncome(ctx, q, core.Income{
				BudgetID:    it.BudgetID,
				UserID:      it.UserID,
				Amount:      it.Amount,
				Currency:    it.Currency,
				Date:        day,
				Description: it.Description,
			})
			if err != nil {
				return err
			}
			ev = amqp.NewIncomeEvent(amqp.EventIncomeRecorded, amqp.SourceRecurring, i)
		default:
			return it.Type.Validate()
		}
		return q.SetWatermark(ctx, it.ID, day)
	})
	if err != nil {
		return err
	}
	p.publish(ctx, ev)
	return nil
}
