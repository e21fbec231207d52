package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"time"

	"dailybudget/internal/core"
	"dailybudget/internal/storage"
)

// ExportService renders a budget's entries as CSV.
type ExportService struct {
	deps
}

func NewExportService(repo *storage.SQLiteRepository, opts ...Option) *ExportService {
	return &ExportService{deps: newDeps(repo, opts)}
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9]`)

// ExportCSV returns Type,Date,Amount,Currency,Description,Category rows,
// newest first, and a download filename. from and to are inclusive and may
// be core.NoDay.
func (s *ExportService) ExportCSV(ctx context.Context, userID, budgetID string, from, to core.Day) ([]byte, string, error) {
	q := s.repo.Queries()
	b, err := ownedBudget(ctx, q, userID, budgetID)
	if err != nil {
		return nil, "", err
	}
	f := core.EntryFilter{From: from, To: to}
	expenses, err := q.ListExpenses(ctx, budgetID)
	if err != nil {
		return nil, "", err
	}
	income, err := q.ListIncome(ctx, budgetID)
	if err != nil {
		return nil, "", err
	}
	expenses = core.FilterExpenses(expenses, f)
	income = core.FilterIncome(income, f)

	// Both lists are sorted newest first; merge keeping expenses ahead on ties.
	rows := make([][]string, 0, len(expenses)+len(income))
	i, j := 0, 0
	for i < len(expenses) || j < len(income) {
		if j >= len(income) || (i < len(expenses) && expenses[i].Date >= income[j].Date) {
			e := expenses[i]
			rows = append(rows, []string{
				"Expense", e.Date.Format(s.loc), e.Amount.StringFixed(2), e.Currency, e.Description, e.Category,
			})
			i++
			continue
		}
		in := income[j]
		rows = append(rows, []string{
			"Income", in.Date.Format(s.loc), in.Amount.StringFixed(2), in.Currency, in.Description, "",
		})
		j++
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Type", "Date", "Amount", "Currency", "Description", "Category"}); err != nil {
		return nil, "", err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("write csv: %w", err)
	}

	return buf.Bytes(), exportFilename(b, from, to, s.loc), nil
}

func exportFilename(b core.Budget, from, to core.Day, loc *time.Location) string {
	name := b.Name
	if name == "" {
		name = "budget"
	}
	name = unsafeFilename.ReplaceAllString(name, "_") + "_export"
	if from.IsSet() && to.IsSet() {
		name += "_" + from.Format(loc) + "_to_" + to.Format(loc)
	}
	return name + ".csv"
}
