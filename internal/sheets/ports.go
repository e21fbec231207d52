package sheets

import (
	"context"
	"strings"
	"time"

	"dailybudget/internal/amqp"
)

// Ports for outbound adapters.
type (
	// JournalWriter appends one ledger event per row to an external journal.
	JournalWriter interface {
		AppendJournal(ctx context.Context, row JournalRow) (rowRef string, err error)
	}
)

// JournalHeader names the columns written by JournalRow.Values.
var JournalHeader = []any{
	"Timestamp", "Event", "Source", "Date", "Type", "Amount", "Currency",
	"To Amount", "To Currency", "Description", "Category", "Budget", "Entry", "User",
}

// JournalRow is a ledger event flattened for a spreadsheet.
type JournalRow struct {
	Timestamp   string
	Event       string
	Source      string
	Date        string
	Type        string
	Amount      string
	Currency    string
	ToAmount    string
	ToCurrency  string
	Description string
	Category    string
	BudgetID    string
	EntryID     string
	UserID      string
}

// RowFromEvent renders ev with dates in loc and amounts with 2 decimals.
func RowFromEvent(ev *amqp.LedgerEvent, loc *time.Location) JournalRow {
	if loc == nil {
		loc = time.UTC
	}
	row := JournalRow{
		Timestamp:   ev.Timestamp.In(loc).Format(time.RFC3339),
		Event:       ev.Event,
		Source:      ev.Source,
		Date:        time.UnixMilli(ev.Date).In(loc).Format("2006-01-02"),
		Type:        ev.Type,
		Amount:      ev.Amount.StringFixed(2),
		Currency:    ev.Currency,
		Description: ev.Description,
		Category:    ev.Category,
		BudgetID:    ev.BudgetID,
		EntryID:     ev.EntryID,
		UserID:      ev.UserID,
	}
	if ev.ToCurrency != "" {
		row.ToAmount = ev.ToAmount.StringFixed(2)
		row.ToCurrency = ev.ToCurrency
	}
	return row
}

// Values returns the row in JournalHeader order. Free text that a sheet
// would evaluate as a formula is quoted.
func (r JournalRow) Values() []any {
	return []any{
		r.Timestamp, r.Event, r.Source, r.Date, r.Type, r.Amount, r.Currency,
		r.ToAmount, r.ToCurrency, cellText(r.Description), cellText(r.Category),
		r.BudgetID, r.EntryID, r.UserID,
	}
}

func cellText(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
