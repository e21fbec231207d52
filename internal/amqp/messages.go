package amqp

import (
	"encoding/json"
	"time"

	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
)

// Ledger event names.
const (
	EventExpenseRecorded  = "expense.recorded"
	EventExpenseUpdated   = "expense.updated"
	EventExpenseRemoved   = "expense.removed"
	EventIncomeRecorded   = "income.recorded"
	EventIncomeUpdated    = "income.updated"
	EventIncomeRemoved    = "income.removed"
	EventTransferRecorded = "transfer.recorded"
)

// Event sources.
const (
	SourceUser      = "user"
	SourceRecurring = "recurring"
)

// LedgerEvent is published after a money movement commits. It carries a full
// snapshot of the entry so consumers never have to read the database.
type LedgerEvent struct {
	Event       string          `json:"event"`
	Source      string          `json:"source"`
	BudgetID    string          `json:"budget_id"`
	UserID      string          `json:"user_id"`
	EntryID     string          `json:"entry_id"`
	Type        string          `json:"type"`
	Date        int64           `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ToAmount    decimal.Decimal `json:"to_amount,omitempty"`
	ToCurrency  string          `json:"to_currency,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewExpenseEvent(event, source string, e core.Expense) *LedgerEvent {
	return &LedgerEvent{
		Event:       event,
		Source:      source,
		BudgetID:    e.BudgetID,
		UserID:      e.UserID,
		EntryID:     e.ID,
		Type:        "Expense",
		Date:        int64(e.Date),
		Amount:      e.Amount,
		Currency:    e.Currency,
		Description: e.Description,
		Category:    e.Category,
		Timestamp:   time.Now().UTC(),
	}
}

func NewIncomeEvent(event, source string, i core.Income) *LedgerEvent {
	return &LedgerEvent{
		Event:       event,
		Source:      source,
		BudgetID:    i.BudgetID,
		UserID:      i.UserID,
		EntryID:     i.ID,
		Type:        "Income",
		Date:        int64(i.Date),
		Amount:      i.Amount,
		Currency:    i.Currency,
		Description: i.Description,
		Timestamp:   time.Now().UTC(),
	}
}

func NewTransferEvent(t core.Transfer) *LedgerEvent {
	return &LedgerEvent{
		Event:       EventTransferRecorded,
		Source:      SourceUser,
		BudgetID:    t.BudgetID,
		UserID:      t.UserID,
		EntryID:     t.ID,
		Type:        "Transfer",
		Date:        t.Date,
		Amount:      t.FromAmount,
		Currency:    t.FromCurrency,
		ToAmount:    t.ToAmount,
		ToCurrency:  t.ToCurrency,
		Description: t.Description,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event published by PublishLedgerEvent.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
