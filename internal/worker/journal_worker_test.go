package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/sheets"
	"dailybudget/internal/sheets/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) AppendJournal(context.Context, sheets.JournalRow) (string, error) {
	return "", errors.New("quota exceeded")
}

// replayConsumer hands every event to the handler, then waits for ctx.
type replayConsumer struct {
	events []*amqp.LedgerEvent
	errs   []error
}

func (c *replayConsumer) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error {
	for _, ev := range c.events {
		c.errs = append(c.errs, handler(ctx, ev))
	}
	<-ctx.Done()
	return ctx.Err()
}

func expenseEvent(id string) *amqp.LedgerEvent {
	return &amqp.LedgerEvent{
		Event:     amqp.EventExpenseRecorded,
		Source:    amqp.SourceUser,
		BudgetID:  "b1",
		EntryID:   id,
		Type:      "Expense",
		Date:      time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Amount:    decimal.NewFromInt(7),
		Currency:  "USD",
		Timestamp: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestJournalWorkerAppendsOneRowPerEvent(t *testing.T) {
	store := memory.New()
	w := NewJournalWorker(store, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	consumer := &replayConsumer{events: []*amqp.LedgerEvent{expenseEvent("e1"), expenseEvent("e2")}}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	require.Eventually(t, func() bool { return len(store.Rows()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done, "cancellation is a clean stop")

	rows := store.Rows()
	assert.Equal(t, "e1", rows[0].EntryID)
	assert.Equal(t, "2025-01-02", rows[0].Date)
	assert.Equal(t, "7.00", rows[1].Amount)
}

func TestJournalWorkerReportsWriteFailures(t *testing.T) {
	w := NewJournalWorker(failingWriter{}, nil)
	err := w.HandleLedgerEvent(context.Background(), expenseEvent("e1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expense.recorded e1")
}
