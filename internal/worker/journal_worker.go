package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/sheets"
)

// LedgerConsumer delivers ledger events until its context ends.
type LedgerConsumer interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// JournalWorker mirrors ledger events into an append-only journal.
type JournalWorker struct {
	writer sheets.JournalWriter
	loc    *time.Location
}

func NewJournalWorker(writer sheets.JournalWriter, loc *time.Location) *JournalWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &JournalWorker{writer: writer, loc: loc}
}

// HandleLedgerEvent appends one row. An error leaves the event for redelivery.
func (w *JournalWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event", ev.Event,
		"entry_id", ev.EntryID,
		"budget_id", ev.BudgetID)

	ref, err := w.writer.AppendJournal(ctx, sheets.RowFromEvent(ev, w.loc))
	if err != nil {
		return fmt.Errorf("append journal row for %s %s: %w", ev.Event, ev.EntryID, err)
	}

	slog.InfoContext(ctx, "Ledger event journaled",
		"event", ev.Event,
		"entry_id", ev.EntryID,
		"row_ref", ref)
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *JournalWorker) Run(ctx context.Context, consumer LedgerConsumer) error {
	err := consumer.ConsumeLedgerEvents(ctx, w.HandleLedgerEvent)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
