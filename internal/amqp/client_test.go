package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{12, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"channel closed", errors.New("channel closed"), true},
		{"other", errors.New("invalid message format"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	c := &Client{}
	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatal("circuit opened before reaching max failures")
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("circuit should be open after max failures")
	}

	c.recordSuccess()
	if atomic.LoadInt32(&c.state) != StateClosed || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Error("success should reset the breaker")
	}
}

func TestCircuitBreakerHalfOpensAfterTimeout(t *testing.T) {
	c := &Client{state: StateOpen, lastFailure: time.Now().Add(-openTimeout - time.Second)}
	if c.isCircuitOpen() {
		t.Fatal("circuit should allow a trial call after the open timeout")
	}
	if atomic.LoadInt32(&c.state) != StateHalfOpen {
		t.Errorf("state = %d, want half-open", c.state)
	}
}

func TestPublishRejectsWhenCircuitOpen(t *testing.T) {
	c := &Client{state: StateOpen, lastFailure: time.Now()}
	err := c.PublishLedgerEvent(context.Background(), &LedgerEvent{Event: EventExpenseRecorded})
	if !errors.Is(err, errCircuitOpen) {
		t.Errorf("err = %v, want circuit open", err)
	}
}

func TestPublishRespectsContextCancellation(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.PublishLedgerEvent(ctx, &LedgerEvent{Event: EventExpenseRecorded})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLedgerEventJSON(t *testing.T) {
	e := core.Expense{
		ID: "e1", BudgetID: "b1", UserID: "u1",
		Amount: decimal.RequireFromString("12.34"), Currency: "EUR",
		Date: core.NewDay(2025, 3, 1, time.UTC), Description: "lunch", Category: "Food",
	}
	ev := NewExpenseEvent(EventExpenseRecorded, SourceRecurring, e)

	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON: %v", err)
	}
	if got.EntryID != "e1" || got.Source != SourceRecurring || got.Type != "Expense" {
		t.Errorf("unexpected event %+v", got)
	}
	if !got.Amount.Equal(e.Amount) || got.Date != int64(e.Date) {
		t.Errorf("amount/date lost: %s %d", got.Amount, got.Date)
	}

	if _, err := LedgerEventFromJSON([]byte("{")); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestTransferEventCarriesBothLegs(t *testing.T) {
	ev := NewTransferEvent(core.Transfer{
		ID: "t1", FromCurrency: "USD", ToCurrency: "EUR",
		FromAmount: decimal.NewFromInt(100), ToAmount: decimal.RequireFromString("90.9"),
	})
	if ev.Currency != "USD" || ev.ToCurrency != "EUR" || !ev.ToAmount.Equal(decimal.RequireFromString("90.9")) {
		t.Errorf("unexpected transfer event %+v", ev)
	}
}
