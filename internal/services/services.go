// Package services implements the budget operations on top of the SQLite
// repository: ownership checks, the asset ledger, recurring materialization,
// alert generation, FX refresh and exports.
package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/core"
	"dailybudget/internal/storage"

	"github.com/microcosm-cc/bluemonday"
)

// EventPublisher receives ledger events once the movement is committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Option configures the shared dependencies of a service.
type Option func(*deps)

// WithPublisher enables ledger events.
func WithPublisher(p EventPublisher) Option {
	return func(d *deps) { d.events = p }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithLocation sets the timezone background sweeps derive "today" from.
func WithLocation(loc *time.Location) Option {
	return func(d *deps) { d.loc = loc }
}

type deps struct {
	repo   *storage.SQLiteRepository
	events EventPublisher
	now    func() time.Time
	loc    *time.Location
}

func newDeps(repo *storage.SQLiteRepository, opts []Option) deps {
	d := deps{repo: repo, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d deps) today() core.Day {
	return core.DayOf(d.now(), d.loc)
}

func (d deps) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", ev.Event,
			"entry_id", ev.EntryID,
			"error", err)
	}
}

// ownedBudget loads a budget and checks it belongs to userID. Budgets owned
// by someone else are reported as missing.
func ownedBudget(ctx context.Context, q *storage.Queries, userID, budgetID string) (core.Budget, error) {
	if userID == "" {
		return core.Budget{}, core.ErrNotAuthenticated
	}
	b, err := q.GetBudget(ctx, budgetID)
	if err != nil {
		return core.Budget{}, err
	}
	if b.UserID != userID {
		return core.Budget{}, fmt.Errorf("budget %s: %w", budgetID, core.ErrNotFound)
	}
	return b, nil
}

// degraded reports errors that turn a query into an empty result.
func degraded(err error) bool {
	return errors.Is(err, core.ErrNotAuthenticated) || errors.Is(err, core.ErrNotFound)
}

var textPolicy = bluemonday.StrictPolicy()

// clean strips markup and surrounding whitespace from free text. The strict
// policy escapes entities, which are turned back into plain characters.
func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
