package main

import (
	"context"
	"os"
	"time"

	"dailybudget/internal/cli"
	"dailybudget/internal/config"
	"dailybudget/internal/core"
	"dailybudget/internal/log"
	"dailybudget/internal/services"
	"dailybudget/internal/worker"
)

func main() {
	cfg, logger := cli.Start(log.ComponentScheduler, (*config.Config).Validate)
	logger.Info("Starting budget-worker")

	repo := cli.OpenRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	loc := cfg.Location()
	opts := []services.Option{services.WithLocation(loc)}
	if events := cli.ConnectEvents(logger, cfg); events != nil {
		defer events.Close()
		opts = append(opts, services.WithPublisher(events))
	}

	processor := services.NewRecurringProcessor(repo, cfg.SweepConcurrency, opts...)
	rates := services.NewRatesService(repo, cli.FXProvider(cfg), cfg.SweepConcurrency, opts...)
	alerts := services.NewAlertService(repo, cfg.SweepConcurrency, opts...)

	sched := worker.NewScheduler()
	jobs := []struct {
		name string
		at   string
		run  worker.JobFunc
	}{
		{"materialize", cfg.RecurringRunAt, func(ctx context.Context, now time.Time) error {
			res, err := processor.ProcessDue(ctx, now)
			if err == nil {
				logger.InfoContext(ctx, "Recurring items materialized", "items", res.Items, "created", res.Created, "failed", res.Failed)
			}
			return err
		}},
		{"refresh-rates", cfg.RatesRunAt, func(ctx context.Context, _ time.Time) error {
			res, err := rates.RefreshAllRates(ctx)
			if err == nil {
				logger.InfoContext(ctx, "Exchange rates refreshed", "budgets", res.Budgets, "updated", res.Updated, "failed", res.Failed)
			}
			return err
		}},
		{"alerts", cfg.AlertsRunAt, func(ctx context.Context, now time.Time) error {
			res, err := alerts.GenerateForAllBudgets(ctx, core.DayOf(now, loc))
			if err == nil {
				logger.InfoContext(ctx, "Alerts generated", "budgets", res.Budgets, "created", res.Created, "failed", res.Failed)
			}
			return err
		}},
	}
	for _, j := range jobs {
		if err := sched.Add(j.name, j.at, j.run); err != nil {
			logger.Error("Invalid job schedule", "job", j.name, log.FieldError, err.Error())
			os.Exit(1)
		}
	}

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	// Catch up on occurrences missed while the worker was down.
	if err := sched.RunNow(ctx, "materialize"); err != nil {
		logger.Error("Initial materialization failed", log.FieldError, err.Error())
	}

	if err := sched.Run(ctx); err != nil {
		logger.Error("Scheduler stopped", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("budget-worker shutdown complete")
}
