package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"dailybudget/internal/auth"
	"dailybudget/internal/cli"
	"dailybudget/internal/config"
	apphttp "dailybudget/internal/http"
	"dailybudget/internal/log"
	"dailybudget/internal/middleware/ratelimit"
	"dailybudget/internal/services"
)

func main() {
	cfg, logger := cli.Start(log.ComponentApp, (*config.Config).ValidateAPI)
	logger.Info("Starting budget-api")

	repo := cli.OpenRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	loc := cfg.Location()
	opts := []services.Option{services.WithLocation(loc)}
	if events := cli.ConnectEvents(logger, cfg); events != nil {
		defer events.Close()
		opts = append(opts, services.WithPublisher(events))
	}

	svc := apphttp.Services{
		Budgets:   services.NewBudgetService(repo, opts...),
		Ledger:    services.NewLedgerService(repo, opts...),
		Recurring: services.NewRecurringService(repo, opts...),
		Limits:    services.NewLimitService(repo, opts...),
		Alerts:    services.NewAlertService(repo, cfg.SweepConcurrency, opts...),
		Rates:     services.NewRatesService(repo, cli.FXProvider(cfg), cfg.SweepConcurrency, opts...),
		Export:    services.NewExportService(repo, opts...),
	}

	limits := ratelimit.DefaultConfig()
	limits.RequestsPerSecond = cfg.RateLimitRPS
	limits.Burst = cfg.RateLimitBurst

	srv := apphttp.NewServer(apphttp.Options{
		Addr:      ":" + cfg.Port,
		Tokens:    auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer),
		RateLimit: limits,
		Logger:    logger.WithComponent(log.ComponentHTTP),
		Location:  loc,
		Ready:     repo.Ping,
	}, svc)

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		cli.Cleanup(logger, 30*time.Second, srv.Shutdown)
	}()

	logger.Info("Listening", "port", cfg.Port, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped
	metrics := srv.RateLimitMetrics()
	logger.Info("Server stopped gracefully", "rate_limited", metrics.Rejected)
}
