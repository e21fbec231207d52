package main

import (
	"fmt"
	"time"

	"dailybudget/internal/cli"
	"dailybudget/internal/config"
	"dailybudget/internal/core"
	"dailybudget/internal/log"
	"dailybudget/internal/services"
	"dailybudget/internal/storage"

	"github.com/spf13/cobra"
)

var (
	flagDB     string
	flagUser   string
	flagBudget string
	flagToday  string
)

var rootCmd = &cobra.Command{
	Use:           "budgetctl",
	Short:         "Daily budget maintenance CLI",
	Long:          "Run budget sweeps and migrations by hand, inspect daily limits and export ledgers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "Act as this user")
	rootCmd.PersistentFlags().StringVarP(&flagBudget, "budget", "b", "", "Budget id")
	rootCmd.PersistentFlags().StringVar(&flagToday, "today", "", "Override today (yyyy-MM-dd)")
}

// app is what every command that touches the database needs.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	repo   *storage.SQLiteRepository
	loc    *time.Location
}

func (a *app) options() []services.Option {
	return []services.Option{services.WithLocation(a.loc)}
}

func (a *app) today() (core.Day, error) {
	if flagToday == "" {
		return core.DayOf(time.Now(), a.loc), nil
	}
	d, err := core.ParseDay(flagToday, a.loc)
	if err != nil {
		return core.NoDay, fmt.Errorf("invalid --today %q: expected yyyy-MM-dd", flagToday)
	}
	return d, nil
}

// withApp opens the database around run.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger := cli.Start(log.ComponentCLI, (*config.Config).Validate)
		if flagDB != "" {
			cfg.SQLiteDBPath = flagDB
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return fmt.Errorf("open database %s: %w", cfg.SQLiteDBPath, err)
		}
		defer repo.Close()
		return run(cmd, &app{cfg: cfg, logger: logger, repo: repo, loc: cfg.Location()}, args)
	}
}

func requireBudget() error {
	if flagUser == "" || flagBudget == "" {
		return fmt.Errorf("--user and --budget are required")
	}
	return nil
}

// budgetName looks up the display name, falling back to the id.
func budgetName(cmd *cobra.Command, a *app) string {
	b, err := services.NewBudgetService(a.repo, a.options()...).GetBudget(cmd.Context(), flagUser, flagBudget)
	if err != nil {
		return flagBudget
	}
	return b.DisplayName()
}
