package main

import (
	"fmt"
	"strconv"
	"time"

	"dailybudget/internal/cli"
	"dailybudget/internal/services"

	"github.com/spf13/cobra"
)

var flagCurrency string

var migrateAssetsCmd = &cobra.Command{
	Use:   "migrate-assets",
	Short: "Seed assets for budgets created before the asset ledger",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		res, err := services.NewMigrationService(a.repo, a.options()...).MigrateBudgetsToAssets(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(cli.RenderKeyValues("Asset migration", [][2]string{
			{"Migrated", strconv.Itoa(res.Migrated)},
			{"Skipped", strconv.Itoa(res.Skipped)},
		}))
		return nil
	}),
}

var migrationStatusCmd = &cobra.Command{
	Use:   "migration-status",
	Short: "Count budgets with and without assets",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		st, err := services.NewMigrationService(a.repo, a.options()...).Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(cli.RenderKeyValues("Migration status", [][2]string{
			{"Budgets", strconv.Itoa(st.Total)},
			{"With assets", strconv.Itoa(st.WithAssets)},
			{"Without assets", strconv.Itoa(st.WithoutAssets)},
		}))
		return nil
	}),
}

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Create the due occurrences of every recurring item",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		now := time.Now()
		if flagToday != "" {
			today, err := a.today()
			if err != nil {
				return err
			}
			now = today.Time(a.loc)
		}
		p := services.NewRecurringProcessor(a.repo, a.cfg.SweepConcurrency, a.options()...)
		res, err := p.ProcessDue(cmd.Context(), now)
		if err != nil {
			return err
		}
		fmt.Print(cli.RenderKeyValues("Recurring items", [][2]string{
			{"Items", strconv.Itoa(res.Items)},
			{"Created", strconv.Itoa(res.Created)},
			{"Failed", strconv.Itoa(res.Failed)},
		}))
		return nil
	}),
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Generate alerts for every budget",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		today, err := a.today()
		if err != nil {
			return err
		}
		res, err := services.NewAlertService(a.repo, a.cfg.SweepConcurrency, a.options()...).
			GenerateForAllBudgets(cmd.Context(), today)
		if err != nil {
			return err
		}
		fmt.Print(cli.RenderKeyValues("Alerts", [][2]string{
			{"Budgets", strconv.Itoa(res.Budgets)},
			{"Created", strconv.Itoa(res.Created)},
			{"Failed", strconv.Itoa(res.Failed)},
		}))
		return nil
	}),
}

var refreshRatesCmd = &cobra.Command{
	Use:   "refresh-rates",
	Short: "Refresh exchange rates of one budget, or of all budgets",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		svc := services.NewRatesService(a.repo, cli.FXProvider(a.cfg), a.cfg.SweepConcurrency, a.options()...)
		if flagBudget == "" {
			res, err := svc.RefreshAllRates(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(cli.RenderKeyValues("Exchange rates", [][2]string{
				{"Budgets", strconv.Itoa(res.Budgets)},
				{"Updated", strconv.Itoa(res.Updated)},
				{"Failed", strconv.Itoa(res.Failed)},
			}))
			return nil
		}
		if err := requireBudget(); err != nil {
			return err
		}
		res, err := svc.RefreshRates(cmd.Context(), flagUser, flagBudget, flagCurrency)
		if err != nil {
			return err
		}
		fmt.Print(cli.RenderKeyValues(budgetName(cmd, a), [][2]string{
			{"Result", res.Message},
			{"Updated", fmt.Sprintf("%d / %d", res.Updated, res.Total)},
		}))
		return nil
	}),
}

func init() {
	refreshRatesCmd.Flags().StringVar(&flagCurrency, "currency", "", "Only refresh this currency code")
	rootCmd.AddCommand(migrateAssetsCmd, migrationStatusCmd, materializeCmd, alertsCmd, refreshRatesCmd)
}
