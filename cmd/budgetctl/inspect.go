package main

import (
	"fmt"
	"os"
	"time"

	"dailybudget/internal/auth"
	"dailybudget/internal/cli"
	"dailybudget/internal/config"
	"dailybudget/internal/core"
	"dailybudget/internal/log"
	"dailybudget/internal/services"

	"github.com/spf13/cobra"
)

var (
	flagFrom string
	flagTo   string
	flagOut  string
	flagTTL  time.Duration
)

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Show today's daily limit of a budget",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireBudget(); err != nil {
			return err
		}
		today, err := a.today()
		if err != nil {
			return err
		}
		m, err := services.NewLimitService(a.repo, a.options()...).DailyLimit(cmd.Context(), flagUser, flagBudget, today)
		if err != nil {
			return err
		}
		if m == nil {
			fmt.Println("\n  Budget not found.")
			return nil
		}
		fmt.Print(cli.RenderMetrics(budgetName(cmd, a), *m))
		return nil
	}),
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Show the day-by-day breakdown of a budget",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireBudget(); err != nil {
			return err
		}
		today, err := a.today()
		if err != nil {
			return err
		}
		bd, err := services.NewLimitService(a.repo, a.options()...).Breakdown(cmd.Context(), flagUser, flagBudget, today)
		if err != nil {
			return err
		}
		if bd == nil {
			fmt.Println("\n  Budget not found.")
			return nil
		}
		fmt.Print(cli.RenderBreakdown(budgetName(cmd, a), *bd, a.loc))
		return nil
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a budget's expenses and income as CSV",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireBudget(); err != nil {
			return err
		}
		from, to := core.NoDay, core.NoDay
		var err error
		if flagFrom != "" {
			if from, err = core.ParseDay(flagFrom, a.loc); err != nil {
				return fmt.Errorf("invalid --from %q", flagFrom)
			}
		}
		if flagTo != "" {
			if to, err = core.ParseDay(flagTo, a.loc); err != nil {
				return fmt.Errorf("invalid --to %q", flagTo)
			}
		}

		data, filename, err := services.NewExportService(a.repo, a.options()...).
			ExportCSV(cmd.Context(), flagUser, flagBudget, from, to)
		if err != nil {
			return err
		}
		out := flagOut
		if out == "" {
			out = filename
		}
		if out == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		a.logger.Info("Export written", "file", out, "bytes", len(data))
		return nil
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a user",
	RunE: func(_ *cobra.Command, _ []string) error {
		if flagUser == "" {
			return fmt.Errorf("--user is required")
		}
		cfg, _ := cli.Start(log.ComponentCLI, (*config.Config).ValidateAPI)
		token, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer).Issue(flagUser, flagTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&flagFrom, "from", "", "First day (yyyy-MM-dd)")
	exportCmd.Flags().StringVar(&flagTo, "to", "", "Last day (yyyy-MM-dd)")
	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "", "Output file, - for stdout (defaults to the export filename)")
	tokenCmd.Flags().DurationVar(&flagTTL, "ttl", auth.DefaultTTL, "Token lifetime")

	rootCmd.AddCommand(limitCmd, breakdownCmd, exportCmd, tokenCmd)
}
