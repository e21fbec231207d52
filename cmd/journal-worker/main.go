package main

import (
	"context"
	"os"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/cli"
	"dailybudget/internal/config"
	"dailybudget/internal/log"
	"dailybudget/internal/sheets/google"
	"dailybudget/internal/worker"
)

func main() {
	cfg, logger := cli.Start(log.ComponentJournal, (*config.Config).ValidateJournal)
	logger.Info("Starting journal-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"sheet", cfg.GoogleSheetName)

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	sheet, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}
	if err := sheet.EnsureHeader(ctx); err != nil {
		// Appends retry the header, so a transient failure here is not fatal.
		logger.Warn("Failed to write journal header", log.FieldError, err.Error())
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}

	w := worker.NewJournalWorker(sheet, cfg.Location())
	if err := w.Run(ctx, client); err != nil {
		logger.Error("Journal worker stopped", log.FieldError, err.Error())
		_ = client.Close()
		os.Exit(1)
	}

	cli.Cleanup(logger, 10*time.Second, func(context.Context) error { return client.Close() })
}
