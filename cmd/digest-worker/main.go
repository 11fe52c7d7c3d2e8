package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendsync/internal/cli"
	"spendsync/internal/export"
	"spendsync/internal/notify"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting digest-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the digest worker")
		os.Exit(1)
	}

	amqpClient, err := notify.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Sheets export is optional; digests are still rendered without it.
	var exporter *export.SheetsExporter
	if os.Getenv("GOOGLE_SPREADSHEET_ID") != "" {
		exporter, err = export.NewSheetsFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Sheets exporter", "error", err)
			os.Exit(1)
		}
		logger.Info("Sheets exporter initialized")
	} else {
		logger.Info("Sheets export disabled, no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(d *notify.Digest) error {
		fmt.Println(notify.FormatDigest(*d))
		logger.Info("Digest received",
			"generated_at", d.GeneratedAt.Format(time.RFC3339),
			"new_records", d.NewRecords,
			"total_amount", d.Analytics.TotalAmount.String())

		if exporter != nil {
			exportCtx, exportCancel := context.WithTimeout(ctx, 30*time.Second)
			defer exportCancel()
			if err := exporter.ExportDailyTotals(exportCtx, d.DailyTotals); err != nil {
				// Export failures never nack the digest; the next one
				// carries the full series again.
				logger.Error("Daily totals export failed", "error", err)
			}
		}
		return nil
	}

	go func() {
		if err := amqpClient.ConsumeDigests(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Digest consumption failed", "error", err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down digest-worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Digest-worker shutdown complete")
	}
}
