package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendsync/internal/auth"
	"spendsync/internal/cli"
	"spendsync/internal/config"
	"spendsync/internal/feed"
	"spendsync/internal/notify"
	syncer "spendsync/internal/sync"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting sync-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var notifier syncer.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := notify.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without digests", "error", err)
		} else {
			defer amqpClient.Close()
			notifier = amqpClient
		}
	}

	service := syncer.NewService(
		repo,
		feed.NewClient(cfg.FeedBaseURL),
		credentials(cfg),
		notifier,
		syncer.Options{LookbackDays: cfg.LookbackDays, RecheckToday: cfg.RecheckToday},
		cfg.TargetDailyRate,
		cfg.DefaultCurrency,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Sync worker configured",
		"interval", cfg.SyncInterval,
		"lookback_days", cfg.LookbackDays,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	// Run an initial cycle on startup so a restart never waits a full interval.
	runOnce(ctx, logger, service)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce(ctx, logger, service)
			}
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

	logger.Info("Shutting down sync-worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Sync-worker shutdown complete")
	}
}

func runOnce(ctx context.Context, logger *slog.Logger, service *syncer.Service) {
	report, err := service.Run(ctx, nil)
	if err != nil {
		logger.Error("Sync cycle failed", "error", err)
		return
	}
	logger.Info("Sync cycle finished",
		"fetched", report.Fetched,
		"new_records", report.NewRecords,
		"daily_rate", report.Analytics.DailyRate.StringFixed(2))
}

func credentials(cfg *config.Config) syncer.CredentialProvider {
	if cfg.FeedStaticToken != "" {
		return auth.Static(cfg.FeedStaticToken)
	}
	return auth.NewClientCredentials(cfg.FeedTokenURL, cfg.FeedClientID, cfg.FeedClientSecret, cfg.FeedScopes)
}
