package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"spendsync/internal/auth"
	"spendsync/internal/cli"
	"spendsync/internal/config"
	"spendsync/internal/feed"
	apphttp "spendsync/internal/http"
	"spendsync/internal/notify"
	syncer "spendsync/internal/sync"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting spendsync")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// AMQP is optional: without it digests are simply not published.
	var notifier syncer.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := notify.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without digests", "error", err)
		} else {
			defer amqpClient.Close()
			notifier = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, digests will not be published")
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

	srv := apphttp.NewServer(":"+cfg.Port, service, cfg.TargetDailyRate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting API server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// credentials picks the feed credential provider: a static bearer token when
// configured, otherwise the OAuth2 client-credentials flow.
func credentials(cfg *config.Config) syncer.CredentialProvider {
	if cfg.FeedStaticToken != "" {
		slog.Info("Using static feed token")
		return auth.Static(cfg.FeedStaticToken)
	}
	slog.Info("Using client-credentials feed auth", "token_url", cfg.FeedTokenURL)
	return auth.NewClientCredentials(cfg.FeedTokenURL, cfg.FeedClientID, cfg.FeedClientSecret, cfg.FeedScopes)
}
