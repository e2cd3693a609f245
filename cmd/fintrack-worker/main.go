package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend != "sqlite" {
		logger.Warn("Worker reads the SQLite database; DATA_BACKEND is not sqlite", "backend", cfg.DataBackend)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	budgetWorker := worker.NewBudgetWorker(repo, cfg.MonthlyBudget, logger)

	caches := cache.NewManager(logger)
	caches.Register("budget_alerts", budgetWorker.AlertCache())
	caches.StartCleanup(time.Hour)
	defer caches.Stop()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		if err := amqpClient.ConsumeTransactionCreated(ctx, budgetWorker.HandleTransactionCreated); err != nil && !errors.Is(err, context.Canceled) {
			cli.Fatal(logger, "Message consumption failed", err)
		}
	}()

	logger.Info("Worker started", "queue", cfg.AMQPQueue, "budget", cfg.MonthlyBudget.StringFixed(2))
	cli.WaitForShutdown(ctx, done)
	<-consumeDone
	logger.Info("Worker stopped")
}
