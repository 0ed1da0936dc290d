package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recordhub/cmd"
	"recordhub/config"
	"recordhub/infrastructure/persistence/relational"
	"recordhub/infrastructure/persistence/retry"
	"recordhub/pkg/logger"
	"recordhub/pkg/telemetry"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Worker startup failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := parseConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Worker.Enabled {
		logger.Info("Redelivery worker is disabled by config; exiting")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.App)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	app, err := cmd.NewBuilder(cfg).Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() { _ = app.Close() }()

	db := app.DB()
	if db == nil {
		return errors.New("redelivery worker needs a relational database")
	}

	worker, err := relational.NewRedeliveryWorker(
		relational.NewDispatchFailureRepository(db, relational.WithClaimLease(cfg.Worker.ClaimLease)),
		relational.NewStore(db),
		app.Router(),
		relational.WorkerConfig{
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.BatchSize,
			MaxRetries:   cfg.Worker.MaxRetries,
			Rate:         cfg.Worker.Rate,
			Backoff:      retry.FromAppConfig(cfg),
		},
		logger.Get(),
	)
	if err != nil {
		return fmt.Errorf("failed to create redelivery worker: %w", err)
	}

	logger.Info("Redelivery worker started",
		zap.Duration("poll_interval", cfg.Worker.PollInterval),
		zap.Int("batch_size", cfg.Worker.BatchSize),
		zap.Int("max_retries", cfg.Worker.MaxRetries),
		zap.Float64("rate", cfg.Worker.Rate),
		zap.Duration("claim_lease", cfg.Worker.ClaimLease),
	)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("redelivery worker exited with error: %w", err)
	}

	logger.Info("Redelivery worker stopped")
	return nil
}

func parseConfigPath() string {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()
	return configPath
}
