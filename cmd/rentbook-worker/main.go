package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"rentbook/internal/amqp"
	"rentbook/internal/backend"
	"rentbook/internal/cli"
	"rentbook/internal/config"
	"rentbook/internal/log"
	"rentbook/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, logger := cli.LoadConfig((*config.Config).ValidateWorker)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting rentbook-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	blobs, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if blobs.Cleanup != nil {
		defer func() {
			if err := blobs.Cleanup(); err != nil {
				logger.Warn("Failed to close blob store", log.FieldError, err)
			}
		}()
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	backups := worker.NewBackupWorker(blobs.Store, cfg.BackupDir, cfg.BackupKeep, logger)

	// Catch up on anything changed while the worker was down
	if path, err := backups.Snapshot(ctx); err != nil {
		logger.Error("Startup backup failed", log.FieldError, err)
	} else {
		logger.Info("Startup backup written", log.FieldFile, path)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeChanges(gctx, backups.HandleChange)
	})
	g.Go(func() error {
		return backups.RunPeriodic(gctx, cfg.BackupInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
