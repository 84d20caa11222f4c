package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"rentbook/internal/amqp"
	"rentbook/internal/backend"
	"rentbook/internal/cli"
	"rentbook/internal/config"
	apphttp "rentbook/internal/http"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/metrics"
	"rentbook/internal/sheets"
	gsheet "rentbook/internal/sheets/google"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, logger := cli.LoadConfig((*config.Config).Validate)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
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

	recorder := metrics.New()
	opts := []ledger.Option{
		ledger.WithLogger(logger.WithComponent(log.ComponentLedger)),
		ledger.WithMetrics(recorder),
	}

	// Change notifications are best effort; the server runs without them.
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications disabled", log.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, ledger.WithNotifier(client))
		}
	}

	store := ledger.New(ctx, blobs.Store, opts...)

	var publisher sheets.ReportWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("initialize Google Sheets: %w", err)
		}
		publisher = client
	} else {
		logger.Info("Report publishing disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:      ":" + cfg.Port,
		Store:     store,
		Publisher: publisher,
		Metrics:   recorder,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting rentbook server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"notifications", cfg.AMQPEnabled(),
			"publishing", cfg.SheetsEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
