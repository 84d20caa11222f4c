package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"rentbook/internal/backend"
	"rentbook/internal/cli"
	"rentbook/internal/config"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/sheets"
	gsheet "rentbook/internal/sheets/google"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	// stdout carries command output, so logs go to stderr
	logger := log.New(log.Config{
		Component: log.ComponentAdmin,
		Handler:   cli.NewHandler(os.Stderr, cfg.LogLevel, cfg.LogFormat),
	})
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		logger.Error("Command failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
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

	a := newApp(ledger.New(ctx, blobs.Store, ledger.WithLogger(logger.WithComponent(log.ComponentLedger))), logger)
	if cfg.SheetsEnabled() {
		a.publisher = func(ctx context.Context) (sheets.ReportWriter, error) {
			return gsheet.NewFromConfig(ctx, cfg, logger)
		}
	}
	return a.run(ctx, args)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: rentbook-admin <command> [flags] [args]

Commands:
  stats                              show the dashboard figures of the current month
  properties                         list properties
  expenses                           list expenses with their property names
  export [-o file]                   write a backup (default backup_<date>.json, "-" for stdout)
  import <file>                      replace the collections present in a backup ("-" for stdin)
  reset -yes                         delete every property and expense and restore default settings
  report [-format html|xlsx] [-o file] <propertyId> <YYYY-MM>
                                     write the monthly report of a property
  publish <YYYY-MM>                  append the reports of a month to Google Sheets

The data backend is selected with DATA_BACKEND, DATA_DIR and SQLITE_DB_PATH.
`)
}
