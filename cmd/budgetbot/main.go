package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/budgetbot/internal/bot"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/export"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/service"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/store/postgres"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/store/sqlite"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/templates"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/tracker"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	"github.com/BrandonDHaskell/budgetbot/internal/config"
	"github.com/BrandonDHaskell/budgetbot/internal/db"
	"github.com/BrandonDHaskell/budgetbot/internal/httpapi"
	"github.com/BrandonDHaskell/budgetbot/internal/logging"
	"github.com/BrandonDHaskell/budgetbot/internal/telegram"
)

func main() {
	cfg := config.FromEnv()

	flags := pflag.NewFlagSet("budgetbot", pflag.ExitOnError)
	flags.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	flags.StringVar(&cfg.RosterPath, "roster", cfg.RosterPath, "department roster YAML file")
	flags.StringVar(&cfg.UpdateMode, "mode", cfg.UpdateMode, "update delivery: polling or webhook")
	flags.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "database driver: sqlite or postgres")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flags.BoolVar(&cfg.SeedDev, "seed-dev", cfg.SeedDev, "insert demo records into an empty database (dev only)")
	_ = flags.Parse(os.Args[1:])

	logger, closeLog, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Env: cfg.Env})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roster, err := config.LoadRoster(cfg.RosterPath)
	if err != nil {
		return err
	}
	dir := service.NewDirectory(roster)
	cfg.DBDriver = db.NormalizeDriver(cfg.DBDriver)

	conn, err := db.Open(ctx, db.Config{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.PostgresDSN,
		Env:    cfg.Env,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	records, events, closeStores := openStores(conn, cfg.DBDriver, logger)
	defer closeStores()

	if cfg.Env == "dev" && cfg.SeedDev {
		var initiator int64
		if ms := roster[types.DepartmentInitiator]; len(ms) > 0 {
			initiator = ms[0].ChatID
		}
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{Driver: cfg.DBDriver, InitiatorID: initiator}); err != nil {
			return err
		}
	}

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:  cfg.TelegramToken,
		APIURL: cfg.TelegramAPIURL,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return err
	}

	tr := tracker.New(client, templates.Default(), logger)
	engine := service.NewEngine(records, events, tr, dir, exporter, logger)
	b := bot.New(engine, dir, client, bot.Config{DeveloperChatID: cfg.DeveloperChatID}, logger)

	pruner := service.NewEventPruner(events, service.PrunerConfig{
		RetentionDays: cfg.EventRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	deps := httpapi.Dependencies{
		Logger:  logger,
		Addr:    cfg.HTTPAddr,
		Records: engine,
	}
	if cfg.UpdateMode == "webhook" {
		deps.Updates = b
		deps.WebhookSecret = cfg.WebhookSecret
	} else {
		poller := telegram.NewPoller(client, b, logger)
		poller.Start(ctx)
		defer poller.Stop()
	}
	srv := httpapi.NewServer(deps)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", cfg.UpdateMode))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}

func openStores(conn *sql.DB, driver string, logger *zap.Logger) (store.RecordStore, store.TransitionEventStore, func()) {
	if driver == db.DriverPostgres {
		return postgres.NewRecordStore(conn), postgres.NewTransitionEventStore(conn), func() {}
	}
	writer := db.NewWorker(conn, db.WithLogger(logger))
	return sqlite.NewRecordStore(conn, writer), sqlite.NewTransitionEventStore(conn, writer), writer.Close
}

func newExporter(ctx context.Context, cfg config.Config) (service.Exporter, error) {
	if cfg.ExportSink == "sheets" {
		return export.NewSheetsExporter(ctx, export.SheetsConfig{
			SpreadsheetID:   cfg.SheetsID,
			SheetName:       cfg.SheetsName,
			CredentialsFile: cfg.SheetsCredential,
			Timezone:        cfg.ExportTimezone,
		})
	}
	return export.NewCSVExporter(cfg.ExportPath, cfg.ExportTimezone)
}
