package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheetrest/internal/config"
	"github.com/JonMunkholm/sheetrest/internal/core"
	"github.com/JonMunkholm/sheetrest/internal/logging"
	"github.com/JonMunkholm/sheetrest/internal/metrics"
	"github.com/JonMunkholm/sheetrest/internal/store/memory"
	"github.com/JonMunkholm/sheetrest/internal/store/postgres"
	"github.com/JonMunkholm/sheetrest/internal/store/sheets"
	"github.com/JonMunkholm/sheetrest/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"prefix", cfg.Server.PathPrefix,
		"backend", cfg.Store.Backend,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"api_key_required", cfg.Security.RequireAPIKey,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open sheet store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
		store = metrics.InstrumentStore(store, m)
	}

	inserts := core.NewInsertLimiter(cfg.Store.MaxConcurrentInserts, cfg.Store.InsertWaitTimeout)
	server := web.NewServer(core.NewService(store, core.WithInsertLimiter(inserts)), cfg, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := serve(ctx, server, inserts, cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// lifecycle is the part of web.Server that serve drives.
type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is done, then drains in-flight inserts and shuts
// srv down. It returns only after shutdown has finished.
func serve(ctx context.Context, srv lifecycle, inserts *core.InsertLimiter, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if active := inserts.Active(); active > 0 {
		slog.Info("waiting for inserts to complete", "active", active)
		if err := inserts.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("inserts did not complete in time", "error", err)
		} else {
			slog.Info("all inserts completed")
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return <-errCh
}

// openStore builds the configured backend. The returned func releases its
// resources.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case config.BackendGoogle:
		s, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:       cfg.Google.SpreadsheetID,
			ServiceAccountEmail: cfg.Google.ServiceAccountEmail,
			PrivateKey:          cfg.Google.PrivateKey,
			Endpoint:            cfg.Google.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using google sheets store", "spreadsheet_id", cfg.Google.SpreadsheetID)
		return s, func() {}, nil

	case config.BackendPostgres:
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse database URL: %w", err)
		}
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)
		poolConfig.MinConns = int32(cfg.Database.MinConns)
		poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}

		s := postgres.New(pool, cfg.Database.DocumentID)
		if cfg.Database.AutoMigrate {
			if err := s.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		slog.Info("using postgres store", "database", poolConfig.ConnConfig.Database)
		return s, pool.Close, nil

	default:
		var seed []memory.SheetSpec
		if cfg.Store.MemorySeedFile != "" {
			f, err := os.Open(cfg.Store.MemorySeedFile)
			if err != nil {
				return nil, nil, fmt.Errorf("open memory seed: %w", err)
			}
			seed, err = memory.LoadSeed(f)
			f.Close()
			if err != nil {
				return nil, nil, err
			}
		}
		slog.Warn("using in-memory store, data is lost on exit", "seed_sheets", len(seed))
		return memory.New("memory", seed...), func() {}, nil
	}
}
