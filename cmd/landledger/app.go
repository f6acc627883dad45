package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/artifacts"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/audit"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/config"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/database"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/disputes"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/observability"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/parcels"
)

// app wires every component against one database.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	chain    *ledger.Chain
	obs      *observability.Provider
	audit    *audit.Service
	disputes *disputes.Service
	parcels  *parcels.Service
	store    artifacts.Store
	logger   *slog.Logger
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

func artifactConfig(cfg *config.Config) artifacts.Config {
	ac := artifacts.ConfigFromEnv()
	ac.Type = artifacts.StoreType(cfg.ArtifactStorageType)
	ac.DataDir = cfg.DataDir
	return ac
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	obsCfg.OTLPEndpoint = cfg.OTelEndpoint
	obsCfg.Insecure = cfg.OTelInsecure
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	db, dialect, err := database.Open(ctx, cfg)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	a := &app{cfg: cfg, db: db, obs: obs, logger: logger}
	if cfg.LiteMode() {
		logger.Info("lite mode", "data_dir", cfg.DataDir)
	}

	a.chain = ledger.NewChain(db, dialect, ledger.WithLogger(logger.With("component", "ledger")))
	if err := a.chain.Init(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	a.audit = audit.NewService(a.chain, audit.WithObservability(obs), audit.WithLogger(logger.With("component", "audit")))

	if a.store, err = artifacts.NewStore(ctx, artifactConfig(cfg)); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	a.disputes = disputes.NewService(a.audit, a.store)
	a.parcels = parcels.NewService(a.audit)
	if err := errors.Join(a.disputes.Init(ctx), a.parcels.Init(ctx)); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.obs.Shutdown(ctx); err != nil {
		a.logger.Warn("observability shutdown", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close", "error", err)
	}
}

// withApp loads configuration, builds the app, and runs fn against it.
func withApp(stderr io.Writer, fn func(ctx context.Context, a *app) int) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger := newLogger(cfg, stderr)
	ctx := context.Background()
	a, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close(ctx)
	return fn(ctx, a)
}
