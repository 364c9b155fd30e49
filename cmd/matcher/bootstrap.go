package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"position-matcher/internal/interfaces"
	"position-matcher/internal/logger"
	"position-matcher/internal/match"
	"position-matcher/internal/match/matchobs"
	"position-matcher/internal/runlog"
	"position-matcher/internal/store"
	"position-matcher/internal/trace"
)

// initializeSystem wires env, logging, tracing, config, and the store.
func initializeSystem(ctx context.Context, configPath string) (*store.Config, *store.Store, error) {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, nil, err
	}

	compressOldLogs(ctx, cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open store", err, "db_path", cfg.DBPath)
		return nil, nil, err
	}

	if cfg.Mode == "PREVIEW" {
		logger.Warn(ctx, "Default mode is PREVIEW - runs compute without writing")
	}

	return cfg, st, nil
}

// compressOldLogs gzips old run logs if retention is configured; the
// MATCHER_LOG_RETENTION_DAYS env var overrides the config value.
func compressOldLogs(ctx context.Context, cfg *store.Config) {
	retention := cfg.Log.RetentionDays
	if v := os.Getenv("MATCHER_LOG_RETENTION_DAYS"); v != "" {
		fmt.Sscanf(v, "%d", &retention)
	}
	if retention <= 0 {
		return
	}
	if err := runlog.CompressOlder(retention); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// initializeCoordinator builds the matching coordinator with observability.
func initializeCoordinator(cfg *store.Config, st *store.Store) interfaces.Coordinator {
	c := match.New(cfg, st, st)
	return matchobs.Wrap(c)
}
