package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ghuser/agritrack/pkg/config"
	"github.com/ghuser/agritrack/pkg/database"
	"github.com/ghuser/agritrack/pkg/logger"
	"github.com/ghuser/agritrack/pkg/migrator"
	"github.com/ghuser/agritrack/services/batch/infrastructure/persistence/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.UsesSQL() {
		slog.Error("nothing to migrate for the in-memory store", "store", cfg.StoreDriver)
		os.Exit(1)
	}
	log := logger.New(cfg)
	ctx := context.Background()

	files, err := sqlstore.Migrations(cfg.StoreDriver)
	if err != nil {
		log.Error("failed to load migrations", "error", err)
		os.Exit(1)
	}

	pool, err := database.NewPool(ctx, cfg.StoreDriver, cfg.DSN(), log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close() //nolint:errcheck

	results, err := migrator.Up(ctx, pool.DB(), cfg.StoreDriver, files)
	if err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	for _, r := range results {
		log.Info("migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	log.Info("migrations complete", "store", cfg.StoreDriver, "applied", len(results))
}
