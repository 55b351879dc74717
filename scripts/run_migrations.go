package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/safar/koloa-ledger/internal/config"
	"github.com/safar/koloa-ledger/internal/database"
	"github.com/safar/koloa-ledger/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		slog.Error("usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Format, cfg.Log.Level)

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ran, err := database.Migrate(ctx, db, "migrations", direction)
	for _, name := range ran {
		logger.Info("ran migration", slog.String("file", name))
	}
	if err != nil {
		logger.Error("migrate", slog.String("direction", direction), slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("migrations complete", slog.Int("count", len(ran)), slog.String("direction", direction))
}
