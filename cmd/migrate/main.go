package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"pos-ledger/internal/config"
	"pos-ledger/internal/db"
	"pos-ledger/internal/logging"
	"pos-ledger/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("all migrations processed")
}
