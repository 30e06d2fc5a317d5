package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"pos-ledger/internal/adapters/cli"
	"pos-ledger/internal/bootstrap"
	"pos-ledger/internal/config"
	"pos-ledger/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// Reports go to stdout; keep the logger quiet unless asked.
	level := cfg.App.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger, err := logging.New(level)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	svc, cleanup, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer cleanup()

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		cleanup()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
