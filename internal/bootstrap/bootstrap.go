// Package bootstrap assembles the ApplicationService from configuration.
// cmd/server and cmd/app share it so both run against the same store.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pos-ledger/internal/app"
	"pos-ledger/internal/config"
	"pos-ledger/internal/core"
	"pos-ledger/internal/db"
	"pos-ledger/internal/store/memory"
	"pos-ledger/internal/store/postgres"
	"pos-ledger/migrations"
)

// Build loads the loyalty program, opens the configured store and returns the
// service plus a cleanup func that releases the store.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (app.ApplicationService, func(), error) {
	program, err := config.LoadLoyaltyProgram(cfg.Ledger.LoyaltyFile)
	if err != nil {
		return nil, nil, err
	}
	settings, err := cfg.Settings(program)
	if err != nil {
		return nil, nil, err
	}
	log.Info("loyalty program loaded",
		zap.String("file", cfg.Ledger.LoyaltyFile),
		zap.Int("tiers", len(settings.Tiers)),
		zap.Int("rewards", len(program.Rewards)))

	repos := app.Repositories{Rewards: memory.NewRewardCatalog(program.Rewards)}
	cleanup := func() {}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := migrations.Apply(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		st := postgres.New(pool)
		repos.Sales, repos.Vouchers, repos.Layaways = st.Sales(), st.Vouchers(), st.Layaways()
		repos.Loyalty, repos.Refunds = st.Loyalty(), st.Refunds()
		cleanup = pool.Close
	default:
		st := memory.New()
		repos.Sales, repos.Vouchers, repos.Layaways = st.Sales(), st.Vouchers(), st.Layaways()
		repos.Loyalty, repos.Refunds = st.Loyalty(), st.Refunds()
		log.Warn("using in-memory store; state is lost on exit")
	}

	return app.NewAppService(repos, core.SystemClock{}, settings, log), cleanup, nil
}
