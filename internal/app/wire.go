package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/auction"
	"github.com/stableloop/auctiond/internal/cache/redis"
	"github.com/stableloop/auctiond/internal/config"
	"github.com/stableloop/auctiond/internal/dex"
	"github.com/stableloop/auctiond/internal/domain"
	"github.com/stableloop/auctiond/internal/engine"
	"github.com/stableloop/auctiond/internal/store/postgres"
	"github.com/stableloop/auctiond/internal/sweep"
	"github.com/stableloop/auctiond/internal/treasury"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	AuctionStore domain.AuctionStore
	Balances     domain.BalanceStore
	UOW          domain.UnitOfWork
	Pins         domain.PinRegistry
	Halt         domain.HaltFlag

	// Redis-backed pieces
	Lock        domain.SweepLock
	Cursor      domain.SweepCursor
	Oracle      *redis.PriceCache
	Events      *redis.EventBus
	RateLimiter domain.RateLimiter

	// Market infrastructure
	DEX      *dex.AMM
	Treasury *treasury.Treasury

	// Core
	Engine  *engine.Engine
	Manager *auction.Manager
	Sweeper *sweep.Sweeper
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.AuctionStore = postgres.NewAuctionStore(pgClient)
	deps.Balances = postgres.NewBalanceStore(pgClient)
	deps.Pins = postgres.NewRefStore(pgClient)
	deps.Halt = postgres.NewFlagStore(pgClient)
	deps.UOW = pgClient

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Lock = redis.NewLockManager(redisClient)
	deps.Cursor = redis.NewCursorStore(redisClient)
	deps.Oracle = redis.NewPriceCache(redisClient, cfg.Oracle.MaxAge.Duration)
	deps.Events = redis.NewEventBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- DEX and treasury ---
	stable := domain.CurrencyID(cfg.Auction.StableCurrency)

	fee, err := decimal.NewFromString(cfg.DEX.ExchangeFee)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: dex exchange fee: %w", err)
	}
	deps.DEX = dex.New(stable, domain.AccountID(cfg.DEX.Account), fee, deps.Balances, logger)
	for _, p := range cfg.DEX.Pools {
		if err := deps.DEX.SeedLiquidity(ctx, domain.CurrencyID(p.Currency), p.TokenReserve, p.StableReserve); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: dex pool %s: %w", p.Currency, err)
		}
	}

	deps.Treasury = treasury.New(domain.AccountID(cfg.Treasury.Account), stable, deps.Balances, deps.DEX, logger)

	// --- Auction core ---
	rate, err := decimal.NewFromString(cfg.Auction.MinimumIncrementSize)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: minimum increment size: %w", err)
	}

	deps.Engine = engine.New(logger)
	deps.Manager = auction.NewManager(
		auction.Params{
			MinimumIncrementSize:   rate,
			AuctionTimeToClose:     domain.Height(cfg.Auction.AuctionTimeToClose),
			AuctionDurationSoftCap: domain.Height(cfg.Auction.AuctionDurationSoftCap),
			StableCurrencyID:       stable,
			UnsignedPriority:       cfg.Auction.UnsignedPriority,
			CancelLongevity:        cfg.Auction.CancelLongevity,
		},
		auction.Deps{
			Store:    deps.AuctionStore,
			Balances: deps.Balances,
			UOW:      deps.UOW,
			Engine:   deps.Engine,
			Treasury: deps.Treasury,
			DEX:      deps.DEX,
			Oracle:   deps.Oracle,
			Pins:     deps.Pins,
			Halt:     deps.Halt,
			Events:   deps.Events,
		},
		logger,
	)
	deps.Engine.SetHandler(deps.Manager)

	// --- Cancellation sweep ---
	deps.Sweeper = sweep.New(
		sweep.Config{
			Interval:      cfg.Sweep.Interval.Duration,
			LockTTL:       cfg.Sweep.LockTTL.Duration,
			MaxIterations: cfg.Sweep.MaxIterations,
			Authorized:    cfg.Sweep.Authorized,
		},
		deps.Lock,
		deps.Cursor,
		deps.AuctionStore,
		deps.Engine,
		deps.Halt,
		sweep.NewLocalSubmitter(deps.Manager, logger),
		logger,
	)

	return deps, cleanup, nil
}
