// Package config defines the top-level configuration for the auction daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIOND_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Auction  AuctionConfig  `toml:"auction"`
	Engine   EngineConfig   `toml:"engine"`
	Sweep    SweepConfig    `toml:"sweep"`
	Oracle   OracleConfig   `toml:"oracle"`
	DEX      DEXConfig      `toml:"dex"`
	Treasury TreasuryConfig `toml:"treasury"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// AuctionConfig holds the collateral auction parameters.
type AuctionConfig struct {
	// MinimumIncrementSize is the base minimum bid increment rate, e.g.
	// "0.02" for 2%. It doubles past the duration soft cap.
	MinimumIncrementSize string `toml:"minimum_increment_size"`
	// AuctionTimeToClose is the bid extension window in heights. It halves
	// past the duration soft cap.
	AuctionTimeToClose uint64 `toml:"auction_time_to_close"`
	// AuctionDurationSoftCap is the auction age in heights past which the
	// increment doubles and the extension window halves.
	AuctionDurationSoftCap uint64 `toml:"auction_duration_soft_cap"`
	// StableCurrency is the currency auctions raise, and the quote side of
	// every DEX pool.
	StableCurrency string `toml:"stable_currency"`
	// UnsignedPriority is the priority attached to sweep-submitted cancel
	// transactions.
	UnsignedPriority uint64 `toml:"unsigned_priority"`
	// CancelLongevity is how many heights a validated cancel stays valid.
	CancelLongevity uint64 `toml:"cancel_longevity"`
}

// EngineConfig holds the bidding engine parameters.
type EngineConfig struct {
	// TickInterval is the wall-clock duration of one height.
	TickInterval duration `toml:"tick_interval"`
}

// SweepConfig holds the cancellation sweep parameters.
type SweepConfig struct {
	// Authorized gates sweep participation; unauthorized nodes never
	// submit cancels.
	Authorized bool `toml:"authorized"`
	// Interval is how often the sweep wakes up.
	Interval duration `toml:"interval"`
	// LockTTL is the sweep lease duration.
	LockTTL duration `toml:"lock_ttl"`
	// MaxIterations bounds how many auctions one invocation visits.
	MaxIterations int `toml:"max_iterations"`
}

// OracleConfig holds price feed parameters.
type OracleConfig struct {
	// MaxAge bounds feed staleness; zero disables the check.
	MaxAge duration `toml:"max_age"`
}

// DEXConfig holds the automated market maker parameters.
type DEXConfig struct {
	// Account is the exchange's ledger account holding pool reserves.
	Account string `toml:"account"`
	// ExchangeFee is the fee rate taken from each swap's output, e.g.
	// "0.005" for 0.5%.
	ExchangeFee string `toml:"exchange_fee"`
	// Pools seeds liquidity pools at startup. Each pool pairs one token
	// against the stable currency.
	Pools []DEXPoolConfig `toml:"pools"`
}

// DEXPoolConfig seeds one liquidity pool.
type DEXPoolConfig struct {
	Currency      string `toml:"currency"`
	TokenReserve  uint64 `toml:"token_reserve"`
	StableReserve uint64 `toml:"stable_reserve"`
}

// TreasuryConfig holds the protocol escrow parameters.
type TreasuryConfig struct {
	// Account is the treasury's ledger account.
	Account string `toml:"account"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "auctiond",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Auction: AuctionConfig{
			MinimumIncrementSize:   "0.02",
			AuctionTimeToClose:     100,
			AuctionDurationSoftCap: 2000,
			StableCurrency:         "AUSD",
			UnsignedPriority:       1 << 20,
			CancelLongevity:        64,
		},
		Engine: EngineConfig{
			TickInterval: duration{time.Second},
		},
		Sweep: SweepConfig{
			Authorized:    true,
			Interval:      duration{30 * time.Second},
			LockTTL:       duration{15 * time.Second},
			MaxIterations: 256,
		},
		Oracle: OracleConfig{
			MaxAge: duration{5 * time.Minute},
		},
		DEX: DEXConfig{
			Account:     "dex",
			ExchangeFee: "0.005",
			Pools:       []DEXPoolConfig{},
		},
		Treasury: TreasuryConfig{
			Account: "treasury",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"server": true,
	"sweep":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, server, sweep)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Auction
	if rate, err := decimal.NewFromString(c.Auction.MinimumIncrementSize); err != nil {
		errs = append(errs, fmt.Sprintf("auction: minimum_increment_size %q is not a decimal", c.Auction.MinimumIncrementSize))
	} else if rate.Sign() < 0 || rate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "auction: minimum_increment_size must be within [0, 1]")
	}
	if c.Auction.AuctionTimeToClose == 0 {
		errs = append(errs, "auction: auction_time_to_close must be > 0")
	}
	if c.Auction.StableCurrency == "" {
		errs = append(errs, "auction: stable_currency must not be empty")
	}

	// Engine
	if c.Engine.TickInterval.Duration <= 0 {
		errs = append(errs, "engine: tick_interval must be > 0")
	}

	// Sweep
	if c.Sweep.Interval.Duration <= 0 {
		errs = append(errs, "sweep: interval must be > 0")
	}
	if c.Sweep.LockTTL.Duration <= 0 {
		errs = append(errs, "sweep: lock_ttl must be > 0")
	}
	if c.Sweep.MaxIterations < 1 {
		errs = append(errs, "sweep: max_iterations must be >= 1")
	}

	// DEX
	if c.DEX.Account == "" {
		errs = append(errs, "dex: account must not be empty")
	}
	if fee, err := decimal.NewFromString(c.DEX.ExchangeFee); err != nil {
		errs = append(errs, fmt.Sprintf("dex: exchange_fee %q is not a decimal", c.DEX.ExchangeFee))
	} else if fee.Sign() < 0 || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, "dex: exchange_fee must be within [0, 1)")
	}
	for i, p := range c.DEX.Pools {
		if p.Currency == "" {
			errs = append(errs, fmt.Sprintf("dex: pools[%d]: currency must not be empty", i))
		}
		if p.Currency == c.Auction.StableCurrency {
			errs = append(errs, fmt.Sprintf("dex: pools[%d]: cannot pool the stable currency against itself", i))
		}
		if p.TokenReserve == 0 || p.StableReserve == 0 {
			errs = append(errs, fmt.Sprintf("dex: pools[%d]: both reserves must be > 0", i))
		}
	}

	// Treasury
	if c.Treasury.Account == "" {
		errs = append(errs, "treasury: account must not be empty")
	}
	if c.Treasury.Account == c.DEX.Account {
		errs = append(errs, "treasury: account must differ from dex account")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
