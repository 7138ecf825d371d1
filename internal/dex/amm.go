// Package dex implements a constant-product automated market maker used to
// liquidate auction collateral into stable currency. Every pool pairs one
// token against the stable currency; swaps between two non-stable tokens
// route through the stable side in two hops.
package dex

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

type pool struct {
	// token and stable are the two reserve sides of the pair.
	token  uint64
	stable uint64
}

// PoolConfig seeds one liquidity pool at startup.
type PoolConfig struct {
	Currency      domain.CurrencyID
	TokenReserve  uint64
	StableReserve uint64
}

// AMM is an in-process automated market maker implementing domain.DEX.
// Reserves live in memory under a mutex; the matching funds are held by a
// dedicated exchange account in the balance store so that swaps move real
// ledger balances.
type AMM struct {
	mu     sync.RWMutex
	pools  map[domain.CurrencyID]*pool
	stable domain.CurrencyID
	fee    decimal.Decimal

	balances domain.BalanceStore
	account  domain.AccountID
	logger   *slog.Logger
}

// New creates an AMM holding its reserves under account. fee is the exchange
// fee rate taken from the output side of each hop, e.g. 0.005 for 0.5%.
func New(stable domain.CurrencyID, account domain.AccountID, fee decimal.Decimal, balances domain.BalanceStore, logger *slog.Logger) *AMM {
	return &AMM{
		pools:    make(map[domain.CurrencyID]*pool),
		stable:   stable,
		fee:      fee,
		balances: balances,
		account:  account,
		logger:   logger.With("component", "dex"),
	}
}

// AddLiquidity seeds or tops up the pool for currency and credits the
// exchange account with the matching funds. It is the operator's
// bootstrapping path, not a public LP facility.
func (a *AMM) AddLiquidity(ctx context.Context, from domain.AccountID, currency domain.CurrencyID, tokenAmount, stableAmount uint64) error {
	if currency == a.stable {
		return fmt.Errorf("dex: cannot pool %s against itself: %w", currency, domain.ErrInvalidAmount)
	}
	if err := a.balances.Transfer(ctx, from, a.account, currency, tokenAmount); err != nil {
		return fmt.Errorf("dex: add liquidity %s: %w", currency, err)
	}
	if err := a.balances.Transfer(ctx, from, a.account, a.stable, stableAmount); err != nil {
		return fmt.Errorf("dex: add liquidity %s: %w", a.stable, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pools[currency]
	if !ok {
		p = &pool{}
		a.pools[currency] = p
	}
	p.token += tokenAmount
	p.stable += stableAmount
	return nil
}

// SeedLiquidity bootstraps the pool for currency at startup. It tops up the
// exchange account to at least the configured reserves, depositing only the
// shortfall so repeated starts do not inflate balances.
func (a *AMM) SeedLiquidity(ctx context.Context, currency domain.CurrencyID, tokenAmount, stableAmount uint64) error {
	if currency == a.stable {
		return fmt.Errorf("dex: cannot pool %s against itself: %w", currency, domain.ErrInvalidAmount)
	}
	if err := a.topUp(ctx, currency, tokenAmount); err != nil {
		return err
	}
	if err := a.topUp(ctx, a.stable, stableAmount); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pools[currency] = &pool{token: tokenAmount, stable: stableAmount}
	return nil
}

func (a *AMM) topUp(ctx context.Context, currency domain.CurrencyID, want uint64) error {
	have, err := a.balances.Balance(ctx, a.account, currency)
	if err != nil {
		return fmt.Errorf("dex: seed %s: %w", currency, err)
	}
	if have >= want {
		return nil
	}
	if err := a.balances.Deposit(ctx, a.account, currency, want-have); err != nil {
		return fmt.Errorf("dex: seed %s: %w", currency, err)
	}
	return nil
}

// LiquidityPool returns the current reserves of the pool for currency.
func (a *AMM) LiquidityPool(currency domain.CurrencyID) (tokenReserve, stableReserve uint64, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, exists := a.pools[currency]
	if !exists {
		return 0, 0, false
	}
	return p.token, p.stable, true
}

// GetSwapAmount quotes a swap without executing it. ok is false when the
// limit cannot be satisfied with current reserves.
func (a *AMM) GetSwapAmount(ctx context.Context, supplyCurrency, targetCurrency domain.CurrencyID, limit domain.SwapLimit) (supplied, received uint64, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.quote(supplyCurrency, targetCurrency, limit)
}

// Swap executes a swap on behalf of who, moving funds through the exchange
// account and updating reserves. The limit's minimum (or maximum) bound is
// enforced; an unsatisfiable swap fails with ErrSwapUnavailable.
func (a *AMM) Swap(ctx context.Context, who domain.AccountID, supplyCurrency, targetCurrency domain.CurrencyID, limit domain.SwapLimit) (uint64, uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	supplied, received, ok := a.quote(supplyCurrency, targetCurrency, limit)
	if !ok {
		return 0, 0, domain.ErrSwapUnavailable
	}

	if err := a.balances.Transfer(ctx, who, a.account, supplyCurrency, supplied); err != nil {
		return 0, 0, fmt.Errorf("dex: collect supply: %w", err)
	}
	if err := a.balances.Transfer(ctx, a.account, who, targetCurrency, received); err != nil {
		// The supply transfer joins the ambient transaction, so a failure
		// here unwinds it on rollback.
		return 0, 0, fmt.Errorf("dex: pay target: %w", err)
	}

	a.applyToReserves(supplyCurrency, targetCurrency, supplied, received)

	a.logger.Debug("swap executed",
		"who", who,
		"supply_currency", supplyCurrency,
		"target_currency", targetCurrency,
		"supplied", supplied,
		"received", received,
	)
	return supplied, received, nil
}

// quote computes the swap amounts for limit. Callers hold at least the read
// lock.
func (a *AMM) quote(supplyCurrency, targetCurrency domain.CurrencyID, limit domain.SwapLimit) (supplied, received uint64, ok bool) {
	if supplyCurrency == targetCurrency {
		return 0, 0, false
	}

	switch limit.Kind {
	case domain.SwapExactSupply:
		received = a.targetAmount(supplyCurrency, targetCurrency, limit.Supply)
		if received == 0 || received < limit.Target {
			return 0, 0, false
		}
		return limit.Supply, received, true
	case domain.SwapExactTarget:
		supplied = a.supplyAmount(supplyCurrency, targetCurrency, limit.Target)
		if supplied == 0 || supplied > limit.Supply {
			return 0, 0, false
		}
		return supplied, limit.Target, true
	default:
		return 0, 0, false
	}
}

// targetAmount returns how much targetCurrency a given supply buys, routing
// through the stable pool when neither side is stable.
func (a *AMM) targetAmount(supplyCurrency, targetCurrency domain.CurrencyID, supply uint64) uint64 {
	switch {
	case targetCurrency == a.stable:
		p, ok := a.pools[supplyCurrency]
		if !ok {
			return 0
		}
		return a.swapTarget(p.token, p.stable, supply)
	case supplyCurrency == a.stable:
		p, ok := a.pools[targetCurrency]
		if !ok {
			return 0
		}
		return a.swapTarget(p.stable, p.token, supply)
	default:
		intermediate := a.targetAmount(supplyCurrency, a.stable, supply)
		if intermediate == 0 {
			return 0
		}
		return a.targetAmount(a.stable, targetCurrency, intermediate)
	}
}

// supplyAmount returns how much supplyCurrency is needed to obtain exactly
// target, routing through the stable pool when neither side is stable.
func (a *AMM) supplyAmount(supplyCurrency, targetCurrency domain.CurrencyID, target uint64) uint64 {
	switch {
	case targetCurrency == a.stable:
		p, ok := a.pools[supplyCurrency]
		if !ok {
			return 0
		}
		return a.swapSupply(p.token, p.stable, target)
	case supplyCurrency == a.stable:
		p, ok := a.pools[targetCurrency]
		if !ok {
			return 0
		}
		return a.swapSupply(p.stable, p.token, target)
	default:
		intermediate := a.supplyAmount(a.stable, targetCurrency, target)
		if intermediate == 0 {
			return 0
		}
		return a.supplyAmount(supplyCurrency, a.stable, intermediate)
	}
}

// swapTarget applies the constant-product invariant: the output is
// targetPool - supplyPool*targetPool/(supplyPool+supply), less the exchange
// fee, truncating.
func (a *AMM) swapTarget(supplyPool, targetPool, supply uint64) uint64 {
	if supplyPool == 0 || targetPool == 0 || supply == 0 {
		return 0
	}
	num := new(big.Int).Mul(bigU64(supplyPool), bigU64(targetPool))
	den := new(big.Int).Add(bigU64(supplyPool), bigU64(supply))
	newTargetPool := num.Div(num, den)
	if !newTargetPool.IsUint64() {
		return 0
	}
	raw := targetPool - newTargetPool.Uint64()
	if raw == 0 {
		return 0
	}
	fee := a.fee.Mul(decimal.NewFromUint64(raw)).Floor()
	if !fee.BigInt().IsUint64() {
		return 0
	}
	feeAmt := fee.BigInt().Uint64()
	if feeAmt >= raw {
		return 0
	}
	return raw - feeAmt
}

// swapSupply inverts swapTarget: the supply needed so that, after the fee,
// at least target comes out. The division rounds down and the inversion
// rounds the gross target up, so executing the returned supply can deliver
// slightly more than target.
func (a *AMM) swapSupply(supplyPool, targetPool, target uint64) uint64 {
	if supplyPool == 0 || targetPool == 0 || target == 0 {
		return 0
	}
	// Gross up the target by the fee, rounding up.
	gross := decimal.NewFromUint64(target).Div(decimal.NewFromInt(1).Sub(a.fee)).Ceil()
	if !gross.BigInt().IsUint64() {
		return 0
	}
	grossTarget := gross.BigInt().Uint64()
	if grossTarget >= targetPool {
		return 0
	}
	num := new(big.Int).Mul(bigU64(supplyPool), bigU64(targetPool))
	den := bigU64(targetPool - grossTarget)
	newSupplyPool := num.Div(num, den)
	// Round up so the buyer never underpays.
	newSupplyPool.Add(newSupplyPool, big.NewInt(1))
	if !newSupplyPool.IsUint64() {
		return 0
	}
	return newSupplyPool.Uint64() - supplyPool
}

// applyToReserves records an executed swap. Callers hold the write lock.
func (a *AMM) applyToReserves(supplyCurrency, targetCurrency domain.CurrencyID, supplied, received uint64) {
	switch {
	case targetCurrency == a.stable:
		p := a.pools[supplyCurrency]
		p.token += supplied
		p.stable -= min(p.stable, received)
	case supplyCurrency == a.stable:
		p := a.pools[targetCurrency]
		p.stable += supplied
		p.token -= min(p.token, received)
	default:
		// Two-hop: both legs touch the stable side. Recompute the
		// intermediate amount so the two pools stay consistent.
		intermediate := a.targetAmount(supplyCurrency, a.stable, supplied)
		a.applyToReserves(supplyCurrency, a.stable, supplied, intermediate)
		a.applyToReserves(a.stable, targetCurrency, intermediate, received)
	}
}

func bigU64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// Compile-time interface check.
var _ domain.DEX = (*AMM)(nil)
