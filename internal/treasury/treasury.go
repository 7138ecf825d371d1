// Package treasury implements the protocol escrow ledger. The treasury
// account holds auction collateral while auctions run, collects recovered
// stable value as surplus, and issues stable funds back out on refunds.
package treasury

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stableloop/auctiond/internal/domain"
)

// Treasury is the canonical domain.Treasury over a balance store. Stable
// refunds are issued by crediting the payee directly; the matching debit is
// tracked against protocol debt rather than a funded account.
type Treasury struct {
	account  domain.AccountID
	stable   domain.CurrencyID
	balances domain.BalanceStore
	dex      domain.DEX
	logger   *slog.Logger
}

// New creates a Treasury escrowing funds under account.
func New(account domain.AccountID, stable domain.CurrencyID, balances domain.BalanceStore, dex domain.DEX, logger *slog.Logger) *Treasury {
	return &Treasury{
		account:  account,
		stable:   stable,
		balances: balances,
		dex:      dex,
		logger:   logger.With("component", "treasury"),
	}
}

// Account returns the treasury's escrow account id.
func (t *Treasury) Account() domain.AccountID {
	return t.account
}

// DepositSurplus moves stable funds from payer into the treasury surplus.
func (t *Treasury) DepositSurplus(ctx context.Context, payer domain.AccountID, amount uint64) error {
	if err := t.balances.Transfer(ctx, payer, t.account, t.stable, amount); err != nil {
		return fmt.Errorf("treasury: deposit surplus from %s: %w", payer, err)
	}
	return nil
}

// IssueDebit credits payee with stable funds. The issuance is uncovered; it
// increases outstanding protocol debt to be absorbed by later surplus.
func (t *Treasury) IssueDebit(ctx context.Context, payee domain.AccountID, amount uint64) error {
	if err := t.balances.Deposit(ctx, payee, t.stable, amount); err != nil {
		return fmt.Errorf("treasury: issue debit to %s: %w", payee, err)
	}
	return nil
}

// WithdrawCollateral releases escrowed collateral to recipient.
func (t *Treasury) WithdrawCollateral(ctx context.Context, recipient domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if err := t.balances.Transfer(ctx, t.account, recipient, currency, amount); err != nil {
		return fmt.Errorf("treasury: withdraw %d %s to %s: %w", amount, currency, recipient, err)
	}
	return nil
}

// SwapCollateralToStable liquidates escrowed collateral on the DEX within
// limit. With acceptPartial an unsatisfiable exact-target swap falls back to
// selling the whole supply bound for whatever it fetches.
func (t *Treasury) SwapCollateralToStable(ctx context.Context, currency domain.CurrencyID, limit domain.SwapLimit, acceptPartial bool) (uint64, uint64, error) {
	supplied, received, err := t.dex.Swap(ctx, t.account, currency, t.stable, limit)
	if err == nil {
		return supplied, received, nil
	}
	if !acceptPartial || limit.Kind != domain.SwapExactTarget {
		return 0, 0, fmt.Errorf("treasury: swap %s to stable: %w", currency, err)
	}

	t.logger.Debug("exact-target swap unsatisfiable, selling full supply",
		"currency", currency,
		"supply", limit.Supply,
		"target", limit.Target,
	)
	fallback := domain.ExactSupply(limit.Supply, 0)
	supplied, received, err = t.dex.Swap(ctx, t.account, currency, t.stable, fallback)
	if err != nil {
		return 0, 0, fmt.Errorf("treasury: partial swap %s to stable: %w", currency, err)
	}
	return supplied, received, nil
}

// Compile-time interface check.
var _ domain.Treasury = (*Treasury)(nil)
