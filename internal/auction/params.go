// Package auction implements the collateral auction core: auction creation,
// bid validation and acceptance, end-of-auction settlement, and cancellation
// after an emergency halt. The heavy lifting around it (the time-boxed
// bidding engine, the treasury escrow, the DEX, the oracle) is reached
// through the capability interfaces in the domain package.
package auction

import (
	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

var two = decimal.NewFromInt(2)

// Params are the static bidding parameters of the auction core.
type Params struct {
	// MinimumIncrementSize is the base minimum bid increment rate.
	MinimumIncrementSize decimal.Decimal
	// AuctionTimeToClose is the base end-height extension granted on each
	// accepted bid.
	AuctionTimeToClose domain.Height
	// AuctionDurationSoftCap is the auction age past which convergence
	// accelerates: increments double and extensions halve.
	AuctionDurationSoftCap domain.Height
	// StableCurrencyID is the asset bids are denominated in.
	StableCurrencyID domain.CurrencyID
	// UnsignedPriority is the priority assigned to accepted cancel
	// transactions.
	UnsignedPriority uint64
	// CancelLongevity is the validity window, in heights, of an accepted
	// cancel transaction.
	CancelLongevity uint64
}

// minimumIncrementSize returns the increment rate for an auction of the
// given age, doubled once the soft cap is exceeded.
func (p Params) minimumIncrementSize(now, startTime domain.Height) decimal.Decimal {
	if now >= startTime+p.AuctionDurationSoftCap {
		return p.MinimumIncrementSize.Mul(two)
	}
	return p.MinimumIncrementSize
}

// auctionTimeToClose returns the extension window for an auction of the
// given age, halved once the soft cap is exceeded.
func (p Params) auctionTimeToClose(now, startTime domain.Height) domain.Height {
	if now >= startTime+p.AuctionDurationSoftCap {
		return p.AuctionTimeToClose / 2
	}
	return p.AuctionTimeToClose
}

// checkMinimumIncrement reports whether newPrice clears lastPrice by at
// least rate * max(targetPrice, lastPrice). Anchoring the required jump to
// the larger of the recovery target and the current price prevents
// negligible increments once the price has passed the target.
func checkMinimumIncrement(newPrice, lastPrice, targetPrice uint64, rate decimal.Decimal) bool {
	if newPrice < lastPrice {
		return false
	}
	required := rate.Mul(decimal.NewFromUint64(max(targetPrice, lastPrice))).Floor()
	return decimal.NewFromUint64(newPrice - lastPrice).GreaterThanOrEqual(required)
}
