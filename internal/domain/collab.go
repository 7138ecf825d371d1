package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AuctionHandler receives callbacks from the auction engine. OnNewBid is
// invoked for every bid attempt; OnAuctionEnded once when the auction's end
// height is reached.
type AuctionHandler interface {
	// OnNewBid validates and applies a bid. On acceptance it returns the
	// new auction end height.
	OnNewBid(ctx context.Context, now Height, id AuctionID, newBid Bid, lastBid *Bid) (Height, error)
	// OnAuctionEnded settles the auction with the final winning bid, if
	// any. Settlement never fails; fund-release problems are logged and
	// left for reconciliation.
	OnAuctionEnded(ctx context.Context, id AuctionID, winner *Bid)
}

// AuctionEngine is the generic time-boxed bidding primitive. It owns auction
// ids, the current highest bid, and end-height scheduling, and calls back
// into an AuctionHandler.
type AuctionEngine interface {
	NewAuction(ctx context.Context, start Height, end *Height) (AuctionID, error)
	AuctionInfo(ctx context.Context, id AuctionID) (AuctionInfo, error)
	RemoveAuction(ctx context.Context, id AuctionID) error
	// Now returns the engine's current height.
	Now() Height
}

// SwapKind selects how a SwapLimit is interpreted.
type SwapKind int

const (
	// SwapExactSupply spends exactly Supply and requires at least Target.
	SwapExactSupply SwapKind = iota
	// SwapExactTarget acquires exactly Target spending at most Supply.
	SwapExactTarget
)

// SwapLimit bounds a swap request.
type SwapLimit struct {
	Kind   SwapKind
	Supply uint64
	Target uint64
}

// ExactSupply builds a SwapLimit that spends exactly supply and requires at
// least minTarget in return.
func ExactSupply(supply, minTarget uint64) SwapLimit {
	return SwapLimit{Kind: SwapExactSupply, Supply: supply, Target: minTarget}
}

// ExactTarget builds a SwapLimit that acquires exactly target, spending at
// most maxSupply.
func ExactTarget(maxSupply, target uint64) SwapLimit {
	return SwapLimit{Kind: SwapExactTarget, Supply: maxSupply, Target: target}
}

// Treasury is the escrow ledger holding auction collateral and receiving
// recovered stable value.
type Treasury interface {
	// DepositSurplus moves stable funds from payer into the treasury
	// surplus.
	DepositSurplus(ctx context.Context, payer AccountID, amount uint64) error
	// IssueDebit credits payee with stable funds from the treasury.
	IssueDebit(ctx context.Context, payee AccountID, amount uint64) error
	// WithdrawCollateral releases escrowed collateral to recipient.
	WithdrawCollateral(ctx context.Context, recipient AccountID, currency CurrencyID, amount uint64) error
	// SwapCollateralToStable liquidates escrowed collateral on the DEX
	// within the given limit, returning the collateral supplied and the
	// stable amount received.
	SwapCollateralToStable(ctx context.Context, currency CurrencyID, limit SwapLimit, acceptPartial bool) (supplied, received uint64, err error)
}

// DEX quotes and executes swaps between two assets.
type DEX interface {
	// GetSwapAmount quotes a swap without executing it. ok is false when
	// the limit cannot be satisfied.
	GetSwapAmount(ctx context.Context, supplyCurrency, targetCurrency CurrencyID, limit SwapLimit) (supplied, received uint64, ok bool)
	// Swap executes a swap on behalf of who.
	Swap(ctx context.Context, who AccountID, supplyCurrency, targetCurrency CurrencyID, limit SwapLimit) (supplied, received uint64, err error)
}

// Oracle provides relative prices between assets.
type Oracle interface {
	// GetRelativePrice returns how many units of quote one unit of base is
	// worth. ok is false when either feed is missing or stale.
	GetRelativePrice(ctx context.Context, base, quote CurrencyID) (decimal.Decimal, bool)
}

// PinRegistry reference-counts account liveness. An account may not be
// reaped while pinned by an open auction.
type PinRegistry interface {
	Pin(ctx context.Context, account AccountID) error
	Unpin(ctx context.Context, account AccountID) error
}

// HaltFlag exposes the protocol's emergency shutdown state.
type HaltFlag interface {
	IsHalted(ctx context.Context) (bool, error)
	SetHalted(ctx context.Context, halted bool) error
}

// CancelSubmitter submits a cancel transaction for one auction. Submissions
// for already-cancelled auctions are harmless no-ops rejected by validation.
type CancelSubmitter interface {
	SubmitCancel(ctx context.Context, id AuctionID) error
}
