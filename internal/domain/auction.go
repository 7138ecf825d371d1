// Package domain defines the data model, typed errors, events, and capability
// interfaces of the collateral auction engine. Concrete implementations live
// in sibling packages and are selected at wiring time.
package domain

import "math/big"

// AuctionID identifies one auction managed by the auction engine.
type AuctionID uint64

// CurrencyID identifies a collateral or stable asset.
type CurrencyID string

// AccountID identifies a ledger account.
type AccountID string

// Height is the ledger height used for auction timing. All dynamic bidding
// parameters are functions of auction age measured in heights.
type Height uint64

// Bid is a bidder/price pair as reported by the auction engine.
type Bid struct {
	Bidder AccountID `json:"bidder"`
	Price  uint64    `json:"price"`
}

// AuctionInfo is the engine-side view of an auction.
type AuctionInfo struct {
	Bid   *Bid
	Start Height
	End   *Height
}

// CollateralAuctionItem is the record of one active collateral auction. It is
// created by a liquidation event, mutated in place by accepted bids, and
// destroyed exactly once by settlement or cancellation.
type CollateralAuctionItem struct {
	// RefundRecipient receives leftover collateral or bears confiscation.
	RefundRecipient AccountID `json:"refund_recipient"`
	// CurrencyID is the collateral asset being sold.
	CurrencyID CurrencyID `json:"currency_id"`
	// InitialAmount is the collateral amount at creation.
	InitialAmount uint64 `json:"initial_amount"`
	// Amount is the current collateral amount for sale. It only shrinks,
	// and only during the reverse stage.
	Amount uint64 `json:"amount"`
	// Target is the debt value this auction must recover. Zero means the
	// auction is always-forward and never enters the reverse stage.
	Target uint64 `json:"target"`
	// StartTime is the creation height.
	StartTime Height `json:"start_time"`
}

// AlwaysForward reports whether the auction can never enter the reverse
// stage.
func (a *CollateralAuctionItem) AlwaysForward() bool {
	return a.Target == 0
}

// InReverseStage reports whether the auction is in the reverse stage at the
// given bid price.
func (a *CollateralAuctionItem) InReverseStage(bidPrice uint64) bool {
	return !a.AlwaysForward() && bidPrice >= a.Target
}

// PaymentAmount returns the stable amount actually paid by the bidder at the
// given bid price: the full price for always-forward auctions, otherwise
// capped at the recovery target.
func (a *CollateralAuctionItem) PaymentAmount(bidPrice uint64) uint64 {
	if a.AlwaysForward() {
		return bidPrice
	}
	return min(a.Target, bidPrice)
}

// CollateralAmount returns the collateral amount retained after a price move
// from lastBidPrice to newBidPrice. In the reverse stage a price increase
// shrinks the amount proportionally to max(lastBidPrice, target)/newBidPrice;
// otherwise the amount is unchanged.
func (a *CollateralAuctionItem) CollateralAmount(lastBidPrice, newBidPrice uint64) uint64 {
	if !a.InReverseStage(newBidPrice) || newBidPrice <= lastBidPrice {
		return a.Amount
	}

	// amount * max(last, target) / new, truncated. Computed with big.Int
	// so the intermediate product cannot overflow.
	n := new(big.Int).SetUint64(a.Amount)
	n.Mul(n, new(big.Int).SetUint64(max(lastBidPrice, a.Target)))
	n.Div(n, new(big.Int).SetUint64(newBidPrice))
	if !n.IsUint64() {
		return a.Amount
	}
	return n.Uint64()
}
