package auction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

// TxValidity describes how an accepted cancel transaction should be queued.
type TxValidity struct {
	// Priority relative to other unsigned transactions.
	Priority uint64
	// Longevity is the number of heights the transaction stays valid.
	Longevity uint64
}

// ValidateCancel is the admission rule for a submitted cancel transaction.
// It accepts only while the protocol is halted, for an existing auction
// whose bid (if any) has not entered the reverse stage.
func (m *Manager) ValidateCancel(ctx context.Context, id domain.AuctionID) (TxValidity, error) {
	halted, err := m.deps.Halt.IsHalted(ctx)
	if err != nil {
		return TxValidity{}, err
	}
	if !halted {
		return TxValidity{}, domain.ErrMustAfterShutdown
	}

	item, err := m.deps.Store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return TxValidity{}, domain.ErrAuctionNotExists
	}
	if err != nil {
		return TxValidity{}, err
	}

	info, err := m.deps.Engine.AuctionInfo(ctx, id)
	if err != nil {
		return TxValidity{}, err
	}
	if info.Bid != nil && item.InReverseStage(info.Bid.Price) {
		return TxValidity{}, domain.ErrInReverseStage
	}

	return TxValidity{
		Priority:  m.params.UnsignedPriority,
		Longevity: m.params.CancelLongevity,
	}, nil
}

// Cancel executes a cancel transaction: it settles the auction at the oracle
// price, refunds the excess collateral and the bidder's payment, releases
// pins and totals, and destroys the record. Only reachable through the
// validated unsigned sweep path, never by ordinary signed callers.
func (m *Manager) Cancel(ctx context.Context, id domain.AuctionID) error {
	err := m.deps.UOW.InTransaction(ctx, func(ctx context.Context) error {
		halted, err := m.deps.Halt.IsHalted(ctx)
		if err != nil {
			return err
		}
		if !halted {
			return domain.ErrMustAfterShutdown
		}

		item, err := m.deps.Store.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrAuctionNotExists
		}
		if err != nil {
			return err
		}

		info, err := m.deps.Engine.AuctionInfo(ctx, id)
		if err != nil {
			return err
		}
		lastBid := info.Bid
		if lastBid != nil && item.InReverseStage(lastBid.Price) {
			return domain.ErrInReverseStage
		}

		// How much collateral offsets the target debt at the oracle's
		// settle price; the rest goes back to the refund recipient. A
		// working feed is required even when the whole amount is
		// confiscated, so a dead oracle halts every cancel.
		settlePrice, ok := m.deps.Oracle.GetRelativePrice(ctx, m.params.StableCurrencyID, item.CurrencyID)
		if !ok {
			return domain.ErrInvalidFeedPrice
		}
		confiscate := item.Amount
		if !item.AlwaysForward() {
			confiscate = min(mulPrice(settlePrice, item.Target), item.Amount)
		}

		if refund := item.Amount - confiscate; refund > 0 {
			if err := m.deps.Treasury.WithdrawCollateral(ctx, item.RefundRecipient, item.CurrencyID, refund); err != nil {
				return err
			}
		}

		if lastBid != nil {
			if err := m.deps.Treasury.IssueDebit(ctx, lastBid.Bidder, item.PaymentAmount(lastBid.Price)); err != nil {
				return err
			}
			m.unpin(ctx, lastBid.Bidder)
		}
		m.unpin(ctx, item.RefundRecipient)

		if err := m.deps.Store.DecTotals(ctx, item.CurrencyID, item.Amount, item.Target); err != nil {
			return err
		}
		return m.deps.Store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	// Engine state is not transactional; detach it only once the record
	// deletion has committed.
	if err := m.deps.Engine.RemoveAuction(ctx, id); err != nil {
		m.logger.WarnContext(ctx, "failed to remove cancelled auction from engine",
			slog.Uint64("auction_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}

	m.publish(ctx, domain.Event{
		Type:      domain.EventCancelled,
		AuctionID: id,
	})
	return nil
}

// mulPrice multiplies an amount by a price, truncating, saturating at the
// uint64 range.
func mulPrice(price decimal.Decimal, amount uint64) uint64 {
	v := price.Mul(decimal.NewFromUint64(amount)).Floor()
	if v.Sign() < 0 {
		return 0
	}
	n := v.BigInt()
	if !n.IsUint64() {
		return ^uint64(0)
	}
	return n.Uint64()
}
