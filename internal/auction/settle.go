package auction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stableloop/auctiond/internal/domain"
)

// OnAuctionEnded settles a collateral auction whose end height was reached.
// The record is destroyed exactly once here, and both the refund recipient's
// and the winner's liveness pins are released.
func (m *Manager) OnAuctionEnded(ctx context.Context, id domain.AuctionID, winner *domain.Bid) {
	err := m.deps.UOW.InTransaction(ctx, func(ctx context.Context) error {
		item, err := m.deps.Store.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			// Already cancelled or not a collateral auction.
			return nil
		}
		if err != nil {
			return err
		}

		m.settle(ctx, id, item, winner)

		// Release the record, the recipient's pin, and the totals in every
		// settlement branch.
		m.unpin(ctx, item.RefundRecipient)
		if winner != nil {
			m.unpin(ctx, winner.Bidder)
		}
		if err := m.deps.Store.DecTotals(ctx, item.CurrencyID, item.Amount, item.Target); err != nil {
			return err
		}
		return m.deps.Store.Delete(ctx, id)
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "auction settlement failed",
			slog.Uint64("auction_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}
}

// settle resolves the auction through exactly one of the three terminal
// branches: DEX liquidation, winner settlement, or abort. Once the primary
// effect has landed, refund problems are logged rather than rolled back;
// reversing an executed market trade is not possible, so the recovery policy
// is forward-only.
func (m *Manager) settle(ctx context.Context, id domain.AuctionID, item domain.CollateralAuctionItem, winner *domain.Bid) {
	var bidPrice uint64
	if winner != nil {
		bidPrice = winner.Price
	}

	// Try the DEX first: selling the collateral must at least match what
	// the bidder offers (always-forward), or recover the full target.
	var limit domain.SwapLimit
	if item.AlwaysForward() {
		limit = domain.ExactSupply(item.Amount, bidPrice)
	} else {
		limit = domain.ExactTarget(item.Amount, item.Target)
	}

	supplied, received, err := m.deps.Treasury.SwapCollateralToStable(ctx, item.CurrencyID, limit, false)
	if err == nil && supplied <= item.Amount {
		// DEX fill supersedes bidder settlement.
		if leftover := item.Amount - supplied; leftover > 0 {
			m.warnOnRefundFailure(ctx, id, "refund leftover collateral",
				m.deps.Treasury.WithdrawCollateral(ctx, item.RefundRecipient, item.CurrencyID, leftover))
		}
		if winner != nil {
			m.warnOnRefundFailure(ctx, id, "refund bidder payment",
				m.deps.Treasury.IssueDebit(ctx, winner.Bidder, item.PaymentAmount(bidPrice)))
		}
		// An over-delivering fill (the venue only supports exact-supply
		// semantics internally) leaves stable above the target; forward
		// the excess to the refund recipient.
		if item.InReverseStage(received) {
			m.warnOnRefundFailure(ctx, id, "forward excess stable",
				m.deps.Treasury.IssueDebit(ctx, item.RefundRecipient, received-item.Target))
		}

		m.publish(ctx, domain.Event{
			Type:      domain.EventDEXSettled,
			AuctionID: id,
			Currency:  item.CurrencyID,
			Amount:    item.Amount,
			Supplied:  supplied,
			Received:  received,
		})
		return
	}

	if winner != nil && bidPrice >= item.Target {
		// The highest bidder takes the remaining collateral.
		m.warnOnRefundFailure(ctx, id, "transfer collateral to winner",
			m.deps.Treasury.WithdrawCollateral(ctx, winner.Bidder, item.CurrencyID, item.Amount))

		m.publish(ctx, domain.Event{
			Type:      domain.EventDealt,
			AuctionID: id,
			Currency:  item.CurrencyID,
			Amount:    item.Amount,
			Winner:    winner.Bidder,
			Payment:   item.PaymentAmount(bidPrice),
		})
		return
	}

	// No bid reached the target and the DEX could not do better: abort.
	// The collateral stays with the treasury for reprocessing; only the
	// totals are released.
	if winner != nil {
		m.warnOnRefundFailure(ctx, id, "refund losing bidder",
			m.deps.Treasury.IssueDebit(ctx, winner.Bidder, item.PaymentAmount(bidPrice)))
	}

	m.publish(ctx, domain.Event{
		Type:      domain.EventAborted,
		AuctionID: id,
		Currency:  item.CurrencyID,
		Amount:    item.Amount,
		Target:    item.Target,
		Recipient: item.RefundRecipient,
	})
}

func (m *Manager) warnOnRefundFailure(ctx context.Context, id domain.AuctionID, step string, err error) {
	if err != nil {
		m.logger.WarnContext(ctx, "settlement fund release failed, leaving residual with treasury",
			slog.Uint64("auction_id", uint64(id)),
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
	}
}
