package auction

import (
	"context"
	"errors"

	"github.com/stableloop/auctiond/internal/domain"
)

// OnNewBid handles a collateral auction bid attempt forwarded by the engine.
// On acceptance it returns the new auction end height. The whole transition
// is atomic: a failing fund movement aborts with no observable mutation.
func (m *Manager) OnNewBid(
	ctx context.Context,
	now domain.Height,
	id domain.AuctionID,
	newBid domain.Bid,
	lastBid *domain.Bid,
) (domain.Height, error) {
	if newBid.Price == 0 {
		return 0, domain.ErrInvalidBidPrice
	}

	var endsAt domain.Height
	err := m.deps.UOW.InTransaction(ctx, func(ctx context.Context) error {
		item, err := m.deps.Store.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrAuctionNotExists
		}
		if err != nil {
			return err
		}

		var lastBidPrice uint64
		if lastBid != nil {
			lastBidPrice = lastBid.Price
		}

		if !checkMinimumIncrement(
			newBid.Price,
			lastBidPrice,
			item.Target,
			m.params.minimumIncrementSize(now, item.StartTime),
		) {
			return domain.ErrInvalidBidPrice
		}

		payment := item.PaymentAmount(newBid.Price)

		// Refund the previous bidder first, directly from the new bidder:
		// the new bidder is only out of pocket for the marginal increase.
		if lastBid != nil {
			refund := item.PaymentAmount(lastBidPrice)
			if err := m.deps.Balances.Transfer(
				ctx, newBid.Bidder, lastBid.Bidder, m.params.StableCurrencyID, refund,
			); err != nil {
				return err
			}
			if payment < refund {
				// New bid payments never undercut the last bid payment
				// once the increment check passed.
				return domain.ErrInvalidBidPrice
			}
			payment -= refund
		}

		if err := m.deps.Treasury.DepositSurplus(ctx, newBid.Bidder, payment); err != nil {
			return err
		}

		// Entering the reverse stage shrinks the collateral on sale; the
		// difference goes back to the refund recipient.
		if item.InReverseStage(newBid.Price) {
			newAmount := item.CollateralAmount(lastBidPrice, newBid.Price)
			if refundCollateral := item.Amount - newAmount; refundCollateral > 0 {
				if err := m.deps.Treasury.WithdrawCollateral(
					ctx, item.RefundRecipient, item.CurrencyID, refundCollateral,
				); err != nil {
					return err
				}
				if err := m.deps.Store.DecTotals(ctx, item.CurrencyID, refundCollateral, 0); err != nil {
					return err
				}
				item.Amount = newAmount
				if err := m.deps.Store.Update(ctx, id, item); err != nil {
					return err
				}
			}
		}

		var lastBidder *domain.AccountID
		if lastBid != nil {
			lastBidder = &lastBid.Bidder
		}
		m.swapBidders(ctx, newBid.Bidder, lastBidder)

		endsAt = now + m.params.auctionTimeToClose(now, item.StartTime)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return endsAt, nil
}
