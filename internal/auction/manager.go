package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stableloop/auctiond/internal/domain"
)

// Deps bundles the collaborators the auction core operates through.
type Deps struct {
	Store    domain.AuctionStore
	Balances domain.BalanceStore
	UOW      domain.UnitOfWork
	Engine   domain.AuctionEngine
	Treasury domain.Treasury
	DEX      domain.DEX
	Oracle   domain.Oracle
	Pins     domain.PinRegistry
	Halt     domain.HaltFlag
	Events   domain.EventSink
}

// Manager is the collateral auction core. It creates auction records,
// handles bids and settlement as the engine's AuctionHandler, and executes
// validated cancel transactions. Every mutation path runs inside one
// all-or-nothing unit of work and re-establishes the totals invariant.
type Manager struct {
	params Params
	deps   Deps
	logger *slog.Logger
}

// NewManager creates a Manager with the given parameters and collaborators.
func NewManager(params Params, deps Deps, logger *slog.Logger) *Manager {
	return &Manager{
		params: params,
		deps:   deps,
		logger: logger.With(slog.String("component", "auction")),
	}
}

// NewCollateralAuction opens a new collateral auction: it reserves the
// totals, registers the auction with the engine, persists the record, and
// pins the refund recipient. The caller (typically a liquidation event) has
// already escrowed amount of currency with the treasury.
func (m *Manager) NewCollateralAuction(
	ctx context.Context,
	refundRecipient domain.AccountID,
	currency domain.CurrencyID,
	amount, target uint64,
) (domain.AuctionID, error) {
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}

	var id domain.AuctionID
	err := m.deps.UOW.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.deps.Store.IncTotals(ctx, currency, amount, target); err != nil {
			return err
		}

		startTime := m.deps.Engine.Now()

		// Collateral auctions get no scheduled end height; they end via
		// the per-bid extension window or an emergency cancel.
		var err error
		id, err = m.deps.Engine.NewAuction(ctx, startTime, nil)
		if err != nil {
			return fmt.Errorf("auction: register with engine: %w", err)
		}

		item := domain.CollateralAuctionItem{
			RefundRecipient: refundRecipient,
			CurrencyID:      currency,
			InitialAmount:   amount,
			Amount:          amount,
			Target:          target,
			StartTime:       startTime,
		}
		if err := m.deps.Store.Insert(ctx, id, item); err != nil {
			return err
		}

		m.pin(ctx, refundRecipient)
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.publish(ctx, domain.Event{
		Type:      domain.EventAuctionCreated,
		AuctionID: id,
		Currency:  currency,
		Amount:    amount,
		Target:    target,
	})
	return id, nil
}

// GetAuction returns the record of one live auction.
func (m *Manager) GetAuction(ctx context.Context, id domain.AuctionID) (domain.CollateralAuctionItem, error) {
	item, err := m.deps.Store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CollateralAuctionItem{}, domain.ErrAuctionNotExists
	}
	return item, err
}

// TotalCollateralInAuction returns the maintained per-currency collateral
// total.
func (m *Manager) TotalCollateralInAuction(ctx context.Context, currency domain.CurrencyID) (uint64, error) {
	return m.deps.Store.TotalCollateral(ctx, currency)
}

// TotalTargetInAuction returns the maintained global target total.
func (m *Manager) TotalTargetInAuction(ctx context.Context) (uint64, error) {
	return m.deps.Store.TotalTarget(ctx)
}

// Totals returns a snapshot of every maintained counter.
func (m *Manager) Totals(ctx context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	return m.deps.Store.Totals(ctx)
}

// VerifyTotals recomputes both totals from a full record scan and compares
// them with the maintained counters. It returns an error describing the
// first divergence found.
func (m *Manager) VerifyTotals(ctx context.Context) error {
	scanned, scannedTarget, err := m.deps.Store.SumRecords(ctx)
	if err != nil {
		return err
	}
	kept, keptTarget, err := m.deps.Store.Totals(ctx)
	if err != nil {
		return err
	}

	if scannedTarget != keptTarget {
		return fmt.Errorf("auction: target total %d diverges from records sum %d", keptTarget, scannedTarget)
	}
	for currency, sum := range scanned {
		if kept[currency] != sum {
			return fmt.Errorf("auction: collateral total %d for %s diverges from records sum %d", kept[currency], currency, sum)
		}
	}
	for currency, total := range kept {
		if total != 0 && scanned[currency] == 0 {
			return fmt.Errorf("auction: collateral total %d for %s has no backing records", total, currency)
		}
	}
	return nil
}

// pin increments the account's liveness reference. A pin failure is logged
// and tolerated: the funds referenced by the auction keep the account alive
// regardless.
func (m *Manager) pin(ctx context.Context, account domain.AccountID) {
	if err := m.deps.Pins.Pin(ctx, account); err != nil {
		m.logger.WarnContext(ctx, "failed to pin account",
			slog.String("account", string(account)),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) unpin(ctx context.Context, account domain.AccountID) {
	if err := m.deps.Pins.Unpin(ctx, account); err != nil {
		m.logger.WarnContext(ctx, "failed to unpin account",
			slog.String("account", string(account)),
			slog.String("error", err.Error()),
		)
	}
}

// swapBidders pins the new bidder's liveness reference and unpins the
// previous bidder's, if any.
func (m *Manager) swapBidders(ctx context.Context, newBidder domain.AccountID, lastBidder *domain.AccountID) {
	m.pin(ctx, newBidder)
	if lastBidder != nil {
		m.unpin(ctx, *lastBidder)
	}
}

// publish emits a lifecycle event. Event delivery is best effort and never
// affects the state transition that produced it.
func (m *Manager) publish(ctx context.Context, ev domain.Event) {
	ev.ID = uuid.New().String()
	ev.Time = time.Now().UTC()
	if err := m.deps.Events.Publish(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "failed to publish event",
			slog.String("type", ev.Type),
			slog.Uint64("auction_id", uint64(ev.AuctionID)),
			slog.String("error", err.Error()),
		)
	}
}

var _ domain.AuctionHandler = (*Manager)(nil)
