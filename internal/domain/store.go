package domain

import (
	"context"
	"time"
)

// AuctionStore persists collateral auction records and the two running
// totals. All mutating methods take effect inside the ambient unit of work.
type AuctionStore interface {
	Insert(ctx context.Context, id AuctionID, item CollateralAuctionItem) error
	Get(ctx context.Context, id AuctionID) (CollateralAuctionItem, error)
	Update(ctx context.Context, id AuctionID, item CollateralAuctionItem) error
	Delete(ctx context.Context, id AuctionID) error

	// IDsAfter returns up to limit auction ids strictly greater than
	// after, in ascending order. done reports whether the end of the
	// store was reached.
	IDsAfter(ctx context.Context, after AuctionID, limit int) (ids []AuctionID, done bool, err error)

	// IncTotals adds amount to the per-currency collateral total and
	// target to the global target total. It fails with ErrInvalidAmount
	// on overflow.
	IncTotals(ctx context.Context, currency CurrencyID, amount, target uint64) error
	// DecTotals subtracts saturating at zero.
	DecTotals(ctx context.Context, currency CurrencyID, amount, target uint64) error

	TotalCollateral(ctx context.Context, currency CurrencyID) (uint64, error)
	TotalTarget(ctx context.Context) (uint64, error)
	// Totals returns a snapshot of every maintained counter.
	Totals(ctx context.Context) (collateral map[CurrencyID]uint64, target uint64, err error)

	// SumRecords recomputes both totals from a full record scan. Used to
	// verify the maintained counters against their definition.
	SumRecords(ctx context.Context) (collateral map[CurrencyID]uint64, target uint64, err error)
}

// BalanceStore keeps per-account, per-currency balances.
type BalanceStore interface {
	Balance(ctx context.Context, account AccountID, currency CurrencyID) (uint64, error)
	// Deposit credits account, creating the balance row if needed.
	Deposit(ctx context.Context, account AccountID, currency CurrencyID, amount uint64) error
	// Withdraw debits account, failing with ErrInsufficientFunds.
	Withdraw(ctx context.Context, account AccountID, currency CurrencyID, amount uint64) error
	// Transfer moves funds between accounts atomically.
	Transfer(ctx context.Context, from, to AccountID, currency CurrencyID, amount uint64) error
}

// UnitOfWork runs fn inside one all-or-nothing transaction. Every state
// mutation performed through ctx within fn commits together or not at all.
type UnitOfWork interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Lease is a held leased lock. The holder must extend it before the lease
// duration elapses or it lapses and becomes acquirable again.
type Lease interface {
	Extend(ctx context.Context) error
	// Release drops the lease early. A holder that has finished its batch
	// may instead simply stop extending and let the lease lapse.
	Release(ctx context.Context)
}

// SweepLock is a short-leased exclusive lock coordinating sweep invocations
// across nodes. Acquire fails with ErrLockHeld while another holder's lease
// is live.
type SweepLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// SweepCursor persists the cancellation sweep's resumption position.
type SweepCursor interface {
	// Get returns the last processed auction id. ok is false on first run
	// or after Clear.
	Get(ctx context.Context) (id AuctionID, ok bool, err error)
	Set(ctx context.Context, id AuctionID) error
	Clear(ctx context.Context) error
}

// EventSink publishes auction lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// RateLimiter bounds request rates per key over a sliding window.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted, counting it
	// when so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
