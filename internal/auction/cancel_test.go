package auction

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

func TestValidateCancel(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture) domain.AuctionID
		wantErr error
	}{
		{
			name: "not halted",
			setup: func(f *fixture) domain.AuctionID {
				return f.open(t, 100, 200)
			},
			wantErr: domain.ErrMustAfterShutdown,
		},
		{
			name: "unknown auction",
			setup: func(f *fixture) domain.AuctionID {
				f.halt.halted = true
				return 42
			},
			wantErr: domain.ErrAuctionNotExists,
		},
		{
			name: "bid in reverse stage",
			setup: func(f *fixture) domain.AuctionID {
				id := f.open(t, 100, 200)
				f.halt.halted = true
				f.engine.infos[id] = domain.AuctionInfo{Bid: &domain.Bid{Bidder: alice, Price: 250}, Start: 10}
				return id
			},
			wantErr: domain.ErrInReverseStage,
		},
		{
			name: "forward-stage bid accepted",
			setup: func(f *fixture) domain.AuctionID {
				id := f.open(t, 100, 200)
				f.halt.halted = true
				f.engine.infos[id] = domain.AuctionInfo{Bid: &domain.Bid{Bidder: alice, Price: 150}, Start: 10}
				return id
			},
		},
		{
			name: "no bids accepted",
			setup: func(f *fixture) domain.AuctionID {
				id := f.open(t, 100, 200)
				f.halt.halted = true
				return id
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := tt.setup(f)

			validity, err := f.manager.ValidateCancel(context.Background(), id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateCancel: %v", err)
			}
			if validity.Priority != f.manager.params.UnsignedPriority {
				t.Errorf("priority = %d, want %d", validity.Priority, f.manager.params.UnsignedPriority)
			}
			if validity.Longevity != f.manager.params.CancelLongevity {
				t.Errorf("longevity = %d, want %d", validity.Longevity, f.manager.params.CancelLongevity)
			}
		})
	}
}

func TestCancelRequiresHalt(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, 100, 200)

	err := f.manager.Cancel(context.Background(), id)
	if !errors.Is(err, domain.ErrMustAfterShutdown) {
		t.Errorf("err = %v, want ErrMustAfterShutdown", err)
	}
}

func TestCancelRejectsReverseStage(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, 100, 200)
	f.halt.halted = true
	f.engine.infos[id] = domain.AuctionInfo{Bid: &domain.Bid{Bidder: alice, Price: 200}, Start: 10}

	err := f.manager.Cancel(context.Background(), id)
	if !errors.Is(err, domain.ErrInReverseStage) {
		t.Errorf("err = %v, want ErrInReverseStage", err)
	}
}

func TestCancelConfiscatesAtOraclePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t, 100, 200)
	f.halt.halted = true
	f.engine.infos[id] = domain.AuctionInfo{Bid: &domain.Bid{Bidder: alice, Price: 150}, Start: 10}
	// One stable unit buys 0.3 collateral units: covering the 200 target
	// confiscates 60, the remaining 40 goes back to the recipient.
	f.oracle.price = decimal.RequireFromString("0.3")
	f.oracle.ok = true

	if err := f.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(f.treasury.releases) != 1 {
		t.Fatalf("releases = %+v, want 1", f.treasury.releases)
	}
	if rel := f.treasury.releases[0]; rel.recipient != recipientAccount || rel.amount != 40 {
		t.Errorf("release = %+v, want 40 to %s", rel, recipientAccount)
	}
	if len(f.treasury.debits) != 1 {
		t.Fatalf("debits = %+v, want 1", f.treasury.debits)
	}
	if d := f.treasury.debits[0]; d.payee != alice || d.amount != 150 {
		t.Errorf("bidder refund = %+v, want 150 to alice", d)
	}

	assertCancelled(t, f, id)
}

func TestCancelConfiscationCappedAtAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t, 100, 200)
	f.halt.halted = true
	// A collapsed collateral price would confiscate 2*200 = 400, far more
	// than the auction holds; everything is confiscated, nothing refunded.
	f.oracle.price = decimal.NewFromInt(2)
	f.oracle.ok = true

	if err := f.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(f.treasury.releases) != 0 {
		t.Errorf("releases = %+v, want none", f.treasury.releases)
	}
	assertCancelled(t, f, id)
}

func TestCancelAlwaysForwardConfiscatesAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t, 100, 0)
	f.halt.halted = true
	// The price does not matter without a target, but the feed must exist.
	f.oracle.price = decimal.NewFromInt(1)
	f.oracle.ok = true

	if err := f.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(f.treasury.releases) != 0 {
		t.Errorf("releases = %+v, want none", f.treasury.releases)
	}
	assertCancelled(t, f, id)
}

func TestCancelMissingOracleFeed(t *testing.T) {
	tests := []struct {
		name   string
		target uint64
	}{
		{name: "with target", target: 200},
		{name: "always forward", target: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			id := f.open(t, 100, tt.target)
			f.halt.halted = true
			f.oracle.ok = false

			err := f.manager.Cancel(ctx, id)
			if !errors.Is(err, domain.ErrInvalidFeedPrice) {
				t.Fatalf("err = %v, want ErrInvalidFeedPrice", err)
			}

			// Nothing moved, the record survives.
			if _, err := f.store.Get(ctx, id); err != nil {
				t.Errorf("record should survive a failed cancel: %v", err)
			}
			if got := f.store.collateral[collateralCurrency]; got != 100 {
				t.Errorf("collateral total = %d, want 100", got)
			}
		})
	}
}

func TestCancelDetachesEngineAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t, 100, 200)
	f.halt.halted = true
	f.oracle.price = decimal.RequireFromString("0.3")
	f.oracle.ok = true
	f.engine.removeErr = errors.New("engine unreachable")

	// A failed engine detach must not roll the committed cancel back.
	if err := f.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := f.store.Get(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("record still present after cancel: %v", err)
	}
	if got := f.events.lastType(); got != domain.EventCancelled {
		t.Errorf("last event = %q, want %q", got, domain.EventCancelled)
	}
}

func TestCancelBeforeAnyBidRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t, 100, 200)
	f.halt.halted = true
	// At this settle price the target debt rounds to zero collateral, so
	// the whole amount goes back and state returns to its pre-creation
	// shape.
	f.oracle.price = decimal.RequireFromString("0.001")
	f.oracle.ok = true

	if err := f.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(f.treasury.releases) != 1 {
		t.Fatalf("releases = %+v, want 1", f.treasury.releases)
	}
	if rel := f.treasury.releases[0]; rel.recipient != recipientAccount || rel.amount != 100 {
		t.Errorf("release = %+v, want the full 100 back to %s", rel, recipientAccount)
	}
	if f.pins.counts[recipientAccount] != 0 {
		t.Errorf("recipient pin count = %d, want 0", f.pins.counts[recipientAccount])
	}
	assertCancelled(t, f, id)
}

func TestCancelWithoutBids(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t, 100, 200)
	f.halt.halted = true
	f.oracle.price = decimal.RequireFromString("0.3")
	f.oracle.ok = true

	if err := f.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(f.treasury.debits) != 0 {
		t.Errorf("debits = %+v, want none without a bidder", f.treasury.debits)
	}
	assertCancelled(t, f, id)
}

func assertCancelled(t *testing.T, f *fixture, id domain.AuctionID) {
	t.Helper()
	ctx := context.Background()

	if _, err := f.store.Get(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("record still present after cancel: %v", err)
	}
	if got := f.store.collateral[collateralCurrency]; got != 0 {
		t.Errorf("collateral total = %d, want 0", got)
	}
	if f.store.target != 0 {
		t.Errorf("target total = %d, want 0", f.store.target)
	}
	if len(f.engine.removed) != 1 || f.engine.removed[0] != id {
		t.Errorf("engine removals = %v, want [%d]", f.engine.removed, id)
	}
	if got := f.events.lastType(); got != domain.EventCancelled {
		t.Errorf("last event = %q, want %q", got, domain.EventCancelled)
	}
}
