// Package engine provides the canonical time-boxed bidding primitive. It
// assigns auction ids, tracks the current highest bid and scheduled end
// height per auction, and drives the registered AuctionHandler on new bids
// and at end of auction.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stableloop/auctiond/internal/domain"
)

type auctionEntry struct {
	start domain.Height
	end   *domain.Height
	bid   *domain.Bid
}

// Engine is an in-memory auction scheduler. State transitions (bids, ticks)
// are serialized under applyMu, mirroring the single-threaded deterministic
// application model the auction core is written against.
type Engine struct {
	applyMu sync.Mutex // serializes bid handling and end-of-auction settlement
	mu      sync.Mutex // guards the maps and the height counter

	height   domain.Height
	nextID   domain.AuctionID
	auctions map[domain.AuctionID]*auctionEntry
	handler  domain.AuctionHandler
	logger   *slog.Logger
}

// New creates an Engine starting at height zero with no registered handler.
// Auction ids start at one so that zero can serve as an iteration lower
// bound everywhere.
func New(logger *slog.Logger) *Engine {
	return &Engine{
		nextID:   1,
		auctions: make(map[domain.AuctionID]*auctionEntry),
		logger:   logger.With(slog.String("component", "engine")),
	}
}

// SetHandler registers the auction handler. Must be called before the first
// bid or tick; the handler and the engine reference each other, so wiring
// happens in two steps.
func (e *Engine) SetHandler(h domain.AuctionHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// Now returns the current height.
func (e *Engine) Now() domain.Height {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.height
}

// NewAuction registers a new auction and returns its id. A nil end leaves
// the auction open until a bid schedules one.
func (e *Engine) NewAuction(ctx context.Context, start domain.Height, end *domain.Height) (domain.AuctionID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++

	entry := &auctionEntry{start: start}
	if end != nil {
		v := *end
		entry.end = &v
	}
	e.auctions[id] = entry
	return id, nil
}

// AuctionInfo returns the engine-side view of one auction.
func (e *Engine) AuctionInfo(ctx context.Context, id domain.AuctionID) (domain.AuctionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.auctions[id]
	if !ok {
		return domain.AuctionInfo{}, domain.ErrAuctionNotExists
	}

	info := domain.AuctionInfo{Start: entry.start}
	if entry.bid != nil {
		b := *entry.bid
		info.Bid = &b
	}
	if entry.end != nil {
		h := *entry.end
		info.End = &h
	}
	return info, nil
}

// RemoveAuction drops an auction without invoking the end handler. Used by
// the cancellation path, which performs its own settlement.
func (e *Engine) RemoveAuction(ctx context.Context, id domain.AuctionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.auctions[id]; !ok {
		return domain.ErrAuctionNotExists
	}
	delete(e.auctions, id)
	return nil
}

// Bid submits a bid on behalf of bidder. The handler validates and applies
// it; on acceptance the engine records the new highest bid and reschedules
// the auction end to the height the handler returned.
func (e *Engine) Bid(ctx context.Context, id domain.AuctionID, bidder domain.AccountID, price uint64) error {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	e.mu.Lock()
	entry, ok := e.auctions[id]
	if !ok {
		e.mu.Unlock()
		return domain.ErrAuctionNotExists
	}
	now := e.height
	var lastBid *domain.Bid
	if entry.bid != nil {
		b := *entry.bid
		lastBid = &b
	}
	handler := e.handler
	e.mu.Unlock()

	endsAt, err := handler.OnNewBid(ctx, now, id, domain.Bid{Bidder: bidder, Price: price}, lastBid)
	if err != nil {
		return err
	}

	e.mu.Lock()
	// The cancellation path may have removed the auction while the handler
	// ran; in that case the accepted bid has already been settled by it.
	if entry, ok := e.auctions[id]; ok {
		entry.bid = &domain.Bid{Bidder: bidder, Price: price}
		entry.end = &endsAt
	}
	e.mu.Unlock()
	return nil
}

// Tick advances the height by one and settles every auction whose end height
// has been reached.
func (e *Engine) Tick(ctx context.Context) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	e.mu.Lock()
	e.height++
	now := e.height

	var expired []domain.AuctionID
	for id, entry := range e.auctions {
		if entry.end != nil && *entry.end <= now {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })

	winners := make(map[domain.AuctionID]*domain.Bid, len(expired))
	for _, id := range expired {
		winners[id] = e.auctions[id].bid
		delete(e.auctions, id)
	}
	handler := e.handler
	e.mu.Unlock()

	for _, id := range expired {
		e.logger.DebugContext(ctx, "auction ended", slog.Uint64("auction_id", uint64(id)))
		handler.OnAuctionEnded(ctx, id, winners[id])
	}
}

// Run ticks the engine at the given interval until the context is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

var _ domain.AuctionEngine = (*Engine)(nil)
