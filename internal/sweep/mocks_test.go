package sweep

import (
	"context"
	"sort"
	"time"

	"github.com/stableloop/auctiond/internal/domain"
)

// ============ Mock SweepLock ============

type mockLease struct {
	extensions int
	extendErr  error
	released   bool
}

func (l *mockLease) Extend(context.Context) error {
	if l.extendErr != nil {
		return l.extendErr
	}
	l.extensions++
	return nil
}

func (l *mockLease) Release(context.Context) { l.released = true }

type mockLock struct {
	lease      *mockLease
	acquireErr error
	acquired   int
}

func (m *mockLock) Acquire(_ context.Context, _ string, _ time.Duration) (domain.Lease, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	m.acquired++
	return m.lease, nil
}

// ============ Mock SweepCursor ============

type mockCursor struct {
	id  domain.AuctionID
	set bool

	getErr error
	setErr error

	sets   []domain.AuctionID
	clears int
}

func (c *mockCursor) Get(context.Context) (domain.AuctionID, bool, error) {
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	return c.id, c.set, nil
}

func (c *mockCursor) Set(_ context.Context, id domain.AuctionID) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.id, c.set = id, true
	c.sets = append(c.sets, id)
	return nil
}

func (c *mockCursor) Clear(context.Context) error {
	c.id, c.set = 0, false
	c.clears++
	return nil
}

// ============ Mock AuctionStore ============

// mockStore implements only the record reads the sweep uses; the mutating
// methods are never reached from this package.
type mockStore struct {
	items map[domain.AuctionID]domain.CollateralAuctionItem
}

func newMockStore() *mockStore {
	return &mockStore{items: make(map[domain.AuctionID]domain.CollateralAuctionItem)}
}

func (s *mockStore) Get(_ context.Context, id domain.AuctionID) (domain.CollateralAuctionItem, error) {
	item, ok := s.items[id]
	if !ok {
		return domain.CollateralAuctionItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (s *mockStore) IDsAfter(_ context.Context, after domain.AuctionID, limit int) ([]domain.AuctionID, bool, error) {
	var all []domain.AuctionID
	for id := range s.items {
		if id > after {
			all = append(all, id)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	if len(all) <= limit {
		return all, true, nil
	}
	return all[:limit], false, nil
}

func (s *mockStore) Insert(context.Context, domain.AuctionID, domain.CollateralAuctionItem) error {
	panic("not used by sweep")
}
func (s *mockStore) Update(context.Context, domain.AuctionID, domain.CollateralAuctionItem) error {
	panic("not used by sweep")
}
func (s *mockStore) Delete(context.Context, domain.AuctionID) error { panic("not used by sweep") }
func (s *mockStore) IncTotals(context.Context, domain.CurrencyID, uint64, uint64) error {
	panic("not used by sweep")
}
func (s *mockStore) DecTotals(context.Context, domain.CurrencyID, uint64, uint64) error {
	panic("not used by sweep")
}
func (s *mockStore) TotalCollateral(context.Context, domain.CurrencyID) (uint64, error) {
	panic("not used by sweep")
}
func (s *mockStore) TotalTarget(context.Context) (uint64, error) { panic("not used by sweep") }
func (s *mockStore) Totals(context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	panic("not used by sweep")
}
func (s *mockStore) SumRecords(context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	panic("not used by sweep")
}

// ============ Mock AuctionEngine ============

type mockEngine struct {
	bids map[domain.AuctionID]*domain.Bid
}

func (e *mockEngine) AuctionInfo(_ context.Context, id domain.AuctionID) (domain.AuctionInfo, error) {
	bid, ok := e.bids[id]
	if !ok {
		return domain.AuctionInfo{}, domain.ErrAuctionNotExists
	}
	return domain.AuctionInfo{Bid: bid}, nil
}

func (e *mockEngine) NewAuction(context.Context, domain.Height, *domain.Height) (domain.AuctionID, error) {
	panic("not used by sweep")
}
func (e *mockEngine) RemoveAuction(context.Context, domain.AuctionID) error {
	panic("not used by sweep")
}
func (e *mockEngine) Now() domain.Height { return 0 }

// ============ Mock HaltFlag ============

type mockHalt struct {
	halted bool
	err    error
}

func (h *mockHalt) IsHalted(context.Context) (bool, error) { return h.halted, h.err }

func (h *mockHalt) SetHalted(_ context.Context, halted bool) error {
	h.halted = halted
	return nil
}

// ============ Mock CancelSubmitter ============

type mockSubmitter struct {
	submitted []domain.AuctionID
	rejectIDs map[domain.AuctionID]error
}

func (s *mockSubmitter) SubmitCancel(_ context.Context, id domain.AuctionID) error {
	if err, ok := s.rejectIDs[id]; ok {
		return err
	}
	s.submitted = append(s.submitted, id)
	return nil
}
