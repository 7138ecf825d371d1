package handler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

// ============ Mock AuctionService ============

type mockAuctionService struct {
	createID  domain.AuctionID
	createErr error
	created   []createCall

	item   domain.CollateralAuctionItem
	getErr error
}

type createCall struct {
	recipient domain.AccountID
	currency  domain.CurrencyID
	amount    uint64
	target    uint64
}

func (m *mockAuctionService) NewCollateralAuction(_ context.Context, recipient domain.AccountID, currency domain.CurrencyID, amount, target uint64) (domain.AuctionID, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.created = append(m.created, createCall{recipient, currency, amount, target})
	return m.createID, nil
}

func (m *mockAuctionService) GetAuction(context.Context, domain.AuctionID) (domain.CollateralAuctionItem, error) {
	if m.getErr != nil {
		return domain.CollateralAuctionItem{}, m.getErr
	}
	return m.item, nil
}

// ============ Mock BidService ============

type mockBidService struct {
	bidErr error
	bids   []bidCall

	info    domain.AuctionInfo
	infoErr error
	height  domain.Height
}

type bidCall struct {
	id     domain.AuctionID
	bidder domain.AccountID
	price  uint64
}

func (m *mockBidService) Bid(_ context.Context, id domain.AuctionID, bidder domain.AccountID, price uint64) error {
	if m.bidErr != nil {
		return m.bidErr
	}
	m.bids = append(m.bids, bidCall{id, bidder, price})
	return nil
}

func (m *mockBidService) AuctionInfo(context.Context, domain.AuctionID) (domain.AuctionInfo, error) {
	if m.infoErr != nil {
		return domain.AuctionInfo{}, m.infoErr
	}
	return m.info, nil
}

func (m *mockBidService) Now() domain.Height { return m.height }

// ============ Mock TotalsService ============

type mockTotalsService struct {
	collateral map[domain.CurrencyID]uint64
	target     uint64
	totalsErr  error
	verifyErr  error
}

func (m *mockTotalsService) Totals(context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	if m.totalsErr != nil {
		return nil, 0, m.totalsErr
	}
	return m.collateral, m.target, nil
}

func (m *mockTotalsService) VerifyTotals(context.Context) error { return m.verifyErr }

// ============ Mock HaltFlag ============

type mockHalt struct {
	halted bool
	err    error
}

func (h *mockHalt) IsHalted(context.Context) (bool, error) { return h.halted, h.err }

func (h *mockHalt) SetHalted(_ context.Context, halted bool) error {
	if h.err != nil {
		return h.err
	}
	h.halted = halted
	return nil
}

// ============ Mock PriceFeeder ============

type mockPriceFeeder struct {
	err  error
	fed  []domain.CurrencyID
	last decimal.Decimal
}

func (m *mockPriceFeeder) SetPrice(_ context.Context, currency domain.CurrencyID, price decimal.Decimal, _ time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.fed = append(m.fed, currency)
	m.last = price
	return nil
}

// ============ Mock EventHistory ============

type mockEventHistory struct {
	events []domain.Event
	err    error

	lastAfter string
	lastCount int
}

func (m *mockEventHistory) History(_ context.Context, lastID string, count int) ([]domain.Event, error) {
	m.lastAfter = lastID
	m.lastCount = count
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}
