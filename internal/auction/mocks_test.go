package auction

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

// ============ Mock AuctionStore ============

type mockAuctionStore struct {
	items      map[domain.AuctionID]domain.CollateralAuctionItem
	collateral map[domain.CurrencyID]uint64
	target     uint64

	insertErr error
	getErr    error
	updateErr error
	deleteErr error
	incErr    error
	decErr    error
}

func newMockAuctionStore() *mockAuctionStore {
	return &mockAuctionStore{
		items:      make(map[domain.AuctionID]domain.CollateralAuctionItem),
		collateral: make(map[domain.CurrencyID]uint64),
	}
}

func (s *mockAuctionStore) Insert(_ context.Context, id domain.AuctionID, item domain.CollateralAuctionItem) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.items[id] = item
	return nil
}

func (s *mockAuctionStore) Get(_ context.Context, id domain.AuctionID) (domain.CollateralAuctionItem, error) {
	if s.getErr != nil {
		return domain.CollateralAuctionItem{}, s.getErr
	}
	item, ok := s.items[id]
	if !ok {
		return domain.CollateralAuctionItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (s *mockAuctionStore) Update(_ context.Context, id domain.AuctionID, item domain.CollateralAuctionItem) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.items[id]; !ok {
		return domain.ErrNotFound
	}
	s.items[id] = item
	return nil
}

func (s *mockAuctionStore) Delete(_ context.Context, id domain.AuctionID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *mockAuctionStore) IDsAfter(_ context.Context, after domain.AuctionID, limit int) ([]domain.AuctionID, bool, error) {
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

func (s *mockAuctionStore) IncTotals(_ context.Context, currency domain.CurrencyID, amount, target uint64) error {
	if s.incErr != nil {
		return s.incErr
	}
	if s.collateral[currency] > math.MaxUint64-amount || s.target > math.MaxUint64-target {
		return domain.ErrInvalidAmount
	}
	s.collateral[currency] += amount
	s.target += target
	return nil
}

func (s *mockAuctionStore) DecTotals(_ context.Context, currency domain.CurrencyID, amount, target uint64) error {
	if s.decErr != nil {
		return s.decErr
	}
	if amount > s.collateral[currency] {
		amount = s.collateral[currency]
	}
	if target > s.target {
		target = s.target
	}
	s.collateral[currency] -= amount
	s.target -= target
	return nil
}

func (s *mockAuctionStore) TotalCollateral(_ context.Context, currency domain.CurrencyID) (uint64, error) {
	return s.collateral[currency], nil
}

func (s *mockAuctionStore) TotalTarget(_ context.Context) (uint64, error) {
	return s.target, nil
}

func (s *mockAuctionStore) Totals(_ context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	out := make(map[domain.CurrencyID]uint64, len(s.collateral))
	for k, v := range s.collateral {
		out[k] = v
	}
	return out, s.target, nil
}

func (s *mockAuctionStore) SumRecords(_ context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	out := make(map[domain.CurrencyID]uint64)
	var target uint64
	for _, item := range s.items {
		out[item.CurrencyID] += item.Amount
		target += item.Target
	}
	return out, target, nil
}

func (s *mockAuctionStore) snapshot() *mockAuctionStore {
	cp := newMockAuctionStore()
	for k, v := range s.items {
		cp.items[k] = v
	}
	for k, v := range s.collateral {
		cp.collateral[k] = v
	}
	cp.target = s.target
	return cp
}

func (s *mockAuctionStore) restore(snap *mockAuctionStore) {
	s.items = snap.items
	s.collateral = snap.collateral
	s.target = snap.target
}

// ============ Mock BalanceStore ============

type mockBalanceStore struct {
	balances map[domain.AccountID]map[domain.CurrencyID]uint64

	depositErr  error
	transferErr error
}

func newMockBalanceStore() *mockBalanceStore {
	return &mockBalanceStore{balances: make(map[domain.AccountID]map[domain.CurrencyID]uint64)}
}

func (s *mockBalanceStore) Balance(_ context.Context, account domain.AccountID, currency domain.CurrencyID) (uint64, error) {
	return s.balances[account][currency], nil
}

func (s *mockBalanceStore) Deposit(_ context.Context, account domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if s.depositErr != nil {
		return s.depositErr
	}
	s.credit(account, currency, amount)
	return nil
}

func (s *mockBalanceStore) Withdraw(_ context.Context, account domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if s.balances[account][currency] < amount {
		return domain.ErrInsufficientFunds
	}
	s.balances[account][currency] -= amount
	return nil
}

func (s *mockBalanceStore) Transfer(ctx context.Context, from, to domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if s.transferErr != nil {
		return s.transferErr
	}
	if err := s.Withdraw(ctx, from, currency, amount); err != nil {
		return err
	}
	s.credit(to, currency, amount)
	return nil
}

func (s *mockBalanceStore) credit(account domain.AccountID, currency domain.CurrencyID, amount uint64) {
	if s.balances[account] == nil {
		s.balances[account] = make(map[domain.CurrencyID]uint64)
	}
	s.balances[account][currency] += amount
}

func (s *mockBalanceStore) snapshot() map[domain.AccountID]map[domain.CurrencyID]uint64 {
	cp := make(map[domain.AccountID]map[domain.CurrencyID]uint64, len(s.balances))
	for acct, row := range s.balances {
		inner := make(map[domain.CurrencyID]uint64, len(row))
		for cur, v := range row {
			inner[cur] = v
		}
		cp[acct] = inner
	}
	return cp
}

// ============ Mock UnitOfWork ============

// mockUnitOfWork snapshots the in-memory stores before fn and restores them
// when fn fails, mirroring a database rollback.
type mockUnitOfWork struct {
	store    *mockAuctionStore
	balances *mockBalanceStore
}

func (u *mockUnitOfWork) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	storeSnap := u.store.snapshot()
	balanceSnap := u.balances.snapshot()
	if err := fn(ctx); err != nil {
		u.store.restore(storeSnap)
		u.balances.balances = balanceSnap
		return err
	}
	return nil
}

// ============ Mock AuctionEngine ============

type mockEngine struct {
	now    domain.Height
	nextID domain.AuctionID
	infos  map[domain.AuctionID]domain.AuctionInfo

	removed   []domain.AuctionID
	newErr    error
	removeErr error
}

func newMockEngine(now domain.Height) *mockEngine {
	return &mockEngine{now: now, nextID: 1, infos: make(map[domain.AuctionID]domain.AuctionInfo)}
}

func (e *mockEngine) NewAuction(_ context.Context, start domain.Height, end *domain.Height) (domain.AuctionID, error) {
	if e.newErr != nil {
		return 0, e.newErr
	}
	id := e.nextID
	e.nextID++
	e.infos[id] = domain.AuctionInfo{Start: start, End: end}
	return id, nil
}

func (e *mockEngine) AuctionInfo(_ context.Context, id domain.AuctionID) (domain.AuctionInfo, error) {
	info, ok := e.infos[id]
	if !ok {
		return domain.AuctionInfo{}, domain.ErrAuctionNotExists
	}
	return info, nil
}

func (e *mockEngine) RemoveAuction(_ context.Context, id domain.AuctionID) error {
	if e.removeErr != nil {
		return e.removeErr
	}
	delete(e.infos, id)
	e.removed = append(e.removed, id)
	return nil
}

func (e *mockEngine) Now() domain.Height { return e.now }

// ============ Mock Treasury ============

type swapCall struct {
	currency      domain.CurrencyID
	limit         domain.SwapLimit
	acceptPartial bool
}

type collateralRelease struct {
	recipient domain.AccountID
	currency  domain.CurrencyID
	amount    uint64
}

type stableIssue struct {
	payee  domain.AccountID
	amount uint64
}

// mockTreasury moves stable funds through the shared balance store (so bid
// atomicity is observable) and records collateral releases and debits.
type mockTreasury struct {
	balances *mockBalanceStore
	account  domain.AccountID
	stable   domain.CurrencyID

	swapSupplied uint64
	swapReceived uint64
	swapErr      error
	swapCalls    []swapCall

	withdrawErr error
	debitErr    error
	releases    []collateralRelease
	debits      []stableIssue
}

func (t *mockTreasury) DepositSurplus(ctx context.Context, payer domain.AccountID, amount uint64) error {
	return t.balances.Transfer(ctx, payer, t.account, t.stable, amount)
}

func (t *mockTreasury) IssueDebit(_ context.Context, payee domain.AccountID, amount uint64) error {
	if t.debitErr != nil {
		return t.debitErr
	}
	t.debits = append(t.debits, stableIssue{payee: payee, amount: amount})
	t.balances.credit(payee, t.stable, amount)
	return nil
}

func (t *mockTreasury) WithdrawCollateral(_ context.Context, recipient domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if t.withdrawErr != nil {
		return t.withdrawErr
	}
	t.releases = append(t.releases, collateralRelease{recipient: recipient, currency: currency, amount: amount})
	t.balances.credit(recipient, currency, amount)
	return nil
}

func (t *mockTreasury) SwapCollateralToStable(_ context.Context, currency domain.CurrencyID, limit domain.SwapLimit, acceptPartial bool) (uint64, uint64, error) {
	t.swapCalls = append(t.swapCalls, swapCall{currency: currency, limit: limit, acceptPartial: acceptPartial})
	if t.swapErr != nil {
		return 0, 0, t.swapErr
	}
	return t.swapSupplied, t.swapReceived, nil
}

// ============ Mock DEX ============

type mockDEX struct{}

func (mockDEX) GetSwapAmount(context.Context, domain.CurrencyID, domain.CurrencyID, domain.SwapLimit) (uint64, uint64, bool) {
	return 0, 0, false
}

func (mockDEX) Swap(context.Context, domain.AccountID, domain.CurrencyID, domain.CurrencyID, domain.SwapLimit) (uint64, uint64, error) {
	return 0, 0, domain.ErrSwapUnavailable
}

// ============ Mock Oracle ============

type mockOracle struct {
	price decimal.Decimal
	ok    bool
}

func (o *mockOracle) GetRelativePrice(context.Context, domain.CurrencyID, domain.CurrencyID) (decimal.Decimal, bool) {
	return o.price, o.ok
}

// ============ Mock PinRegistry ============

type mockPins struct {
	counts map[domain.AccountID]int

	pinErr   error
	unpinErr error
}

func newMockPins() *mockPins {
	return &mockPins{counts: make(map[domain.AccountID]int)}
}

func (p *mockPins) Pin(_ context.Context, account domain.AccountID) error {
	if p.pinErr != nil {
		return p.pinErr
	}
	p.counts[account]++
	return nil
}

func (p *mockPins) Unpin(_ context.Context, account domain.AccountID) error {
	if p.unpinErr != nil {
		return p.unpinErr
	}
	p.counts[account]--
	return nil
}

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

// ============ Mock EventSink ============

type mockEventSink struct {
	events     []domain.Event
	publishErr error
}

func (s *mockEventSink) Publish(_ context.Context, ev domain.Event) error {
	if s.publishErr != nil {
		return s.publishErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *mockEventSink) lastType() string {
	if len(s.events) == 0 {
		return ""
	}
	return s.events[len(s.events)-1].Type
}

// ============ Fixture ============

const (
	stableCurrency     = domain.CurrencyID("AUSD")
	collateralCurrency = domain.CurrencyID("DOT")
	treasuryAccount    = domain.AccountID("treasury")
	recipientAccount   = domain.AccountID("vault-owner")
)

type fixture struct {
	manager  *Manager
	store    *mockAuctionStore
	balances *mockBalanceStore
	engine   *mockEngine
	treasury *mockTreasury
	oracle   *mockOracle
	pins     *mockPins
	halt     *mockHalt
	events   *mockEventSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMockAuctionStore()
	balances := newMockBalanceStore()
	engine := newMockEngine(10)
	treasury := &mockTreasury{
		balances: balances,
		account:  treasuryAccount,
		stable:   stableCurrency,
		swapErr:  domain.ErrSwapUnavailable,
	}
	oracle := &mockOracle{ok: false}
	pins := newMockPins()
	halt := &mockHalt{}
	events := &mockEventSink{}

	params := Params{
		MinimumIncrementSize:   decimal.RequireFromString("0.02"),
		AuctionTimeToClose:     100,
		AuctionDurationSoftCap: 2000,
		StableCurrencyID:       stableCurrency,
		UnsignedPriority:       1 << 20,
		CancelLongevity:        64,
	}
	deps := Deps{
		Store:    store,
		Balances: balances,
		UOW:      &mockUnitOfWork{store: store, balances: balances},
		Engine:   engine,
		Treasury: treasury,
		DEX:      mockDEX{},
		Oracle:   oracle,
		Pins:     pins,
		Halt:     halt,
		Events:   events,
	}
	logger := slog.New(slog.DiscardHandler)

	return &fixture{
		manager:  NewManager(params, deps, logger),
		store:    store,
		balances: balances,
		engine:   engine,
		treasury: treasury,
		oracle:   oracle,
		pins:     pins,
		halt:     halt,
		events:   events,
	}
}

// open creates an auction directly through the manager and returns its id.
func (f *fixture) open(t *testing.T, amount, target uint64) domain.AuctionID {
	t.Helper()
	id, err := f.manager.NewCollateralAuction(context.Background(), recipientAccount, collateralCurrency, amount, target)
	if err != nil {
		t.Fatalf("NewCollateralAuction: %v", err)
	}
	return id
}

// fund credits an account so it can afford bids.
func (f *fixture) fund(account domain.AccountID, amount uint64) {
	f.balances.credit(account, stableCurrency, amount)
}
