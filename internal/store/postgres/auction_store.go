package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/stableloop/auctiond/internal/domain"
)

// ledger_state key holding the global target total.
const targetTotalKey = "total_target_in_auction"

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	c *Client
}

// NewAuctionStore creates an AuctionStore backed by the given Client.
func NewAuctionStore(c *Client) *AuctionStore {
	return &AuctionStore{c: c}
}

// Insert persists a new auction record.
func (s *AuctionStore) Insert(ctx context.Context, id domain.AuctionID, item domain.CollateralAuctionItem) error {
	const query = `
		INSERT INTO collateral_auctions (
			id, refund_recipient, currency_id, initial_amount, amount, target, start_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.c.q(ctx).Exec(ctx, query,
		int64(id),
		string(item.RefundRecipient),
		string(item.CurrencyID),
		formatAmount(item.InitialAmount),
		formatAmount(item.Amount),
		formatAmount(item.Target),
		int64(item.StartTime),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert auction %d: %w", id, err)
	}
	return nil
}

// Get loads one auction record. It returns domain.ErrNotFound when the
// record does not exist.
func (s *AuctionStore) Get(ctx context.Context, id domain.AuctionID) (domain.CollateralAuctionItem, error) {
	const query = `
		SELECT refund_recipient, currency_id, initial_amount, amount, target, start_time
		FROM collateral_auctions WHERE id = $1`

	var item domain.CollateralAuctionItem
	var recipient, currency, initialAmount, amount, target string
	var startTime int64
	err := s.c.q(ctx).QueryRow(ctx, query, int64(id)).Scan(
		&recipient, &currency, &initialAmount, &amount, &target, &startTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return item, domain.ErrNotFound
	}
	if err != nil {
		return item, fmt.Errorf("postgres: get auction %d: %w", id, err)
	}

	item.RefundRecipient = domain.AccountID(recipient)
	item.CurrencyID = domain.CurrencyID(currency)
	item.StartTime = domain.Height(startTime)
	if item.InitialAmount, err = parseAmount(initialAmount); err != nil {
		return item, fmt.Errorf("postgres: auction %d initial_amount: %w", id, err)
	}
	if item.Amount, err = parseAmount(amount); err != nil {
		return item, fmt.Errorf("postgres: auction %d amount: %w", id, err)
	}
	if item.Target, err = parseAmount(target); err != nil {
		return item, fmt.Errorf("postgres: auction %d target: %w", id, err)
	}
	return item, nil
}

// Update rewrites the mutable fields of an existing record.
func (s *AuctionStore) Update(ctx context.Context, id domain.AuctionID, item domain.CollateralAuctionItem) error {
	const query = `UPDATE collateral_auctions SET amount = $2, target = $3 WHERE id = $1`

	tag, err := s.c.q(ctx).Exec(ctx, query,
		int64(id), formatAmount(item.Amount), formatAmount(item.Target))
	if err != nil {
		return fmt.Errorf("postgres: update auction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (s *AuctionStore) Delete(ctx context.Context, id domain.AuctionID) error {
	tag, err := s.c.q(ctx).Exec(ctx,
		`DELETE FROM collateral_auctions WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("postgres: delete auction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IDsAfter returns up to limit auction ids strictly greater than after, in
// ascending order.
func (s *AuctionStore) IDsAfter(ctx context.Context, after domain.AuctionID, limit int) ([]domain.AuctionID, bool, error) {
	rows, err := s.c.q(ctx).Query(ctx,
		`SELECT id FROM collateral_auctions WHERE id > $1 ORDER BY id LIMIT $2`,
		int64(after), limit)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: list auction ids: %w", err)
	}
	defer rows.Close()

	var ids []domain.AuctionID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, false, fmt.Errorf("postgres: scan auction id: %w", err)
		}
		ids = append(ids, domain.AuctionID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("postgres: list auction ids: %w", err)
	}
	return ids, len(ids) < limit, nil
}

// IncTotals adds to the per-currency collateral total and the global target
// total, failing with domain.ErrInvalidAmount on overflow.
func (s *AuctionStore) IncTotals(ctx context.Context, currency domain.CurrencyID, amount, target uint64) error {
	if amount > 0 {
		current, err := s.lockCollateralTotal(ctx, currency)
		if err != nil {
			return err
		}
		next, ok := addChecked(current, amount)
		if !ok {
			return domain.ErrInvalidAmount
		}
		if err := s.writeCollateralTotal(ctx, currency, next); err != nil {
			return err
		}
	}
	if target > 0 {
		current, err := s.lockTargetTotal(ctx)
		if err != nil {
			return err
		}
		next, ok := addChecked(current, target)
		if !ok {
			return domain.ErrInvalidAmount
		}
		if err := s.writeTargetTotal(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

// DecTotals subtracts from both totals, saturating at zero.
func (s *AuctionStore) DecTotals(ctx context.Context, currency domain.CurrencyID, amount, target uint64) error {
	if amount > 0 {
		current, err := s.lockCollateralTotal(ctx, currency)
		if err != nil {
			return err
		}
		if err := s.writeCollateralTotal(ctx, currency, subSaturating(current, amount)); err != nil {
			return err
		}
	}
	if target > 0 {
		current, err := s.lockTargetTotal(ctx)
		if err != nil {
			return err
		}
		if err := s.writeTargetTotal(ctx, subSaturating(current, target)); err != nil {
			return err
		}
	}
	return nil
}

// TotalCollateral returns the maintained collateral total for one currency.
func (s *AuctionStore) TotalCollateral(ctx context.Context, currency domain.CurrencyID) (uint64, error) {
	var raw string
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT total_collateral FROM auction_totals WHERE currency_id = $1`,
		string(currency)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: total collateral %s: %w", currency, err)
	}
	return parseAmount(raw)
}

// TotalTarget returns the maintained global target total.
func (s *AuctionStore) TotalTarget(ctx context.Context) (uint64, error) {
	var raw string
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT value FROM ledger_state WHERE key = $1`, targetTotalKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: total target: %w", err)
	}
	return parseAmount(raw)
}

// Totals returns a snapshot of every maintained counter.
func (s *AuctionStore) Totals(ctx context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	rows, err := s.c.q(ctx).Query(ctx,
		`SELECT currency_id, total_collateral FROM auction_totals`)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: totals: %w", err)
	}
	defer rows.Close()

	collateral := make(map[domain.CurrencyID]uint64)
	for rows.Next() {
		var currency, raw string
		if err := rows.Scan(&currency, &raw); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan total: %w", err)
		}
		v, err := parseAmount(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: total for %s: %w", currency, err)
		}
		collateral[domain.CurrencyID(currency)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: totals: %w", err)
	}

	target, err := s.TotalTarget(ctx)
	if err != nil {
		return nil, 0, err
	}
	return collateral, target, nil
}

// SumRecords recomputes both totals from a full record scan.
func (s *AuctionStore) SumRecords(ctx context.Context) (map[domain.CurrencyID]uint64, uint64, error) {
	rows, err := s.c.q(ctx).Query(ctx,
		`SELECT currency_id, amount, target FROM collateral_auctions`)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: sum records: %w", err)
	}
	defer rows.Close()

	collateral := make(map[domain.CurrencyID]uint64)
	var targetSum uint64
	for rows.Next() {
		var currency, amountRaw, targetRaw string
		if err := rows.Scan(&currency, &amountRaw, &targetRaw); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan record: %w", err)
		}
		amount, err := parseAmount(amountRaw)
		if err != nil {
			return nil, 0, err
		}
		target, err := parseAmount(targetRaw)
		if err != nil {
			return nil, 0, err
		}
		collateral[domain.CurrencyID(currency)] += amount
		targetSum += target
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: sum records: %w", err)
	}
	return collateral, targetSum, nil
}

func (s *AuctionStore) lockCollateralTotal(ctx context.Context, currency domain.CurrencyID) (uint64, error) {
	var raw string
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT total_collateral FROM auction_totals WHERE currency_id = $1 FOR UPDATE`,
		string(currency)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: lock total %s: %w", currency, err)
	}
	return parseAmount(raw)
}

func (s *AuctionStore) writeCollateralTotal(ctx context.Context, currency domain.CurrencyID, value uint64) error {
	const query = `
		INSERT INTO auction_totals (currency_id, total_collateral) VALUES ($1, $2)
		ON CONFLICT (currency_id) DO UPDATE SET total_collateral = EXCLUDED.total_collateral`
	if _, err := s.c.q(ctx).Exec(ctx, query, string(currency), formatAmount(value)); err != nil {
		return fmt.Errorf("postgres: write total %s: %w", currency, err)
	}
	return nil
}

func (s *AuctionStore) lockTargetTotal(ctx context.Context) (uint64, error) {
	var raw string
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT value FROM ledger_state WHERE key = $1 FOR UPDATE`, targetTotalKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: lock target total: %w", err)
	}
	return parseAmount(raw)
}

func (s *AuctionStore) writeTargetTotal(ctx context.Context, value uint64) error {
	const query = `
		INSERT INTO ledger_state (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.c.q(ctx).Exec(ctx, query, targetTotalKey, formatAmount(value)); err != nil {
		return fmt.Errorf("postgres: write target total: %w", err)
	}
	return nil
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

func addChecked(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

func subSaturating(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

var _ domain.AuctionStore = (*AuctionStore)(nil)
