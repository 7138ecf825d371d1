package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stableloop/auctiond/internal/domain"
)

// BalanceStore implements domain.BalanceStore using PostgreSQL.
type BalanceStore struct {
	c *Client
}

// NewBalanceStore creates a BalanceStore backed by the given Client.
func NewBalanceStore(c *Client) *BalanceStore {
	return &BalanceStore{c: c}
}

// Balance returns the account's balance in the given currency; absent rows
// read as zero.
func (s *BalanceStore) Balance(ctx context.Context, account domain.AccountID, currency domain.CurrencyID) (uint64, error) {
	var raw string
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT amount FROM balances WHERE account = $1 AND currency_id = $2`,
		string(account), string(currency)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s/%s: %w", account, currency, err)
	}
	return parseAmount(raw)
}

// Deposit credits the account.
func (s *BalanceStore) Deposit(ctx context.Context, account domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	current, err := s.lock(ctx, account, currency)
	if err != nil {
		return err
	}
	next, ok := addChecked(current, amount)
	if !ok {
		return domain.ErrInvalidAmount
	}
	return s.write(ctx, account, currency, next)
}

// Withdraw debits the account, failing with domain.ErrInsufficientFunds.
func (s *BalanceStore) Withdraw(ctx context.Context, account domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	current, err := s.lock(ctx, account, currency)
	if err != nil {
		return err
	}
	if current < amount {
		return domain.ErrInsufficientFunds
	}
	return s.write(ctx, account, currency, current-amount)
}

// Transfer moves funds between accounts. Within the ambient transaction the
// two legs commit or roll back together.
func (s *BalanceStore) Transfer(ctx context.Context, from, to domain.AccountID, currency domain.CurrencyID, amount uint64) error {
	if from == to || amount == 0 {
		return nil
	}
	if err := s.Withdraw(ctx, from, currency, amount); err != nil {
		return err
	}
	return s.Deposit(ctx, to, currency, amount)
}

func (s *BalanceStore) lock(ctx context.Context, account domain.AccountID, currency domain.CurrencyID) (uint64, error) {
	var raw string
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT amount FROM balances WHERE account = $1 AND currency_id = $2 FOR UPDATE`,
		string(account), string(currency)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: lock balance %s/%s: %w", account, currency, err)
	}
	return parseAmount(raw)
}

func (s *BalanceStore) write(ctx context.Context, account domain.AccountID, currency domain.CurrencyID, value uint64) error {
	const query = `
		INSERT INTO balances (account, currency_id, amount) VALUES ($1, $2, $3)
		ON CONFLICT (account, currency_id) DO UPDATE SET amount = EXCLUDED.amount`
	if _, err := s.c.q(ctx).Exec(ctx, query,
		string(account), string(currency), formatAmount(value)); err != nil {
		return fmt.Errorf("postgres: write balance %s/%s: %w", account, currency, err)
	}
	return nil
}

var _ domain.BalanceStore = (*BalanceStore)(nil)
