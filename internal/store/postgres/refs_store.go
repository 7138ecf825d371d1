package postgres

import (
	"context"
	"fmt"

	"github.com/stableloop/auctiond/internal/domain"
)

// RefStore implements domain.PinRegistry as an explicit per-account
// reference counter.
type RefStore struct {
	c *Client
}

// NewRefStore creates a RefStore backed by the given Client.
func NewRefStore(c *Client) *RefStore {
	return &RefStore{c: c}
}

// Pin increments the account's liveness reference count.
func (s *RefStore) Pin(ctx context.Context, account domain.AccountID) error {
	const query = `
		INSERT INTO account_refs (account, refs) VALUES ($1, 1)
		ON CONFLICT (account) DO UPDATE SET refs = account_refs.refs + 1`
	if _, err := s.c.q(ctx).Exec(ctx, query, string(account)); err != nil {
		return fmt.Errorf("postgres: pin %s: %w", account, err)
	}
	return nil
}

// Unpin decrements the count and drops the row once it reaches zero. An
// unpin without a matching pin is a no-op.
func (s *RefStore) Unpin(ctx context.Context, account domain.AccountID) error {
	if _, err := s.c.q(ctx).Exec(ctx,
		`UPDATE account_refs SET refs = refs - 1 WHERE account = $1 AND refs > 0`,
		string(account)); err != nil {
		return fmt.Errorf("postgres: unpin %s: %w", account, err)
	}
	if _, err := s.c.q(ctx).Exec(ctx,
		`DELETE FROM account_refs WHERE account = $1 AND refs <= 0`,
		string(account)); err != nil {
		return fmt.Errorf("postgres: unpin %s: %w", account, err)
	}
	return nil
}

// Refs returns the current reference count for an account.
func (s *RefStore) Refs(ctx context.Context, account domain.AccountID) (int64, error) {
	var refs int64
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT COALESCE((SELECT refs FROM account_refs WHERE account = $1), 0)`,
		string(account)).Scan(&refs)
	if err != nil {
		return 0, fmt.Errorf("postgres: refs %s: %w", account, err)
	}
	return refs, nil
}

var _ domain.PinRegistry = (*RefStore)(nil)
