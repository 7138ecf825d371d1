package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/stableloop/auctiond/internal/domain"
)

// ledger_state key holding the emergency halt flag.
const haltKey = "emergency_halt"

// FlagStore implements domain.HaltFlag over the ledger_state table.
type FlagStore struct {
	c *Client
}

// NewFlagStore creates a FlagStore backed by the given Client.
func NewFlagStore(c *Client) *FlagStore {
	return &FlagStore{c: c}
}

// IsHalted reports whether the protocol is emergency-halted.
func (s *FlagStore) IsHalted(ctx context.Context) (bool, error) {
	var raw string
	err := s.c.q(ctx).QueryRow(ctx,
		`SELECT value FROM ledger_state WHERE key = $1`, haltKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: read halt flag: %w", err)
	}
	halted, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("postgres: parse halt flag %q: %w", raw, err)
	}
	return halted, nil
}

// SetHalted writes the halt flag.
func (s *FlagStore) SetHalted(ctx context.Context, halted bool) error {
	const query = `
		INSERT INTO ledger_state (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.c.q(ctx).Exec(ctx, query, haltKey, strconv.FormatBool(halted)); err != nil {
		return fmt.Errorf("postgres: write halt flag: %w", err)
	}
	return nil
}

var _ domain.HaltFlag = (*FlagStore)(nil)
