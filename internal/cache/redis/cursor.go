package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/stableloop/auctiond/internal/domain"
)

// cursorKey persists the cancellation sweep's resumption position.
const cursorKey = "sweep:cursor"

// CursorStore implements domain.SweepCursor as a single Redis key. The
// cursor is node-local state; a crash mid-sweep leaves it at the last
// persisted position and the next invocation resumes from there.
type CursorStore struct {
	rdb *redis.Client
}

// NewCursorStore creates a CursorStore backed by the given Client.
func NewCursorStore(c *Client) *CursorStore {
	return &CursorStore{rdb: c.Client}
}

// Get returns the persisted cursor. ok is false when no cursor is set.
func (cs *CursorStore) Get(ctx context.Context) (domain.AuctionID, bool, error) {
	raw, err := cs.rdb.Get(ctx, cursorKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get sweep cursor: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse sweep cursor %q: %w", raw, err)
	}
	return domain.AuctionID(id), true, nil
}

// Set persists the last-visited auction id.
func (cs *CursorStore) Set(ctx context.Context, id domain.AuctionID) error {
	if err := cs.rdb.Set(ctx, cursorKey, strconv.FormatUint(uint64(id), 10), 0).Err(); err != nil {
		return fmt.Errorf("redis: set sweep cursor: %w", err)
	}
	return nil
}

// Clear removes the cursor so the next sweep restarts from the beginning.
func (cs *CursorStore) Clear(ctx context.Context) error {
	if err := cs.rdb.Del(ctx, cursorKey).Err(); err != nil {
		return fmt.Errorf("redis: clear sweep cursor: %w", err)
	}
	return nil
}

var _ domain.SweepCursor = (*CursorStore)(nil)
