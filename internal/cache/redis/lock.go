package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stableloop/auctiond/internal/domain"
)

// unlockLua deletes a lock key only if its value matches the caller's
// unique token, so one holder cannot release another holder's lease.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua pushes the lease expiry forward only while the caller still
// holds the lock.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.SweepLock using Redis SETNX with a TTL.
// Acquisition is a conditional write that succeeds only while no live lease
// exists; extension rewrites the expiry forward.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	extendSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Client,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire attempts to obtain the leased lock for key. It returns
// domain.ErrLockHeld while another holder's lease is live. The returned
// lease lapses after ttl unless extended.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	return &lease{lm: lm, key: lk, token: token, ttl: ttl}, nil
}

type lease struct {
	lm    *LockManager
	key   string
	token string
	ttl   time.Duration
}

// Extend rewrites the lease expiry forward by the original ttl. It fails
// with domain.ErrLockHeld when the lease has already lapsed and been taken
// over.
func (l *lease) Extend(ctx context.Context) error {
	res, err := l.lm.extendSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis: extend lock %s: %w", l.key, err)
	}
	if res == 0 {
		return domain.ErrLockHeld
	}
	return nil
}

// Release drops the lease early. Safe to call after the lease has lapsed.
func (l *lease) Release(ctx context.Context) {
	// A background context so release succeeds even if the caller's
	// context is already cancelled.
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = l.lm.unlockSc.Run(releaseCtx, l.lm.rdb, []string{l.key}, l.token).Err()
}

var _ domain.SweepLock = (*LockManager)(nil)
