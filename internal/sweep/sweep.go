// Package sweep implements the node-local background task that drives open
// collateral auctions to cancellation after an emergency halt. Invocations
// coordinate across nodes through a short-leased lock and make bounded,
// resumable progress through a persisted cursor.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stableloop/auctiond/internal/domain"
)

// lockKey scopes the sweep lease.
const lockKey = "auction-cancel-sweep"

// Config controls one sweep deployment.
type Config struct {
	// Interval between sweep invocations.
	Interval time.Duration
	// LockTTL is the lease duration of the sweep lock.
	LockTTL time.Duration
	// MaxIterations caps the records visited per invocation.
	MaxIterations int
	// Authorized marks this node as allowed to submit cancel
	// transactions.
	Authorized bool
}

// Sweeper iterates the auction record store and submits cancel transactions
// for every auction that has not entered the reverse stage.
type Sweeper struct {
	cfg       Config
	lock      domain.SweepLock
	cursor    domain.SweepCursor
	store     domain.AuctionStore
	engine    domain.AuctionEngine
	halt      domain.HaltFlag
	submitter domain.CancelSubmitter
	logger    *slog.Logger
}

// New creates a Sweeper.
func New(
	cfg Config,
	lock domain.SweepLock,
	cursor domain.SweepCursor,
	store domain.AuctionStore,
	engine domain.AuctionEngine,
	halt domain.HaltFlag,
	submitter domain.CancelSubmitter,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:       cfg,
		lock:      lock,
		cursor:    cursor,
		store:     store,
		engine:    engine,
		halt:      halt,
		submitter: submitter,
		logger:    logger.With(slog.String("component", "sweep")),
	}
}

// Run invokes the sweep at the configured interval until the context is
// done. Failures are logged and retried on the next invocation; the sweep
// never surfaces errors to callers.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.WarnContext(ctx, "sweep invocation failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce performs one bounded sweep batch. It is a no-op while the protocol
// is not halted, on unauthorized nodes, and while another node holds the
// sweep lease.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if !s.cfg.Authorized {
		return nil
	}
	halted, err := s.halt.IsHalted(ctx)
	if err != nil {
		return err
	}
	if !halted {
		return nil
	}

	lease, err := s.lock.Acquire(ctx, lockKey, s.cfg.LockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		s.logger.DebugContext(ctx, "sweep lock held elsewhere, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	// An absent cursor reads as zero, which sits below every assigned id
	// and restarts the iteration from the beginning of the store.
	after, _, err := s.cursor.Get(ctx)
	if err != nil {
		return err
	}

	ids, done, err := s.store.IDsAfter(ctx, after, s.cfg.MaxIterations)
	if err != nil {
		return err
	}

	submitted := 0
	for _, id := range ids {
		if s.skipReverseStage(ctx, id) {
			continue
		}
		if err := s.submitter.SubmitCancel(ctx, id); err != nil {
			// Duplicate or no-longer-eligible cancels are rejected by
			// validation; the next invocation retries anything real.
			s.logger.DebugContext(ctx, "cancel submission rejected",
				slog.Uint64("auction_id", uint64(id)),
				slog.String("error", err.Error()),
			)
		} else {
			submitted++
		}
		if err := lease.Extend(ctx); err != nil {
			return err
		}
	}

	if done {
		if err := s.cursor.Clear(ctx); err != nil {
			return err
		}
	} else if len(ids) > 0 {
		if err := s.cursor.Set(ctx, ids[len(ids)-1]); err != nil {
			return err
		}
	}

	// The lease is deliberately not released: letting it lapse keeps a
	// finished batch from being mistaken for an in-flight one.
	s.logger.InfoContext(ctx, "sweep batch complete",
		slog.Int("visited", len(ids)),
		slog.Int("submitted", submitted),
		slog.Bool("finished_store", done),
	)
	return nil
}

// skipReverseStage reports whether the auction's current bid has entered the
// reverse stage, in which case cancelling it would be incorrect.
func (s *Sweeper) skipReverseStage(ctx context.Context, id domain.AuctionID) bool {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return false
	}
	info, err := s.engine.AuctionInfo(ctx, id)
	if err != nil || info.Bid == nil {
		return false
	}
	return item.InReverseStage(info.Bid.Price)
}
