package sweep

import (
	"context"
	"log/slog"

	"github.com/stableloop/auctiond/internal/auction"
	"github.com/stableloop/auctiond/internal/domain"
)

// LocalSubmitter applies cancel transactions in-process: each submission
// passes the admission rule and then executes, the same path an unsigned
// cancel takes through a transaction pool.
type LocalSubmitter struct {
	manager *auction.Manager
	logger  *slog.Logger
}

// NewLocalSubmitter creates a LocalSubmitter around the auction manager.
func NewLocalSubmitter(manager *auction.Manager, logger *slog.Logger) *LocalSubmitter {
	return &LocalSubmitter{
		manager: manager,
		logger:  logger.With(slog.String("component", "cancel_submitter")),
	}
}

// SubmitCancel validates and executes one cancel transaction.
func (s *LocalSubmitter) SubmitCancel(ctx context.Context, id domain.AuctionID) error {
	validity, err := s.manager.ValidateCancel(ctx, id)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "cancel accepted",
		slog.Uint64("auction_id", uint64(id)),
		slog.Uint64("priority", validity.Priority),
		slog.Uint64("longevity", validity.Longevity),
	)
	return s.manager.Cancel(ctx, id)
}

var _ domain.CancelSubmitter = (*LocalSubmitter)(nil)
