package domain

import "errors"

var (
	// ErrAuctionNotExists is returned when the referenced auction has no
	// record.
	ErrAuctionNotExists = errors.New("auction does not exist")
	// ErrInReverseStage is returned by cancel attempts on an auction whose
	// highest bid has entered the reverse stage.
	ErrInReverseStage = errors.New("auction is in reverse stage")
	// ErrInvalidFeedPrice is returned when the oracle has no rate for the
	// cancellation settle price.
	ErrInvalidFeedPrice = errors.New("invalid feed price")
	// ErrMustAfterShutdown is returned by cancel attempts while the
	// protocol is not emergency-halted.
	ErrMustAfterShutdown = errors.New("must be after emergency shutdown")
	// ErrInvalidBidPrice is returned for zero bids and bids that fail the
	// minimum increment check.
	ErrInvalidBidPrice = errors.New("invalid bid price")
	// ErrInvalidAmount is returned for zero or overflowing creation
	// amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLockHeld          = errors.New("lock already held")
	ErrSwapUnavailable   = errors.New("swap cannot be filled")
)
