package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stableloop/auctiond/internal/domain"
)

// AuctionService defines what the auction handler requires from the auction
// manager.
type AuctionService interface {
	NewCollateralAuction(ctx context.Context, refundRecipient domain.AccountID, currency domain.CurrencyID, amount, target uint64) (domain.AuctionID, error)
	GetAuction(ctx context.Context, id domain.AuctionID) (domain.CollateralAuctionItem, error)
}

// BidService defines what the auction handler requires from the bidding
// engine.
type BidService interface {
	Bid(ctx context.Context, id domain.AuctionID, bidder domain.AccountID, price uint64) error
	AuctionInfo(ctx context.Context, id domain.AuctionID) (domain.AuctionInfo, error)
	Now() domain.Height
}

// AuctionHandler serves auction-related HTTP endpoints.
type AuctionHandler struct {
	auctions AuctionService
	bids     BidService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given services.
func NewAuctionHandler(auctions AuctionService, bids BidService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		bids:     bids,
		logger:   logger,
	}
}

// createAuctionRequest is the JSON body for creating an auction.
type createAuctionRequest struct {
	RefundRecipient string `json:"refund_recipient"`
	Currency        string `json:"currency"`
	Amount          uint64 `json:"amount"`
	Target          uint64 `json:"target"`
}

// auctionResponse is the JSON view of one live auction.
type auctionResponse struct {
	ID              domain.AuctionID  `json:"id"`
	RefundRecipient domain.AccountID  `json:"refund_recipient"`
	Currency        domain.CurrencyID `json:"currency"`
	InitialAmount   uint64            `json:"initial_amount"`
	Amount          uint64            `json:"amount"`
	Target          uint64            `json:"target"`
	StartTime       domain.Height     `json:"start_time"`
	AlwaysForward   bool              `json:"always_forward"`
	InReverseStage  bool              `json:"in_reverse_stage"`
	Bidder          domain.AccountID  `json:"bidder,omitempty"`
	BidPrice        uint64            `json:"bid_price,omitempty"`
	End             *domain.Height    `json:"end,omitempty"`
	Height          domain.Height     `json:"height"`
}

// CreateAuction opens a new collateral auction.
// POST /api/auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RefundRecipient == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "refund_recipient and currency are required")
		return
	}

	id, err := h.auctions.NewCollateralAuction(
		r.Context(),
		domain.AccountID(req.RefundRecipient),
		domain.CurrencyID(req.Currency),
		req.Amount,
		req.Target,
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "amount must be > 0")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create auction failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create auction")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// GetAuction returns one live auction with its current bid state.
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAuctionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	item, err := h.auctions.GetAuction(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotExists) {
			writeError(w, http.StatusNotFound, "auction not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get auction failed",
			slog.Uint64("auction_id", uint64(id)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get auction")
		return
	}

	resp := auctionResponse{
		ID:              id,
		RefundRecipient: item.RefundRecipient,
		Currency:        item.CurrencyID,
		InitialAmount:   item.InitialAmount,
		Amount:          item.Amount,
		Target:          item.Target,
		StartTime:       item.StartTime,
		AlwaysForward:   item.AlwaysForward(),
		Height:          h.bids.Now(),
	}
	if info, err := h.bids.AuctionInfo(r.Context(), id); err == nil {
		resp.End = info.End
		if info.Bid != nil {
			resp.Bidder = info.Bid.Bidder
			resp.BidPrice = info.Bid.Price
			resp.InReverseStage = item.InReverseStage(info.Bid.Price)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// placeBidRequest is the JSON body for placing a bid.
type placeBidRequest struct {
	Bidder string `json:"bidder"`
	Price  uint64 `json:"price"`
}

// PlaceBid submits a bid on a live auction.
// POST /api/auctions/{id}/bids
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAuctionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Bidder == "" {
		writeError(w, http.StatusBadRequest, "bidder is required")
		return
	}

	err := h.bids.Bid(r.Context(), id, domain.AccountID(req.Bidder), req.Price)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuctionNotExists):
			writeError(w, http.StatusNotFound, "auction not found")
		case errors.Is(err, domain.ErrInvalidBidPrice):
			writeError(w, http.StatusUnprocessableEntity, "bid price rejected")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place bid failed",
				slog.Uint64("auction_id", uint64(id)),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place bid")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "accepted",
		"id":     id,
		"price":  req.Price,
	})
}
