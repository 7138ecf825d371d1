package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stableloop/auctiond/internal/domain"
)

// PriceFeeder accepts operator-fed oracle prices.
type PriceFeeder interface {
	SetPrice(ctx context.Context, currency domain.CurrencyID, price decimal.Decimal, ts time.Time) error
}

// EventHistory reads back the durable event stream.
type EventHistory interface {
	History(ctx context.Context, lastID string, count int) ([]domain.Event, error)
}

// AdminHandler serves operator endpoints: the emergency halt flag, oracle
// price feeds and the event history.
type AdminHandler struct {
	halt   domain.HaltFlag
	prices PriceFeeder
	events EventHistory
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given collaborators.
func NewAdminHandler(halt domain.HaltFlag, prices PriceFeeder, events EventHistory, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		halt:   halt,
		prices: prices,
		events: events,
		logger: logger,
	}
}

// setHaltRequest is the JSON body for flipping the halt flag.
type setHaltRequest struct {
	Halted bool `json:"halted"`
}

// GetHalt returns the current emergency halt state.
// GET /api/halt
func (h *AdminHandler) GetHalt(w http.ResponseWriter, r *http.Request) {
	halted, err := h.halt.IsHalted(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read halt flag failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read halt flag")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"halted": halted})
}

// SetHalt flips the emergency halt state.
// POST /api/halt
func (h *AdminHandler) SetHalt(w http.ResponseWriter, r *http.Request) {
	var req setHaltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.halt.SetHalted(r.Context(), req.Halted); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: set halt flag failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set halt flag")
		return
	}

	h.logger.InfoContext(r.Context(), "halt flag changed", slog.Bool("halted", req.Halted))
	writeJSON(w, http.StatusOK, map[string]bool{"halted": req.Halted})
}

// setPriceRequest is the JSON body for feeding an oracle price.
type setPriceRequest struct {
	Currency string `json:"currency"`
	Price    string `json:"price"`
}

// SetPrice stores an operator-fed oracle price for a currency.
// POST /api/prices
func (h *AdminHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Currency == "" {
		writeError(w, http.StatusBadRequest, "currency is required")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "price must be a decimal string")
		return
	}
	if price.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "price must be > 0")
		return
	}

	if err := h.prices.SetPrice(r.Context(), domain.CurrencyID(req.Currency), price, time.Now().UTC()); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: set price failed",
			slog.String("currency", req.Currency),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set price")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"currency": req.Currency,
		"price":    price.String(),
	})
}

// ListEvents returns events from the durable history stream.
// GET /api/events?after=<stream id>&limit=100
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 1000 {
		limit = 1000
	}

	events, err := h.events.History(r.Context(), after, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
