package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stableloop/auctiond/internal/domain"
)

func TestGetHalt(t *testing.T) {
	h := NewAdminHandler(&mockHalt{halted: true}, &mockPriceFeeder{}, &mockEventHistory{}, discardLogger())

	w := httptest.NewRecorder()
	h.GetHalt(w, request(http.MethodGet, "/api/halt", "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]bool
	decodeBody(t, w, &resp)
	if !resp["halted"] {
		t.Error("halted = false, want true")
	}
}

func TestSetHalt(t *testing.T) {
	halt := &mockHalt{}
	h := NewAdminHandler(halt, &mockPriceFeeder{}, &mockEventHistory{}, discardLogger())

	w := httptest.NewRecorder()
	h.SetHalt(w, request(http.MethodPost, "/api/halt", `{"halted":true}`, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body)
	}
	if !halt.halted {
		t.Error("halt flag not set")
	}

	w = httptest.NewRecorder()
	h.SetHalt(w, request(http.MethodPost, "/api/halt", `{`, ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed body", w.Code)
	}
}

func TestSetPrice(t *testing.T) {
	feeder := &mockPriceFeeder{}
	h := NewAdminHandler(&mockHalt{}, feeder, &mockEventHistory{}, discardLogger())

	w := httptest.NewRecorder()
	h.SetPrice(w, request(http.MethodPost, "/api/prices", `{"currency":"DOT","price":"12.5"}`, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body)
	}
	if len(feeder.fed) != 1 || feeder.fed[0] != "DOT" {
		t.Errorf("fed = %v, want [DOT]", feeder.fed)
	}
	if feeder.last.String() != "12.5" {
		t.Errorf("price = %s, want 12.5", feeder.last)
	}
}

func TestSetPriceBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing currency", `{"price":"1"}`},
		{"non-decimal price", `{"currency":"DOT","price":"cheap"}`},
		{"zero price", `{"currency":"DOT","price":"0"}`},
		{"negative price", `{"currency":"DOT","price":"-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feeder := &mockPriceFeeder{}
			h := NewAdminHandler(&mockHalt{}, feeder, &mockEventHistory{}, discardLogger())

			w := httptest.NewRecorder()
			h.SetPrice(w, request(http.MethodPost, "/api/prices", tt.body, ""))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if len(feeder.fed) != 0 {
				t.Errorf("fed = %v, want none", feeder.fed)
			}
		})
	}
}

func TestListEvents(t *testing.T) {
	history := &mockEventHistory{events: []domain.Event{
		{ID: "a", Type: domain.EventAuctionCreated, AuctionID: 1},
		{ID: "b", Type: domain.EventDealt, AuctionID: 1},
	}}
	h := NewAdminHandler(&mockHalt{}, &mockPriceFeeder{}, history, discardLogger())

	w := httptest.NewRecorder()
	h.ListEvents(w, request(http.MethodGet, "/api/events?after=5-0&limit=10", "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if history.lastAfter != "5-0" || history.lastCount != 10 {
		t.Errorf("history called with (%q, %d), want (5-0, 10)", history.lastAfter, history.lastCount)
	}

	var resp struct {
		Events []domain.Event `json:"events"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Events) != 2 || resp.Events[1].Type != domain.EventDealt {
		t.Errorf("events = %+v", resp.Events)
	}
}

func TestListEventsDefaultsAndCaps(t *testing.T) {
	history := &mockEventHistory{}
	h := NewAdminHandler(&mockHalt{}, &mockPriceFeeder{}, history, discardLogger())

	w := httptest.NewRecorder()
	h.ListEvents(w, request(http.MethodGet, "/api/events", "", ""))
	if history.lastAfter != "0" || history.lastCount != 100 {
		t.Errorf("defaults = (%q, %d), want (0, 100)", history.lastAfter, history.lastCount)
	}

	// An empty history serializes as an empty array, not null.
	if got := w.Body.String(); got != `{"events":[]}` {
		t.Errorf("body = %s, want empty events array", got)
	}

	w = httptest.NewRecorder()
	h.ListEvents(w, request(http.MethodGet, "/api/events?limit=5000", "", ""))
	if history.lastCount != 1000 {
		t.Errorf("limit = %d, want capped at 1000", history.lastCount)
	}
}

func TestListEventsError(t *testing.T) {
	history := &mockEventHistory{err: errors.New("stream unavailable")}
	h := NewAdminHandler(&mockHalt{}, &mockPriceFeeder{}, history, discardLogger())

	w := httptest.NewRecorder()
	h.ListEvents(w, request(http.MethodGet, "/api/events", "", ""))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
