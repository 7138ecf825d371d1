package domain

import (
	"math"
	"testing"
)

func TestAlwaysForward(t *testing.T) {
	tests := []struct {
		name     string
		target   uint64
		expected bool
	}{
		{"zero target", 0, true},
		{"nonzero target", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := CollateralAuctionItem{Amount: 10, Target: tt.target}
			if got := item.AlwaysForward(); got != tt.expected {
				t.Errorf("AlwaysForward() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestInReverseStage(t *testing.T) {
	tests := []struct {
		name     string
		target   uint64
		bidPrice uint64
		expected bool
	}{
		{"below target", 100, 99, false},
		{"at target", 100, 100, true},
		{"above target", 100, 150, true},
		{"always forward never reverses", 0, math.MaxUint64, false},
		{"zero bid", 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := CollateralAuctionItem{Amount: 10, Target: tt.target}
			if got := item.InReverseStage(tt.bidPrice); got != tt.expected {
				t.Errorf("InReverseStage(%d) = %v, want %v", tt.bidPrice, got, tt.expected)
			}
		})
	}
}

func TestPaymentAmount(t *testing.T) {
	tests := []struct {
		name     string
		target   uint64
		bidPrice uint64
		expected uint64
	}{
		{"below target pays full price", 100, 80, 80},
		{"at target pays target", 100, 100, 100},
		{"above target capped at target", 100, 250, 100},
		{"always forward pays full price", 0, 250, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := CollateralAuctionItem{Amount: 10, Target: tt.target}
			if got := item.PaymentAmount(tt.bidPrice); got != tt.expected {
				t.Errorf("PaymentAmount(%d) = %d, want %d", tt.bidPrice, got, tt.expected)
			}
		})
	}
}

func TestCollateralAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		target   uint64
		lastBid  uint64
		newBid   uint64
		expected uint64
	}{
		{"forward stage unchanged", 100, 200, 50, 100, 100},
		{"bid at target is the boundary", 1000, 500, 0, 500, 1000},
		{"entering reverse anchors at target", 100, 200, 100, 400, 50},
		{"within reverse anchors at last price", 100, 200, 400, 800, 50},
		{"truncates toward zero", 100, 200, 200, 300, 66},
		{"equal price unchanged", 100, 200, 200, 200, 100},
		{"always forward unchanged", 100, 0, 50, 1000, 100},
		{"huge prices do not overflow", math.MaxUint64, 1, 1, math.MaxUint64, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := CollateralAuctionItem{Amount: tt.amount, Target: tt.target}
			if got := item.CollateralAmount(tt.lastBid, tt.newBid); got != tt.expected {
				t.Errorf("CollateralAmount(%d, %d) = %d, want %d", tt.lastBid, tt.newBid, got, tt.expected)
			}
		})
	}
}

func TestCollateralAmountOnlyShrinks(t *testing.T) {
	item := CollateralAuctionItem{Amount: 100, Target: 200}
	prev := item.Amount
	for _, price := range []uint64{200, 250, 400, 1000, 100000} {
		got := item.CollateralAmount(0, price)
		if got > prev {
			t.Fatalf("CollateralAmount grew from %d to %d at price %d", prev, got, price)
		}
		prev = got
	}
}
