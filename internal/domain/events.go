package domain

import "time"

// Event types published on auction lifecycle transitions.
const (
	EventAuctionCreated = "auction_created"
	EventDEXSettled     = "dex_settled"
	EventDealt          = "dealt"
	EventAborted        = "aborted"
	EventCancelled      = "cancelled"
)

// Event is one auction lifecycle event. Fields that do not apply to the
// event type are zero and omitted from the JSON encoding.
type Event struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Time      time.Time  `json:"time"`
	AuctionID AuctionID  `json:"auction_id"`
	Currency  CurrencyID `json:"currency,omitempty"`
	Amount    uint64     `json:"amount,omitempty"`
	Target    uint64     `json:"target,omitempty"`
	Supplied  uint64     `json:"supplied,omitempty"`
	Received  uint64     `json:"received,omitempty"`
	Payment   uint64     `json:"payment,omitempty"`
	Winner    AccountID  `json:"winner,omitempty"`
	Recipient AccountID  `json:"recipient,omitempty"`
}
