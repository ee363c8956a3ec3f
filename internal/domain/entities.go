package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingType distinguishes competitive auctions from fixed-price sales.
// Only auction listings accept bids.
type ListingType string

const (
	ListingAuction ListingType = "auction"
	ListingSale    ListingType = "sale"
)

// HighestBid is the denormalized winning-bid snapshot stored on the
// auction record. The bid ledger remains the source of truth for the
// current floor; this field exists for cheap reads.
type HighestBid struct {
	Amount     decimal.Decimal `json:"amount"`
	BidderID   string          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	At         time.Time       `json:"timestamp"`
}

// Auction is the bidding-relevant subset of a listing.
type Auction struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	ListingType   ListingType     `json:"listing_type"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	HighestBid    *HighestBid     `json:"highest_bid,omitempty"`
	EndTime       time.Time       `json:"end_time"`
	Active        bool            `json:"active"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Biddable reports whether the auction can accept a bid at the given
// instant. It does not check the amount.
func (a *Auction) Biddable(now time.Time) bool {
	return a.Active && now.Before(a.EndTime)
}

// Floor returns the minimum amount a new bid must strictly exceed:
// the current highest bid, or the starting price if there is none.
func (a *Auction) Floor() decimal.Decimal {
	if a.HighestBid != nil && a.HighestBid.Amount.GreaterThan(a.StartingPrice) {
		return a.HighestBid.Amount
	}
	return a.StartingPrice
}

// Bid is one append-only ledger row. Immutable once created.
type Bid struct {
	ID         string          `json:"id"`
	AuctionID  string          `json:"auction_id"`
	BidderID   string          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

type BidEventType string

const (
	EventBidAccepted  BidEventType = "bid_accepted"
	EventAuctionEnded BidEventType = "auction_ended"
)

// BidEvent is the confirmed state change fanned out to auction rooms
// and published across instances.
type BidEvent struct {
	Type       BidEventType `json:"type"`
	InstanceID string       `json:"instance_id"`
	AuctionID  string       `json:"auction_id"`
	Bid        *Bid         `json:"bid,omitempty"`
	HighestBid *HighestBid  `json:"highest_bid,omitempty"`
	RecentBids []Bid        `json:"recent_bids,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Identity is a verified user as supplied by the identity collaborator.
// The bidding core never authenticates directly.
type Identity struct {
	UserID      string
	DisplayName string
}
