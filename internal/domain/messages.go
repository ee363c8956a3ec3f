package domain

import "github.com/shopspring/decimal"

// Client → server message types.
const (
	MsgJoinRoom  = "join_room"
	MsgLeaveRoom = "leave_room"
	MsgPlaceBid  = "place_bid"
	MsgPing      = "ping"
)

// Server → client message types.
const (
	MsgBidAccepted  = "bid_accepted"
	MsgBidRejected  = "bid_rejected"
	MsgAuctionEnded = "auction_ended"
	MsgPong         = "pong"
)

// ClientMessage is the tagged envelope for every inbound message.
// Payload fields are validated at the gateway before anything reaches
// the admission controller.
type ClientMessage struct {
	Type      string          `json:"type"`
	AuctionID string          `json:"auction_id,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
}

// BidAcceptedMessage is broadcast to the whole room, including the
// bidder; there is no separate direct response channel for the winner.
type BidAcceptedMessage struct {
	Type       string      `json:"type"`
	AuctionID  string      `json:"auction_id"`
	HighestBid *HighestBid `json:"highest_bid"`
	RecentBids []Bid       `json:"recent_bids"`
}

// BidRejectedMessage is unicast to the requesting session only.
type BidRejectedMessage struct {
	Type   string          `json:"type"`
	Reason RejectionReason `json:"reason"`
	Detail string          `json:"detail,omitempty"`
}

// AuctionEndedMessage tells a room the auction stopped accepting bids.
type AuctionEndedMessage struct {
	Type      string `json:"type"`
	AuctionID string `json:"auction_id"`
}

// PongMessage answers a client ping.
type PongMessage struct {
	Type string `json:"type"`
}

// ErrorMessage reports a malformed payload or a server-side failure to
// the requesting session. It carries no rejection reason; reasons are
// reserved for well-formed bid attempts.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MsgError tags ErrorMessage payloads.
const MsgError = "error"
