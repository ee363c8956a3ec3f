package domain

import (
	"context"
	"time"
)

// AuctionStore is the durable auction record store. AdmitBid is the
// serialization point shared by every process writing the same store:
// it must re-check the floor and persist the ledger row plus the
// highest-bid snapshot as one atomic unit, so two writers can never
// both admit against the same floor.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	// AdmitBid re-validates the bid against the live record and, when
	// it still exceeds the floor, appends it to the ledger and updates
	// the snapshot atomically. A non-nil Rejection means another writer
	// won the race or the auction closed meanwhile; nothing was written.
	AdmitBid(ctx context.Context, bid *Bid) (*Rejection, error)
	DeactivateAuction(ctx context.Context, auctionID string) error
	// ListExpiredActive returns active auction listings whose end time
	// has passed; fixed-price listings are never returned.
	ListExpiredActive(ctx context.Context, asOf time.Time) ([]*Auction, error)
}

// BidLedger reads the append-only bid history. Rows enter the ledger
// only through AuctionStore.AdmitBid, so readers never see a bid that
// lost its floor check.
type BidLedger interface {
	// ListBids returns bids for one auction ordered by amount
	// descending, earliest-first on equal amounts. limit <= 0 means all.
	ListBids(ctx context.Context, auctionID string, limit int) ([]Bid, error)
	// TopBid returns the maximum bid for the auction, or nil if none.
	TopBid(ctx context.Context, auctionID string) (*Bid, error)
	CountBids(ctx context.Context, auctionID string) (int, error)
}

// AuctionStateCache caches the active flag so hot paths can pre-check
// without a round trip to the record store.
type AuctionStateCache interface {
	SetActive(ctx context.Context, auctionID string, active bool) error
	// IsActive reports the cached flag; known is false on cache miss.
	IsActive(ctx context.Context, auctionID string) (active bool, known bool, err error)
}

// Session is one live viewer connection. Enqueue must never block: a
// slow consumer drops its own messages, not anyone else's.
type Session interface {
	ID() string
	Identity() *Identity
	Enqueue(data []byte) bool
	Close() error
}

// RoomRegistry tracks which sessions are watching which auction.
type RoomRegistry interface {
	Join(auctionID string, s Session)
	Leave(auctionID string, s Session)
	LeaveAll(s Session)
	MembersOf(auctionID string) []Session
}

// Broadcaster fans a message out to every member of an auction room.
type Broadcaster interface {
	Publish(auctionID string, message interface{})
}

type EventHandler func(event *BidEvent) error

// EventPublisher and EventSubscriber carry confirmed bid events across
// service instances.
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

// LeaderElection gates singleton background work (the close sweeper)
// when multiple instances run against the same stores.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
