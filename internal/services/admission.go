package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bidhall/internal/domain"
	"bidhall/pkg/logger"
	"bidhall/pkg/utils"
)

// AttemptRequest is one bid attempt from a verified identity.
type AttemptRequest struct {
	AuctionID  string
	BidderID   string
	BidderName string
	Amount     decimal.Decimal
}

// AdmittedBid is the outcome of a successful attempt.
type AdmittedBid struct {
	AuctionID  string
	Bid        domain.Bid
	NewFloor   decimal.Decimal
	RecentBids []domain.Bid
}

// AdmissionController validates and admits bid attempts. The
// cross-process serialization point is AuctionStore.AdmitBid, which
// re-checks the floor and writes the ledger row plus the record
// snapshot atomically; the in-process per-auction lock only bounds how
// long attempts from this instance queue against one auction, and
// keeps local delivery order matching admission order.
//
// The floor read before AdmitBid is a cheap pre-check so obviously
// losing bids are rejected without taking the store's row lock; the
// store recomputes it under the lock before admitting.
type AdmissionController struct {
	store       domain.AuctionStore
	ledger      domain.BidLedger
	publisher   domain.EventPublisher
	onAdmitted  domain.EventHandler
	locks       *auctionLocks
	lockTimeout time.Duration
	recentBids  int
	instanceID  string
	now         func() time.Time
	log         logger.Logger
}

// NewAdmissionController wires the controller. publisher may be nil
// when running single-instance; onAdmitted receives every admitted
// event synchronously, in admission order, for local broadcast.
func NewAdmissionController(
	store domain.AuctionStore,
	ledger domain.BidLedger,
	publisher domain.EventPublisher,
	onAdmitted domain.EventHandler,
	lockTimeout time.Duration,
	recentBids int,
	instanceID string,
	log logger.Logger,
) *AdmissionController {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	if recentBids <= 0 {
		recentBids = 10
	}
	return &AdmissionController{
		store:       store,
		ledger:      ledger,
		publisher:   publisher,
		onAdmitted:  onAdmitted,
		locks:       newAuctionLocks(),
		lockTimeout: lockTimeout,
		recentBids:  recentBids,
		instanceID:  instanceID,
		now:         time.Now,
		log:         log,
	}
}

// AttemptBid validates and admits or rejects one bid attempt. A
// returned *domain.Rejection is an expected bidder-visible outcome;
// any other error is a storage failure with no partial state applied.
func (c *AdmissionController) AttemptBid(ctx context.Context, req AttemptRequest) (*AdmittedBid, error) {
	lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()
	if err := c.locks.Acquire(lockCtx, req.AuctionID); err != nil {
		return nil, domain.Reject(domain.RejectTimeout, "auction is busy, try again")
	}
	defer c.locks.Release(req.AuctionID)

	auction, err := c.store.GetAuction(ctx, req.AuctionID)
	if err != nil {
		if err == domain.ErrAuctionNotFound {
			return nil, domain.Reject(domain.RejectNotFound, "no such auction")
		}
		return nil, fmt.Errorf("admission: load auction %s: %w", req.AuctionID, err)
	}

	if !auction.Biddable(c.now()) {
		return nil, domain.Reject(domain.RejectAuctionClosed, "auction is no longer accepting bids")
	}

	if auction.ListingType != domain.ListingAuction {
		return nil, domain.Reject(domain.RejectNotBiddable, "listing is not an auction")
	}

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Reject(domain.RejectInvalidAmount, "amount must be positive")
	}

	floor, err := c.currentFloor(ctx, auction)
	if err != nil {
		return nil, fmt.Errorf("admission: read floor for %s: %w", req.AuctionID, err)
	}
	if req.Amount.LessThanOrEqual(floor) {
		return nil, domain.Reject(domain.RejectBidTooLow,
			"bid must exceed "+floor.StringFixed(2))
	}

	bid := domain.Bid{
		ID:         utils.GenerateID("bid"),
		AuctionID:  req.AuctionID,
		BidderID:   req.BidderID,
		BidderName: req.BidderName,
		Amount:     req.Amount,
		CreatedAt:  c.now().UTC(),
	}

	// The store re-checks the floor under its own lock before writing,
	// so a concurrent admission on another instance surfaces here as a
	// rejection rather than a double admit.
	rej, err := c.store.AdmitBid(ctx, &bid)
	if err != nil {
		if err == domain.ErrAuctionNotFound {
			return nil, domain.Reject(domain.RejectNotFound, "no such auction")
		}
		return nil, fmt.Errorf("admission: admit bid for %s: %w", req.AuctionID, err)
	}
	if rej != nil {
		return nil, rej
	}

	recent, err := c.ledger.ListBids(ctx, req.AuctionID, c.recentBids)
	if err != nil {
		c.log.Error("Failed to read recent bids", "auction_id", req.AuctionID, "error", err)
		recent = []domain.Bid{bid}
	}

	admitted := &AdmittedBid{
		AuctionID:  req.AuctionID,
		Bid:        bid,
		NewFloor:   bid.Amount,
		RecentBids: recent,
	}

	// Emit while still holding the lock so room delivery order matches
	// admission order.
	c.emit(ctx, admitted)

	return admitted, nil
}

func (c *AdmissionController) emit(ctx context.Context, admitted *AdmittedBid) {
	event := &domain.BidEvent{
		Type:       domain.EventBidAccepted,
		InstanceID: c.instanceID,
		AuctionID:  admitted.AuctionID,
		Bid:        &admitted.Bid,
		HighestBid: &domain.HighestBid{
			Amount:     admitted.Bid.Amount,
			BidderID:   admitted.Bid.BidderID,
			BidderName: admitted.Bid.BidderName,
			At:         admitted.Bid.CreatedAt,
		},
		RecentBids: admitted.RecentBids,
		Timestamp:  admitted.Bid.CreatedAt,
	}

	if c.onAdmitted != nil {
		if err := c.onAdmitted(event); err != nil {
			c.log.Error("Local bid event handler failed",
				"auction_id", admitted.AuctionID, "error", err)
		}
	}

	// The bid is already committed; a lost cross-instance publish is an
	// operational problem, not a rejection.
	if c.publisher != nil {
		if err := c.publisher.PublishBidEvent(ctx, event); err != nil {
			c.log.Error("Failed to publish bid event",
				"auction_id", admitted.AuctionID, "error", err)
		}
	}
}

// currentFloor recomputes the floor as max over the ledger, falling
// back to the starting price when no bids exist.
func (c *AdmissionController) currentFloor(ctx context.Context, auction *domain.Auction) (decimal.Decimal, error) {
	top, err := c.ledger.TopBid(ctx, auction.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if top != nil && top.Amount.GreaterThan(auction.StartingPrice) {
		return top.Amount, nil
	}
	return auction.StartingPrice, nil
}
