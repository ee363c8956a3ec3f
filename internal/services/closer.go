package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"bidhall/internal/domain"
	"bidhall/pkg/logger"
)

// CloseSweeper flips expired auctions inactive and announces the end of
// bidding. It runs on every instance but only the current leader acts,
// so a fleet against shared stores closes each auction once. Owner
// deactivation reuses the same path immediately via Deactivate.
type CloseSweeper struct {
	store      domain.AuctionStore
	stateCache domain.AuctionStateCache
	publisher  domain.EventPublisher
	leader     domain.LeaderElection
	local      domain.EventHandler
	cron       *cron.Cron
	interval   time.Duration
	instanceID string
	log        logger.Logger
}

func NewCloseSweeper(
	store domain.AuctionStore,
	stateCache domain.AuctionStateCache,
	publisher domain.EventPublisher,
	leader domain.LeaderElection,
	local domain.EventHandler,
	interval time.Duration,
	instanceID string,
	log logger.Logger,
) *CloseSweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &CloseSweeper{
		store:      store,
		stateCache: stateCache,
		publisher:  publisher,
		leader:     leader,
		local:      local,
		cron:       cron.New(cron.WithSeconds()),
		interval:   interval,
		instanceID: instanceID,
		log:        log,
	}
}

func (s *CloseSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting close sweeper", "interval", s.interval.String())

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CloseSweeper) Stop() error {
	s.log.Info("Stopping close sweeper")
	s.cron.Stop()
	return nil
}

func (s *CloseSweeper) sweep(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Leadership check failed", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	expired, err := s.store.ListExpiredActive(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to list expired auctions", "error", err)
		return
	}

	for _, auction := range expired {
		if err := s.close(ctx, auction.ID); err != nil {
			s.log.Error("Failed to close auction", "auction_id", auction.ID, "error", err)
		}
	}
}

// Deactivate ends bidding immediately, regardless of end time. Used
// when an owner deactivates or deletes a listing so in-flight bids are
// rejected right away. Already-inactive listings are a no-op, and sale
// listings are flipped without announcing auction_ended, so repeated
// deactivations never re-broadcast an end that rooms already saw.
func (s *CloseSweeper) Deactivate(ctx context.Context, auctionID string) error {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if !auction.Active {
		return nil
	}
	if auction.ListingType != domain.ListingAuction {
		if err := s.store.DeactivateAuction(ctx, auctionID); err != nil {
			return err
		}
		if s.stateCache != nil {
			if err := s.stateCache.SetActive(ctx, auctionID, false); err != nil {
				s.log.Error("Failed to update state cache", "auction_id", auctionID, "error", err)
			}
		}
		return nil
	}
	return s.close(ctx, auctionID)
}

func (s *CloseSweeper) close(ctx context.Context, auctionID string) error {
	if err := s.store.DeactivateAuction(ctx, auctionID); err != nil {
		return err
	}

	if s.stateCache != nil {
		if err := s.stateCache.SetActive(ctx, auctionID, false); err != nil {
			s.log.Error("Failed to update state cache", "auction_id", auctionID, "error", err)
		}
	}

	event := &domain.BidEvent{
		Type:       domain.EventAuctionEnded,
		InstanceID: s.instanceID,
		AuctionID:  auctionID,
		Timestamp:  time.Now().UTC(),
	}

	if s.local != nil {
		if err := s.local(event); err != nil {
			s.log.Error("Local end-of-auction broadcast failed", "auction_id", auctionID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBidEvent(ctx, event); err != nil {
			s.log.Error("Failed to publish auction_ended", "auction_id", auctionID, "error", err)
		}
	}

	s.log.Info("Auction closed", "auction_id", auctionID)
	return nil
}
