// Package memory provides in-memory implementations of the auction
// record store and bid ledger for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bidhall/internal/domain"
)

// Store keeps auction records and the bid ledger in process memory
// with the same semantics as the MySQL implementations, including the
// atomic floor-check-and-write in AdmitBid.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	bids     map[string][]domain.Bid // auctionID -> ledger rows
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string][]domain.Bid),
	}
}

func (s *Store) CreateAuction(_ context.Context, a *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.auctions[a.ID] = &cp
	return nil
}

func (s *Store) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	cp := *a
	if a.HighestBid != nil {
		hb := *a.HighestBid
		cp.HighestBid = &hb
	}
	return &cp, nil
}

// AdmitBid holds the store mutex across the floor check and both
// writes, mirroring the MySQL row lock: every controller sharing this
// store is serialized here regardless of its own locking.
func (s *Store) AdmitBid(_ context.Context, bid *domain.Bid) (*domain.Rejection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[bid.AuctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	if !a.Active || !time.Now().Before(a.EndTime) {
		return domain.Reject(domain.RejectAuctionClosed, "auction is no longer accepting bids"), nil
	}

	floor := a.StartingPrice
	for _, b := range s.bids[bid.AuctionID] {
		if b.Amount.GreaterThan(floor) {
			floor = b.Amount
		}
	}
	if a.HighestBid != nil && a.HighestBid.Amount.GreaterThan(floor) {
		floor = a.HighestBid.Amount
	}
	if !bid.Amount.GreaterThan(floor) {
		return domain.Reject(domain.RejectBidTooLow, "bid must exceed "+floor.StringFixed(2)), nil
	}

	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], *bid)
	a.HighestBid = &domain.HighestBid{
		Amount:     bid.Amount,
		BidderID:   bid.BidderID,
		BidderName: bid.BidderName,
		At:         bid.CreatedAt,
	}
	a.UpdatedAt = time.Now()
	return nil, nil
}

func (s *Store) DeactivateAuction(_ context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	a.Active = false
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ListExpiredActive(_ context.Context, asOf time.Time) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*domain.Auction
	for _, a := range s.auctions {
		if a.Active && a.ListingType == domain.ListingAuction && !a.EndTime.After(asOf) {
			cp := *a
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

// AppendBid seeds ledger rows directly, bypassing the floor check.
// Tests use it to stage history; admitted bids go through AdmitBid.
func (s *Store) AppendBid(_ context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], *bid)
	return nil
}

func (s *Store) ListBids(_ context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	s.mu.RLock()
	rows := make([]domain.Bid, len(s.bids[auctionID]))
	copy(rows, s.bids[auctionID])
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Amount.Equal(rows[j].Amount) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].Amount.GreaterThan(rows[j].Amount)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) CountBids(_ context.Context, auctionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bids[auctionID]), nil
}

func (s *Store) TopBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	rows, err := s.ListBids(ctx, auctionID, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// StateCache is the in-memory counterpart of the Redis active-flag
// cache.
type StateCache struct {
	mu     sync.RWMutex
	active map[string]bool
}

func NewStateCache() *StateCache {
	return &StateCache{active: make(map[string]bool)}
}

func (c *StateCache) SetActive(_ context.Context, auctionID string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[auctionID] = active
	return nil
}

func (c *StateCache) IsActive(_ context.Context, auctionID string) (bool, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	active, known := c.active[auctionID]
	return active, known, nil
}
