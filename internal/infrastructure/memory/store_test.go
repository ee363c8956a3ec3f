package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhall/internal/domain"
	"bidhall/internal/infrastructure/memory"
)

func seedAuction(t *testing.T, s *memory.Store, id string, endIn time.Duration) {
	t.Helper()
	require.NoError(t, s.CreateAuction(context.Background(), &domain.Auction{
		ID:            id,
		ListingType:   domain.ListingAuction,
		StartingPrice: decimal.NewFromInt(10),
		EndTime:       time.Now().Add(endIn),
		Active:        true,
	}))
}

func admitBid(t *testing.T, s *memory.Store, id, bidder string, amount int64) *domain.Rejection {
	t.Helper()
	rej, err := s.AdmitBid(context.Background(), &domain.Bid{
		ID:        bidder + "-" + time.Now().Format("150405.000000000"),
		AuctionID: id,
		BidderID:  bidder,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return rej
}

func TestAdmitBidFloorCheck(t *testing.T) {
	s := memory.NewStore()
	seedAuction(t, s, "a1", time.Hour)
	ctx := context.Background()

	require.Nil(t, admitBid(t, s, "a1", "alice", 20))

	// Equal amount loses against the new floor.
	rej := admitBid(t, s, "a1", "bob", 20)
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectBidTooLow, rej.Reason)

	// Lower amount loses.
	rej = admitBid(t, s, "a1", "bob", 15)
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectBidTooLow, rej.Reason)

	// Only the admitted bid was written.
	a, err := s.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, a.HighestBid)
	assert.Equal(t, "alice", a.HighestBid.BidderID)
	n, err := s.CountBids(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdmitBidClosedAndMissing(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	seedAuction(t, s, "over", -time.Minute)
	rej := admitBid(t, s, "over", "alice", 20)
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectAuctionClosed, rej.Reason)

	seedAuction(t, s, "off", time.Hour)
	require.NoError(t, s.DeactivateAuction(ctx, "off"))
	rej = admitBid(t, s, "off", "alice", 20)
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectAuctionClosed, rej.Reason)

	_, err := s.AdmitBid(ctx, &domain.Bid{AuctionID: "missing", Amount: decimal.NewFromInt(20)})
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestListBidsOrdering(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	base := time.Now()
	rows := []domain.Bid{
		{ID: "b1", AuctionID: "a1", Amount: decimal.NewFromInt(30), CreatedAt: base},
		{ID: "b2", AuctionID: "a1", Amount: decimal.NewFromInt(50), CreatedAt: base.Add(time.Second)},
		{ID: "b3", AuctionID: "a1", Amount: decimal.NewFromInt(50), CreatedAt: base.Add(2 * time.Second)},
		{ID: "b4", AuctionID: "a1", Amount: decimal.NewFromInt(40), CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range rows {
		require.NoError(t, s.AppendBid(ctx, &rows[i]))
	}

	got, err := s.ListBids(ctx, "a1", 0)
	require.NoError(t, err)
	require.Len(t, got, 4)

	// Amount descending, earliest first on ties.
	assert.Equal(t, []string{"b2", "b3", "b4", "b1"},
		[]string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	limited, err := s.ListBids(ctx, "a1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	top, err := s.TopBid(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "b2", top.ID)

	none, err := s.TopBid(ctx, "empty")
	require.NoError(t, err)
	assert.Nil(t, none)

	n, err := s.CountBids(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestListExpiredActive(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	seedAuction(t, s, "live", time.Hour)
	seedAuction(t, s, "over", -time.Minute)
	seedAuction(t, s, "closed", -time.Minute)
	require.NoError(t, s.DeactivateAuction(ctx, "closed"))

	// Fixed-price listings never expire into the sweep.
	require.NoError(t, s.CreateAuction(ctx, &domain.Auction{
		ID:          "sale",
		ListingType: domain.ListingSale,
		EndTime:     time.Now().Add(-time.Minute),
		Active:      true,
	}))

	expired, err := s.ListExpiredActive(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "over", expired[0].ID)
}
