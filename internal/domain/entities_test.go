package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhall/internal/domain"
)

func TestAuctionBiddable(t *testing.T) {
	now := time.Now()
	a := &domain.Auction{Active: true, EndTime: now.Add(time.Minute)}

	assert.True(t, a.Biddable(now))
	assert.False(t, a.Biddable(now.Add(time.Minute)), "end time itself is closed")
	assert.False(t, a.Biddable(now.Add(2*time.Minute)))

	a.Active = false
	assert.False(t, a.Biddable(now))
}

func TestAuctionFloor(t *testing.T) {
	a := &domain.Auction{StartingPrice: decimal.NewFromInt(100)}
	assert.True(t, a.Floor().Equal(decimal.NewFromInt(100)))

	a.HighestBid = &domain.HighestBid{Amount: decimal.NewFromInt(150)}
	assert.True(t, a.Floor().Equal(decimal.NewFromInt(150)))

	// A stale snapshot below the starting price never lowers the floor.
	a.HighestBid = &domain.HighestBid{Amount: decimal.NewFromInt(50)}
	assert.True(t, a.Floor().Equal(decimal.NewFromInt(100)))
}

func TestAsRejection(t *testing.T) {
	rej := domain.Reject(domain.RejectBidTooLow, "bid must exceed 100.00")

	got := domain.AsRejection(rej)
	require.NotNil(t, got)
	assert.Equal(t, domain.RejectBidTooLow, got.Reason)
	assert.Contains(t, rej.Error(), "BidTooLow")

	// Wrapping survives.
	wrapped := fmt.Errorf("placing bid: %w", rej)
	require.NotNil(t, domain.AsRejection(wrapped))

	// Operational errors are not rejections.
	assert.Nil(t, domain.AsRejection(errors.New("connection refused")))
	assert.Nil(t, domain.AsRejection(domain.ErrAuctionNotFound))
}
