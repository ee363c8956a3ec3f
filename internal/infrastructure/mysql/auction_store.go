package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bidhall/internal/domain"
)

// AuctionStore is the durable auction record store. AdmitBid locks the
// auction row for the duration of the floor check and both writes, so
// racing writers from any number of processes are serialized by the
// database itself.
type AuctionStore struct {
	db *sql.DB
}

func NewAuctionStore(db *sql.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

func (s *AuctionStore) CreateAuction(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions
            (id, title, listing_type, starting_price, end_time, active, created_by, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Title, string(a.ListingType), a.StartingPrice,
		a.EndTime, a.Active, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `
        SELECT id, title, listing_type, starting_price,
               highest_amount, highest_bidder_id, highest_bidder_name, highest_at,
               end_time, active, created_by, created_at, updated_at
        FROM auctions WHERE id = ?
    `

	var (
		a           domain.Auction
		listingType string
		highestAmt  decimal.NullDecimal
		highestID   sql.NullString
		highestName sql.NullString
		highestAt   sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, auctionID).Scan(
		&a.ID, &a.Title, &listingType, &a.StartingPrice,
		&highestAmt, &highestID, &highestName, &highestAt,
		&a.EndTime, &a.Active, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	a.ListingType = domain.ListingType(listingType)
	if highestAmt.Valid {
		a.HighestBid = &domain.HighestBid{
			Amount:     highestAmt.Decimal,
			BidderID:   highestID.String,
			BidderName: highestName.String,
			At:         highestAt.Time,
		}
	}
	return &a, nil
}

// AdmitBid is the cross-process serialization point. SELECT ... FOR
// UPDATE pins the auction row, the floor is recomputed from the ledger
// under that lock, and the ledger append plus snapshot update commit
// together or not at all.
func (s *AuctionStore) AdmitBid(ctx context.Context, bid *domain.Bid) (*domain.Rejection, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		startingPrice decimal.Decimal
		highestAmt    decimal.NullDecimal
		active        bool
		endTime       time.Time
	)
	err = tx.QueryRowContext(ctx, `
        SELECT starting_price, highest_amount, active, end_time
        FROM auctions WHERE id = ? FOR UPDATE
    `, bid.AuctionID).Scan(&startingPrice, &highestAmt, &active, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	if !active || !time.Now().Before(endTime) {
		return domain.Reject(domain.RejectAuctionClosed, "auction is no longer accepting bids"), nil
	}

	var topAmt decimal.NullDecimal
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(amount) FROM bids WHERE auction_id = ?`, bid.AuctionID).Scan(&topAmt)
	if err != nil {
		return nil, err
	}

	floor := startingPrice
	if topAmt.Valid && topAmt.Decimal.GreaterThan(floor) {
		floor = topAmt.Decimal
	}
	if highestAmt.Valid && highestAmt.Decimal.GreaterThan(floor) {
		floor = highestAmt.Decimal
	}
	if !bid.Amount.GreaterThan(floor) {
		return domain.Reject(domain.RejectBidTooLow, "bid must exceed "+floor.StringFixed(2)), nil
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO bids (id, auction_id, bidder_id, bidder_name, amount, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, bid.ID, bid.AuctionID, bid.BidderID, bid.BidderName, bid.Amount, bid.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE auctions
        SET highest_amount = ?, highest_bidder_id = ?, highest_bidder_name = ?,
            highest_at = ?, updated_at = ?
        WHERE id = ?
    `, bid.Amount, bid.BidderID, bid.BidderName, bid.CreatedAt, time.Now(), bid.AuctionID)
	if err != nil {
		return nil, err
	}

	return nil, tx.Commit()
}

func (s *AuctionStore) DeactivateAuction(ctx context.Context, auctionID string) error {
	query := `UPDATE auctions SET active = 0, updated_at = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, time.Now(), auctionID)
	return err
}

func (s *AuctionStore) ListExpiredActive(ctx context.Context, asOf time.Time) ([]*domain.Auction, error) {
	query := `
        SELECT id, title, listing_type, starting_price,
               highest_amount, highest_bidder_id, highest_bidder_name, highest_at,
               end_time, active, created_by, created_at, updated_at
        FROM auctions WHERE active = 1 AND listing_type = 'auction' AND end_time <= ?
    `

	rows, err := s.db.QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		var (
			a           domain.Auction
			listingType string
			highestAmt  decimal.NullDecimal
			highestID   sql.NullString
			highestName sql.NullString
			highestAt   sql.NullTime
		)
		err := rows.Scan(
			&a.ID, &a.Title, &listingType, &a.StartingPrice,
			&highestAmt, &highestID, &highestName, &highestAt,
			&a.EndTime, &a.Active, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		a.ListingType = domain.ListingType(listingType)
		if highestAmt.Valid {
			a.HighestBid = &domain.HighestBid{
				Amount:     highestAmt.Decimal,
				BidderID:   highestID.String,
				BidderName: highestName.String,
				At:         highestAt.Time,
			}
		}
		auctions = append(auctions, &a)
	}
	return auctions, rows.Err()
}
