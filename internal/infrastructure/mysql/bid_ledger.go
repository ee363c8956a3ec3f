package mysql

import (
	"context"
	"database/sql"
	"errors"

	"bidhall/internal/domain"
)

// BidLedger reads the append-only bid history. Rows are written only
// inside AuctionStore.AdmitBid's transaction, never here, and are
// never updated or deleted.
type BidLedger struct {
	db *sql.DB
}

func NewBidLedger(db *sql.DB) *BidLedger {
	return &BidLedger{db: db}
}

func (l *BidLedger) ListBids(ctx context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, bidder_name, amount, created_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC, created_at ASC
    `
	args := []interface{}{auctionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &b.CreatedAt); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (l *BidLedger) CountBids(ctx context.Context, auctionID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = ?`, auctionID).Scan(&n)
	return n, err
}

func (l *BidLedger) TopBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, bidder_name, amount, created_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC, created_at ASC
        LIMIT 1
    `

	var b domain.Bid
	err := l.db.QueryRowContext(ctx, query, auctionID).Scan(
		&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}
