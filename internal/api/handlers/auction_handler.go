package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"bidhall/internal/domain"
	"bidhall/internal/services"
	"bidhall/pkg/logger"
	"bidhall/pkg/utils"
)

// AuctionHandler serves the listing-facing REST edge: creating
// auctions, reading an auction with its recent bids, the full bid
// ledger, and owner deactivation.
type AuctionHandler struct {
	store      domain.AuctionStore
	ledger     domain.BidLedger
	stateCache domain.AuctionStateCache
	sweeper    *services.CloseSweeper
	log        logger.Logger
}

func NewAuctionHandler(
	store domain.AuctionStore,
	ledger domain.BidLedger,
	stateCache domain.AuctionStateCache,
	sweeper *services.CloseSweeper,
	log logger.Logger,
) *AuctionHandler {
	return &AuctionHandler{
		store:      store,
		ledger:     ledger,
		stateCache: stateCache,
		sweeper:    sweeper,
		log:        log,
	}
}

type CreateAuctionRequest struct {
	Title         string          `json:"title"`
	ListingType   string          `json:"listing_type"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndTime       time.Time       `json:"end_time"`
}

type GetAuctionResponse struct {
	Auction    *domain.Auction `json:"auction"`
	RecentBids []domain.Bid    `json:"recent_bids"`
	TotalBids  int             `json:"total_bids"`
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	createdBy := c.Request().Header.Get("X-User-Id")
	if createdBy == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Verified identity required"})
	}

	listingType := domain.ListingType(req.ListingType)
	if listingType != domain.ListingAuction && listingType != domain.ListingSale {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "listing_type must be auction or sale"})
	}
	if req.StartingPrice.IsNegative() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Starting price must not be negative"})
	}
	if listingType == domain.ListingAuction && !req.EndTime.After(time.Now()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "End time must be in the future"})
	}

	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		Title:         req.Title,
		ListingType:   listingType,
		StartingPrice: req.StartingPrice,
		EndTime:       req.EndTime,
		Active:        true,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.CreateAuction(c.Request().Context(), auction); err != nil {
		h.log.Error("Failed to create auction", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create auction"})
	}

	if h.stateCache != nil {
		if err := h.stateCache.SetActive(c.Request().Context(), auction.ID, true); err != nil {
			h.log.Error("Failed to warm state cache", "auction_id", auction.ID, "error", err)
		}
	}

	h.log.Info("Auction created", "auction_id", auction.ID, "created_by", createdBy)
	return c.JSON(http.StatusCreated, auction)
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.store.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load auction"})
	}

	recent, err := h.ledger.ListBids(c.Request().Context(), auctionID, 5)
	if err != nil {
		h.log.Error("Failed to load recent bids", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load bids"})
	}

	total, err := h.ledger.CountBids(c.Request().Context(), auctionID)
	if err != nil {
		h.log.Error("Failed to count bids", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load bids"})
	}

	return c.JSON(http.StatusOK, GetAuctionResponse{Auction: auction, RecentBids: recent, TotalBids: total})
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	auctionID := c.Param("id")

	if _, err := h.store.GetAuction(c.Request().Context(), auctionID); err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load auction"})
	}

	bids, err := h.ledger.ListBids(c.Request().Context(), auctionID, 0)
	if err != nil {
		h.log.Error("Failed to list bids", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list bids"})
	}
	if bids == nil {
		bids = []domain.Bid{}
	}

	return c.JSON(http.StatusOK, bids)
}

// Deactivate flips the listing inactive so in-flight bids reject
// immediately, and announces the end of bidding to the room.
func (h *AuctionHandler) Deactivate(c echo.Context) error {
	auctionID := c.Param("id")

	if err := h.sweeper.Deactivate(c.Request().Context(), auctionID); err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
		}
		h.log.Error("Failed to deactivate auction", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to deactivate auction"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Auction deactivated"})
}
