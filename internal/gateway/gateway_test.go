package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhall/internal/domain"
	"bidhall/internal/gateway"
	"bidhall/internal/infrastructure/memory"
	"bidhall/internal/services"
	"bidhall/pkg/logger"
)

type testHarness struct {
	server     *httptest.Server
	store      *memory.Store
	stateCache *memory.StateCache
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	log := logger.New()

	store := memory.NewStore()
	stateCache := memory.NewStateCache()

	registry := services.NewRoomRegistry(log)
	dispatcher := services.NewDispatcher(registry, log)
	listener := services.NewEventListener(dispatcher, "test-instance", log)

	admission := services.NewAdmissionController(
		store, store, nil, listener.Handle, 0, 0, "test-instance", log)

	var seq int64
	gw := gateway.New(
		admission,
		registry,
		stateCache,
		gateway.HeaderIdentityResolver{},
		8,
		func() string { return fmt.Sprintf("sess-%d", atomic.AddInt64(&seq, 1)) },
		log,
	)

	server := httptest.NewServer(http.HandlerFunc(gw.HandleConnection))
	t.Cleanup(server.Close)

	return &testHarness{server: server, store: store, stateCache: stateCache}
}

func (h *testHarness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")

	var header http.Header
	if userID != "" {
		header = http.Header{"X-User-Id": []string{userID}}
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *testHarness) createAuction(t *testing.T, id, startingPrice string) {
	t.Helper()
	err := h.store.CreateAuction(context.Background(), &domain.Auction{
		ID:            id,
		Title:         "test listing",
		ListingType:   domain.ListingAuction,
		StartingPrice: decimal.RequireFromString(startingPrice),
		EndTime:       time.Now().Add(time.Hour),
		Active:        true,
		CreatedBy:     "seller-1",
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readEnvelope reads the next message and returns its type tag plus the
// raw payload for further decoding.
func readEnvelope(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope.Type, data
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no message")
}

func TestGatewayPingPong(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "")

	send(t, conn, domain.ClientMessage{Type: domain.MsgPing})
	typ, _ := readEnvelope(t, conn)
	assert.Equal(t, domain.MsgPong, typ)
}

func TestGatewayBidBroadcastToRoom(t *testing.T) {
	h := newHarness(t)
	h.createAuction(t, "a1", "100")

	bidder := h.dial(t, "alice")
	watcher := h.dial(t, "")

	send(t, bidder, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})
	send(t, watcher, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})

	// Confirm the watcher is in the room before bidding: its ping is
	// answered only after the join was processed.
	send(t, watcher, domain.ClientMessage{Type: domain.MsgPing})
	typ, _ := readEnvelope(t, watcher)
	require.Equal(t, domain.MsgPong, typ)

	send(t, bidder, domain.ClientMessage{
		Type:      domain.MsgPlaceBid,
		AuctionID: "a1",
		Amount:    decimal.RequireFromString("150"),
	})

	for _, conn := range []*websocket.Conn{bidder, watcher} {
		typ, data := readEnvelope(t, conn)
		require.Equal(t, domain.MsgBidAccepted, typ)

		var msg domain.BidAcceptedMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "a1", msg.AuctionID)
		require.NotNil(t, msg.HighestBid)
		assert.Equal(t, "alice", msg.HighestBid.BidderID)
		assert.True(t, msg.HighestBid.Amount.Equal(decimal.RequireFromString("150")))
		require.NotEmpty(t, msg.RecentBids)
	}
}

func TestGatewayRejectionIsUnicast(t *testing.T) {
	h := newHarness(t)
	h.createAuction(t, "a1", "100")

	bidder := h.dial(t, "alice")
	watcher := h.dial(t, "bob")

	send(t, bidder, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})
	send(t, watcher, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})
	send(t, watcher, domain.ClientMessage{Type: domain.MsgPing})
	typ, _ := readEnvelope(t, watcher)
	require.Equal(t, domain.MsgPong, typ)

	// At or below the starting price.
	send(t, bidder, domain.ClientMessage{
		Type:      domain.MsgPlaceBid,
		AuctionID: "a1",
		Amount:    decimal.RequireFromString("100"),
	})

	typ, data := readEnvelope(t, bidder)
	require.Equal(t, domain.MsgBidRejected, typ)

	var msg domain.BidRejectedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, domain.RejectBidTooLow, msg.Reason)

	// Nobody else hears about it.
	expectSilence(t, watcher)
}

func TestGatewayUnauthenticatedBid(t *testing.T) {
	h := newHarness(t)
	h.createAuction(t, "a1", "100")

	anon := h.dial(t, "")
	send(t, anon, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})
	send(t, anon, domain.ClientMessage{
		Type:      domain.MsgPlaceBid,
		AuctionID: "a1",
		Amount:    decimal.RequireFromString("150"),
	})

	typ, data := readEnvelope(t, anon)
	require.Equal(t, domain.MsgBidRejected, typ)

	var msg domain.BidRejectedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, domain.RejectUnauthenticated, msg.Reason)

	// The attempt never reached storage.
	bids, err := h.store.ListBids(context.Background(), "a1", 0)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestGatewayLateJoinerSeesEndedAuction(t *testing.T) {
	h := newHarness(t)
	h.createAuction(t, "a1", "100")
	require.NoError(t, h.stateCache.SetActive(context.Background(), "a1", false))

	conn := h.dial(t, "alice")
	send(t, conn, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})

	typ, data := readEnvelope(t, conn)
	require.Equal(t, domain.MsgAuctionEnded, typ)

	var msg domain.AuctionEndedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "a1", msg.AuctionID)
}

func TestGatewayRoomIsolation(t *testing.T) {
	h := newHarness(t)
	h.createAuction(t, "a1", "100")
	h.createAuction(t, "a2", "100")

	bidder := h.dial(t, "alice")
	elsewhere := h.dial(t, "bob")

	send(t, bidder, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})
	send(t, elsewhere, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a2"})
	send(t, elsewhere, domain.ClientMessage{Type: domain.MsgPing})
	typ, _ := readEnvelope(t, elsewhere)
	require.Equal(t, domain.MsgPong, typ)

	send(t, bidder, domain.ClientMessage{
		Type:      domain.MsgPlaceBid,
		AuctionID: "a1",
		Amount:    decimal.RequireFromString("150"),
	})

	typ, _ = readEnvelope(t, bidder)
	assert.Equal(t, domain.MsgBidAccepted, typ)
	expectSilence(t, elsewhere)
}

func TestGatewayLeaveStopsDelivery(t *testing.T) {
	h := newHarness(t)
	h.createAuction(t, "a1", "100")

	bidder := h.dial(t, "alice")
	leaver := h.dial(t, "bob")

	send(t, bidder, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})
	send(t, leaver, domain.ClientMessage{Type: domain.MsgJoinRoom, AuctionID: "a1"})
	send(t, leaver, domain.ClientMessage{Type: domain.MsgLeaveRoom, AuctionID: "a1"})
	send(t, leaver, domain.ClientMessage{Type: domain.MsgPing})
	typ, _ := readEnvelope(t, leaver)
	require.Equal(t, domain.MsgPong, typ)

	send(t, bidder, domain.ClientMessage{
		Type:      domain.MsgPlaceBid,
		AuctionID: "a1",
		Amount:    decimal.RequireFromString("150"),
	})

	typ, _ = readEnvelope(t, bidder)
	assert.Equal(t, domain.MsgBidAccepted, typ)
	expectSilence(t, leaver)
}

func TestGatewayMalformedMessage(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	typ, data := readEnvelope(t, conn)
	require.Equal(t, domain.MsgError, typ)

	var msg domain.ErrorMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.NotEmpty(t, msg.Message)

	// The connection survives a bad payload.
	send(t, conn, domain.ClientMessage{Type: domain.MsgPing})
	typ, _ = readEnvelope(t, conn)
	assert.Equal(t, domain.MsgPong, typ)
}

func TestGatewayUnknownMessageType(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "alice")

	send(t, conn, domain.ClientMessage{Type: "subscribe"})
	typ, _ := readEnvelope(t, conn)
	assert.Equal(t, domain.MsgError, typ)
}
