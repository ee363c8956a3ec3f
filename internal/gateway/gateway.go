// Package gateway accepts viewer connections, manages room membership
// on their behalf, and relays bid attempts to the admission controller.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"bidhall/internal/domain"
	"bidhall/internal/services"
	"bidhall/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Gateway is the session-facing edge of the bidding core.
type Gateway struct {
	admission  *services.AdmissionController
	registry   domain.RoomRegistry
	stateCache domain.AuctionStateCache
	identity   IdentityResolver
	buffer     int
	newID      func() string
	log        logger.Logger
}

func New(
	admission *services.AdmissionController,
	registry domain.RoomRegistry,
	stateCache domain.AuctionStateCache,
	identity IdentityResolver,
	sessionBuffer int,
	newID func() string,
	log logger.Logger,
) *Gateway {
	return &Gateway{
		admission:  admission,
		registry:   registry,
		stateCache: stateCache,
		identity:   identity,
		buffer:     sessionBuffer,
		newID:      newID,
		log:        log,
	}
}

// HandleConnection upgrades the request and runs the session until the
// transport drops. Anonymous connections are accepted; they may join
// rooms and watch, but their bid attempts are rejected at this boundary.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var identity *domain.Identity
	if id, ok := g.identity.Resolve(r); ok {
		identity = &id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	sess := newSession(g.newID(), identity, conn, g.buffer, g.log)
	g.log.Info("session connected", "session_id", sess.ID(), "authenticated", identity != nil)

	go sess.writePump()
	go g.readPump(sess)
}

func (g *Gateway) readPump(sess *Session) {
	defer func() {
		g.registry.LeaveAll(sess)
		sess.Close()
		g.log.Info("session disconnected", "session_id", sess.ID())
	}()

	sess.conn.SetReadDeadline(timeNow().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(timeNow().Add(pongWait))
		return nil
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.sendError(sess, "malformed message")
			continue
		}

		switch msg.Type {
		case domain.MsgJoinRoom:
			g.handleJoin(sess, msg)
		case domain.MsgLeaveRoom:
			g.handleLeave(sess, msg)
		case domain.MsgPlaceBid:
			g.handlePlaceBid(sess, msg)
		case domain.MsgPing:
			g.send(sess, domain.PongMessage{Type: domain.MsgPong})
		default:
			g.sendError(sess, "unknown message type")
		}
	}
}

func (g *Gateway) handleJoin(sess *Session, msg domain.ClientMessage) {
	if msg.AuctionID == "" {
		g.sendError(sess, "auction_id required")
		return
	}

	g.registry.Join(msg.AuctionID, sess)

	// Tell a late joiner right away when bidding already ended.
	if g.stateCache != nil {
		if active, known, err := g.stateCache.IsActive(context.Background(), msg.AuctionID); err == nil && known && !active {
			g.send(sess, domain.AuctionEndedMessage{
				Type:      domain.MsgAuctionEnded,
				AuctionID: msg.AuctionID,
			})
		}
	}
}

func (g *Gateway) handleLeave(sess *Session, msg domain.ClientMessage) {
	if msg.AuctionID == "" {
		g.sendError(sess, "auction_id required")
		return
	}
	g.registry.Leave(msg.AuctionID, sess)
}

func (g *Gateway) handlePlaceBid(sess *Session, msg domain.ClientMessage) {
	if sess.Identity() == nil {
		g.sendRejection(sess, domain.Reject(domain.RejectUnauthenticated, "sign in to bid"))
		return
	}
	if msg.AuctionID == "" {
		g.sendError(sess, "auction_id required")
		return
	}

	_, err := g.admission.AttemptBid(context.Background(), services.AttemptRequest{
		AuctionID:  msg.AuctionID,
		BidderID:   sess.Identity().UserID,
		BidderName: sess.Identity().DisplayName,
		Amount:     msg.Amount,
	})
	if err != nil {
		if rej := domain.AsRejection(err); rej != nil {
			g.sendRejection(sess, rej)
			return
		}
		g.log.Error("Bid attempt failed", "session_id", sess.ID(),
			"auction_id", msg.AuctionID, "error", err)
		g.sendError(sess, "a server error occurred while placing your bid")
		return
	}
	// Success reaches the bidder through the room broadcast.
}

// sendRejection unicasts the reason to the requesting session only.
// Rejections are expected outcomes of racing bidders, not errors.
func (g *Gateway) sendRejection(sess *Session, rej *domain.Rejection) {
	g.log.Debug("bid rejected", "session_id", sess.ID(), "reason", rej.Reason)
	g.send(sess, domain.BidRejectedMessage{
		Type:   domain.MsgBidRejected,
		Reason: rej.Reason,
		Detail: rej.Detail,
	})
}

func (g *Gateway) sendError(sess *Session, message string) {
	g.send(sess, domain.ErrorMessage{Type: domain.MsgError, Message: message})
}

func (g *Gateway) send(sess *Session, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		g.log.Error("Failed to marshal message", "error", err)
		return
	}
	if !sess.Enqueue(data) {
		g.log.Debug("dropped unicast for slow session", "session_id", sess.ID())
	}
}
