package services

import (
	"context"
	"fmt"

	"bidhall/internal/domain"
	"bidhall/pkg/logger"
)

// EventListener turns confirmed bid events into room broadcasts. The
// admission controller feeds it locally admitted events in order; the
// subscriber feeds it events admitted on other instances, skipping the
// ones this instance already handled.
type EventListener struct {
	dispatcher domain.Broadcaster
	instanceID string
	log        logger.Logger
}

func NewEventListener(dispatcher domain.Broadcaster, instanceID string, log logger.Logger) *EventListener {
	return &EventListener{
		dispatcher: dispatcher,
		instanceID: instanceID,
		log:        log,
	}
}

// Start consumes the cross-instance event stream until ctx ends.
func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener", "instance_id", el.instanceID)
	return subscriber.SubscribeToBidEvents(ctx, el.handleRemote)
}

func (el *EventListener) handleRemote(event *domain.BidEvent) error {
	if event.InstanceID == el.instanceID {
		// Already broadcast on the admission path.
		return nil
	}
	return el.Handle(event)
}

// Handle broadcasts one confirmed event to the auction's room.
func (el *EventListener) Handle(event *domain.BidEvent) error {
	switch event.Type {
	case domain.EventBidAccepted:
		el.dispatcher.Publish(event.AuctionID, domain.BidAcceptedMessage{
			Type:       domain.MsgBidAccepted,
			AuctionID:  event.AuctionID,
			HighestBid: event.HighestBid,
			RecentBids: event.RecentBids,
		})
		return nil
	case domain.EventAuctionEnded:
		el.dispatcher.Publish(event.AuctionID, domain.AuctionEndedMessage{
			Type:      domain.MsgAuctionEnded,
			AuctionID: event.AuctionID,
		})
		return nil
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}
