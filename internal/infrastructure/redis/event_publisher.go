package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"bidhall/internal/domain"
)

const bidEventsChannel = "auction_events"

// EventPublisher fans confirmed bid events out to other instances over
// Redis pub/sub. Payloads are JSON; channel order preserves per-auction
// publish order because admission serializes publishers per auction.
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, bidEventsChannel, data).Err()
}
