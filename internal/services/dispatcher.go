package services

import (
	"encoding/json"

	"bidhall/internal/domain"
	"bidhall/pkg/logger"
)

// Dispatcher pushes confirmed state changes to every session in an
// auction's room. Delivery is best-effort per recipient: a slow or
// gone session drops its own copy and never blocks the rest. Per-
// auction ordering holds because publishers for one auction are
// serialized upstream and session queues are FIFO.
type Dispatcher struct {
	registry domain.RoomRegistry
	log      logger.Logger
}

func NewDispatcher(registry domain.RoomRegistry, log logger.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log}
}

// Publish marshals the message once and enqueues it to every current
// room member.
func (d *Dispatcher) Publish(auctionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		d.log.Error("Failed to marshal broadcast message", "auction_id", auctionID, "error", err)
		return
	}

	members := d.registry.MembersOf(auctionID)
	for _, s := range members {
		if !s.Enqueue(data) {
			// Recipient's queue is full or closed; skip it.
			d.log.Debug("dropped broadcast for slow session",
				"session_id", s.ID(), "auction_id", auctionID)
		}
	}
}
