package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// StateCache holds the per-auction active flag so the gateway can
// pre-check joins without hitting MySQL. The record store stays the
// source of truth; the admission controller rereads it under the lock.
type StateCache struct {
	client *redis.Client
}

func NewStateCache(client *redis.Client) *StateCache {
	return &StateCache{client: client}
}

func stateKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:active", auctionID)
}

func (c *StateCache) SetActive(ctx context.Context, auctionID string, active bool) error {
	val := "0"
	if active {
		val = "1"
	}
	return c.client.Set(ctx, stateKey(auctionID), val, 0).Err()
}

func (c *StateCache) IsActive(ctx context.Context, auctionID string) (bool, bool, error) {
	result, err := c.client.Get(ctx, stateKey(auctionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}
	return result == "1", true, nil
}
