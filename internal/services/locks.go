package services

import (
	"context"
	"hash/fnv"
	"sync"
)

// auctionLocks hands out one binary semaphore per auction id so that
// admission is serialized per auction while unrelated auctions proceed
// in parallel. The id→semaphore map is sharded to keep lock churn from
// many auctions off a single mutex. Entries are reference counted and
// removed once the last holder or waiter lets go, so the map tracks
// auctions with inflight attempts rather than every auction ever seen.
type auctionLocks struct {
	shards [lockShards]lockShard
}

const lockShards = 32

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newAuctionLocks() *auctionLocks {
	al := &auctionLocks{}
	for i := range al.shards {
		al.shards[i].locks = make(map[string]*lockEntry)
	}
	return al
}

func shardIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % lockShards)
}

func (al *auctionLocks) checkout(auctionID string) (*lockShard, *lockEntry) {
	shard := &al.shards[shardIndex(auctionID)]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	e, ok := shard.locks[auctionID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		shard.locks[auctionID] = e
	}
	e.refs++
	return shard, e
}

func (shard *lockShard) checkin(auctionID string, e *lockEntry) {
	shard.mu.Lock()
	defer shard.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(shard.locks, auctionID)
	}
}

// Acquire blocks until the auction's semaphore is held or ctx expires.
// Callers must Release on every exit path after a nil return.
func (al *auctionLocks) Acquire(ctx context.Context, auctionID string) error {
	shard, e := al.checkout(auctionID)
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		shard.checkin(auctionID, e)
		return ctx.Err()
	}
}

func (al *auctionLocks) Release(auctionID string) {
	shard := &al.shards[shardIndex(auctionID)]
	shard.mu.Lock()
	e, ok := shard.locks[auctionID]
	shard.mu.Unlock()
	if !ok {
		return
	}
	<-e.sem
	shard.checkin(auctionID, e)
}
