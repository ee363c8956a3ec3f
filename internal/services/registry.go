package services

import (
	"hash/fnv"
	"sync"

	"bidhall/internal/domain"
	"bidhall/pkg/logger"
)

// RoomRegistry maps auction ids to the sessions currently watching
// them. Rooms are created on first join and removed on last leave, so
// viewer churn never grows the map without bound. Locking is sharded
// by auction id; LeaveAll uses a per-session reverse index.
type RoomRegistry struct {
	shards [registryShards]registryShard
	// reverse index: session id -> joined auction ids
	mu       sync.Mutex
	sessions map[string]map[string]struct{}
	log      logger.Logger
}

const registryShards = 16

type registryShard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]domain.Session // auctionID -> sessionID -> session
}

func NewRoomRegistry(log logger.Logger) *RoomRegistry {
	r := &RoomRegistry{
		sessions: make(map[string]map[string]struct{}),
		log:      log,
	}
	for i := range r.shards {
		r.shards[i].rooms = make(map[string]map[string]domain.Session)
	}
	return r
}

func (r *RoomRegistry) shard(auctionID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(auctionID))
	return &r.shards[h.Sum32()%registryShards]
}

// Join adds the session to the auction's room. Idempotent.
func (r *RoomRegistry) Join(auctionID string, s domain.Session) {
	shard := r.shard(auctionID)
	shard.mu.Lock()
	room, ok := shard.rooms[auctionID]
	if !ok {
		room = make(map[string]domain.Session)
		shard.rooms[auctionID] = room
	}
	room[s.ID()] = s
	shard.mu.Unlock()

	r.mu.Lock()
	joined, ok := r.sessions[s.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.sessions[s.ID()] = joined
	}
	joined[auctionID] = struct{}{}
	r.mu.Unlock()

	r.log.Debug("session joined room", "session_id", s.ID(), "auction_id", auctionID)
}

// Leave removes the session from the auction's room, dropping the room
// entry entirely when it empties. Idempotent.
func (r *RoomRegistry) Leave(auctionID string, s domain.Session) {
	r.leaveRoom(auctionID, s.ID())

	r.mu.Lock()
	if joined, ok := r.sessions[s.ID()]; ok {
		delete(joined, auctionID)
		if len(joined) == 0 {
			delete(r.sessions, s.ID())
		}
	}
	r.mu.Unlock()
}

func (r *RoomRegistry) leaveRoom(auctionID, sessionID string) {
	shard := r.shard(auctionID)
	shard.mu.Lock()
	if room, ok := shard.rooms[auctionID]; ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(shard.rooms, auctionID)
		}
	}
	shard.mu.Unlock()
}

// LeaveAll removes the session from every room it joined. Called on
// disconnect.
func (r *RoomRegistry) LeaveAll(s domain.Session) {
	r.mu.Lock()
	joined := r.sessions[s.ID()]
	delete(r.sessions, s.ID())
	r.mu.Unlock()

	for auctionID := range joined {
		r.leaveRoom(auctionID, s.ID())
	}

	if len(joined) > 0 {
		r.log.Debug("session left all rooms", "session_id", s.ID(), "rooms", len(joined))
	}
}

// MembersOf returns a snapshot of the sessions in the auction's room.
func (r *RoomRegistry) MembersOf(auctionID string) []domain.Session {
	shard := r.shard(auctionID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	room, ok := shard.rooms[auctionID]
	if !ok {
		return nil
	}
	members := make([]domain.Session, 0, len(room))
	for _, s := range room {
		members = append(members, s)
	}
	return members
}
