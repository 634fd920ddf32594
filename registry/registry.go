// Package registry is the in-memory source of truth for live presence:
// which sessions are currently connected to which rooms. It holds no
// durable state and is rebuilt empty on process restart; clients must
// re-join their rooms after reconnecting.
package registry

import (
	"log/slog"
	"sync"

	"roomchat/contract"
	"roomchat/domain"
)

type sessionSet map[*contract.Session]struct{}

type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[domain.RoomID]sessionSet
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		rooms: make(map[domain.RoomID]sessionSet),
	}
}

// Join adds a session handle to a room's live set. The room entry is
// initialized on the fly; durable membership is not checked here, that
// is the caller's responsibility.
func (r *Registry) Join(roomID domain.RoomID, s *contract.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(sessionSet)
	}
	r.rooms[roomID][s] = struct{}{}
}

// Leave removes a session handle from a room's live set. Empty sets
// are pruned so the map does not leak over time.
func (r *Registry) Leave(roomID domain.RoomID, s *contract.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(roomID, s)
}

func (r *Registry) leaveLocked(roomID domain.RoomID, s *contract.Session) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// LeaveAll drops a session from every room it joined and reports which
// rooms those were. Used on disconnect, where no announcement is sent.
func (r *Registry) LeaveAll(s *contract.Session) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []domain.RoomID
	for roomID, members := range r.rooms {
		if _, ok := members[s]; ok {
			left = append(left, roomID)
			r.leaveLocked(roomID, s)
		}
	}
	return left
}

// Broadcast delivers an event to every session live in the room at
// call time. The member set is snapshotted under the read lock and
// delivery happens outside it, so concurrent joins and leaves cannot
// corrupt the iteration and a stalled sink cannot hold the registry.
func (r *Registry) Broadcast(roomID domain.RoomID, e domain.Event) {
	r.mu.RLock()
	members, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	snapshot := make([]*contract.Session, 0, len(members))
	for s := range members {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.Sink.Consume(e); err != nil {
			r.log.Warn("dropping event for session",
				"session_id", s.ID,
				"username", s.Username,
				"room_id", roomID,
				"event", e.Name,
				"error", err)
		}
	}
}

// EvictUser force-leaves every session of a username from one room and
// returns how many were evicted. Called when durable membership is
// revoked, so a removed member stops receiving live broadcasts
// immediately instead of at their next reconnect.
func (r *Registry) EvictUser(roomID domain.RoomID, username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	evicted := 0
	for s := range members {
		if s.Username == username {
			r.leaveLocked(roomID, s)
			evicted++
		}
	}
	return evicted
}
