// Package relay implements the room registry, the single source of truth for
// room existence, membership, and bounded message history.
package relay

import "sync"

// historyLimit bounds each room's retained history; the oldest entry is
// evicted first once the limit is reached.
const historyLimit = 50

type room struct {
	members map[string]struct{}
	history []string
}

// Registry tracks every active room: which connections belong to it and its
// rolling message history. All methods are safe for concurrent use; the
// registry guards the room map and each room's state under one mutex so a
// read-modify-write (such as create-with-collision-check) is atomic.
//
// The registry is transport-agnostic: it answers room existence itself rather
// than deferring to transport internals, and it only ever sees connection
// identifiers.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
	}
}

// CreateRoom generates a fresh room code, retrying until it does not collide
// with any active room, and registers the room with no members and no
// history. Generation and registration happen under the lock, so two
// concurrent creators can never be handed the same code.
func (r *Registry) CreateRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := GenerateCode()
	for {
		if _, taken := r.rooms[code]; !taken {
			break
		}
		code = GenerateCode()
	}

	r.rooms[code] = &room{members: make(map[string]struct{})}
	return code
}

// JoinRoom adds the connection to the room's member set and returns a copy of
// the room's history, most recent last. Joining a room the connection is
// already a member of is a no-op that still returns the history.
//
// Returns ErrInvalidRoomCode for an empty code and ErrRoomNotFound when no
// active room carries the code.
func (r *Registry) JoinRoom(connID, code string) ([]string, error) {
	if code == "" {
		return nil, ErrInvalidRoomCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	rm.members[connID] = struct{}{}

	history := make([]string, len(rm.history))
	copy(history, rm.history)
	return history, nil
}

// LeaveRoom removes the connection from the room's member set. Leaving is
// best-effort: an empty code, an unknown room, or a connection that was never
// a member are all silent no-ops.
func (r *Registry) LeaveRoom(connID, code string) {
	if code == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[code]; ok {
		delete(rm.members, connID)
	}
}

// RecordMessage appends a pre-rendered entry to the room's history, evicting
// from the front once the history exceeds its bound. Recording against an
// unknown room stores nothing.
func (r *Registry) RecordMessage(code, entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}

	rm.history = append(rm.history, entry)
	if n := len(rm.history); n > historyLimit {
		rm.history = rm.history[n-historyLimit:]
	}
}

// RemoveConnection removes the connection from every room's member set. It is
// called on disconnect; a connection may be a member of several rooms at once.
func (r *Registry) RemoveConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rm := range r.rooms {
		delete(rm.members, connID)
	}
}

// Members returns a snapshot of the connection identifiers currently in the
// room. An unknown room yields an empty slice.
func (r *Registry) Members(code string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[code]
	if !ok {
		return nil
	}

	members := make([]string, 0, len(rm.members))
	for id := range rm.members {
		members = append(members, id)
	}
	return members
}

// RoomCount reports how many rooms are currently tracked. Rooms are never
// dropped when their last member leaves, so the count only grows for the
// lifetime of the process.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Close releases all tracked rooms. State is process-lifetime only, so this
// exists as the explicit teardown hook for shutdown and for any future
// retention policy; it is safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = make(map[string]*room)
}
