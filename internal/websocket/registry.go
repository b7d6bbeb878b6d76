package websocket

import (
	"fmt"
	"sort"
	"sync"
)

var ErrClientDisconnected = fmt.Errorf("client disconnected")

// Sender is a live, authenticated connection handle. Sessions own their
// connection; the registry only references it.
type Sender interface {
	UserID() uint
	SendFrame(frame *OutboundFrame) error
}

// RoomEntry is one (user, connection) pair inside a room snapshot.
type RoomEntry struct {
	UserID uint
	Conn   Sender
}

// Registry is the process-wide index of live connections: one handle per
// (room, user) pair plus a per-user set covering every device. Nothing here
// is persisted; a restart starts from empty and clients re-join.
type Registry struct {
	rooms map[string]map[uint]Sender
	users map[uint]map[Sender]struct{}
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[uint]Sender),
		users: make(map[uint]map[Sender]struct{}),
	}
}

// Register adds conn to the room index, replacing any prior handle for the
// same (room, user) pair so reconnects never leak a stale entry.
func (r *Registry) Register(roomID string, userID uint, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[uint]Sender)
	}
	r.rooms[roomID][userID] = conn
}

// Unregister removes the room-index entry and prunes the room bucket when it
// empties out.
func (r *Registry) Unregister(roomID string, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// RegisterGlobal adds conn to the user's connection set. A user may hold
// several live connections at once (multiple devices).
func (r *Registry) RegisterGlobal(userID uint, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.users[userID] == nil {
		r.users[userID] = make(map[Sender]struct{})
	}
	r.users[userID][conn] = struct{}{}
}

// UnregisterGlobal removes conn from the user's set; removing a connection
// that is not a member is a no-op.
func (r *Registry) UnregisterGlobal(userID uint, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.users, userID)
	}
}

// Connections returns a snapshot of a room's live connections ordered by
// user id. Callers iterate the copy, so concurrent churn is safe.
func (r *Registry) Connections(roomID string) []RoomEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	entries := make([]RoomEntry, 0, len(members))
	for userID, conn := range members {
		entries = append(entries, RoomEntry{UserID: userID, Conn: conn})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}

// UserConnections returns a snapshot of every live connection held by the
// given users, across all their devices.
func (r *Registry) UserConnections(userIDs []uint) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []Sender
	for _, userID := range userIDs {
		for conn := range r.users[userID] {
			conns = append(conns, conn)
		}
	}
	return conns
}

// HasRoom reports whether the room bucket exists at all. Empty buckets are
// pruned, so this doubles as a non-empty check.
func (r *Registry) HasRoom(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID]
	return ok
}

// IsUserOnline reports whether the user holds at least one live connection.
func (r *Registry) IsUserOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}
