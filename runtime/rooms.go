package runtime

import (
	"chat-relay/domain"

	"github.com/samber/lo"
)

// RoomRegistry tracks rooms and which connections occupy them.
// A connection is in at most one room. Rooms are never removed.
// It is owned by the routing engine and is not safe for concurrent use.
type RoomRegistry struct {
	names   []domain.RoomName                       // creation order
	members map[domain.RoomName][]domain.ConnectionID // join order
	roomOf  map[domain.ConnectionID]domain.RoomName
}

// NewRoomRegistry starts with the default room already created.
func NewRoomRegistry() *RoomRegistry {
	r := &RoomRegistry{
		members: make(map[domain.RoomName][]domain.ConnectionID),
		roomOf:  make(map[domain.ConnectionID]domain.RoomName),
	}
	r.EnsureRoom(domain.DefaultRoom)
	return r
}

// EnsureRoom creates the room if needed and reports whether it was created.
func (r *RoomRegistry) EnsureRoom(name domain.RoomName) bool {
	if _, ok := r.members[name]; ok {
		return false
	}
	r.members[name] = nil
	r.names = append(r.names, name)
	return true
}

// Join puts a connection in a room, leaving its current room first.
func (r *RoomRegistry) Join(conn domain.ConnectionID, name domain.RoomName) {
	if current, ok := r.roomOf[conn]; ok {
		if current == name {
			return
		}
		r.Leave(conn, current)
	}
	r.EnsureRoom(name)
	r.members[name] = append(r.members[name], conn)
	r.roomOf[conn] = name
}

// Leave is a no-op when the connection is not in that room.
func (r *RoomRegistry) Leave(conn domain.ConnectionID, name domain.RoomName) {
	if current, ok := r.roomOf[conn]; !ok || current != name {
		return
	}
	delete(r.roomOf, conn)
	r.members[name] = lo.Without(r.members[name], conn)
}

// MembersOf returns a copy of the room's connections in join order.
func (r *RoomRegistry) MembersOf(name domain.RoomName) []domain.ConnectionID {
	return append([]domain.ConnectionID(nil), r.members[name]...)
}

func (r *RoomRegistry) AllRoomNames() []domain.RoomName {
	return append([]domain.RoomName(nil), r.names...)
}

func (r *RoomRegistry) RoomOf(conn domain.ConnectionID) (domain.RoomName, bool) {
	name, ok := r.roomOf[conn]
	return name, ok
}

func (r *RoomRegistry) Len() int {
	return len(r.names)
}
