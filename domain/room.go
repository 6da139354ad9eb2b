package domain

// RoomName identifies a room. Rooms are created on first join and never deleted.
type RoomName string

// DefaultRoom exists from process start and receives every new connection.
const DefaultRoom RoomName = "general"

func (r RoomName) String() string {
	return string(r)
}
