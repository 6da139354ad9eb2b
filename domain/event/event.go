// Package event defines the outbound events pushed to connected clients.
package event

import "chat-relay/domain"

// Event is anything the relay can deliver to a connection.
// Name is the wire event name understood by clients.
type Event interface {
	Name() string
}

const (
	RoomListName       = "room-list"
	MessageName        = "message"
	PrivateMessageName = "private-message"
	OnlineUsersName    = "online-users"
	TypingName         = "typing"
	StopTypingName     = "stop-typing"
	ClearViewName      = "clear-view"
	ErrorName          = "error"
)

// RoomList carries every known room name in creation order.
type RoomList struct {
	Rooms []domain.RoomName
}

// Message is a rendered line for the room view: chat text, history or announcement.
type Message struct {
	Text string
}

// PrivateMessage is delivered live to the recipient of a private message.
type PrivateMessage struct {
	From    string
	Message string
}

// OnlineUsers is the presence snapshot of a room.
type OnlineUsers struct {
	Room      domain.RoomName
	Nicknames []string
}

type Typing struct {
	Text string
}

type StopTyping struct{}

// ClearView asks the client to drop what it displays before a history replay.
type ClearView struct{}

// Error signals the originating connection that its last intent failed.
// Fatal errors are followed by the transport closing the connection.
type Error struct {
	Code    string
	Message string
	Fatal   bool
}

func (RoomList) Name() string       { return RoomListName }
func (Message) Name() string        { return MessageName }
func (PrivateMessage) Name() string { return PrivateMessageName }
func (OnlineUsers) Name() string    { return OnlineUsersName }
func (Typing) Name() string         { return TypingName }
func (StopTyping) Name() string     { return StopTypingName }
func (ClearView) Name() string      { return ClearViewName }
func (Error) Name() string          { return ErrorName }

// Delivery is one event addressed to a set of connections, in emission order.
type Delivery struct {
	Recipients []domain.ConnectionID
	Event      Event
}
