package domain

import "github.com/google/uuid"

// ConnectionID identifies one live client session.
// Identifiers are never reused within the process lifetime.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

func (c ConnectionID) String() string {
	return string(c)
}

// ConnectionState is the lifecycle of a connection in the routing engine.
type ConnectionState int

const (
	Connecting ConnectionState = iota
	Active
	Disconnected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
