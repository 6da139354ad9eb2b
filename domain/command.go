package domain

import (
	"fmt"
	"strings"

	"chat-relay/errors"
)

var validate = NewValidator()

// Command is an intent emitted by a connection towards the routing engine.
type Command interface {
	Connection() ConnectionID
}

type Connect struct {
	Conn     ConnectionID `validate:"required"`
	Nickname string       `validate:"required,max=32"`
}

type JoinRoom struct {
	Conn ConnectionID `validate:"required"`
	Room RoomName     `validate:"required,notblank,max=64"`
}

type SendPublic struct {
	Conn    ConnectionID `validate:"required"`
	Content string       `validate:"required,notblank"`
}

type SendPrivate struct {
	Conn      ConnectionID `validate:"required"`
	Recipient string       `validate:"required,notblank,max=32"`
	Content   string       `validate:"required,notblank"`
}

type Typing struct {
	Conn ConnectionID `validate:"required"`
}

type StopTyping struct {
	Conn ConnectionID `validate:"required"`
}

type Disconnect struct {
	Conn ConnectionID `validate:"required"`
}

// IdentityRenamed and IdentityDeleted are emitted by the administrative surface
// so the engine drops presence mappings pointing at a stale nickname.
// They are not tied to a connection.
type IdentityRenamed struct {
	Old string `validate:"required"`
	New string `validate:"required"`
}

type IdentityDeleted struct {
	Nickname string `validate:"required"`
}

func (c Connect) Connection() ConnectionID         { return c.Conn }
func (c JoinRoom) Connection() ConnectionID        { return c.Conn }
func (c SendPublic) Connection() ConnectionID      { return c.Conn }
func (c SendPrivate) Connection() ConnectionID     { return c.Conn }
func (c Typing) Connection() ConnectionID          { return c.Conn }
func (c StopTyping) Connection() ConnectionID      { return c.Conn }
func (c Disconnect) Connection() ConnectionID      { return c.Conn }
func (c IdentityRenamed) Connection() ConnectionID { return "" }
func (c IdentityDeleted) Connection() ConnectionID { return "" }

// NormalizeNickname trims surrounding blanks, nicknames are compared as stored.
func NormalizeNickname(nickname string) string {
	return strings.TrimSpace(nickname)
}

// ValidateCommand checks the struct rules of a command.
// Any failure is reported as ErrValidation so callers reject it without side effects.
func ValidateCommand(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("nil command: %w", errors.ErrValidation)
	}
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrValidation)
	}
	return nil
}
