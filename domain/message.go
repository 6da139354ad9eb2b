// Package domain contains core concepts of the chat relay.
// This file defines Message and the rules deciding who may read it.
package domain

import (
	"fmt"
	"strings"
	"time"

	"chat-relay/errors"

	"github.com/google/uuid"
)

// Message is a persisted chat line, public or private.
// Author is the nickname at send time, AuthorID stays stable across renames.
type Message struct {
	ID        uuid.UUID
	AuthorID  uuid.UUID
	Author    string
	Content   string
	Room      RoomName
	Recipient string
	IsPrivate bool
	Language  string
	CreatedAt time.Time
}

// Validate checks the private/recipient invariant.
func (m Message) Validate() error {
	if m.IsPrivate && m.Recipient == "" {
		return fmt.Errorf("private message without recipient: %w", errors.ErrValidation)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("empty content: %w", errors.ErrValidation)
	}
	return nil
}

// VisibleTo reports whether the message may be replayed to the given identity.
// Public messages are visible to everyone; private ones only to their author and recipient.
func (m Message) VisibleTo(identity Identity) bool {
	if !m.IsPrivate {
		return true
	}
	return m.Recipient == identity.Nickname || m.AuthorID == identity.ID
}

// Text renders the message the way clients display it in the room view.
func (m Message) Text() string {
	if m.IsPrivate {
		return fmt.Sprintf("[PM] %s: %s", m.Author, m.Content)
	}
	return fmt.Sprintf("%s: %s", m.Author, m.Content)
}

// MessagePatch is a partial update of a persisted message; nil fields are left untouched.
type MessagePatch struct {
	Content   *string
	Recipient *string
	Room      *RoomName
	IsPrivate *bool
}

// Apply returns a copy of m with the patch applied.
func (p MessagePatch) Apply(m Message) Message {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Recipient != nil {
		m.Recipient = *p.Recipient
	}
	if p.Room != nil {
		m.Room = *p.Room
	}
	if p.IsPrivate != nil {
		m.IsPrivate = *p.IsPrivate
	}
	return m
}
