// Package domain contains core concepts of the chat relay.
// This file defines Identity, the durable named participant.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the durable record behind a nickname.
// A nickname is unique across all identities.
type Identity struct {
	ID        uuid.UUID
	Nickname  string
	CreatedAt time.Time
}

func NewIdentity(nickname string, at time.Time) Identity {
	return Identity{ID: uuid.New(), Nickname: nickname, CreatedAt: at}
}
