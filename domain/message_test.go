package domain

import (
	"testing"
	"time"

	"chat-relay/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestMessage_VisibleTo(t *testing.T) {
	req := require.New(t)
	alice := NewIdentity("alice", time.Now())
	bob := NewIdentity("bob", time.Now())
	carol := NewIdentity("carol", time.Now())

	public := Message{ID: uuid.New(), AuthorID: alice.ID, Author: "alice", Content: "hi", Room: DefaultRoom}
	private := Message{ID: uuid.New(), AuthorID: alice.ID, Author: "alice", Content: "psst", Room: DefaultRoom, Recipient: "bob", IsPrivate: true}

	req.True(public.VisibleTo(carol))
	req.True(private.VisibleTo(alice))
	req.True(private.VisibleTo(bob))
	req.False(private.VisibleTo(carol))
}

func TestMessage_Validate(t *testing.T) {
	req := require.New(t)

	req.NoError(Message{Content: "hi"}.Validate())
	req.ErrorIs(Message{}.Validate(), errors.ErrValidation)
	req.ErrorIs(Message{Content: "  "}.Validate(), errors.ErrValidation)
	req.ErrorIs(Message{Content: "psst", IsPrivate: true}.Validate(), errors.ErrValidation)
}

func TestMessage_Text(t *testing.T) {
	req := require.New(t)

	req.Equal("alice: hi", Message{Author: "alice", Content: "hi"}.Text())
	req.Equal("[PM] alice: psst", Message{Author: "alice", Content: "psst", IsPrivate: true, Recipient: "bob"}.Text())
}

func TestMessagePatch_Apply(t *testing.T) {
	req := require.New(t)
	original := Message{ID: uuid.New(), Author: "alice", Content: "hi", Room: DefaultRoom}

	// Given a patch touching only the content and the room
	patch := MessagePatch{Content: lo.ToPtr("hello"), Room: lo.ToPtr(RoomName("random"))}

	// Then the other fields are kept and the original is untouched
	patched := patch.Apply(original)
	req.Equal("hello", patched.Content)
	req.Equal(RoomName("random"), patched.Room)
	req.Equal(original.ID, patched.ID)
	req.Equal("hi", original.Content)
	req.Equal(original, MessagePatch{}.Apply(original))
}
