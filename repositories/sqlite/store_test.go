package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Identities(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := openStore(t)
	alice := domain.NewIdentity("alice", time.Now().UTC())

	// Given alice is created
	req.NoError(store.CreateIdentity(ctx, alice))

	// Then the nickname is unique
	req.ErrorIs(store.CreateIdentity(ctx, domain.NewIdentity("alice", time.Now().UTC())), errors.ErrConflict)

	// And alice can be found both ways
	found, err := store.FindIdentity(ctx, "alice")
	req.NoError(err)
	req.Equal(alice, found)
	found, err = store.FindIdentityByID(ctx, alice.ID)
	req.NoError(err)
	req.Equal(alice, found)

	// When alice is renamed
	renamed, err := store.RenameIdentity(ctx, "alice", "alicia")
	req.NoError(err)
	req.Equal(alice.ID, renamed.ID)
	_, err = store.FindIdentity(ctx, "alice")
	req.ErrorIs(err, errors.ErrNotFound)

	// When alicia is deleted
	req.NoError(store.DeleteIdentity(ctx, "alicia"))
	identities, err := store.ListIdentities(ctx)
	req.NoError(err)
	req.Empty(identities)
	req.ErrorIs(store.DeleteIdentity(ctx, "alicia"), errors.ErrNotFound)
}

func TestStore_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := openStore(t)
	alice := domain.NewIdentity("alice", time.Now().UTC())
	at := time.Now().UTC()
	first := domain.Message{ID: uuid.New(), AuthorID: alice.ID, Author: "alice", Content: "one", Room: "general", CreatedAt: at}
	second := domain.Message{ID: uuid.New(), AuthorID: alice.ID, Author: "alice", Content: "two", Room: "general", CreatedAt: at.Add(time.Second)}
	private := domain.Message{ID: uuid.New(), AuthorID: alice.ID, Author: "alice", Content: "psst", Room: "random",
		Recipient: "bob", IsPrivate: true, CreatedAt: at.Add(2 * time.Second)}
	for _, m := range []domain.Message{first, second, private} {
		req.NoError(store.CreateMessage(ctx, m))
	}

	// Then the room history is newest first and limited
	latest, err := store.FindMessages(ctx, "general", 1)
	req.NoError(err)
	req.Equal([]domain.Message{second}, latest)

	// And the listings are newest first
	all, err := store.ListMessages(ctx)
	req.NoError(err)
	req.Equal([]domain.Message{private, second, first}, all)
	byAlice, err := store.ListMessagesByAuthor(ctx, alice.ID)
	req.NoError(err)
	req.Len(byAlice, 3)

	rooms, err := store.Rooms(ctx)
	req.NoError(err)
	req.Equal([]domain.RoomName{"general", "random"}, rooms)

	// When a message is partially updated
	updated, err := store.UpdateMessage(ctx, first.ID, domain.MessagePatch{Content: lo.ToPtr("uno")})
	req.NoError(err)
	req.Equal("uno", updated.Content)
	req.Equal(first.Room, updated.Room)

	// When a message is deleted
	req.NoError(store.DeleteMessage(ctx, first.ID))
	_, err = store.GetMessage(ctx, first.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}
