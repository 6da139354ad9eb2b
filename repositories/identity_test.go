package repositories

import (
	"context"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIdentityRepository_Create_And_Find(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewIdentityRepository(openInMemory(t))
	alice := domain.NewIdentity("alice", time.Now().UTC())

	// When an identity is created
	req.NoError(repository.CreateIdentity(ctx, alice))

	// Then it can be found by nickname and by id
	byNickname, err := repository.FindIdentity(ctx, "alice")
	req.NoError(err)
	req.Equal(alice, byNickname)

	byID, err := repository.FindIdentityByID(ctx, alice.ID)
	req.NoError(err)
	req.Equal(alice, byID)
}

func TestIdentityRepository_Duplicate_Nickname_Is_Conflict(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewIdentityRepository(openInMemory(t))

	// Given alice exists
	req.NoError(repository.CreateIdentity(ctx, domain.NewIdentity("alice", time.Now().UTC())))

	// When another identity claims the same nickname
	err := repository.CreateIdentity(ctx, domain.NewIdentity("alice", time.Now().UTC()))

	// Then the store refuses it
	req.ErrorIs(err, errors.ErrConflict)
}

func TestIdentityRepository_Unknown_Nickname_Is_NotFound(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(openInMemory(t))

	_, err := repository.FindIdentity(context.Background(), "nobody")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repository.FindIdentityByID(context.Background(), uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestIdentityRepository_Rename(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewIdentityRepository(openInMemory(t))
	alice := domain.NewIdentity("alice", time.Now().UTC())
	req.NoError(repository.CreateIdentity(ctx, alice))
	req.NoError(repository.CreateIdentity(ctx, domain.NewIdentity("bob", time.Now().UTC())))

	// When alice is renamed to a taken nickname
	_, err := repository.RenameIdentity(ctx, "alice", "bob")
	// Then it is a conflict
	req.ErrorIs(err, errors.ErrConflict)

	// When alice is renamed to a free nickname
	renamed, err := repository.RenameIdentity(ctx, "alice", "alicia")
	req.NoError(err)

	// Then the id is kept and the old nickname is released
	req.Equal(alice.ID, renamed.ID)
	_, err = repository.FindIdentity(ctx, "alice")
	req.ErrorIs(err, errors.ErrNotFound)
	byID, err := repository.FindIdentityByID(ctx, alice.ID)
	req.NoError(err)
	req.Equal("alicia", byID.Nickname)

	// And renaming an unknown identity fails
	_, err = repository.RenameIdentity(ctx, "nobody", "somebody")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestIdentityRepository_Delete_And_List(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewIdentityRepository(openInMemory(t))
	now := time.Now().UTC()
	alice := domain.NewIdentity("alice", now)
	bob := domain.NewIdentity("bob", now.Add(time.Second))
	req.NoError(repository.CreateIdentity(ctx, bob))
	req.NoError(repository.CreateIdentity(ctx, alice))

	// Then identities are listed by creation time
	identities, err := repository.ListIdentities(ctx)
	req.NoError(err)
	req.Equal([]domain.Identity{alice, bob}, identities)

	// When alice is deleted
	req.NoError(repository.DeleteIdentity(ctx, "alice"))

	// Then only bob is left and deleting again is NotFound
	identities, err = repository.ListIdentities(ctx)
	req.NoError(err)
	req.Equal([]domain.Identity{bob}, identities)
	req.ErrorIs(repository.DeleteIdentity(ctx, "alice"), errors.ErrNotFound)
}
