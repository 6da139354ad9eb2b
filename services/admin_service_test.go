package services

import (
	"context"
	"log/slog"
	"testing"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/search"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type adminFixture struct {
	svc        *AdminService
	dispatcher *mocks.MockIDispatcher
}

func newAdminFixture(t *testing.T) adminFixture {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	index, err := search.OpenInMemory(log)
	req.NoError(err)
	t.Cleanup(func() { _ = index.Close() })

	identities := repositories.NewIdentityRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	poster := NewMessageService(messages, index, nil, observability.NewRelay(), 0, log)
	dispatcher := mocks.NewMockIDispatcher(gomock.NewController(t))

	return adminFixture{
		svc:        NewAdminService(identities, messages, poster, index, dispatcher, log),
		dispatcher: dispatcher,
	}
}

func TestAdminService_Users(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a user and refuse a duplicate nickname", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)

		created, err := f.svc.CreateUser(ctx, "alice")
		req.NoError(err)

		_, err = f.svc.CreateUser(ctx, "alice")
		req.ErrorIs(err, errors.ErrConflict)

		found, err := f.svc.GetUser(ctx, "alice")
		req.NoError(err)
		req.Equal(created.ID, found.ID)
	})

	t.Run("should rename a user and tell the engine about it", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)
		created, err := f.svc.CreateUser(ctx, "alice")
		req.NoError(err)

		f.dispatcher.EXPECT().
			Dispatch(gomock.Any(), domain.IdentityRenamed{Old: "alice", New: "alicia"}).
			Return(nil).Times(1)

		renamed, err := f.svc.UpdateUser(ctx, "alice", "alicia")

		req.NoError(err)
		req.Equal(created.ID, renamed.ID)
		req.Equal("alicia", renamed.Nickname)
		_, err = f.svc.GetUser(ctx, "alice")
		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("should not notify the engine when the rename fails", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)

		f.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.UpdateUser(ctx, "ghost", "spirit")

		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("should delete a user and keep going when the engine queue is full", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)
		_, err := f.svc.CreateUser(ctx, "bob")
		req.NoError(err)

		f.dispatcher.EXPECT().
			Dispatch(gomock.Any(), domain.IdentityDeleted{Nickname: "bob"}).
			Return(errors.ErrQueueFull).Times(1)

		req.NoError(f.svc.DeleteUser(ctx, "bob"))

		users, err := f.svc.ListUsers(ctx)
		req.NoError(err)
		req.Empty(users)
	})
}

func TestAdminService_Messages(t *testing.T) {
	ctx := context.Background()

	t.Run("should send, list, update and delete messages", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)
		_, err := f.svc.CreateUser(ctx, "alice")
		req.NoError(err)

		// Given two messages authored by alice
		public, err := f.svc.SendMessage(ctx, SendMessageCommand{From: "alice", Room: "  ", Content: "hello everyone"})
		req.NoError(err)
		req.Equal(domain.DefaultRoom, public.Room)
		private, err := f.svc.SendMessage(ctx, SendMessageCommand{From: "alice", To: "bob", Room: "random", Content: "psst", IsPrivate: true})
		req.NoError(err)

		// Then both are listed, by user and globally
		byUser, err := f.svc.ListMessagesByUser(ctx, "alice")
		req.NoError(err)
		req.Len(byUser, 2)
		all, err := f.svc.ListMessages(ctx)
		req.NoError(err)
		req.Len(all, 2)

		rooms, err := f.svc.GetRooms(ctx)
		req.NoError(err)
		req.ElementsMatch([]domain.RoomName{domain.DefaultRoom, "random"}, rooms)

		// When the private one is made public again
		content := "hello again"
		isPrivate := false
		updated, err := f.svc.UpdateMessage(ctx, private.ID, domain.MessagePatch{Content: &content, IsPrivate: &isPrivate})
		req.NoError(err)
		req.Equal("hello again", updated.Content)
		req.False(updated.IsPrivate)

		// And the public one is deleted
		req.NoError(f.svc.DeleteMessage(ctx, public.ID))
		req.ErrorIs(f.svc.DeleteMessage(ctx, public.ID), errors.ErrNotFound)

		all, err = f.svc.ListMessages(ctx)
		req.NoError(err)
		req.Len(all, 1)
	})

	t.Run("should refuse a message from an unknown sender", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)

		_, err := f.svc.SendMessage(ctx, SendMessageCommand{From: "nobody", Content: "hi"})

		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("should report a missing message on update", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)
		content := "x"

		_, err := f.svc.UpdateMessage(ctx, uuid.New(), domain.MessagePatch{Content: &content})

		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("should find indexed messages and skip deleted ones", func(t *testing.T) {
		req := require.New(t)
		f := newAdminFixture(t)
		_, err := f.svc.CreateUser(ctx, "carol")
		req.NoError(err)
		kept, err := f.svc.SendMessage(ctx, SendMessageCommand{From: "carol", Content: "release party tonight"})
		req.NoError(err)
		gone, err := f.svc.SendMessage(ctx, SendMessageCommand{From: "carol", Content: "party postponed"})
		req.NoError(err)
		req.NoError(f.svc.DeleteMessage(ctx, gone.ID))

		found, err := f.svc.SearchMessages(ctx, "party", 10)

		req.NoError(err)
		req.Len(found, 1)
		req.Equal(kept.ID, found[0].ID)

		_, err = f.svc.SearchMessages(ctx, "", 10)
		req.ErrorIs(err, errors.ErrValidation)
	})
}
