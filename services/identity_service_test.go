package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIdentityService_GetOrCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mockStore := mocks.NewMockIdentityStore(ctrl)
	svc := NewIdentityService(mockStore, log)

	t.Run("should reuse an existing identity without creating a new one", func(t *testing.T) {
		req := require.New(t)
		alice := domain.NewIdentity("alice", time.Now().UTC())

		mockStore.EXPECT().FindIdentity(gomock.Any(), "alice").Return(alice, nil).Times(1)
		mockStore.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).Times(0)

		identity, err := svc.GetOrCreate(ctx, "  alice ")

		req.NoError(err)
		req.Equal(alice, identity)
	})

	t.Run("should create the identity on first use", func(t *testing.T) {
		req := require.New(t)

		mockStore.EXPECT().FindIdentity(gomock.Any(), "bob").
			Return(domain.Identity{}, fmt.Errorf("identity bob: %w", errors.ErrNotFound)).Times(1)
		mockStore.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, identity domain.Identity) error {
				req.Equal("bob", identity.Nickname)
				return nil
			}).Times(1)

		identity, err := svc.GetOrCreate(ctx, "bob")

		req.NoError(err)
		req.Equal("bob", identity.Nickname)
		req.NotZero(identity.ID)
	})

	t.Run("should fall back to the winner when creation conflicts", func(t *testing.T) {
		req := require.New(t)
		winner := domain.NewIdentity("carol", time.Now().UTC())

		gomock.InOrder(
			mockStore.EXPECT().FindIdentity(gomock.Any(), "carol").
				Return(domain.Identity{}, errors.ErrNotFound),
			mockStore.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).
				Return(errors.ErrConflict),
			mockStore.EXPECT().FindIdentity(gomock.Any(), "carol").
				Return(winner, nil),
		)

		identity, err := svc.GetOrCreate(ctx, "carol")

		req.NoError(err)
		req.Equal(winner.ID, identity.ID)
	})

	t.Run("should reject an empty or oversized nickname without touching the store", func(t *testing.T) {
		req := require.New(t)

		mockStore.EXPECT().FindIdentity(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.GetOrCreate(ctx, "   ")
		req.ErrorIs(err, errors.ErrValidation)

		_, err = svc.GetOrCreate(ctx, strings.Repeat("x", 33))
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should surface storage failures", func(t *testing.T) {
		req := require.New(t)

		mockStore.EXPECT().FindIdentity(gomock.Any(), "dave").
			Return(domain.Identity{}, errors.ErrStorage).Times(1)

		_, err := svc.GetOrCreate(ctx, "dave")

		req.ErrorIs(err, errors.ErrStorage)
	})
}

func TestIdentityService_GetOrCreate_ConcurrentFirstConnects(t *testing.T) {
	req := require.New(t)
	// Given a real store and many connections claiming the same new nickname
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer func() { _ = db.Close() }()
	svc := NewIdentityService(repositories.NewIdentityRepository(db), logs.GetLoggerFromLevel(slog.LevelDebug))

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	// When they all resolve it at once
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity, err := svc.GetOrCreate(context.Background(), "alice")
			ids[i], errs[i] = identity.ID.String(), err
		}(i)
	}
	wg.Wait()

	// Then exactly one identity exists and everybody got it
	for i := 0; i < callers; i++ {
		req.NoError(errs[i])
		req.Equal(ids[0], ids[i])
	}
	all, err := repositories.NewIdentityRepository(db).ListIdentities(context.Background())
	req.NoError(err)
	req.Len(all, 1)
}
