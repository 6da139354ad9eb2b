package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"golang.org/x/sync/singleflight"
)

var validate = domain.NewValidator()

const nicknameRules = "required,max=32"

// IdentityService is the identity registry: it resolves a claimed nickname to
// its durable identity, creating it on first use.
type IdentityService struct {
	store   contract.IdentityStore
	log     *slog.Logger
	sfGroup singleflight.Group // Collapses concurrent first connects of one nickname
	now     func() time.Time
}

func NewIdentityService(store contract.IdentityStore, log *slog.Logger) *IdentityService {
	return &IdentityService{store: store, log: log, now: nowUTC}
}

// GetOrCreate returns the identity behind nickname, creating it if absent.
// Reusing an existing nickname is not an error. Two concurrent calls for a new
// nickname create exactly one identity: the calls are collapsed in-process and a
// conflict raised by the store (another writer won) falls back to a second lookup.
func (s *IdentityService) GetOrCreate(ctx context.Context, nickname string) (domain.Identity, error) {
	nickname = domain.NormalizeNickname(nickname)
	if err := ValidateNickname(nickname); err != nil {
		return domain.Identity{}, err
	}

	v, err, shared := s.sfGroup.Do(nickname, func() (any, error) {
		return s.getOrCreate(ctx, nickname)
	})
	if err != nil {
		return domain.Identity{}, err
	}
	if shared {
		s.log.Debug("Identity resolution shared", "nickname", nickname)
	}
	return v.(domain.Identity), nil
}

func (s *IdentityService) getOrCreate(ctx context.Context, nickname string) (domain.Identity, error) {
	// 1. Existing identity: simple reuse
	identity, err := s.store.FindIdentity(ctx, nickname)
	if err == nil {
		return identity, nil
	}
	if !stderrors.Is(err, errors.ErrNotFound) {
		return domain.Identity{}, err
	}

	// 2. First connect under this nickname
	identity = domain.NewIdentity(nickname, s.now())
	err = s.store.CreateIdentity(ctx, identity)
	if err == nil {
		s.log.Info("Identity created", "nickname", nickname, "identity_id", identity.ID)
		return identity, nil
	}
	if !stderrors.Is(err, errors.ErrConflict) {
		return domain.Identity{}, err
	}

	// 3. Lost a race against another writer: the winner's record is the identity
	return s.store.FindIdentity(ctx, nickname)
}

// ValidateNickname reports ErrValidation for an empty or oversized nickname.
func ValidateNickname(nickname string) error {
	if err := validate.Var(nickname, nicknameRules); err != nil {
		return fmt.Errorf("nickname %q: %v: %w", nickname, err, errors.ErrValidation)
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
