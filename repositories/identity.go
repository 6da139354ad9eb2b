package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	identityPrefix   = "identity:"
	identityIDPrefix = "identity-id:"
)

// IdentityRepository stores identities in BadgerDB.
// Two keys are written per identity:
//   - "identity:{nickname}" holds the record and enforces nickname uniqueness
//   - "identity-id:{uuid}" points back to the nickname for lookups by id
type IdentityRepository struct {
	db *badger.DB
}

func NewIdentityRepository(db *badger.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

type diskIdentity struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	CreatedAt int64  `json:"created_at"`
}

func (r *IdentityRepository) FindIdentity(ctx context.Context, nickname string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, storageErr("find identity", err)
	}
	var identity domain.Identity
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		identity, err = getIdentity(txn, nickname)
		return err
	})
	return identity, err
}

func (r *IdentityRepository) FindIdentityByID(ctx context.Context, id uuid.UUID) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, storageErr("find identity", err)
	}
	var identity domain.Identity
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(identityIDPrefix + id.String()))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("identity %s: %w", id, errors.ErrNotFound)
		}
		if err != nil {
			return storageErr("find identity", err)
		}
		nickname, err := item.ValueCopy(nil)
		if err != nil {
			return storageErr("find identity", err)
		}
		identity, err = getIdentity(txn, string(nickname))
		return err
	})
	return identity, err
}

// CreateIdentity persists a new identity.
// It fails with ErrConflict when the nickname is already taken, including when
// a concurrent transaction wins the race for the same key.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return storageErr("create identity", err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		key := []byte(identityPrefix + identity.Nickname)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("nickname %q: %w", identity.Nickname, errors.ErrConflict)
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return storageErr("create identity", err)
		}
		return putIdentity(txn, identity)
	})
	return mapTxnErr("create identity", err)
}

// RenameIdentity moves an identity to a new nickname, keeping its id.
func (r *IdentityRepository) RenameIdentity(ctx context.Context, oldNickname, newNickname string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, storageErr("rename identity", err)
	}
	var renamed domain.Identity
	err := r.db.Update(func(txn *badger.Txn) error {
		identity, err := getIdentity(txn, oldNickname)
		if err != nil {
			return err
		}
		if oldNickname == newNickname {
			renamed = identity
			return nil
		}
		if _, err = txn.Get([]byte(identityPrefix + newNickname)); err == nil {
			return fmt.Errorf("nickname %q: %w", newNickname, errors.ErrConflict)
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return storageErr("rename identity", err)
		}
		if err = txn.Delete([]byte(identityPrefix + oldNickname)); err != nil {
			return storageErr("rename identity", err)
		}
		identity.Nickname = newNickname
		renamed = identity
		return putIdentity(txn, identity)
	})
	return renamed, mapTxnErr("rename identity", err)
}

func (r *IdentityRepository) DeleteIdentity(ctx context.Context, nickname string) error {
	if err := ctx.Err(); err != nil {
		return storageErr("delete identity", err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		identity, err := getIdentity(txn, nickname)
		if err != nil {
			return err
		}
		if err = txn.Delete([]byte(identityPrefix + nickname)); err != nil {
			return storageErr("delete identity", err)
		}
		if err = txn.Delete([]byte(identityIDPrefix + identity.ID.String())); err != nil {
			return storageErr("delete identity", err)
		}
		return nil
	})
	return mapTxnErr("delete identity", err)
}

// ListIdentities returns every identity ordered by creation time.
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list identities", err)
	}
	var identities []domain.Identity
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(identityPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				identity, err := decodeIdentity(val)
				if err != nil {
					return err
				}
				identities = append(identities, identity)
				return nil
			})
			if err != nil {
				return storageErr("list identities", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(identities, func(i, j int) bool {
		return identities[i].CreatedAt.Before(identities[j].CreatedAt)
	})
	return identities, nil
}

func getIdentity(txn *badger.Txn, nickname string) (domain.Identity, error) {
	item, err := txn.Get([]byte(identityPrefix + nickname))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Identity{}, fmt.Errorf("identity %q: %w", nickname, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Identity{}, storageErr("get identity", err)
	}
	var identity domain.Identity
	err = item.Value(func(val []byte) error {
		identity, err = decodeIdentity(val)
		return err
	})
	if err != nil {
		return domain.Identity{}, storageErr("get identity", err)
	}
	return identity, nil
}

func putIdentity(txn *badger.Txn, identity domain.Identity) error {
	data, err := json.Marshal(diskIdentity{
		ID:        identity.ID.String(),
		Nickname:  identity.Nickname,
		CreatedAt: identity.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	if err = txn.Set([]byte(identityPrefix+identity.Nickname), data); err != nil {
		return storageErr("put identity", err)
	}
	if err = txn.Set([]byte(identityIDPrefix+identity.ID.String()), []byte(identity.Nickname)); err != nil {
		return storageErr("put identity", err)
	}
	return nil
}

func decodeIdentity(val []byte) (domain.Identity, error) {
	var disk diskIdentity
	if err := json.Unmarshal(val, &disk); err != nil {
		return domain.Identity{}, err
	}
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		ID:        id,
		Nickname:  disk.Nickname,
		CreatedAt: time.Unix(0, disk.CreatedAt).UTC(),
	}, nil
}

// storageErr tags an underlying failure as ErrStorage, keeping the cause.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errors.ErrStorage, err)
}

// mapTxnErr turns a lost optimistic transaction into ErrConflict and leaves
// already classified errors untouched.
func mapTxnErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%s: %w", op, errors.ErrConflict)
	case stderrors.Is(err, errors.ErrNotFound),
		stderrors.Is(err, errors.ErrConflict),
		stderrors.Is(err, errors.ErrValidation),
		stderrors.Is(err, errors.ErrStorage):
		return err
	default:
		return storageErr(op, err)
	}
}
