package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	messagePrefix       = "msg:"
	messageIDPrefix     = "msg-id:"
	messageAuthorPrefix = "msg-author:"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Room      string `json:"room"`
	Recipient string `json:"recipient,omitempty"`
	IsPrivate bool   `json:"is_private"`
	Language  string `json:"language,omitempty"`
	At        int64  `json:"at"`
}

// messageKey is formatted as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// The room is query-escaped so a ':' in a room name cannot leak into another room's prefix.
func messageKey(m domain.Message) string {
	return fmt.Sprintf("%s%s:%019d:%s", messagePrefix, url.QueryEscape(string(m.Room)), m.CreatedAt.UnixNano(), m.ID)
}

func authorKey(m domain.Message) string {
	return fmt.Sprintf("%s%s:%019d:%s", messageAuthorPrefix, m.AuthorID, m.CreatedAt.UnixNano(), m.ID)
}

func roomPrefix(room domain.RoomName) string {
	return messagePrefix + url.QueryEscape(string(room)) + ":"
}

// CreateMessage persists a message with its id and author indexes in one transaction.
func (m *MessageRepository) CreateMessage(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return storageErr("create message", err)
	}
	err := m.db.Update(func(txn *badger.Txn) error {
		return putMessage(txn, message)
	})
	return mapTxnErr("create message", err)
}

func (m *MessageRepository) GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, storageErr("get message", err)
	}
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getMessageByID(txn, id)
		return err
	})
	return message, err
}

// UpdateMessage applies a partial update. Changing the room moves the primary key.
func (m *MessageRepository) UpdateMessage(ctx context.Context, id uuid.UUID, patch domain.MessagePatch) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, storageErr("update message", err)
	}
	var updated domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		current, err := getMessageByID(txn, id)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		if err = updated.Validate(); err != nil {
			return err
		}
		if err = txn.Delete([]byte(messageKey(current))); err != nil {
			return storageErr("update message", err)
		}
		return putMessage(txn, updated)
	})
	if err != nil {
		return domain.Message{}, mapTxnErr("update message", err)
	}
	return updated, nil
}

func (m *MessageRepository) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return storageErr("delete message", err)
	}
	err := m.db.Update(func(txn *badger.Txn) error {
		current, err := getMessageByID(txn, id)
		if err != nil {
			return err
		}
		for _, key := range []string{messageKey(current), authorKey(current), messageIDPrefix + id.String()} {
			if err = txn.Delete([]byte(key)); err != nil {
				return storageErr("delete message", err)
			}
		}
		return nil
	})
	return mapTxnErr("delete message", err)
}

// FindMessages retrieves the newest messages of a room using a reverse prefix scan.
// Thanks to the padded timestamp in the key, messages come out newest first.
// A limit <= 0 returns the whole room.
func (m *MessageRepository) FindMessages(ctx context.Context, room domain.RoomName, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("find messages", err)
	}
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix(room))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Let's go to the newest position msg:{room}:9999999999999999999
		// Then, we go back and collect messages
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			message, err := decodeItem(it.Item())
			if err != nil {
				return storageErr("find messages", err)
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// ListMessages returns every message of every room, newest first.
func (m *MessageRepository) ListMessages(ctx context.Context) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list messages", err)
	}
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			message, err := decodeItem(it.Item())
			if err != nil {
				return storageErr("list messages", err)
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(messages)
	return messages, nil
}

// ListMessagesByAuthor walks the author index backwards, newest first.
func (m *MessageRepository) ListMessagesByAuthor(ctx context.Context, authorID uuid.UUID) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list messages by author", err)
	}
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messageAuthorPrefix + authorID.String() + ":")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			primary, err := it.Item().ValueCopy(nil)
			if err != nil {
				return storageErr("list messages by author", err)
			}
			item, err := txn.Get(primary)
			if err != nil {
				return storageErr("list messages by author", err)
			}
			message, err := decodeItem(item)
			if err != nil {
				return storageErr("list messages by author", err)
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// Rooms returns the distinct rooms that hold at least one message, in key order.
func (m *MessageRepository) Rooms(ctx context.Context) ([]domain.RoomName, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("rooms", err)
	}
	var rooms []domain.RoomName
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), messagePrefix)
			escaped, _, ok := strings.Cut(rest, ":")
			if !ok {
				continue
			}
			room, err := url.QueryUnescape(escaped)
			if err != nil {
				m.log.Warn("Skipping malformed message key", "key", string(it.Item().Key()), "error", err)
				continue
			}
			rooms = append(rooms, domain.RoomName(room))
		}
		return nil
	})
	return lo.Uniq(rooms), err
}

func putMessage(txn *badger.Txn, message domain.Message) error {
	data, err := json.Marshal(fromDomainMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	key := messageKey(message)
	if err = txn.Set([]byte(key), data); err != nil {
		return storageErr("put message", err)
	}
	if err = txn.Set([]byte(messageIDPrefix+message.ID.String()), []byte(key)); err != nil {
		return storageErr("put message", err)
	}
	if err = txn.Set([]byte(authorKey(message)), []byte(key)); err != nil {
		return storageErr("put message", err)
	}
	return nil
}

func getMessageByID(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	item, err := txn.Get([]byte(messageIDPrefix + id.String()))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, storageErr("get message", err)
	}
	primary, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, storageErr("get message", err)
	}
	item, err = txn.Get(primary)
	if err != nil {
		return domain.Message{}, storageErr("get message", err)
	}
	message, err := decodeItem(item)
	if err != nil {
		return domain.Message{}, storageErr("get message", err)
	}
	return message, nil
}

func decodeItem(item *badger.Item) (domain.Message, error) {
	var message domain.Message
	err := item.Value(func(val []byte) error {
		var disk diskMessage
		if err := json.Unmarshal(val, &disk); err != nil {
			return err
		}
		var err error
		message, err = toDomainMessage(disk)
		return err
	})
	return message, err
}

func fromDomainMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:        message.ID.String(),
		AuthorID:  message.AuthorID.String(),
		Author:    message.Author,
		Content:   message.Content,
		Room:      string(message.Room),
		Recipient: message.Recipient,
		IsPrivate: message.IsPrivate,
		Language:  message.Language,
		At:        message.CreatedAt.UnixNano(),
	}
}

func toDomainMessage(disk diskMessage) (domain.Message, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	authorID, err := uuid.Parse(disk.AuthorID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		AuthorID:  authorID,
		Author:    disk.Author,
		Content:   disk.Content,
		Room:      domain.RoomName(disk.Room),
		Recipient: disk.Recipient,
		IsPrivate: disk.IsPrivate,
		Language:  disk.Language,
		CreatedAt: time.Unix(0, disk.At).UTC(),
	}, nil
}

func sortNewestFirst(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
}
