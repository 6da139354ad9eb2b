// Package search keeps a Bluge full-text index of persisted messages for operators.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldID      = "_id"
	fieldContent = "content"
	fieldAuthor  = "author"
	fieldRoom    = "room"
)

// MessageIndex wraps a Bluge writer. Readers are opened per search so a search
// always observes the latest committed batch.
type MessageIndex struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open bluge writer: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

// OpenInMemory is used by tests and by relays running without a search path.
func OpenInMemory(log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("open bluge writer: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}

// Index adds or replaces the document of a message.
func (i *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField(fieldContent, message.Content)).
		AddField(bluge.NewKeywordField(fieldAuthor, message.Author)).
		AddField(bluge.NewKeywordField(fieldRoom, string(message.Room)))

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Remove(id uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Delete(bluge.Identifier(id.String()))
}

// Search returns the ids of the best matching messages, best match first.
func (i *MessageIndex) Search(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open bluge reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing bluge reader failed", "error", err)
		}
	}()

	request := bluge.NewTopNSearch(limit, bluge.NewMatchQuery(query).SetField(fieldContent))
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var ids []uuid.UUID
	match, err := matches.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field != fieldID {
				return true
			}
			id, parseErr := uuid.ParseBytes(value)
			if parseErr != nil {
				i.log.Warn("Skipping malformed document id", "id", string(value))
				return false
			}
			ids = append(ids, id)
			return false
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return ids, nil
}
