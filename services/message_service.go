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
	"chat-relay/moderation"
	"chat-relay/observability"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// MessageService turns a chat line into a persisted message.
// Content is validated, censored and language tagged before it reaches the store.
type MessageService struct {
	store            contract.MessageStore
	index            contract.MessageIndex
	moderator        *moderation.Moderator
	stats            *observability.Relay
	maxContentLength int
	log              *slog.Logger
	now              func() time.Time
}

func NewMessageService(
	store contract.MessageStore,
	index contract.MessageIndex,
	moderator *moderation.Moderator,
	stats *observability.Relay,
	maxContentLength int,
	log *slog.Logger) *MessageService {
	return &MessageService{
		store:            store,
		index:            index,
		moderator:        moderator,
		stats:            stats,
		maxContentLength: maxContentLength,
		log:              log,
		now:              nowUTC,
	}
}

func (s *MessageService) PostPublic(ctx context.Context, author domain.Identity, room domain.RoomName, content string) (domain.Message, error) {
	return s.post(ctx, author, room, "", content)
}

func (s *MessageService) PostPrivate(ctx context.Context, author domain.Identity, room domain.RoomName, recipient, content string) (domain.Message, error) {
	recipient = domain.NormalizeNickname(recipient)
	if err := ValidateNickname(recipient); err != nil {
		return domain.Message{}, fmt.Errorf("recipient: %w", err)
	}
	return s.post(ctx, author, room, recipient, content)
}

func (s *MessageService) post(ctx context.Context, author domain.Identity, room domain.RoomName, recipient, content string) (domain.Message, error) {
	if err := s.validateContent(content); err != nil {
		return domain.Message{}, err
	}

	sanitized, censored := s.moderator.Censor(content)
	if len(censored) > 0 {
		s.log.Info("Message censored", "author", author.Nickname, "room", room, "words", len(censored))
	}

	message := domain.Message{
		ID:        uuid.New(),
		AuthorID:  author.ID,
		Author:    author.Nickname,
		Content:   sanitized,
		Room:      room,
		Recipient: recipient,
		IsPrivate: recipient != "",
		Language:  whatlanggo.Detect(content).Lang.Iso6391(),
		CreatedAt: s.now(),
	}
	if err := message.Validate(); err != nil {
		return domain.Message{}, err
	}

	if err := s.store.CreateMessage(ctx, message); err != nil {
		s.stats.IncrStorageFailure()
		return domain.Message{}, s.asStorageErr(err)
	}
	s.stats.IncrPersisted()

	// The store is the source of truth, a stale index only degrades operator search
	if s.index != nil {
		if err := s.index.Index(message); err != nil {
			s.log.Warn("Unable to index message", "message_id", message.ID, "error", err)
		}
	}
	return message, nil
}

func (s *MessageService) validateContent(content string) error {
	rules := "required,notblank"
	if s.maxContentLength > 0 {
		rules = fmt.Sprintf("required,notblank,max=%d", s.maxContentLength)
	}
	if err := validate.Var(content, rules); err != nil {
		return fmt.Errorf("content: %v: %w", err, errors.ErrValidation)
	}
	return nil
}

func (s *MessageService) asStorageErr(err error) error {
	if stderrors.Is(err, errors.ErrStorage) {
		return err
	}
	return fmt.Errorf("create message: %w: %w", errors.ErrStorage, err)
}
