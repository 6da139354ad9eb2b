package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const defaultSearchLimit = 20

type IAdminService interface {
	CreateUser(ctx context.Context, nickname string) (domain.Identity, error)
	GetUser(ctx context.Context, nickname string) (domain.Identity, error)
	UpdateUser(ctx context.Context, oldNickname, newNickname string) (domain.Identity, error)
	DeleteUser(ctx context.Context, nickname string) error
	ListUsers(ctx context.Context) ([]domain.Identity, error)
	SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error)
	ListMessages(ctx context.Context) ([]domain.Message, error)
	ListMessagesByUser(ctx context.Context, nickname string) ([]domain.Message, error)
	UpdateMessage(ctx context.Context, id uuid.UUID, patch domain.MessagePatch) (domain.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	GetRooms(ctx context.Context) ([]domain.RoomName, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]domain.Message, error)
}

// SendMessageCommand is an operator-authored message stored on behalf of an existing identity.
type SendMessageCommand struct {
	From      string
	To        string
	Room      domain.RoomName
	Content   string
	IsPrivate bool
}

// AdminService mutates durable state on behalf of operators.
// Nothing here is broadcast to live connections: the engine is only told
// about renames and deletions so it stops resolving stale nicknames.
type AdminService struct {
	identities contract.IdentityStore
	messages   contract.MessageStore
	poster     contract.IMessageService
	index      contract.MessageIndex
	dispatcher contract.IDispatcher
	log        *slog.Logger
}

func NewAdminService(
	identities contract.IdentityStore,
	messages contract.MessageStore,
	poster contract.IMessageService,
	index contract.MessageIndex,
	dispatcher contract.IDispatcher,
	log *slog.Logger) *AdminService {
	return &AdminService{
		identities: identities,
		messages:   messages,
		poster:     poster,
		index:      index,
		dispatcher: dispatcher,
		log:        log,
	}
}

// CreateUser fails with ErrConflict when the nickname is taken, unlike the
// connect path which reuses it.
func (s *AdminService) CreateUser(ctx context.Context, nickname string) (domain.Identity, error) {
	nickname = domain.NormalizeNickname(nickname)
	if err := ValidateNickname(nickname); err != nil {
		return domain.Identity{}, err
	}
	identity := domain.NewIdentity(nickname, nowUTC())
	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return domain.Identity{}, err
	}
	s.log.Info("Identity created by operator", "nickname", nickname)
	return identity, nil
}

func (s *AdminService) GetUser(ctx context.Context, nickname string) (domain.Identity, error) {
	return s.identities.FindIdentity(ctx, domain.NormalizeNickname(nickname))
}

func (s *AdminService) UpdateUser(ctx context.Context, oldNickname, newNickname string) (domain.Identity, error) {
	oldNickname = domain.NormalizeNickname(oldNickname)
	newNickname = domain.NormalizeNickname(newNickname)
	if err := ValidateNickname(newNickname); err != nil {
		return domain.Identity{}, err
	}
	identity, err := s.identities.RenameIdentity(ctx, oldNickname, newNickname)
	if err != nil {
		return domain.Identity{}, err
	}
	s.notify(ctx, domain.IdentityRenamed{Old: oldNickname, New: newNickname})
	return identity, nil
}

func (s *AdminService) DeleteUser(ctx context.Context, nickname string) error {
	nickname = domain.NormalizeNickname(nickname)
	if err := s.identities.DeleteIdentity(ctx, nickname); err != nil {
		return err
	}
	s.notify(ctx, domain.IdentityDeleted{Nickname: nickname})
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]domain.Identity, error) {
	return s.identities.ListIdentities(ctx)
}

// SendMessage stores a message authored by an existing identity.
// A blank room falls back to the default room.
func (s *AdminService) SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error) {
	author, err := s.identities.FindIdentity(ctx, domain.NormalizeNickname(cmd.From))
	if err != nil {
		return domain.Message{}, fmt.Errorf("sender: %w", err)
	}
	room := domain.RoomName(strings.TrimSpace(string(cmd.Room)))
	if room == "" {
		room = domain.DefaultRoom
	}
	if cmd.IsPrivate {
		return s.poster.PostPrivate(ctx, author, room, cmd.To, cmd.Content)
	}
	return s.poster.PostPublic(ctx, author, room, cmd.Content)
}

func (s *AdminService) ListMessages(ctx context.Context) ([]domain.Message, error) {
	return s.messages.ListMessages(ctx)
}

func (s *AdminService) ListMessagesByUser(ctx context.Context, nickname string) ([]domain.Message, error) {
	author, err := s.identities.FindIdentity(ctx, domain.NormalizeNickname(nickname))
	if err != nil {
		return nil, err
	}
	return s.messages.ListMessagesByAuthor(ctx, author.ID)
}

func (s *AdminService) UpdateMessage(ctx context.Context, id uuid.UUID, patch domain.MessagePatch) (domain.Message, error) {
	message, err := s.messages.UpdateMessage(ctx, id, patch)
	if err != nil {
		return domain.Message{}, err
	}
	if s.index != nil {
		if err = s.index.Index(message); err != nil {
			s.log.Warn("Unable to reindex message", "message_id", id, "error", err)
		}
	}
	return message, nil
}

func (s *AdminService) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if err := s.messages.DeleteMessage(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Remove(id); err != nil {
			s.log.Warn("Unable to remove message from index", "message_id", id, "error", err)
		}
	}
	return nil
}

func (s *AdminService) GetRooms(ctx context.Context) ([]domain.RoomName, error) {
	return s.messages.Rooms(ctx)
}

// SearchMessages resolves index hits against the store.
// Hits deleted since they were indexed are skipped.
func (s *AdminService) SearchMessages(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	if err := validate.Var(query, "required,notblank"); err != nil {
		return nil, fmt.Errorf("query: %v: %w", err, errors.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if s.index == nil {
		return nil, nil
	}
	ids, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	messages := make([]domain.Message, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		message, err := s.messages.GetMessage(ctx, id)
		if stderrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *AdminService) notify(ctx context.Context, cmd domain.Command) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, cmd); err != nil {
		s.log.Warn("Unable to notify routing engine", "command", fmt.Sprintf("%T", cmd), "error", err)
	}
}
