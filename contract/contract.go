//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the write side of one client connection.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// ISinkRegistry maps live connection identifiers to their sink.
type ISinkRegistry interface {
	Subscribe(conn domain.ConnectionID, sink EventSink)
	Unsubscribe(conn domain.ConnectionID)
	SinkFor(conn domain.ConnectionID) (EventSink, bool)
}

// IDispatcher accepts commands for the routing engine.
type IDispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
}

// IdentityStore is the durable side of identities.
type IdentityStore interface {
	FindIdentity(ctx context.Context, nickname string) (domain.Identity, error)
	FindIdentityByID(ctx context.Context, id uuid.UUID) (domain.Identity, error)
	CreateIdentity(ctx context.Context, identity domain.Identity) error
	RenameIdentity(ctx context.Context, oldNickname, newNickname string) (domain.Identity, error)
	DeleteIdentity(ctx context.Context, nickname string) error
	ListIdentities(ctx context.Context) ([]domain.Identity, error)
}

// MessageStore is the durable side of messages. Listings are newest first.
type MessageStore interface {
	CreateMessage(ctx context.Context, message domain.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error)
	UpdateMessage(ctx context.Context, id uuid.UUID, patch domain.MessagePatch) (domain.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	FindMessages(ctx context.Context, room domain.RoomName, limit int) ([]domain.Message, error)
	ListMessages(ctx context.Context) ([]domain.Message, error)
	ListMessagesByAuthor(ctx context.Context, authorID uuid.UUID) ([]domain.Message, error)
	Rooms(ctx context.Context) ([]domain.RoomName, error)
}

// MessageIndex is a full-text index over persisted messages.
type MessageIndex interface {
	Index(message domain.Message) error
	Remove(id uuid.UUID) error
	Search(ctx context.Context, query string, limit int) ([]uuid.UUID, error)
}

// IIdentityRegistry resolves a claimed nickname to its durable identity.
type IIdentityRegistry interface {
	GetOrCreate(ctx context.Context, nickname string) (domain.Identity, error)
}

// HistoryProvider returns the recent messages of a room, oldest first.
type HistoryProvider interface {
	Recent(ctx context.Context, room domain.RoomName) ([]domain.Message, error)
}

// IMessageService persists chat lines before they are delivered.
type IMessageService interface {
	PostPublic(ctx context.Context, author domain.Identity, room domain.RoomName, content string) (domain.Message, error)
	PostPrivate(ctx context.Context, author domain.Identity, room domain.RoomName, recipient, content string) (domain.Message, error)
}

// ICommandHandler applies one command to the routing state.
// It is only ever called from the single routing goroutine.
type ICommandHandler interface {
	Handle(ctx context.Context, cmd domain.Command)
}
