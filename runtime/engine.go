// Package runtime owns the live state of the relay: who is connected, which room
// they occupy and which socket receives their events.
// All of it is mutated by the routing engine from a single goroutine.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"

	"github.com/samber/lo"
)

var (
	_ contract.IDispatcher     = (*Engine)(nil)
	_ contract.ICommandHandler = (*Engine)(nil)
)

// maxBacklog bounds the commands parked behind an in-flight operation of one connection.
const maxBacklog = 256

// Results of blocking operations. They are posted back on the command queue
// and applied like any other command, by the routing goroutine.
type identityResolved struct {
	conn     domain.ConnectionID
	identity domain.Identity
	err      error
}

type historyFetched struct {
	conn     domain.ConnectionID
	room     domain.RoomName
	messages []domain.Message
	err      error
}

type messagePersisted struct {
	conn    domain.ConnectionID
	message domain.Message
	err     error
}

type operationFailed struct {
	conn domain.ConnectionID
	err  error
}

func (c identityResolved) Connection() domain.ConnectionID { return c.conn }
func (c historyFetched) Connection() domain.ConnectionID   { return c.conn }
func (c messagePersisted) Connection() domain.ConnectionID { return c.conn }
func (c operationFailed) Connection() domain.ConnectionID  { return c.conn }

// session is the engine side of one connection.
// While busy, an operation is in flight and new commands wait in the backlog.
type session struct {
	conn    domain.ConnectionID
	state   domain.ConnectionState
	room    domain.RoomName
	busy    bool
	backlog []domain.Command
}

// Engine is the routing engine. Dispatch may be called from any goroutine,
// Handle only from the routing worker draining Commands.
type Engine struct {
	identities   contract.IIdentityRegistry
	history      contract.HistoryProvider
	messages     contract.IMessageService
	presence     *PresenceDirectory
	rooms        *RoomRegistry
	sessions     map[domain.ConnectionID]*session
	commands     chan domain.Command
	deliveries   chan event.Delivery
	stats        *observability.Relay
	storeTimeout time.Duration
	log          *slog.Logger
	inflight     sync.WaitGroup
}

func NewEngine(
	identities contract.IIdentityRegistry,
	history contract.HistoryProvider,
	messages contract.IMessageService,
	stats *observability.Relay,
	bufferSize int,
	storeTimeout time.Duration,
	log *slog.Logger) *Engine {
	e := &Engine{
		identities:   identities,
		history:      history,
		messages:     messages,
		presence:     NewPresenceDirectory(),
		rooms:        NewRoomRegistry(),
		sessions:     make(map[domain.ConnectionID]*session),
		commands:     make(chan domain.Command, bufferSize),
		deliveries:   make(chan event.Delivery, bufferSize),
		stats:        stats,
		storeTimeout: storeTimeout,
		log:          log,
	}
	stats.SetRooms(e.rooms.Len())
	return e
}

// Commands is the inbound queue drained by the routing worker.
func (e *Engine) Commands() <-chan domain.Command {
	return e.commands
}

// Deliveries is the outbound queue drained by the delivery fanout.
func (e *Engine) Deliveries() <-chan event.Delivery {
	return e.deliveries
}

// Dispatch enqueues a command. When the queue is full it waits for room
// until ctx is done, and then reports ErrQueueFull.
func (e *Engine) Dispatch(ctx context.Context, cmd domain.Command) error {
	if cmd == nil {
		return fmt.Errorf("nil command: %w", errors.ErrValidation)
	}
	select {
	case e.commands <- cmd:
		return nil
	default:
	}
	e.log.Warn("Command queue full, waiting", "connection_id", cmd.Connection(), "capacity", cap(e.commands))
	select {
	case e.commands <- cmd:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrQueueFull, ctx.Err())
	}
}

// Wait blocks until every blocking operation started so far has posted its result.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Handle applies one command. Disconnect and operation results are applied at
// once, everything else goes through the connection's backlog.
func (e *Engine) Handle(ctx context.Context, cmd domain.Command) {
	switch c := cmd.(type) {
	case domain.Disconnect:
		e.disconnect(ctx, c.Conn)
	case domain.IdentityRenamed:
		e.log.Info("Identity renamed", "old_nickname", c.Old, "new_nickname", c.New)
		e.presence.Rename(c.Old, c.New)
	case domain.IdentityDeleted:
		e.log.Info("Identity deleted", "nickname", c.Nickname)
		e.presence.Forget(c.Nickname)
	case identityResolved:
		e.complete(ctx, c.conn, func(s *session) { e.activate(ctx, s, c) })
	case historyFetched:
		e.complete(ctx, c.conn, func(s *session) { e.replayed(ctx, s, c) })
	case messagePersisted:
		e.complete(ctx, c.conn, func(s *session) { e.persisted(ctx, s, c) })
	case operationFailed:
		e.complete(ctx, c.conn, func(s *session) { e.failed(ctx, s, c.err) })
	default:
		e.submit(ctx, cmd)
	}
}

func (e *Engine) submit(ctx context.Context, cmd domain.Command) {
	conn := cmd.Connection()
	s, ok := e.sessions[conn]
	if !ok {
		switch c := cmd.(type) {
		case domain.Connect:
			e.connect(ctx, c)
		case domain.Typing, domain.StopTyping:
			e.log.Debug("Dropping typing of an unknown connection", "connection_id", conn)
		default:
			e.reject(ctx, conn, fmt.Errorf("connection %s: %w", conn, errors.ErrNotActive), false)
		}
		return
	}
	// Typing is ephemeral, it is never parked behind an identity lookup
	if s.state != domain.Active && isTyping(cmd) {
		return
	}
	if s.busy {
		if len(s.backlog) >= maxBacklog {
			e.reject(ctx, conn, fmt.Errorf("%d pending commands: %w", len(s.backlog), errors.ErrQueueFull), false)
			return
		}
		s.backlog = append(s.backlog, cmd)
		return
	}
	e.apply(ctx, s, cmd)
}

func isTyping(cmd domain.Command) bool {
	switch cmd.(type) {
	case domain.Typing, domain.StopTyping:
		return true
	}
	return false
}

// complete applies an operation result, then replays whatever the connection
// sent meanwhile. Results for a connection that is gone are dropped.
func (e *Engine) complete(ctx context.Context, conn domain.ConnectionID, fn func(s *session)) {
	s, ok := e.sessions[conn]
	if !ok {
		e.stats.IncrDiscarded()
		e.log.Debug("Discarding result for a vanished connection", "connection_id", conn)
		return
	}
	s.busy = false
	fn(s)

	for {
		s, ok = e.sessions[conn]
		if !ok || s.busy || len(s.backlog) == 0 {
			return
		}
		next := s.backlog[0]
		s.backlog = s.backlog[1:]
		e.apply(ctx, s, next)
	}
}

func (e *Engine) apply(ctx context.Context, s *session, cmd domain.Command) {
	if err := domain.ValidateCommand(cmd); err != nil {
		e.reject(ctx, s.conn, err, false)
		return
	}
	switch c := cmd.(type) {
	case domain.Connect:
		e.reject(ctx, s.conn, fmt.Errorf("connection %s already connected: %w", s.conn, errors.ErrValidation), false)
	case domain.JoinRoom:
		e.joinRoom(ctx, s, c.Room)
	case domain.SendPublic:
		e.sendPublic(ctx, s, c.Content)
	case domain.SendPrivate:
		e.sendPrivate(ctx, s, c.Recipient, c.Content)
	case domain.Typing:
		e.typing(ctx, s, func(nickname string) event.Event {
			return event.Typing{Text: fmt.Sprintf("%s is typing...", nickname)}
		})
	case domain.StopTyping:
		e.typing(ctx, s, func(string) event.Event { return event.StopTyping{} })
	default:
		e.log.Warn("Unknown command", "command", fmt.Sprintf("%T", cmd), "connection_id", s.conn)
	}
}

// connect opens a session and resolves the claimed nickname off the routing goroutine.
func (e *Engine) connect(ctx context.Context, c domain.Connect) {
	c.Nickname = domain.NormalizeNickname(c.Nickname)
	if err := domain.ValidateCommand(c); err != nil {
		e.reject(ctx, c.Conn, err, true)
		return
	}
	e.sessions[c.Conn] = &session{conn: c.Conn, state: domain.Connecting, busy: true}
	e.stats.ConnectionOpened()
	e.log.Debug("Connection opened", "connection_id", c.Conn, "nickname", c.Nickname)

	e.async(ctx, c.Conn, func(ctx context.Context) domain.Command {
		identity, err := e.identities.GetOrCreate(ctx, c.Nickname)
		return identityResolved{conn: c.Conn, identity: identity, err: err}
	})
}

func (e *Engine) activate(ctx context.Context, s *session, r identityResolved) {
	if r.err != nil {
		e.log.Warn("Identity resolution failed", "connection_id", s.conn, "error", r.err)
		e.drop(s)
		e.reject(ctx, s.conn, r.err, true)
		return
	}
	nickname := r.identity.Nickname
	if previous, replaced := e.presence.Register(s.conn, r.identity); replaced {
		e.log.Info("New session overrides previous one",
			"nickname", nickname, "connection_id", s.conn, "previous_connection_id", previous)
	}
	s.state = domain.Active
	s.room = domain.DefaultRoom
	e.rooms.Join(s.conn, s.room)

	e.emit(ctx, event.RoomList{Rooms: e.rooms.AllRoomNames()}, s.conn)
	e.announce(ctx, s.room, fmt.Sprintf("%s has joined the room: %s", nickname, s.room))
	e.replay(ctx, s)
}

func (e *Engine) joinRoom(ctx context.Context, s *session, room domain.RoomName) {
	if s.state != domain.Active {
		e.reject(ctx, s.conn, fmt.Errorf("join %s: %w", room, errors.ErrNotActive), false)
		return
	}
	previous := s.room
	if room == previous {
		return
	}
	identity, _ := e.presence.Resolve(s.conn)

	// Leave and join happen in this single step, no snapshot can see both or neither
	created := e.rooms.EnsureRoom(room)
	e.rooms.Join(s.conn, room)
	s.room = room

	if created {
		e.stats.SetRooms(e.rooms.Len())
		e.emit(ctx, event.RoomList{Rooms: e.rooms.AllRoomNames()}, e.activeConnections()...)
	}
	e.announce(ctx, previous, fmt.Sprintf("%s has left the room.", identity.Nickname))
	e.announce(ctx, room, fmt.Sprintf("%s has joined the room.", identity.Nickname))

	e.emit(ctx, event.ClearView{}, s.conn)
	e.replay(ctx, s)
}

// replay fetches the room history; delivery happens in replayed.
func (e *Engine) replay(ctx context.Context, s *session) {
	s.busy = true
	room := s.room
	e.async(ctx, s.conn, func(ctx context.Context) domain.Command {
		messages, err := e.history.Recent(ctx, room)
		return historyFetched{conn: s.conn, room: room, messages: messages, err: err}
	})
}

// replayed delivers every public message and only the private messages the
// connection's identity sent or received.
func (e *Engine) replayed(ctx context.Context, s *session, h historyFetched) {
	if h.err != nil {
		e.log.Warn("History unavailable", "connection_id", s.conn, "room", h.room, "error", h.err)
		e.reject(ctx, s.conn, h.err, false)
		return
	}
	if h.room != s.room {
		e.stats.IncrDiscarded()
		return
	}
	identity, ok := e.presence.Resolve(s.conn)
	if !ok {
		return
	}
	for _, message := range h.messages {
		if message.VisibleTo(identity) {
			e.emit(ctx, event.Message{Text: message.Text()}, s.conn)
		}
	}
}

func (e *Engine) sendPublic(ctx context.Context, s *session, content string) {
	if s.state != domain.Active {
		e.reject(ctx, s.conn, fmt.Errorf("send: %w", errors.ErrNotActive), false)
		return
	}
	author, _ := e.presence.Resolve(s.conn)
	room := s.room
	s.busy = true
	e.async(ctx, s.conn, func(ctx context.Context) domain.Command {
		message, err := e.messages.PostPublic(ctx, author, room, content)
		return messagePersisted{conn: s.conn, message: message, err: err}
	})
}

func (e *Engine) sendPrivate(ctx context.Context, s *session, recipient, content string) {
	if s.state != domain.Active {
		e.reject(ctx, s.conn, fmt.Errorf("send: %w", errors.ErrNotActive), false)
		return
	}
	author, _ := e.presence.Resolve(s.conn)
	room := s.room
	s.busy = true
	e.async(ctx, s.conn, func(ctx context.Context) domain.Command {
		message, err := e.messages.PostPrivate(ctx, author, room, recipient, content)
		return messagePersisted{conn: s.conn, message: message, err: err}
	})
}

// persisted broadcasts a stored message. A failed write is reported to the
// author only and nothing reaches the room.
func (e *Engine) persisted(ctx context.Context, s *session, p messagePersisted) {
	if p.err != nil {
		e.log.Warn("Message not persisted", "connection_id", s.conn, "error", p.err)
		e.reject(ctx, s.conn, p.err, false)
		return
	}
	message := p.message
	if message.IsPrivate {
		// An offline recipient will find it in the room history
		if conn, ok := e.presence.ConnectionFor(message.Recipient); ok {
			e.emit(ctx, event.PrivateMessage{From: message.Author, Message: message.Content}, conn)
		}
		return
	}
	recipients := lo.Without(e.rooms.MembersOf(message.Room), s.conn)
	e.emit(ctx, event.Message{Text: message.Text()}, recipients...)
}

func (e *Engine) failed(ctx context.Context, s *session, err error) {
	if s.state == domain.Connecting {
		e.drop(s)
		e.reject(ctx, s.conn, err, true)
		return
	}
	e.reject(ctx, s.conn, err, false)
}

// typing is ephemeral. It is silently dropped for a connection that is not active.
func (e *Engine) typing(ctx context.Context, s *session, build func(nickname string) event.Event) {
	if s.state != domain.Active {
		return
	}
	identity, _ := e.presence.Resolve(s.conn)
	recipients := lo.Without(e.rooms.MembersOf(s.room), s.conn)
	e.emit(ctx, build(identity.Nickname), recipients...)
}

// disconnect is applied from any state and is idempotent.
func (e *Engine) disconnect(ctx context.Context, conn domain.ConnectionID) {
	s, ok := e.sessions[conn]
	if !ok {
		e.log.Debug("Disconnect for an unknown connection", "connection_id", conn)
		return
	}
	identity, resolved := e.presence.Resolve(conn)
	wasActive := s.state == domain.Active
	room := s.room
	e.drop(s)
	if !wasActive || !resolved {
		return
	}
	e.log.Debug("Connection closed", "connection_id", conn, "nickname", identity.Nickname, "room", room)
	e.announce(ctx, room, fmt.Sprintf("%s has left the chat.", identity.Nickname))
}

// drop forgets a session everywhere. Pending commands are lost.
func (e *Engine) drop(s *session) {
	s.state = domain.Disconnected
	s.backlog = nil
	delete(e.sessions, s.conn)
	e.presence.Unregister(s.conn)
	e.rooms.Leave(s.conn, s.room)
	e.stats.ConnectionClosed()
}

// announce sends a line and the refreshed presence snapshot to a room.
func (e *Engine) announce(ctx context.Context, room domain.RoomName, text string) {
	members := e.rooms.MembersOf(room)
	e.emit(ctx, event.Message{Text: text}, members...)
	e.emit(ctx, event.OnlineUsers{Room: room, Nicknames: e.snapshot(members)}, members...)
}

// snapshot maps room members to nicknames, skipping connections that no longer resolve.
func (e *Engine) snapshot(members []domain.ConnectionID) []string {
	return lo.FilterMap(members, func(conn domain.ConnectionID, _ int) (string, bool) {
		identity, ok := e.presence.Resolve(conn)
		return identity.Nickname, ok
	})
}

func (e *Engine) activeConnections() []domain.ConnectionID {
	var conns []domain.ConnectionID
	for _, room := range e.rooms.AllRoomNames() {
		conns = append(conns, e.rooms.MembersOf(room)...)
	}
	return conns
}

func (e *Engine) reject(ctx context.Context, conn domain.ConnectionID, err error, fatal bool) {
	e.stats.IncrRejected()
	e.log.Debug("Command rejected", "connection_id", conn, "error", err, "fatal", fatal)
	e.emit(ctx, event.Error{Code: errors.Code(err), Message: err.Error(), Fatal: fatal}, conn)
}

func (e *Engine) emit(ctx context.Context, evt event.Event, recipients ...domain.ConnectionID) {
	if len(recipients) == 0 {
		return
	}
	select {
	case e.deliveries <- event.Delivery{Recipients: recipients, Event: evt}:
	case <-ctx.Done():
	}
}

// async runs a blocking operation off the routing goroutine and posts its
// result back on the command queue.
func (e *Engine) async(ctx context.Context, conn domain.ConnectionID, op func(ctx context.Context) domain.Command) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		result := e.run(ctx, conn, op)
		select {
		case e.commands <- result:
		case <-ctx.Done():
			e.log.Debug("Dropping operation result, engine stopped", "connection_id", conn)
		}
	}()
}

func (e *Engine) run(ctx context.Context, conn domain.ConnectionID, op func(ctx context.Context) domain.Command) (result domain.Command) {
	opCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			e.stats.IncrPanics()
			e.log.Error("Blocking operation panicked", "connection_id", conn, "panic", r)
			result = operationFailed{conn: conn, err: fmt.Errorf("%v: %w", r, errors.ErrWorkerPanic)}
		}
	}()
	return op(opCtx)
}
