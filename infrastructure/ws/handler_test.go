package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const readTimeout = 5 * time.Second

func dial(t *testing.T, server *httptest.Server, nickname string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?nickname=" + nickname
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips frames until one of the given type satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string, match func(data json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		var frame Frame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == frameType && match(frame.Data) {
			return frame.Data
		}
	}
}

func textIs(expected string) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var text string
		return json.Unmarshal(data, &text) == nil && text == expected
	}
}

func TestHandler_Rejects_Missing_Nickname(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	handler := NewHandler(context.Background(), dispatcher, runtime.NewRegistry(), 8, time.Second, log)

	// When no nickname is provided
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ws?nickname=%20", nil))

	// Then the upgrade never happens and nothing reaches the engine
	req.Equal(http.StatusBadRequest, recorder.Code)
}

func TestHandler_Bridges_Socket_And_Engine(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	registry := runtime.NewRegistry()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	server := httptest.NewServer(NewHandler(context.Background(), dispatcher, registry, 8, time.Second, log))
	defer server.Close()

	connected := make(chan domain.Command, 1)
	received := make(chan domain.Command, 1)
	disconnected := make(chan struct{})
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.AssignableToTypeOf(domain.Connect{})).
		DoAndReturn(func(_ context.Context, cmd domain.Command) error {
			connected <- cmd
			return nil
		})
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.AssignableToTypeOf(domain.SendPublic{})).
		DoAndReturn(func(_ context.Context, cmd domain.Command) error {
			received <- cmd
			return nil
		})
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.AssignableToTypeOf(domain.Disconnect{})).
		DoAndReturn(func(_ context.Context, cmd domain.Command) error {
			close(disconnected)
			return nil
		})

	// Given alice connected, the sink is registered before Connect is dispatched
	conn := dial(t, server, "alice")
	connect := <-connected
	req.Equal("alice", connect.(domain.Connect).Nickname)
	id := connect.Connection()
	sink, ok := registry.SinkFor(id)
	req.True(ok)

	// When the engine emits an event for alice
	req.NoError(sink.Consume(context.Background(), event.Message{Text: "bob: hi"}))

	// Then it is written on the socket of alice
	readUntil(t, conn, event.MessageName, textIs("bob: hi"))

	// When alice sends a frame
	req.NoError(conn.WriteJSON(map[string]any{"type": "chat-message", "data": map[string]string{"content": "hello"}}))

	// Then the decoded command is dispatched for that connection
	req.Equal(domain.SendPublic{Conn: id, Content: "hello"}, <-received)

	// When alice sends a frame the relay does not understand
	req.NoError(conn.WriteJSON(map[string]any{"type": "dance"}))

	// Then alice gets a validation error and stays connected
	data := readUntil(t, conn, event.ErrorName, func(json.RawMessage) bool { return true })
	req.Contains(string(data), `"code":"validation"`)
	req.Contains(string(data), `"fatal":false`)

	// When alice leaves, Disconnect is dispatched and the sink is gone
	req.NoError(conn.Close())
	select {
	case <-disconnected:
	case <-time.After(readTimeout):
		t.Fatal("disconnect not dispatched")
	}
	req.Eventually(func() bool { return registry.Len() == 0 }, readTimeout, 10*time.Millisecond)
}

func TestHandler_Wait_Returns_Once_Sockets_Are_Disconnected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	registry := runtime.NewRegistry()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := NewHandler(ctx, dispatcher, registry, 8, time.Second, log)
	server := httptest.NewServer(handler)
	defer server.Close()

	connected := make(chan struct{})
	disconnected := make(chan struct{})
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.AssignableToTypeOf(domain.Connect{})).
		DoAndReturn(func(context.Context, domain.Command) error {
			close(connected)
			return nil
		})
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.AssignableToTypeOf(domain.Disconnect{})).
		DoAndReturn(func(context.Context, domain.Command) error {
			close(disconnected)
			return nil
		})

	// Given alice is connected
	dial(t, server, "alice")
	<-connected

	// When the relay shuts down
	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), readTimeout)
	defer waitCancel()
	req.NoError(handler.Wait(waitCtx))

	// Then the Disconnect of alice was dispatched before Wait returned
	select {
	case <-disconnected:
	default:
		t.Fatal("Wait returned before the disconnect was dispatched")
	}
	req.Zero(registry.Len())

	// And new sockets are refused
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ws?nickname=bob", nil))
	req.Equal(http.StatusServiceUnavailable, recorder.Code)
}

func TestHandler_Closes_Socket_After_Fatal_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	registry := runtime.NewRegistry()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	server := httptest.NewServer(NewHandler(context.Background(), dispatcher, registry, 8, time.Second, log))
	defer server.Close()

	connected := make(chan domain.ConnectionID, 1)
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.AssignableToTypeOf(domain.Connect{})).
		DoAndReturn(func(_ context.Context, cmd domain.Command) error {
			connected <- cmd.Connection()
			return nil
		})
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.AssignableToTypeOf(domain.Disconnect{})).Return(nil)

	conn := dial(t, server, "alice")
	sink, _ := registry.SinkFor(<-connected)

	// When the engine rejects the session
	req.NoError(sink.Consume(context.Background(), event.Error{Code: "storage", Message: "identity unavailable", Fatal: true}))

	// Then the error is written before the close frame
	data := readUntil(t, conn, event.ErrorName, func(json.RawMessage) bool { return true })
	req.Contains(string(data), `"fatal":true`)
	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.ClosePolicyViolation), "err=%v", err)
	req.Eventually(func() bool { return registry.Len() == 0 }, readTimeout, 10*time.Millisecond)
}

func TestHandler_Relays_Between_Clients(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	stats := observability.NewRelay()
	messageStore := repositories.NewMessageRepository(db, log)
	engine := runtime.NewEngine(
		services.NewIdentityService(repositories.NewIdentityRepository(db), log),
		services.NewHistoryService(messageStore, 20),
		services.NewMessageService(messageStore, nil, nil, stats, 0, log),
		stats, 64, time.Second, log)
	registry := runtime.NewRegistry()
	go func() { _ = workers.NewRoutingWorker(engine, engine.Commands(), stats, log).Run(ctx) }()
	go func() { _ = workers.NewEventFanout(log, registry, engine.Deliveries(), stats, time.Second).Run(ctx) }()

	server := httptest.NewServer(NewHandler(ctx, engine, registry, 64, time.Second, log))
	defer server.Close()

	// Given alice then bob in the default room
	alice := dial(t, server, "alice")
	readUntil(t, alice, event.MessageName, textIs("alice has joined the room: general"))
	bob := dial(t, server, "bob")
	readUntil(t, bob, event.MessageName, textIs("bob has joined the room: general"))
	readUntil(t, alice, event.MessageName, textIs("bob has joined the room: general"))

	// When alice talks to the room
	req.NoError(alice.WriteJSON(map[string]any{"type": "send-public", "data": map[string]string{"content": "hi"}}))

	// Then bob sees it
	readUntil(t, bob, event.MessageName, textIs("alice: hi"))

	// When bob answers privately
	req.NoError(bob.WriteJSON(map[string]any{"type": "send-private", "data": map[string]string{"recipient": "alice", "content": "psst"}}))

	// Then only alice gets the private message
	data := readUntil(t, alice, event.PrivateMessageName, func(json.RawMessage) bool { return true })
	req.JSONEq(`{"from":"bob","message":"psst"}`, string(data))

	// When bob leaves, alice is told
	req.NoError(bob.Close())
	readUntil(t, alice, event.MessageName, textIs("bob has left the chat."))
	req.Eventually(func() bool { return stats.Snapshot().MessagesPersisted == 2 }, readTimeout, 10*time.Millisecond)
}
